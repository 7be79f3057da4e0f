package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/biblecomputer/bible/internal/logfields"
)

// Run executes stages in order, recording timing into the report and
// stopping on the first fatal error. Context cancellation is checked
// between stages and surfaces as a canceled stage error.
func Run(ctx context.Context, report *Report, stages []StageDef) error {
	for _, st := range stages {
		select {
		case <-ctx.Done():
			se := Canceled(st.Name, ctx.Err())
			report.recordError(se)
			return se
		default:
		}

		slog.Info("Starting stage", logfields.Stage(string(st.Name)))
		t0 := time.Now()
		err := st.Fn(ctx)
		dur := time.Since(t0)
		report.StageDurations[string(st.Name)] = dur

		if err == nil {
			slog.Info("Stage completed", logfields.Stage(string(st.Name)), logfields.DurationMS(float64(dur.Milliseconds())))
			continue
		}

		var se *StageError
		if !errors.As(err, &se) {
			// Unclassified errors abort by default.
			se = Fatal(st.Name, err)
		}
		report.recordError(se)
		switch se.Kind {
		case StageErrorWarning:
			slog.Warn("Stage completed with warning", logfields.Stage(string(st.Name)), logfields.Error(se.Err))
			continue
		default:
			slog.Error("Stage failed", logfields.Stage(string(st.Name)), logfields.Error(se.Err))
			return se
		}
	}
	return nil
}
