package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Outcome summarizes a finished run.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeWarning  Outcome = "warning"
	OutcomeFailed   Outcome = "failed"
	OutcomeCanceled Outcome = "canceled"
)

// Report accumulates per-stage results for one pipeline invocation.
type Report struct {
	ID             string                   `json:"id"`
	Command        string                   `json:"command"`
	Signature      string                   `json:"signature,omitempty"` // source set digest
	Start          time.Time                `json:"start"`
	End            time.Time                `json:"end"`
	StageDurations map[string]time.Duration `json:"stage_durations"`
	StageErrors    map[string]string        `json:"stage_errors,omitempty"`
	Outcome        Outcome                  `json:"outcome"`

	stageKinds map[string]StageErrorKind
	warnings   int
	fatal      bool
	canceled   bool
}

// NewReport starts a report for the named command.
func NewReport(command string) *Report {
	return &Report{
		ID:             uuid.NewString(),
		Command:        command,
		Start:          time.Now(),
		StageDurations: make(map[string]time.Duration),
		StageErrors:    make(map[string]string),
		stageKinds:     make(map[string]StageErrorKind),
	}
}

func (r *Report) recordError(se *StageError) {
	r.StageErrors[string(se.Stage)] = se.Error()
	r.stageKinds[string(se.Stage)] = se.Kind
	switch se.Kind {
	case StageErrorWarning:
		r.warnings++
	case StageErrorCanceled:
		r.canceled = true
	default:
		r.fatal = true
	}
}

// Finish stamps the end time and derives the outcome.
func (r *Report) Finish() {
	r.End = time.Now()
	switch {
	case r.canceled:
		r.Outcome = OutcomeCanceled
	case r.fatal:
		r.Outcome = OutcomeFailed
	case r.warnings > 0:
		r.Outcome = OutcomeWarning
	default:
		r.Outcome = OutcomeSuccess
	}
}

// Duration returns total elapsed time.
func (r *Report) Duration() time.Duration { return r.End.Sub(r.Start) }

// StageResult reports how a recorded stage ended: "success", "warning",
// "fatal", or "canceled".
func (r *Report) StageResult(stage string) string {
	if kind, ok := r.stageKinds[stage]; ok {
		return string(kind)
	}
	return "success"
}

// Persist writes the report as JSON into dir, best effort for observability
// only. The file lives outside the published bundle so packaged output
// stays byte-stable across identical inputs.
func (r *Report) Persist(dir string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	path := filepath.Join(dir, "build-report.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}
