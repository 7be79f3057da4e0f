package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunExecutesInOrder(t *testing.T) {
	var order []StageName
	p := New().
		Add(StageSelectSources, func(context.Context) error {
			order = append(order, StageSelectSources)
			return nil
		}).
		Add(StageCompile, func(context.Context) error {
			order = append(order, StageCompile)
			return nil
		})

	report := NewReport("build")
	require.NoError(t, Run(context.Background(), report, p.Stages()))
	report.Finish()

	assert.Equal(t, []StageName{StageSelectSources, StageCompile}, order)
	assert.Equal(t, OutcomeSuccess, report.Outcome)
	assert.Contains(t, report.StageDurations, string(StageCompile))
}

func TestRunAbortsOnFatal(t *testing.T) {
	ran := false
	p := New().
		Add(StageDepCache, func(context.Context) error {
			return Fatal(StageDepCache, errors.New("cache mismatch"))
		}).
		Add(StageCompile, func(context.Context) error {
			ran = true
			return nil
		})

	report := NewReport("build")
	err := Run(context.Background(), report, p.Stages())
	report.Finish()

	require.Error(t, err)
	assert.False(t, ran, "stage after fatal must not run")
	assert.Equal(t, OutcomeFailed, report.Outcome)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageDepCache, se.Stage)
}

func TestRunContinuesOnWarning(t *testing.T) {
	ran := false
	p := New().
		Add(StageGenerateCSS, func(context.Context) error {
			return Warn(StageGenerateCSS, errors.New("minor"))
		}).
		Add(StageBundle, func(context.Context) error {
			ran = true
			return nil
		})

	report := NewReport("build")
	require.NoError(t, Run(context.Background(), report, p.Stages()))
	report.Finish()

	assert.True(t, ran)
	assert.Equal(t, OutcomeWarning, report.Outcome)
}

func TestRunWrapsUnclassifiedErrorsAsFatal(t *testing.T) {
	p := New().Add(StageBundle, func(context.Context) error {
		return errors.New("plain failure")
	})

	err := Run(context.Background(), NewReport("build"), p.Stages())
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageErrorFatal, se.Kind)
}

func TestRunHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	p := New().Add(StageCompile, func(context.Context) error {
		ran = true
		return nil
	})

	report := NewReport("build")
	err := Run(ctx, report, p.Stages())
	report.Finish()

	require.Error(t, err)
	assert.False(t, ran)
	assert.Equal(t, OutcomeCanceled, report.Outcome)
}
