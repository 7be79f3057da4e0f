// Package pipeline provides the sequential stage runner for builds. Stages
// run to completion in order because each consumes the artifacts of the
// previous one; parallelism inside a stage belongs to the underlying
// toolchain, not to the orchestration.
package pipeline

import (
	"context"
	"fmt"
)

// StageName identifies a build stage in reports and logs.
type StageName string

const (
	StageSelectSources StageName = "select_sources"
	StageEnsurePins    StageName = "ensure_pins"
	StageDepCache      StageName = "dep_cache"
	StageCompile       StageName = "compile"
	StageGenerateCSS   StageName = "generate_css"
	StageBundle        StageName = "bundle"
	StagePublish       StageName = "publish"
	StageLintCheck     StageName = "lint_check"
	StageFormatCheck   StageName = "format_check"
	StageVerifyBuild   StageName = "verify_build"
)

// StageErrorKind classifies how a stage ended.
type StageErrorKind string

const (
	StageErrorFatal    StageErrorKind = "fatal"
	StageErrorWarning  StageErrorKind = "warning"
	StageErrorCanceled StageErrorKind = "canceled"
)

// StageError carries the failing stage and a classification. Fatal errors
// abort the pipeline; warnings are recorded and the run continues.
type StageError struct {
	Kind  StageErrorKind
	Stage StageName
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Fatal wraps err as a pipeline-aborting stage error.
func Fatal(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorFatal, Stage: stage, Err: err}
}

// Warn wraps err as a recorded, non-aborting stage error.
func Warn(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorWarning, Stage: stage, Err: err}
}

// Canceled wraps a context cancellation for a stage.
func Canceled(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorCanceled, Stage: stage, Err: err}
}

// Stage is a discrete unit of work operating on shared build state.
type Stage func(ctx context.Context) error

// StageDef pairs a stage with its name for the runner.
type StageDef struct {
	Name StageName
	Fn   Stage
}

// Pipeline builds an ordered stage list.
type Pipeline struct {
	stages []StageDef
}

// New returns an empty pipeline.
func New() *Pipeline { return &Pipeline{} }

// Add appends a stage and returns the pipeline for chaining.
func (p *Pipeline) Add(name StageName, fn Stage) *Pipeline {
	p.stages = append(p.stages, StageDef{Name: name, Fn: fn})
	return p
}

// Stages returns the ordered stage definitions.
func (p *Pipeline) Stages() []StageDef { return p.stages }
