package pipeline

import (
	"context"
	"errors"
	"fmt"

	"git.home.luguber.info/inful/docpub/internal/generator"
	"git.home.luguber.info/inful/docpub/internal/gitops"
)

// ErrorKind classifies a stage failure for retry and outcome decisions.
type ErrorKind string

const (
	ErrorKindFatal     ErrorKind = "fatal"
	ErrorKindTransient ErrorKind = "transient"
	ErrorKindCanceled  ErrorKind = "canceled"
)

// StageError wraps a stage failure with its classification.
type StageError struct {
	Stage StageName
	Kind  ErrorKind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError classifies err and wraps it for the given stage.
func NewStageError(stage StageName, err error) *StageError {
	return &StageError{Stage: stage, Kind: classifyStageError(err), Err: err}
}

func classifyStageError(err error) ErrorKind {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindCanceled
	}
	if gitops.IsTransient(err) {
		return ErrorKindTransient
	}
	switch generator.Classify(err) {
	case generator.FailureTransient:
		return ErrorKindTransient
	case generator.FailureCanceled:
		return ErrorKindCanceled
	}
	return ErrorKindFatal
}
