package domain

import (
	"errors"
	"fmt"
)

// Stage identifies the pipeline step a failure came from.
type Stage string

const (
	StageInput  Stage = "input"
	StageFetch  Stage = "fetch"
	StageParse  Stage = "parse"
	StageRender Stage = "render"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrFetchFailure  = errors.New("fetch failure")
	ErrParseFailure  = errors.New("parse failure")
	ErrRenderFailure = errors.New("render failure")
)

// ServiceError is the single error shape returned by the render pipeline.
// errors.Is matches both the stage sentinel and the wrapped cause.
type ServiceError struct {
	Stage Stage
	Err   error
}

// NewServiceError wraps err as a failure of the given stage.
func NewServiceError(stage Stage, err error) *ServiceError {
	return &ServiceError{Stage: stage, Err: err}
}

func (e *ServiceError) Error() string {
	switch e.Stage {
	case StageInput:
		return fmt.Sprintf("invalid input: %v", e.Err)
	default:
		return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
	}
}

func (e *ServiceError) Unwrap() []error {
	if s := e.Stage.sentinel(); s != nil {
		return []error{s, e.Err}
	}
	return []error{e.Err}
}

func (s Stage) sentinel() error {
	switch s {
	case StageInput:
		return ErrInvalidInput
	case StageFetch:
		return ErrFetchFailure
	case StageParse:
		return ErrParseFailure
	case StageRender:
		return ErrRenderFailure
	}
	return nil
}

// StageOf reports the stage of a ServiceError anywhere in err's chain.
func StageOf(err error) (Stage, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
