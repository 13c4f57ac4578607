package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrDuplicateSubmission = errors.New("duplicate submission")
	ErrDailyLimitReached   = errors.New("daily application limit reached")
)

// ValidationError reports a malformed opportunity, profile or request.
// It is raised before anything enters the queue and is never retried.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Msg: msg}
}

type GenerationError struct {
	OpportunityID string
	Cause         error
}

func (e *GenerationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("proposal generation failed opportunity=%s: %v", e.OpportunityID, e.Cause)
	}
	return fmt.Sprintf("proposal generation failed opportunity=%s", e.OpportunityID)
}

func (e *GenerationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

type TransportError struct {
	Recipient string
	Cause     error
}

func (e *TransportError) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("email dispatch failed recipient=%s: %v", e.Recipient, e.Cause)
	}
	return fmt.Sprintf("email dispatch failed recipient=%s", e.Recipient)
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// PipelineTerminalError is returned when a transition is attempted on a
// pipeline that already carries an outcome. The pipeline is left untouched.
type PipelineTerminalError struct {
	PipelineID string
	Status     string
}

func (e *PipelineTerminalError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("pipeline %s is terminal (status=%s)", e.PipelineID, e.Status)
}

type TransitionError struct {
	PipelineID string
	From       string
	To         string
}

func (e *TransitionError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("pipeline %s: transition %s → %s is not allowed", e.PipelineID, e.From, e.To)
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsTerminal(err error) bool {
	var t *PipelineTerminalError
	return errors.As(err, &t)
}

func IsTransition(err error) bool {
	var t *TransitionError
	return errors.As(err, &t)
}
