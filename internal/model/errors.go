package model

import (
	"errors"
	"fmt"
)

var (
	ErrPreferenceNotFound = errors.New("preference not found")
	ErrAPIKeyMissing      = errors.New("OpenAI API key not configured")
)

// InputError is a client error. Reason is short and machine readable; Limit
// and Length are set for size violations.
type InputError struct {
	Reason  string
	Details string
	Limit   int
	Length  int
}

func (e *InputError) Error() string {
	if e.Details == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Details)
}

func NewInputError(reason string) *InputError {
	return &InputError{Reason: reason}
}

// UpstreamError wraps a failed or unusable provider response. Message carries
// the provider-supplied text when there was one.
type UpstreamError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
