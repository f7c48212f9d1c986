package workflow

import (
	"errors"
	"fmt"
)

// Sentinel errors; match with errors.Is
var (
	ErrDispatchFailed    = errors.New("workflow dispatch failed")
	ErrMissingCredential = errors.New("workflow credential is empty")
	ErrPollTimeout       = errors.New("timed out waiting for pipeline result")
	ErrRunNotFound       = errors.New("pipeline run not found")
)

// DispatchError carries the remote rejection. It wraps ErrDispatchFailed.
type DispatchError struct {
	StatusCode int
	Message    string
}

func (e *DispatchError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("Dispatch failed: %d", e.StatusCode)
}

func (e *DispatchError) Unwrap() error {
	return ErrDispatchFailed
}
