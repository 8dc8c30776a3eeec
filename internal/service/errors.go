package service

import (
	"fmt"
)

type ErrResourceNotFound struct {
	error
}

func NewErrResourceNotFound(id string, resourceType string) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("%s %s not found", resourceType, id)}
}

func NewErrJobNotFound(id string) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "job")
}

// ErrInvariantViolation means the pipeline reached a step whose precondition was never established.
type ErrInvariantViolation struct {
	error
}

func NewErrInvariantViolation(message string) *ErrInvariantViolation {
	return &ErrInvariantViolation{fmt.Errorf("invariant violation: %s", message)}
}

func NewErrCategoryMissing(jobID string) *ErrInvariantViolation {
	return NewErrInvariantViolation(fmt.Sprintf("job %s has no category, hash check never completed", jobID))
}

type ErrInvalidTransition struct {
	error
}

func NewErrInvalidTransition(jobID string, target string) *ErrInvalidTransition {
	return &ErrInvalidTransition{fmt.Errorf("job %s cannot move to %s", jobID, target)}
}

type ErrEnqueueFailed struct {
	error
}

func NewErrEnqueueFailed(err error) *ErrEnqueueFailed {
	return &ErrEnqueueFailed{fmt.Errorf("failed to enqueue task: %w", err)}
}

func (e *ErrEnqueueFailed) Unwrap() error {
	return e.error
}

type ErrObjectMissing struct {
	error
}

func NewErrObjectMissing(path string) *ErrObjectMissing {
	return &ErrObjectMissing{fmt.Errorf("bad request: object %s was not found in storage", path)}
}

// ErrBadRequest is a callback whose fields contradict each other.
type ErrBadRequest struct {
	error
}

func NewErrBadRequest(message string) *ErrBadRequest {
	return &ErrBadRequest{fmt.Errorf("bad request: %s", message)}
}
