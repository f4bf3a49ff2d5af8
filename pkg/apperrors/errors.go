// Package apperrors defines the error taxonomy shared by all services.
//
// Services wrap these sentinels with context via fmt.Errorf("...: %w", err)
// and handlers map them to HTTP status codes. Callers classify with
// errors.Is, never by matching message text.
package apperrors

import "errors"

var (
	// ErrNotFound indicates the referenced entity is absent or not visible
	// to the tenant. Terminal for the request.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates malformed or logically inconsistent input,
	// such as a batch spanning multiple cells. Never retried.
	ErrValidation = errors.New("validation failed")

	// ErrConflict indicates a concurrency invariant was violated, such as a
	// second open time entry for an operator. The caller should refresh
	// current state and retry deliberately.
	ErrConflict = errors.New("conflict")

	// ErrInvalidState indicates the requested transition is not legal from
	// the entity's current state, such as completing a draft batch.
	ErrInvalidState = errors.New("invalid state transition")

	// ErrPreconditionFailed indicates a business rule blocks the action,
	// such as completing an operation that still has an open time entry.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrTransport indicates an underlying store or network failure.
	// Eligible for caller-driven retry with backoff; never a business error.
	ErrTransport = errors.New("transport failure")
)
