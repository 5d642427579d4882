package models

import "errors"

// Callers match these with errors.Is; adapters wrap them with context.
var (
	// ErrNotFound means the referenced member, conversation or claim does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState means a state-machine precondition did not hold. The caller's view is stale
	// and must be refreshed before trying again.
	ErrInvalidState = errors.New("invalid state")

	// ErrAlreadyOutstanding is a user-facing notice: a match request is already pending.
	ErrAlreadyOutstanding = errors.New("match request already outstanding")

	// ErrUnauthorized means the actor is not allowed to perform the operation.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrStoreUnavailable wraps collaborator I/O failures. Only this class may be retried, and only
	// by the caller.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrValidation reports malformed input (empty ids, blank message text).
	ErrValidation = errors.New("validation failed")
)
