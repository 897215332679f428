package signoff

import (
	"errors"
	"fmt"
)

// ErrEntityNotFound is the sentinel stores return for a missing row.
// The engine translates it into a NotFoundError naming the entity.
var ErrEntityNotFound = errors.New("entity not found")

// ValidationError means the request itself is malformed: empty approver
// list, bad ordering, unknown file or approver reference.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// AuthorizationError means the actor is not permitted to perform the
// operation (not the assigned approver, not allowed to cancel).
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	return "authorization: " + e.Reason
}

// ConflictError means the operation lost to an earlier decision: the step
// is already decided, or it is not the actor's turn in serial mode.
// A retried Decide surfacing ConflictError can be treated as
// success-already-applied by the caller.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return "conflict: " + e.Reason
}

// StateError means the owning workflow is no longer pending.
type StateError struct {
	Reason string
}

func (e *StateError) Error() string {
	return "state: " + e.Reason
}

// NotFoundError means the referenced workflow, step or rule does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// StoreError wraps a transient persistence failure. It is the only error
// kind a caller should retry without changing the request.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrEntityNotFound)
}

// notFoundOrStore maps a store read failure: the sentinel becomes a typed
// NotFoundError, anything else is a transient StoreError.
func notFoundOrStore(err error, entity, id, op string) error {
	if errors.Is(err, ErrEntityNotFound) {
		return &NotFoundError{Entity: entity, ID: id}
	}

	return &StoreError{Op: op, Err: err}
}
