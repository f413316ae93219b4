package shared

import "fmt"

// DomainError is the base error type every dispatch-engine error embeds, in
// the same spirit as the ship-error hierarchy it is generalized from: a
// plain message plus an error Kind that callers can switch on without
// string-matching.
type DomainError struct {
	Kind    ErrorKind
	Message string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ErrorKind is the closed set of error kinds the engine surfaces.
type ErrorKind string

const (
	KindNotFound    ErrorKind = "not_found"
	KindConflict    ErrorKind = "conflict"
	KindTimeout     ErrorKind = "timeout"
	KindUnavailable ErrorKind = "unavailable"
	KindMalformed   ErrorKind = "malformed"
	KindInvariant   ErrorKind = "invariant"
)

// NotFoundError reports an unknown entity id.
type NotFoundError struct {
	*DomainError
	EntityKind string
	ID         string
}

func NewNotFoundError(entityKind, id string) *NotFoundError {
	return &NotFoundError{
		DomainError: &DomainError{Kind: KindNotFound, Message: fmt.Sprintf("%s %q not found", entityKind, id)},
		EntityKind:  entityKind,
		ID:          id,
	}
}

// ConflictError reports a transition that would violate a store invariant,
// e.g. matching a vehicle or load already referenced by an active trip.
type ConflictError struct {
	*DomainError
}

func NewConflictError(message string) *ConflictError {
	return &ConflictError{DomainError: &DomainError{Kind: KindConflict, Message: message}}
}

// TimeoutError reports a bounded-duration external call exceeding its
// deadline (routing or advisor calls).
type TimeoutError struct {
	*DomainError
}

func NewTimeoutError(operation string) *TimeoutError {
	return &TimeoutError{DomainError: &DomainError{Kind: KindTimeout, Message: fmt.Sprintf("%s timed out", operation)}}
}

// UnavailableError reports a hard failure from an external dependency.
type UnavailableError struct {
	*DomainError
}

func NewUnavailableError(operation string, cause error) *UnavailableError {
	msg := fmt.Sprintf("%s unavailable", operation)
	if cause != nil {
		msg = fmt.Sprintf("%s unavailable: %v", operation, cause)
	}
	return &UnavailableError{DomainError: &DomainError{Kind: KindUnavailable, Message: msg}}
}

// MalformedError reports input or advisor output that cannot be parsed.
type MalformedError struct {
	*DomainError
}

func NewMalformedError(message string) *MalformedError {
	return &MalformedError{DomainError: &DomainError{Kind: KindMalformed, Message: message}}
}

// InvariantError reports an internal consistency check failing. It must
// never reach the external boundary. Motion discards a phase transition
// that fails with it and carries on with the rest of the tick; the error
// is not logged.
type InvariantError struct {
	*DomainError
}

func NewInvariantError(message string) *InvariantError {
	return &InvariantError{DomainError: &DomainError{Kind: KindInvariant, Message: message}}
}

// ValidationError reports a single invalid field on a constructor call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
