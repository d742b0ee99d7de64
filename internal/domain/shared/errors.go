package shared

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a DomainError for transport mapping and retry decisions
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindInvalidTransition ErrorKind = "invalid_transition"
	KindNotFound          ErrorKind = "not_found"
	KindCourier           ErrorKind = "courier"
	KindPersistence       ErrorKind = "persistence"
	KindUnauthorized      ErrorKind = "unauthorized"
	KindForbidden         ErrorKind = "forbidden"
)

// Default codes per kind. A sentinel built with the default code matches every
// error of the same kind through errors.Is.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeNotFound          = "NOT_FOUND"
	CodeCourier           = "COURIER_ERROR"
	CodePersistence       = "PERSISTENCE_ERROR"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
)

var defaultCodes = map[ErrorKind]string{
	KindValidation:        CodeValidation,
	KindInvalidTransition: CodeInvalidTransition,
	KindNotFound:          CodeNotFound,
	KindCourier:           CodeCourier,
	KindPersistence:       CodePersistence,
	KindUnauthorized:      CodeUnauthorized,
	KindForbidden:         CodeForbidden,
}

// DomainError represents a domain-level error
type DomainError struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Kind    ErrorKind `json:"-"`
	cause   error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap exposes the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is matches errors of the same kind, either by exact code or against the kind sentinel
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == e.Code || t.Code == defaultCodes[t.Kind]
}

// NewDomainError creates a validation-kind domain error with a specific code.
// Codes that are the default of another kind keep that kind.
func NewDomainError(code, message string) *DomainError {
	kind := KindValidation
	for k, c := range defaultCodes {
		if c == code {
			kind = k
			break
		}
	}
	return &DomainError{Code: code, Message: message, Kind: kind}
}

// NewValidationError reports malformed or missing caller input
func NewValidationError(code, message string) *DomainError {
	if code == "" {
		code = CodeValidation
	}
	return &DomainError{Code: code, Message: message, Kind: KindValidation}
}

// NewInvalidTransitionError reports that the current state does not permit an operation
func NewInvalidTransitionError(message string) *DomainError {
	return &DomainError{Code: CodeInvalidTransition, Message: message, Kind: KindInvalidTransition}
}

// NewNotFoundError reports a missing resource
func NewNotFoundError(resource string) *DomainError {
	return &DomainError{Code: CodeNotFound, Message: resource + " not found", Kind: KindNotFound}
}

// NewPersistenceError wraps a storage failure. Operations failing this way are safe to retry.
func NewPersistenceError(op string, cause error) *DomainError {
	return &DomainError{Code: CodePersistence, Message: "failed to " + op, Kind: KindPersistence, cause: cause}
}

// NewCourierError wraps a courier integration failure
func NewCourierError(message string, cause error) *DomainError {
	return &DomainError{Code: CodeCourier, Message: message, Kind: KindCourier, cause: cause}
}

// Sentinels for errors.Is checks
var (
	ErrValidation        = NewValidationError(CodeValidation, "Invalid input provided")
	ErrInvalidTransition = NewInvalidTransitionError("Operation not allowed in current state")
	ErrNotFound          = NewNotFoundError("Resource")
	ErrCourier           = NewCourierError("Courier integration failed", nil)
	ErrPersistence       = NewPersistenceError("access storage", nil)
	ErrUnauthorized      = &DomainError{Code: CodeUnauthorized, Message: "Not authorized to perform this action", Kind: KindUnauthorized}
	ErrForbidden         = &DomainError{Code: CodeForbidden, Message: "Access to this resource is forbidden", Kind: KindForbidden}
)

// KindOf returns the kind of a DomainError in the chain, or "" for foreign errors
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
