package domain

import "errors"

var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("resource conflict")

	// ErrNoUserContext means an audited operation was invoked without an
	// acting user in the request context. This is a usage error in the
	// calling code, not a runtime condition; it must fail loudly instead
	// of silently skipping the audit label.
	ErrNoUserContext = errors.New("no user context found")
)

// ValidationError represents a field-level validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
