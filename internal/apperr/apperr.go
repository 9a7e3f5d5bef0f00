// Package apperr holds the error taxonomy shared by the stores, the services
// and the HTTP layer. Every failure the core returns either is, or wraps, one
// of the sentinels below so callers can branch with errors.Is.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrInvalidField indicates a malformed or missing party field.
	ErrInvalidField = errors.New("invalid field")

	// ErrDuplicateContact indicates another party already uses the contact number.
	ErrDuplicateContact = errors.New("contact number already in use")

	// ErrNotFound indicates the party addressed by a party operation does not exist.
	ErrNotFound = errors.New("party not found")

	// ErrPartyNotFound indicates the party scoping an entry operation does not exist.
	ErrPartyNotFound = errors.New("party not found for entry operation")

	// ErrEntryNotFound indicates no entry exists with the requested identifier.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrEntryNotOwned indicates the entry exists but belongs to another party.
	ErrEntryNotOwned = errors.New("entry does not belong to party")

	ErrInvalidKind        = errors.New("invalid entry kind")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDescription = errors.New("invalid description")

	// ErrTimeout indicates the caller's deadline expired before the store answered.
	ErrTimeout = errors.New("operation timed out")

	// ErrStoreUnavailable indicates a transient store failure. The core never
	// retries; the caller decides.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// FieldError describes one violated field.
type FieldError struct {
	Field   string
	Message string
	Err     error
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e FieldError) Unwrap() error { return e.Err }

// ValidationError aggregates every violated field of one request so the UI
// can render all messages at once.
type ValidationError struct {
	Fields []FieldError
}

// Add records a violation.
func (v *ValidationError) Add(field string, err error, message string) {
	v.Fields = append(v.Fields, FieldError{Field: field, Message: message, Err: err})
}

// OrNil returns nil when nothing was recorded.
func (v *ValidationError) OrNil() error {
	if v == nil || len(v.Fields) == 0 {
		return nil
	}
	return v
}

func (v *ValidationError) Error() string {
	parts := make([]string, 0, len(v.Fields))
	for _, f := range v.Fields {
		parts = append(parts, f.Error())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Unwrap exposes each field's sentinel to errors.Is.
func (v *ValidationError) Unwrap() []error {
	errs := make([]error, 0, len(v.Fields))
	for _, f := range v.Fields {
		errs = append(errs, f.Err)
	}
	return errs
}

var known = []error{
	ErrInvalidField,
	ErrDuplicateContact,
	ErrNotFound,
	ErrPartyNotFound,
	ErrEntryNotFound,
	ErrEntryNotOwned,
	ErrInvalidKind,
	ErrInvalidAmount,
	ErrInvalidDescription,
	ErrTimeout,
	ErrStoreUnavailable,
}

// FromStore classifies an error returned by a store call. Domain sentinels
// pass through untouched, an expired deadline becomes ErrTimeout and any other
// failure is reported as ErrStoreUnavailable wrapping the cause.
func FromStore(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range known {
		if errors.Is(err, k) {
			return err
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// Kind returns a stable machine-readable name for err.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return "validation_failed"
	}
	switch {
	case errors.Is(err, ErrDuplicateContact):
		return "duplicate_contact"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPartyNotFound):
		return "party_not_found"
	case errors.Is(err, ErrEntryNotFound):
		return "entry_not_found"
	case errors.Is(err, ErrEntryNotOwned):
		return "entry_not_owned"
	case errors.Is(err, ErrInvalidField):
		return "invalid_field"
	case errors.Is(err, ErrInvalidKind):
		return "invalid_kind"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInvalidDescription):
		return "invalid_description"
	}
	return "internal"
}

// FieldKind names a single field sentinel.
func FieldKind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidKind):
		return "invalid_kind"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInvalidDescription):
		return "invalid_description"
	}
	return "invalid_field"
}

// HTTPStatus maps err onto a response status for the HTTP layer.
func HTTPStatus(err error) int {
	switch Kind(err) {
	case "validation_failed", "invalid_field", "invalid_kind", "invalid_amount", "invalid_description":
		return http.StatusBadRequest
	case "duplicate_contact":
		return http.StatusConflict
	case "not_found", "party_not_found", "entry_not_found":
		return http.StatusNotFound
	case "entry_not_owned":
		return http.StatusForbidden
	case "timeout":
		return http.StatusGatewayTimeout
	case "store_unavailable":
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
