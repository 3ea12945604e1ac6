// Package errs holds the error taxonomy shared by the engine, the store and
// the HTTP layer. Every error here is local in scope: none of them stops the
// process.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError reports malformed input rejected before any state changed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a referenced record missing at mutation time.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}

// StaleWriteError reports a remote write that failed after the local
// snapshot had already been updated. The local change has been rolled back.
type StaleWriteError struct {
	Op  string
	Err error
}

func (e *StaleWriteError) Error() string {
	return fmt.Sprintf("%s was not saved and has been reverted: %v", e.Op, e.Err)
}

func (e *StaleWriteError) Unwrap() error { return e.Err }

// SchemaDriftError reports a store missing an expected column even after
// the write was retried without it.
type SchemaDriftError struct {
	Table  string
	Column string
	Err    error
}

func (e *SchemaDriftError) Error() string {
	return fmt.Sprintf("table %s is missing column %s: %v", e.Table, e.Column, e.Err)
}

func (e *SchemaDriftError) Unwrap() error { return e.Err }

// ConflictError reports a write refused because it would violate an
// invariant held by the store, e.g. an overlapping booking.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return "conflict: " + e.Reason }

// Validation is shorthand for a *ValidationError.
func Validation(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NotFound is shorthand for a *NotFoundError.
func NotFound(kind, key string) error {
	return &NotFoundError{Kind: kind, Key: key}
}

// HTTPStatus maps an error onto the status code the API answers with.
func HTTPStatus(err error) int {
	var (
		validation *ValidationError
		notFound   *NotFoundError
		stale      *StaleWriteError
		conflict   *ConflictError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &conflict), errors.As(err, &stale):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
