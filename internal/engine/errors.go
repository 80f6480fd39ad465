package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/stash/internal/effect"
)

// Error represents a database error with a stable code.
//
// Codes fall in two classes:
//   - configuration errors, returned from Open
//   - usage errors, returned from the procedure that misused the API
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Schema is the affected schema, if any.
	Schema string

	// Key is the affected entity key, if any.
	Key string

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes database errors.
type ErrorCode string

const (
	// ErrCodeInvalidSchemaDef indicates a malformed predefined schema.
	ErrCodeInvalidSchemaDef ErrorCode = "INVALID_SCHEMA_DEF"

	// ErrCodeSchemaMismatch indicates an entity handle used against a
	// schema that does not own it.
	ErrCodeSchemaMismatch ErrorCode = "SCHEMA_MISMATCH"

	// ErrCodeUnsupported indicates a natively asynchronous procedure or an
	// argument of an unsupported type.
	ErrCodeUnsupported ErrorCode = "UNSUPPORTED"

	// ErrCodeClosed indicates use of a closed database.
	ErrCodeClosed ErrorCode = "CLOSED"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Schema != "" && e.Key != "" {
		msg = fmt.Sprintf("%s (schema=%s, key=%s)", msg, e.Schema, e.Key)
	} else if e.Schema != "" {
		msg = fmt.Sprintf("%s (schema=%s)", msg, e.Schema)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// IsConfigError returns true if err was caused by invalid options.
func IsConfigError(err error) bool {
	return hasCode(err, ErrCodeInvalidSchemaDef)
}

// IsUsageError returns true if a procedure misused the API.
func IsUsageError(err error) bool {
	return hasCode(err, ErrCodeSchemaMismatch) || hasCode(err, ErrCodeUnsupported)
}

// IsClosed returns true if err was returned by a closed database.
func IsClosed(err error) bool {
	return hasCode(err, ErrCodeClosed)
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

func newSchemaMismatchError(schema string, e *Entity) *Error {
	return &Error{
		Code:    ErrCodeSchemaMismatch,
		Message: fmt.Sprintf("entity belongs to schema %q", e.schema),
		Schema:  schema,
		Key:     e.key,
	}
}

func newClosedError() *Error {
	return &Error{Code: ErrCodeClosed, Message: "database is closed", Err: effect.ErrLoopClosed}
}

// classify maps interpreter sentinels to coded errors.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	switch {
	case errors.Is(err, effect.ErrUnsupported):
		return &Error{Code: ErrCodeUnsupported, Message: "procedures must return a step sequence, not a future", Err: err}
	case errors.Is(err, effect.ErrLoopClosed):
		return newClosedError()
	}
	return err
}
