package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by repo and service functions when the requested
// resource does not exist in the database.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned by service and workflow functions when input fails
// business rule validation (e.g. missing name, fewer than two waypoints).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrInvalidTransition is returned when a workflow action is not reachable
// from the current editor state.
var ErrInvalidTransition = errors.New("invalid transition")

// ErrBusy is returned while a persistence or geometry call is in flight.
var ErrBusy = errors.New("operation in progress")

// ErrSessionLocked is returned for every interaction after the inactivity
// supervisor has locked the session. Handlers map it to HTTP 423.
var ErrSessionLocked = errors.New("session locked")

// ErrUnauthenticated is returned when no valid session identity is present.
var ErrUnauthenticated = errors.New("unauthenticated")

// ErrSchemaRejected marks a write the backing schema refused because of a
// specific column. Use errors.As with *SchemaError to learn which one.
var ErrSchemaRejected = errors.New("schema rejected field")

// SchemaError reports that the store rejected a write because Field is not
// supported by its schema.
type SchemaError struct {
	Field string
	Err   error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrSchemaRejected, e.Field, e.Err)
}

// Is lets errors.Is(err, ErrSchemaRejected) match any SchemaError.
func (e *SchemaError) Is(target error) bool { return target == ErrSchemaRejected }

func (e *SchemaError) Unwrap() error { return e.Err }
