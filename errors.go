package stixgraph

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Sentinel errors for common platform error conditions.
// These errors can be used with errors.Is() for error checking.
var (
	// ErrUnsupportedType indicates the entity type tag is not part of the
	// cyber-observable classification.
	ErrUnsupportedType = errors.New("observable type not supported")

	// ErrMissingInput indicates the expected type-specific input payload
	// was absent from the request.
	ErrMissingInput = errors.New("typed input missing")

	// ErrMalformedObservable indicates the observable input failed the
	// syntax check. The checker's diagnostic is attached as context.
	ErrMalformedObservable = errors.New("observable is not correctly formatted")

	// ErrNotFound indicates the referenced entity does not exist in the store.
	ErrNotFound = errors.New("entity not found")

	// ErrUnsupportedRelation indicates the relationship type is not a meta
	// relationship and cannot be edited through the restricted relation
	// operations.
	ErrUnsupportedRelation = errors.New("relation type not supported")

	// ErrForbiddenAccess indicates the actor is not allowed to perform the
	// operation. Raised by upstream authorization, surfaced unchanged here.
	ErrForbiddenAccess = errors.New("access forbidden")
)

// Error kinds categorize errors by their type.
const (
	// KindUnsupportedType represents rejections of unknown observable types.
	KindUnsupportedType = "unsupported_type"

	// KindMissingInput represents requests missing their typed payload.
	KindMissingInput = "missing_input"

	// KindMalformed represents syntax-check failures.
	KindMalformed = "malformed"

	// KindNotFound represents errors where an entity was not found.
	KindNotFound = "not_found"

	// KindUnsupportedRelation represents relation-type policy rejections.
	KindUnsupportedRelation = "unsupported_relation"

	// KindForbidden represents authorization failures.
	KindForbidden = "forbidden"

	// KindInternal represents internal platform errors.
	KindInternal = "internal"
)

// Error is a structured error type that wraps underlying errors with
// additional context about the operation that failed and the category
// of error.
//
// Error implements the error interface and supports error unwrapping,
// making it compatible with errors.Is() and errors.As().
//
// Example usage:
//
//	err := &stixgraph.Error{
//		Op:   "observable.Create",
//		Kind: stixgraph.KindUnsupportedType,
//		Err:  stixgraph.ErrUnsupportedType,
//	}
type Error struct {
	// Op is the operation that failed (e.g., "observable.Create", "export.Request").
	Op string

	// Kind categorizes the error (e.g., KindNotFound, KindMalformed).
	Kind string

	// Err is the underlying error that caused this error.
	Err error

	// Context provides additional context about the error (optional).
	// This can include entity ids, type tags, or checker diagnostics.
	Context map[string]any
}

// Error implements the error interface, returning a formatted error message
// that includes the operation, kind, and underlying error.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("stixgraph: %s: %s", e.Op, e.Kind)
	}

	if len(e.Context) > 0 {
		return fmt.Sprintf("stixgraph: %s (%s): %v [context: %+v]", e.Op, e.Kind, e.Err, e.Context)
	}

	return fmt.Sprintf("stixgraph: %s (%s): %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error, allowing errors.Is() and errors.As()
// to work correctly with wrapped errors.
func (e *Error) Unwrap() error {
	return e.Err
}

// kindSentinels maps each kind to its sentinel, so a structured error
// matches the sentinel of its category even when it wraps a lower-level
// cause (e.g. a store error) rather than the sentinel itself.
var kindSentinels = map[string]error{
	KindUnsupportedType:     ErrUnsupportedType,
	KindMissingInput:        ErrMissingInput,
	KindMalformed:           ErrMalformedObservable,
	KindNotFound:            ErrNotFound,
	KindUnsupportedRelation: ErrUnsupportedRelation,
	KindForbidden:           ErrForbiddenAccess,
}

// Is implements error matching for Error, allowing comparison based on
// the kind's sentinel, the underlying error, or the Error itself.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}

	if sentinel, ok := kindSentinels[e.Kind]; ok && target == sentinel {
		return true
	}

	// Check if target is an Error with matching Kind
	if t, ok := target.(*Error); ok {
		if t.Kind != "" && e.Kind == t.Kind {
			if t.Op == "" || e.Op == t.Op {
				return true
			}
		}
	}

	// Delegate to underlying error
	return errors.Is(e.Err, target)
}

// WithContext returns a new Error with the provided context added.
// This is useful for attaching entity ids or checker diagnostics to errors.
//
// Example:
//
//	err = err.WithContext(map[string]any{
//		"entity_type": "Mutex",
//		"diagnostic":  diag,
//	})
func (e *Error) WithContext(ctx map[string]any) *Error {
	newErr := *e
	if newErr.Context == nil {
		newErr.Context = make(map[string]any)
	}
	for k, v := range ctx {
		newErr.Context[k] = v
	}
	return &newErr
}

// NewUnsupportedTypeError creates a new Error with KindUnsupportedType.
func NewUnsupportedTypeError(op string, err error) *Error {
	return &Error{
		Op:   op,
		Kind: KindUnsupportedType,
		Err:  err,
	}
}

// NewMissingInputError creates a new Error with KindMissingInput.
func NewMissingInputError(op string, err error) *Error {
	return &Error{
		Op:   op,
		Kind: KindMissingInput,
		Err:  err,
	}
}

// NewMalformedError creates a new Error with KindMalformed.
func NewMalformedError(op string, err error) *Error {
	return &Error{
		Op:   op,
		Kind: KindMalformed,
		Err:  err,
	}
}

// NewNotFoundError creates a new Error with KindNotFound.
func NewNotFoundError(op string, err error) *Error {
	return &Error{
		Op:   op,
		Kind: KindNotFound,
		Err:  err,
	}
}

// NewUnsupportedRelationError creates a new Error with KindUnsupportedRelation.
func NewUnsupportedRelationError(op string, err error) *Error {
	return &Error{
		Op:   op,
		Kind: KindUnsupportedRelation,
		Err:  err,
	}
}

// NewForbiddenError creates a new Error with KindForbidden.
func NewForbiddenError(op string, err error) *Error {
	return &Error{
		Op:   op,
		Kind: KindForbidden,
		Err:  err,
	}
}

// NewInternalError creates a new Error with KindInternal.
func NewInternalError(op string, err error) *Error {
	return &Error{
		Op:   op,
		Kind: KindInternal,
		Err:  err,
	}
}

// CloseWithLog attempts to close the provided resource and logs any error
// at warning level. This is intended for use in defer statements to ensure
// cleanup errors are not silently ignored.
//
// The name parameter should describe the resource being closed (e.g.,
// "redis client", "connector registry"). If logger is nil, slog.Default()
// is used.
func CloseWithLog(closer io.Closer, logger *slog.Logger, name string) {
	if closer == nil {
		return
	}

	if logger == nil {
		logger = slog.Default()
	}

	if err := closer.Close(); err != nil {
		logger.Warn("failed to close resource",
			"resource", name,
			"error", err)
	}
}
