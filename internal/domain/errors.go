package domain

import (
	"errors"
	"fmt"
)

// Error kinds, matched with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrGeometry   = errors.New("degenerate geometry")
	ErrStorage    = errors.New("storage failed")
)

// ValidationError reports bad input: an empty required field, a
// self-connection, oversized input or a malformed document.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError reports a floor or marker id that does not exist.
type NotFoundError struct {
	Kind string // "floor" | "marker" | "revision"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// GeometryError reports a container rect that cannot be mapped.
type GeometryError struct {
	Reason string
}

func (e *GeometryError) Error() string { return "geometry: " + e.Reason }

func (e *GeometryError) Is(target error) bool { return target == ErrGeometry }

// StorageError reports a failed durable read or write. The in-memory
// document stays authoritative.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func FloorNotFound(id int) error {
	return &NotFoundError{Kind: "floor", ID: FloorKey(id)}
}

func MarkerNotFound(id string) error {
	return &NotFoundError{Kind: "marker", ID: id}
}
