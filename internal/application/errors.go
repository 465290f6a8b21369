package application

import (
	"errors"
	"fmt"
	"strings"

	"github.com/example/room-scheduler/internal/scheduler"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested room or reservation does not exist.
	ErrNotFound = errors.New("application: not found")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error. The first message per field wins.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

func validationFailure(field, message string) *ValidationError {
	vErr := &ValidationError{}
	vErr.add(field, message)
	return vErr
}

// DateConflict pairs a requested date with the first active reservation it overlaps.
type DateConflict struct {
	Date        scheduler.Date
	Reservation scheduler.Reservation
}

// ConflictError reports that one or more requested dates overlap active reservations.
// Nothing is written when it is returned.
type ConflictError struct {
	Conflicts []DateConflict
}

// Error implements the error interface.
func (c *ConflictError) Error() string {
	if c == nil {
		return ""
	}
	dates := c.Dates()
	parts := make([]string, len(dates))
	for i, d := range dates {
		parts[i] = d.String()
	}
	return "reservation conflicts on " + strings.Join(parts, ", ")
}

// Dates lists the conflicting dates in request order.
func (c *ConflictError) Dates() []scheduler.Date {
	if c == nil {
		return nil
	}
	out := make([]scheduler.Date, len(c.Conflicts))
	for i, conflict := range c.Conflicts {
		out[i] = conflict.Date
	}
	return out
}

// PersistenceError wraps a store or lock failure. The cause is kept unchanged.
type PersistenceError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (p *PersistenceError) Error() string {
	if p == nil {
		return ""
	}
	return fmt.Sprintf("application: %s failed: %v", p.Op, p.Err)
}

// Unwrap exposes the underlying store error.
func (p *PersistenceError) Unwrap() error {
	if p == nil {
		return nil
	}
	return p.Err
}
