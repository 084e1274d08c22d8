package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/example/collab-sessions/internal/lifecycle"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrInvalidTransition is returned when the session's status does not permit the action.
	ErrInvalidTransition = errors.New("application: invalid state transition")
	// ErrDependency is returned when a store or collaborator failed.
	ErrDependency = errors.New("application: dependency failure")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil || len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

func (v *ValidationError) merge(other *ValidationError) {
	if other == nil {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

// AuthorizationError explains why the principal was refused. It matches ErrUnauthorized.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	if e.Reason == "" {
		return ErrUnauthorized.Error()
	}
	return fmt.Sprintf("%s: %s", ErrUnauthorized.Error(), e.Reason)
}

func (e *AuthorizationError) Is(target error) bool {
	return target == ErrUnauthorized
}

func unauthorized(reason string) error {
	return &AuthorizationError{Reason: reason}
}

// StateError reports an action the session's current status does not permit.
// It matches ErrInvalidTransition.
type StateError struct {
	SessionID string
	Current   lifecycle.Status
	Action    lifecycle.Action
}

func (e *StateError) Error() string {
	return fmt.Sprintf("session %s: cannot %s while %s", e.SessionID, e.Action, e.Current)
}

func (e *StateError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// DependencyError wraps a failure of the store or another collaborator. It
// matches ErrDependency and unwraps to the cause.
type DependencyError struct {
	Op  string
	Err error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrDependency.Error(), e.Op, e.Err)
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}

func (e *DependencyError) Is(target error) bool {
	return target == ErrDependency
}
