package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Sentinel errors. Typed errors below unwrap to one of these so callers can
// branch with errors.Is regardless of the detail attached.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLockedOut          = errors.New("login locked out")
	ErrAccountBlocked     = errors.New("account blocked")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrCapacityExceeded   = errors.New("department capacity exceeded")
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrCodeSpaceExhausted = errors.New("no free pickup code")
	ErrUnknownRole        = errors.New("unknown role")
	ErrAlreadyExists      = errors.New("already exists")
)

// LockedOutError is returned while the login lockout window is open.
type LockedOutError struct {
	Until     time.Time
	Remaining time.Duration
}

func (e *LockedOutError) Error() string {
	return fmt.Sprintf("login locked out for %s", e.Remaining.Round(time.Second))
}

func (e *LockedOutError) Unwrap() error { return ErrLockedOut }

// RetryAfterSeconds rounds the remaining lockout up to whole seconds.
func (e *LockedOutError) RetryAfterSeconds() int {
	secs := int(e.Remaining / time.Second)
	if e.Remaining%time.Second != 0 {
		secs++
	}
	return secs
}

// InvalidCredentialsError carries how many attempts remain before lockout.
type InvalidCredentialsError struct {
	RemainingAttempts int
}

func (e *InvalidCredentialsError) Error() string {
	return fmt.Sprintf("invalid credentials, %d attempts remaining", e.RemainingAttempts)
}

func (e *InvalidCredentialsError) Unwrap() error { return ErrInvalidCredentials }

// CapacityError reports a full department.
type CapacityError struct {
	Department Department
	Limit      int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("department %s is full (limit %d)", e.Department, e.Limit)
}

func (e *CapacityError) Unwrap() error { return ErrCapacityExceeded }

// PermissionDeniedError names the role and the action it may not perform.
type PermissionDeniedError struct {
	Role   string
	Action string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("role %q may not %s", e.Role, e.Action)
}

func (e *PermissionDeniedError) Unwrap() error { return ErrPermissionDenied }

// ValidationError collects per-field problems.
type ValidationError struct {
	Fields map[string]string
}

// Add records a problem with field. The first message for a field wins.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

// HasErrors reports whether any field was recorded.
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ErrorKind classifies an error for log fields and metrics labels.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrLockedOut):
		return "locked_out"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrAccountBlocked):
		return "account_blocked"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrCodeSpaceExhausted):
		return "code_space_exhausted"
	case errors.Is(err, ErrUnknownRole):
		return "unknown_role"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	default:
		return "internal"
	}
}
