package payload

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is matching. The concrete errors below carry detail.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrMissingField     = errors.New("missing field")
	ErrUnsupportedKind  = errors.New("unsupported kind")
)

// ReasonLoginRequired is the single reason given for every guest rejection.
const ReasonLoginRequired = "upgrade requires login"

// PermissionDeniedError is returned when a guest asks for a gated option.
// Field names the offending input ("kind", "title", "expires_in",
// "max_scans"); Reason is the same for all of them.
type PermissionDeniedError struct {
	Reason string
	Field  string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied: %s", e.Reason)
}

func (e *PermissionDeniedError) Is(target error) bool { return target == ErrPermissionDenied }

// MissingFieldError is returned when a structurally required field is empty.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing field: %s", e.Field)
}

func (e *MissingFieldError) Is(target error) bool { return target == ErrMissingField }

// UnsupportedKindError is returned for a kind outside the closed set.
type UnsupportedKindError struct {
	Kind string
}

func (e *UnsupportedKindError) Error() string {
	return fmt.Sprintf("unsupported kind: %q", e.Kind)
}

func (e *UnsupportedKindError) Is(target error) bool { return target == ErrUnsupportedKind }

func denied(field string) error {
	return &PermissionDeniedError{Reason: ReasonLoginRequired, Field: field}
}
