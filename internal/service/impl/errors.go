package impl

import (
	"errors"

	"devicemail/internal/domain"
)

var (
	ErrEmptyPassword   = errors.New("empty password")
	ErrEmptyCredential = errors.New("empty credential(s)")
	ErrEmptyUsername   = errors.New("empty username")
	ErrPasswordLength  = errors.New("password too short")
	ErrInvalidToken    = errors.New("invalid token")
	ErrSessionInactive = errors.New("session expired or revoked")
	ErrValidation      = errors.New("validation failed")
)

const minPasswordLength = 8

// ValidationError is a field-level input problem on compose or reply.
// It matches ErrValidation with errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// IsDenial reports whether err is one of the gate's expected denials.
func IsDenial(err error) bool {
	return errors.Is(err, domain.ErrNoActiveDevice) ||
		errors.Is(err, domain.ErrDeviceNotFoundOrInactive) ||
		errors.Is(err, domain.ErrPermissionDenied)
}

// CapabilityDenied is a gate denial for a missing capability. It unwraps to
// domain.ErrPermissionDenied. ShowAdminLink is set for elevated users denied
// write, who can grant it to themselves.
type CapabilityDenied struct {
	Capability    domain.Capability
	ShowAdminLink bool
}

func (e *CapabilityDenied) Error() string { return string(e.Capability) + " permission denied" }

func (e *CapabilityDenied) Unwrap() error { return domain.ErrPermissionDenied }
