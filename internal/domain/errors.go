package domain

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserDisabled       = errors.New("user disabled")
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrEmailTaken         = errors.New("email already registered")

	ErrDeviceNotFound = errors.New("device not found")

	// Authorization denials. These are expected outcomes, not failures.
	ErrNoActiveDevice           = errors.New("no active device")
	ErrDeviceNotFoundOrInactive = errors.New("device not found or inactive")
	ErrPermissionDenied         = errors.New("permission denied")

	ErrMessageNotFound = errors.New("message not found")
	ErrNotAdmin        = errors.New("admin privileges required")
)
