package service

import (
	"context"

	"devicemail/internal/domain"
)

// DeviceService manages the lifecycle of device records around login and logout.
type DeviceService interface {
	// ResolveOrCreate reuses the active record for (user, label) or creates one.
	ResolveOrCreate(ctx context.Context, user *domain.User, label string) (device *domain.Device, created bool, err error)
	// Login resolves the device and makes sure it is active before it is bound to a session.
	Login(ctx context.Context, user *domain.User, label string) (device *domain.Device, created bool, err error)
	// Logout deactivates the device if key belongs to owner. Unknown keys are not an error.
	Logout(ctx context.Context, key domain.DeviceKey, owner domain.UserID) error
}

// Gate authorizes an action against the device bound to a session.
type Gate interface {
	// Authorize returns the device and its verdict. Denials are reported as
	// domain.ErrNoActiveDevice, domain.ErrDeviceNotFoundOrInactive or
	// domain.ErrPermissionDenied; on ErrPermissionDenied the device and
	// verdict are still returned.
	Authorize(ctx context.Context, sessionKey *domain.DeviceKey, user *domain.User, required domain.Capability) (*domain.Device, domain.Verdict, error)
}
