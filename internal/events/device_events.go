package events

import "time"

const (
	ActionDeviceRegistered         = "device.registered"
	ActionDevicePermissionsChanged = "device.permissions_changed"
	ActionDeviceForcedLogout       = "device.forced_logout"
)

type DeviceRegistered struct {
	DeviceKey string    `json:"deviceKey"`
	UserID    string    `json:"userId"`
	Label     string    `json:"label"`
	Write     bool      `json:"write"`
	At        time.Time `json:"at"`
}

type DevicePermissionsChanged struct {
	DeviceKey string    `json:"deviceKey"`
	Read      *bool     `json:"read,omitempty"`
	Write     *bool     `json:"write,omitempty"`
	Mirrored  bool      `json:"mirrored"`
	At        time.Time `json:"at"`
}

type DeviceForcedLogout struct {
	DeviceKey     string    `json:"deviceKey"`
	Deactivated   int64     `json:"deactivated"`
	LedgerRemoved bool      `json:"ledgerRemoved"`
	At            time.Time `json:"at"`
}
