package dto

import "time"

type DeviceResponse struct {
	DeviceKey       string    `json:"deviceKey"`
	Label           string    `json:"label"`
	ReadCapability  bool      `json:"readCapability"`
	WriteCapability bool      `json:"writeCapability"`
	Active          bool      `json:"active"`
	CanRead         bool      `json:"canRead"`
	CanWrite        bool      `json:"canWrite"`
	CreatedAt       time.Time `json:"createdAt"`
	LastSeenAt      time.Time `json:"lastSeenAt"`
}

type ProfileResponse struct {
	UserID        string           `json:"userId"`
	Username      string           `json:"username"`
	CurrentDevice *DeviceResponse  `json:"currentDevice,omitempty"`
	ActiveDevices []DeviceResponse `json:"activeDevices"`
	DeviceCount   int              `json:"deviceCount"`
}

type CheckPermissionResponse struct {
	CanRead    bool   `json:"can_read"`
	CanWrite   bool   `json:"can_write"`
	DeviceName string `json:"device_name"`
}

type AdminDeviceResponse struct {
	DeviceResponse
	UserID        string `json:"userId"`
	OwnerUsername string `json:"ownerUsername,omitempty"`
	Mirrored      bool   `json:"mirrored"`
}

type AdminDeviceListResponse struct {
	Devices     []AdminDeviceResponse `json:"devices"`
	DeviceCount int                   `json:"deviceCount"`
	Purged      int64                 `json:"purged"`
}

type SetCapabilitiesRequest struct {
	Read  *bool `json:"read,omitempty"`
	Write *bool `json:"write,omitempty"`
}

type BatchCapabilityUpdate struct {
	DeviceKey string `json:"deviceKey"`
	Read      *bool  `json:"read,omitempty"`
	Write     *bool  `json:"write,omitempty"`
}

type BatchSetCapabilitiesRequest struct {
	Updates []BatchCapabilityUpdate `json:"updates"`
}

type SetCapabilitiesResponse struct {
	DeviceKey string `json:"deviceKey"`
	Updated   bool   `json:"updated"`
	Mirrored  bool   `json:"mirrored"`
}

type ForceLogoutResponse struct {
	DeviceKey     string `json:"deviceKey"`
	Deactivated   int64  `json:"deactivated"`
	LedgerRemoved bool   `json:"ledgerRemoved"`
}

type LedgerEntryResponse struct {
	DeviceID        string `json:"device_id"`
	DeviceName      string `json:"device_name"`
	UserID          string `json:"user_id"`
	ReadPermission  bool   `json:"read_permission"`
	WritePermission bool   `json:"write_permission"`
	IsActive        bool   `json:"is_active"`
}
