package domain

import "time"

// Device is the authoritative record binding one user, one client label and
// two capability flags. At most one active record exists per (UserID, Label).
//
// The stored flags are not authoritative on their own; use Evaluate.
type Device struct {
	Key             DeviceKey `gorm:"column:device_key;type:uuid;primaryKey" db:"device_key" json:"deviceKey"`
	UserID          UserID    `gorm:"type:uuid;not null;index;uniqueIndex:ux_devices_active_label,priority:1,where:active" db:"user_id" json:"userId"`
	Label           string    `gorm:"type:text;not null;uniqueIndex:ux_devices_active_label,priority:2,where:active" db:"label" json:"label"`
	ReadCapability  bool      `gorm:"not null" db:"read_capability" json:"readCapability"`
	WriteCapability bool      `gorm:"not null" db:"write_capability" json:"writeCapability"`
	Active          bool      `gorm:"not null;index" db:"active" json:"active"`
	CreatedAt       time.Time `gorm:"not null" db:"created_at" json:"createdAt"`
	LastSeenAt      time.Time `gorm:"not null;index" db:"last_seen_at" json:"lastSeenAt"`
}

func (Device) TableName() string { return "devices" }
