package store

import (
	"context"
	"time"

	"devicemail/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DeviceStore struct{ db *gorm.DB }

func (s *Store) Devices() *DeviceStore { return &DeviceStore{db: s.DB} }

// DeviceListing is a device joined with its owner's username for admin views.
type DeviceListing struct {
	domain.Device `gorm:"embedded"`
	OwnerUsername string `gorm:"column:owner_username"`
}

// FindActive returns the active device for (owner, label). If more than one
// active record exists the earliest created wins.
func (d *DeviceStore) FindActive(ctx context.Context, owner uuid.UUID, label string) (*domain.Device, error) {
	var device domain.Device
	err := d.db.WithContext(ctx).
		Where("user_id = ? AND label = ? AND active = ?", owner, label, true).
		Order("created_at asc").
		First(&device).Error
	if err != nil {
		return nil, translate(err)
	}
	return &device, nil
}

// Create inserts a fresh active device. Write capability is granted only if
// the owner is elevated at this moment; it is not re-derived later.
func (d *DeviceStore) Create(ctx context.Context, owner uuid.UUID, label string, elevated bool, at time.Time) (*domain.Device, error) {
	device := &domain.Device{
		Key:             uuid.New(),
		UserID:          owner,
		Label:           label,
		ReadCapability:  true,
		WriteCapability: elevated,
		Active:          true,
		CreatedAt:       at,
		LastSeenAt:      at,
	}
	if err := d.db.WithContext(ctx).Create(device).Error; err != nil {
		return nil, translate(err)
	}
	return device, nil
}

func (d *DeviceStore) Get(ctx context.Context, key uuid.UUID) (*domain.Device, error) {
	var device domain.Device
	if err := d.db.WithContext(ctx).First(&device, "device_key = ?", key).Error; err != nil {
		return nil, translate(err)
	}
	return &device, nil
}

func (d *DeviceStore) GetForOwner(ctx context.Context, key, owner uuid.UUID) (*domain.Device, error) {
	var device domain.Device
	if err := d.db.WithContext(ctx).First(&device, "device_key = ? AND user_id = ?", key, owner).Error; err != nil {
		return nil, translate(err)
	}
	return &device, nil
}

// Touch moves last_seen_at on an active record. It reports 0 when the record
// is gone or was deactivated since it was read.
func (d *DeviceStore) Touch(ctx context.Context, key uuid.UUID, at time.Time) (int64, error) {
	tx := d.db.WithContext(ctx).
		Model(&domain.Device{}).
		Where("device_key = ? AND active = ?", key, true).
		Update("last_seen_at", at)
	return tx.RowsAffected, translate(tx.Error)
}

func (d *DeviceStore) SetActive(ctx context.Context, key uuid.UUID, active bool) (int64, error) {
	tx := d.db.WithContext(ctx).
		Model(&domain.Device{}).
		Where("device_key = ?", key).
		Update("active", active)
	return tx.RowsAffected, translate(tx.Error)
}

// SetCapabilities updates whichever flags are non-nil.
func (d *DeviceStore) SetCapabilities(ctx context.Context, key uuid.UUID, read, write *bool) (int64, error) {
	updates := map[string]any{}
	if read != nil {
		updates["read_capability"] = *read
	}
	if write != nil {
		updates["write_capability"] = *write
	}
	if len(updates) == 0 {
		var n int64
		err := d.db.WithContext(ctx).Model(&domain.Device{}).Where("device_key = ?", key).Count(&n).Error
		return n, err
	}
	tx := d.db.WithContext(ctx).
		Model(&domain.Device{}).
		Where("device_key = ?", key).
		Updates(updates)
	return tx.RowsAffected, tx.Error
}

// PurgeStale deactivates every active device not seen within maxAge of now.
// Already inactive records are never touched, so repeated runs are no-ops.
func (d *DeviceStore) PurgeStale(ctx context.Context, maxAge time.Duration, now time.Time) (int64, error) {
	cutoff := now.Add(-maxAge)
	tx := d.db.WithContext(ctx).
		Model(&domain.Device{}).
		Where("active = ? AND last_seen_at < ?", true, cutoff).
		Update("active", false)
	return tx.RowsAffected, tx.Error
}

func (d *DeviceStore) ListActiveForUser(ctx context.Context, owner uuid.UUID) ([]*domain.Device, error) {
	var devices []*domain.Device
	err := d.db.WithContext(ctx).
		Where("user_id = ? AND active = ?", owner, true).
		Order("last_seen_at desc").
		Find(&devices).Error
	if err != nil {
		return nil, err
	}
	return devices, nil
}

// ListAll returns every device, most recently seen first.
func (d *DeviceStore) ListAll(ctx context.Context) ([]DeviceListing, error) {
	var rows []DeviceListing
	err := d.db.WithContext(ctx).
		Table("devices").
		Select("devices.*, users.username AS owner_username").
		Joins("LEFT JOIN users ON users.id = devices.user_id").
		Order("devices.last_seen_at desc").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
