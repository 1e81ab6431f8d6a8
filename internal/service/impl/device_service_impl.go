package impl

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"devicemail/internal/domain"
	"devicemail/internal/observability/metrics"
	"devicemail/internal/service"
	"devicemail/internal/store"
)

var _ service.DeviceService = (*DeviceServiceImpl)(nil)

type DeviceServiceImpl struct {
	store *store.Store
	now   func() time.Time
}

func NewDeviceServiceImpl(st *store.Store) *DeviceServiceImpl {
	return &DeviceServiceImpl{
		store: st,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (d *DeviceServiceImpl) ResolveOrCreate(ctx context.Context, user *domain.User, label string) (*domain.Device, bool, error) {
	if err := d.ensureStore(); err != nil {
		return nil, false, err
	}
	if user == nil {
		return nil, false, domain.ErrUserNotFound
	}

	dev, err := d.reuse(ctx, user, label)
	switch {
	case err == nil:
		metrics.DeviceResolutionsTotal.WithLabelValues("reused").Inc()
		return dev, false, nil
	case !errors.Is(err, store.ErrRecordNotFound):
		return nil, false, err
	}

	// Write is granted from the owner's privilege right now and never re-derived.
	dev, err = d.store.Devices().Create(ctx, user.ID, label, user.Elevated(), d.nowTime())
	if errors.Is(err, store.ErrDuplicate) {
		// A concurrent login for the same pair won the insert; use its record.
		dev, err = d.reuse(ctx, user, label)
		if err != nil {
			return nil, false, err
		}
		metrics.DeviceResolutionsTotal.WithLabelValues("reused").Inc()
		return dev, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	metrics.DeviceResolutionsTotal.WithLabelValues("created").Inc()
	slog.Info("device created", "device_key", dev.Key, "user_id", user.ID, "write", dev.WriteCapability)
	return dev, true, nil
}

// reuse finds the active record for (user, label) and touches it. A record
// deactivated in between counts as not found.
func (d *DeviceServiceImpl) reuse(ctx context.Context, user *domain.User, label string) (*domain.Device, error) {
	dev, err := d.store.Devices().FindActive(ctx, user.ID, label)
	if err != nil {
		return nil, err
	}
	now := d.nowTime()
	if now.Before(dev.LastSeenAt) {
		now = dev.LastSeenAt
	}
	n, err := d.store.Devices().Touch(ctx, dev.Key, now)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// Deactivated between the read and the touch, e.g. by a stale purge.
		return nil, store.ErrRecordNotFound
	}
	dev.LastSeenAt = now
	return dev, nil
}

func (d *DeviceServiceImpl) Login(ctx context.Context, user *domain.User, label string) (*domain.Device, bool, error) {
	dev, created, err := d.ResolveOrCreate(ctx, user, label)
	if err != nil {
		return nil, false, err
	}
	if !dev.Active {
		if _, err := d.store.Devices().SetActive(ctx, dev.Key, true); err != nil {
			return nil, false, err
		}
		dev.Active = true
	}
	return dev, created, nil
}

func (d *DeviceServiceImpl) Logout(ctx context.Context, key domain.DeviceKey, owner domain.UserID) error {
	if err := d.ensureStore(); err != nil {
		return err
	}
	dev, err := d.store.Devices().GetForOwner(ctx, key, owner)
	if errors.Is(err, store.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := d.store.Devices().SetActive(ctx, dev.Key, false); err != nil {
		return err
	}
	return nil
}

func (d *DeviceServiceImpl) ensureStore() error {
	if d.store == nil {
		return errors.New("device store not configured")
	}
	return nil
}

func (d *DeviceServiceImpl) nowTime() time.Time {
	if d.now != nil {
		return d.now()
	}
	return time.Now().UTC()
}
