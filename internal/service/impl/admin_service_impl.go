package impl

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"devicemail/internal/domain"
	"devicemail/internal/dto"
	"devicemail/internal/events"
	"devicemail/internal/observability/metrics"
	"devicemail/internal/observability/middleware"
	"devicemail/internal/service"
	"devicemail/internal/store"

	"github.com/google/uuid"
)

var _ service.AdminService = (*AdminServiceImpl)(nil)

// AdminServiceImpl treats the device store as the source of truth. The
// ledger is written after the store and its failures are reported, not
// returned.
type AdminServiceImpl struct {
	store  *store.Store
	ledger deviceMirror
	maxAge time.Duration
	now    func() time.Time
}

func NewAdminServiceImpl(st *store.Store, mirror deviceMirror, maxAge time.Duration) *AdminServiceImpl {
	if maxAge <= 0 {
		maxAge = domain.DeviceMaxAge
	}
	return &AdminServiceImpl{
		store:  st,
		ledger: mirror,
		maxAge: maxAge,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func requireAdmin(p *service.Principal) error {
	if p == nil || !p.User.Elevated() {
		return domain.ErrNotAdmin
	}
	return nil
}

// ListDevices deactivates stale devices and then lists every device record.
func (a *AdminServiceImpl) ListDevices(ctx context.Context, p *service.Principal) (*dto.AdminDeviceListResponse, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	now := a.now()
	purged, err := a.store.Devices().PurgeStale(ctx, a.maxAge, now)
	if err != nil {
		return nil, err
	}
	if purged > 0 {
		metrics.StaleDevicesPurgedTotal.Add(float64(purged))
		slog.Info("stale devices deactivated", append([]any{"count", purged}, middleware.LogAttrs(ctx)...)...)
	}

	rows, err := a.store.Devices().ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := &dto.AdminDeviceListResponse{
		Devices: make([]dto.AdminDeviceResponse, 0, len(rows)),
		Purged:  purged,
	}
	for i := range rows {
		dev := &rows[i].Device
		out.Devices = append(out.Devices, dto.AdminDeviceResponse{
			DeviceResponse: deviceResponse(dev, now, a.maxAge),
			UserID:         dev.UserID.String(),
			OwnerUsername:  rows[i].OwnerUsername,
			Mirrored:       a.mirrored(dev.Key),
		})
	}
	out.DeviceCount = len(out.Devices)
	return out, nil
}

func (a *AdminServiceImpl) ListLedger(_ context.Context, p *service.Principal) ([]dto.LedgerEntryResponse, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	out := []dto.LedgerEntryResponse{}
	if a.ledger == nil {
		return out, nil
	}
	for _, e := range a.ledger.List() {
		out = append(out, dto.LedgerEntryResponse{
			DeviceID:        e.DeviceID,
			DeviceName:      e.DeviceName,
			UserID:          e.UserID,
			ReadPermission:  e.ReadPermission,
			WritePermission: e.WritePermission,
			IsActive:        e.IsActive,
		})
	}
	return out, nil
}

func (a *AdminServiceImpl) SetCapabilities(ctx context.Context, p *service.Principal, key domain.DeviceKey, r dto.SetCapabilitiesRequest, ip, ua string) (*dto.SetCapabilitiesResponse, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	n, err := a.store.Devices().SetCapabilities(ctx, key, r.Read, r.Write)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, domain.ErrDeviceNotFound
	}

	mirrored := false
	if a.ledger != nil {
		mirrored, err = a.ledger.UpdatePermission(ctx, key.String(), r.Read, r.Write)
		if err != nil {
			slog.Warn("ledger permission update failed", append([]any{"device_key", key, "error", err}, middleware.LogAttrs(ctx)...)...)
			mirrored = false
		}
	}

	a.audit(ctx, p, events.ActionDevicePermissionsChanged, events.DevicePermissionsChanged{
		DeviceKey: key.String(),
		Read:      r.Read,
		Write:     r.Write,
		Mirrored:  mirrored,
		At:        a.now(),
	}, ip, ua)

	return &dto.SetCapabilitiesResponse{DeviceKey: key.String(), Updated: true, Mirrored: mirrored}, nil
}

// BatchSetCapabilities applies each update in order. Unknown devices are
// reported as not updated; a malformed key fails the whole batch up front.
func (a *AdminServiceImpl) BatchSetCapabilities(ctx context.Context, p *service.Principal, r dto.BatchSetCapabilitiesRequest, ip, ua string) ([]dto.SetCapabilitiesResponse, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	keys := make([]domain.DeviceKey, len(r.Updates))
	for i, u := range r.Updates {
		key, err := uuid.Parse(u.DeviceKey)
		if err != nil {
			return nil, invalid("deviceKey", "invalid device key: "+u.DeviceKey)
		}
		keys[i] = key
	}

	out := make([]dto.SetCapabilitiesResponse, 0, len(r.Updates))
	for i, u := range r.Updates {
		res, err := a.SetCapabilities(ctx, p, keys[i], dto.SetCapabilitiesRequest{Read: u.Read, Write: u.Write}, ip, ua)
		if errors.Is(err, domain.ErrDeviceNotFound) {
			out = append(out, dto.SetCapabilitiesResponse{DeviceKey: keys[i].String()})
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, nil
}

// ForceLogout deactivates the device record whoever owns it and removes the
// ledger entry. Sessions bound to the device stay alive; the gate rejects them.
func (a *AdminServiceImpl) ForceLogout(ctx context.Context, p *service.Principal, key domain.DeviceKey, ip, ua string) (*dto.ForceLogoutResponse, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	n, err := a.store.Devices().SetActive(ctx, key, false)
	if err != nil {
		return nil, err
	}

	removed := false
	if a.ledger != nil {
		removed, err = a.ledger.Remove(ctx, key.String())
		if err != nil {
			slog.Warn("ledger remove failed", append([]any{"device_key", key, "error", err}, middleware.LogAttrs(ctx)...)...)
			removed = false
		}
	}
	if n == 0 && !removed {
		return nil, domain.ErrDeviceNotFound
	}

	a.audit(ctx, p, events.ActionDeviceForcedLogout, events.DeviceForcedLogout{
		DeviceKey:     key.String(),
		Deactivated:   n,
		LedgerRemoved: removed,
		At:            a.now(),
	}, ip, ua)

	return &dto.ForceLogoutResponse{DeviceKey: key.String(), Deactivated: n, LedgerRemoved: removed}, nil
}

func (a *AdminServiceImpl) mirrored(key domain.DeviceKey) bool {
	if a.ledger == nil {
		return false
	}
	_, ok := a.ledger.Get(key.String())
	return ok
}

func (a *AdminServiceImpl) audit(ctx context.Context, p *service.Principal, action string, payload any, ip, ua string) {
	actor := p.UserID()
	if err := a.store.Audit().Record(ctx, &actor, action, payload, normalizeIP(ip), ua); err != nil {
		slog.Warn("audit write failed", append([]any{"action", action, "error", err}, middleware.LogAttrs(ctx)...)...)
	}
}
