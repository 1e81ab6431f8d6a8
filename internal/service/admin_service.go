package service

import (
	"context"

	"devicemail/internal/domain"
	"devicemail/internal/dto"
)

// AdminService exposes device administration. Every method rejects callers
// that are not elevated with domain.ErrNotAdmin.
type AdminService interface {
	ListDevices(ctx context.Context, p *Principal) (*dto.AdminDeviceListResponse, error)
	ListLedger(ctx context.Context, p *Principal) ([]dto.LedgerEntryResponse, error)
	SetCapabilities(ctx context.Context, p *Principal, key domain.DeviceKey, r dto.SetCapabilitiesRequest, ip, ua string) (*dto.SetCapabilitiesResponse, error)
	BatchSetCapabilities(ctx context.Context, p *Principal, r dto.BatchSetCapabilitiesRequest, ip, ua string) ([]dto.SetCapabilitiesResponse, error)
	ForceLogout(ctx context.Context, p *Principal, key domain.DeviceKey, ip, ua string) (*dto.ForceLogoutResponse, error)
}
