package service

import (
	"context"

	"devicemail/internal/domain"
	"devicemail/internal/dto"
)

type TokenService interface {
	// Issue creates a session bound to deviceKey and returns access and refresh tokens.
	Issue(ctx context.Context, user *domain.User, deviceKey *domain.DeviceKey, ip, ua string) (*dto.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string, ip, ua string) (*dto.TokenResponse, error)
	VerifyAccess(ctx context.Context, accessToken string) (*AccessIdentity, error)
	RevokeSession(ctx context.Context, sessionID domain.SessionID) error
}
