package service

import (
	"context"

	"devicemail/internal/dto"
)

type AuthService interface {
	Register(ctx context.Context, r dto.RegisterRequest, ip, ua string) (*dto.RegisterResponse, error)
	Login(ctx context.Context, r dto.LoginRequest, ip, ua string) (*dto.LoginResponse, error)
	// LoginStatus tells an already signed-in caller where to go, if their
	// bound device can still read.
	LoginStatus(ctx context.Context, p *Principal) (*dto.LoginStatusResponse, error)
	Logout(ctx context.Context, p *Principal) error
	Authenticate(ctx context.Context, accessToken string) (*Principal, error)
	Profile(ctx context.Context, p *Principal) (*dto.ProfileResponse, error)
	CheckPermission(ctx context.Context, p *Principal) (*dto.CheckPermissionResponse, error)
}
