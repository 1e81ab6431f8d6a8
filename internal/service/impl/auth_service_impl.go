package impl

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"devicemail/internal/domain"
	"devicemail/internal/dto"
	"devicemail/internal/events"
	"devicemail/internal/ledger"
	"devicemail/internal/netutil"
	"devicemail/internal/observability/metrics"
	"devicemail/internal/observability/middleware"
	"devicemail/internal/service"
	"devicemail/internal/store"

	"github.com/google/uuid"
)

var _ service.AuthService = (*AuthServiceImpl)(nil)

const (
	adminRedirect = "/admin/"
	inboxRedirect = "/emails/inbox"
	sentRedirect  = "/emails/sent"
	loginRedirect = "/accounts/login"
)

// deviceMirror is the secondary ledger as seen by services.
type deviceMirror interface {
	Add(ctx context.Context, userID, deviceID, deviceName string, isAdmin bool) (bool, error)
	Remove(ctx context.Context, deviceID string) (bool, error)
	UpdatePermission(ctx context.Context, deviceID string, read, write *bool) (bool, error)
	Get(deviceID string) (ledger.Entry, bool)
	List() []ledger.Entry
}

var _ deviceMirror = (*ledger.Ledger)(nil)

type AuthServiceImpl struct {
	Store           *store.Store
	PasswordService service.PasswordService
	TService        service.TokenService
	Devices         service.DeviceService
	Gate            service.Gate
	Ledger          deviceMirror
	maxAge          time.Duration
	now             func() time.Time
}

func NewAuthServiceImpl(
	st *store.Store,
	passwordService service.PasswordService,
	tokenService service.TokenService,
	devices service.DeviceService,
	gate service.Gate,
	mirror deviceMirror,
	maxAge time.Duration,
) *AuthServiceImpl {
	if maxAge <= 0 {
		maxAge = domain.DeviceMaxAge
	}
	return &AuthServiceImpl{
		Store:           st,
		PasswordService: passwordService,
		TService:        tokenService,
		Devices:         devices,
		Gate:            gate,
		Ledger:          mirror,
		maxAge:          maxAge,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func (a *AuthServiceImpl) Register(ctx context.Context, r dto.RegisterRequest, ip, ua string) (*dto.RegisterResponse, error) {
	result := "success"
	defer func() {
		metrics.AuthRegistrationsTotal.WithLabelValues(result).Inc()
	}()

	username := strings.TrimSpace(r.Username)
	email := strings.TrimSpace(r.Email)
	if username == "" {
		result = "invalid"
		return nil, ErrEmptyUsername
	}
	if len(r.Password) < minPasswordLength {
		result = "invalid"
		return nil, ErrPasswordLength
	}

	hash, salt, paramsJSON, algo, ver, err := a.PasswordService.Hash(r.Password)
	if err != nil {
		result = "failure"
		return nil, err
	}

	var out dto.RegisterResponse
	err = a.Store.WithTx(ctx, func(tx *store.Store) error {
		now := a.now()
		u := &domain.User{
			ID:        uuid.New(),
			Username:  username,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if email != "" {
			u.Email = &email
		}
		if _, err := tx.Users().GetByUsername(ctx, username); err == nil {
			return domain.ErrUsernameTaken
		} else if !errors.Is(err, store.ErrRecordNotFound) {
			return err
		}
		if err := tx.Users().Create(ctx, u); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return domain.ErrEmailTaken
			}
			return err
		}
		cred := &domain.PasswordCredential{
			UserID:      u.ID,
			Algo:        algo,
			Hash:        hash,
			Salt:        salt,
			ParamsJSON:  paramsJSON,
			PasswordVer: ver,
		}
		if err := tx.Credentials().UpsertPassword(ctx, cred); err != nil {
			return err
		}
		if err := tx.Audit().Record(ctx, &u.ID, events.ActionUserRegistered, events.UserRegistered{
			UserID:   u.ID.String(),
			Username: u.Username,
			At:       now,
		}, normalizeIP(ip), netutil.TruncateUserAgent(ua)); err != nil {
			return err
		}
		out = dto.RegisterResponse{UserID: u.ID.String(), Username: u.Username}
		return nil
	})
	if err != nil {
		result = "failure"
		return nil, err
	}
	return &out, nil
}

func (a *AuthServiceImpl) Login(ctx context.Context, r dto.LoginRequest, ip, ua string) (*dto.LoginResponse, error) {
	result := "success"
	defer func() {
		metrics.AuthLoginsTotal.WithLabelValues(result).Inc()
	}()

	if r.EmailOrUsername == "" || r.Password == "" {
		result = "invalid"
		return nil, ErrEmptyCredential
	}

	var user *domain.User
	err := a.Store.WithTx(ctx, func(tx *store.Store) error {
		var err error
		if looksLikeEmail(r.EmailOrUsername) {
			user, err = tx.Users().GetByEmail(ctx, r.EmailOrUsername)
		} else {
			user, err = tx.Users().GetByUsername(ctx, r.EmailOrUsername)
		}
		if errors.Is(err, store.ErrRecordNotFound) {
			return domain.ErrInvalidCredentials // don't leak which field failed
		}
		if err != nil {
			return err
		}
		if user.IsDisabled {
			return domain.ErrUserDisabled
		}

		cred, err := tx.Credentials().GetPasswordByUserID(ctx, user.ID)
		if err != nil {
			return domain.ErrInvalidCredentials
		}
		rehashNeeded, ok := a.PasswordService.Verify(r.Password, cred)
		if !ok {
			return domain.ErrInvalidCredentials
		}
		if rehashNeeded {
			newHash, newSalt, newParamsJSON, algo, ver, err := a.PasswordService.Hash(r.Password)
			if err != nil {
				return err
			}
			cred.Algo = algo
			cred.Hash = newHash
			cred.Salt = newSalt
			cred.ParamsJSON = newParamsJSON
			cred.PasswordVer = ver
			if err := tx.Credentials().UpsertPassword(ctx, cred); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		result = "failure"
		return nil, err
	}

	label := netutil.DeviceLabel(ua)
	dev, created, err := a.Devices.Login(ctx, user, label)
	if err != nil {
		result = "failure"
		return nil, err
	}
	if created {
		a.registerDevice(ctx, user, dev, ip, ua)
	}

	tokens, err := a.TService.Issue(ctx, user, &dev.Key, ip, ua)
	if err != nil {
		result = "failure"
		return nil, err
	}

	return &dto.LoginResponse{
		TokenResponse: *tokens,
		DeviceKey:     dev.Key.String(),
		DeviceLabel:   dev.Label,
		DeviceCreated: created,
		Redirect:      homeFor(user),
	}, nil
}

// registerDevice mirrors a new device into the ledger and audits it. Neither
// failure aborts the login.
func (a *AuthServiceImpl) registerDevice(ctx context.Context, user *domain.User, dev *domain.Device, ip, ua string) {
	attrs := append([]any{"device_key", dev.Key, "user_id", user.ID}, middleware.LogAttrs(ctx)...)
	if a.Ledger != nil {
		added, err := a.Ledger.Add(ctx, user.ID.String(), dev.Key.String(), dev.Label, user.Elevated())
		switch {
		case err != nil:
			slog.Warn("ledger mirror failed", append(attrs, "error", err)...)
		case !added:
			slog.Warn("ledger already holds device", attrs...)
		}
	}
	err := a.Store.Audit().Record(ctx, &user.ID, events.ActionDeviceRegistered, events.DeviceRegistered{
		DeviceKey: dev.Key.String(),
		UserID:    user.ID.String(),
		Label:     dev.Label,
		Write:     dev.WriteCapability,
		At:        dev.CreatedAt,
	}, normalizeIP(ip), netutil.TruncateUserAgent(ua))
	if err != nil {
		slog.Warn("audit write failed", append(attrs, "action", events.ActionDeviceRegistered, "error", err)...)
	}
}

func (a *AuthServiceImpl) LoginStatus(ctx context.Context, p *service.Principal) (*dto.LoginStatusResponse, error) {
	if p == nil || p.User == nil {
		return &dto.LoginStatusResponse{}, nil
	}
	_, _, err := a.Gate.Authorize(ctx, p.DeviceKey(), p.User, domain.CapabilityRead)
	if IsDenial(err) {
		return &dto.LoginStatusResponse{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &dto.LoginStatusResponse{LoggedIn: true, Redirect: homeFor(p.User)}, nil
}

// Logout deactivates the bound device, clears the binding and revokes the
// session. Calling it twice is harmless.
func (a *AuthServiceImpl) Logout(ctx context.Context, p *service.Principal) error {
	if p == nil || p.Session == nil {
		return nil
	}
	if key := p.DeviceKey(); key != nil {
		if err := a.Devices.Logout(ctx, *key, p.UserID()); err != nil {
			return err
		}
		if err := a.Store.Sessions().ClearDevice(ctx, p.Session.ID); err != nil {
			return err
		}
		p.Session.DeviceKey = nil
	}
	return a.TService.RevokeSession(ctx, p.Session.ID)
}

// Authenticate resolves an access token to a live session and an enabled user.
func (a *AuthServiceImpl) Authenticate(ctx context.Context, accessToken string) (*service.Principal, error) {
	ident, err := a.TService.VerifyAccess(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	sess, err := a.Store.Sessions().Get(ctx, ident.SessionID)
	if errors.Is(err, store.ErrRecordNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if sess.UserID != ident.UserID {
		return nil, ErrInvalidToken
	}
	if sess.RevokedAt != nil || a.now().After(sess.ExpiresAt) {
		return nil, ErrSessionInactive
	}
	user, err := a.Store.Users().GetByID(ctx, sess.UserID)
	if errors.Is(err, store.ErrRecordNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if user.IsDisabled {
		return nil, domain.ErrUserDisabled
	}
	return &service.Principal{User: user, Session: sess}, nil
}

func (a *AuthServiceImpl) Profile(ctx context.Context, p *service.Principal) (*dto.ProfileResponse, error) {
	now := a.now()
	out := &dto.ProfileResponse{
		UserID:        p.User.ID.String(),
		Username:      p.User.Username,
		ActiveDevices: []dto.DeviceResponse{},
	}

	if key := p.DeviceKey(); key != nil {
		dev, err := a.Store.Devices().GetForOwner(ctx, *key, p.User.ID)
		switch {
		case err == nil && dev.Active:
			resp := deviceResponse(dev, now, a.maxAge)
			out.CurrentDevice = &resp
		case err != nil && !errors.Is(err, store.ErrRecordNotFound):
			return nil, err
		}
	}

	devices, err := a.Store.Devices().ListActiveForUser(ctx, p.User.ID)
	if err != nil {
		return nil, err
	}
	for _, dev := range devices {
		out.ActiveDevices = append(out.ActiveDevices, deviceResponse(dev, now, a.maxAge))
	}
	out.DeviceCount = len(out.ActiveDevices)
	return out, nil
}

// CheckPermission reports the verdict of the bound device. It returns
// domain.ErrNoActiveDevice when nothing is bound and
// domain.ErrDeviceNotFoundOrInactive when the binding is stale.
func (a *AuthServiceImpl) CheckPermission(ctx context.Context, p *service.Principal) (*dto.CheckPermissionResponse, error) {
	dev, verdict, err := a.Gate.Authorize(ctx, p.DeviceKey(), p.User, domain.CapabilityRead)
	if err != nil && !errors.Is(err, domain.ErrPermissionDenied) {
		return nil, err
	}
	return &dto.CheckPermissionResponse{
		CanRead:    verdict.CanRead,
		CanWrite:   verdict.CanWrite,
		DeviceName: dev.Label,
	}, nil
}

func homeFor(u *domain.User) string {
	if u.Elevated() {
		return adminRedirect
	}
	return inboxRedirect
}

func looksLikeEmail(s string) bool { return strings.ContainsRune(s, '@') }

func deviceResponse(d *domain.Device, now time.Time, maxAge time.Duration) dto.DeviceResponse {
	v := domain.Evaluate(d, now, maxAge)
	return dto.DeviceResponse{
		DeviceKey:       d.Key.String(),
		Label:           d.Label,
		ReadCapability:  d.ReadCapability,
		WriteCapability: d.WriteCapability,
		Active:          d.Active,
		CanRead:         v.CanRead,
		CanWrite:        v.CanWrite,
		CreatedAt:       d.CreatedAt,
		LastSeenAt:      d.LastSeenAt,
	}
}
