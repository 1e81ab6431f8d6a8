package impl

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"devicemail/internal/domain"
	"devicemail/internal/dto"
	"devicemail/internal/netutil"
	"devicemail/internal/observability/metrics"
	"devicemail/internal/observability/middleware"
	"devicemail/internal/service"
	"devicemail/internal/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var _ service.TokenService = (*TokenServiceImpl)(nil)

type TokenConfig struct {
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	SigningKey []byte // HS256 secret
}

type AccessClaims struct {
	SID   string  `json:"sid"`           // session id
	DID   *string `json:"did,omitempty"` // bound device key
	Scope string  `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// Refresh tokens carry no scope, so they never verify as access tokens.
const accessScope = "user"

type RefreshClaims struct {
	SID                  string `json:"sid"`
	jwt.RegisteredClaims        // jti == refresh_id
}

type TokenServiceImpl struct {
	cfg   TokenConfig
	store *store.Store
	now   func() time.Time
}

func NewTokenServiceHS256(cfg TokenConfig, st *store.Store) *TokenServiceImpl {
	return &TokenServiceImpl{cfg: cfg, store: st, now: func() time.Time { return time.Now().UTC() }}
}

// Issue creates a Session row bound to deviceKey and returns access+refresh tokens.
func (t *TokenServiceImpl) Issue(
	ctx context.Context,
	user *domain.User,
	deviceKey *domain.DeviceKey,
	ip, ua string,
) (*dto.TokenResponse, error) {
	result := "success"
	defer func() {
		metrics.TokensIssuedTotal.WithLabelValues("issue", result).Inc()
	}()
	now := t.now()

	sess := &domain.Session{
		ID:        uuid.New(),
		UserID:    user.ID,
		DeviceKey: deviceKey,
		RefreshID: uuid.New(),
		ExpiresAt: now.Add(t.cfg.RefreshTTL),
		CreatedAt: now,
		IP:        normalizeIP(ip),
		UserAgent: netutil.TruncateUserAgent(ua),
	}
	if err := t.store.Sessions().Create(ctx, sess); err != nil {
		result = "failure"
		return nil, err
	}

	tokens, err := t.mint(sess, now)
	if err != nil {
		result = "failure"
		return nil, err
	}

	slog.Info("issued tokens", append([]any{"session_id", sess.ID, "user_id", user.ID, "device_key", deviceKey},
		middleware.LogAttrs(ctx)...)...)
	return tokens, nil
}

// Refresh validates the refresh JWT, checks session state, rotates the refresh
// id and returns new tokens. The session keeps its device binding.
func (t *TokenServiceImpl) Refresh(ctx context.Context, refreshToken string, ip, ua string) (*dto.TokenResponse, error) {
	result := "success"
	defer func() {
		metrics.TokensIssuedTotal.WithLabelValues("refresh", result).Inc()
	}()
	now := t.now()

	claims := &RefreshClaims{}
	if err := t.parse(refreshToken, claims, &claims.RegisteredClaims); err != nil {
		result = "failure"
		return nil, ErrInvalidToken
	}
	rid, err := uuid.Parse(claims.ID)
	if err != nil {
		result = "failure"
		return nil, ErrInvalidToken
	}

	sess, err := t.store.Sessions().GetByRefreshID(ctx, rid)
	if err != nil {
		result = "failure"
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if sess.RevokedAt != nil || now.After(sess.ExpiresAt) {
		result = "failure"
		return nil, ErrSessionInactive
	}

	newRID := uuid.New()
	newExp := now.Add(t.cfg.RefreshTTL)
	ip = normalizeIP(ip)
	ua = netutil.TruncateUserAgent(ua)
	if err := t.store.Sessions().Rotate(ctx, sess.ID, newRID, newExp, ip, ua); err != nil {
		result = "failure"
		return nil, err
	}
	sess.RefreshID = newRID
	sess.ExpiresAt = newExp

	tokens, err := t.mint(sess, now)
	if err != nil {
		result = "failure"
		return nil, err
	}

	slog.Info("refreshed tokens", append([]any{"session_id", sess.ID, "user_id", sess.UserID},
		middleware.LogAttrs(ctx)...)...)
	return tokens, nil
}

// VerifyAccess checks signature, issuer, audience and expiry of an access
// token. Session state is checked by the caller.
func (t *TokenServiceImpl) VerifyAccess(_ context.Context, accessToken string) (*service.AccessIdentity, error) {
	claims := &AccessClaims{}
	if err := t.parse(accessToken, claims, &claims.RegisteredClaims); err != nil || claims.Scope != accessScope {
		return nil, ErrInvalidToken
	}
	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}
	sid, err := uuid.Parse(claims.SID)
	if err != nil {
		return nil, ErrInvalidToken
	}
	out := &service.AccessIdentity{UserID: uid, SessionID: sid}
	if claims.DID != nil {
		key, err := uuid.Parse(*claims.DID)
		if err != nil {
			return nil, ErrInvalidToken
		}
		out.DeviceKey = &key
	}
	return out, nil
}

func (t *TokenServiceImpl) RevokeSession(ctx context.Context, sessionID domain.SessionID) error {
	return t.store.Sessions().Revoke(ctx, sessionID, t.now())
}

func (t *TokenServiceImpl) mint(sess *domain.Session, now time.Time) (*dto.TokenResponse, error) {
	access, err := t.signAccess(sess, now)
	if err != nil {
		return nil, err
	}
	refresh, err := t.signRefresh(sess, now)
	if err != nil {
		return nil, err
	}
	return &dto.TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(t.cfg.AccessTTL.Seconds()),
	}, nil
}

func (t *TokenServiceImpl) signAccess(sess *domain.Session, now time.Time) (string, error) {
	var did *string
	if sess.DeviceKey != nil {
		s := sess.DeviceKey.String()
		did = &s
	}
	claims := AccessClaims{
		SID:   sess.ID.String(),
		DID:   did,
		Scope: accessScope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.cfg.Issuer,
			Subject:   sess.UserID.String(),
			Audience:  jwt.ClaimStrings{t.cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(t.cfg.AccessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.cfg.SigningKey)
}

func (t *TokenServiceImpl) signRefresh(sess *domain.Session, now time.Time) (string, error) {
	claims := RefreshClaims{
		SID: sess.ID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.cfg.Issuer,
			Subject:   sess.UserID.String(),
			Audience:  jwt.ClaimStrings{t.cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        sess.RefreshID.String(), // binds the JWT to the session row
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.cfg.SigningKey)
}

func (t *TokenServiceImpl) parse(tokenStr string, claims jwt.Claims, reg *jwt.RegisteredClaims) error {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	tok, err := parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return t.cfg.SigningKey, nil
	})
	if err != nil {
		return err
	}
	if !tok.Valid {
		return ErrInvalidToken
	}
	if reg.Issuer != t.cfg.Issuer {
		return errors.New("bad issuer")
	}
	if !slices.Contains(reg.Audience, t.cfg.Audience) {
		return errors.New("bad audience")
	}
	return nil
}

func normalizeIP(ip string) string {
	if normalized, ok := netutil.NormalizeIP(ip); ok {
		return normalized
	}
	return strings.TrimSpace(ip)
}
