package impl

import (
	"context"
	"testing"
	"time"

	"devicemail/internal/domain"
	"devicemail/internal/dto"
	"devicemail/internal/ledger"
	"devicemail/internal/service"
	"devicemail/internal/store"
	"devicemail/internal/store/storetest"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// testEnv wires every service against one in-memory database, one ledger and
// one clock.
type testEnv struct {
	t       *testing.T
	st      *store.Store
	clock   *fakeClock
	backend *ledger.MemoryBackend
	ledger  *ledger.Ledger
	devices *DeviceServiceImpl
	gate    *GateImpl
	tokens  *TokenServiceImpl
	auth    *AuthServiceImpl
	mail    *MailServiceImpl
	admin   *AdminServiceImpl
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := storetest.New(t)
	clock := &fakeClock{now: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)}

	backend := ledger.NewMemoryBackend(nil)
	l, err := ledger.Open(context.Background(), backend, nil)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}

	devices := NewDeviceServiceImpl(st)
	devices.now = clock.Now
	gate := NewGate(st, domain.DeviceMaxAge)
	gate.now = clock.Now
	tokens := NewTokenServiceHS256(TokenConfig{
		Issuer:     "test-issuer",
		Audience:   "test-clients",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
		SigningKey: []byte("test-signing-key"),
	}, st)
	tokens.now = clock.Now
	pw := NewPasswordServiceWithParams(Argon2Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16})

	auth := NewAuthServiceImpl(st, pw, tokens, devices, gate, l, domain.DeviceMaxAge)
	auth.now = clock.Now
	mail := NewMailServiceImpl(st, gate)
	mail.now = clock.Now
	admin := NewAdminServiceImpl(st, l, domain.DeviceMaxAge)
	admin.now = clock.Now

	return &testEnv{
		t: t, st: st, clock: clock, backend: backend, ledger: l,
		devices: devices, gate: gate, tokens: tokens,
		auth: auth, mail: mail, admin: admin,
	}
}

func (e *testEnv) seedUser(username string, staff bool) *domain.User {
	e.t.Helper()
	now := e.clock.Now()
	u := &domain.User{Username: username, IsStaff: staff, CreatedAt: now, UpdatedAt: now}
	if err := e.st.Users().Create(context.Background(), u); err != nil {
		e.t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

// register creates a user through the accounts flow and optionally elevates it.
func (e *testEnv) register(username string, staff bool) *domain.User {
	e.t.Helper()
	ctx := context.Background()
	res, err := e.auth.Register(ctx, dto.RegisterRequest{Username: username, Password: "correct horse"}, "127.0.0.1", "test")
	if err != nil {
		e.t.Fatalf("register %s: %v", username, err)
	}
	u, err := e.st.Users().GetByUsername(ctx, res.Username)
	if err != nil {
		e.t.Fatalf("load %s: %v", username, err)
	}
	if staff {
		if err := e.st.Users().SetStaff(ctx, u.ID, true); err != nil {
			e.t.Fatalf("set staff: %v", err)
		}
		u.IsStaff = true
	}
	return u
}

// login signs in through the accounts flow and returns the authenticated principal.
func (e *testEnv) login(username, ua string) (*dto.LoginResponse, *service.Principal) {
	e.t.Helper()
	ctx := context.Background()
	res, err := e.auth.Login(ctx, dto.LoginRequest{EmailOrUsername: username, Password: "correct horse"}, "127.0.0.1:5555", ua)
	if err != nil {
		e.t.Fatalf("login %s: %v", username, err)
	}
	p, err := e.auth.Authenticate(ctx, res.AccessToken)
	if err != nil {
		e.t.Fatalf("authenticate %s: %v", username, err)
	}
	return res, p
}

// principal binds user to key without going through tokens.
func principal(u *domain.User, key *domain.DeviceKey) *service.Principal {
	return &service.Principal{User: u, Session: &domain.Session{UserID: u.ID, DeviceKey: key}}
}

func boolPtr(v bool) *bool { return &v }
