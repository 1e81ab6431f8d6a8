package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"devicemail/internal/domain"
	"devicemail/internal/dto"
	"devicemail/internal/ledger"
	impl "devicemail/internal/service/impl"
	"devicemail/internal/store"
	"devicemail/internal/store/storetest"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/require"
)

const password = "correct horse"

type testServer struct {
	t       *testing.T
	st      *store.Store
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st := storetest.New(t)
	l, err := ledger.Open(context.Background(), ledger.NewMemoryBackend(nil), nil)
	require.NoError(t, err)

	pw := impl.NewPasswordServiceWithParams(impl.Argon2Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16})
	tokens := impl.NewTokenServiceHS256(impl.TokenConfig{
		Issuer:     "test-issuer",
		Audience:   "test-clients",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: time.Hour,
		SigningKey: []byte("test-signing-key"),
	}, st)
	devices := impl.NewDeviceServiceImpl(st)
	gate := impl.NewGate(st, domain.DeviceMaxAge)
	auth := impl.NewAuthServiceImpl(st, pw, tokens, devices, gate, l, domain.DeviceMaxAge)
	mail := impl.NewMailServiceImpl(st, gate)
	admin := impl.NewAdminServiceImpl(st, l, domain.DeviceMaxAge)

	return &testServer{
		t:       t,
		st:      st,
		handler: NewRouter(auth, tokens, mail, admin, Options{MetricsHandler: http.NotFoundHandler()}),
	}
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Chrome/Mac")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (s *testServer) signUp(username string, staff bool) {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/accounts/register", "", dto.RegisterRequest{Username: username, Password: password})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	if staff {
		u, err := s.st.Users().GetByUsername(context.Background(), username)
		require.NoError(s.t, err)
		require.NoError(s.t, s.st.Users().SetStaff(context.Background(), u.ID, true))
	}
}

func (s *testServer) signIn(username string) dto.LoginResponse {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/accounts/login", "", dto.LoginRequest{EmailOrUsername: username, Password: password})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[dto.LoginResponse](s.t, rec)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)
	s.signUp("alice", false)

	rec := s.do(http.MethodPost, "/accounts/register", "", dto.RegisterRequest{Username: "alice", Password: password})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/accounts/register", "", dto.RegisterRequest{Username: "bob", Password: "short"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/accounts/login", "", dto.LoginRequest{EmailOrUsername: "alice", Password: "wrong password"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	login := s.signIn("alice")
	require.Equal(t, "/emails/inbox", login.Redirect)
	require.Equal(t, "Chrome/Mac", login.DeviceLabel)
	require.True(t, login.DeviceCreated)
	require.NotEmpty(t, login.AccessToken)

	status := decode[dto.LoginStatusResponse](t, s.do(http.MethodGet, "/accounts/login", login.AccessToken, nil))
	require.True(t, status.LoggedIn)
	require.Equal(t, "/emails/inbox", status.Redirect)

	anon := decode[dto.LoginStatusResponse](t, s.do(http.MethodGet, "/accounts/login", "", nil))
	require.False(t, anon.LoggedIn)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/emails/inbox", "/accounts/profile", "/admin/devices"} {
		rec := s.do(http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
	rec := s.do(http.MethodGet, "/emails/inbox", "garbage", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMailFlowWithAdminGrant(t *testing.T) {
	s := newTestServer(t)
	s.signUp("alice", false)
	s.signUp("root", true)
	alice := s.signIn("alice")
	root := s.signIn("root")
	require.Equal(t, "/admin/", root.Redirect)

	inbox := decode[dto.MailboxResponse](t, s.do(http.MethodGet, "/emails/inbox", alice.AccessToken, nil))
	require.Equal(t, "Inbox", inbox.Title)
	require.False(t, inbox.CanWrite)
	require.Empty(t, inbox.Messages)

	compose := dto.ComposeRequest{Recipient: "root", Subject: "Hello", Body: "hi"}
	rec := s.do(http.MethodPost, "/emails/compose", alice.AccessToken, compose)
	require.Equal(t, http.StatusForbidden, rec.Code)
	denied := decode[dto.ErrorResponse](t, rec)
	require.Equal(t, "write permission denied", denied.Error)
	require.False(t, denied.ShowAdminLink)

	rec = s.do(http.MethodGet, "/admin/devices", alice.AccessToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPatch, "/admin/devices/"+alice.DeviceKey, root.AccessToken, dto.SetCapabilitiesRequest{Write: ptr(true)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	set := decode[dto.SetCapabilitiesResponse](t, rec)
	require.True(t, set.Updated)
	require.True(t, set.Mirrored)

	rec = s.do(http.MethodPost, "/emails/compose", alice.AccessToken, compose)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	msg := decode[dto.MessageResponse](t, rec)

	rootInbox := decode[dto.MailboxResponse](t, s.do(http.MethodGet, "/emails/inbox", root.AccessToken, nil))
	require.Len(t, rootInbox.Messages, 1)
	require.Equal(t, "alice", rootInbox.Messages[0].Sender)

	draft := decode[dto.ReplyDraftResponse](t, s.do(http.MethodGet, "/emails/"+msg.ID+"/reply", root.AccessToken, nil))
	require.Equal(t, "Re: Hello", draft.Subject)

	rec = s.do(http.MethodPost, "/emails/"+msg.ID+"/reply", root.AccessToken, dto.ReplyRequest{Body: ""})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "body", decode[dto.ErrorResponse](t, rec).Field)

	rec = s.do(http.MethodPost, "/emails/"+msg.ID+"/mark-read", root.AccessToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	del := decode[dto.DeleteResponse](t, s.do(http.MethodPost, "/emails/"+msg.ID+"/delete", alice.AccessToken, nil))
	require.Equal(t, "/emails/sent", del.Redirect)

	rec = s.do(http.MethodGet, "/emails/"+msg.ID, root.AccessToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(http.MethodGet, "/emails/not-an-id", root.AccessToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestComposeValidationField(t *testing.T) {
	s := newTestServer(t)
	s.signUp("root", true)
	root := s.signIn("root")

	rec := s.do(http.MethodPost, "/emails/compose", root.AccessToken, dto.ComposeRequest{Recipient: "ghost", Subject: "Hi", Body: "x"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[dto.ErrorResponse](t, rec)
	require.Equal(t, "recipient", body.Field)
	require.Equal(t, "User 'ghost' not found.", body.Error)
}

func TestForceLogoutSendsClientBackToLogin(t *testing.T) {
	s := newTestServer(t)
	s.signUp("alice", false)
	s.signUp("root", true)
	alice := s.signIn("alice")
	root := s.signIn("root")

	check := decode[dto.CheckPermissionResponse](t, s.do(http.MethodGet, "/accounts/check-permission", alice.AccessToken, nil))
	require.True(t, check.CanRead)
	require.False(t, check.CanWrite)
	require.Equal(t, "Chrome/Mac", check.DeviceName)

	rec := s.do(http.MethodPost, "/admin/devices/"+alice.DeviceKey+"/logout", root.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[dto.ForceLogoutResponse](t, rec)
	require.EqualValues(t, 1, out.Deactivated)
	require.True(t, out.LedgerRemoved)

	rec = s.do(http.MethodGet, "/emails/inbox", alice.AccessToken, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "/accounts/login", decode[dto.ErrorResponse](t, rec).Redirect)

	rec = s.do(http.MethodGet, "/accounts/check-permission", alice.AccessToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPost, "/admin/devices/"+"00000000-0000-0000-0000-000000000001"+"/logout", root.AccessToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	entries := decode[[]dto.LedgerEntryResponse](t, s.do(http.MethodGet, "/admin/ledger", root.AccessToken, nil))
	require.Len(t, entries, 1)
	require.Equal(t, root.DeviceKey, entries[0].DeviceID)
}

func TestLogoutRevokesSession(t *testing.T) {
	s := newTestServer(t)
	s.signUp("alice", false)
	alice := s.signIn("alice")

	rec := s.do(http.MethodPost, "/accounts/logout", alice.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/emails/inbox", alice.AccessToken, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/accounts/refresh", "", dto.RefreshRequest{RefreshToken: alice.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshKeepsDeviceBinding(t *testing.T) {
	s := newTestServer(t)
	s.signUp("alice", false)
	alice := s.signIn("alice")

	rec := s.do(http.MethodPost, "/accounts/refresh", "", dto.RefreshRequest{RefreshToken: alice.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tokens := decode[dto.TokenResponse](t, rec)

	profile := decode[dto.ProfileResponse](t, s.do(http.MethodGet, "/accounts/profile", tokens.AccessToken, nil))
	require.NotNil(t, profile.CurrentDevice)
	require.Equal(t, alice.DeviceKey, profile.CurrentDevice.DeviceKey)
	require.Equal(t, 1, profile.DeviceCount)
}

func TestBatchPermissions(t *testing.T) {
	s := newTestServer(t)
	s.signUp("alice", false)
	s.signUp("root", true)
	alice := s.signIn("alice")
	root := s.signIn("root")

	rec := s.do(http.MethodPost, "/admin/devices/permissions", root.AccessToken, dto.BatchSetCapabilitiesRequest{
		Updates: []dto.BatchCapabilityUpdate{{DeviceKey: "nope", Write: ptr(true)}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "deviceKey", decode[dto.ErrorResponse](t, rec).Field)

	rec = s.do(http.MethodPost, "/admin/devices/permissions", root.AccessToken, dto.BatchSetCapabilitiesRequest{
		Updates: []dto.BatchCapabilityUpdate{{DeviceKey: alice.DeviceKey, Write: ptr(true)}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[[]dto.SetCapabilitiesResponse](t, rec)
	require.Len(t, res, 1)
	require.True(t, res[0].Updated)

	list := decode[dto.AdminDeviceListResponse](t, s.do(http.MethodGet, "/admin/devices", root.AccessToken, nil))
	require.Equal(t, 2, list.DeviceCount)
	for _, d := range list.Devices {
		require.True(t, d.CanWrite, d.OwnerUsername)
		require.True(t, d.Mirrored)
	}
}

func TestErrorResponseMapping(t *testing.T) {
	tests := []struct {
		err      error
		status   int
		redirect string
	}{
		{domain.ErrNoActiveDevice, http.StatusUnauthorized, loginRedirect},
		{domain.ErrDeviceNotFoundOrInactive, http.StatusUnauthorized, loginRedirect},
		{domain.ErrPermissionDenied, http.StatusForbidden, ""},
		{domain.ErrNotAdmin, http.StatusForbidden, ""},
		{domain.ErrMessageNotFound, http.StatusNotFound, ""},
		{domain.ErrDeviceNotFound, http.StatusNotFound, ""},
		{impl.ErrInvalidToken, http.StatusUnauthorized, ""},
		{errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		status, body := errorResponse(tt.err)
		require.Equal(t, tt.status, status, tt.err.Error())
		require.Equal(t, tt.redirect, body.Redirect, tt.err.Error())
	}

	_, body := errorResponse(errors.New("database is on fire"))
	require.Equal(t, "internal error", body.Error)

	status, body := errorResponse(&impl.CapabilityDenied{Capability: domain.CapabilityWrite, ShowAdminLink: true})
	require.Equal(t, http.StatusForbidden, status)
	require.True(t, body.ShowAdminLink)
}

func TestClientIPUsesForwardedHeaderOnlyWhenTrusted(t *testing.T) {
	var seen string
	capture := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { seen = clientIP(r) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:5050"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	capture.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, "10.0.0.7", seen)

	trusted := chimw.RealIP(capture)
	trusted.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, "203.0.113.9", seen)
}

func ptr[T any](v T) *T { return &v }

func TestMalformedIDsAreCheckedAfterAuthorization(t *testing.T) {
	s := newTestServer(t)
	s.signUp("alice", false)
	s.signUp("root", true)
	alice := s.signIn("alice")
	root := s.signIn("root")

	rec := s.do(http.MethodPatch, "/admin/devices/not-a-key", alice.AccessToken, dto.SetCapabilitiesRequest{Write: ptr(true)})
	require.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(http.MethodPost, "/admin/devices/not-a-key/logout", alice.AccessToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPatch, "/admin/devices/not-a-key", root.AccessToken, dto.SetCapabilitiesRequest{Write: ptr(true)})
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(http.MethodPost, "/admin/devices/not-a-key/logout", root.AccessToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPost, "/admin/devices/"+alice.DeviceKey+"/logout", root.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	for _, path := range []string{"/emails/not-an-id", "/emails/not-an-id/reply"} {
		rec = s.do(http.MethodGet, path, alice.AccessToken, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code, path)
		require.Equal(t, "/accounts/login", decode[dto.ErrorResponse](t, rec).Redirect, path)
	}
	rec = s.do(http.MethodPost, "/emails/not-an-id/delete", alice.AccessToken, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCORSCredentialsOnlyForListedOrigins(t *testing.T) {
	get := func(h http.Handler, origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("Origin", origin)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	open := NewRouter(nil, nil, nil, nil, Options{MetricsHandler: http.NotFoundHandler()})
	rec := get(open, "https://anywhere.example")
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))

	listed := NewRouter(nil, nil, nil, nil, Options{
		CORSOrigins:    []string{"https://app.example"},
		MetricsHandler: http.NotFoundHandler(),
	})
	rec = get(listed, "https://app.example")
	require.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	rec = get(listed, "https://evil.example")
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
