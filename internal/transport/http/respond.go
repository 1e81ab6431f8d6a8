package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"devicemail/internal/domain"
	"devicemail/internal/dto"
	"devicemail/internal/netutil"
	"devicemail/internal/observability/middleware"
	impl "devicemail/internal/service/impl"
)

const (
	loginRedirect = "/accounts/login"
	maxBodyBytes  = 1 << 20
)

var errBadRequest = errors.New("bad request")

// clientIP returns the normalized peer address. With TrustProxy the RealIP
// middleware has already replaced RemoteAddr with the forwarded client.
func clientIP(r *http.Request) string {
	if normalized, ok := netutil.NormalizeIP(r.RemoteAddr); ok {
		return normalized
	}
	return r.RemoteAddr
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorResponse(err)
	attrs := append([]any{"error", err, "status", status, "method", r.Method, "path", r.URL.Path}, middleware.LogAttrs(r.Context())...)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", attrs...)
	} else {
		slog.Info("request rejected", attrs...)
	}
	writeJSON(w, status, body)
}

func errorResponse(err error) (int, dto.ErrorResponse) {
	var verr *impl.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, dto.ErrorResponse{Error: verr.Message, Field: verr.Field}
	}
	var denied *impl.CapabilityDenied
	if errors.As(err, &denied) {
		return http.StatusForbidden, dto.ErrorResponse{Error: denied.Error(), ShowAdminLink: denied.ShowAdminLink}
	}

	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, dto.ErrorResponse{Error: "bad request"}
	case errors.Is(err, domain.ErrNoActiveDevice),
		errors.Is(err, domain.ErrDeviceNotFoundOrInactive):
		return http.StatusUnauthorized, dto.ErrorResponse{Error: err.Error(), Redirect: loginRedirect}
	case errors.Is(err, impl.ErrInvalidToken),
		errors.Is(err, impl.ErrSessionInactive),
		errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrUserDisabled):
		return http.StatusUnauthorized, dto.ErrorResponse{Error: err.Error()}
	case errors.Is(err, domain.ErrPermissionDenied),
		errors.Is(err, domain.ErrNotAdmin):
		return http.StatusForbidden, dto.ErrorResponse{Error: err.Error()}
	case errors.Is(err, domain.ErrMessageNotFound),
		errors.Is(err, domain.ErrDeviceNotFound),
		errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, dto.ErrorResponse{Error: err.Error()}
	case errors.Is(err, domain.ErrUsernameTaken),
		errors.Is(err, domain.ErrEmailTaken):
		return http.StatusConflict, dto.ErrorResponse{Error: err.Error()}
	case errors.Is(err, impl.ErrEmptyUsername),
		errors.Is(err, impl.ErrEmptyPassword),
		errors.Is(err, impl.ErrEmptyCredential),
		errors.Is(err, impl.ErrPasswordLength):
		return http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()}
	}
	return http.StatusInternalServerError, dto.ErrorResponse{Error: "internal error"}
}
