package http

import (
	"errors"
	"log/slog"
	"net/http"

	"devicemail/internal/domain"
	"devicemail/internal/dto"
	"devicemail/internal/observability/middleware"
)

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.auth.Register(r.Context(), req, clientIP(r), r.UserAgent())
	if err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("user registered", append([]any{"user_id", res.UserID}, middleware.LogAttrs(r.Context())...)...)
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.auth.Login(r.Context(), req, clientIP(r), r.UserAgent())
	if err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("user logged in", append([]any{"device_key", res.DeviceKey, "device_created", res.DeviceCreated}, middleware.LogAttrs(r.Context())...)...)
	writeJSON(w, http.StatusOK, res)
}

// loginStatus lets an already signed-in client skip the credential form.
func (h *Handler) loginStatus(w http.ResponseWriter, r *http.Request) {
	res, err := h.auth.LoginStatus(r.Context(), principalFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req dto.RefreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.tokens.Refresh(r.Context(), req.RefreshToken, clientIP(r), r.UserAgent())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), principalFrom(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.LoginStatusResponse{Redirect: loginRedirect})
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	res, err := h.auth.Profile(r.Context(), principalFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) checkPermission(w http.ResponseWriter, r *http.Request) {
	res, err := h.auth.CheckPermission(r.Context(), principalFrom(r.Context()))
	switch {
	case errors.Is(err, domain.ErrNoActiveDevice):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "No device found"})
	case errors.Is(err, domain.ErrDeviceNotFoundOrInactive):
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Device not found"})
	case err != nil:
		writeError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, res)
	}
}
