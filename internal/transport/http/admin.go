package http

import (
	"log/slog"
	"net/http"

	"devicemail/internal/domain"
	"devicemail/internal/dto"
	"devicemail/internal/observability/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// deviceKey parses the {key} path segment. A malformed key becomes uuid.Nil
// so the admin check runs before the device is reported missing.
func deviceKey(r *http.Request) domain.DeviceKey {
	key, err := uuid.Parse(chi.URLParam(r, "key"))
	if err != nil {
		return uuid.Nil
	}
	return key
}

func (h *Handler) listDevices(w http.ResponseWriter, r *http.Request) {
	res, err := h.admin.ListDevices(r.Context(), principalFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) listLedger(w http.ResponseWriter, r *http.Request) {
	res, err := h.admin.ListLedger(r.Context(), principalFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) setCapabilities(w http.ResponseWriter, r *http.Request) {
	key := deviceKey(r)
	var req dto.SetCapabilitiesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.admin.SetCapabilities(r.Context(), principalFrom(r.Context()), key, req, clientIP(r), r.UserAgent())
	if err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("device capabilities changed", append([]any{"device_key", res.DeviceKey, "mirrored", res.Mirrored}, middleware.LogAttrs(r.Context())...)...)
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) batchSetCapabilities(w http.ResponseWriter, r *http.Request) {
	var req dto.BatchSetCapabilitiesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.admin.BatchSetCapabilities(r.Context(), principalFrom(r.Context()), req, clientIP(r), r.UserAgent())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) forceLogout(w http.ResponseWriter, r *http.Request) {
	key := deviceKey(r)
	res, err := h.admin.ForceLogout(r.Context(), principalFrom(r.Context()), key, clientIP(r), r.UserAgent())
	if err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("device forced out", append([]any{"device_key", res.DeviceKey, "deactivated", res.Deactivated, "ledger_removed", res.LedgerRemoved}, middleware.LogAttrs(r.Context())...)...)
	writeJSON(w, http.StatusOK, res)
}
