package http

import (
	"net/http"

	"devicemail/internal/domain"
	"devicemail/internal/dto"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// messageID parses the {id} path segment. A malformed id becomes uuid.Nil,
// which no message has, so the service still runs its checks first and then
// reports the message as missing.
func messageID(r *http.Request) domain.MessageID {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil
	}
	return id
}

func (h *Handler) inbox(w http.ResponseWriter, r *http.Request) {
	res, err := h.mail.Inbox(r.Context(), principalFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) sent(w http.ResponseWriter, r *http.Request) {
	res, err := h.mail.Sent(r.Context(), principalFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) compose(w http.ResponseWriter, r *http.Request) {
	var req dto.ComposeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.mail.Compose(r.Context(), principalFrom(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) detail(w http.ResponseWriter, r *http.Request) {
	id := messageID(r)
	res, err := h.mail.Detail(r.Context(), principalFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) replyDraft(w http.ResponseWriter, r *http.Request) {
	id := messageID(r)
	res, err := h.mail.ReplyDraft(r.Context(), principalFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) reply(w http.ResponseWriter, r *http.Request) {
	id := messageID(r)
	var req dto.ReplyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.mail.Reply(r.Context(), principalFrom(r.Context()), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) deleteMessage(w http.ResponseWriter, r *http.Request) {
	id := messageID(r)
	res, err := h.mail.Delete(r.Context(), principalFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	id := messageID(r)
	if err := h.mail.MarkRead(r.Context(), principalFrom(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
