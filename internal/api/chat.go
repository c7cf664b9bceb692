package api

import (
	"net/http"

	"github.com/ashureev/chat-relay/internal/identity"
	"github.com/ashureev/chat-relay/internal/relay"
)

// Chat relays one message to the upstream model.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req relay.ChatRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		req.SessionID = identity.SessionIDFromContext(r.Context())
	}
	req.UserID = identity.UserIDFromContext(r.Context())

	res, err := h.chat.Chat(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	JSON(w, http.StatusOK, res)
}

// SetInstructions stores custom instructions for a session.
func (h *Handler) SetInstructions(w http.ResponseWriter, r *http.Request) {
	var req relay.InstructionsRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		req.SessionID = identity.SessionIDFromContext(r.Context())
	}

	id, err := h.chat.SetInstructions(req)
	if err != nil {
		writeError(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"message":   "Instructions set successfully",
		"sessionId": id,
	})
}

// ClearChat empties a session's history.
func (h *Handler) ClearChat(w http.ResponseWriter, r *http.Request) {
	var req relay.ClearRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		req.SessionID = identity.SessionIDFromContext(r.Context())
	}

	id, err := h.chat.Clear(req)
	if err != nil {
		writeError(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"message":   "Conversation cleared",
		"sessionId": id,
	})
}
