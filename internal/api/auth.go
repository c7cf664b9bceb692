package api

import (
	"errors"
	"net/http"

	"github.com/ashureev/chat-relay/internal/auth"
	"github.com/ashureev/chat-relay/internal/identity"
	"github.com/ashureev/chat-relay/internal/store"
)

// Signup registers an account.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var creds auth.Credentials
	if !h.decodeJSON(w, r, &creds) {
		return
	}

	res, err := h.auth.Signup(r.Context(), creds)
	switch {
	case err == nil:
		JSON(w, http.StatusCreated, res)
	case errors.Is(err, store.ErrEmailTaken):
		Error(w, http.StatusConflict, "email already registered")
	default:
		if statusFor(err) == http.StatusInternalServerError {
			h.logger.Error("Signup failed", "error", err)
		}
		writeError(w, err)
	}
}

// Login authenticates an account and returns a bearer token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var creds auth.Credentials
	if !h.decodeJSON(w, r, &creds) {
		return
	}

	res, err := h.auth.Login(r.Context(), creds)
	switch {
	case err == nil:
		JSON(w, http.StatusOK, res)
	case errors.Is(err, auth.ErrInvalidCredentials):
		Error(w, http.StatusUnauthorized, "invalid email or password")
	default:
		h.logger.Error("Login failed", "error", err)
		Error(w, http.StatusInternalServerError, "login failed")
	}
}

// GetMe returns the authenticated user's information.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.repo.GetUser(r.Context(), userID)
	if err != nil || user == nil {
		Error(w, http.StatusUnauthorized, "user not found")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"user": user})
}
