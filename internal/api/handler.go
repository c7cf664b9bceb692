// Package api provides HTTP handlers for the chat relay API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/chat-relay/internal/auth"
	"github.com/ashureev/chat-relay/internal/domain"
	"github.com/ashureev/chat-relay/internal/files"
	"github.com/ashureev/chat-relay/internal/relay"
	"github.com/ashureev/chat-relay/internal/store"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// ChatService is the conversation surface the handlers drive.
type ChatService interface {
	Chat(ctx context.Context, req relay.ChatRequest) (*relay.ChatResult, error)
	SetInstructions(req relay.InstructionsRequest) (string, error)
	Clear(req relay.ClearRequest) (string, error)
	SessionCount() int
}

// AuthService registers and authenticates accounts.
type AuthService interface {
	Signup(ctx context.Context, creds auth.Credentials) (*auth.Result, error)
	Login(ctx context.Context, creds auth.Credentials) (*auth.Result, error)
}

// Handler provides common handler utilities and dependencies.
type Handler struct {
	chat         ChatService
	auth         AuthService
	files        *files.Storage
	repo         store.Repository
	maxBodyBytes int64
	logger       *slog.Logger
}

// Deps wires a Handler.
type Deps struct {
	Chat         ChatService
	Auth         AuthService
	Files        *files.Storage
	Repo         store.Repository
	MaxBodyBytes int64
	Logger       *slog.Logger
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.MaxBodyBytes <= 0 {
		d.MaxBodyBytes = 1 << 20
	}
	return &Handler{
		chat:         d.Chat,
		auth:         d.Auth,
		files:        d.Files,
		repo:         d.Repo,
		maxBodyBytes: d.MaxBodyBytes,
		logger:       d.Logger,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads a bounded JSON body into v and writes the error
// response itself when decoding fails.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// statusFor maps a classified error to an HTTP status.
func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindMisconfigured:
		return http.StatusInternalServerError
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	case domain.KindUnreachable:
		return http.StatusBadGateway
	case domain.KindUpstream:
		if domain.StatusOf(err) == http.StatusTooManyRequests {
			return http.StatusTooManyRequests
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// messageFor renders the client-facing text of an error. Transport
// causes stay in the logs.
func messageFor(err error) string {
	var e *domain.Error
	if !errors.As(err, &e) {
		return "internal server error"
	}
	switch e.Kind {
	case domain.KindValidation, domain.KindUpstream:
		return e.Error()
	default:
		return e.Message
	}
}

func writeError(w http.ResponseWriter, err error) {
	Error(w, statusFor(err), messageFor(err))
}
