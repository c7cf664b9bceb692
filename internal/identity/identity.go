// Package identity resolves the optional caller identity and session hint
// carried on each request.
package identity

import (
	"context"
	"net"
	"net/http"
	"regexp"
	"strings"

	"github.com/ashureev/chat-relay/internal/auth"
)

const (
	// SessionHeaderName carries a conversation session id when the body omits one.
	SessionHeaderName = "X-Session-ID"
	bearerPrefix      = "Bearer "
)

type contextKey int

const (
	userIDKey contextKey = iota
	emailKey
	sessionIDKey
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// TokenVerifier parses bearer tokens.
type TokenVerifier interface {
	ParseToken(raw string) (*auth.Claims, error)
	Touch(ctx context.Context, userID string) error
}

// UserIDFromContext extracts the authenticated user ID, or "" for anonymous callers.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// EmailFromContext extracts the authenticated email, or "".
func EmailFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(emailKey).(string); ok {
		return v
	}
	return ""
}

// SessionIDFromContext extracts the session id hint from the request
// header, or "" when absent or malformed.
func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return ""
}

func sanitizeSessionID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || !sessionIDPattern.MatchString(id) {
		return ""
	}
	return id
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	if len(h) < len(bearerPrefix) || !strings.EqualFold(h[:len(bearerPrefix)], bearerPrefix) {
		return "", true
	}
	return strings.TrimSpace(h[len(bearerPrefix):]), true
}

// Middleware attaches identity to the request context. Requests without
// an Authorization header proceed anonymously; a present but invalid
// token is rejected with 401.
func Middleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if sid := sanitizeSessionID(r.Header.Get(SessionHeaderName)); sid != "" {
				ctx = context.WithValue(ctx, sessionIDKey, sid)
			}

			if raw, present := bearerToken(r); present {
				claims, err := verifier.ParseToken(raw)
				if err != nil {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusUnauthorized)
					_, _ = w.Write([]byte(`{"error":"invalid or expired token"}`))
					return
				}
				ctx = context.WithValue(ctx, userIDKey, claims.Subject)
				ctx = context.WithValue(ctx, emailKey, claims.Email)
				_ = verifier.Touch(ctx, claims.Subject)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IPFromRequest returns a normalized remote IP for rate limiting and tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
