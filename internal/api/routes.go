package api

import (
	"net/http"

	"github.com/ashureev/chat-relay/internal/files"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the API routes. throttle wraps the endpoints
// that reach the upstream model or write to disk.
func (h *Handler) RegisterRoutes(r chi.Router, throttle func(http.Handler) http.Handler) {
	if throttle == nil {
		throttle = func(next http.Handler) http.Handler { return next }
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Post("/signup", h.Signup)
		r.Post("/login", h.Login)
		r.Get("/me", h.GetMe)
		r.Post("/set-instructions", h.SetInstructions)
		r.Post("/clear-chat", h.ClearChat)

		r.Group(func(r chi.Router) {
			r.Use(throttle)
			r.Post("/chat", h.Chat)
			r.Post("/upload", h.Upload)
			r.Post("/convert-to-pdf", h.ConvertToPDF)
		})
	})

	r.Handle(files.URLPrefix+"*", h.files.Handler())
}
