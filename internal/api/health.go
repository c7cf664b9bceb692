package api

import (
	"context"
	"net/http"
	"time"
)

// Health reports liveness and the number of in-memory sessions.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	database := "ok"
	if h.repo != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.repo.Ping(ctx); err != nil {
			h.logger.Warn("Database ping failed", "error", err)
			database = "unavailable"
		}
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"version":  Version,
		"sessions": h.chat.SessionCount(),
		"database": database,
	})
}
