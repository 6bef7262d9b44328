package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/pulse-analytics/pulse/internal/response"
)

// Pinger is satisfied by *sqlx.DB and *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type healthHandler struct {
	db      Pinger
	timeout time.Duration
}

func NewHealthHandler(db Pinger) *healthHandler {
	return &healthHandler{db: db, timeout: 2 * time.Second}
}

func (h *healthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	err := h.db.PingContext(ctx)
	if err != nil {
		slog.Error("health check failed", "error", err)
		response.Error(w, http.StatusServiceUnavailable, response.CodeUnavailable, "Database unavailable")
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
