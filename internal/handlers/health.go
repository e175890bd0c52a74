package handlers

import (
	"context"
	"net/http"
	"time"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	db           Pinger
	modelEnabled bool
	encrypted    bool
}

func NewHealthHandler(db Pinger, modelEnabled, encrypted bool) *HealthHandler {
	return &HealthHandler{db: db, modelEnabled: modelEnabled, encrypted: encrypted}
}

func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code, database := "ok", http.StatusOK, "ok"
	if h.db == nil {
		database = "unconfigured"
	} else if err := h.db.PingContext(ctx); err != nil {
		status, code, database = "degraded", http.StatusServiceUnavailable, "unreachable"
	}
	writeJSON(w, code, map[string]any{
		"status":     status,
		"timestamp":  time.Now().UTC(),
		"database":   database,
		"ai_enabled": h.modelEnabled,
		"encryption": h.encrypted,
	})
}
