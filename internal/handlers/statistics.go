package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"museflow/internal/models"
	"museflow/internal/stats"
)

type HistoryStore interface {
	SessionHistory(ctx context.Context, userID int) ([]models.WritingSession, error)
}

type StatisticsHandler struct {
	history HistoryStore
	loc     *time.Location
	log     *zap.Logger
	now     func() time.Time
}

// NewStatisticsHandler computes calendar days for streaks in loc.
func NewStatisticsHandler(history HistoryStore, loc *time.Location, log *zap.Logger) *StatisticsHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &StatisticsHandler{history: history, loc: loc, log: orNop(log), now: time.Now}
}

func (h *StatisticsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	sessions, err := h.history.SessionHistory(r.Context(), userID)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"statistics": stats.Compute(sessions, h.now(), h.loc),
		"timezone":   h.loc.String(),
	})
}
