package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"museflow/internal/models"
	"museflow/internal/store"
)

type TopicStore interface {
	ListTopics(ctx context.Context, f store.TopicFilter) ([]models.Topic, error)
	Topic(ctx context.Context, id string) (models.Topic, error)
}

type TopicHandler struct {
	topics TopicStore
	log    *zap.Logger
}

func NewTopicHandler(topics TopicStore, log *zap.Logger) *TopicHandler {
	return &TopicHandler{topics: topics, log: orNop(log)}
}

// List accepts optional category and limit query params.
func (h *TopicHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.TopicFilter{Category: models.Category(q.Get("category"))}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		f.Limit = n
	}
	topics, err := h.topics.ListTopics(r.Context(), f)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"topics": topics})
}

func (h *TopicHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.topics.Topic(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"topic": t})
}
