package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"museflow/internal/models"
	"museflow/internal/store"
)

type SessionStore interface {
	CreateSession(ctx context.Context, ws *models.WritingSession) error
	Session(ctx context.Context, userID int, id string) (models.WritingSession, error)
	UpdateSession(ctx context.Context, ws *models.WritingSession) error
	DeleteSession(ctx context.Context, userID int, id string) error
	ListSessions(ctx context.Context, userID int, f store.SessionFilter) ([]models.WritingSession, error)
}

type SessionHandler struct {
	sessions SessionStore
	feedback FeedbackStore
	log      *zap.Logger
	now      func() time.Time
}

func NewSessionHandler(sessions SessionStore, fb FeedbackStore, log *zap.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, feedback: fb, log: orNop(log), now: time.Now}
}

type sessionRequest struct {
	ID      string  `json:"id"`
	TopicID string  `json:"topic_id"`
	Content *string `json:"content"`
	Status  string  `json:"status"`
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	f := store.SessionFilter{Status: models.Status(r.URL.Query().Get("status"))}
	sessions, err := h.sessions.ListSessions(r.Context(), userID, f)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req sessionRequest
	if !decode(w, r, &req) {
		return
	}
	req.TopicID = strings.TrimSpace(req.TopicID)
	if req.TopicID == "" {
		writeError(w, http.StatusBadRequest, "topic_id is required")
		return
	}
	status := models.Status(req.Status)
	if status == "" {
		status = models.StatusDraft
	}
	if !status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	ws := &models.WritingSession{UserID: userID, TopicID: req.TopicID, Status: models.StatusDraft}
	if req.Content != nil {
		ws.Content = *req.Content
	}
	if err := ws.Transition(status, h.now()); err != nil {
		respondError(w, h.log, err)
		return
	}
	if err := h.sessions.CreateSession(r.Context(), ws); err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"session": ws})
}

// Get returns one session with its feedback, if any.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	ws, err := h.sessions.Session(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	if ws.Status == models.StatusCompleted && h.feedback != nil {
		fb, err := h.feedback.Feedback(r.Context(), userID, ws.ID)
		switch {
		case err == nil:
			ws.Feedback = &fb
		case !errors.Is(err, store.ErrNotFound):
			respondError(w, h.log, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": ws})
}

// Update edits a draft and optionally completes it. Completed sessions are
// immutable; repeating the completion with unchanged content is a no-op.
func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req sessionRequest
	if !decode(w, r, &req) {
		return
	}
	status := models.Status(req.Status)
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	ws, err := h.sessions.Session(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	if ws.Status == models.StatusCompleted {
		unchanged := req.Content == nil || *req.Content == ws.Content
		if unchanged && (status == "" || status == models.StatusCompleted) {
			writeJSON(w, http.StatusOK, map[string]any{"session": ws})
			return
		}
		if status == models.StatusDraft {
			respondError(w, h.log, models.ErrInvalidTransition)
			return
		}
		respondError(w, h.log, store.ErrNotEditable)
		return
	}

	if req.Content != nil {
		ws.SetContent(*req.Content)
	}
	if status != "" {
		if err := ws.Transition(status, h.now()); err != nil {
			respondError(w, h.log, err)
			return
		}
	}
	if err := h.sessions.UpdateSession(r.Context(), &ws); err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": ws})
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.sessions.DeleteSession(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "session deleted"})
}

// AutoSave updates the draft named by id, or creates a new draft when id is
// empty or unknown.
func (h *SessionHandler) AutoSave(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req sessionRequest
	if !decode(w, r, &req) {
		return
	}
	req.TopicID = strings.TrimSpace(req.TopicID)
	if req.TopicID == "" {
		writeError(w, http.StatusBadRequest, "topic_id is required")
		return
	}
	content := ""
	if req.Content != nil {
		content = *req.Content
	}

	if req.ID != "" {
		ws, err := h.sessions.Session(r.Context(), userID, req.ID)
		switch {
		case err == nil:
			if ws.Status == models.StatusCompleted {
				respondError(w, h.log, store.ErrNotEditable)
				return
			}
			ws.SetContent(content)
			if err := h.sessions.UpdateSession(r.Context(), &ws); err != nil {
				respondError(w, h.log, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"session": ws})
			return
		case !errors.Is(err, store.ErrNotFound):
			respondError(w, h.log, err)
			return
		}
	}

	ws := &models.WritingSession{UserID: userID, TopicID: req.TopicID, Status: models.StatusDraft, Content: content}
	if err := h.sessions.CreateSession(r.Context(), ws); err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"session": ws})
}
