package handlers

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"museflow/internal/feedback"
	"museflow/internal/models"
)

type FeedbackStore interface {
	CreateFeedback(ctx context.Context, userID int, fb *models.Feedback) error
	Feedback(ctx context.Context, userID int, sessionID string) (models.Feedback, error)
}

type FeedbackGenerator interface {
	Generate(ctx context.Context, content, topicPrompt string) feedback.Result
}

type FeedbackHandler struct {
	store     FeedbackStore
	generator FeedbackGenerator
	log       *zap.Logger
}

func NewFeedbackHandler(st FeedbackStore, gen FeedbackGenerator, log *zap.Logger) *FeedbackHandler {
	return &FeedbackHandler{store: st, generator: gen, log: orNop(log)}
}

type generateRequest struct {
	Content     string `json:"content"`
	TopicPrompt string `json:"topic_prompt"`
}

// Generate runs the feedback pipeline. It answers 200 even when the model is
// unavailable; the fallback flag tells the two apart.
func (h *FeedbackHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Content) == "" || strings.TrimSpace(req.TopicPrompt) == "" {
		writeError(w, http.StatusBadRequest, "content and topic_prompt are required")
		return
	}
	writeJSON(w, http.StatusOK, h.generator.Generate(r.Context(), req.Content, req.TopicPrompt))
}

func (h *FeedbackHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	fb, err := h.store.Feedback(r.Context(), userID, sessionID)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"feedback": fb})
}

type createFeedbackRequest struct {
	SessionID        string                   `json:"session_id"`
	Scores           *models.Scores           `json:"scores"`
	Encouragement    string                   `json:"encouragement"`
	Suggestions      []string                 `json:"suggestions"`
	ImprovedSentence *models.ImprovedSentence `json:"improved_sentence"`
	IsFallback       bool                     `json:"is_fallback"`
}

// Create stores feedback for a completed session the caller owns.
func (h *FeedbackHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req createFeedbackRequest
	if !decode(w, r, &req) {
		return
	}
	if req.SessionID == "" || req.Scores == nil || strings.TrimSpace(req.Encouragement) == "" {
		writeError(w, http.StatusBadRequest, "session_id, scores and encouragement are required")
		return
	}
	if !req.Scores.InRange() {
		writeError(w, http.StatusBadRequest, "scores must be between 0 and 100")
		return
	}
	if len(req.Suggestions) > 3 {
		writeError(w, http.StatusBadRequest, "at most 3 suggestions")
		return
	}
	if s := req.ImprovedSentence; s != nil && (s.Original == "" || s.Improved == "") {
		req.ImprovedSentence = nil
	}

	fb := &models.Feedback{
		SessionID:        req.SessionID,
		Scores:           *req.Scores,
		Encouragement:    req.Encouragement,
		Suggestions:      models.StringList(req.Suggestions),
		ImprovedSentence: req.ImprovedSentence,
		IsFallback:       req.IsFallback,
	}
	if fb.Suggestions == nil {
		fb.Suggestions = models.StringList{}
	}
	if err := h.store.CreateFeedback(r.Context(), userID, fb); err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"feedback": fb})
}
