package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"museflow/internal/models"
)

type feedbackRow struct {
	SessionID        string            `db:"session_id"`
	models.Scores                      // creativity..vocabulary
	Encouragement    string            `db:"encouragement"`
	Suggestions      models.StringList `db:"suggestions"`
	ImprovedOriginal sql.NullString    `db:"improved_original"`
	ImprovedText     sql.NullString    `db:"improved_text"`
	IsFallback       bool              `db:"is_fallback"`
	CreatedAt        time.Time         `db:"created_at"`
}

func (r feedbackRow) toModel() models.Feedback {
	fb := models.Feedback{
		SessionID:     r.SessionID,
		Scores:        r.Scores,
		Encouragement: r.Encouragement,
		Suggestions:   r.Suggestions,
		IsFallback:    r.IsFallback,
		CreatedAt:     r.CreatedAt,
	}
	if fb.Suggestions == nil {
		fb.Suggestions = models.StringList{}
	}
	if r.ImprovedOriginal.Valid && r.ImprovedText.Valid {
		fb.ImprovedSentence = &models.ImprovedSentence{
			Original: r.ImprovedOriginal.String,
			Improved: r.ImprovedText.String,
		}
	}
	return fb
}

// CreateFeedback records the feedback of a completed session the user owns.
// A session holds at most one feedback record.
func (s *Store) CreateFeedback(ctx context.Context, userID int, fb *models.Feedback) error {
	if !fb.Scores.InRange() {
		return fmt.Errorf("scores out of range: %w", ErrValidation)
	}
	ws, err := s.Session(ctx, userID, fb.SessionID)
	if err != nil {
		return err
	}
	if ws.Status != models.StatusCompleted {
		return fmt.Errorf("session %s: %w", ws.ID, ErrNotCompleted)
	}

	var original, improved sql.NullString
	if fb.ImprovedSentence != nil {
		original = sql.NullString{String: fb.ImprovedSentence.Original, Valid: true}
		improved = sql.NullString{String: fb.ImprovedSentence.Improved, Valid: true}
	}
	sc := fb.Scores
	err = s.db.QueryRowxContext(ctx,
		`INSERT INTO feedback_history
		   (session_id, creativity, emotion, expression, logic, vocabulary,
		    encouragement, suggestions, improved_original, improved_text, is_fallback)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING created_at`,
		fb.SessionID, sc.Creativity, sc.Emotion, sc.Expression, sc.Logic, sc.Vocabulary,
		fb.Encouragement, fb.Suggestions, original, improved, fb.IsFallback).
		Scan(&fb.CreatedAt)
	if err != nil {
		return mapError(err, "feedback for "+fb.SessionID)
	}
	return nil
}

// Feedback returns the feedback stored for one of the user's sessions.
func (s *Store) Feedback(ctx context.Context, userID int, sessionID string) (models.Feedback, error) {
	if _, err := s.Session(ctx, userID, sessionID); err != nil {
		return models.Feedback{}, err
	}
	var r feedbackRow
	err := s.db.GetContext(ctx, &r,
		`SELECT session_id, creativity, emotion, expression, logic, vocabulary,
		        encouragement, suggestions, improved_original, improved_text, is_fallback, created_at
		 FROM feedback_history WHERE session_id=$1`, sessionID)
	if err != nil {
		return models.Feedback{}, mapError(err, "feedback for "+sessionID)
	}
	return r.toModel(), nil
}
