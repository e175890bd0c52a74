package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"museflow/internal/models"
)

type SessionFilter struct {
	Status models.Status // empty means all
}

type sessionRow struct {
	models.WritingSession
	TopicTitle    string `db:"topic_title"`
	TopicPrompt   string `db:"topic_prompt"`
	TopicCategory string `db:"topic_category"`
}

func (s *Store) sessionSelect() sq.SelectBuilder {
	return s.psql.
		Select("s.id", "s.user_id", "s.topic_id", "s.content", "s.word_count", "s.status",
			"s.created_at", "s.updated_at", "s.completed_at",
			"t.title AS topic_title", "t.prompt AS topic_prompt", "t.category AS topic_category").
		From("writing_sessions s").
		Join("topics t ON t.id = s.topic_id")
}

func (s *Store) fromRow(r sessionRow) (models.WritingSession, error) {
	ws := r.WritingSession
	content, err := s.sealer.Open(ws.Content)
	if err != nil {
		return models.WritingSession{}, fmt.Errorf("open session %s: %w", ws.ID, err)
	}
	ws.Content = content
	ws.Topic = &models.TopicSummary{
		ID:       ws.TopicID,
		Title:    r.TopicTitle,
		Prompt:   r.TopicPrompt,
		Category: models.Category(r.TopicCategory),
	}
	return ws, nil
}

// CreateSession inserts ws for its owner. ID, word count and timestamps are
// assigned here; the caller-supplied word count is ignored.
func (s *Store) CreateSession(ctx context.Context, ws *models.WritingSession) error {
	if ws.TopicID == "" {
		return fmt.Errorf("topic_id is required: %w", ErrValidation)
	}
	if ws.Status == "" {
		ws.Status = models.StatusDraft
	}
	if !ws.Status.Valid() {
		return fmt.Errorf("status %q: %w", ws.Status, ErrValidation)
	}
	if ws.Status == models.StatusCompleted && ws.CompletedAt == nil {
		now := time.Now().UTC()
		ws.CompletedAt = &now
	}
	ws.SetContent(ws.Content)
	ws.ID = uuid.NewString()

	sealed, err := s.sealer.Seal(ws.Content)
	if err != nil {
		return fmt.Errorf("seal content: %w", err)
	}
	err = s.db.QueryRowxContext(ctx,
		`INSERT INTO writing_sessions (id, user_id, topic_id, content, word_count, status, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at, updated_at`,
		ws.ID, ws.UserID, ws.TopicID, sealed, ws.WordCount, ws.Status, ws.CompletedAt).
		Scan(&ws.CreatedAt, &ws.UpdatedAt)
	if err != nil {
		ws.ID = ""
		return mapError(err, "create session")
	}
	return nil
}

// Session loads one session. A session owned by someone else yields
// ErrForbidden rather than ErrNotFound.
func (s *Store) Session(ctx context.Context, userID int, id string) (models.WritingSession, error) {
	query, args, err := s.sessionSelect().Where("s.id = ?", id).ToSql()
	if err != nil {
		return models.WritingSession{}, fmt.Errorf("build session query: %w", err)
	}
	var r sessionRow
	if err := s.db.GetContext(ctx, &r, query, args...); err != nil {
		return models.WritingSession{}, mapError(err, "session "+id)
	}
	if r.UserID != userID {
		return models.WritingSession{}, fmt.Errorf("session %s: %w", id, ErrForbidden)
	}
	return s.fromRow(r)
}

// UpdateSession writes content, status and completion time of a draft.
// Last write wins; a session already completed in the database is refused.
func (s *Store) UpdateSession(ctx context.Context, ws *models.WritingSession) error {
	ws.SetContent(ws.Content)
	sealed, err := s.sealer.Seal(ws.Content)
	if err != nil {
		return fmt.Errorf("seal content: %w", err)
	}
	rows, err := s.db.QueryxContext(ctx,
		`UPDATE writing_sessions
		 SET content=$1, word_count=$2, status=$3, completed_at=$4, updated_at=NOW()
		 WHERE id=$5 AND user_id=$6 AND status='draft'
		 RETURNING updated_at`,
		sealed, ws.WordCount, ws.Status, ws.CompletedAt, ws.ID, ws.UserID)
	if err != nil {
		return mapError(err, "update session "+ws.ID)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&ws.UpdatedAt); err != nil {
			return mapError(err, "update session "+ws.ID)
		}
		return rows.Err()
	}
	if err := rows.Err(); err != nil {
		return mapError(err, "update session "+ws.ID)
	}
	// Nothing updated: tell apart missing, foreign and completed sessions.
	current, err := s.Session(ctx, ws.UserID, ws.ID)
	if err != nil {
		return err
	}
	if current.Status == models.StatusCompleted {
		return fmt.Errorf("session %s: %w", ws.ID, ErrNotEditable)
	}
	return fmt.Errorf("session %s: %w", ws.ID, ErrNotFound)
}

func (s *Store) DeleteSession(ctx context.Context, userID int, id string) error {
	if _, err := s.Session(ctx, userID, id); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM writing_sessions WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return mapError(err, "delete session "+id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListSessions returns the user's sessions, newest first.
func (s *Store) ListSessions(ctx context.Context, userID int, f SessionFilter) ([]models.WritingSession, error) {
	q := s.sessionSelect().Where("s.user_id = ?", userID).OrderBy("s.created_at DESC")
	if f.Status != "" {
		if !f.Status.Valid() {
			return nil, fmt.Errorf("status %q: %w", f.Status, ErrValidation)
		}
		q = q.Where("s.status = ?", string(f.Status))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sessions query: %w", err)
	}
	var rows []sessionRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, mapError(err, "list sessions")
	}
	out := make([]models.WritingSession, 0, len(rows))
	for _, r := range rows {
		ws, err := s.fromRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, ws)
	}
	return out, nil
}

type historyRow struct {
	ID          string     `db:"id"`
	WordCount   int        `db:"word_count"`
	Status      string     `db:"status"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
	CompletedAt *time.Time `db:"completed_at"`
	Creativity  *int       `db:"creativity"`
	Emotion     *int       `db:"emotion"`
	Expression  *int       `db:"expression"`
	Logic       *int       `db:"logic"`
	Vocabulary  *int       `db:"vocabulary"`
}

// SessionHistory returns every session of the user with attached feedback
// scores and without content, which is all statistics need.
func (s *Store) SessionHistory(ctx context.Context, userID int) ([]models.WritingSession, error) {
	var rows []historyRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT s.id, s.word_count, s.status, s.created_at, s.updated_at, s.completed_at,
		       f.creativity, f.emotion, f.expression, f.logic, f.vocabulary
		FROM writing_sessions s
		LEFT JOIN feedback_history f ON f.session_id = s.id
		WHERE s.user_id = $1
		ORDER BY s.created_at DESC`, userID)
	if err != nil {
		return nil, mapError(err, "session history")
	}
	out := make([]models.WritingSession, 0, len(rows))
	for _, r := range rows {
		ws := models.WritingSession{
			ID:          r.ID,
			UserID:      userID,
			WordCount:   r.WordCount,
			Status:      models.Status(r.Status),
			CreatedAt:   r.CreatedAt,
			UpdatedAt:   r.UpdatedAt,
			CompletedAt: r.CompletedAt,
		}
		if r.Creativity != nil {
			ws.Feedback = &models.Feedback{
				SessionID: r.ID,
				Scores: models.Scores{
					Creativity: *r.Creativity,
					Emotion:    deref(r.Emotion),
					Expression: deref(r.Expression),
					Logic:      deref(r.Logic),
					Vocabulary: deref(r.Vocabulary),
				},
			}
		}
		out = append(out, ws)
	}
	return out, nil
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
