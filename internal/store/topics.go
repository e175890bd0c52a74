package store

import (
	"context"
	"fmt"

	"museflow/internal/models"
)

const (
	DefaultTopicLimit = 12
	MaxTopicLimit     = 100
)

type TopicFilter struct {
	Category models.Category // empty means all categories
	Limit    int
}

// ListTopics returns the newest topics first, optionally restricted to one
// category.
func (s *Store) ListTopics(ctx context.Context, f TopicFilter) ([]models.Topic, error) {
	if f.Category != "" && !f.Category.Valid() {
		return nil, fmt.Errorf("category %q: %w", f.Category, ErrValidation)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultTopicLimit
	}
	if limit > MaxTopicLimit {
		limit = MaxTopicLimit
	}

	q := s.psql.
		Select("id", "title", "prompt", "category", "angles", "examples", "created_at").
		From("topics").
		OrderBy("created_at DESC", "length(id)", "id").
		Limit(uint64(limit))
	if f.Category != "" {
		q = q.Where("category = ?", string(f.Category))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build topics query: %w", err)
	}

	topics := []models.Topic{}
	if err := s.db.SelectContext(ctx, &topics, query, args...); err != nil {
		return nil, mapError(err, "list topics")
	}
	return topics, nil
}

func (s *Store) Topic(ctx context.Context, id string) (models.Topic, error) {
	var t models.Topic
	err := s.db.GetContext(ctx, &t,
		`SELECT id, title, prompt, category, angles, examples, created_at FROM topics WHERE id=$1`, id)
	if err != nil {
		return models.Topic{}, mapError(err, "topic "+id)
	}
	return t, nil
}
