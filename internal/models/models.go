package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode"
)

type User struct {
	ID         int       `db:"id" json:"id"`
	Email      string    `db:"email" json:"email"`             // Sealed in DB
	EmailIndex string    `db:"email_index" json:"-"`           // HMAC blind index for lookup
	Password   string    `db:"password_hash" json:"-"`
	FullName   string    `db:"full_name" json:"full_name"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

type Category string

const (
	CategoryImagination   Category = "imagination"
	CategoryEmotion       Category = "emotion"
	CategoryReflection    Category = "reflection"
	CategoryCreative      Category = "creative"
	CategoryPhilosophical Category = "philosophical"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryImagination, CategoryEmotion, CategoryReflection, CategoryCreative, CategoryPhilosophical:
		return true
	}
	return false
}

// StringList is a []string stored as a JSONB array.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

func (l *StringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("string list: unsupported type %T", src)
	}
	return json.Unmarshal(raw, (*[]string)(l))
}

type Topic struct {
	ID        string     `db:"id" json:"id"`
	Title     string     `db:"title" json:"title"`
	Prompt    string     `db:"prompt" json:"prompt"`
	Category  Category   `db:"category" json:"category"`
	Angles    StringList `db:"angles" json:"angles"`
	Examples  StringList `db:"examples" json:"examples"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

type Status string

const (
	StatusDraft     Status = "draft"
	StatusCompleted Status = "completed"
)

func (s Status) Valid() bool { return s == StatusDraft || s == StatusCompleted }

var ErrInvalidTransition = errors.New("completed session cannot return to draft")

type WritingSession struct {
	ID          string     `db:"id" json:"id,omitempty"`
	UserID      int        `db:"user_id" json:"user_id"`
	TopicID     string     `db:"topic_id" json:"topic_id"`
	Content     string     `db:"content" json:"content"` // Sealed in DB
	WordCount   int        `db:"word_count" json:"word_count"`
	Status      Status     `db:"status" json:"status"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`

	Topic    *TopicSummary `db:"-" json:"topic,omitempty"`
	Feedback *Feedback     `db:"-" json:"feedback,omitempty"`
}

type TopicSummary struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Prompt   string   `json:"prompt"`
	Category Category `json:"category"`
}

// CountWords counts the characters of content that are not whitespace.
// For Chinese text every character is a word.
func CountWords(content string) int {
	n := 0
	for _, r := range content {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

// SetContent replaces the content and keeps WordCount in sync.
func (s *WritingSession) SetContent(content string) {
	s.Content = content
	s.WordCount = CountWords(content)
}

// Complete moves a draft to completed. Completing twice keeps the first
// completion time.
func (s *WritingSession) Complete(at time.Time) {
	if s.Status == StatusCompleted {
		return
	}
	s.Status = StatusCompleted
	t := at
	s.CompletedAt = &t
}

// Transition applies a requested status, refusing completed -> draft.
func (s *WritingSession) Transition(to Status, at time.Time) error {
	switch {
	case to == s.Status:
		return nil
	case to == StatusCompleted:
		s.Complete(at)
		return nil
	default:
		return ErrInvalidTransition
	}
}

type Scores struct {
	Creativity int `db:"creativity" json:"creativity"`
	Emotion    int `db:"emotion" json:"emotion"`
	Expression int `db:"expression" json:"expression"`
	Logic      int `db:"logic" json:"logic"`
	Vocabulary int `db:"vocabulary" json:"vocabulary"`
}

// Values returns the scores in dimension order.
func (s Scores) Values() [5]int {
	return [5]int{s.Creativity, s.Emotion, s.Expression, s.Logic, s.Vocabulary}
}

// InRange reports whether every score lies in [0,100].
func (s Scores) InRange() bool {
	for _, v := range s.Values() {
		if v < 0 || v > 100 {
			return false
		}
	}
	return true
}

type ImprovedSentence struct {
	Original string `json:"original"`
	Improved string `json:"improved"`
}

type Feedback struct {
	SessionID        string            `json:"session_id,omitempty"`
	Scores           Scores            `json:"scores"`
	Encouragement    string            `json:"encouragement"`
	Suggestions      StringList        `json:"suggestions"`
	ImprovedSentence *ImprovedSentence `json:"improved_sentence,omitempty"`
	IsFallback       bool              `json:"is_fallback"`
	CreatedAt        time.Time         `json:"created_at,omitzero"`
}

type ChartPoint struct {
	CreatedAt time.Time `json:"created_at"`
	WordCount int       `json:"word_count"`
	Status    Status    `json:"status"`
}

type UserStatistics struct {
	TotalSessions     int          `json:"total_sessions"`
	TotalWords        int          `json:"total_words"`
	AverageCreativity *float64     `json:"average_creativity_score"`
	AverageEmotion    *float64     `json:"average_emotion_score"`
	AverageExpression *float64     `json:"average_expression_score"`
	AverageLogic      *float64     `json:"average_logic_score"`
	AverageVocabulary *float64     `json:"average_vocabulary_score"`
	LastActivityAt    *time.Time   `json:"last_activity_at"`
	CurrentStreak     int          `json:"current_streak"`
	ChartData         []ChartPoint `json:"chart_data"`
}
