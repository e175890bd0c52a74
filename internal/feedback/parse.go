package feedback

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"museflow/internal/models"
)

const (
	neutralScore   = 80
	maxSuggestions = 3
)

type reply struct {
	Scores           map[string]any `json:"scores"`
	Encouragement    any            `json:"encouragement"`
	Suggestions      any            `json:"suggestions"`
	ImprovedSentence any            `json:"improvedSentence"`
	ImprovedSnake    any            `json:"improved_sentence"`
}

// parseReply turns raw model output into feedback. Any structural problem
// yields ErrInvalidOutput; out-of-range scores are repaired, not rejected.
func parseReply(raw string) (models.Feedback, error) {
	obj := extractObject(raw)
	if obj == "" {
		return models.Feedback{}, fmt.Errorf("%w: no JSON object in reply", ErrInvalidOutput)
	}
	var r reply
	if err := json.Unmarshal([]byte(obj), &r); err != nil {
		return models.Feedback{}, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if r.Scores == nil {
		return models.Feedback{}, fmt.Errorf("%w: missing scores", ErrInvalidOutput)
	}
	encouragement, _ := r.Encouragement.(string)
	encouragement = strings.TrimSpace(encouragement)
	if encouragement == "" {
		return models.Feedback{}, fmt.Errorf("%w: missing encouragement", ErrInvalidOutput)
	}
	list, ok := r.Suggestions.([]any)
	if !ok {
		return models.Feedback{}, fmt.Errorf("%w: suggestions is not a list", ErrInvalidOutput)
	}

	fb := models.Feedback{
		Scores: models.Scores{
			Creativity: coerceScore(r.Scores["creativity"]),
			Emotion:    coerceScore(r.Scores["emotion"]),
			Expression: coerceScore(r.Scores["expression"]),
			Logic:      coerceScore(r.Scores["logic"]),
			Vocabulary: coerceScore(r.Scores["vocabulary"]),
		},
		Encouragement: encouragement,
		Suggestions:   cleanSuggestions(list),
	}
	improved := r.ImprovedSentence
	if improved == nil {
		improved = r.ImprovedSnake
	}
	fb.ImprovedSentence = improvedSentence(improved)
	return fb, nil
}

// coerceScore accepts numbers and numeric strings, rounding to the nearest
// integer. Anything missing, non-numeric or outside [0,100] becomes 80.
func coerceScore(v any) int {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return neutralScore
		}
		f = parsed
	default:
		return neutralScore
	}
	if math.IsNaN(f) || f < 0 || f > 100 {
		return neutralScore
	}
	return int(math.Round(f))
}

func cleanSuggestions(list []any) models.StringList {
	out := make(models.StringList, 0, maxSuggestions)
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		out = append(out, s)
		if len(out) == maxSuggestions {
			break
		}
	}
	if len(out) == 0 {
		out = append(out, suggestionPool[0])
	}
	return out
}

func improvedSentence(v any) *models.ImprovedSentence {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	original, _ := m["original"].(string)
	improved, _ := m["improved"].(string)
	original, improved = strings.TrimSpace(original), strings.TrimSpace(improved)
	if original == "" || improved == "" {
		return nil
	}
	return &models.ImprovedSentence{Original: original, Improved: improved}
}
