package feedback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"museflow/internal/models"
)

func TestExtractObject(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"bare", `{"a":1}`, `{"a":1}`},
		{"prose around", "好的，以下是反馈：\n{\"a\":{\"b\":2}}\n希望有帮助", `{"a":{"b":2}}`},
		{"code fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"brace in string", `{"a":"}{"} trailing {"b":1}`, `{"a":"}{"}`},
		{"escaped quote", `{"a":"say \"}\""}`, `{"a":"say \"}\""}`},
		{"unbalanced", `{"a":{"b":1}`, ""},
		{"none", "no json here", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractObject(tt.raw))
		})
	}
}

func TestParseReply_Valid(t *testing.T) {
	raw := "```json\n" + `{
  "scores": {"creativity": 88, "emotion": "91.6", "expression": 0, "logic": 150, "vocabulary": "很好"},
  "encouragement": " 写得真诚动人 ",
  "suggestions": ["多用比喻", 42, "", "注意节奏", "结尾呼应", "第四条"],
  "improvedSentence": {"original": "天很蓝。", "improved": "天蓝得像被洗过一样。"}
}` + "\n```"

	fb, err := parseReply(raw)
	require.NoError(t, err)
	assert.Equal(t, models.Scores{Creativity: 88, Emotion: 92, Expression: 0, Logic: 80, Vocabulary: 80}, fb.Scores)
	assert.Equal(t, "写得真诚动人", fb.Encouragement)
	assert.Equal(t, models.StringList{"多用比喻", "注意节奏", "结尾呼应"}, fb.Suggestions)
	require.NotNil(t, fb.ImprovedSentence)
	assert.Equal(t, "天蓝得像被洗过一样。", fb.ImprovedSentence.Improved)
	assert.False(t, fb.IsFallback)
}

func TestParseReply_MissingScoresDefault(t *testing.T) {
	fb, err := parseReply(`{"scores": {}, "encouragement": "好", "suggestions": []}`)
	require.NoError(t, err)
	for _, v := range fb.Scores.Values() {
		assert.Equal(t, 80, v)
	}
	assert.Len(t, fb.Suggestions, 1)
	assert.Nil(t, fb.ImprovedSentence)
}

func TestParseReply_ImprovedSentenceNeedsBothHalves(t *testing.T) {
	fb, err := parseReply(`{"scores":{},"encouragement":"好","suggestions":["a"],"improved_sentence":{"original":"x","improved":""}}`)
	require.NoError(t, err)
	assert.Nil(t, fb.ImprovedSentence)

	fb, err = parseReply(`{"scores":{},"encouragement":"好","suggestions":["a"],"improved_sentence":{"original":"x","improved":"y"}}`)
	require.NoError(t, err)
	require.NotNil(t, fb.ImprovedSentence)
	assert.Equal(t, "y", fb.ImprovedSentence.Improved)
}

func TestParseReply_Invalid(t *testing.T) {
	tests := map[string]string{
		"no object":           "抱歉，我无法评价",
		"broken json":         `{"scores": {"creativity": 90,}}`,
		"no scores":           `{"encouragement": "好", "suggestions": []}`,
		"scores not object":   `{"scores": 90, "encouragement": "好", "suggestions": []}`,
		"empty encouragement": `{"scores": {}, "encouragement": "  ", "suggestions": []}`,
		"encouragement type":  `{"scores": {}, "encouragement": 5, "suggestions": []}`,
		"suggestions string":  `{"scores": {}, "encouragement": "好", "suggestions": "多读书"}`,
		"suggestions missing": `{"scores": {}, "encouragement": "好"}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := parseReply(raw)
			assert.ErrorIs(t, err, ErrInvalidOutput)
		})
	}
}

func TestCoerceScore(t *testing.T) {
	tests := []struct {
		in   any
		want int
	}{
		{float64(75), 75},
		{float64(99.5), 100},
		{float64(100), 100},
		{float64(0), 0},
		{float64(-1), 80},
		{float64(100.2), 80},
		{" 66 ", 66},
		{"abc", 80},
		{nil, 80},
		{true, 80},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, coerceScore(tt.in), "input %v", tt.in)
	}
}
