package feedback

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gatewayFunc func(ctx context.Context, system, user string) (string, error)

func (f gatewayFunc) Complete(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

const goodReply = `{"scores":{"creativity":90,"emotion":85,"expression":80,"logic":75,"vocabulary":70},
"encouragement":"你的文字很有画面感","suggestions":["多用动词"]}`

func TestPipeline_UsesModelReply(t *testing.T) {
	var gotSystem, gotUser string
	p := NewPipeline(gatewayFunc(func(_ context.Context, system, user string) (string, error) {
		gotSystem, gotUser = system, user
		return "以下是评价：" + goodReply, nil
	}))

	res := p.Generate(context.Background(), "春风吹过田野。", "描写春天")
	assert.False(t, res.Fallback)
	assert.False(t, res.Feedback.IsFallback)
	assert.Equal(t, 90, res.Feedback.Scores.Creativity)
	assert.Equal(t, "你的文字很有画面感", res.Feedback.Encouragement)
	assert.Contains(t, gotSystem, "写作导师")
	assert.Contains(t, gotUser, "题目：描写春天")
	assert.Contains(t, gotUser, "春风吹过田野。")
}

func TestPipeline_FallsBack(t *testing.T) {
	tests := map[string]Gateway{
		"nil gateway": nil,
		"network error": gatewayFunc(func(context.Context, string, string) (string, error) {
			return "", ErrUnavailable
		}),
		"malformed reply": gatewayFunc(func(context.Context, string, string) (string, error) {
			return "我觉得写得不错", nil
		}),
		"invalid schema": gatewayFunc(func(context.Context, string, string) (string, error) {
			return `{"scores":{"creativity":90}}`, nil
		}),
	}
	for name, gw := range tests {
		t.Run(name, func(t *testing.T) {
			res := NewPipeline(gw).Generate(context.Background(), "一段文字", "题目")
			assert.True(t, res.Fallback)
			assertUsable(t, res)
		})
	}
}

func TestPipeline_Timeout(t *testing.T) {
	p := NewPipeline(gatewayFunc(func(ctx context.Context, _, _ string) (string, error) {
		<-ctx.Done()
		return "", errors.New("request aborted")
	}), WithTimeout(20*time.Millisecond))

	start := time.Now()
	res := p.Generate(context.Background(), "一段文字", "题目")
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, res.Fallback)
	assertUsable(t, res)
}

func TestFallback_Scores(t *testing.T) {
	rnd := rand.New(rand.NewPCG(1, 2))
	for _, words := range []int{0, 10, 200, 500, 5000} {
		content := strings.Repeat("字", words)
		for i := 0; i < 50; i++ {
			fb := Fallback(content, rnd)
			base := min(85+words/50, 95)
			for _, v := range fb.Scores.Values() {
				assert.GreaterOrEqual(t, v, base)
				assert.LessOrEqual(t, v, 100)
			}
			assert.True(t, fb.IsFallback)
			require.Len(t, fb.Suggestions, 3)
			assert.NotEqual(t, fb.Suggestions[0], fb.Suggestions[1])
			assert.NotEqual(t, fb.Suggestions[1], fb.Suggestions[2])
			assert.NotEqual(t, fb.Suggestions[0], fb.Suggestions[2])
			assert.NotEmpty(t, fb.Encouragement)
		}
	}
}

func TestFallback_NilRand(t *testing.T) {
	fb := Fallback("", nil)
	assert.True(t, fb.Scores.InRange())
}

func assertUsable(t *testing.T, res Result) {
	t.Helper()
	assert.True(t, res.Feedback.Scores.InRange())
	assert.NotEmpty(t, res.Feedback.Encouragement)
	assert.NotEmpty(t, res.Feedback.Suggestions)
	assert.LessOrEqual(t, len(res.Feedback.Suggestions), 3)
}
