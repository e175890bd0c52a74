package feedback

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"museflow/internal/models"
)

const DefaultTimeout = 20 * time.Second

// Result is the outcome of Generate. Fallback is true when the feedback was
// synthesized locally.
type Result struct {
	Feedback models.Feedback `json:"feedback"`
	Fallback bool            `json:"fallback"`
}

// Pipeline turns finished text into feedback. It always produces a usable
// result: gateway failures and malformed replies fall back to templates.
type Pipeline struct {
	gateway Gateway
	timeout time.Duration
	log     *zap.Logger
	rnd     Intn
}

type Option func(*Pipeline)

func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// WithRand fixes the randomness of fallback feedback.
func WithRand(r Intn) Option {
	return func(p *Pipeline) { p.rnd = r }
}

// NewPipeline builds a pipeline. A nil gateway makes every call fall back.
func NewPipeline(gw Gateway, opts ...Option) *Pipeline {
	p := &Pipeline{
		gateway: gw,
		timeout: DefaultTimeout,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Configured reports whether a model gateway is attached.
func (p *Pipeline) Configured() bool { return p.gateway != nil }

func (p *Pipeline) Generate(ctx context.Context, content, topicPrompt string) Result {
	fb, err := p.generate(ctx, content, topicPrompt)
	if err != nil {
		fields := []zap.Field{zap.Error(err), zap.Int("word_count", models.CountWords(content))}
		if errors.Is(err, ErrNotConfigured) {
			p.log.Debug("feedback: no model gateway, using fallback", fields...)
		} else {
			p.log.Warn("feedback: model gateway failed, using fallback", fields...)
		}
		return Result{Feedback: Fallback(content, p.rnd), Fallback: true}
	}
	return Result{Feedback: fb}
}

func (p *Pipeline) generate(ctx context.Context, content, topicPrompt string) (models.Feedback, error) {
	if p.gateway == nil {
		return models.Feedback{}, ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	raw, err := p.gateway.Complete(ctx, systemPrompt, userPrompt(topicPrompt, content))
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, ErrTimeout) {
			return models.Feedback{}, errors.Join(ErrTimeout, err)
		}
		return models.Feedback{}, err
	}
	fb, err := parseReply(raw)
	if err != nil {
		p.log.Debug("feedback: unusable reply", zap.String("reply", truncate(raw, 500)))
		return models.Feedback{}, err
	}
	return fb, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
