package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Gateway sends one system + user prompt pair to a language model and
// returns the raw text of its reply.
type Gateway interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type ChatConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	JSONMode    bool // request response_format json_object
	MaxRetries  int
	// RetryBackoff is the wait before the first retry; it doubles after
	// each further attempt. Zero means DefaultRetryBackoff.
	RetryBackoff time.Duration
}

const DefaultRetryBackoff = 500 * time.Millisecond

// ChatClient talks to an OpenAI-compatible chat completions endpoint
// (BigModel by default).
type ChatClient struct {
	cfg  ChatConfig
	http *http.Client
}

func NewChatClient(cfg ChatConfig) *ChatClient {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	return &ChatClient{
		cfg: cfg,
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
			},
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// statusError is a non-2xx reply. 4xx replies other than 429 are not retried.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.code, e.body)
}

func (c *ChatClient) Complete(ctx context.Context, system, user string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", ErrNotConfigured
	}
	body := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}
	if c.cfg.JSONMode {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	var lastErr error
	backoff := c.cfg.RetryBackoff
	for i := 0; i <= c.cfg.MaxRetries; i++ {
		if i > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}
			backoff *= 2
		}
		text, err := c.doRequest(ctx, body)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil || !retryable(err) {
			break
		}
	}

	switch {
	case ctx.Err() != nil:
		return "", fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	case errors.Is(lastErr, ErrInvalidOutput):
		return "", lastErr
	default:
		return "", fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
	}
}

func (c *ChatClient) doRequest(ctx context.Context, body chatRequest) (string, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &statusError{code: resp.StatusCode, body: string(raw)}
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", ErrInvalidOutput, err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: empty completion", ErrInvalidOutput)
	}
	return out.Choices[0].Message.Content, nil
}

func retryable(err error) bool {
	if errors.Is(err, ErrInvalidOutput) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	return true
}
