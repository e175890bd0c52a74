// Package client talks to the MuseFlow HTTP API. A *Client satisfies the
// writing package's Gateway and Reviewer, so a writing.Controller can persist
// drafts and request feedback through it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"museflow/internal/feedback"
	"museflow/internal/models"
	"museflow/internal/writing"
)

const defaultTimeout = 30 * time.Second

var (
	_ writing.Gateway  = (*Client)(nil)
	_ writing.Reviewer = (*Client)(nil)
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("museflow api: %d %s", e.Status, e.Message)
}

// Unwrap lets callers test a 401 with errors.Is(err, writing.ErrAuthRequired).
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return writing.ErrAuthRequired
	}
	return nil
}

type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }
func WithToken(token string) Option         { return func(c *Client) { c.token = token } }

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// AuthResult is returned by Signup and Login.
type AuthResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      models.User `json:"user"`
}

func (c *Client) Signup(ctx context.Context, email, password, fullName string) (AuthResult, error) {
	var out AuthResult
	body := map[string]string{"email": email, "password": password, "full_name": fullName}
	if err := c.do(ctx, http.MethodPost, "/api/auth/signup", false, body, &out); err != nil {
		return AuthResult{}, err
	}
	c.SetToken(out.Token)
	return out, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (AuthResult, error) {
	var out AuthResult
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", false, body, &out); err != nil {
		return AuthResult{}, err
	}
	c.SetToken(out.Token)
	return out, nil
}

// Logout revokes the current token on the server and forgets it locally.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/api/auth/logout", true, nil, nil); err != nil {
		return err
	}
	c.SetToken("")
	return nil
}

func (c *Client) Me(ctx context.Context) (models.User, error) {
	var out struct {
		User models.User `json:"user"`
	}
	err := c.do(ctx, http.MethodGet, "/api/auth/session", true, nil, &out)
	return out.User, err
}

// Topics lists topics. Empty category and zero limit use the server defaults.
func (c *Client) Topics(ctx context.Context, category models.Category, limit int) ([]models.Topic, error) {
	q := url.Values{}
	if category != "" {
		q.Set("category", string(category))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/topics"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out struct {
		Topics []models.Topic `json:"topics"`
	}
	err := c.do(ctx, http.MethodGet, path, false, nil, &out)
	return out.Topics, err
}

func (c *Client) Topic(ctx context.Context, id string) (models.Topic, error) {
	var out struct {
		Topic models.Topic `json:"topic"`
	}
	err := c.do(ctx, http.MethodGet, "/api/topics/"+url.PathEscape(id), false, nil, &out)
	return out.Topic, err
}

func (c *Client) Sessions(ctx context.Context, status models.Status) ([]models.WritingSession, error) {
	path := "/api/writing/sessions"
	if status != "" {
		path += "?status=" + url.QueryEscape(string(status))
	}
	var out struct {
		Sessions []models.WritingSession `json:"sessions"`
	}
	err := c.do(ctx, http.MethodGet, path, true, nil, &out)
	return out.Sessions, err
}

func (c *Client) Session(ctx context.Context, id string) (models.WritingSession, error) {
	var out sessionEnvelope
	err := c.do(ctx, http.MethodGet, sessionPath(id), true, nil, &out)
	return out.Session, err
}

func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, sessionPath(id), true, nil, nil)
}

type sessionEnvelope struct {
	Session models.WritingSession `json:"session"`
}

type draftBody struct {
	TopicID string        `json:"topic_id,omitempty"`
	Content string        `json:"content"`
	Status  models.Status `json:"status,omitempty"`
}

// CreateSession persists a new draft.
func (c *Client) CreateSession(ctx context.Context, d writing.Draft) (models.WritingSession, error) {
	var out sessionEnvelope
	body := draftBody{TopicID: d.TopicID, Content: d.Content, Status: d.Status}
	err := c.do(ctx, http.MethodPost, "/api/writing/sessions", true, body, &out)
	return out.Session, err
}

// UpdateSession overwrites the content of an existing draft and applies its
// status.
func (c *Client) UpdateSession(ctx context.Context, d writing.Draft) (models.WritingSession, error) {
	if d.ID == "" {
		return models.WritingSession{}, errors.New("update session: missing id")
	}
	var out sessionEnvelope
	body := draftBody{Content: d.Content, Status: d.Status}
	err := c.do(ctx, http.MethodPut, sessionPath(d.ID), true, body, &out)
	return out.Session, err
}

// GenerateFeedback asks the server for feedback without storing it.
func (c *Client) GenerateFeedback(ctx context.Context, content, topicPrompt string) (feedback.Result, error) {
	var out feedback.Result
	body := map[string]string{"content": content, "topic_prompt": topicPrompt}
	err := c.do(ctx, http.MethodPost, "/api/ai/feedback", false, body, &out)
	return out, err
}

func (c *Client) SaveFeedback(ctx context.Context, fb models.Feedback) (models.Feedback, error) {
	var out struct {
		Feedback models.Feedback `json:"feedback"`
	}
	err := c.do(ctx, http.MethodPost, "/api/feedback", true, fb, &out)
	return out.Feedback, err
}

func (c *Client) Feedback(ctx context.Context, sessionID string) (models.Feedback, error) {
	var out struct {
		Feedback models.Feedback `json:"feedback"`
	}
	err := c.do(ctx, http.MethodGet, "/api/feedback?session_id="+url.QueryEscape(sessionID), true, nil, &out)
	return out.Feedback, err
}

// Review generates feedback for a completed session and records it. When
// recording fails the generated result is still returned with the error.
func (c *Client) Review(ctx context.Context, ws models.WritingSession, topicPrompt string) (feedback.Result, error) {
	res, err := c.GenerateFeedback(ctx, ws.Content, topicPrompt)
	if err != nil {
		return feedback.Result{}, err
	}
	fb := res.Feedback
	fb.SessionID = ws.ID
	fb.IsFallback = fb.IsFallback || res.Fallback
	saved, err := c.SaveFeedback(ctx, fb)
	if err != nil {
		return res, fmt.Errorf("save feedback: %w", err)
	}
	res.Feedback = saved
	return res, nil
}

// Statistics returns the caller's statistics and the timezone the server
// used for calendar days.
func (c *Client) Statistics(ctx context.Context) (models.UserStatistics, string, error) {
	var out struct {
		Statistics models.UserStatistics `json:"statistics"`
		Timezone   string                `json:"timezone"`
	}
	err := c.do(ctx, http.MethodGet, "/api/statistics/user", true, nil, &out)
	return out.Statistics, out.Timezone, err
}

func sessionPath(id string) string {
	return "/api/writing/sessions/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, method, path string, authed bool, body, out any) error {
	token := c.Token()
	if authed && token == "" {
		return writing.ErrAuthRequired
	}

	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(raw))
		}
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
