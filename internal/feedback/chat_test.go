package feedback

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChatConfig(url string) ChatConfig {
	return ChatConfig{
		BaseURL:      url + "/",
		APIKey:       "secret",
		Model:        "glm-4-flash",
		Temperature:  0.7,
		MaxTokens:    2000,
		MaxRetries:   1,
		RetryBackoff: 10 * time.Millisecond,
	}
}

func TestChatClient_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "glm-4-flash", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "sys", req.Messages[0].Content)
		assert.Equal(t, "user", req.Messages[1].Role)
		assert.InDelta(t, 0.7, req.Temperature, 1e-9)
		assert.Equal(t, 2000, req.MaxTokens)
		assert.Nil(t, req.ResponseFormat)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"ok\":true}"}}]}`))
	}))
	defer srv.Close()

	text, err := NewChatClient(testChatConfig(srv.URL)).Complete(context.Background(), "sys", "usr")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, text)
}

func TestChatClient_JSONMode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.ResponseFormat)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)
		w.Write([]byte(`{"choices":[{"message":{"content":"{}"}}]}`))
	}))
	defer srv.Close()

	cfg := testChatConfig(srv.URL)
	cfg.JSONMode = true
	_, err := NewChatClient(cfg).Complete(context.Background(), "s", "u")
	require.NoError(t, err)
}

func TestChatClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"hi"}}]}`))
	}))
	defer srv.Close()

	text, err := NewChatClient(testChatConfig(srv.URL)).Complete(context.Background(), "s", "u")
	require.NoError(t, err)
	assert.Equal(t, "hi", text)
	assert.EqualValues(t, 2, calls.Load())
}

func TestChatClient_BacksOffBeforeRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"hi"}}]}`))
	}))
	defer srv.Close()

	cfg := testChatConfig(srv.URL)
	cfg.RetryBackoff = 150 * time.Millisecond
	start := time.Now()
	text, err := NewChatClient(cfg).Complete(context.Background(), "s", "u")
	require.NoError(t, err)
	assert.Equal(t, "hi", text)
	require.EqualValues(t, 2, calls.Load())
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestChatClient_BackoffStopsOnCancel(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testChatConfig(srv.URL)
	cfg.MaxRetries = 3
	cfg.RetryBackoff = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewChatClient(cfg).Complete(ctx, "s", "u")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.EqualValues(t, 1, calls.Load())
}

func TestChatClient_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewChatClient(testChatConfig(srv.URL)).Complete(context.Background(), "s", "u")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.EqualValues(t, 1, calls.Load())
}

func TestChatClient_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewChatClient(testChatConfig(srv.URL)).Complete(context.Background(), "s", "u")
	assert.ErrorIs(t, err, ErrInvalidOutput)
}

func TestChatClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewChatClient(testChatConfig(srv.URL)).Complete(ctx, "s", "u")
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestChatClient_Unavailable(t *testing.T) {
	cfg := testChatConfig("http://127.0.0.1:1")
	cfg.MaxRetries = 0
	_, err := NewChatClient(cfg).Complete(context.Background(), "s", "u")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestChatClient_NoKey(t *testing.T) {
	cfg := testChatConfig("http://127.0.0.1:1")
	cfg.APIKey = ""
	_, err := NewChatClient(cfg).Complete(context.Background(), "s", "u")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
