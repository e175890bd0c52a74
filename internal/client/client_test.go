package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"museflow/internal/feedback"
	"museflow/internal/models"
	"museflow/internal/writing"
)

// fakeServer keeps sessions in memory and records what it was sent.
type fakeServer struct {
	mu       sync.Mutex
	sessions map[string]models.WritingSession
	feedback []models.Feedback
	nextID   int
	auths    []string
}

func newFakeServer(t *testing.T) (*fakeServer, *httptest.Server) {
	t.Helper()
	fs := &fakeServer{sessions: map[string]models.WritingSession{}}
	mux := http.NewServeMux()

	write := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(v)
	}
	authed := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			fs.mu.Lock()
			fs.auths = append(fs.auths, r.Header.Get("Authorization"))
			fs.mu.Unlock()
			if r.Header.Get("Authorization") != "Bearer good-token" {
				write(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
				return
			}
			h(w, r)
		}
	}

	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "secret1" {
			write(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
			return
		}
		write(w, http.StatusOK, AuthResult{Token: "good-token", User: models.User{ID: 1, Email: body["email"]}})
	})
	mux.HandleFunc("POST /api/auth/logout", authed(func(w http.ResponseWriter, r *http.Request) {
		write(w, http.StatusOK, map[string]string{"message": "signed out"})
	}))
	mux.HandleFunc("GET /api/topics", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "emotion", r.URL.Query().Get("category"))
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		write(w, http.StatusOK, map[string]any{"topics": []models.Topic{{ID: "7", Title: "雨天"}}})
	})
	mux.HandleFunc("POST /api/writing/sessions", authed(func(w http.ResponseWriter, r *http.Request) {
		var body draftBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		fs.mu.Lock()
		fs.nextID++
		ws := models.WritingSession{ID: "s-" + string(rune('0'+fs.nextID)), UserID: 1, TopicID: body.TopicID, Status: models.StatusDraft, CreatedAt: time.Now(), UpdatedAt: time.Now()}
		ws.SetContent(body.Content)
		fs.sessions[ws.ID] = ws
		fs.mu.Unlock()
		write(w, http.StatusCreated, map[string]any{"session": ws})
	}))
	mux.HandleFunc("PUT /api/writing/sessions/{id}", authed(func(w http.ResponseWriter, r *http.Request) {
		var body draftBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		fs.mu.Lock()
		defer fs.mu.Unlock()
		ws, ok := fs.sessions[r.PathValue("id")]
		if !ok {
			write(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		ws.SetContent(body.Content)
		if body.Status == models.StatusCompleted {
			ws.Complete(time.Now())
		}
		ws.UpdatedAt = time.Now()
		fs.sessions[ws.ID] = ws
		write(w, http.StatusOK, map[string]any{"session": ws})
	}))
	mux.HandleFunc("POST /api/ai/feedback", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		write(w, http.StatusOK, feedback.Result{Feedback: feedback.Fallback(body["content"], nil), Fallback: true})
	})
	mux.HandleFunc("POST /api/feedback", authed(func(w http.ResponseWriter, r *http.Request) {
		var fb models.Feedback
		require.NoError(t, json.NewDecoder(r.Body).Decode(&fb))
		fs.mu.Lock()
		defer fs.mu.Unlock()
		ws, ok := fs.sessions[fb.SessionID]
		if !ok || ws.Status != models.StatusCompleted {
			write(w, http.StatusConflict, map[string]string{"error": "session is not completed"})
			return
		}
		fb.CreatedAt = time.Now()
		fs.feedback = append(fs.feedback, fb)
		write(w, http.StatusCreated, map[string]any{"feedback": fb})
	}))
	mux.HandleFunc("GET /api/statistics/user", authed(func(w http.ResponseWriter, r *http.Request) {
		write(w, http.StatusOK, map[string]any{
			"statistics": models.UserStatistics{TotalSessions: 4, TotalWords: 900, CurrentStreak: 2, ChartData: []models.ChartPoint{}},
			"timezone":   "Asia/Shanghai",
		})
	}))
	mux.HandleFunc("GET /api/boom", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return fs, srv
}

func TestLoginStoresToken(t *testing.T) {
	_, srv := newFakeServer(t)
	c := New(srv.URL + "/")

	_, err := c.Login(context.Background(), "a@b.cn", "wrong")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "invalid credentials", apiErr.Message)
	assert.Empty(t, c.Token())

	res, err := c.Login(context.Background(), "a@b.cn", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "good-token", res.Token)
	assert.Equal(t, "good-token", c.Token())

	require.NoError(t, c.Logout(context.Background()))
	assert.Empty(t, c.Token())
}

func TestAuthRequired(t *testing.T) {
	fs, srv := newFakeServer(t)

	_, err := New(srv.URL).CreateSession(context.Background(), writing.Draft{TopicID: "1", Content: "春天来了"})
	assert.ErrorIs(t, err, writing.ErrAuthRequired)
	assert.Empty(t, fs.auths, "no request without a token")

	_, err = New(srv.URL, WithToken("stale")).CreateSession(context.Background(), writing.Draft{TopicID: "1", Content: "春天来了"})
	assert.ErrorIs(t, err, writing.ErrAuthRequired)
	assert.Equal(t, []string{"Bearer stale"}, fs.auths)
}

func TestTopicsQuery(t *testing.T) {
	_, srv := newFakeServer(t)
	topics, err := New(srv.URL).Topics(context.Background(), models.CategoryEmotion, 3)
	require.NoError(t, err)
	require.Len(t, topics, 1)
	assert.Equal(t, "雨天", topics[0].Title)
}

func TestNonJSONError(t *testing.T) {
	_, srv := newFakeServer(t)
	err := New(srv.URL).do(context.Background(), http.MethodGet, "/api/boom", false, nil, nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "upstream exploded", apiErr.Message)
	assert.False(t, errors.Is(err, writing.ErrAuthRequired))
}

func TestUpdateSessionRequiresID(t *testing.T) {
	_, err := New("http://unused", WithToken("x")).UpdateSession(context.Background(), writing.Draft{Content: "x"})
	assert.Error(t, err)
}

func TestStatistics(t *testing.T) {
	_, srv := newFakeServer(t)
	st, tz, err := New(srv.URL, WithToken("good-token")).Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, st.TotalSessions)
	assert.Equal(t, 2, st.CurrentStreak)
	assert.Nil(t, st.AverageLogic)
	assert.Equal(t, "Asia/Shanghai", tz)
}

// TestControllerRoundTrip drives a writing.Controller through the client.
func TestControllerRoundTrip(t *testing.T) {
	fs, srv := newFakeServer(t)
	c := New(srv.URL, WithToken("good-token"))
	ctrl := writing.NewController(c, writing.WithQuietPeriod(time.Hour))
	defer ctrl.Close()

	ctrl.Start(models.TopicSummary{ID: "3", Prompt: "写一写你记忆中的一场雨"}, "", "")
	require.NoError(t, ctrl.Update("那天的雨很大"))
	require.NoError(t, ctrl.Save(context.Background()))

	ws, ok := ctrl.Snapshot()
	require.True(t, ok)
	require.Equal(t, "s-1", ws.ID)

	require.NoError(t, ctrl.Update("那天的雨很大，我们在屋檐下等了很久。"))
	res, err := ctrl.Submit(context.Background(), c)
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, "s-1", res.Feedback.SessionID)

	fs.mu.Lock()
	defer fs.mu.Unlock()
	require.Len(t, fs.sessions, 1, "second save updates instead of creating")
	stored := fs.sessions["s-1"]
	assert.Equal(t, models.StatusCompleted, stored.Status)
	assert.Equal(t, "那天的雨很大，我们在屋檐下等了很久。", stored.Content)
	require.Len(t, fs.feedback, 1)
	assert.True(t, fs.feedback[0].IsFallback)
}

func TestReviewRecordFailure(t *testing.T) {
	fs, srv := newFakeServer(t)
	fs.sessions["d"] = models.WritingSession{ID: "d", Status: models.StatusDraft}
	c := New(srv.URL, WithToken("good-token"))

	res, err := c.Review(context.Background(), models.WritingSession{ID: "d", Content: "还没写完的草稿内容"}, "题目")
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.NotEmpty(t, res.Feedback.Encouragement, "generated feedback survives a failed save")
}
