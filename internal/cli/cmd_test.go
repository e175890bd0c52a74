package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"museflow/internal/client"
	"museflow/internal/feedback"
	"museflow/internal/models"
)

type apiStub struct {
	mu          sync.Mutex
	sessions    []models.WritingSession
	saved       []models.Feedback
	failCreates int // next N session creates answer 500
}

func newAPIStub(t *testing.T) (*apiStub, *httptest.Server) {
	t.Helper()
	stub := &apiStub{}
	mux := http.NewServeMux()
	write := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(v)
	}
	mux.HandleFunc("GET /api/topics/{id}", func(w http.ResponseWriter, r *http.Request) {
		write(w, http.StatusOK, map[string]any{"topic": models.Topic{ID: r.PathValue("id"), Title: "窗外", Prompt: "描写窗外的一场雨", Category: models.CategoryEmotion}})
	})
	mux.HandleFunc("POST /api/writing/sessions", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			TopicID string        `json:"topic_id"`
			Content string        `json:"content"`
			Status  models.Status `json:"status"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		stub.mu.Lock()
		if stub.failCreates > 0 {
			stub.failCreates--
			stub.mu.Unlock()
			write(w, http.StatusInternalServerError, map[string]string{"error": "db down"})
			return
		}
		stub.mu.Unlock()
		ws := models.WritingSession{ID: "w1", TopicID: body.TopicID, Status: models.StatusDraft, CreatedAt: time.Now()}
		ws.SetContent(body.Content)
		if body.Status == models.StatusCompleted {
			ws.Complete(time.Now())
		}
		stub.mu.Lock()
		stub.sessions = append(stub.sessions, ws)
		stub.mu.Unlock()
		write(w, http.StatusCreated, map[string]any{"session": ws})
	})
	mux.HandleFunc("POST /api/ai/feedback", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		write(w, http.StatusOK, feedback.Result{Feedback: feedback.Fallback(body["content"], nil), Fallback: true})
	})
	mux.HandleFunc("POST /api/feedback", func(w http.ResponseWriter, r *http.Request) {
		var fb models.Feedback
		require.NoError(t, json.NewDecoder(r.Body).Decode(&fb))
		stub.mu.Lock()
		stub.saved = append(stub.saved, fb)
		stub.mu.Unlock()
		write(w, http.StatusCreated, map[string]any{"feedback": fb})
	})
	mux.HandleFunc("GET /api/statistics/user", func(w http.ResponseWriter, r *http.Request) {
		avg := 88.5
		write(w, http.StatusOK, map[string]any{
			"statistics": models.UserStatistics{
				TotalSessions: 3, TotalWords: 1200, CurrentStreak: 4,
				AverageCreativity: &avg, AverageEmotion: &avg, AverageExpression: &avg, AverageLogic: &avg, AverageVocabulary: &avg,
				ChartData: []models.ChartPoint{{CreatedAt: time.Now(), WordCount: 400, Status: models.StatusCompleted}},
			},
			"timezone": "Asia/Shanghai",
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return stub, srv
}

func runCmd(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd(app)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestWriteCmd_SubmitSavesAndReviews(t *testing.T) {
	stub, srv := newAPIStub(t)
	app := &App{
		Client:      client.New(srv.URL, client.WithToken("tok")),
		In:          strings.NewReader("雨点敲着玻璃，\n街灯一盏一盏亮起来。\n:submit\n"),
		QuietPeriod: time.Hour,
	}

	out, err := runCmd(t, app, "write", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "描写窗外的一场雨")
	assert.Contains(t, out, "写作反馈")

	stub.mu.Lock()
	defer stub.mu.Unlock()
	require.Len(t, stub.sessions, 1)
	assert.Equal(t, models.StatusCompleted, stub.sessions[0].Status)
	assert.Equal(t, "雨点敲着玻璃，\n街灯一盏一盏亮起来。", stub.sessions[0].Content)
	require.Len(t, stub.saved, 1)
	assert.Equal(t, "w1", stub.saved[0].SessionID)
}

func TestWriteCmd_SubmitRetriesAfterSaveFailure(t *testing.T) {
	stub, srv := newAPIStub(t)
	stub.failCreates = 1
	app := &App{
		Client:      client.New(srv.URL, client.WithToken("tok")),
		In:          strings.NewReader("雨点敲着玻璃，街灯一盏一盏亮起来。\n:submit\n:submit\n"),
		QuietPeriod: time.Hour,
	}

	out, err := runCmd(t, app, "write", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "提交失败")
	assert.Contains(t, out, "写作反馈")

	stub.mu.Lock()
	defer stub.mu.Unlock()
	require.Len(t, stub.sessions, 1)
	assert.Equal(t, models.StatusCompleted, stub.sessions[0].Status)
	assert.Equal(t, "雨点敲着玻璃，街灯一盏一盏亮起来。", stub.sessions[0].Content)
	require.Len(t, stub.saved, 1)
}

func TestWriteCmd_FailedSubmitThenEOFSavesDraft(t *testing.T) {
	stub, srv := newAPIStub(t)
	stub.failCreates = 1
	app := &App{
		Client:      client.New(srv.URL, client.WithToken("tok")),
		In:          strings.NewReader("雨点敲着玻璃，街灯一盏一盏亮起来。\n:submit\n又写了一行。\n"),
		QuietPeriod: time.Hour,
	}

	_, err := runCmd(t, app, "write", "4")
	require.NoError(t, err)

	stub.mu.Lock()
	defer stub.mu.Unlock()
	require.Len(t, stub.sessions, 1)
	assert.Equal(t, models.StatusDraft, stub.sessions[0].Status)
	assert.Equal(t, "雨点敲着玻璃，街灯一盏一盏亮起来。\n又写了一行。", stub.sessions[0].Content)
	assert.Empty(t, stub.saved)
}

func TestWriteCmd_TooShortKeepsWriting(t *testing.T) {
	stub, srv := newAPIStub(t)
	app := &App{
		Client:      client.New(srv.URL, client.WithToken("tok")),
		In:          strings.NewReader("短句\n:submit\n:quit\n"),
		QuietPeriod: time.Hour,
	}
	out, err := runCmd(t, app, "write", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "至少写")

	stub.mu.Lock()
	defer stub.mu.Unlock()
	require.Len(t, stub.sessions, 1, ":quit saves the draft")
	assert.Equal(t, models.StatusDraft, stub.sessions[0].Status)
	assert.Empty(t, stub.saved)
}

func TestWriteCmd_AnonymousStillGetsFeedback(t *testing.T) {
	stub, srv := newAPIStub(t)
	app := &App{
		Client:      client.New(srv.URL),
		In:          strings.NewReader("今天放学路上下起了大雨，我没有带伞。\n:submit\n"),
		QuietPeriod: time.Hour,
	}
	out, err := runCmd(t, app, "write", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "请先登录以保存您的写作")
	assert.Contains(t, out, "写作反馈")
	assert.Contains(t, out, "登录后可保存作品和反馈")

	stub.mu.Lock()
	defer stub.mu.Unlock()
	assert.Empty(t, stub.sessions)
	assert.Empty(t, stub.saved)
}

func TestStatsCmd(t *testing.T) {
	_, srv := newAPIStub(t)
	out, err := runCmd(t, &App{Client: client.New(srv.URL, client.WithToken("tok"))}, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "1200")
	assert.Contains(t, out, "88.5")
	assert.Contains(t, out, "Asia/Shanghai")
}

func TestStatsCmd_RequiresLogin(t *testing.T) {
	_, srv := newAPIStub(t)
	_, err := runCmd(t, &App{Client: client.New(srv.URL)}, "stats")
	assert.Error(t, err)
}

func TestTopicsCmd_RejectsUnknownCategory(t *testing.T) {
	_, err := runCmd(t, &App{Client: client.New("http://unused")}, "topics", "--category", "poetry")
	assert.ErrorContains(t, err, "unknown category")
}

func TestFileTokenStore(t *testing.T) {
	s := FileTokenStore{Path: filepath.Join(t.TempDir(), "nested", "token")}

	tok, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, tok)

	require.NoError(t, s.Save("abc.def"))
	tok, err = s.Load()
	require.NoError(t, err)
	assert.Equal(t, "abc.def", tok)

	require.NoError(t, s.Save(""))
	tok, err = s.Load()
	require.NoError(t, err)
	assert.Empty(t, tok)
	require.NoError(t, s.Save(""), "removing twice is fine")
}

func TestBar(t *testing.T) {
	assert.Equal(t, 20, len([]rune(stripANSI(bar(50, 100, 20)))))
	assert.Equal(t, 20, len([]rune(stripANSI(bar(0, 0, 20)))))
}

func stripANSI(s string) string {
	var b strings.Builder
	skip := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			skip = true
		case skip && r == 'm':
			skip = false
		case !skip:
			b.WriteRune(r)
		}
	}
	return b.String()
}
