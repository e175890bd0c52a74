// Package writing holds the client-side state of one writing flow: the
// in-memory session, its debounced autosave and the submit gate in front of
// feedback.
package writing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"museflow/internal/feedback"
	"museflow/internal/models"
)

var (
	// ErrAuthRequired means the caller is not signed in. Writing continues
	// locally; nothing is persisted.
	ErrAuthRequired = errors.New("authentication required")

	ErrNoActiveSession  = errors.New("no active writing session")
	ErrContentTooShort  = errors.New("content too short to submit")
	ErrSessionCompleted = errors.New("session already completed")
)

const (
	DefaultQuietPeriod   = 5 * time.Second
	DefaultMinSaveLength = 5
	DefaultMinSubmit     = 10
	DefaultSaveTimeout   = 15 * time.Second

	msgAuthRequired = "请先登录以保存您的写作"
	msgSaveFailed   = "保存失败，稍后将自动重试"
)

// Draft is what the controller asks the gateway to persist.
type Draft struct {
	ID          string
	TopicID     string
	Content     string
	Status      models.Status
	CompletedAt *time.Time
}

// Gateway persists drafts. Implementations return ErrAuthRequired (or an
// error wrapping it) when the caller is anonymous.
type Gateway interface {
	CreateSession(ctx context.Context, d Draft) (models.WritingSession, error)
	UpdateSession(ctx context.Context, d Draft) (models.WritingSession, error)
}

// Reviewer produces and records feedback for a completed session.
type Reviewer interface {
	Review(ctx context.Context, session models.WritingSession, topicPrompt string) (feedback.Result, error)
}

// SaveStatus is the user-visible persistence state.
type SaveStatus struct {
	Saving       bool
	LastSavedAt  *time.Time
	Error        string
	AuthRequired bool
}

// Controller owns one in-memory writing session. It is safe for concurrent
// use; autosave callbacks run on timer goroutines.
type Controller struct {
	gw Gateway

	quiet       time.Duration
	minSave     int
	minSubmit   int
	saveTimeout time.Duration
	log         *zap.Logger
	now         func() time.Time
	hook        func(SaveStatus)

	mu           sync.Mutex
	session      *models.WritingSession
	topic        models.TopicSummary
	status       SaveStatus
	version      uint64 // bumped on every content or status change
	savedVersion uint64
	epoch        uint64 // bumped on Start and Clear
	timer        *time.Timer

	saveMu sync.Mutex // one save in flight
}

type Option func(*Controller)

func WithQuietPeriod(d time.Duration) Option { return func(c *Controller) { c.quiet = d } }
func WithMinSaveLength(n int) Option        { return func(c *Controller) { c.minSave = n } }
func WithMinSubmitLength(n int) Option      { return func(c *Controller) { c.minSubmit = n } }
func WithSaveTimeout(d time.Duration) Option { return func(c *Controller) { c.saveTimeout = d } }
func WithClock(now func() time.Time) Option { return func(c *Controller) { c.now = now } }

func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// WithStatusHook registers fn to be called, outside the controller's lock,
// after every save status change.
func WithStatusHook(fn func(SaveStatus)) Option { return func(c *Controller) { c.hook = fn } }

// NewController returns an idle controller. A nil gateway behaves like an
// anonymous user: saves fail with ErrAuthRequired.
func NewController(gw Gateway, opts ...Option) *Controller {
	c := &Controller{
		gw:          gw,
		quiet:       DefaultQuietPeriod,
		minSave:     DefaultMinSaveLength,
		minSubmit:   DefaultMinSubmit,
		saveTimeout: DefaultSaveTimeout,
		log:         zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins a new session for topic. existingID resumes a persisted
// session; empty means the first save creates one.
func (c *Controller) Start(topic models.TopicSummary, existingID, content string) {
	c.mu.Lock()
	c.stopTimerLocked()
	c.epoch++
	ws := &models.WritingSession{
		ID:      existingID,
		TopicID: topic.ID,
		Status:  models.StatusDraft,
		Topic:   &topic,
	}
	ws.SetContent(content)
	c.session = ws
	c.topic = topic
	c.status = SaveStatus{}
	c.version, c.savedVersion = 0, 0
	if existingID != "" {
		// Resumed content is already persisted.
		c.version, c.savedVersion = 1, 1
	}
	st := c.status
	c.mu.Unlock()
	c.notify(st)
}

// Update replaces the content and reschedules the autosave. It never waits
// on I/O.
func (c *Controller) Update(content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ErrNoActiveSession
	}
	if c.session.Status == models.StatusCompleted {
		return ErrSessionCompleted
	}
	if content == c.session.Content {
		return nil
	}
	c.session.SetContent(content)
	c.version++
	c.scheduleLocked()
	return nil
}

// Complete marks the session completed locally. Callers must Save afterwards.
func (c *Controller) Complete() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ErrNoActiveSession
	}
	if c.session.Status == models.StatusCompleted {
		return nil
	}
	c.stopTimerLocked()
	c.session.Complete(c.now())
	c.version++
	return nil
}

// Clear discards the session and its save status and cancels any pending
// autosave. Saves already in flight are ignored when they return.
func (c *Controller) Clear() {
	c.mu.Lock()
	c.stopTimerLocked()
	c.epoch++
	c.session = nil
	c.topic = models.TopicSummary{}
	c.status = SaveStatus{}
	st := c.status
	c.mu.Unlock()
	c.notify(st)
}

// Close is Clear for teardown.
func (c *Controller) Close() error {
	c.Clear()
	return nil
}

// Snapshot returns a copy of the current session.
func (c *Controller) Snapshot() (models.WritingSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return models.WritingSession{}, false
	}
	ws := *c.session
	if ws.CompletedAt != nil {
		t := *ws.CompletedAt
		ws.CompletedAt = &t
	}
	return ws, true
}

func (c *Controller) Status() SaveStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Dirty reports whether local changes have not been saved yet.
func (c *Controller) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil && (c.session.ID == "" || c.version != c.savedVersion)
}

// Save persists the current session: create when it has no id yet, update
// otherwise. Failures are recorded in Status and returned; local content is
// never touched.
func (c *Controller) Save(ctx context.Context) error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return ErrNoActiveSession
	}
	epoch, version := c.epoch, c.version
	draft := Draft{
		ID:          c.session.ID,
		TopicID:     c.session.TopicID,
		Content:     c.session.Content,
		Status:      c.session.Status,
		CompletedAt: c.session.CompletedAt,
	}
	c.status.Saving = true
	st := c.status
	c.mu.Unlock()
	c.notify(st)

	saved, err := c.persist(ctx, draft)

	c.mu.Lock()
	if epoch != c.epoch {
		// Session was replaced or cleared while saving.
		c.mu.Unlock()
		c.log.Debug("writing: discarding save of a previous session", zap.String("session_id", draft.ID))
		return nil
	}
	c.status.Saving = false
	if err != nil {
		if errors.Is(err, ErrAuthRequired) {
			c.status.AuthRequired = true
			c.status.Error = msgAuthRequired
		} else {
			c.status.Error = msgSaveFailed
		}
		st = c.status
		c.mu.Unlock()
		c.notify(st)
		c.log.Warn("writing: save failed", zap.String("session_id", draft.ID), zap.Error(err))
		return err
	}
	if c.session.ID == "" {
		c.session.ID = saved.ID
	}
	if !saved.CreatedAt.IsZero() {
		c.session.CreatedAt = saved.CreatedAt
	}
	if !saved.UpdatedAt.IsZero() {
		c.session.UpdatedAt = saved.UpdatedAt
	}
	if version > c.savedVersion {
		c.savedVersion = version
	}
	now := c.now()
	c.status.LastSavedAt = &now
	c.status.Error = ""
	c.status.AuthRequired = false
	st = c.status
	c.mu.Unlock()
	c.notify(st)
	return nil
}

func (c *Controller) persist(ctx context.Context, d Draft) (models.WritingSession, error) {
	if c.gw == nil {
		return models.WritingSession{}, ErrAuthRequired
	}
	ctx, cancel := context.WithTimeout(ctx, c.saveTimeout)
	defer cancel()
	if d.ID == "" {
		return c.gw.CreateSession(ctx, d)
	}
	return c.gw.UpdateSession(ctx, d)
}

// Submit gates on minimum length, completes the session, saves it and asks
// the reviewer for feedback. Short content is rejected before the reviewer
// is contacted. When the save fails the session is a draft again and Submit
// can be retried.
func (c *Controller) Submit(ctx context.Context, r Reviewer) (feedback.Result, error) {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return feedback.Result{}, ErrNoActiveSession
	}
	if n := models.CountWords(c.session.Content); n < c.minSubmit {
		c.mu.Unlock()
		return feedback.Result{}, fmt.Errorf("%w: %d of %d characters", ErrContentTooShort, n, c.minSubmit)
	}
	c.stopTimerLocked()
	completedHere := false
	if c.session.Status != models.StatusCompleted {
		c.session.Complete(c.now())
		c.version++
		completedHere = true
	}
	epoch := c.epoch
	prompt := c.topic.Prompt
	c.mu.Unlock()

	if err := c.Save(ctx); err != nil {
		if completedHere {
			c.reopen(epoch)
		}
		return feedback.Result{}, err
	}
	ws, ok := c.Snapshot()
	if !ok {
		return feedback.Result{}, ErrNoActiveSession
	}
	return r.Review(ctx, ws, prompt)
}

// reopen turns a session whose completing save failed back into a draft, so
// the writer can keep typing and submit again.
func (c *Controller) reopen(epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil || epoch != c.epoch || c.session.Status != models.StatusCompleted {
		return
	}
	c.session.Status = models.StatusDraft
	c.session.CompletedAt = nil
	c.version++
}

func (c *Controller) scheduleLocked() {
	c.stopTimerLocked()
	if models.CountWords(c.session.Content) < c.minSave {
		return
	}
	epoch, version := c.epoch, c.version
	c.timer = time.AfterFunc(c.quiet, func() { c.autoSave(epoch, version) })
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) autoSave(epoch, version uint64) {
	c.mu.Lock()
	stale := epoch != c.epoch || version != c.version || c.session == nil
	c.mu.Unlock()
	if stale {
		return
	}
	// Errors are already reflected in Status.
	_ = c.Save(context.Background())
}

func (c *Controller) notify(st SaveStatus) {
	if c.hook != nil {
		c.hook(st)
	}
}
