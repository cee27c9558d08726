package window

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GriffinCanCode/navhost/internal/domain/navigation"
	"github.com/GriffinCanCode/navhost/internal/domain/render"
	"github.com/GriffinCanCode/navhost/internal/domain/session"
	"github.com/GriffinCanCode/navhost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/navhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/navhost/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/navhost/internal/shared/id"
	"go.uber.org/zap"
)

// Opener creates top-level windows requested by a page.
type Opener interface {
	OpenWindow(parent *Controller, bounds render.Rect) (*Controller, error)
}

// Options configures a Controller.
type Options struct {
	ID        id.WindowID
	Processes render.ProcessFactory
	Views     render.ViewFactory
	// Sink receives renderer events of this window. It must marshal them
	// onto the goroutine that owns the controller.
	Sink         render.EventSink
	Breaker      *resilience.Breaker
	Rewriter     navigation.Rewriter
	Delegate     Delegate
	Opener       Opener
	Bounds       render.Rect
	SpawnTimeout time.Duration
	Metrics      *monitoring.Metrics
	Logger       *zap.Logger
	// OnClosed runs once after the window was destroyed.
	OnClosed func(w *Controller)
}

// NavigateRequest is a detailed navigation command.
type NavigateRequest struct {
	URL        string
	Referrer   string
	Transition navigation.Transition
	Reload     bool
}

// Controller is one browsing context. It owns the current and previous
// navigation entries and the session manager. It is not safe for concurrent
// use; every method must run on the owning browser loop.
type Controller struct {
	id       id.WindowID
	rewriter navigation.Rewriter
	manager  *session.Manager
	notifier *Notifier
	opener   Opener
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	onClosed func(w *Controller)

	current       *navigation.Entry
	previous      *navigation.Entry
	lastCommitted *navigation.Entry
	bounds        render.Rect

	requestedAt   time.Time
	announcedURL  string
	loadNotified  uint64
	crashNotified bool
	closePending  bool
	closed        bool
}

// New creates a window without a session. The first navigation spawns one.
func New(opts Options) *Controller {
	windowID := opts.ID
	if windowID == "" {
		windowID = id.NewWindowID()
	}
	rewriter := opts.Rewriter
	if rewriter == nil {
		rewriter = navigation.DefaultRewriter
	}
	logger := logging.OrNop(opts.Logger).With(zap.String("window_id", windowID.String()))

	c := &Controller{
		id:       windowID,
		rewriter: rewriter,
		opener:   opts.Opener,
		metrics:  opts.Metrics,
		logger:   logger,
		onClosed: opts.OnClosed,
		bounds:   opts.Bounds,
	}
	c.notifier = NewNotifier(opts.Delegate, opts.Metrics, logger)
	c.manager = session.NewManager(session.Config{
		Processes:    opts.Processes,
		Views:        opts.Views,
		Sink:         opts.Sink,
		Host:         c,
		Observer:     c,
		Breaker:      opts.Breaker,
		Metrics:      opts.Metrics,
		Logger:       logger,
		SpawnTimeout: opts.SpawnTimeout,
	})

	return c
}

// SetDelegate replaces the delegate; nil detaches it.
func (c *Controller) SetDelegate(d Delegate) {
	c.notifier.SetDelegate(d)
}

// NavigateTo navigates to rawURL as a typed navigation. It returns true
// once a session accepted the request; loading completes later.
func (c *Controller) NavigateTo(rawURL string) bool {
	err := c.Navigate(context.Background(), NavigateRequest{
		URL:        rawURL,
		Transition: navigation.TransitionTyped,
	})
	return err == nil
}

// Navigate starts a navigation.
//
// When the URL is invalid the current entry is untouched. When no session
// can be produced, or the session refuses, the new entry is discarded.
// Otherwise the new entry becomes current and the old current becomes
// previous.
func (c *Controller) Navigate(ctx context.Context, req NavigateRequest) error {
	if c.closed {
		c.metrics.RecordNavigation("closed")
		return ErrClosed
	}

	entry, err := navigation.NewEntry(req.URL, req.Referrer, req.Transition, c.rewriter)
	if err != nil {
		c.metrics.RecordNavigation("invalid_url")
		return err
	}

	return c.navigate(ctx, entry, req.Reload)
}

// Reload navigates to the current entry's URL again, keeping its page state.
func (c *Controller) Reload() bool {
	if c.closed || c.current == nil {
		return false
	}

	entry, err := navigation.NewEntry(c.current.URL(), c.current.Referrer(), navigation.TransitionReload, c.rewriter)
	if err != nil {
		return false
	}
	entry.SetContentState(c.current.ContentState())

	return c.navigate(context.Background(), entry, true) == nil
}

func (c *Controller) navigate(ctx context.Context, entry *navigation.Entry, reload bool) error {
	s, err := c.manager.Navigate(ctx, entry)
	if err != nil {
		c.metrics.RecordNavigation(navigationResult(err))
		c.logger.Warn("no session for navigation",
			zap.String("url", entry.URL()),
			zap.Uint64("nav_id", entry.ID()),
			zap.Error(err),
		)
		if errors.Is(err, session.ErrViewCreationFailed) || errors.Is(err, session.ErrFactoryUnavailable) {
			c.notifyCrashOnce()
		}
		return fmt.Errorf("navigate to %s: %w", entry.URL(), err)
	}
	c.crashNotified = false

	if !s.Navigate(entry.NavigateParams(reload)) {
		c.manager.CancelPending(s)
		c.metrics.RecordNavigation("rejected")
		return fmt.Errorf("navigate to %s: %w", entry.URL(), ErrNavigationRejected)
	}

	c.previous = c.current
	c.current = entry
	c.requestedAt = time.Now()
	c.metrics.RecordNavigation("accepted")

	c.logger.Debug("navigation started",
		zap.String("url", entry.URL()),
		zap.Uint64("nav_id", entry.ID()),
		zap.String("session_id", s.ID().String()),
		zap.String("state", c.manager.State().String()),
	)
	return nil
}

func navigationResult(err error) string {
	switch {
	case errors.Is(err, session.ErrFactoryUnavailable):
		return "factory_unavailable"
	case errors.Is(err, session.ErrViewCreationFailed):
		return "view_failed"
	default:
		return "session_failed"
	}
}

// Resize stores the container bounds and resizes live views. Bounds set
// before the first navigation apply to the first session.
func (c *Controller) Resize(width, height int) {
	c.bounds.Width = width
	c.bounds.Height = height
	c.manager.Resize(c.bounds.Size())
}

// RequestClose asks the page whether it may unload. The window closes when
// the answer arrives, or right away when there is no live renderer.
func (c *Controller) RequestClose() {
	if c.closed {
		return
	}

	s := c.manager.Current()
	if s == nil || !s.IsLive() {
		c.Destroy()
		return
	}

	c.closePending = true
	if !s.DispatchBeforeUnload() {
		c.Destroy()
	}
}

// Destroy closes every session and releases the window. It is idempotent.
func (c *Controller) Destroy() {
	if c.closed {
		return
	}
	c.closed = true
	c.closePending = false

	c.manager.Shutdown()
	c.current = nil
	c.previous = nil
	c.lastCommitted = nil

	c.logger.Info("window closed")
	if c.onClosed != nil {
		c.onClosed(c)
	}
}

// CreateRenderView creates the view of a new session at the container
// size. It implements session.ViewHost.
func (c *Controller) CreateRenderView(s *render.Session) bool {
	if !s.CreateView(c.bounds.Size()) {
		return false
	}
	c.updateMaxPageID(s)
	return true
}

// updateMaxPageID keeps the session's max page id above any page id the
// window already used, so new pages never reuse one.
func (c *Controller) updateMaxPageID(s *render.Session) {
	for _, e := range []*navigation.Entry{c.current, c.previous, c.lastCommitted} {
		if e != nil && e.PageID() > s.MaxPageID() {
			s.UpdateMaxPageID(e.PageID())
		}
	}
}

// SessionSwitched implements session.Observer.
func (c *Controller) SessionSwitched(old, next *render.Session) {
	next.Resize(c.bounds.Size())

	fields := []zap.Field{zap.String("session_id", next.ID().String()), zap.String("site", string(next.Site()))}
	if old != nil {
		fields = append(fields, zap.String("old_session_id", old.ID().String()))
	}
	c.logger.Debug("session switched", fields...)
}

// SwapCompleted implements session.Observer.
func (c *Controller) SwapCompleted(old *render.Session) {
	c.logger.Debug("swap completed", zap.String("old_session_id", old.ID().String()))
}

func (c *Controller) notifyCrashOnce() {
	if c.crashNotified {
		return
	}
	c.crashNotified = true
	c.notifier.Crashed(c)
}

func (c *Controller) ID() id.WindowID { return c.id }

// CurrentURL returns the URL of the current entry, or "".
func (c *Controller) CurrentURL() string {
	if c.current == nil {
		return ""
	}
	return c.current.URL()
}

// CurrentTitle returns the title of the current entry, or "".
func (c *Controller) CurrentTitle() string {
	if c.current == nil {
		return ""
	}
	return c.current.Title()
}

func (c *Controller) CurrentEntry() *navigation.Entry  { return c.current }
func (c *Controller) PreviousEntry() *navigation.Entry { return c.previous }
func (c *Controller) IsLoading() bool                  { return c.manager.IsLoading() }
func (c *Controller) CurrentSession() *render.Session  { return c.manager.Current() }
func (c *Controller) Bounds() render.Rect              { return c.bounds }
func (c *Controller) State() session.State             { return c.manager.State() }
func (c *Controller) IsClosed() bool                   { return c.closed }
func (c *Controller) IsClosePending() bool             { return c.closePending }
func (c *Controller) Delegate() Delegate               { return c.notifier.Delegate() }

// Process returns the current renderer process, or nil.
func (c *Controller) Process() render.Process {
	if s := c.manager.Current(); s != nil {
		return s.Process()
	}
	return nil
}

// View returns the current view, or nil.
func (c *Controller) View() render.View {
	if s := c.manager.Current(); s != nil {
		return s.View()
	}
	return nil
}

// Snapshot is a serializable view of a window.
type Snapshot struct {
	ID        string      `json:"id"`
	URL       string      `json:"url"`
	Title     string      `json:"title"`
	Loading   bool        `json:"loading"`
	State     string      `json:"state"`
	Bounds    render.Rect `json:"bounds"`
	SessionID string      `json:"session_id,omitempty"`
	Site      string      `json:"site,omitempty"`
	PageID    int         `json:"page_id"`
	Committed bool        `json:"committed"`
	Closed    bool        `json:"closed"`
}

// Snapshot captures the queryable state.
func (c *Controller) Snapshot() Snapshot {
	snap := Snapshot{
		ID:      c.id.String(),
		URL:     c.CurrentURL(),
		Title:   c.CurrentTitle(),
		Loading: c.IsLoading(),
		State:   c.State().String(),
		Bounds:  c.bounds,
		PageID:  navigation.UncommittedPageID,
		Closed:  c.closed,
	}
	if c.current != nil {
		snap.PageID = c.current.PageID()
		snap.Committed = c.current.IsCommitted()
	}
	if s := c.manager.Current(); s != nil {
		snap.SessionID = s.ID().String()
		snap.Site = string(s.Site())
	}
	return snap
}
