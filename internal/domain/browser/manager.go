package browser

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/GriffinCanCode/navhost/internal/domain/navigation"
	"github.com/GriffinCanCode/navhost/internal/domain/render"
	"github.com/GriffinCanCode/navhost/internal/domain/window"
	"github.com/GriffinCanCode/navhost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/navhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/navhost/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/navhost/internal/shared/id"
	"go.uber.org/zap"
)

// ErrWindowNotFound is returned for unknown window ids.
var ErrWindowNotFound = errors.New("window not found")

// Config wires a Manager.
type Config struct {
	Processes     render.ProcessFactory
	Views         render.ViewFactory
	Rewriter      navigation.Rewriter
	Delegate      window.Delegate
	DefaultBounds render.Rect
	SpawnTimeout  time.Duration
	// Breaker guards the process factory for every window.
	Breaker *resilience.Breaker
	Metrics *monitoring.Metrics
	Logger  *zap.Logger
}

// Manager owns the windows of one browser and the loop they run on.
type Manager struct {
	loop     *Loop
	mu       sync.RWMutex
	windows  map[id.WindowID]*window.Controller // Protected by mu
	opener   map[id.WindowID]id.WindowID        // Protected by mu
	delegate window.Delegate

	processes     render.ProcessFactory
	views         render.ViewFactory
	rewriter      navigation.Rewriter
	defaultBounds render.Rect
	spawnTimeout  time.Duration
	breaker       *resilience.Breaker
	metrics       *monitoring.Metrics
	logger        *zap.Logger
}

// NewManager creates a browser with no windows and starts its loop.
func NewManager(cfg Config) *Manager {
	logger := logging.OrNop(cfg.Logger)
	return &Manager{
		loop:          NewLoop(logger),
		windows:       make(map[id.WindowID]*window.Controller),
		opener:        make(map[id.WindowID]id.WindowID),
		delegate:      cfg.Delegate,
		processes:     cfg.Processes,
		views:         cfg.Views,
		rewriter:      cfg.Rewriter,
		defaultBounds: cfg.DefaultBounds,
		spawnTimeout:  cfg.SpawnTimeout,
		breaker:       cfg.Breaker,
		metrics:       cfg.Metrics,
		logger:        logger,
	}
}

// Loop returns the loop every window runs on.
func (m *Manager) Loop() *Loop {
	return m.loop
}

// Do runs fn on the loop.
func (m *Manager) Do(ctx context.Context, fn func()) error {
	return m.loop.Do(ctx, fn)
}

// WithWindow runs fn on the loop with the window called windowID.
func (m *Manager) WithWindow(ctx context.Context, windowID id.WindowID, fn func(w *window.Controller) error) error {
	var result error
	err := m.loop.Do(ctx, func() {
		w, ok := m.Get(windowID)
		if !ok {
			result = fmt.Errorf("%w: %s", ErrWindowNotFound, windowID)
			return
		}
		result = fn(w)
	})
	if err != nil {
		return err
	}
	return result
}

// SetDelegate sets the delegate given to windows created afterwards.
func (m *Manager) SetDelegate(d window.Delegate) {
	m.mu.Lock()
	m.delegate = d
	m.mu.Unlock()
}

// Create makes a window with bounds, or the default bounds when bounds has
// no area. It must run on the loop.
func (m *Manager) Create(bounds render.Rect) *window.Controller {
	if bounds.Size().Empty() {
		bounds = m.defaultBounds
	}

	windowID := id.NewWindowID()
	sink := render.EventSinkFunc(func(ev render.Event) {
		m.dispatch(windowID, ev)
	})

	m.mu.RLock()
	delegate := m.delegate
	m.mu.RUnlock()

	w := window.New(window.Options{
		ID:           windowID,
		Processes:    m.processes,
		Views:        m.views,
		Sink:         sink,
		Breaker:      m.breaker,
		Rewriter:     m.rewriter,
		Delegate:     delegate,
		Opener:       m,
		Bounds:       bounds,
		SpawnTimeout: m.spawnTimeout,
		Metrics:      m.metrics,
		Logger:       m.logger,
		OnClosed:     m.forget,
	})

	m.mu.Lock()
	m.windows[windowID] = w
	count := len(m.windows)
	m.mu.Unlock()

	m.metrics.SetWindowsActive(count)
	m.logger.Info("window created",
		zap.String("window_id", windowID.String()),
		zap.Int("width", bounds.Width),
		zap.Int("height", bounds.Height),
	)
	return w
}

// OpenWindow implements window.Opener for page-created windows.
func (m *Manager) OpenWindow(parent *window.Controller, bounds render.Rect) (*window.Controller, error) {
	if parent == nil || parent.IsClosed() {
		return nil, window.ErrClosed
	}

	child := m.Create(bounds)

	m.mu.Lock()
	m.opener[child.ID()] = parent.ID()
	m.mu.Unlock()

	return child, nil
}

// Opener returns the id of the window that opened windowID.
func (m *Manager) Opener(windowID id.WindowID) (id.WindowID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	parent, ok := m.opener[windowID]
	return parent, ok
}

// dispatch marshals a renderer event onto the loop. Events for windows that
// are gone are dropped.
func (m *Manager) dispatch(windowID id.WindowID, ev render.Event) {
	posted := m.loop.Post(func() {
		w, ok := m.Get(windowID)
		if !ok {
			m.metrics.RecordStaleEvent(ev.Kind.String())
			return
		}
		w.HandleEvent(ev)
	})
	if !posted {
		m.logger.Debug("event after shutdown dropped",
			zap.String("window_id", windowID.String()),
			zap.String("kind", ev.Kind.String()),
		)
	}
}

func (m *Manager) forget(w *window.Controller) {
	m.mu.Lock()
	delete(m.windows, w.ID())
	delete(m.opener, w.ID())
	count := len(m.windows)
	m.mu.Unlock()

	m.metrics.SetWindowsActive(count)
}

// Get retrieves a window by ID
func (m *Manager) Get(windowID id.WindowID) (*window.Controller, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w, ok := m.windows[windowID]
	return w, ok
}

// List returns all windows, oldest first.
func (m *Manager) List() []*window.Controller {
	m.mu.RLock()
	windows := make([]*window.Controller, 0, len(m.windows))
	for _, w := range m.windows {
		windows = append(windows, w)
	}
	m.mu.RUnlock()

	// window ids are ULIDs, so they sort by creation time
	sort.Slice(windows, func(i, j int) bool {
		return windows[i].ID() < windows[j].ID()
	})
	return windows
}

// Count returns the number of open windows.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.windows)
}

// Shutdown destroys every window and stops the loop.
func (m *Manager) Shutdown(ctx context.Context) error {
	err := m.loop.Do(ctx, func() {
		for _, w := range m.List() {
			w.Destroy()
		}
	})
	m.loop.Stop()

	if err != nil && !errors.Is(err, ErrLoopStopped) {
		return err
	}
	return nil
}
