package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GriffinCanCode/navhost/internal/domain/navigation"
	"github.com/GriffinCanCode/navhost/internal/domain/render"
	"github.com/GriffinCanCode/navhost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/navhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/navhost/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/navhost/internal/shared/id"
	"go.uber.org/zap"
)

// State is derived from the current and pending sessions.
type State int

const (
	StateNoSession State = iota
	StateSingleSession
	StateSwapPending
	StateCrashed
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateNoSession:
		return "no-session"
	case StateSingleSession:
		return "single-session"
	case StateSwapPending:
		return "swap-pending"
	case StateCrashed:
		return "crashed"
	default:
		return "unknown"
	}
}

// ViewHost creates the view of a freshly spawned session.
type ViewHost interface {
	CreateRenderView(s *render.Session) bool
}

// Observer is told about session replacement. SessionSwitched fires when
// the new session becomes current, SwapCompleted after the old one was
// closed.
type Observer interface {
	SessionSwitched(old, next *render.Session)
	SwapCompleted(old *render.Session)
}

// Config wires a Manager to its collaborators.
type Config struct {
	Processes render.ProcessFactory
	Views     render.ViewFactory
	Sink      render.EventSink
	Host      ViewHost
	Observer  Observer
	Breaker   *resilience.Breaker
	Metrics   *monitoring.Metrics
	Logger    *zap.Logger
	// SpawnTimeout bounds a single Spawn call. Zero means no limit beyond
	// the caller's context.
	SpawnTimeout time.Duration
}

// Manager owns the current session of a window and, during a cross-site
// navigation, the pending one. It is not safe for concurrent use.
type Manager struct {
	processes    render.ProcessFactory
	views        render.ViewFactory
	sink         render.EventSink
	host         ViewHost
	observer     Observer
	breaker      *resilience.Breaker
	metrics      *monitoring.Metrics
	logger       *zap.Logger
	spawnTimeout time.Duration

	current *render.Session
	pending *render.Session
	loading bool
}

// NewManager creates a manager with no session.
func NewManager(cfg Config) *Manager {
	return &Manager{
		processes:    cfg.Processes,
		views:        cfg.Views,
		sink:         cfg.Sink,
		host:         cfg.Host,
		observer:     cfg.Observer,
		breaker:      cfg.Breaker,
		metrics:      cfg.Metrics,
		logger:       logging.OrNop(cfg.Logger),
		spawnTimeout: cfg.SpawnTimeout,
	}
}

// Navigate returns the session that should load entry, creating one when
// the entry's site needs a different renderer.
func (m *Manager) Navigate(ctx context.Context, entry *navigation.Entry) (*render.Session, error) {
	site := entry.Site()

	if m.pending != nil && m.pending.IsLive() && navigation.SameSite(m.pending.Site(), site) {
		return m.pending, nil
	}

	if m.current != nil && m.current.IsLive() && navigation.SameSite(m.current.Site(), site) {
		if m.pending != nil {
			m.abandonPending("navigated back to current site")
		}
		return m.current, nil
	}

	s, err := m.createSession(ctx, site)
	if err != nil {
		return nil, err
	}

	if m.current == nil || !m.current.IsLive() {
		m.replaceCurrent(s)
		return s, nil
	}

	if m.pending != nil {
		m.abandonPending("superseded by another site")
	}
	m.pending = s

	m.logger.Debug("swap pending",
		zap.String("session_id", s.ID().String()),
		zap.String("site", string(site)),
		zap.String("current_site", string(m.current.Site())),
	)
	return s, nil
}

// DidCommit reports a commit from s. A commit from the pending session
// completes the swap. It returns false for sessions the manager no longer
// tracks.
func (m *Manager) DidCommit(s *render.Session) bool {
	switch {
	case s == nil:
		return false
	case s == m.pending:
		old := m.current
		m.current = s
		m.pending = nil
		m.notifySwitched(old, s)
		if old != nil {
			m.closeSession(old)
			m.notifyCompleted(old)
		}
		m.metrics.IncSwaps()
		m.logger.Debug("swap completed", zap.String("session_id", s.ID().String()))
		return true
	case s == m.current:
		if m.pending != nil {
			m.abandonPending("current session committed")
		}
		return true
	default:
		return false
	}
}

// RendererGone handles the death of s. It returns true only the first time
// the current session dies; the manager does not recreate it.
func (m *Manager) RendererGone(s *render.Session) bool {
	switch {
	case s == nil:
		return false
	case s == m.current:
		if s.IsDead() {
			return false
		}
		s.MarkDead()
		m.metrics.IncCrashes()
		m.logger.Warn("current renderer gone", zap.String("session_id", s.ID().String()))
		return true
	case s == m.pending:
		s.MarkDead()
		m.abandonPending("pending renderer gone")
		return false
	default:
		return false
	}
}

// RendererAbortedProvisionalLoad drops the pending session when its load
// failed.
func (m *Manager) RendererAbortedProvisionalLoad(s *render.Session) {
	if s != nil && s == m.pending {
		m.abandonPending("provisional load aborted")
	}
}

// CancelPending drops s if it is the pending session.
func (m *Manager) CancelPending(s *render.Session) {
	if s != nil && s == m.pending {
		m.abandonPending("navigation refused")
	}
}

// Resize forwards size to the live sessions. Without one it does nothing.
func (m *Manager) Resize(size render.Size) {
	if m.current != nil && m.current.IsLive() {
		m.current.Resize(size)
	}
	if m.pending != nil && m.pending.IsLive() {
		m.pending.Resize(size)
	}
}

// State derives the manager state.
func (m *Manager) State() State {
	switch {
	case m.current == nil:
		return StateNoSession
	case !m.current.IsLive():
		return StateCrashed
	case m.pending != nil:
		return StateSwapPending
	default:
		return StateSingleSession
	}
}

func (m *Manager) Current() *render.Session { return m.current }
func (m *Manager) Pending() *render.Session { return m.pending }

// Lookup finds a tracked session by id.
func (m *Manager) Lookup(sid id.SessionID) (*render.Session, bool) {
	switch {
	case m.IsCurrent(sid):
		return m.current, true
	case m.IsPending(sid):
		return m.pending, true
	default:
		return nil, false
	}
}

// Owns reports whether sid is the current or the pending session.
func (m *Manager) Owns(sid id.SessionID) bool {
	return m.IsCurrent(sid) || m.IsPending(sid)
}

func (m *Manager) IsCurrent(sid id.SessionID) bool {
	return m.current != nil && m.current.ID() == sid
}

func (m *Manager) IsPending(sid id.SessionID) bool {
	return m.pending != nil && m.pending.ID() == sid
}

func (m *Manager) SetIsLoading(loading bool) { m.loading = loading }
func (m *Manager) IsLoading() bool           { return m.loading }

// Shutdown closes every session without notifying the observer.
func (m *Manager) Shutdown() {
	if m.pending != nil {
		m.closeSession(m.pending)
		m.pending = nil
	}
	if m.current != nil {
		m.closeSession(m.current)
		m.current = nil
	}
	m.loading = false
}

func (m *Manager) createSession(ctx context.Context, site navigation.Site) (*render.Session, error) {
	if m.spawnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.spawnTimeout)
		defer cancel()
	}

	sid := id.NewSessionID()
	spawn := func() (render.Process, error) {
		return m.processes.Spawn(ctx, render.SpawnRequest{Session: sid, Site: site, Sink: m.sink})
	}

	start := time.Now()
	var (
		process render.Process
		err     error
	)
	if m.breaker != nil {
		process, err = resilience.Call(m.breaker, spawn)
	} else {
		process, err = spawn()
	}
	m.metrics.RecordSpawn(err == nil, time.Since(start))

	if err != nil {
		m.logger.Warn("session spawn failed", zap.String("site", string(site)), zap.Error(err))
		if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w", ErrFactoryUnavailable, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrSessionCreationFailed, err)
	}

	s := render.NewSession(sid, site, process, m.views, m.logger)
	m.metrics.SessionOpened()

	var ok bool
	if m.host != nil {
		ok = m.host.CreateRenderView(s)
	} else {
		ok = s.CreateView(render.Size{})
	}
	if !ok {
		s.Close()
		m.metrics.SessionClosed()
		return nil, fmt.Errorf("%w: session %s", ErrViewCreationFailed, sid)
	}

	return s, nil
}

// replaceCurrent installs s without a swap; used when there is no live
// current session.
func (m *Manager) replaceCurrent(s *render.Session) {
	old := m.current
	if m.pending != nil {
		m.abandonPending("replaced with a new current session")
	}

	m.current = s
	m.notifySwitched(old, s)
	if old != nil {
		m.closeSession(old)
		m.notifyCompleted(old)
	}
}

func (m *Manager) abandonPending(reason string) {
	p := m.pending
	m.pending = nil
	m.logger.Debug("pending session abandoned",
		zap.String("session_id", p.ID().String()),
		zap.String("reason", reason),
	)
	m.closeSession(p)
}

func (m *Manager) closeSession(s *render.Session) {
	if s.IsClosed() {
		return
	}
	s.Close()
	m.metrics.SessionClosed()
}

func (m *Manager) notifySwitched(old, next *render.Session) {
	if m.observer != nil {
		m.observer.SessionSwitched(old, next)
	}
}

func (m *Manager) notifyCompleted(old *render.Session) {
	if m.observer != nil {
		m.observer.SwapCompleted(old)
	}
}
