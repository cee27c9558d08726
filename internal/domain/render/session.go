package render

import (
	"context"

	"github.com/GriffinCanCode/navhost/internal/domain/navigation"
	"github.com/GriffinCanCode/navhost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/navhost/internal/shared/id"
	"go.uber.org/zap"
)

// Session is one renderer process plus its view. It is not safe for
// concurrent use; the owning session manager serializes access.
type Session struct {
	id        id.SessionID
	site      navigation.Site
	process   Process
	views     ViewFactory
	view      View
	dead      bool
	unusable  bool
	closed    bool
	maxPageID int
	logger    *zap.Logger
}

// NewSession wraps an already spawned process.
func NewSession(sessionID id.SessionID, site navigation.Site, process Process, views ViewFactory, logger *zap.Logger) *Session {
	logger = logging.OrNop(logger)
	return &Session{
		id:        sessionID,
		site:      site,
		process:   process,
		views:     views,
		maxPageID: navigation.UncommittedPageID,
		logger:    logger.With(zap.String("session_id", sessionID.String()), zap.String("site", string(site))),
	}
}

func (s *Session) ID() id.SessionID      { return s.id }
func (s *Session) Site() navigation.Site { return s.site }

// Process returns the renderer process, or nil once the session is closed.
func (s *Session) Process() Process {
	if s == nil || s.closed {
		return nil
	}
	return s.process
}

// View returns the view, or nil before CreateView succeeded.
func (s *Session) View() View {
	if s == nil || s.closed {
		return nil
	}
	return s.view
}

// CreateView creates the view at size. A failure closes the session for
// good; it is never retried.
func (s *Session) CreateView(size Size) bool {
	if s.closed || s.unusable || s.process == nil {
		return false
	}
	if s.view != nil {
		s.view.SetSize(size)
		return true
	}

	view, err := s.views.CreateView(context.Background(), s.process, size)
	if err != nil || view == nil {
		s.logger.Warn("view creation failed", zap.Error(err))
		s.unusable = true
		s.Close()
		return false
	}

	s.view = view
	return true
}

// Navigate hands params to the process. It returns false when the process
// cannot accept the navigation.
func (s *Session) Navigate(params navigation.Params) bool {
	if !s.IsLive() {
		return false
	}

	if err := s.process.Navigate(params); err != nil {
		s.logger.Debug("process refused navigation",
			zap.String("url", params.URL),
			zap.Uint64("nav_id", params.NavigationID),
			zap.Error(err),
		)
		return false
	}
	return true
}

// DispatchBeforeUnload asks the renderer to run its beforeunload handlers.
// The answer arrives later as EventBeforeUnloadFired.
func (s *Session) DispatchBeforeUnload() bool {
	if !s.IsLive() {
		return false
	}
	return s.process.DispatchBeforeUnload() == nil
}

// Resize forwards size to the view; it does nothing without one.
func (s *Session) Resize(size Size) {
	if s.closed || s.view == nil {
		return
	}
	s.view.SetSize(size)
}

// IsLive reports whether the session can still render.
func (s *Session) IsLive() bool {
	if s == nil || s.closed || s.dead || s.unusable || s.process == nil {
		return false
	}
	return s.process.Alive()
}

// MarkDead records that the renderer went away.
func (s *Session) MarkDead() {
	s.dead = true
}

// IsDead reports whether MarkDead ran.
func (s *Session) IsDead() bool {
	return s.dead
}

// IsClosed reports whether Close ran.
func (s *Session) IsClosed() bool {
	return s.closed
}

// Close releases the view and the process. It is idempotent.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true

	if s.view != nil {
		if err := s.view.Close(); err != nil {
			s.logger.Debug("view close failed", zap.Error(err))
		}
	}
	if s.process != nil {
		if err := s.process.Close(); err != nil {
			s.logger.Debug("process close failed", zap.Error(err))
		}
	}
}

func (s *Session) MaxPageID() int {
	return s.maxPageID
}

// UpdateMaxPageID raises the max page id; lower values are ignored.
func (s *Session) UpdateMaxPageID(pageID int) {
	if pageID > s.maxPageID {
		s.maxPageID = pageID
	}
}
