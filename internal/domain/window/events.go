package window

import (
	"context"
	"time"

	"github.com/GriffinCanCode/navhost/internal/domain/navigation"
	"github.com/GriffinCanCode/navhost/internal/domain/render"
	"github.com/GriffinCanCode/navhost/internal/shared/id"
	"go.uber.org/zap"
)

// HandleEvent applies one renderer event. Events from sessions the window no
// longer tracks, or for entries that were superseded, are dropped.
func (c *Controller) HandleEvent(ev render.Event) {
	if c.closed {
		return
	}
	if ev.Kind != render.EventRenderViewGone {
		if s, ok := c.manager.Lookup(ev.Session); ok && !s.IsLive() {
			c.stale(ev.Kind, "session dead")
			return
		}
	}

	switch ev.Kind {
	case render.EventStartProvisionalLoad:
		c.DidStartProvisionalLoad(ev.Session, ev.NavigationID, ev.MainFrame, ev.URL)
	case render.EventRedirectProvisionalLoad:
		if !c.manager.Owns(ev.Session) {
			c.stale(ev.Kind, "unknown session")
			return
		}
		c.RedirectProvisionalLoad(ev.NavigationID, ev.SourceURL, ev.TargetURL)
	case render.EventFailProvisionalLoad:
		c.DidFailProvisionalLoad(ev.Session, ev.NavigationID, ev.MainFrame, ev.ErrorCode, ev.URL)
	case render.EventCommitProvisionalLoad:
		c.DidCommitProvisionalLoad(ev.Session, ev.NavigationID, ev.PageID, ev.URL)
	case render.EventDidLoadDocument:
		c.DocumentLoadedInFrame(ev.Session, ev.NavigationID)
	case render.EventStartLoading:
		c.DidStartLoading(ev.Session)
	case render.EventStopLoading:
		c.DidStopLoading(ev.Session)
	case render.EventTitleUpdated:
		c.UpdateTitle(ev.Session, ev.NavigationID, ev.Title)
	case render.EventRenderViewGone:
		c.RenderViewGone(ev.Session)
	case render.EventCreateWindow:
		c.ShowCreatedWindow(ev.Session, ev.Bounds, ev.URL)
	case render.EventBeforeUnloadFired:
		c.BeforeUnloadFired(ev.Session, ev.Proceed)
	case render.EventResourceResponseStarted, render.EventResourceRedirected, render.EventResourceLoadedFromCache:
		c.logger.Debug("resource event",
			zap.String("kind", ev.Kind.String()),
			zap.String("url", ev.URL),
			zap.String("session_id", ev.Session.String()),
		)
	default:
		c.logger.Warn("unknown renderer event", zap.Int("kind", int(ev.Kind)))
	}
}

func (c *Controller) stale(kind render.EventKind, reason string) {
	c.metrics.RecordStaleEvent(kind.String())
	c.logger.Debug("stale event ignored",
		zap.String("kind", kind.String()),
		zap.String("reason", reason),
	)
}

// entryFor returns the current entry when navID refers to it. A zero navID
// means the renderer started the navigation itself; it only refers to a
// committed entry of the current session.
func (c *Controller) entryFor(sid id.SessionID, navID uint64) (*navigation.Entry, bool) {
	if c.current == nil {
		return nil, false
	}
	if navID == 0 {
		return c.current, c.manager.IsCurrent(sid) && c.current.IsCommitted()
	}
	return c.current, navID == c.current.ID()
}

// DidStartProvisionalLoad reports that a main-frame load began. The address
// bar signal follows the start signal in the same call.
func (c *Controller) DidStartProvisionalLoad(sid id.SessionID, navID uint64, mainFrame bool, url string) {
	if !mainFrame {
		return
	}
	if !c.manager.Owns(sid) {
		c.stale(render.EventStartProvisionalLoad, "unknown session")
		return
	}
	if _, ok := c.entryFor(sid, navID); !ok {
		c.stale(render.EventStartProvisionalLoad, "superseded entry")
		return
	}

	c.manager.SetIsLoading(true)
	c.announcedURL = url

	c.notifier.StartLoading(c, url)
	c.notifier.AddressBarChanged(c, url)
}

// RedirectProvisionalLoad moves the current entry to target when it is
// still provisional and still loading source. A redirect for a superseded
// entry is ignored.
func (c *Controller) RedirectProvisionalLoad(navID uint64, source, target string) bool {
	e := c.current
	switch {
	case e == nil:
		c.stale(render.EventRedirectProvisionalLoad, "no entry")
		return false
	case navID != 0 && navID != e.ID():
		c.stale(render.EventRedirectProvisionalLoad, "superseded entry")
		return false
	case e.IsCommitted():
		c.stale(render.EventRedirectProvisionalLoad, "entry committed")
		return false
	case e.URL() != source:
		c.stale(render.EventRedirectProvisionalLoad, "source mismatch")
		return false
	}

	if err := e.SetURL(target); err != nil {
		c.logger.Debug("redirect rejected", zap.String("target", target), zap.Error(err))
		return false
	}
	c.metrics.IncRedirects()
	return true
}

// DidFailProvisionalLoad reports a main-frame load that failed before
// committing. A failed entry is replaced by the last committed one, however
// many provisional entries came in between.
func (c *Controller) DidFailProvisionalLoad(sid id.SessionID, navID uint64, mainFrame bool, code int, url string) {
	if !mainFrame {
		return
	}
	s, ok := c.manager.Lookup(sid)
	if !ok {
		c.stale(render.EventFailProvisionalLoad, "unknown session")
		return
	}
	e, ok := c.entryFor(sid, navID)
	if !ok {
		c.stale(render.EventFailProvisionalLoad, "superseded entry")
		return
	}

	c.manager.RendererAbortedProvisionalLoad(s)
	c.manager.SetIsLoading(false)
	c.metrics.IncLoadsFailed()
	c.logger.Info("provisional load failed",
		zap.String("url", url),
		zap.Int("error_code", code),
		zap.Uint64("nav_id", e.ID()),
	)

	if e.IsCommitted() || c.lastCommitted == nil || c.lastCommitted == e {
		return
	}
	c.current = c.lastCommitted
	c.previous = nil
	c.announcedURL = c.current.URL()

	c.notifier.AddressBarChanged(c, c.current.URL())
}

// DidCommitProvisionalLoad reports that the renderer committed a load. A
// commit from the pending session completes the swap.
func (c *Controller) DidCommitProvisionalLoad(sid id.SessionID, navID uint64, pageID int, url string) {
	s, ok := c.manager.Lookup(sid)
	if !ok {
		c.stale(render.EventCommitProvisionalLoad, "unknown session")
		return
	}

	var e *navigation.Entry
	if navID == 0 {
		if !c.manager.IsCurrent(sid) || (c.current != nil && !c.current.IsCommitted()) {
			c.stale(render.EventCommitProvisionalLoad, "renderer navigation during provisional load")
			return
		}
		if !c.adoptRendererNavigation(url) {
			c.stale(render.EventCommitProvisionalLoad, "invalid url")
			return
		}
		e = c.current
	} else {
		e, ok = c.entryFor(sid, navID)
		if !ok {
			c.stale(render.EventCommitProvisionalLoad, "superseded entry")
			return
		}
	}
	if e.IsCommitted() {
		c.stale(render.EventCommitProvisionalLoad, "already committed")
		return
	}
	if !c.manager.DidCommit(s) {
		c.stale(render.EventCommitProvisionalLoad, "session not tracked")
		return
	}

	if url != "" && url != e.URL() {
		if err := e.SetURL(url); err != nil {
			c.logger.Debug("committed url rejected", zap.String("url", url), zap.Error(err))
		}
	}
	e.Commit(pageID)
	c.lastCommitted = e
	s.UpdateMaxPageID(pageID)
	if !c.requestedAt.IsZero() {
		c.metrics.ObserveCommit(time.Since(c.requestedAt))
	}

	if e.URL() != c.announcedURL {
		c.announcedURL = e.URL()
		c.notifier.AddressBarChanged(c, e.URL())
	}
}

// adoptRendererNavigation records a navigation the page started on its own,
// such as a followed link.
func (c *Controller) adoptRendererNavigation(url string) bool {
	entry, err := navigation.NewEntry(url, c.CurrentURL(), navigation.TransitionLink, c.rewriter)
	if err != nil {
		return false
	}
	c.previous = c.current
	c.current = entry
	c.requestedAt = time.Time{}
	return true
}

// DocumentLoadedInFrame reports that the document finished loading. OnLoad
// fires at most once per entry.
func (c *Controller) DocumentLoadedInFrame(sid id.SessionID, navID uint64) {
	if !c.manager.IsCurrent(sid) {
		c.stale(render.EventDidLoadDocument, "not current session")
		return
	}
	e, ok := c.entryFor(sid, navID)
	if !ok || !e.IsCommitted() {
		c.stale(render.EventDidLoadDocument, "superseded entry")
		return
	}
	if c.loadNotified == e.ID() {
		return
	}
	c.loadNotified = e.ID()

	c.notifier.Load(c)
}

// DidStartLoading marks the window as loading.
func (c *Controller) DidStartLoading(sid id.SessionID) {
	if !c.manager.Owns(sid) {
		c.stale(render.EventStartLoading, "unknown session")
		return
	}
	c.manager.SetIsLoading(true)
}

// DidStopLoading clears the loading flag.
func (c *Controller) DidStopLoading(sid id.SessionID) {
	if !c.manager.IsCurrent(sid) {
		c.stale(render.EventStopLoading, "not current session")
		return
	}
	c.manager.SetIsLoading(false)
}

// UpdateTitle sets the title of the entry navID refers to.
func (c *Controller) UpdateTitle(sid id.SessionID, navID uint64, title string) {
	if !c.manager.Owns(sid) {
		c.stale(render.EventTitleUpdated, "unknown session")
		return
	}
	e, ok := c.entryFor(sid, navID)
	if !ok {
		c.stale(render.EventTitleUpdated, "superseded entry")
		return
	}
	e.SetTitle(title)
}

// RenderViewGone handles a renderer death. Only the current session's death
// is reported to the delegate.
func (c *Controller) RenderViewGone(sid id.SessionID) {
	s, ok := c.manager.Lookup(sid)
	if !ok {
		c.stale(render.EventRenderViewGone, "unknown session")
		return
	}
	if !c.manager.RendererGone(s) {
		return
	}

	c.manager.SetIsLoading(false)
	c.crashNotified = true
	c.notifier.Crashed(c)

	if c.closePending {
		c.Destroy()
	}
}

// BeforeUnloadFired delivers the page's beforeunload answer. When the page
// refuses, nothing changes and the delegate hears OnCancelUnload. When it
// agrees, the delegate decides, and a pending close completes.
func (c *Controller) BeforeUnloadFired(sid id.SessionID, proceed bool) bool {
	if !c.manager.IsCurrent(sid) {
		c.stale(render.EventBeforeUnloadFired, "not current session")
		return false
	}

	if !proceed {
		c.closePending = false
		c.notifier.CancelUnload(c)
		return false
	}

	proceedToUnload := c.notifier.BeforeUnload(c, true)
	if !proceedToUnload {
		c.closePending = false
		return false
	}
	if c.closePending {
		c.Destroy()
	}
	return true
}

// ShowCreatedWindow opens a window the page asked for. The child is sized to
// bounds, navigated to url when one is given, and handed to the delegate.
func (c *Controller) ShowCreatedWindow(sid id.SessionID, bounds render.Rect, url string) *Controller {
	if !c.manager.IsCurrent(sid) {
		c.stale(render.EventCreateWindow, "not current session")
		return nil
	}
	if c.opener == nil {
		c.logger.Debug("window creation ignored, no opener")
		return nil
	}

	child, err := c.opener.OpenWindow(c, bounds)
	if err != nil {
		c.logger.Warn("window creation failed", zap.Error(err))
		return nil
	}
	child.Resize(bounds.Width, bounds.Height)

	if url != "" {
		err := child.Navigate(context.Background(), NavigateRequest{
			URL:        url,
			Referrer:   c.CurrentURL(),
			Transition: navigation.TransitionAutoToplevel,
		})
		if err != nil {
			c.logger.Debug("popup navigation failed", zap.String("url", url), zap.Error(err))
		}
	}

	c.notifier.CreatedWindow(c, child)
	return child
}
