package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/GriffinCanCode/navhost/internal/domain/navigation"
	"github.com/GriffinCanCode/navhost/internal/domain/render"
	"github.com/GriffinCanCode/navhost/internal/domain/window"
	"github.com/GriffinCanCode/navhost/internal/shared/id"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// errConflict marks commands the window cannot carry out in its state.
var errConflict = errors.New("conflict")

type createRequest struct {
	URL    string `json:"url"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width" binding:"gte=0"`
	Height int    `json:"height" binding:"gte=0"`
}

type navigateRequest struct {
	URL      string `json:"url" binding:"required"`
	Referrer string `json:"referrer"`
}

type resizeRequest struct {
	Width  int `json:"width" binding:"gte=0"`
	Height int `json:"height" binding:"gte=0"`
}

type killer interface {
	Kill()
}

// parseWindowID validates the :id parameter. It writes the error response and
// returns false when the id is malformed.
func parseWindowID(c *gin.Context) (id.WindowID, bool) {
	raw := c.Param("id")
	if !id.Valid(raw) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "invalid window id",
		})
		return "", false
	}
	return id.WindowID(raw), true
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   "Invalid request: " + err.Error(),
	})
}

// ListWindows lists all open windows
func (h *Handlers) ListWindows(c *gin.Context) {
	var snaps []window.Snapshot
	err := h.browser.Do(c.Request.Context(), func() {
		for _, w := range h.browser.List() {
			snaps = append(snaps, w.Snapshot())
		}
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	if snaps == nil {
		snaps = []window.Snapshot{}
	}

	c.JSON(http.StatusOK, gin.H{
		"windows": snaps,
		"count":   len(snaps),
	})
}

// CreateWindow opens a window and optionally starts a navigation in it.
// The window is created even if that navigation fails.
func (h *Handlers) CreateWindow(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	var (
		snap   window.Snapshot
		navErr error
	)
	err := h.browser.Do(ctx, func() {
		w := h.browser.Create(render.Rect{X: req.X, Y: req.Y, Width: req.Width, Height: req.Height})
		if req.URL != "" {
			navErr = w.Navigate(ctx, window.NavigateRequest{
				URL:        req.URL,
				Transition: navigation.TransitionTyped,
			})
		}
		snap = w.Snapshot()
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := gin.H{
		"success":   true,
		"window":    snap,
		"navigated": req.URL != "" && navErr == nil,
	}
	if navErr != nil {
		h.logger.Info("initial navigation failed",
			zap.String("window_id", snap.ID),
			zap.String("url", req.URL),
			zap.Error(navErr),
		)
		resp["error"] = navErr.Error()
	}
	c.JSON(http.StatusCreated, resp)
}

// GetWindow returns the state of one window
func (h *Handlers) GetWindow(c *gin.Context) {
	windowID, ok := parseWindowID(c)
	if !ok {
		return
	}

	var snap window.Snapshot
	err := h.browser.WithWindow(c.Request.Context(), windowID, func(w *window.Controller) error {
		snap = w.Snapshot()
		return nil
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"window":  snap,
	})
}

// Navigate starts a typed navigation. Loading completes asynchronously;
// watch /stream for its progress.
func (h *Handlers) Navigate(c *gin.Context) {
	windowID, ok := parseWindowID(c)
	if !ok {
		return
	}
	var req navigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	var snap window.Snapshot
	err := h.browser.WithWindow(ctx, windowID, func(w *window.Controller) error {
		err := w.Navigate(ctx, window.NavigateRequest{
			URL:        req.URL,
			Referrer:   req.Referrer,
			Transition: navigation.TransitionTyped,
		})
		snap = w.Snapshot()
		return err
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"window":  snap,
	})
}

// Reload reloads the current entry
func (h *Handlers) Reload(c *gin.Context) {
	h.command(c, http.StatusAccepted, func(w *window.Controller) error {
		if !w.Reload() {
			return fmt.Errorf("nothing to reload: %w", errConflict)
		}
		return nil
	})
}

// Resize changes the window size
func (h *Handlers) Resize(c *gin.Context) {
	var req resizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	h.command(c, http.StatusOK, func(w *window.Controller) error {
		if w.IsClosed() {
			return window.ErrClosed
		}
		w.Resize(req.Width, req.Height)
		return nil
	})
}

// Close asks the page whether it may unload. The window closes once the
// page answers; "closed" is true when that already happened.
func (h *Handlers) Close(c *gin.Context) {
	h.command(c, http.StatusAccepted, func(w *window.Controller) error {
		w.RequestClose()
		return nil
	})
}

// Kill terminates the renderer process of the window, which is reported
// through the crash notification.
func (h *Handlers) Kill(c *gin.Context) {
	h.command(c, http.StatusAccepted, func(w *window.Controller) error {
		p := w.Process()
		if p == nil || !p.Alive() {
			return fmt.Errorf("no live renderer: %w", errConflict)
		}
		k, ok := p.(killer)
		if !ok {
			return fmt.Errorf("renderer %s cannot be killed: %w", p.ID(), errConflict)
		}

		h.logger.Info("killing renderer",
			zap.String("window_id", w.ID().String()),
			zap.String("process_id", p.ID()),
		)
		k.Kill()
		return nil
	})
}

// DestroyWindow closes a window without asking the page
func (h *Handlers) DestroyWindow(c *gin.Context) {
	windowID, ok := parseWindowID(c)
	if !ok {
		return
	}

	err := h.browser.WithWindow(c.Request.Context(), windowID, func(w *window.Controller) error {
		w.Destroy()
		return nil
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"window_id": windowID,
	})
}

// command runs fn on the window named by :id and answers with its snapshot.
func (h *Handlers) command(c *gin.Context, status int, fn func(w *window.Controller) error) {
	windowID, ok := parseWindowID(c)
	if !ok {
		return
	}

	var snap window.Snapshot
	err := h.browser.WithWindow(c.Request.Context(), windowID, func(w *window.Controller) error {
		if err := fn(w); err != nil {
			return err
		}
		snap = w.Snapshot()
		return nil
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(status, gin.H{
		"success": true,
		"window":  snap,
	})
}
