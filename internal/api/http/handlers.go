package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/GriffinCanCode/navhost/internal/domain/browser"
	"github.com/GriffinCanCode/navhost/internal/domain/navigation"
	"github.com/GriffinCanCode/navhost/internal/domain/session"
	"github.com/GriffinCanCode/navhost/internal/domain/window"
	"github.com/GriffinCanCode/navhost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/navhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/navhost/internal/infrastructure/resilience"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Options wires Handlers.
type Options struct {
	Browser  *browser.Manager
	Breakers []*resilience.Breaker
	Metrics  *monitoring.Metrics
	Logger   *zap.Logger
	Version  string
}

// Handlers contains all HTTP handlers
type Handlers struct {
	browser  *browser.Manager
	breakers []*resilience.Breaker
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	version  string
	started  time.Time
}

// NewHandlers creates a new handler set
func NewHandlers(opts Options) *Handlers {
	return &Handlers{
		browser:  opts.Browser,
		breakers: opts.Breakers,
		metrics:  opts.Metrics,
		logger:   logging.OrNop(opts.Logger).With(zap.String("component", "api")),
		version:  opts.Version,
		started:  time.Now(),
	}
}

// Register mounts every route on r.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/health", h.Health)
	r.GET("/metrics/json", h.MetricsJSON)

	windows := r.Group("/windows")
	windows.GET("", h.ListWindows)
	windows.POST("", h.CreateWindow)
	windows.GET("/:id", h.GetWindow)
	windows.DELETE("/:id", h.DestroyWindow)
	windows.POST("/:id/navigate", h.Navigate)
	windows.POST("/:id/reload", h.Reload)
	windows.POST("/:id/resize", h.Resize)
	windows.POST("/:id/close", h.Close)
	windows.POST("/:id/kill", h.Kill)
}

// Health handles liveness checks
func (h *Handlers) Health(c *gin.Context) {
	breakers := make(gin.H, len(h.breakers))
	for _, b := range h.breakers {
		breakers[b.Name()] = b.State().String()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"service":  "navhost",
		"version":  h.version,
		"uptime":   time.Since(h.started).Round(time.Second).String(),
		"windows":  h.browser.Count(),
		"breakers": breakers,
	})
}

// MetricsJSON returns the counters behind /metrics as JSON.
func (h *Handlers) MetricsJSON(c *gin.Context) {
	c.JSON(http.StatusOK, h.metrics.Snapshot())
}

// fail writes err with the status it maps to.
func (h *Handlers) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Warn("request failed",
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, browser.ErrWindowNotFound):
		return http.StatusNotFound
	case errors.Is(err, navigation.ErrInvalidURL):
		return http.StatusBadRequest
	case errors.Is(err, window.ErrClosed), errors.Is(err, errConflict):
		return http.StatusConflict
	case errors.Is(err, session.ErrFactoryUnavailable), errors.Is(err, browser.ErrLoopStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, window.ErrNavigationRejected),
		errors.Is(err, session.ErrSessionCreationFailed),
		errors.Is(err, session.ErrViewCreationFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
