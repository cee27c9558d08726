package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	api "github.com/GriffinCanCode/navhost/internal/api/http"
	"github.com/GriffinCanCode/navhost/internal/api/middleware"
	"github.com/GriffinCanCode/navhost/internal/api/ws"
	"github.com/GriffinCanCode/navhost/internal/domain/browser"
	"github.com/GriffinCanCode/navhost/internal/domain/render"
	"github.com/GriffinCanCode/navhost/internal/domain/window"
	"github.com/GriffinCanCode/navhost/internal/infrastructure/config"
	"github.com/GriffinCanCode/navhost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/navhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/navhost/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/navhost/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/navhost/internal/providers/headless"
	httpclient "github.com/GriffinCanCode/navhost/internal/providers/http/client"
)

// Version is reported by /health.
const Version = "0.1.0"

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	http    *http.Server
	browser *browser.Manager
	factory *headless.Factory
	hub     *ws.Hub
	tracer  *tracing.Tracer
	logger  *logging.Logger
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.NewFromLevel(cfg.Logging.Level, cfg.Logging.Development)
	logger.Info("Initializing navhost",
		zap.String("port", cfg.Server.Port),
		zap.Int("window_width", cfg.Window.Width),
		zap.Int("window_height", cfg.Window.Height),
		zap.Bool("follow_refresh", cfg.Renderer.FollowRefresh),
	)

	// Metrics first; every component below records into them
	metrics := monitoring.NewMetrics()
	tracer := tracing.New("navhost", logger.Component("tracing"))

	onStateChange := func(name string, from, to resilience.State) {
		logger.Warn("circuit breaker state changed",
			zap.String("breaker", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}

	// Renderer: resty client behind its own breaker, headless processes on top
	clientOpts := httpclient.OptionsFrom(cfg.Renderer)
	clientOpts.Logger = logger.Component("http")
	clientOpts.Breaker = resilience.New("http-renderer", resilience.Settings{
		MaxRequests:   3,
		Timeout:       30 * time.Second,
		ReadyToTrip:   resilience.ConsecutiveFailures(5),
		OnStateChange: onStateChange,
	})
	httpClient := httpclient.NewClient(clientOpts)

	factory := headless.NewFactory(headless.Options{
		Fetcher:       httpClient,
		MaxBody:       cfg.Renderer.MaxBody,
		FollowRefresh: cfg.Renderer.FollowRefresh,
		Logger:        logger.Component("headless"),
	})

	sessionBreaker := resilience.New("session-factory", resilience.Settings{
		Timeout:       cfg.Session.BreakerTimeout,
		ReadyToTrip:   resilience.ConsecutiveFailures(cfg.Session.BreakerFailures),
		OnStateChange: onStateChange,
	})

	hub := ws.NewHub(metrics, logger.Component("ws"))
	manager := browser.NewManager(browser.Config{
		Processes: factory,
		Views:     factory,
		Delegate: window.MultiDelegate{
			newLogDelegate(logger.Component("delegate")),
			hub,
		},
		DefaultBounds: render.Rect{Width: cfg.Window.Width, Height: cfg.Window.Height},
		Breaker:       sessionBreaker,
		Metrics:       metrics,
		Logger:        logger.Component("browser"),
	})

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
			zap.Bool("global", cfg.RateLimit.Global),
		)
		limit := middleware.RateLimitFrom(cfg.RateLimit)
		if cfg.RateLimit.Global {
			router.Use(middleware.GlobalRateLimit(limit))
		} else {
			router.Use(middleware.RateLimit(limit))
		}
	}

	handlers := api.NewHandlers(api.Options{
		Browser:  manager,
		Breakers: []*resilience.Breaker{sessionBreaker, httpClient.Breaker},
		Metrics:  metrics,
		Logger:   logger.Component("api"),
		Version:  Version,
	})
	handlers.Register(router)

	router.GET("/stream", hub.HandleConnection)
	router.GET("/metrics", monitoring.Handler(metrics))

	logger.Info("Server initialized successfully")

	return &Server{
		router: router,
		http: &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		browser: manager,
		factory: factory,
		hub:     hub,
		tracer:  tracer,
		logger:  logger,
	}, nil
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	return s.router
}

// Browser returns the window manager.
func (s *Server) Browser() *browser.Manager {
	return s.browser
}

// Run starts the HTTP server and blocks until it stops. A server stopped by
// Close returns nil.
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Close stops accepting requests, destroys every window and releases the
// renderer processes.
func (s *Server) Close(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var errs []error
	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to stop HTTP server", zap.Error(err))
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}

	s.hub.Close()
	if err := s.browser.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to close windows", zap.Error(err))
		errs = append(errs, fmt.Errorf("browser shutdown: %w", err))
	}
	s.factory.Close()
	s.tracer.Close()

	// Sync logger before exit
	_ = s.logger.Sync()

	return errors.Join(errs...)
}
