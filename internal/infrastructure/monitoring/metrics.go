package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. All Record/Inc/Set methods are safe
// to call on a nil *Metrics so that components can run without monitoring.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Navigation metrics
	Navigations     *prometheus.CounterVec
	Redirects       prometheus.Counter
	LoadsFailed     prometheus.Counter
	StaleEvents     *prometheus.CounterVec
	Notifications   *prometheus.CounterVec
	NavigationTimes prometheus.Histogram

	// Session metrics
	SessionsActive prometheus.Gauge
	SessionSpawns  *prometheus.CounterVec
	SpawnDuration  prometheus.Histogram
	Swaps          prometheus.Counter
	Crashes        prometheus.Counter

	// Window metrics
	WindowsActive prometheus.Gauge

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	registry *prometheus.Registry

	mu       sync.Mutex
	snapshot Snapshot
}

// Snapshot holds current counter values for the JSON API and tests.
type Snapshot struct {
	Navigations   int64 `json:"navigations"`
	Swaps         int64 `json:"swaps"`
	Crashes       int64 `json:"crashes"`
	StaleEvents   int64 `json:"stale_events"`
	ActiveWindows int64 `json:"active_windows"`
	LiveSessions  int64 `json:"live_sessions"`
}

// NewMetrics creates a collector registered on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := NewMetricsWith(reg)
	m.registry = reg
	return m
}

// NewMetricsWith creates a collector registered on reg.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "navhost_http_requests_total",
				Help: "Total number of control API requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "navhost_http_request_duration_seconds",
				Help:    "Control API request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),

		Navigations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "navhost_navigations_total",
				Help: "Navigation requests by result",
			},
			[]string{"result"},
		),
		Redirects: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "navhost_provisional_redirects_total",
				Help: "Redirects applied to provisional entries",
			},
		),
		LoadsFailed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "navhost_provisional_loads_failed_total",
				Help: "Provisional loads that failed in the renderer",
			},
		),
		StaleEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "navhost_stale_events_total",
				Help: "Renderer events dropped because they referenced a superseded session or entry",
			},
			[]string{"kind"},
		),
		Notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "navhost_delegate_notifications_total",
				Help: "Delegate notifications delivered by kind",
			},
			[]string{"kind"},
		),
		NavigationTimes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "navhost_navigation_commit_seconds",
				Help:    "Time from navigation request to commit",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),

		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "navhost_sessions_active",
				Help: "Renderer sessions currently alive",
			},
		),
		SessionSpawns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "navhost_session_spawns_total",
				Help: "Renderer session creation attempts by result",
			},
			[]string{"result"},
		),
		SpawnDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "navhost_session_spawn_seconds",
				Help:    "Renderer session creation duration",
				Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
			},
		),
		Swaps: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "navhost_session_swaps_total",
				Help: "Completed cross-site session swaps",
			},
		),
		Crashes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "navhost_renderer_crashes_total",
				Help: "Crashes of current renderer sessions",
			},
		),

		WindowsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "navhost_windows_active",
				Help: "Open windows",
			},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "navhost_ws_connections",
				Help: "Connected notification stream clients",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "navhost_ws_messages_total",
				Help: "Notification stream messages",
			},
			[]string{"direction", "type"},
		),
	}
}

// Registry returns the private registry created by NewMetrics, or nil when
// the collector was registered elsewhere.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordHTTPRequest records a control API request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordNavigation counts a navigation request outcome ("accepted",
// "invalid_url", "session_failed", "view_failed", "rejected", "unavailable").
func (m *Metrics) RecordNavigation(result string) {
	if m == nil {
		return
	}
	m.Navigations.WithLabelValues(result).Inc()
	if result == "accepted" {
		m.mu.Lock()
		m.snapshot.Navigations++
		m.mu.Unlock()
	}
}

// ObserveCommit records the time a navigation took to commit.
func (m *Metrics) ObserveCommit(d time.Duration) {
	if m == nil {
		return
	}
	m.NavigationTimes.Observe(d.Seconds())
}

// IncRedirects counts an applied provisional redirect.
func (m *Metrics) IncRedirects() {
	if m == nil {
		return
	}
	m.Redirects.Inc()
}

// IncLoadsFailed counts a failed provisional load.
func (m *Metrics) IncLoadsFailed() {
	if m == nil {
		return
	}
	m.LoadsFailed.Inc()
}

// RecordStaleEvent counts a renderer event dropped as stale.
func (m *Metrics) RecordStaleEvent(kind string) {
	if m == nil {
		return
	}
	m.StaleEvents.WithLabelValues(kind).Inc()
	m.mu.Lock()
	m.snapshot.StaleEvents++
	m.mu.Unlock()
}

// RecordNotification counts a delivered delegate notification.
func (m *Metrics) RecordNotification(kind string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(kind).Inc()
}

// RecordSpawn records a session creation attempt.
func (m *Metrics) RecordSpawn(success bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.SessionSpawns.WithLabelValues(result).Inc()
	m.SpawnDuration.Observe(d.Seconds())
}

// SessionOpened increments the live session gauge.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.SessionsActive.Inc()
	m.mu.Lock()
	m.snapshot.LiveSessions++
	m.mu.Unlock()
}

// SessionClosed decrements the live session gauge.
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
	m.mu.Lock()
	m.snapshot.LiveSessions--
	m.mu.Unlock()
}

// IncSwaps counts a completed session swap.
func (m *Metrics) IncSwaps() {
	if m == nil {
		return
	}
	m.Swaps.Inc()
	m.mu.Lock()
	m.snapshot.Swaps++
	m.mu.Unlock()
}

// IncCrashes counts a crash of a current session.
func (m *Metrics) IncCrashes() {
	if m == nil {
		return
	}
	m.Crashes.Inc()
	m.mu.Lock()
	m.snapshot.Crashes++
	m.mu.Unlock()
}

// SetWindowsActive sets the number of open windows.
func (m *Metrics) SetWindowsActive(count int) {
	if m == nil {
		return
	}
	m.WindowsActive.Set(float64(count))
	m.mu.Lock()
	m.snapshot.ActiveWindows = int64(count)
	m.mu.Unlock()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// Snapshot returns a point-in-time copy of the tracked counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}
