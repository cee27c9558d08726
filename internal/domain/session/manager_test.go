package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/GriffinCanCode/navhost/internal/domain/navigation"
	"github.com/GriffinCanCode/navhost/internal/domain/render"
	"github.com/GriffinCanCode/navhost/internal/domain/render/rendertest"
	"github.com/GriffinCanCode/navhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/navhost/internal/infrastructure/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type switchEvent struct {
	kind string
	old  *render.Session
	next *render.Session
}

type recordingObserver struct {
	events []switchEvent
}

func (o *recordingObserver) SessionSwitched(old, next *render.Session) {
	o.events = append(o.events, switchEvent{kind: "switched", old: old, next: next})
}

func (o *recordingObserver) SwapCompleted(old *render.Session) {
	// old must already be closed
	o.events = append(o.events, switchEvent{kind: "completed", old: old})
}

type fixture struct {
	factory  *rendertest.Factory
	observer *recordingObserver
	metrics  *monitoring.Metrics
	manager  *Manager
}

func newFixture(t *testing.T, opts ...func(*Config)) *fixture {
	t.Helper()

	f := &fixture{
		factory:  rendertest.NewFactory(),
		observer: &recordingObserver{},
		metrics:  monitoring.NewMetrics(),
	}
	cfg := Config{
		Processes: f.factory,
		Views:     f.factory,
		Observer:  f.observer,
		Metrics:   f.metrics,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	f.manager = NewManager(cfg)
	return f
}

func entry(t *testing.T, raw string) *navigation.Entry {
	t.Helper()
	e, err := navigation.NewEntry(raw, "", navigation.TransitionTyped, nil)
	require.NoError(t, err)
	return e
}

func (f *fixture) navigate(t *testing.T, raw string) *render.Session {
	t.Helper()
	s, err := f.manager.Navigate(context.Background(), entry(t, raw))
	require.NoError(t, err)
	require.NotNil(t, s)
	return s
}

func TestFirstNavigationCreatesCurrent(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, StateNoSession, f.manager.State())

	s := f.navigate(t, "http://a/")

	assert.Same(t, s, f.manager.Current())
	assert.Nil(t, f.manager.Pending())
	assert.Equal(t, StateSingleSession, f.manager.State())
	require.Len(t, f.observer.events, 1)
	assert.Equal(t, switchEvent{kind: "switched", old: nil, next: s}, f.observer.events[0])
	assert.True(t, f.manager.Owns(s.ID()))
	assert.Equal(t, int64(1), f.metrics.Snapshot().LiveSessions)
}

func TestSameSiteReusesCurrent(t *testing.T) {
	f := newFixture(t)

	a := f.navigate(t, "http://www.example.com/one")
	b := f.navigate(t, "https://example.com/two")
	c := f.navigate(t, "http://docs.example.com/three")

	assert.Same(t, a, c)
	assert.NotSame(t, a, b, "scheme is part of the site")
}

func TestCrossSiteSwap(t *testing.T) {
	f := newFixture(t)

	a := f.navigate(t, "http://a/")
	b := f.navigate(t, "http://b/")

	require.Equal(t, StateSwapPending, f.manager.State())
	assert.Same(t, a, f.manager.Current())
	assert.Same(t, b, f.manager.Pending())
	assert.True(t, f.manager.IsPending(b.ID()))

	require.True(t, f.manager.DidCommit(b))

	assert.Same(t, b, f.manager.Current())
	assert.Nil(t, f.manager.Pending())
	assert.True(t, a.IsClosed())
	assert.Equal(t, StateSingleSession, f.manager.State())
	assert.Equal(t, []switchEvent{
		{kind: "switched", next: a},
		{kind: "switched", old: a, next: b},
		{kind: "completed", old: a},
	}, f.observer.events)
	assert.Equal(t, int64(1), f.metrics.Snapshot().Swaps)
	assert.Equal(t, int64(1), f.metrics.Snapshot().LiveSessions)
}

func TestCurrentNeverNilDuringSwap(t *testing.T) {
	f := newFixture(t)
	f.navigate(t, "http://a/")
	b := f.navigate(t, "http://b/")

	obs := &nilCheckObserver{t: t, manager: f.manager}
	f.manager.observer = obs

	f.manager.DidCommit(b)
	assert.Equal(t, 2, obs.calls)
}

type nilCheckObserver struct {
	t       *testing.T
	manager *Manager
	calls   int
}

func (o *nilCheckObserver) SessionSwitched(old, next *render.Session) {
	o.calls++
	assert.NotNil(o.t, o.manager.Current())
	assert.False(o.t, old.IsClosed(), "old session must outlive the switch")
}

func (o *nilCheckObserver) SwapCompleted(old *render.Session) {
	o.calls++
	assert.NotNil(o.t, o.manager.Current())
	assert.True(o.t, old.IsClosed())
}

func TestNavigateBackToCurrentSiteAbandonsPending(t *testing.T) {
	f := newFixture(t)
	a := f.navigate(t, "http://a/")
	b := f.navigate(t, "http://b/")

	again := f.navigate(t, "http://a/other")

	assert.Same(t, a, again)
	assert.Nil(t, f.manager.Pending())
	assert.True(t, b.IsClosed())
	assert.False(t, f.manager.DidCommit(b), "abandoned session commit is ignored")
	assert.Same(t, a, f.manager.Current())
}

func TestNavigateToPendingSiteReusesPending(t *testing.T) {
	f := newFixture(t)
	f.navigate(t, "http://a/")
	b := f.navigate(t, "http://b/")

	assert.Same(t, b, f.navigate(t, "http://b/again"))
	assert.Len(t, f.factory.Processes(), 2)
}

func TestThirdSiteReplacesPendingOnlyOnSuccess(t *testing.T) {
	f := newFixture(t)
	f.navigate(t, "http://a/")
	b := f.navigate(t, "http://b/")

	f.factory.FailSpawn(errors.New("boom"))
	_, err := f.manager.Navigate(context.Background(), entry(t, "http://c/"))
	require.ErrorIs(t, err, ErrSessionCreationFailed)
	assert.Same(t, b, f.manager.Pending(), "pending kept after failed replacement")
	assert.False(t, b.IsClosed())

	f.factory.FailSpawn(nil)
	c := f.navigate(t, "http://c/")
	assert.Same(t, c, f.manager.Pending())
	assert.True(t, b.IsClosed())
}

func TestSessionCreationFailureLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	f.factory.FailSpawn(errors.New("no processes"))

	s, err := f.manager.Navigate(context.Background(), entry(t, "http://a/"))
	assert.Nil(t, s)
	assert.ErrorIs(t, err, ErrSessionCreationFailed)
	assert.Equal(t, StateNoSession, f.manager.State())
	assert.Empty(t, f.observer.events)
}

func TestViewCreationFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	a := f.navigate(t, "http://a/")

	f.factory.FailViews(errors.New("no surface"))
	s, err := f.manager.Navigate(context.Background(), entry(t, "http://b/"))

	assert.Nil(t, s)
	assert.ErrorIs(t, err, ErrViewCreationFailed)
	assert.Same(t, a, f.manager.Current())
	assert.Nil(t, f.manager.Pending())
	assert.Equal(t, StateSingleSession, f.manager.State())
	assert.True(t, f.factory.Last().Closed())
	assert.Equal(t, int64(1), f.metrics.Snapshot().LiveSessions)
}

func TestViewHostIsConsulted(t *testing.T) {
	host := &stubHost{ok: false}
	f := newFixture(t, func(c *Config) { c.Host = host })

	_, err := f.manager.Navigate(context.Background(), entry(t, "http://a/"))
	assert.ErrorIs(t, err, ErrViewCreationFailed)
	assert.Equal(t, 1, host.calls)
	assert.Equal(t, StateNoSession, f.manager.State())
}

type stubHost struct {
	ok    bool
	calls int
}

func (h *stubHost) CreateRenderView(s *render.Session) bool {
	h.calls++
	return h.ok && s.CreateView(render.Size{Width: 1, Height: 1})
}

func TestBreakerOpenMeansFactoryUnavailable(t *testing.T) {
	breaker := resilience.New("spawn", resilience.Settings{
		Timeout:     time.Hour,
		ReadyToTrip: resilience.ConsecutiveFailures(2),
	})
	f := newFixture(t, func(c *Config) { c.Breaker = breaker })
	f.factory.FailSpawn(errors.New("exhausted"))

	for i := 0; i < 2; i++ {
		_, err := f.manager.Navigate(context.Background(), entry(t, "http://a/"))
		require.ErrorIs(t, err, ErrSessionCreationFailed)
	}

	_, err := f.manager.Navigate(context.Background(), entry(t, "http://a/"))
	assert.ErrorIs(t, err, ErrFactoryUnavailable)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Len(t, f.factory.Requests(), 2, "open breaker does not reach the factory")
}

func TestRendererGone(t *testing.T) {
	t.Run("current crash", func(t *testing.T) {
		f := newFixture(t)
		a := f.navigate(t, "http://a/")

		assert.True(t, f.manager.RendererGone(a))
		assert.Equal(t, StateCrashed, f.manager.State())
		assert.Same(t, a, f.manager.Current(), "no auto recreation")
		assert.False(t, a.IsLive())
		assert.Equal(t, int64(1), f.metrics.Snapshot().Crashes)
	})

	t.Run("pending crash is silent", func(t *testing.T) {
		f := newFixture(t)
		a := f.navigate(t, "http://a/")
		b := f.navigate(t, "http://b/")

		assert.False(t, f.manager.RendererGone(b))
		assert.Nil(t, f.manager.Pending())
		assert.Same(t, a, f.manager.Current())
		assert.Equal(t, StateSingleSession, f.manager.State())
	})

	t.Run("stale crash is ignored", func(t *testing.T) {
		f := newFixture(t)
		f.navigate(t, "http://a/")
		b := f.navigate(t, "http://b/")
		f.navigate(t, "http://a/")

		assert.False(t, f.manager.RendererGone(b))
		assert.Equal(t, StateSingleSession, f.manager.State())
	})
}

func TestNavigateAfterCrashReplacesCurrent(t *testing.T) {
	f := newFixture(t)
	a := f.navigate(t, "http://a/")
	f.manager.RendererGone(a)

	next := f.navigate(t, "http://a/")

	assert.NotSame(t, a, next)
	assert.Same(t, next, f.manager.Current())
	assert.True(t, a.IsClosed())
	assert.Equal(t, StateSingleSession, f.manager.State())
	assert.Equal(t, []switchEvent{
		{kind: "switched", next: a},
		{kind: "switched", old: a, next: next},
		{kind: "completed", old: a},
	}, f.observer.events)
}

func TestCommitFromCurrentDropsPending(t *testing.T) {
	f := newFixture(t)
	a := f.navigate(t, "http://a/")
	b := f.navigate(t, "http://b/")

	assert.True(t, f.manager.DidCommit(a))
	assert.Nil(t, f.manager.Pending())
	assert.True(t, b.IsClosed())
	assert.False(t, f.manager.DidCommit(nil))
}

func TestRendererAbortedProvisionalLoad(t *testing.T) {
	f := newFixture(t)
	a := f.navigate(t, "http://a/")
	b := f.navigate(t, "http://b/")

	f.manager.RendererAbortedProvisionalLoad(a)
	assert.Same(t, b, f.manager.Pending(), "current abort keeps pending")

	f.manager.RendererAbortedProvisionalLoad(b)
	assert.Nil(t, f.manager.Pending())
}

func TestCancelPending(t *testing.T) {
	f := newFixture(t)
	a := f.navigate(t, "http://a/")
	b := f.navigate(t, "http://b/")

	f.manager.CancelPending(a)
	assert.Same(t, a, f.manager.Current())

	f.manager.CancelPending(b)
	assert.Nil(t, f.manager.Pending())
	assert.True(t, b.IsClosed())
}

func TestResize(t *testing.T) {
	f := newFixture(t)
	assert.NotPanics(t, func() { f.manager.Resize(render.Size{Width: 10, Height: 10}) })

	f.navigate(t, "http://a/")
	f.navigate(t, "http://b/")
	size := render.Size{Width: 640, Height: 480}
	f.manager.Resize(size)

	for _, p := range f.factory.Processes() {
		assert.Equal(t, size, f.factory.ViewOf(p).Size())
	}
}

func TestLookupAndShutdown(t *testing.T) {
	f := newFixture(t)
	a := f.navigate(t, "http://a/")
	b := f.navigate(t, "http://b/")

	got, ok := f.manager.Lookup(b.ID())
	assert.True(t, ok)
	assert.Same(t, b, got)

	f.manager.SetIsLoading(true)
	f.manager.Shutdown()

	assert.True(t, a.IsClosed())
	assert.True(t, b.IsClosed())
	assert.False(t, f.manager.IsLoading())
	assert.Equal(t, StateNoSession, f.manager.State())
	_, ok = f.manager.Lookup(a.ID())
	assert.False(t, ok)
	assert.Equal(t, int64(0), f.metrics.Snapshot().LiveSessions)
}
