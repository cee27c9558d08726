package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/GriffinCanCode/navhost/internal/domain/browser"
	"github.com/GriffinCanCode/navhost/internal/domain/navigation"
	"github.com/GriffinCanCode/navhost/internal/domain/render"
	"github.com/GriffinCanCode/navhost/internal/domain/render/rendertest"
	"github.com/GriffinCanCode/navhost/internal/domain/session"
	"github.com/GriffinCanCode/navhost/internal/domain/window"
	"github.com/GriffinCanCode/navhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/navhost/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/navhost/internal/shared/id"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testAPI struct {
	router  *gin.Engine
	factory *rendertest.Factory
	browser *browser.Manager
}

type windowResponse struct {
	Success   bool            `json:"success"`
	Window    window.Snapshot `json:"window"`
	Navigated bool            `json:"navigated"`
	Error     string          `json:"error"`
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	factory := rendertest.NewFactory()
	m := browser.NewManager(browser.Config{
		Processes:     factory,
		Views:         factory,
		DefaultBounds: render.Rect{Width: 800, Height: 600},
	})
	t.Cleanup(func() { m.Shutdown(context.Background()) })

	h := NewHandlers(Options{
		Browser:  m,
		Breakers: []*resilience.Breaker{resilience.New("session-factory", resilience.Settings{})},
		Metrics:  monitoring.NewMetrics(),
		Version:  "test",
	})
	router := gin.New()
	h.Register(router)

	return &testAPI{router: router, factory: factory, browser: m}
}

func (a *testAPI) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &v))
	return v
}

// create opens a window, navigated to url unless url is empty.
func (a *testAPI) create(t *testing.T, url string) window.Snapshot {
	t.Helper()
	body := ""
	if url != "" {
		body = fmt.Sprintf(`{"url":%q}`, url)
	}
	w := a.do(http.MethodPost, "/windows", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[windowResponse](t, w).Window
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	api.create(t, "")

	w := api.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[map[string]any](t, w)
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, "test", resp["version"])
	assert.Equal(t, float64(1), resp["windows"])
	assert.Equal(t, map[string]any{"session-factory": "closed"}, resp["breakers"])
}

func TestMetricsJSON(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(http.MethodGet, "/metrics/json", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"navigations"`)
}

func TestCreateWindow(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		wantStatus    int
		wantNavigated bool
		wantURL       string
		wantBounds    render.Rect
		wantError     string
	}{
		{
			name:       "empty body uses default bounds",
			wantStatus: http.StatusCreated,
			wantBounds: render.Rect{Width: 800, Height: 600},
		},
		{
			name:          "with url",
			body:          `{"url":"http://a.test/","width":300,"height":200,"x":5}`,
			wantStatus:    http.StatusCreated,
			wantNavigated: true,
			wantURL:       "http://a.test/",
			wantBounds:    render.Rect{X: 5, Width: 300, Height: 200},
		},
		{
			name:       "invalid url still creates the window",
			body:       `{"url":"not a url"}`,
			wantStatus: http.StatusCreated,
			wantBounds: render.Rect{Width: 800, Height: 600},
			wantError:  "invalid url",
		},
		{
			name:       "negative size",
			body:       `{"width":-1}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed body",
			body:       `{"url":`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t)
			w := api.do(http.MethodPost, "/windows", tt.body)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus != http.StatusCreated {
				assert.Zero(t, api.browser.Count())
				return
			}

			resp := decode[windowResponse](t, w)
			assert.True(t, resp.Success)
			assert.Equal(t, tt.wantNavigated, resp.Navigated)
			assert.Equal(t, tt.wantURL, resp.Window.URL)
			assert.Equal(t, tt.wantBounds, resp.Window.Bounds)
			assert.Contains(t, resp.Error, tt.wantError)
			assert.True(t, id.Valid(resp.Window.ID))
			assert.Equal(t, 1, api.browser.Count())
		})
	}
}

func TestGetAndListWindows(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodGet, "/windows", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"windows":[],"count":0}`, w.Body.String())

	first := api.create(t, "http://a.test/")
	second := api.create(t, "")

	w = api.do(http.MethodGet, "/windows", "")
	list := decode[struct {
		Windows []window.Snapshot `json:"windows"`
		Count   int               `json:"count"`
	}](t, w)
	require.Equal(t, 2, list.Count)
	assert.Equal(t, first.ID, list.Windows[0].ID)
	assert.Equal(t, second.ID, list.Windows[1].ID)

	w = api.do(http.MethodGet, "/windows/"+first.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	snap := decode[windowResponse](t, w).Window
	assert.Equal(t, "http://a.test/", snap.URL)
	assert.False(t, snap.Committed)

	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/windows/"+id.NewWindowID().String(), "").Code)
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/windows/bogus", "").Code)
}

func TestNavigate(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(api *testAPI)
		body       string
		wantStatus int
	}{
		{name: "accepted", body: `{"url":"http://a.test/next"}`, wantStatus: http.StatusAccepted},
		{name: "missing url", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "invalid url", body: `{"url":"relative/path"}`, wantStatus: http.StatusBadRequest},
		{
			name:       "spawn failure",
			setup:      func(api *testAPI) { api.factory.FailSpawn(errors.New("no renderer binary")) },
			body:       `{"url":"http://b.test/"}`,
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "refused by renderer",
			setup:      func(api *testAPI) { api.factory.Last().RefuseNavigation(render.ErrProcessGone) },
			body:       `{"url":"http://a.test/again"}`,
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t)
			snap := api.create(t, "http://a.test/")
			if tt.setup != nil {
				tt.setup(api)
			}

			w := api.do(http.MethodPost, "/windows/"+snap.ID+"/navigate", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}

	t.Run("unknown window", func(t *testing.T) {
		api := newTestAPI(t)
		w := api.do(http.MethodPost, "/windows/"+id.NewWindowID().String()+"/navigate", `{"url":"http://a.test/"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestReload(t *testing.T) {
	api := newTestAPI(t)

	blank := api.create(t, "")
	assert.Equal(t, http.StatusConflict, api.do(http.MethodPost, "/windows/"+blank.ID+"/reload", "").Code)

	snap := api.create(t, "http://a.test/")
	w := api.do(http.MethodPost, "/windows/"+snap.ID+"/reload", "")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	last, ok := api.factory.Last().LastNavigation()
	require.True(t, ok)
	assert.Equal(t, navigation.TransitionReload, last.Transition)
}

func TestResize(t *testing.T) {
	api := newTestAPI(t)
	snap := api.create(t, "http://a.test/")

	w := api.do(http.MethodPost, "/windows/"+snap.ID+"/resize", `{"width":640,"height":480}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, render.Rect{Width: 640, Height: 480}, decode[windowResponse](t, w).Window.Bounds)
	assert.Equal(t, render.Size{Width: 640, Height: 480}, api.factory.ViewOf(api.factory.Last()).Size())

	w = api.do(http.MethodPost, "/windows/"+snap.ID+"/resize", `{"width":-5,"height":480}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClose(t *testing.T) {
	t.Run("without renderer closes at once", func(t *testing.T) {
		api := newTestAPI(t)
		snap := api.create(t, "")

		w := api.do(http.MethodPost, "/windows/"+snap.ID+"/close", "")
		require.Equal(t, http.StatusAccepted, w.Code)
		assert.True(t, decode[windowResponse](t, w).Window.Closed)
		assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/windows/"+snap.ID, "").Code)
	})

	t.Run("with renderer asks the page", func(t *testing.T) {
		api := newTestAPI(t)
		snap := api.create(t, "http://a.test/")

		w := api.do(http.MethodPost, "/windows/"+snap.ID+"/close", "")
		require.Equal(t, http.StatusAccepted, w.Code)
		assert.False(t, decode[windowResponse](t, w).Window.Closed)
		assert.Equal(t, 1, api.factory.Last().BeforeUnloads())
		assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/windows/"+snap.ID, "").Code)
	})
}

func TestKill(t *testing.T) {
	api := newTestAPI(t)

	blank := api.create(t, "")
	assert.Equal(t, http.StatusConflict, api.do(http.MethodPost, "/windows/"+blank.ID+"/kill", "").Code)

	snap := api.create(t, "http://a.test/")
	w := api.do(http.MethodPost, "/windows/"+snap.ID+"/kill", "")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.False(t, api.factory.Last().Alive())

	assert.Equal(t, http.StatusConflict, api.do(http.MethodPost, "/windows/"+snap.ID+"/kill", "").Code)
}

func TestDestroyWindow(t *testing.T) {
	api := newTestAPI(t)
	snap := api.create(t, "http://a.test/")
	process := api.factory.Last()

	w := api.do(http.MethodDelete, "/windows/"+snap.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, process.Closed())
	assert.Zero(t, api.browser.Count())

	assert.Equal(t, http.StatusNotFound, api.do(http.MethodDelete, "/windows/"+snap.ID, "").Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", browser.ErrWindowNotFound), http.StatusNotFound},
		{fmt.Errorf("x: %w", navigation.ErrInvalidURL), http.StatusBadRequest},
		{window.ErrClosed, http.StatusConflict},
		{fmt.Errorf("x: %w", errConflict), http.StatusConflict},
		{fmt.Errorf("x: %w", session.ErrFactoryUnavailable), http.StatusServiceUnavailable},
		{browser.ErrLoopStopped, http.StatusServiceUnavailable},
		{fmt.Errorf("x: %w", window.ErrNavigationRejected), http.StatusBadGateway},
		{fmt.Errorf("x: %w", session.ErrSessionCreationFailed), http.StatusBadGateway},
		{fmt.Errorf("x: %w", session.ErrViewCreationFailed), http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
