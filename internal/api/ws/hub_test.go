package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/GriffinCanCode/navhost/internal/domain/window"
	"github.com/GriffinCanCode/navhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/navhost/internal/shared/id"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) (*Hub, string, *monitoring.Metrics) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	metrics := monitoring.NewMetrics()
	hub := NewHub(metrics, nil)
	router := gin.New()
	router.GET("/stream", hub.HandleConnection)

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream", metrics
}

func dial(t *testing.T, url string) (*websocket.Conn, Frame) {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, read(t, conn)
}

func read(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var f Frame
	require.NoError(t, sonic.Unmarshal(data, &f))
	return f
}

func write(t *testing.T, conn *websocket.Conn, msg string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
}

func TestConnectAndDisconnect(t *testing.T) {
	hub, url, metrics := newTestHub(t)

	conn, welcome := dial(t, url)
	assert.Equal(t, FrameSystem, welcome.Type)
	assert.NotEmpty(t, welcome.ClientID)
	assert.Equal(t, "connected", welcome.Message)
	assert.Equal(t, 1, hub.Count())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.WSConnections))

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return testutil.ToFloat64(metrics.WSConnections) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestDelegateCallbacksBecomeFrames(t *testing.T) {
	hub, url, _ := newTestHub(t)
	conn, _ := dial(t, url)

	w := window.New(window.Options{})
	child := window.New(window.Options{})

	tests := []struct {
		name string
		call func()
		want Frame
	}{
		{
			name: "start loading",
			call: func() { hub.OnStartLoading(w, "http://a/") },
			want: Frame{Type: window.NotifyStartLoading, WindowID: w.ID().String(), URL: "http://a/"},
		},
		{
			name: "address bar",
			call: func() { hub.OnAddressBarChanged(w, "http://b/") },
			want: Frame{Type: window.NotifyAddressBarChanged, WindowID: w.ID().String(), URL: "http://b/"},
		},
		{
			name: "load",
			call: func() { hub.OnLoad(w) },
			want: Frame{Type: window.NotifyLoad, WindowID: w.ID().String()},
		},
		{
			name: "crashed",
			call: func() { hub.OnCrashed(w) },
			want: Frame{Type: window.NotifyCrashed, WindowID: w.ID().String()},
		},
		{
			name: "created window",
			call: func() { hub.OnCreatedWindow(w, child) },
			want: Frame{Type: window.NotifyCreatedWindow, WindowID: w.ID().String(), ChildID: child.ID().String()},
		},
		{
			name: "cancel unload",
			call: func() { hub.OnCancelUnload(w) },
			want: Frame{Type: window.NotifyCancelUnload, WindowID: w.ID().String()},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.call()
			got := read(t, conn)
			assert.NotZero(t, got.Timestamp)
			got.Timestamp = 0
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("before unload keeps the answer", func(t *testing.T) {
		assert.False(t, hub.OnBeforeUnload(w, false))
		got := read(t, conn)
		require.NotNil(t, got.Proceed)
		assert.False(t, *got.Proceed)

		assert.True(t, hub.OnBeforeUnload(w, true))
		got = read(t, conn)
		require.NotNil(t, got.Proceed)
		assert.True(t, *got.Proceed)
	})
}

func TestSubscribeFiltersWindows(t *testing.T) {
	hub, url, _ := newTestHub(t)
	conn, _ := dial(t, url)

	a, b := id.NewWindowID(), id.NewWindowID()
	write(t, conn, `{"type":"subscribe","window_id":"`+a.String()+`"}`)
	ack := read(t, conn)
	assert.Equal(t, FrameSystem, ack.Type)
	assert.Equal(t, "subscribed", ack.Message)

	hub.Broadcast(Frame{Type: window.NotifyLoad, WindowID: b.String()})
	hub.Broadcast(Frame{Type: window.NotifyLoad, WindowID: a.String()})

	got := read(t, conn)
	assert.Equal(t, a.String(), got.WindowID)

	write(t, conn, `{"type":"subscribe","window_id":""}`)
	read(t, conn)
	hub.Broadcast(Frame{Type: window.NotifyLoad, WindowID: b.String()})
	assert.Equal(t, b.String(), read(t, conn).WindowID)
}

func TestSubscribeFromQuery(t *testing.T) {
	hub, url, _ := newTestHub(t)
	a, b := id.NewWindowID(), id.NewWindowID()
	conn, _ := dial(t, url+"?window_id="+a.String())

	hub.Broadcast(Frame{Type: window.NotifyCrashed, WindowID: b.String()})
	hub.Broadcast(Frame{Type: window.NotifyCrashed, WindowID: a.String()})
	assert.Equal(t, a.String(), read(t, conn).WindowID)
}

func TestClientMessages(t *testing.T) {
	_, url, metrics := newTestHub(t)
	conn, _ := dial(t, url)

	tests := []struct {
		name     string
		msg      string
		wantType string
		wantMsg  string
	}{
		{name: "ping", msg: `{"type":"ping"}`, wantType: FramePong},
		{name: "unknown type", msg: `{"type":"dance"}`, wantType: FrameError, wantMsg: "unknown message type"},
		{name: "malformed", msg: `{not json`, wantType: FrameError, wantMsg: "malformed message"},
		{name: "invalid window", msg: `{"type":"subscribe","window_id":"nope"}`, wantType: FrameError, wantMsg: "invalid window id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			write(t, conn, tt.msg)
			got := read(t, conn)
			assert.Equal(t, tt.wantType, got.Type)
			assert.Equal(t, tt.wantMsg, got.Message)
		})
	}

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.WSMessages.WithLabelValues("in", "ping")))
	assert.Equal(t, float64(4), testutil.ToFloat64(metrics.WSMessages.WithLabelValues("out", FrameError))+
		testutil.ToFloat64(metrics.WSMessages.WithLabelValues("out", FramePong)))
}

func TestCloseDisconnectsClients(t *testing.T) {
	hub, url, _ := newTestHub(t)
	conn, _ := dial(t, url)

	hub.Close()
	assert.Equal(t, 0, hub.Count())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
