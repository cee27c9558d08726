// Package ws streams window notifications to WebSocket clients.
//
// Hub implements window.Delegate. Each callback becomes a JSON frame
// (encoded with sonic) queued to every interested client; a client whose
// queue is full loses the frame rather than stalling the browser loop.
//
// Message Types (Client → Server):
//   - ping: Keep-alive ping
//   - subscribe: Only receive frames of window_id; an empty id means all
//
// Message Types (Server → Client):
//   - system: connected / subscribed acknowledgements
//   - start_loading, address_bar_changed, load, crashed,
//     created_window, before_unload, cancel_unload: window notifications
//   - pong: Reply to ping
//   - error: Malformed or unknown message
//
// Example Usage:
//
//	hub := ws.NewHub(metrics, logger)
//	router.GET("/stream", hub.HandleConnection)
package ws
