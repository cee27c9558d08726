// Package http exposes the browser over a JSON REST API.
//
// Endpoints:
//   - Health: /health, /metrics/json
//   - Windows: GET/POST /windows, GET/DELETE /windows/:id
//   - Commands: /windows/:id/navigate, reload, resize, close, kill
//
// Every handler runs its window work on the browser loop through
// browser.Manager.Do or WithWindow. Navigations are accepted with 202;
// their progress is reported on the notification stream.
//
// Example Usage:
//
//	handlers := http.NewHandlers(http.Options{Browser: manager, Metrics: metrics})
//	handlers.Register(router)
package http
