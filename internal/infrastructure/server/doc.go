// Package server wires navhost together.
//
// Server Lifecycle:
//  1. Validate configuration
//  2. Build the logger, metrics and tracer
//  3. Create the renderer HTTP client and the headless process factory
//  4. Create the browser with the session breaker and the delegate fan-out
//     (log + WebSocket hub)
//  5. Setup HTTP routes and middleware
//  6. Start HTTP server
//  7. Graceful shutdown: stop HTTP, destroy windows, kill renderers
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.NewServer(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go srv.Run()
//	defer srv.Close(context.Background())
package server
