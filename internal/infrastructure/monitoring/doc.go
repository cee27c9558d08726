/*
Package monitoring provides Prometheus metrics for navhost.

# Overview

Metrics cover the navigation state machine (navigations by result, commits,
redirects, stale renderer events), renderer sessions (spawns, live sessions,
swaps, crashes), open windows, the control API and the notification stream.

# Usage

	metrics := monitoring.NewMetrics() // private registry
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", monitoring.Handler(metrics))

Every recording method is nil-safe, so domain packages accept a nil
*Metrics when monitoring is not wired.
*/
package monitoring
