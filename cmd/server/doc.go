// Package main is the entry point for the navhost server.
//
// navhost hosts browser windows whose pages are loaded by headless renderer
// processes. Each window keeps its navigation entries and its renderer
// sessions; cross-site navigations swap to a fresh renderer.
//
// Architecture:
//
//	HTTP/WebSocket clients → navhost API → browser loop → headless renderers
//	                                                    → remote sites / file:
//
// The server provides:
//   - REST API for windows (create, navigate, reload, resize, close, kill)
//   - WebSocket stream of window notifications
//   - Prometheus metrics
//
// Configuration:
//   - Environment variables (12-factor)
//   - YAML file via --config (replaces the environment)
//   - CLI flags (override both)
//
// Usage:
//
//	# Production mode
//	./server --port 8000 --width 1280 --height 720
//
//	# Development mode (colored logs, debug level)
//	./server --dev --log-level debug
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
