// Package config provides 12-factor configuration for navhost.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags in cmd/server override the environment.
//
// Configuration Sections:
//   - Server: HTTP control surface (port, host)
//   - Window: default container bounds for new windows
//   - Renderer: headless renderer fetch settings
//   - Session: circuit breaker guarding the session factory
//   - Logging: log level and output format
//   - RateLimit: per-IP API rate limiting
//
// Environment Variables:
//   - PORT, HOST, WINDOW_WIDTH, WINDOW_HEIGHT
//   - RENDERER_USER_AGENT, RENDERER_TIMEOUT, RENDERER_MAX_RETRIES, RENDERER_RPS, RENDERER_MAX_BODY
//   - SESSION_BREAKER_FAILURES, SESSION_BREAKER_TIMEOUT
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED, RATE_LIMIT_GLOBAL
package config
