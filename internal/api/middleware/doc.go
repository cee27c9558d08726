// Package middleware provides the HTTP middleware of the control API.
//
// Middleware stack includes:
//   - CORS: Cross-origin resource sharing with configurable origins; the
//     trace headers are allowed and exposed
//   - RateLimit: Per-IP token bucket rate limiting with idle eviction
//   - GlobalRateLimit: One bucket shared by every client
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.RateLimitFrom(cfg.RateLimit)))
package middleware
