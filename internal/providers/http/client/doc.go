// Package client is the HTTP client used by the headless renderer to fetch
// documents.
//
// It is built on go-resty/resty with a go-retryablehttp round tripper
// underneath, so transient transport errors and 5xx responses are retried
// before resty sees them. Redirects are followed by resty and recorded per
// fetch, which lets the renderer report each hop as a provisional redirect.
//
// Every request passes a token-bucket limiter and a circuit breaker. Transport
// failures and 5xx responses count against the breaker; while it is open
// requests fail fast with ErrUnavailable.
//
// Example Usage:
//
//	c := client.NewClient(client.OptionsFrom(cfg.Renderer))
//	page, err := c.Fetch(ctx, "https://example.com/", "")
package client
