/*
Package tracing provides lightweight request tracing for the HTTP surface.

Each API request gets a span. Spans carry the trace id from the incoming
X-Trace-ID header (or a fresh one) and are logged through zap by a buffered
collector goroutine.

	tracer := tracing.New("navhost", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

Handlers that fan out to the renderer can open child spans:

	span, ctx := tracer.StartSpan(c.Request.Context(), "navigate")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()
*/
package tracing
