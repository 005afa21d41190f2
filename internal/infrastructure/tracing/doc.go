/*
Package tracing provides lightweight request tracing.

Spans carry prefixed ULID trace and span ids (see internal/shared/id) and are
logged through zap by a background collector when they finish. Trace context
travels in the X-Trace-ID and X-Span-ID headers: inbound on API requests,
outbound on image fetches.

# Usage

	tracer := tracing.New("artwork", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "fetch")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()
	tracing.Inject(ctx, req.Header)
*/
package tracing
