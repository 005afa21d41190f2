// Package client is the outbound HTTP client used to fetch images and pages.
//
// Built on go-resty/resty over a go-retryablehttp transport:
//   - Retries with exponential backoff on transport errors, 429 and 5xx
//   - Host allow-list of doublestar patterns, enforced on redirects too
//   - Process-wide rate limit (golang.org/x/time/rate)
//   - Circuit breaker that trips on transport failures and 5xx statuses
//   - Bounded body reads
//
// Non-2xx responses are returned as values, not errors, so callers can
// report the status they saw.
//
// Example Usage:
//
//	c, err := client.New(client.DefaultConfig(), client.WithLogger(logger))
//	resp, err := c.Get(ctx, "https://example.com/icon.png", nil)
package client
