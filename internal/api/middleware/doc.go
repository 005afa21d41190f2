// Package middleware provides gin middleware for the artwork API: CORS and
// per-client rate limiting.
package middleware
