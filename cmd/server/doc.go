// Package main is the entry point for the artwork server.
//
// The server picks the best artwork among candidate images (favicons,
// touch icons, og:image, album covers) and returns it as PNG.
//
// Architecture:
//
//	Client → REST / WebSocket → artwork.Service → media.Manager (one per session)
//	                                            → imagefetch → remote image hosts
//
// The server provides:
//   - REST API for one-shot artwork and page scraping
//   - WebSocket sessions where a newer request supersedes an older one
//   - Prometheus metrics and a health endpoint
//   - Rate limiting, CORS and gzip
//
// Configuration:
//   - Defaults
//   - YAML or TOML file named by ARTWORK_CONFIG
//   - Environment variables (12-factor)
//   - CLI flags (override everything)
//
// Usage:
//
//	# Production mode
//	./server -port 8000
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
