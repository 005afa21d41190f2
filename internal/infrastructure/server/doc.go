// Package server assembles the artwork service: fetch client, image
// fetcher, artwork service, gin router with middleware, REST and WebSocket
// handlers.
package server
