/*
Package monitoring provides metrics collection for the artwork service.

# Overview

Metrics are registered on a per-instance Prometheus registry and exposed
through Handler. The JSON health endpoint reads a Snapshot of the same
counters.

# Features

- HTTP request metrics (latency, status, response size)
- Correlation metrics (issued, skipped, resolved, stale completions)
- Outbound fetch metrics (duration by outcome, body size, breaker state)
- Session and WebSocket gauges

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	manager := media.NewManager(114, 256).WithObserver(monitoring.NewObserver(metrics))

	timer := monitoring.NewTimer(metrics)
	// ... fetch ...
	timer.Stop("ok", n)
*/
package monitoring
