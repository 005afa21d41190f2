// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Every entry carries an "instance" field (a UUID chosen at start-up).
// Components get their own named child via Logger.Component.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Server starting", zap.String("port", "8000"))
//	fetchLog := logger.Component("fetch")
package logging
