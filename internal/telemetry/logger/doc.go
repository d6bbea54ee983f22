// Package logger provides structured logging for webhost.
//
// It wraps log/slog:
//
//   - logger.go: handler construction, level control, rotated file sink
//   - context.go: request-scoped loggers and request IDs
//   - redact.go: sensitive attribute redaction
//
// The file sink is rotated by lumberjack; console output always goes to
// the configured writer (stderr by default).
package logger
