package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for consistent structured logging across texsense.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity and context
	FieldRequestID = "request_id"
	FieldComponent = "component"

	// Operations
	FieldOperation = "operation"
	FieldMethod    = "method"

	// Timing
	FieldDurationMS = "duration_ms"

	// Errors
	FieldError = "error"

	// Counts and sizes
	FieldCount = "count"
	FieldSize  = "size"

	// Files and documents
	FieldFile      = "file"
	FieldURI       = "uri"
	FieldLine      = "line"
	FieldCharacter = "character"

	// Network
	FieldAddress = "address"
	FieldRemote  = "remote"

	// Completion
	FieldContextType = "context_type"
	FieldInvokeChar  = "invoke_char"
	FieldPrefix      = "prefix"
	FieldResource    = "resource"
)

type contextKey string

const requestIDKey contextKey = "logger_request_id"

// WithRequestID adds a request ID to the context for logging
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID returns the request ID stored in ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// FromContext returns base annotated with the request ID carried by ctx, if any.
func FromContext(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	if id := RequestID(ctx); id != "" {
		return base.With(FieldRequestID, id)
	}
	return base
}

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
//
// Example:
//
//	completer := complete.NewCompleter(providers, gate, logger.ComponentLogger("complete"))
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}
