package services

import "context"

type contextKey string

const (
	sessionCodeKey contextKey = "session_code"
	stageKey       contextKey = "stage"
	requestIDKey   contextKey = "request_id"
)

// WithSessionCode annotates context with the session code being processed.
func WithSessionCode(ctx context.Context, code string) context.Context {
	if code == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionCodeKey, code)
}

// SessionCodeFromContext extracts the session code if present.
func SessionCodeFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(sessionCodeKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the workflow stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stageKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier. Each CLI
// invocation stamps its run id here.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
