package drm

import "context"

type contextKey string

const (
	jobIDKey       contextKey = "job_id"
	streamLabelKey contextKey = "stream_label"
)

// WithJobID annotates context with the packaging job identifier.
func WithJobID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, jobIDKey, id)
}

// JobIDFromContext extracts the packaging job identifier if present.
func JobIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(jobIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStreamLabel annotates context with the stream label being processed.
func WithStreamLabel(ctx context.Context, label string) context.Context {
	return context.WithValue(ctx, streamLabelKey, label)
}

// StreamLabelFromContext extracts the stream label if present. The empty
// label is a valid value (default key semantics), so presence is reported
// separately.
func StreamLabelFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(streamLabelKey)
	if s, ok := v.(string); ok {
		return s, true
	}
	return "", false
}
