package logging

import "context"

type contextKey string

const (
	darkStoreIDKey  contextKey = "dark_store_id"
	connectionIDKey contextKey = "connection_id"
)

// WithDarkStoreID adds the operator's dark store ID to the context.
func WithDarkStoreID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, darkStoreIDKey, id)
}

// WithConnectionID adds a realtime connection ID to the context.
func WithConnectionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, connectionIDKey, id)
}

// GetDarkStoreID retrieves the dark store ID from the context.
// Returns empty string if not present.
func GetDarkStoreID(ctx context.Context) string {
	if id, ok := ctx.Value(darkStoreIDKey).(string); ok {
		return id
	}
	return ""
}

// GetConnectionID retrieves the realtime connection ID from the context.
// Returns empty string if not present.
func GetConnectionID(ctx context.Context) string {
	if id, ok := ctx.Value(connectionIDKey).(string); ok {
		return id
	}
	return ""
}
