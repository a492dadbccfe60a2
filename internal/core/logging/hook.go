package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// ContextHook extracts dark_store_id and connection_id from context and adds them to log events.
type ContextHook struct{}

// Run adds contextual fields to the zerolog event.
func (h ContextHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == nil || ctx == context.Background() {
		return
	}

	if id := GetDarkStoreID(ctx); id != "" {
		e.Str("dark_store_id", id)
	}

	if id := GetConnectionID(ctx); id != "" {
		e.Str("connection_id", id)
	}
}
