// Package logging holds the shared zerolog conventions: component loggers
// and context fields for the dark store and realtime connection.
package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Component returns a child of the global logger tagged with the "cmp" key
// and the context hook installed, so events logged with .Ctx(ctx) pick up
// dark_store_id and connection_id.
func Component(name string) zerolog.Logger {
	return log.With().Str("cmp", name).Logger().Hook(ContextHook{})
}
