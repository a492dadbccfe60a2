package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	logger := Component("bridge")
	ctx := WithDarkStoreID(context.Background(), "store-42")
	logger.Info().Ctx(ctx).Msg("joined room")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log: %v", err)
	}

	if entry["cmp"] != "bridge" {
		t.Errorf("Component() cmp = %v, want %q", entry["cmp"], "bridge")
	}

	if entry["dark_store_id"] != "store-42" {
		t.Errorf("Component() dark_store_id = %v, want %q", entry["dark_store_id"], "store-42")
	}

	if entry["message"] != "joined room" {
		t.Errorf("Component() message = %v, want %q", entry["message"], "joined room")
	}
}
