// Package push manages the device push token: permission, acquisition,
// local persistence and idempotent association with the backend.
package push

import (
	"context"
	"errors"
	"time"
)

// ErrTokenUnavailable is returned when the provider grants permission but
// yields no token.
var ErrTokenUnavailable = errors.New("push: token unavailable")

// Key is the durable storage key of the registration record.
const Key = "push-registration"

// Message is a foreground push message.
type Message struct {
	ID    string            `json:"id,omitempty"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Provider is the platform push service.
type Provider interface {
	// RequestPermission asks the platform for permission. Denial is a normal
	// false result.
	RequestPermission(ctx context.Context) (bool, error)
	// Token returns the device token, or "" when none is available.
	Token(ctx context.Context) (string, error)
	// NextMessage blocks until one foreground message arrives. Callers
	// re-arm it for the next one.
	NextMessage(ctx context.Context) (Message, error)
}

// Backend associates a token with an owner on the server.
type Backend interface {
	RegisterPushToken(ctx context.Context, token, ownerID string) error
}

// Registration is the locally persisted token association. It is written
// as soon as a token is acquired; Synced and RegisteredAt record the last
// backend acceptance of that token and owner.
type Registration struct {
	Token        string    `json:"token"`
	OwnerID      string    `json:"associatedStoreOrUserId"`
	Synced       bool      `json:"synced"`
	RegisteredAt time.Time `json:"registeredAt"`
}
