// Package kv defines the durable string key/value contract the persisted
// stores mirror their state into.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("kv: key not found")

// KV is a synchronous string key/value store. Each persisted store owns
// exactly one key and writes its serialized snapshot there after every
// mutation.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	ListKeys(ctx context.Context) ([]string, error)
}
