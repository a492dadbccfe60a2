// Package stores implements the core storage interfaces on top of SQLite.
package stores

import (
	"context"
	"fmt"
	"time"

	"github.com/suevga/suvega-darkstore-sub001/internal/core/kv"
	"github.com/suevga/suvega-darkstore-sub001/internal/data/db"
)

// KVStore implements kv.KV using SQLite.
type KVStore struct {
	db *db.DB
}

var _ kv.KV = (*KVStore)(nil)

// NewKVStore creates a new SQLite-backed KV store.
func NewKVStore(db *db.DB) *KVStore {
	return &KVStore{db: db}
}

// Get returns the stored value. Returns an error wrapping kv.ErrNotFound if
// the key does not exist.
func (s *KVStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.Conn().QueryRowContext(ctx, "SELECT value FROM kv_store WHERE key = ?", key).Scan(&value)
	if IsNotFoundError(err) {
		return "", fmt.Errorf("kv get %q: %w", key, kv.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("kv get %q: %w", key, err)
	}
	return value, nil
}

// Set upserts a value. created_at is preserved across overwrites.
func (s *KVStore) Set(ctx context.Context, key, value string) error {
	now := time.Now().UnixNano()
	_, err := s.db.Conn().ExecContext(ctx, `
		INSERT INTO kv_store (key, value, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, now, now)
	if err != nil {
		return fmt.Errorf("kv set %q: %w", key, err)
	}
	return nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (s *KVStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.Conn().ExecContext(ctx, "DELETE FROM kv_store WHERE key = ?", key); err != nil {
		return fmt.Errorf("kv delete %q: %w", key, err)
	}
	return nil
}

// ListKeys returns all keys in sorted order.
func (s *KVStore) ListKeys(ctx context.Context) ([]string, error) {
	rows, err := s.db.Conn().QueryContext(ctx, "SELECT key FROM kv_store ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("kv list keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("kv list keys scan: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// UpdatedAt reports when a key was last written.
func (s *KVStore) UpdatedAt(ctx context.Context, key string) (time.Time, error) {
	var updated int64
	err := s.db.Conn().QueryRowContext(ctx, "SELECT updated_at FROM kv_store WHERE key = ?", key).Scan(&updated)
	if IsNotFoundError(err) {
		return time.Time{}, fmt.Errorf("kv updated_at %q: %w", key, kv.ErrNotFound)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("kv updated_at %q: %w", key, err)
	}
	return time.Unix(0, updated), nil
}
