// Package jsonfile implements the durable key/value backend as one JSON file
// per key, so the state of every store can be inspected and watched on disk.
package jsonfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/suevga/suvega-darkstore-sub001/internal/core/kv"
)

const fileExt = ".json"

// KV implements kv.KV with files named "<key>.json" inside dir.
type KV struct {
	dir string
	mu  sync.RWMutex
}

var _ kv.KV = (*KV)(nil)

// NewKV creates a file-backed KV rooted at dir. The directory is created on
// first write.
func NewKV(dir string) *KV {
	return &KV{dir: dir}
}

// Dir returns the directory holding the key files.
func (s *KV) Dir() string {
	return s.dir
}

// Path returns the file path used for key.
func (s *KV) Path(key string) string {
	return filepath.Join(s.dir, key+fileExt)
}

func (s *KV) Get(_ context.Context, key string) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.Path(key))
	if os.IsNotExist(err) {
		return "", fmt.Errorf("kv get %q: %w", key, kv.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("kv get %q: %w", key, err)
	}
	return string(data), nil
}

// Set writes the value atomically (temp file then rename) so a reader never
// observes a partially written snapshot.
func (s *KV) Set(_ context.Context, key, value string) error {
	if err := validKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("kv set %q: %w", key, err)
	}

	path := s.Path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(value), 0o644); err != nil {
		return fmt.Errorf("kv set %q: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("kv set %q: %w", key, err)
	}
	return nil
}

func (s *KV) Delete(_ context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.Path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("kv delete %q: %w", key, err)
	}
	return nil
}

// ListKeys returns all keys in sorted order.
func (s *KV) ListKeys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("kv list keys: %w", err)
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(e.Name(), fileExt))
	}
	slices.Sort(keys)
	return keys, nil
}

func validKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("invalid key %q", key)
	}
	return nil
}
