// Package persist provides a named, write-through state container mirrored
// into a kv.KV backend.
//
// A Store rehydrates from its durable key when constructed and persists
// synchronously on every mutation. Before each mutation it re-reads the
// durable snapshot, so writes made by another process sharing the backend
// are folded in rather than overwritten. Storage failures are logged and
// never returned: the in-memory state stays authoritative for the process
// until a write succeeds again.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/suevga/suvega-darkstore-sub001/internal/core/kv"
	"github.com/suevga/suvega-darkstore-sub001/internal/core/logging"
)

// SnapshotVersion is written into every snapshot envelope.
const SnapshotVersion = 0

// Snapshot is the serialized form of a store in durable storage.
type Snapshot[S any] struct {
	State   S   `json:"state"`
	Version int `json:"version"`
}

// Option configures a Store.
type Option func(*options)

type options struct {
	logger zerolog.Logger
	hasLog bool
}

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
		o.hasLog = true
	}
}

// Store is a named state container. The zero value is not usable; use New.
type Store[S any] struct {
	name    string
	storage kv.KV
	log     zerolog.Logger
	// defRaw is the encoded default state, decoded under every snapshot so
	// fields the snapshot omits keep their defaults without sharing def.
	defRaw []byte

	mu         sync.Mutex
	state      S
	rehydrated bool
	// lastRaw is the snapshot this store last read or wrote. dirty is set
	// while the durable copy is behind the in-memory state.
	lastRaw string
	dirty   bool

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(S)
}

// New builds a Store for name, loading its snapshot from storage. A missing
// or unreadable snapshot leaves the store at def.
func New[S any](name string, storage kv.KV, def S, opts ...Option) *Store[S] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.hasLog {
		o.logger = logging.Component("persist")
	}

	s := &Store[S]{
		name:    name,
		storage: storage,
		log:     o.logger.With().Str("store", name).Logger(),
		state:   def,
		subs:    make(map[int]func(S)),
	}
	if raw, err := json.Marshal(def); err == nil {
		s.defRaw = raw
	}
	if s.load() {
		s.rehydrated = true
		s.log.Debug().Msg("rehydrated")
	}
	return s
}

// load replaces the in-memory state with the durable snapshot when the
// snapshot changed since it was last seen. It reports whether state was
// taken from storage. Callers hold s.mu, except during construction.
func (s *Store[S]) load() bool {
	raw, err := s.storage.Get(context.Background(), s.name)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			s.log.Warn().Err(err).Msg("read snapshot failed, keeping current state")
		}
		return false
	}
	if raw == s.lastRaw {
		return false
	}

	var snap Snapshot[S]
	if s.defRaw != nil {
		_ = json.Unmarshal(s.defRaw, &snap.State)
	}
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		s.log.Warn().Err(err).Msg("corrupt snapshot, keeping current state")
		return false
	}

	s.state = snap.State
	s.lastRaw = raw
	return true
}

// Name returns the durable key of the store.
func (s *Store[S]) Name() string { return s.name }

// Rehydrated reports whether a durable snapshot was loaded at construction.
func (s *Store[S]) Rehydrated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rehydrated
}

// Get returns the current state.
func (s *Store[S]) Get() S {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Set applies fn to the current state, persists the result and notifies
// subscribers. fn must return a new value rather than mutate shared slices
// or maps in place.
func (s *Store[S]) Set(fn func(S) S) {
	s.Update(func(st S) (S, bool) { return fn(st), true })
}

// Update is Set for mutations that may turn out to be no-ops. When fn
// reports false nothing is persisted and subscribers are not called.
// Update reports what fn reported.
func (s *Store[S]) Update(fn func(S) (S, bool)) bool {
	s.mu.Lock()
	if !s.dirty {
		s.load()
	}
	next, changed := fn(s.state)
	if !changed {
		s.mu.Unlock()
		return false
	}
	s.state = next
	s.persist(next)
	s.mu.Unlock()

	s.notify(next)
	return true
}

// Replace sets the whole state.
func (s *Store[S]) Replace(state S) {
	s.Set(func(S) S { return state })
}

func (s *Store[S]) persist(state S) {
	data, err := json.Marshal(Snapshot[S]{State: state, Version: SnapshotVersion})
	if err != nil {
		s.dirty = true
		s.log.Error().Err(err).Msg("encode snapshot")
		return
	}

	if err := s.storage.Set(context.Background(), s.name, string(data)); err != nil {
		s.dirty = true
		s.log.Error().Err(err).Msg("persist snapshot")
		return
	}
	s.dirty = false
	s.lastRaw = string(data)
}

// Subscribe registers fn to be called with the new state after every
// mutation. The returned function removes the subscription.
func (s *Store[S]) Subscribe(fn func(S)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store[S]) notify(state S) {
	s.subMu.Lock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	fns := make([]func(S), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}
