package push

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/suevga/suvega-darkstore-sub001/internal/core/kv"
	"github.com/suevga/suvega-darkstore-sub001/internal/core/logging"
	"github.com/suevga/suvega-darkstore-sub001/internal/core/notify"
	"github.com/suevga/suvega-darkstore-sub001/internal/core/persist"
	"github.com/suevga/suvega-darkstore-sub001/internal/metrics"
)

type syncKey struct {
	token string
	owner string
}

// Lifecycle runs the push registration flow. It is safe for concurrent use.
type Lifecycle struct {
	provider Provider
	backend  Backend
	queue    *notify.Queue
	store    *persist.Store[Registration]
	metrics  *metrics.Metrics
	log      zerolog.Logger
	now      func() time.Time

	mu     sync.Mutex
	owner  string
	synced map[syncKey]struct{}
}

// Option configures a Lifecycle.
type Option func(*Lifecycle)

// WithMetrics records backend registration results.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Lifecycle) { l.metrics = m }
}

// WithQueue routes foreground messages into q.
func WithQueue(q *notify.Queue) Option {
	return func(l *Lifecycle) { l.queue = q }
}

// NewStore opens the persisted registration record.
func NewStore(storage kv.KV, opts ...persist.Option) *persist.Store[Registration] {
	return persist.New(Key, storage, Registration{}, opts...)
}

// NewLifecycle creates a Lifecycle over the given provider, backend and
// registration store.
func NewLifecycle(provider Provider, backend Backend, store *persist.Store[Registration], opts ...Option) *Lifecycle {
	l := &Lifecycle{
		provider: provider,
		backend:  backend,
		store:    store,
		log:      logging.Component("push"),
		now:      time.Now,
		synced:   make(map[syncKey]struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Registration returns the last persisted registration.
func (l *Lifecycle) Registration() Registration {
	return l.store.Get()
}

// RequestPermission asks the provider for permission. Provider errors are
// logged and reported as denied.
func (l *Lifecycle) RequestPermission(ctx context.Context) bool {
	granted, err := l.provider.RequestPermission(ctx)
	if err != nil {
		l.log.Warn().Err(err).Msg("permission request failed")
		return false
	}
	if !granted {
		l.log.Info().Msg("push permission denied")
	}
	return granted
}

// AcquireToken returns the provider's token, or ErrTokenUnavailable when it
// has none. Retrying is the caller's decision.
func (l *Lifecycle) AcquireToken(ctx context.Context) (string, error) {
	token, err := l.provider.Token(ctx)
	if err != nil {
		return "", errors.Join(ErrTokenUnavailable, err)
	}
	if token == "" {
		return "", ErrTokenUnavailable
	}
	return token, nil
}

// RegisterTokenWithBackend associates token with ownerID on the server.
// Failures are logged and reported as false.
func (l *Lifecycle) RegisterTokenWithBackend(ctx context.Context, token, ownerID string) bool {
	err := l.backend.RegisterPushToken(ctx, token, ownerID)
	l.metrics.PushRegistration(err == nil)
	if err != nil {
		l.log.Warn().Ctx(ctx).Err(err).Msg("register push token")
		return false
	}
	return true
}

// Sync runs the full lifecycle for ownerID: permission, token, local
// persistence and backend registration. The backend is called at most once
// per distinct (token, owner) pair for the life of the Lifecycle; failures
// are retried on the next call.
func (l *Lifecycle) Sync(ctx context.Context, ownerID string) bool {
	l.mu.Lock()
	l.owner = ownerID
	l.mu.Unlock()

	if ownerID == "" {
		return false
	}
	ctx = logging.WithDarkStoreID(ctx, ownerID)

	if !l.RequestPermission(ctx) {
		return false
	}

	token, err := l.AcquireToken(ctx)
	if err != nil {
		l.log.Warn().Ctx(ctx).Err(err).Msg("acquire push token")
		return false
	}

	l.store.Update(func(reg Registration) (Registration, bool) {
		if reg.Token == token && reg.OwnerID == ownerID {
			return reg, false
		}
		return Registration{Token: token, OwnerID: ownerID}, true
	})

	key := syncKey{token: token, owner: ownerID}
	l.mu.Lock()
	_, done := l.synced[key]
	l.mu.Unlock()
	if done {
		return true
	}

	if !l.RegisterTokenWithBackend(ctx, token, ownerID) {
		return false
	}

	l.mu.Lock()
	l.synced[key] = struct{}{}
	l.mu.Unlock()

	now := l.now()
	l.store.Update(func(reg Registration) (Registration, bool) {
		if reg.Token != token || reg.OwnerID != ownerID {
			return reg, false
		}
		reg.Synced = true
		reg.RegisteredAt = now
		return reg, true
	})
	l.log.Info().Ctx(ctx).Msg("push token registered")
	return true
}

// Owner returns the owner of the last Sync or SetOwner call.
func (l *Lifecycle) Owner() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.owner
}

// SetOwner re-runs Sync when the owner differs from the previous one. It
// reports whether a sync was attempted.
func (l *Lifecycle) SetOwner(ctx context.Context, ownerID string) bool {
	l.mu.Lock()
	same := l.owner == ownerID
	l.mu.Unlock()
	if same {
		return false
	}
	l.Sync(ctx, ownerID)
	return true
}

// Listen re-arms the provider's message listener until ctx ends, queueing
// each message as a notification.
func (l *Lifecycle) Listen(ctx context.Context) error {
	for {
		msg, err := l.provider.NextMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.log.Warn().Err(err).Msg("receive push message")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		if l.queue == nil {
			continue
		}
		n := l.queue.Add(notify.Notification{
			ID:      msg.ID,
			Title:   msg.Title,
			Message: msg.Body,
			Type:    notify.TypeInfo,
		})
		l.metrics.NotificationEnqueued(string(n.Type))
	}
}
