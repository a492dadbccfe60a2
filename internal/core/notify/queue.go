package notify

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/suevga/suvega-darkstore-sub001/internal/core/kv"
	"github.com/suevga/suvega-darkstore-sub001/internal/core/persist"
)

const (
	// Key is the durable storage key of the queue.
	Key = "notification-store"

	// Capacity is the maximum number of notifications retained.
	Capacity = 50
)

// State is the persisted queue state, newest first.
type State struct {
	Notifications []Notification `json:"notifications"`
}

// Queue keeps the Capacity most recent notifications. Older entries are
// dropped silently on insert.
type Queue struct {
	store *persist.Store[State]
	now   func() time.Time
}

// NewQueue rehydrates the queue from storage.
func NewQueue(storage kv.KV, opts ...persist.Option) *Queue {
	return &Queue{
		store: persist.New(Key, storage, State{Notifications: []Notification{}}, opts...),
		now:   time.Now,
	}
}

// Add prepends n and truncates the queue to Capacity. Empty ID, Type and
// CreatedAt are filled in. The stored notification is returned.
func (q *Queue) Add(n Notification) Notification {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Type == "" {
		n.Type = TypeInfo
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = q.now()
	}

	q.store.Set(func(st State) State {
		size := min(len(st.Notifications)+1, Capacity)
		next := make([]Notification, 0, size)
		next = append(next, n)
		next = append(next, st.Notifications[:size-1]...)
		st.Notifications = next
		return st
	})
	return n
}

// Remove drops every notification with the given id.
func (q *Queue) Remove(id string) bool {
	removed := false
	q.store.Set(func(st State) State {
		next := slices.DeleteFunc(slices.Clone(st.Notifications), func(n Notification) bool {
			return n.ID == id
		})
		removed = len(next) != len(st.Notifications)
		st.Notifications = next
		return st
	})
	return removed
}

// Clear empties the queue.
func (q *Queue) Clear() {
	q.store.Replace(State{Notifications: []Notification{}})
}

// List returns the notifications, newest first.
func (q *Queue) List() []Notification {
	return slices.Clone(q.store.Get().Notifications)
}

// Len returns the number of queued notifications.
func (q *Queue) Len() int {
	return len(q.store.Get().Notifications)
}

// Subscribe calls fn after every mutation.
func (q *Queue) Subscribe(fn func(State)) (unsubscribe func()) {
	return q.store.Subscribe(fn)
}

func (q *Queue) addf(typ Type, title, format string, args ...any) Notification {
	return q.Add(Notification{
		Title:   title,
		Message: fmt.Sprintf(format, args...),
		Type:    typ,
	})
}

func (q *Queue) Infof(title, format string, args ...any) Notification {
	return q.addf(TypeInfo, title, format, args...)
}

func (q *Queue) Successf(title, format string, args ...any) Notification {
	return q.addf(TypeSuccess, title, format, args...)
}

func (q *Queue) Warnf(title, format string, args ...any) Notification {
	return q.addf(TypeWarning, title, format, args...)
}

func (q *Queue) Errorf(title, format string, args ...any) Notification {
	return q.addf(TypeError, title, format, args...)
}
