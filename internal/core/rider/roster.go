// Package rider tracks the riders seen on this dark store's orders and
// their last reported location.
package rider

import (
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/suevga/suvega-darkstore-sub001/internal/core/kv"
	"github.com/suevga/suvega-darkstore-sub001/internal/core/order"
	"github.com/suevga/suvega-darkstore-sub001/internal/core/persist"
)

// Key is the durable storage key of the roster.
const Key = "all-riders"

// Entry is the roster record for one rider.
type Entry struct {
	Rider        order.Rider     `json:"rider"`
	OrderID      string          `json:"orderId"`
	LastLocation *order.Location `json:"lastLocation,omitempty"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// State maps rider id to entry.
type State struct {
	Riders map[string]Entry `json:"riders"`
}

// Roster is keyed by rider id. Location updates arrive per order, so the
// roster resolves order id to rider through the current assignment.
type Roster struct {
	store *persist.Store[State]
	now   func() time.Time
}

// NewRoster rehydrates the roster from storage.
func NewRoster(storage kv.KV, opts ...persist.Option) *Roster {
	return &Roster{
		store: persist.New(Key, storage, State{Riders: map[string]Entry{}}, opts...),
		now:   time.Now,
	}
}

// Assign records r as the rider delivering orderID. Any other rider still
// holding orderID is unassigned, so an order maps to at most one rider.
func (r *Roster) Assign(orderID string, rd order.Rider) {
	if rd.ID == "" {
		return
	}
	now := r.now()
	r.store.Set(func(st State) State {
		riders := maps.Clone(st.Riders)
		if riders == nil {
			riders = map[string]Entry{}
		}
		for id, e := range riders {
			if id != rd.ID && orderID != "" && e.OrderID == orderID {
				e.OrderID = ""
				riders[id] = e
			}
		}
		entry := riders[rd.ID]
		entry.Rider = rd
		entry.OrderID = orderID
		entry.UpdatedAt = now
		riders[rd.ID] = entry
		st.Riders = riders
		return st
	})
}

// UpdateLocation stores loc for the rider currently assigned to orderID.
// It reports false when no rider is known for the order.
func (r *Roster) UpdateLocation(orderID string, loc order.Location) bool {
	if orderID == "" {
		return false
	}
	now := r.now()
	return r.store.Update(func(st State) (State, bool) {
		id, ok := riderFor(st.Riders, orderID)
		if !ok {
			return st, false
		}
		riders := maps.Clone(st.Riders)
		entry := riders[id]
		entry.LastLocation = &loc
		entry.UpdatedAt = now
		riders[id] = entry
		st.Riders = riders
		return st, true
	})
}

// riderFor picks the most recently assigned rider holding orderID.
func riderFor(riders map[string]Entry, orderID string) (string, bool) {
	found := ""
	var at time.Time
	for id, e := range riders {
		if e.OrderID != orderID {
			continue
		}
		if found == "" || e.UpdatedAt.After(at) || (e.UpdatedAt.Equal(at) && id < found) {
			found, at = id, e.UpdatedAt
		}
	}
	return found, found != ""
}

// Rider returns the entry for a rider id.
func (r *Roster) Rider(id string) (Entry, bool) {
	e, ok := r.store.Get().Riders[id]
	return e, ok
}

// Riders returns all entries sorted by rider name, then id.
func (r *Roster) Riders() []Entry {
	entries := slices.Collect(maps.Values(r.store.Get().Riders))
	slices.SortFunc(entries, func(a, b Entry) int {
		if c := strings.Compare(a.Rider.Name, b.Rider.Name); c != 0 {
			return c
		}
		return strings.Compare(a.Rider.ID, b.Rider.ID)
	})
	return entries
}

// Clear forgets every rider.
func (r *Roster) Clear() {
	r.store.Replace(State{Riders: map[string]Entry{}})
}

// PruneBefore drops riders not updated since cutoff and returns how many
// were removed.
func (r *Roster) PruneBefore(cutoff time.Time) int {
	removed := 0
	r.store.Set(func(st State) State {
		riders := maps.Clone(st.Riders)
		maps.DeleteFunc(riders, func(_ string, e Entry) bool {
			return e.UpdatedAt.Before(cutoff)
		})
		removed = len(st.Riders) - len(riders)
		st.Riders = riders
		return st
	})
	return removed
}
