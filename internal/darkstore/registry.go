// Package darkstore is the application root: it owns every persisted store
// for one operator session and the service that keeps them in sync.
package darkstore

import (
	"github.com/suevga/suvega-darkstore-sub001/internal/core/kv"
	"github.com/suevga/suvega-darkstore-sub001/internal/core/ledger"
	"github.com/suevga/suvega-darkstore-sub001/internal/core/notify"
	"github.com/suevga/suvega-darkstore-sub001/internal/core/persist"
	"github.com/suevga/suvega-darkstore-sub001/internal/core/rider"
	"github.com/suevga/suvega-darkstore-sub001/internal/push"
	"github.com/suevga/suvega-darkstore-sub001/internal/realtime"
)

// OwnerKey is the durable key recording which dark store the session
// stores were filled for.
const OwnerKey = "session-owner"

// Owner identifies the dark store the cached session data belongs to.
type Owner struct {
	DarkStoreID string `json:"darkStoreId"`
}

// Registry holds the stores, all rehydrated from one durable backend.
type Registry struct {
	Storage kv.KV
	Ledger  *ledger.Ledger
	Queue   *notify.Queue
	Roster  *rider.Roster
	Push    *persist.Store[push.Registration]

	owner *persist.Store[Owner]
}

// NewRegistry rehydrates every store from storage.
func NewRegistry(storage kv.KV, opts ...persist.Option) *Registry {
	return &Registry{
		Storage: storage,
		Ledger:  ledger.New(storage, opts...),
		Queue:   notify.NewQueue(storage, opts...),
		Roster:  rider.NewRoster(storage, opts...),
		Push:    push.NewStore(storage, opts...),
		owner:   persist.New(OwnerKey, storage, Owner{}, opts...),
	}
}

// Owner returns the dark store the stores are bound to, or "" before the
// first Claim.
func (r *Registry) Owner() string {
	return r.owner.Get().DarkStoreID
}

// Claim binds the stores to darkStoreID. When they hold data for a
// different dark store, that data is reset first and Claim returns the
// previous owner. Unbound stores are adopted as they are.
func (r *Registry) Claim(darkStoreID string) (previous string, switched bool) {
	if darkStoreID == "" {
		return "", false
	}

	previous = r.Owner()
	if previous == darkStoreID {
		return previous, false
	}
	if previous != "" {
		r.Reset()
	}
	r.owner.Replace(Owner{DarkStoreID: darkStoreID})
	return previous, previous != ""
}

// Stores returns the realtime event targets.
func (r *Registry) Stores() realtime.Stores {
	return realtime.Stores{
		Ledger: r.Ledger,
		Queue:  r.Queue,
		Roster: r.Roster,
	}
}

// Reset clears session data on logout or store switch. The push
// registration is kept; the next sync re-associates it with the new owner.
func (r *Registry) Reset() {
	r.Ledger.ClearOrders()
	r.Queue.Clear()
	r.Roster.Clear()
}
