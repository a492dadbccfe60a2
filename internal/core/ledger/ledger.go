// Package ledger is the client-side order collection for one dark store
// session. It is the only writer of order state; everything else reads
// snapshots.
package ledger

import (
	"slices"

	"github.com/suevga/suvega-darkstore-sub001/internal/core/kv"
	"github.com/suevga/suvega-darkstore-sub001/internal/core/order"
	"github.com/suevga/suvega-darkstore-sub001/internal/core/persist"
)

// Key is the durable storage key of the ledger.
const Key = "order-store"

// State is the persisted ledger state. TotalOrderCount always equals
// len(Orders).
type State struct {
	Orders          []order.Order `json:"orders"`
	TotalOrderCount int           `json:"totalOrderCount"`
	Error           string        `json:"error,omitempty"`
	Loading         bool          `json:"loading"`
}

// Ledger holds orders newest-first with no duplicate ids.
type Ledger struct {
	store *persist.Store[State]
}

// New rehydrates the ledger from storage.
func New(storage kv.KV, opts ...persist.Option) *Ledger {
	return &Ledger{
		store: persist.New(Key, storage, State{Orders: []order.Order{}}, opts...),
	}
}

// Rehydrated reports whether prior state was loaded from storage.
func (l *Ledger) Rehydrated() bool { return l.store.Rehydrated() }

// State returns a snapshot of the full ledger state.
func (l *Ledger) State() State {
	st := l.store.Get()
	st.Orders = slices.Clone(st.Orders)
	return st
}

// Subscribe calls fn after every mutation.
func (l *Ledger) Subscribe(fn func(State)) (unsubscribe func()) {
	return l.store.Subscribe(fn)
}

// SetOrders replaces the collection. Later duplicates of an id are dropped.
// A successful replace clears the error field.
func (l *Ledger) SetOrders(list []order.Order) {
	orders := dedupe(list)
	l.store.Set(func(st State) State {
		st.Orders = orders
		st.TotalOrderCount = len(orders)
		st.Error = ""
		return st
	})
}

// AddOrder prepends o. An existing entry with the same id is replaced in
// place instead.
func (l *Ledger) AddOrder(o order.Order) {
	l.store.Set(func(st State) State {
		if i := indexOf(st.Orders, o.ID); i >= 0 {
			orders := slices.Clone(st.Orders)
			orders[i] = o
			st.Orders = orders
		} else {
			orders := make([]order.Order, 0, len(st.Orders)+1)
			orders = append(orders, o)
			st.Orders = append(orders, st.Orders...)
		}
		st.TotalOrderCount = len(st.Orders)
		return st
	})
}

// UpdateOrder merges patch into the order with the given id. It reports
// false, and changes nothing, when no such order is held.
func (l *Ledger) UpdateOrder(id string, patch order.Patch) bool {
	return l.store.Update(func(st State) (State, bool) {
		i := indexOf(st.Orders, id)
		if i < 0 {
			return st, false
		}
		orders := slices.Clone(st.Orders)
		orders[i] = patch.Apply(orders[i])
		st.Orders = orders
		return st, true
	})
}

// DeleteOrder removes the order with the given id and reports whether one
// was removed.
func (l *Ledger) DeleteOrder(id string) bool {
	return l.store.Update(func(st State) (State, bool) {
		if indexOf(st.Orders, id) < 0 {
			return st, false
		}
		orders := slices.DeleteFunc(slices.Clone(st.Orders), func(o order.Order) bool {
			return o.ID == id
		})
		st.Orders = orders
		st.TotalOrderCount = len(orders)
		return st, true
	})
}

// ClearOrders empties the ledger, used on logout or store switch.
func (l *Ledger) ClearOrders() {
	l.store.Set(func(st State) State {
		st.Orders = []order.Order{}
		st.TotalOrderCount = 0
		st.Error = ""
		st.Loading = false
		return st
	})
}

// Orders returns a copy of the collection, newest first.
func (l *Ledger) Orders() []order.Order {
	return slices.Clone(l.store.Get().Orders)
}

// Order looks up a single order by id.
func (l *Ledger) Order(id string) (order.Order, bool) {
	orders := l.store.Get().Orders
	if i := indexOf(orders, id); i >= 0 {
		return orders[i], true
	}
	return order.Order{}, false
}

// TotalOrderCount returns the number of orders held.
func (l *Ledger) TotalOrderCount() int {
	return l.store.Get().TotalOrderCount
}

// GetOrdersByStatus returns the orders with the given status in ledger order.
func (l *Ledger) GetOrdersByStatus(status order.Status) []order.Order {
	out := []order.Order{}
	for _, o := range l.store.Get().Orders {
		if o.OrderStatus == status {
			out = append(out, o)
		}
	}
	return out
}

// GetOrderCounts returns delivered, rejected and cancelled totals.
func (l *Ledger) GetOrderCounts() order.Counts {
	return order.CountTerminal(l.store.Get().Orders)
}

// SetError records a store-local error message. A nil error clears it.
func (l *Ledger) SetError(err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	l.store.Set(func(st State) State {
		st.Error = msg
		return st
	})
}

// Err returns the last recorded error message, or "".
func (l *Ledger) Err() string {
	return l.store.Get().Error
}

// SetLoading marks a refresh as in flight.
func (l *Ledger) SetLoading(loading bool) {
	l.store.Set(func(st State) State {
		st.Loading = loading
		return st
	})
}

// Loading reports whether a refresh is in flight.
func (l *Ledger) Loading() bool {
	return l.store.Get().Loading
}

func indexOf(orders []order.Order, id string) int {
	return slices.IndexFunc(orders, func(o order.Order) bool { return o.ID == id })
}

func dedupe(list []order.Order) []order.Order {
	seen := make(map[string]struct{}, len(list))
	out := make([]order.Order, 0, len(list))
	for _, o := range list {
		if _, ok := seen[o.ID]; ok {
			continue
		}
		seen[o.ID] = struct{}{}
		out = append(out, o)
	}
	return out
}
