package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/suevga/suvega-darkstore-sub001/internal/core/order"
)

// Ingest is the outcome of validating an order list payload. When Valid is
// false, Orders is the empty default and Reason says why.
type Ingest struct {
	Valid  bool
	Orders []order.Order
	Reason string
}

// ParseOrders validates raw as a JSON array of orders. Entries without an
// id are skipped.
func ParseOrders(raw json.RawMessage) Ingest {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return Ingest{Orders: []order.Order{}, Reason: "payload is not an array"}
	}

	var list []order.Order
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return Ingest{Orders: []order.Order{}, Reason: fmt.Sprintf("decode orders: %v", err)}
	}

	orders := make([]order.Order, 0, len(list))
	for _, o := range list {
		if o.ID == "" {
			continue
		}
		orders = append(orders, o)
	}

	return Ingest{Valid: true, Orders: orders}
}

// SetOrdersPayload validates raw and replaces the collection with the
// result. An invalid payload empties the ledger.
func (l *Ledger) SetOrdersPayload(raw json.RawMessage) Ingest {
	res := ParseOrders(raw)
	l.SetOrders(res.Orders)
	return res
}
