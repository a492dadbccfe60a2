package realtime

import (
	"encoding/json"
	"time"

	"github.com/suevga/suvega-darkstore-sub001/internal/core/order"
)

// Inbound event names.
const (
	EventOrderCreated         = "order:created"
	EventOrderStatusChanged   = "order:status-changed"
	EventOrderRiderAssigned   = "order:rider-assigned"
	EventRiderLocationUpdated = "rider:location-updated"
	EventOrderDeleted         = "order:deleted"
)

// Outbound event names.
const (
	EventRoomJoin = "room:join"
)

// Envelope is the frame format in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinRoom is the payload of a room:join frame.
type JoinRoom struct {
	Room        string `json:"room"`
	DarkStoreID string `json:"darkStoreId"`
}

// RoomName returns the room a dark store's events are published to.
func RoomName(darkStoreID string) string {
	return "darkstore:" + darkStoreID
}

// StatusChanged is the payload of order:status-changed. Fields other than
// orderId and orderStatus are optional and merged when present.
type StatusChanged struct {
	OrderID       string          `json:"orderId" validate:"required"`
	OrderNumber   string          `json:"orderNumber,omitempty"`
	OrderStatus   order.Status    `json:"orderStatus" validate:"required,order_status"`
	DeliveryRider *order.Rider    `json:"deliveryRider,omitempty"`
	RiderLocation *order.Location `json:"riderLocation,omitempty"`
	UpdatedAt     *time.Time      `json:"updatedAt,omitempty"`
}

// Patch converts the event into a ledger patch.
func (e StatusChanged) Patch() order.Patch {
	status := e.OrderStatus
	return order.Patch{
		OrderStatus:   &status,
		DeliveryRider: e.DeliveryRider,
		RiderLocation: e.RiderLocation,
		UpdatedAt:     e.UpdatedAt,
	}
}

// RiderAssigned is the payload of order:rider-assigned.
type RiderAssigned struct {
	OrderID       string       `json:"orderId" validate:"required"`
	OrderNumber   string       `json:"orderNumber,omitempty"`
	DeliveryRider *order.Rider `json:"deliveryRider" validate:"required"`
}

// RiderLocationUpdated is the payload of rider:location-updated.
type RiderLocationUpdated struct {
	OrderID       string          `json:"orderId" validate:"required"`
	RiderLocation *order.Location `json:"riderLocation" validate:"required"`
}

// OrderDeleted is the payload of order:deleted.
type OrderDeleted struct {
	OrderID string `json:"orderId" validate:"required"`
}
