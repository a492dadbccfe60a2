package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/suevga/suvega-darkstore-sub001/internal/core/notify"
	"github.com/suevga/suvega-darkstore-sub001/internal/core/order"
)

// ErrUnknownEvent is returned by Dispatch for event names the bridge does
// not handle.
var ErrUnknownEvent = errors.New("realtime: unknown event")

// InvalidPayloadError wraps a decode or validation failure for one event.
type InvalidPayloadError struct {
	Event  string
	Reason string
	Err    error
}

func (e *InvalidPayloadError) Error() string {
	return fmt.Sprintf("realtime: invalid %s payload: %v", e.Event, e.Err)
}

func (e *InvalidPayloadError) Unwrap() error { return e.Err }

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("order_status", func(fl validator.FieldLevel) bool {
		return order.Status(fl.Field().String()).IsValid()
	})
	return v
}

func (b *Bridge) decode(event string, data json.RawMessage, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return &InvalidPayloadError{Event: event, Reason: "decode", Err: err}
	}
	if err := b.validate.Struct(dst); err != nil {
		return &InvalidPayloadError{Event: event, Reason: "validate", Err: err}
	}
	return nil
}

// Dispatch applies one inbound event to the ledger, roster and queue.
// It must only be called from a single goroutine at a time; Run calls it
// from the connection's read loop with the connection's context.
func (b *Bridge) Dispatch(ctx context.Context, env Envelope) error {
	label := eventLabel(env.Event)
	b.metrics.EventReceived(label)

	err := b.dispatch(ctx, env)
	if err != nil {
		reason := "unknown"
		var ip *InvalidPayloadError
		if errors.As(err, &ip) {
			reason = ip.Reason
		}
		b.metrics.EventRejected(label, reason)
	}
	return err
}

// eventLabel bounds metric label values to the handled event names.
func eventLabel(event string) string {
	switch event {
	case EventOrderCreated, EventOrderStatusChanged, EventOrderRiderAssigned,
		EventRiderLocationUpdated, EventOrderDeleted:
		return event
	default:
		return "unknown"
	}
}

func (b *Bridge) dispatch(ctx context.Context, env Envelope) error {
	switch env.Event {
	case EventOrderCreated:
		var o order.Order
		if err := b.decode(env.Event, env.Data, &o); err != nil {
			return err
		}
		b.stores.Ledger.AddOrder(o)
		if o.DeliveryRider != nil {
			b.stores.Roster.Assign(o.ID, *o.DeliveryRider)
		}
		b.enqueue(env.Event, o.ID, notify.Notification{
			Title:   "New order",
			Message: fmt.Sprintf("Order %s received", displayNumber(o.OrderNumber, o.ID)),
			Type:    notify.TypeSuccess,
		})

	case EventOrderStatusChanged:
		var p StatusChanged
		if err := b.decode(env.Event, env.Data, &p); err != nil {
			return err
		}
		b.update(ctx, env.Event, p.OrderID, p.Patch())
		if p.DeliveryRider != nil {
			b.stores.Roster.Assign(p.OrderID, *p.DeliveryRider)
		}
		b.enqueue(env.Event, p.OrderID, notify.Notification{
			Title:   fmt.Sprintf("Order %s %s", order.ShortID(p.OrderID), p.OrderStatus.Label()),
			Message: fmt.Sprintf("Order %s is now %s", displayNumber(p.OrderNumber, p.OrderID), p.OrderStatus.Label()),
			Type:    statusNotificationType(p.OrderStatus),
		})

	case EventOrderRiderAssigned:
		var p RiderAssigned
		if err := b.decode(env.Event, env.Data, &p); err != nil {
			return err
		}
		b.update(ctx, env.Event, p.OrderID, order.Patch{DeliveryRider: p.DeliveryRider})
		b.stores.Roster.Assign(p.OrderID, *p.DeliveryRider)

		rider := p.DeliveryRider.Name
		if rider == "" {
			rider = "A rider"
		}
		b.enqueue(env.Event, p.OrderID, notify.Notification{
			Title:   "Rider assigned",
			Message: fmt.Sprintf("%s is delivering order %s", rider, displayNumber(p.OrderNumber, p.OrderID)),
			Type:    notify.TypeInfo,
		})

	case EventRiderLocationUpdated:
		var p RiderLocationUpdated
		if err := b.decode(env.Event, env.Data, &p); err != nil {
			return err
		}
		b.update(ctx, env.Event, p.OrderID, order.Patch{RiderLocation: p.RiderLocation})
		b.stores.Roster.UpdateLocation(p.OrderID, *p.RiderLocation)

	case EventOrderDeleted:
		var p OrderDeleted
		if err := b.decode(env.Event, env.Data, &p); err != nil {
			return err
		}
		if !b.stores.Ledger.DeleteOrder(p.OrderID) {
			b.metrics.UpdateDropped(env.Event)
		}

	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}

	b.metrics.SetOrders(b.stores.Ledger.TotalOrderCount())
	return nil
}

// update applies patch and records a drop when the order is unknown. The
// next full refresh reconciles dropped updates.
func (b *Bridge) update(ctx context.Context, event, orderID string, patch order.Patch) {
	if b.stores.Ledger.UpdateOrder(orderID, patch) {
		return
	}
	b.metrics.UpdateDropped(event)
	b.log.Debug().Ctx(ctx).
		Str("event", event).
		Str("order_id", orderID).
		Msg("update for unknown order dropped")
}

func (b *Bridge) enqueue(event, orderID string, n notify.Notification) {
	n.ID = event + ":" + orderID + ":" + uuid.NewString()
	b.stores.Queue.Add(n)
	b.metrics.NotificationEnqueued(string(n.Type))
}

func statusNotificationType(s order.Status) notify.Type {
	switch s {
	case order.StatusDelivered:
		return notify.TypeSuccess
	case order.StatusCancelled, order.StatusRejected:
		return notify.TypeError
	default:
		return notify.TypeInfo
	}
}

func displayNumber(orderNumber, id string) string {
	if orderNumber != "" {
		return "#" + orderNumber
	}
	return order.ShortID(id)
}
