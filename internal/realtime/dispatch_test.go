package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suevga/suvega-darkstore-sub001/internal/core/logging"
	"github.com/suevga/suvega-darkstore-sub001/internal/core/notify"
	"github.com/suevga/suvega-darkstore-sub001/internal/core/order"
	"github.com/suevga/suvega-darkstore-sub001/internal/metrics"
)

func newDispatchBridge(t *testing.T) (*Bridge, Stores, *metrics.Metrics) {
	t.Helper()
	stores := newStores()
	m := metrics.New()
	b := New(Config{DarkStoreID: "store-1"}, stores, WithLogger(zerolog.Nop()), WithMetrics(m))
	return b, stores, m
}

func TestDispatch_StatusChangeForUnknownOrder(t *testing.T) {
	b, stores, m := newDispatchBridge(t)
	stores.Ledger.SetOrders([]order.Order{{ID: "a", OrderStatus: order.StatusPending}})
	before := stores.Ledger.State()

	err := b.Dispatch(context.Background(), envelope(t, EventOrderStatusChanged, StatusChanged{OrderID: "X", OrderStatus: order.StatusDelivered}))
	require.NoError(t, err)

	assert.Equal(t, before, stores.Ledger.State())
	_, phantom := stores.Ledger.Order("X")
	assert.False(t, phantom)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerUpdatesDropped.WithLabelValues(EventOrderStatusChanged)))

	stores.Ledger.SetOrders([]order.Order{{ID: "X", OrderStatus: order.StatusDelivered}})
	o, ok := stores.Ledger.Order("X")
	require.True(t, ok)
	assert.Equal(t, order.StatusDelivered, o.OrderStatus)
}

func TestDispatch_StatusNotificationTypes(t *testing.T) {
	tests := []struct {
		status order.Status
		want   notify.Type
	}{
		{status: order.StatusAccepted, want: notify.TypeInfo},
		{status: order.StatusOutForDelivery, want: notify.TypeInfo},
		{status: order.StatusDelivered, want: notify.TypeSuccess},
		{status: order.StatusRejected, want: notify.TypeError},
		{status: order.StatusCancelled, want: notify.TypeError},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			b, stores, _ := newDispatchBridge(t)
			stores.Ledger.AddOrder(order.Order{ID: "665f00a1b2c3", OrderStatus: order.StatusPending})

			require.NoError(t, b.Dispatch(context.Background(), envelope(t, EventOrderStatusChanged, StatusChanged{
				OrderID:     "665f00a1b2c3",
				OrderNumber: "D-17",
				OrderStatus: tt.status,
			})))

			list := stores.Queue.List()
			require.Len(t, list, 1)
			assert.Equal(t, tt.want, list[0].Type)
			assert.Equal(t, "Order a1b2c3 "+tt.status.Label(), list[0].Title)
			assert.Equal(t, "Order #D-17 is now "+tt.status.Label(), list[0].Message)
		})
	}
}

func TestDispatch_RiderLocationDoesNotNotify(t *testing.T) {
	b, stores, _ := newDispatchBridge(t)
	stores.Ledger.AddOrder(order.Order{ID: "a"})

	for i := range 20 {
		loc := order.Location{Latitude: 12 + float64(i)/100, Longitude: 77}
		require.NoError(t, b.Dispatch(context.Background(), envelope(t, EventRiderLocationUpdated, RiderLocationUpdated{OrderID: "a", RiderLocation: &loc})))
	}

	o, _ := stores.Ledger.Order("a")
	require.NotNil(t, o.RiderLocation)
	assert.InDelta(t, 12.19, o.RiderLocation.Latitude, 1e-9)
	assert.Equal(t, 0, stores.Queue.Len())
}

func TestDispatch_OrderDeleted(t *testing.T) {
	b, stores, _ := newDispatchBridge(t)
	stores.Ledger.SetOrders([]order.Order{{ID: "a"}, {ID: "b"}})

	require.NoError(t, b.Dispatch(context.Background(), envelope(t, EventOrderDeleted, OrderDeleted{OrderID: "a"})))

	assert.Equal(t, 1, stores.Ledger.TotalOrderCount())
	assert.Equal(t, 0, stores.Queue.Len())
}

func TestDispatch_CreatedTwiceKeepsOneEntry(t *testing.T) {
	b, stores, _ := newDispatchBridge(t)

	created := envelope(t, EventOrderCreated, order.Order{ID: "a", OrderStatus: order.StatusPending})
	require.NoError(t, b.Dispatch(context.Background(), created))
	require.NoError(t, b.Dispatch(context.Background(), created))

	assert.Equal(t, 1, stores.Ledger.TotalOrderCount())
	assert.Equal(t, 2, stores.Queue.Len())
}

func TestDispatch_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		env     Envelope
		unknown bool
	}{
		{name: "unknown event", env: Envelope{Event: "inventory:updated", Data: json.RawMessage(`{}`)}, unknown: true},
		{name: "not an object", env: Envelope{Event: EventOrderCreated, Data: json.RawMessage(`[1,2]`)}},
		{name: "created without id", env: Envelope{Event: EventOrderCreated, Data: json.RawMessage(`{"orderStatus":"pending"}`)}},
		{name: "bad status", env: Envelope{Event: EventOrderStatusChanged, Data: json.RawMessage(`{"orderId":"a","orderStatus":"lost"}`)}},
		{name: "missing order id", env: Envelope{Event: EventOrderDeleted, Data: json.RawMessage(`{}`)}},
		{name: "assignment without rider", env: Envelope{Event: EventOrderRiderAssigned, Data: json.RawMessage(`{"orderId":"a"}`)}},
		{name: "location out of range", env: Envelope{Event: EventRiderLocationUpdated, Data: json.RawMessage(`{"orderId":"a","riderLocation":{"latitude":123,"longitude":0}}`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, stores, m := newDispatchBridge(t)
			stores.Ledger.AddOrder(order.Order{ID: "a", OrderStatus: order.StatusPending})
			before := stores.Ledger.State()

			err := b.Dispatch(context.Background(), tt.env)
			require.Error(t, err)

			if tt.unknown {
				assert.ErrorIs(t, err, ErrUnknownEvent)
			} else {
				var ip *InvalidPayloadError
				assert.ErrorAs(t, err, &ip)
			}
			assert.Equal(t, before, stores.Ledger.State())
			assert.Equal(t, 0, stores.Queue.Len())
			assert.Equal(t, 1, testutil.CollectAndCount(m.EventsRejected))
		})
	}
}

func TestDispatch_UnknownEventNamesShareOneLabel(t *testing.T) {
	b, _, m := newDispatchBridge(t)

	for _, name := range []string{"inventory:updated", "x:1", "x:2"} {
		err := b.Dispatch(context.Background(), Envelope{Event: name, Data: json.RawMessage(`{}`)})
		require.ErrorIs(t, err, ErrUnknownEvent)
	}

	assert.Equal(t, 1, testutil.CollectAndCount(m.EventsReceived))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.EventsReceived.WithLabelValues("unknown")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.EventsRejected.WithLabelValues("unknown", "unknown")))
}

func TestDispatch_DroppedUpdateLogsConnectionFields(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel).Hook(logging.ContextHook{})
	b := New(Config{DarkStoreID: "store-1"}, newStores(), WithLogger(logger))

	ctx := logging.WithConnectionID(logging.WithDarkStoreID(context.Background(), "store-1"), "conn-7")
	require.NoError(t, b.Dispatch(ctx, envelope(t, EventOrderStatusChanged, StatusChanged{OrderID: "X", OrderStatus: order.StatusAccepted})))

	out := buf.String()
	assert.Contains(t, out, "update for unknown order dropped")
	assert.Contains(t, out, `"dark_store_id":"store-1"`)
	assert.Contains(t, out, `"connection_id":"conn-7"`)
}
