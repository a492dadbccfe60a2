package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suevga/suvega-darkstore-sub001/internal/core/kv"
	"github.com/suevga/suvega-darkstore-sub001/internal/core/ledger"
	"github.com/suevga/suvega-darkstore-sub001/internal/core/notify"
	"github.com/suevga/suvega-darkstore-sub001/internal/core/order"
	"github.com/suevga/suvega-darkstore-sub001/internal/core/persist"
	"github.com/suevga/suvega-darkstore-sub001/internal/core/rider"
	"github.com/suevga/suvega-darkstore-sub001/internal/metrics"
)

const waitFor = 2 * time.Second

func newStores() Stores {
	storage := kv.NewMemory()
	quiet := persist.WithLogger(zerolog.Nop())
	return Stores{
		Ledger: ledger.New(storage, quiet),
		Queue:  notify.NewQueue(storage, quiet),
		Roster: rider.NewRoster(storage, quiet),
	}
}

func envelope(t *testing.T, event string, payload any) Envelope {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return Envelope{Event: event, Data: data}
}

// testServer accepts websocket connections, records each room:join and
// hands the server side of the connection to the test.
type testServer struct {
	*httptest.Server
	joins chan JoinRoom
	conns chan *websocket.Conn
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		joins: make(chan JoinRoom, 8),
		conns: make(chan *websocket.Conn, 8),
	}
	upgrader := websocket.Upgrader{}

	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		var env Envelope
		if err := conn.ReadJSON(&env); err != nil || env.Event != EventRoomJoin {
			_ = conn.Close()
			return
		}
		var join JoinRoom
		_ = json.Unmarshal(env.Data, &join)

		ts.joins <- join
		ts.conns <- conn
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func (ts *testServer) accept(t *testing.T) (JoinRoom, *websocket.Conn) {
	t.Helper()
	select {
	case join := <-ts.joins:
		conn := <-ts.conns
		t.Cleanup(func() { _ = conn.Close() })
		return join, conn
	case <-time.After(waitFor):
		t.Fatal("no connection joined")
		return JoinRoom{}, nil
	}
}

func send(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(envelope(t, event, payload)))
}

func startBridge(t *testing.T, ts *testServer, stores Stores, opts ...Option) (*Bridge, <-chan error) {
	t.Helper()
	cfg := Config{
		URL:            ts.wsURL(),
		DarkStoreID:    "store-1",
		Token:          "tok",
		PongWait:       5 * time.Second,
		BackoffInitial: 10 * time.Millisecond,
		BackoffMax:     50 * time.Millisecond,
	}
	opts = append([]Option{WithLogger(zerolog.Nop())}, opts...)
	b := New(cfg, stores, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(waitFor):
			t.Error("bridge did not stop")
		}
	})
	return b, done
}

func TestNew_Defaults(t *testing.T) {
	b := New(Config{URL: "ws://example"}, newStores())

	assert.Equal(t, 60*time.Second, b.cfg.PongWait)
	assert.Equal(t, 54*time.Second, b.cfg.PingInterval)
	assert.Equal(t, time.Second, b.cfg.BackoffInitial)
	assert.Equal(t, 30*time.Second, b.cfg.BackoffMax)
}

func TestBridge_JoinsRoomAndAppliesEvents(t *testing.T) {
	ts := newTestServer(t)
	stores := newStores()
	b, _ := startBridge(t, ts, stores)

	join, conn := ts.accept(t)
	assert.Equal(t, JoinRoom{Room: "darkstore:store-1", DarkStoreID: "store-1"}, join)
	require.Eventually(t, b.Connected, waitFor, 5*time.Millisecond)

	send(t, conn, EventOrderCreated, order.Order{ID: "ord-1", OrderNumber: "A100", OrderStatus: order.StatusPending})
	send(t, conn, EventOrderStatusChanged, StatusChanged{OrderID: "ord-1", OrderStatus: order.StatusAccepted})
	send(t, conn, EventOrderRiderAssigned, RiderAssigned{OrderID: "ord-1", DeliveryRider: &order.Rider{ID: "r1", Name: "Ravi"}})
	send(t, conn, EventRiderLocationUpdated, RiderLocationUpdated{OrderID: "ord-1", RiderLocation: &order.Location{Latitude: 12.9, Longitude: 77.6}})

	require.Eventually(t, func() bool {
		o, ok := stores.Ledger.Order("ord-1")
		return ok && o.RiderLocation != nil
	}, waitFor, 5*time.Millisecond)

	o, _ := stores.Ledger.Order("ord-1")
	assert.Equal(t, order.StatusAccepted, o.OrderStatus)
	require.NotNil(t, o.DeliveryRider)
	assert.Equal(t, "Ravi", o.DeliveryRider.Name)

	entry, ok := stores.Roster.Rider("r1")
	require.True(t, ok)
	require.NotNil(t, entry.LastLocation)

	list := stores.Queue.List()
	require.Len(t, list, 3, "location updates do not notify")
	assert.Equal(t, "Rider assigned", list[0].Title)
	assert.Equal(t, "Order ord-1 accepted", list[1].Title)
	assert.Equal(t, "New order", list[2].Title)
	assert.True(t, strings.HasPrefix(list[2].ID, "order:created:ord-1:"))
}

func TestBridge_RejoinsAfterDisconnectAndKeepsLedger(t *testing.T) {
	ts := newTestServer(t)
	stores := newStores()
	stores.Ledger.SetOrders([]order.Order{{ID: "ord-1", OrderStatus: order.StatusPreparing}})

	var reconnects atomic.Int32
	b, _ := startBridge(t, ts, stores, WithOnReconnect(func(context.Context) { reconnects.Add(1) }))

	_, first := ts.accept(t)
	require.Eventually(t, b.Connected, waitFor, 5*time.Millisecond)
	assert.Equal(t, int32(0), reconnects.Load())

	require.NoError(t, first.Close())

	join, second := ts.accept(t)
	assert.Equal(t, "darkstore:store-1", join.Room)
	require.Eventually(t, func() bool { return reconnects.Load() == 1 }, waitFor, 5*time.Millisecond)

	assert.Equal(t, 1, stores.Ledger.TotalOrderCount(), "disconnect leaves the ledger alone")

	send(t, second, EventOrderStatusChanged, StatusChanged{OrderID: "ord-1", OrderStatus: order.StatusOutForDelivery})
	require.Eventually(t, func() bool {
		o, _ := stores.Ledger.Order("ord-1")
		return o.OrderStatus == order.StatusOutForDelivery
	}, waitFor, 5*time.Millisecond)
}

func TestBridge_MalformedFramesDoNotDropConnection(t *testing.T) {
	ts := newTestServer(t)
	stores := newStores()
	startBridge(t, ts, stores)

	_, conn := ts.accept(t)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	send(t, conn, "inventory:updated", map[string]string{"sku": "milk"})
	send(t, conn, EventOrderStatusChanged, map[string]string{"orderId": "ord-1", "orderStatus": "teleported"})
	send(t, conn, EventOrderCreated, order.Order{ID: "ord-2", OrderStatus: order.StatusPending})

	require.Eventually(t, func() bool {
		_, ok := stores.Ledger.Order("ord-2")
		return ok
	}, waitFor, 5*time.Millisecond)

	select {
	case join := <-ts.joins:
		t.Fatalf("unexpected reconnect: %+v", join)
	default:
	}
}

func TestBridge_RetriesFailedDial(t *testing.T) {
	var attempts atomic.Int32
	upgrader := websocket.Upgrader{}
	joined := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		var env Envelope
		if err := conn.ReadJSON(&env); err == nil && env.Event == EventRoomJoin {
			select {
			case joined <- struct{}{}:
			default:
			}
		}
		_ = conn.Close()
	}))
	t.Cleanup(srv.Close)

	m := metrics.New()
	b := New(Config{
		URL:            "ws" + strings.TrimPrefix(srv.URL, "http"),
		DarkStoreID:    "store-1",
		BackoffInitial: 5 * time.Millisecond,
		BackoffMax:     20 * time.Millisecond,
	}, newStores(), WithLogger(zerolog.Nop()), WithMetrics(m))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	select {
	case <-joined:
	case <-time.After(waitFor):
		t.Fatal("bridge never joined")
	}

	b.Close()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(waitFor):
		t.Fatal("Close did not stop Run")
	}
	cancel()

	assert.GreaterOrEqual(t, testutil.ToFloat64(m.Connects.WithLabelValues("failure")), 2.0)
	assert.False(t, b.Connected())
}
