package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suevga/suvega-darkstore-sub001/internal/core/order"
)

func newClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/api/v1/", "tok-123", 5*time.Second)
	require.NoError(t, err)
	return c
}

func TestNew_RejectsRelativeURL(t *testing.T) {
	_, err := New("/api", "", 0)
	assert.Error(t, err)
}

func TestListOrders(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "bare array", data: `[{"_id":"a"},{"_id":"b"}]`},
		{name: "wrapped", data: `{"orders":[{"_id":"a"},{"_id":"b"}],"total":2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/api/v1/orders", r.URL.Path)
				assert.Equal(t, "store-1", r.URL.Query().Get("darkStoreId"))
				assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
				_, _ = io.WriteString(w, `{"status":200,"data":`+tt.data+`}`)
			})

			raw, err := c.ListOrders(context.Background(), "store-1")
			require.NoError(t, err)

			var orders []order.Order
			require.NoError(t, json.Unmarshal(raw, &orders))
			require.Len(t, orders, 2)
			assert.Equal(t, "a", orders[0].ID)
		})
	}
}

func TestListOrders_NonArrayPassedThrough(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"success","data":"nothing here"}`)
	})

	raw, err := c.ListOrders(context.Background(), "store-1")
	require.NoError(t, err)
	assert.JSONEq(t, `"nothing here"`, string(raw))
}

func TestUpdateOrderStatus(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/v1/orders/ord-1/status", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "accepted", body["orderStatus"])

		_, _ = io.WriteString(w, `{"status":200,"data":{"_id":"ord-1","orderStatus":"accepted"}}`)
	})

	o, err := c.UpdateOrderStatus(context.Background(), "ord-1", order.StatusAccepted)
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.Equal(t, order.StatusAccepted, o.OrderStatus)
}

func TestDeleteOrder_StatusError(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"status":404,"message":"order not found"}`)
	})

	err := c.DeleteOrder(context.Background(), "missing")
	require.Error(t, err)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Equal(t, "order not found", se.Message)
	assert.True(t, IsNotFound(err))
}

func TestRegisterPushToken(t *testing.T) {
	var got map[string]string
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/push-tokens", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.RegisterPushToken(context.Background(), "fcm-abc", "store-1"))
	assert.Equal(t, map[string]string{"token": "fcm-abc", "darkStoreId": "store-1"}, got)
}

func TestDo_ServerErrorWithoutBody(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	err := c.RegisterPushToken(context.Background(), "t", "o")

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	assert.False(t, IsNotFound(err))
}
