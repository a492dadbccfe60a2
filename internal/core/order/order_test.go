package order

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatus_IsTerminal(t *testing.T) {
	terminal := map[Status]bool{
		StatusPending:        false,
		StatusAccepted:       false,
		StatusPreparing:      false,
		StatusOutForDelivery: false,
		StatusDelivered:      true,
		StatusRejected:       true,
		StatusCancelled:      true,
	}

	for status, want := range terminal {
		t.Run(string(status), func(t *testing.T) {
			assert.Equal(t, want, status.IsTerminal())
			assert.True(t, status.IsValid())
		})
	}

	assert.False(t, Status("shipped").IsValid())
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want Status
		ok   bool
	}{
		{in: "delivered", want: StatusDelivered, ok: true},
		{in: "Out-For-Delivery", want: StatusOutForDelivery, ok: true},
		{in: " out for delivery ", want: StatusOutForDelivery, ok: true},
		{in: "shipped", want: Status("shipped"), ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseStatus(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestPatch_Apply(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	base := Order{
		ID:          "ord-1",
		OrderStatus: StatusPending,
		TotalPrice:  120,
		Items:       []Item{{ProductID: "p1", Quantity: 1, Price: 120}},
	}

	status := StatusAccepted
	patched := Patch{
		OrderStatus:   &status,
		DeliveryRider: &Rider{ID: "r1", Name: "Asha"},
		UpdatedAt:     &now,
	}.Apply(base)

	assert.Equal(t, StatusAccepted, patched.OrderStatus)
	assert.Equal(t, "r1", patched.DeliveryRider.ID)
	assert.Equal(t, now, patched.UpdatedAt)
	assert.Equal(t, 120.0, patched.TotalPrice, "untouched fields keep their value")
	assert.Equal(t, base.Items, patched.Items)
	assert.Equal(t, StatusPending, base.OrderStatus, "original is not mutated")
}

func TestPatch_IsEmpty(t *testing.T) {
	assert.True(t, Patch{}.IsEmpty())

	loc := Location{Latitude: 12.9, Longitude: 77.6}
	assert.False(t, Patch{RiderLocation: &loc}.IsEmpty())
}

func TestCountTerminal(t *testing.T) {
	orders := []Order{
		{ID: "1", OrderStatus: StatusDelivered},
		{ID: "2", OrderStatus: StatusDelivered},
		{ID: "3", OrderStatus: StatusRejected},
		{ID: "4", OrderStatus: StatusCancelled},
		{ID: "5", OrderStatus: StatusPending},
	}

	assert.Equal(t, Counts{Delivered: 2, Rejected: 1, Cancelled: 1}, CountTerminal(orders))
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abc", ShortID("abc"))
	assert.Equal(t, "a1b2c3", ShortID("665f1e2d9aa1b2c3"))
	assert.Equal(t, "a1b2c3", Order{ID: "665f1e2d9aa1b2c3"}.ShortID())
}
