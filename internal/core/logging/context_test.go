package logging

import (
	"context"
	"testing"
)

func TestWithDarkStoreID(t *testing.T) {
	ctx := WithDarkStoreID(context.Background(), "store-42")

	if got := GetDarkStoreID(ctx); got != "store-42" {
		t.Errorf("GetDarkStoreID() = %q, want %q", got, "store-42")
	}
}

func TestWithConnectionID(t *testing.T) {
	ctx := WithConnectionID(context.Background(), "conn-1")

	if got := GetConnectionID(ctx); got != "conn-1" {
		t.Errorf("GetConnectionID() = %q, want %q", got, "conn-1")
	}
}

func TestGetDarkStoreID_NotPresent(t *testing.T) {
	if got := GetDarkStoreID(context.Background()); got != "" {
		t.Errorf("GetDarkStoreID() = %q, want empty string", got)
	}
}
