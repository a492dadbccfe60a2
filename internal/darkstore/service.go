package darkstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/suevga/suvega-darkstore-sub001/internal/core/logging"
	"github.com/suevga/suvega-darkstore-sub001/internal/core/order"
	"github.com/suevga/suvega-darkstore-sub001/internal/metrics"
	"github.com/suevga/suvega-darkstore-sub001/internal/push"
	"github.com/suevga/suvega-darkstore-sub001/internal/realtime"
)

// OrdersAPI is the subset of the REST client the service uses.
type OrdersAPI interface {
	ListOrders(ctx context.Context, darkStoreID string) (json.RawMessage, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status order.Status) (*order.Order, error)
	DeleteOrder(ctx context.Context, orderID string) error
}

// Service combines the registry with the REST client, the realtime bridge
// and the push lifecycle for one dark store.
type Service struct {
	reg         *Registry
	api         OrdersAPI
	darkStoreID string
	bridge      *realtime.Bridge
	push        *push.Lifecycle
	metrics     *metrics.Metrics
	log         zerolog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithBridge runs b as part of Run.
func WithBridge(b *realtime.Bridge) ServiceOption {
	return func(s *Service) { s.bridge = b }
}

// WithPush runs the push lifecycle as part of Run.
func WithPush(l *push.Lifecycle) ServiceOption {
	return func(s *Service) { s.push = l }
}

// WithMetrics records refresh results.
func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a Service for darkStoreID.
func NewService(reg *Registry, api OrdersAPI, darkStoreID string, opts ...ServiceOption) *Service {
	s := &Service{
		reg:         reg,
		api:         api,
		darkStoreID: darkStoreID,
		log:         logging.Component("service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the stores the service writes to.
func (s *Service) Registry() *Registry { return s.reg }

// Refresh replaces the ledger with the server's order list. Transport
// errors land in the ledger's error field and are also returned; a
// malformed payload empties the ledger without an error.
func (s *Service) Refresh(ctx context.Context) error {
	ctx = logging.WithDarkStoreID(ctx, s.darkStoreID)

	s.reg.Ledger.SetLoading(true)
	defer s.reg.Ledger.SetLoading(false)

	raw, err := s.api.ListOrders(ctx, s.darkStoreID)
	if err != nil {
		s.metrics.Refresh(false)
		s.reg.Ledger.SetError(err)
		s.log.Warn().Ctx(ctx).Err(err).Msg("refresh orders")
		return fmt.Errorf("refresh orders: %w", err)
	}

	res := s.reg.Ledger.SetOrdersPayload(raw)
	s.metrics.Refresh(res.Valid)
	s.metrics.SetOrders(s.reg.Ledger.TotalOrderCount())
	if !res.Valid {
		s.log.Warn().Ctx(ctx).Str("reason", res.Reason).Msg("order payload rejected, ledger emptied")
		return nil
	}

	s.log.Debug().Ctx(ctx).Int("orders", len(res.Orders)).Msg("orders refreshed")
	return nil
}

// DeleteOrder deletes on the server, then removes the order locally.
func (s *Service) DeleteOrder(ctx context.Context, orderID string) error {
	if err := s.api.DeleteOrder(ctx, orderID); err != nil {
		s.reg.Ledger.SetError(err)
		return fmt.Errorf("delete order %s: %w", orderID, err)
	}
	s.reg.Ledger.DeleteOrder(orderID)
	s.metrics.SetOrders(s.reg.Ledger.TotalOrderCount())
	return nil
}

// UpdateOrderStatus changes the status on the server, then merges the
// result into the ledger. It reports whether the order was held locally.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID string, status order.Status) (bool, error) {
	updated, err := s.api.UpdateOrderStatus(ctx, orderID, status)
	if err != nil {
		s.reg.Ledger.SetError(err)
		return false, fmt.Errorf("update order %s: %w", orderID, err)
	}

	patch := order.Patch{OrderStatus: &status}
	if updated != nil {
		patch.DeliveryRider = updated.DeliveryRider
		if !updated.UpdatedAt.IsZero() {
			patch.UpdatedAt = &updated.UpdatedAt
		}
	}
	return s.reg.Ledger.UpdateOrder(orderID, patch), nil
}

// Run refreshes once, then runs the push lifecycle and the realtime bridge
// until ctx is cancelled. A failed initial refresh is not fatal; the ledger
// keeps its rehydrated state.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(logging.WithDarkStoreID(ctx, s.darkStoreID))
	defer cancel()

	if err := s.Refresh(ctx); err != nil {
		s.log.Warn().Ctx(ctx).Err(err).Msg("initial refresh failed, serving cached orders")
	}

	var wg sync.WaitGroup
	if s.push != nil {
		s.push.SetOwner(ctx, s.darkStoreID)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.push.Listen(ctx)
		}()
	}

	var err error
	if s.bridge != nil {
		err = s.bridge.Run(ctx)
	} else {
		<-ctx.Done()
		err = ctx.Err()
	}
	cancel()
	wg.Wait()

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
