package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"chemdist/backend/internal/domain"
	"chemdist/backend/internal/inventory"
	"chemdist/backend/internal/store"
)

var ErrInvalidStatus = errors.New("invalid order status")

type Service struct {
	orders      store.OrderStore
	decrementer *inventory.Decrementer
	now         func() time.Time
}

func New(orders store.OrderStore, decrementer *inventory.Decrementer) *Service {
	return &Service{
		orders:      orders,
		decrementer: decrementer,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// UpdateOrderStatus moves an order to status. Moving into Completed runs the
// stock decrement with the status the order had before; a stock failure is
// returned as a warning next to the updated order, the status change stays.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID string, status string) (domain.OrderStatusUpdateResponse, error) {
	orderID = domain.NormalizeID(orderID)
	status = strings.TrimSpace(status)
	if orderID == "" {
		return domain.OrderStatusUpdateResponse{}, store.ErrInvalidInput
	}
	if !domain.IsValidOrderStatus(status) {
		return domain.OrderStatusUpdateResponse{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	updated, previous, err := s.orders.UpdateOrderStatus(ctx, orderID, status, s.now())
	if err != nil {
		return domain.OrderStatusUpdateResponse{}, err
	}

	resp := domain.OrderStatusUpdateResponse{Order: *updated}
	if status != domain.OrderStatusCompleted {
		return resp, nil
	}

	result := s.decrementer.Apply(ctx, orderID, &previous)
	resp.Stock = &result
	if !result.Success {
		log.Printf("[service] WARN: order %s completed with stock errors: %s", orderID, result.Error)
		resp.Warning = "order completed but stock update failed: " + result.Error
	}
	return resp, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	orderID = domain.NormalizeID(orderID)
	if orderID == "" {
		return nil, store.ErrInvalidInput
	}
	return s.orders.GetOrder(ctx, orderID)
}

// ApplyStockDecrement runs the decrement directly, for callers that manage
// the order status themselves.
func (s *Service) ApplyStockDecrement(ctx context.Context, req domain.StockDecrementRequest) domain.StockDecrementResult {
	return s.decrementer.Apply(ctx, req.OrderID, req.PreviousStatus)
}

func (s *Service) Atomic() bool {
	return s.decrementer.Atomic()
}
