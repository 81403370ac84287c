// Package memory is an in-process Repository used by tests and the demo
// server.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/yourorg/amazonpay-order-admin/internal/store"
)

// Store keeps orders and refunds in maps. Values are deep-copied on the way
// in and out so callers never share state with the store.
type Store struct {
	mu         sync.RWMutex
	orders     map[int64]*store.Order
	refunds    map[int64]*store.Refund
	nextRefund int64
	now        func() time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		orders:  make(map[int64]*store.Order),
		refunds: make(map[int64]*store.Refund),
		now:     time.Now,
	}
}

func clone[T any](v *T) *T {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("memory: clone: %v", err))
	}
	out := new(T)
	if err := json.Unmarshal(raw, out); err != nil {
		panic(fmt.Sprintf("memory: clone: %v", err))
	}
	return out
}

// GetOrder implements store.Repository.
func (s *Store) GetOrder(_ context.Context, id int64) (*store.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, store.ErrNotFound)
	}
	return clone(o), nil
}

// SaveOrder implements store.Repository.
func (s *Store) SaveOrder(_ context.Context, order *store.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = clone(order)
	return nil
}

// CreateRefund implements store.Repository.
func (s *Store) CreateRefund(_ context.Context, req store.RefundRequest) (*store.Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[req.OrderID]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", req.OrderID, store.ErrNotFound)
	}
	if err := store.ValidateRefund(order, s.refundsFor(order), req.Amount); err != nil {
		return nil, err
	}

	s.nextRefund++
	refund := &store.Refund{
		ID:        s.nextRefund,
		OrderID:   req.OrderID,
		Amount:    req.Amount,
		Reason:    req.Reason,
		CreatedAt: s.now(),
	}
	s.refunds[refund.ID] = clone(refund)
	return refund, nil
}

// SaveRefund implements store.Repository.
func (s *Store) SaveRefund(_ context.Context, refund *store.Refund) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.refunds[refund.ID]; !ok {
		return fmt.Errorf("refund %d: %w", refund.ID, store.ErrNotFound)
	}
	s.refunds[refund.ID] = clone(refund)
	return nil
}

// ListRefunds implements store.Repository.
func (s *Store) ListRefunds(_ context.Context, orderID int64) ([]*store.Refund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", orderID, store.ErrNotFound)
	}
	refunds := s.refundsFor(order)
	out := make([]*store.Refund, 0, len(refunds))
	for _, r := range refunds {
		out = append(out, clone(r))
	}
	return out, nil
}

// refundsFor returns the order's refunds ordered by ID. It must be called
// with s.mu held.
func (s *Store) refundsFor(order *store.Order) []*store.Refund {
	var out []*store.Refund
	for _, r := range s.refunds {
		if r.OrderID == order.ID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
