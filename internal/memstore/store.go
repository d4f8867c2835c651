// Package memstore provides the in-memory order log. The counter runs as a
// single logical session of shared mutable state; one mutex guards the whole
// log so status transitions and maintenance sweeps never race.
package memstore

import (
	"slices"
	"sync"

	"github.com/xenking/coffee-counter/internal/domain/order"
)

// Compile-time check ensuring Store satisfies the repository contract.
var _ order.Repository = (*Store)(nil)

// Store is an append-only in-memory order log. It implements
// order.Repository.
type Store struct {
	mu     sync.Mutex
	orders []order.Order
}

// New creates an empty Store.
func New() *Store {
	return &Store{}
}

// Append stores a copy of the order. Orders with no items or non-positive
// quantities are rejected: an invalid order must never enter the log.
func (s *Store) Append(o *order.Order) error {
	if len(o.Items) == 0 {
		return order.ErrEmptyItems
	}
	for key, qty := range o.Items {
		if qty <= 0 {
			return &order.InvalidQuantityError{Key: key}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, *o)
	return nil
}

// CompleteFirstPending flips the earliest pending order carrying the ticket
// to Completed. Completed orders with the same ticket are skipped, so a
// recycled ticket always resolves to the visible pending one. Exactly one
// order transitions per call.
func (s *Store) CompleteFirstPending(ticket string) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.orders {
		if s.orders[i].Ticket != ticket || s.orders[i].Status != order.StatusPending {
			continue
		}
		s.orders[i].Status = order.StatusCompleted
		o := s.orders[i]
		return &o, nil
	}
	return nil, &order.NotFoundError{Ticket: ticket}
}

// Pending returns pending orders sorted ascending by creation time. The sort
// is stable, so orders created within the same clock tick keep their
// insertion order.
func (s *Store) Pending() []order.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]order.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if o.Status == order.StatusPending {
			out = append(out, o)
		}
	}
	slices.SortStableFunc(out, func(a, b order.Order) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}

// Recent returns up to limit most recent orders, newest first, any status.
func (s *Store) Recent(limit int) []order.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.orders) {
		limit = len(s.orders)
	}
	out := make([]order.Order, 0, limit)
	for i := len(s.orders) - 1; i >= len(s.orders)-limit; i-- {
		out = append(out, s.orders[i])
	}
	return out
}

// ClearCompleted removes every completed order and reports how many were
// dropped. Pending orders keep their relative order. Idempotent.
func (s *Store) ClearCompleted() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.orders[:0]
	for _, o := range s.orders {
		if o.Status != order.StatusCompleted {
			kept = append(kept, o)
		}
	}
	cleared := len(s.orders) - len(kept)
	s.orders = kept
	return cleared
}

// All returns a copy of the full log in insertion order.
func (s *Store) All() []order.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.orders)
}

// Len reports the total number of stored orders, any status.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}
