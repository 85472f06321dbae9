// Package store holds the local working set of orders and tables for one
// engine instance. It is the single source of truth the presentation layer
// renders from; only the engine's run loop writes to it.
package store

import (
	"sort"
	"sync"

	"boardsync/internal/model"
)

// Counts aggregates the per-bucket order counts for the board header.
type Counts struct {
	PerBucket map[model.Bucket]int `json:"perBucket"`
	// Active counts orders that have not reached a terminal status.
	Active int `json:"active"`
}

// Store is the in-memory keyed collection of orders and tables.
type Store struct {
	mu      sync.RWMutex
	orders  map[string]model.Order
	tables  map[string]model.Table
	history *Ring
}

// New creates an empty store. historyCap bounds the recently-delivered
// list; values below 1 fall back to the default of 5.
func New(historyCap int) *Store {
	return &Store{
		orders:  make(map[string]model.Order),
		tables:  make(map[string]model.Table),
		history: NewRing(historyCap),
	}
}

// UpsertOrder inserts or replaces an order wholesale. Payloads from the
// backend are always complete representations, so fields are never merged.
func (s *Store) UpsertOrder(o model.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
}

// Order returns the order with the given id, if present.
func (s *Store) Order(id string) (model.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	return o, ok
}

// RemoveOrder drops an order entirely. Used for rejection/cancellation
// flows the board hides rather than shows terminal.
func (s *Store) RemoveOrder(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.orders, id)
}

// UpsertTable inserts or replaces a table wholesale.
func (s *Store) UpsertTable(t model.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[t.ID] = t
}

// Table returns the table with the given id, if present.
func (s *Store) Table(id string) (model.Table, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[id]
	return t, ok
}

// ReplaceOrders swaps the full order working set in one step. The new map
// is built before the lock is taken, so a concurrent reader sees either
// the old set or the new set, never a half-populated mix.
func (s *Store) ReplaceOrders(orders []model.Order) {
	next := make(map[string]model.Order, len(orders))
	for _, o := range orders {
		next[o.ID] = o
	}
	s.mu.Lock()
	s.orders = next
	s.mu.Unlock()
}

// ReplaceTables swaps the full table working set in one step.
func (s *Store) ReplaceTables(tables []model.Table) {
	next := make(map[string]model.Table, len(tables))
	for _, t := range tables {
		next[t.ID] = t
	}
	s.mu.Lock()
	s.tables = next
	s.mu.Unlock()
}

// OrdersByStatus returns the current orders in a status, most recent
// first, so new and urgent cards surface at the top of a kanban column.
func (s *Store) OrdersByStatus(status model.OrderStatus) []model.Order {
	s.mu.RLock()
	out := make([]model.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if o.Status == status {
			out = append(out, o)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Tables returns all tables sorted by code.
func (s *Store) Tables() []model.Table {
	s.mu.RLock()
	out := make([]model.Table, 0, len(s.tables))
	for _, t := range s.tables {
		out = append(out, t)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Counts returns the per-bucket order counts and the active total.
func (s *Store) Counts() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := Counts{PerBucket: make(map[model.Bucket]int, len(model.Buckets()))}
	for _, b := range model.Buckets() {
		c.PerBucket[b] = 0
	}
	for _, o := range s.orders {
		if b, ok := model.BucketFor(o.Status); ok {
			c.PerBucket[b]++
		}
		if !model.IsTerminal(o.Status) {
			c.Active++
		}
	}
	return c
}

// PushDelivered records an order into the bounded recent-history view.
func (s *Store) PushDelivered(o model.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.Push(o)
}

// RecentlyDelivered returns the bounded recent-history view, newest first.
func (s *Store) RecentlyDelivered() []model.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.Items()
}
