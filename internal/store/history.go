package store

import "boardsync/internal/model"

// DefaultHistoryCap is how many delivered orders the board keeps visible.
const DefaultHistoryCap = 5

// Ring is a fixed-capacity sequence of recently delivered orders, newest
// first. Pushing beyond capacity evicts the oldest entry.
type Ring struct {
	cap   int
	items []model.Order
}

// NewRing creates a ring with the given capacity. Values below 1 fall back
// to DefaultHistoryCap.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = DefaultHistoryCap
	}
	return &Ring{cap: capacity, items: make([]model.Order, 0, capacity)}
}

// Cap returns the ring capacity.
func (r *Ring) Cap() int { return r.cap }

// Len returns the number of orders currently retained.
func (r *Ring) Len() int { return len(r.items) }

// Push prepends an order, evicting the oldest entry when full. Pushing an
// order already present replaces the previous entry instead of duplicating
// it.
func (r *Ring) Push(o model.Order) {
	for i, existing := range r.items {
		if existing.ID == o.ID {
			r.items = append(r.items[:i], r.items[i+1:]...)
			break
		}
	}
	r.items = append([]model.Order{o}, r.items...)
	if len(r.items) > r.cap {
		r.items = r.items[:r.cap]
	}
}

// Items returns a copy of the retained orders, newest first.
func (r *Ring) Items() []model.Order {
	out := make([]model.Order, len(r.items))
	copy(out, r.items)
	return out
}
