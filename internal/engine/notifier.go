package engine

import (
	"fmt"
	"sync"

	"boardsync/internal/model"
	"boardsync/internal/store"
)

// Effect is the tagged union of everything a mutation asks the
// presentation layer to do. The engine computes effects; it never touches
// the UI itself.
type Effect interface{ isEffect() }

// Relocation moves an order card between kanban buckets. From is empty
// when the order just entered the board; To is empty when it left.
type Relocation struct {
	OrderID   string
	OrderCode string
	From      model.Bucket
	To        model.Bucket
}

// CounterUpdate refreshes the per-bucket counts in the board header.
type CounterUpdate struct {
	Counts store.Counts
}

// Cue names an audio notification.
type Cue string

const (
	CueNewOrder   Cue = "new_order"
	CueOrderReady Cue = "order_ready"
)

// SoundCue asks for an audio notification.
type SoundCue struct {
	Cue Cue
}

// ToastLevel grades a transient notification.
type ToastLevel string

const (
	ToastSuccess ToastLevel = "success"
	ToastError   ToastLevel = "error"
	ToastInfo    ToastLevel = "info"
)

// Toast asks for a transient notification with entity-specific text.
type Toast struct {
	Level   ToastLevel
	Message string
}

// TableStateChanged refreshes one table tile.
type TableStateChanged struct {
	TableID string
	Code    string
	From    model.TableStatus
	To      model.TableStatus
}

// ConnectionIndicator drives the live/disconnected badge. Degraded means
// the reconnection budget is spent and only manual refresh remains.
type ConnectionIndicator struct {
	State model.ConnectionState
}

// LoadError asks for a persistent, retryable error banner. The store kept
// its last-known state.
type LoadError struct {
	Message string
}

// SnapshotApplied tells renderers to redraw everything from the store's
// current projection instead of patching incrementally.
type SnapshotApplied struct{}

// SummaryUpdate refreshes the dashboard KPI block.
type SummaryUpdate struct {
	Summary model.Summary
}

func (Relocation) isEffect()          {}
func (CounterUpdate) isEffect()       {}
func (SoundCue) isEffect()            {}
func (Toast) isEffect()               {}
func (TableStateChanged) isEffect()   {}
func (ConnectionIndicator) isEffect() {}
func (LoadError) isEffect()           {}
func (SnapshotApplied) isEffect()     {}
func (SummaryUpdate) isEffect()       {}

// Notifier turns entity mutations into UI effects. It owns the running
// KPI accumulators for dashboard surfaces but never mutates the store. The
// accumulators are seeded from a backend summary snapshot and maintained
// incrementally between snapshots, so a busy night never re-sums the whole
// day on every event.
type Notifier struct {
	trackKPI bool

	mu      sync.Mutex
	summary model.Summary
}

// NewNotifier creates a notifier. trackKPI enables the dashboard summary
// effects; kitchen and waiter boards leave it off.
func NewNotifier(trackKPI bool) *Notifier {
	return &Notifier{trackKPI: trackKPI}
}

// Summary returns the current KPI block.
func (n *Notifier) Summary() model.Summary {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.summary
}

// SeedSummary replaces the KPI accumulators with an authoritative backend
// snapshot. A dashboard started or reconnected mid-day must not count from
// zero; subsequent orders accumulate on top of the seed.
func (n *Notifier) SeedSummary(s model.Summary) {
	n.mu.Lock()
	n.summary = s
	n.mu.Unlock()
}

// OrderEffects computes the effects of one order mutation given the
// store's post-mutation counts.
func (n *Notifier) OrderEffects(c *Change, counts store.Counts) []Effect {
	if c == nil || c.OrderAfter == nil {
		return nil
	}
	after := *c.OrderAfter

	var effects []Effect

	toBucket, toVisible := model.BucketFor(after.Status)
	if c.OrderCreated {
		if toVisible {
			effects = append(effects, Relocation{
				OrderID:   after.ID,
				OrderCode: after.OrderCode,
				To:        toBucket,
			})
		}
		effects = append(effects,
			SoundCue{Cue: CueNewOrder},
			Toast{
				Level:   ToastInfo,
				Message: fmt.Sprintf("New order #%s for table %s", after.OrderCode, after.TableCode),
			})
		if n.trackKPI {
			n.mu.Lock()
			n.summary.RevenueToday += after.Total
			n.summary.OrdersToday++
			n.summary.AverageTicket = n.summary.RevenueToday / float64(n.summary.OrdersToday)
			summary := n.summary
			n.mu.Unlock()
			effects = append(effects, SummaryUpdate{Summary: summary})
		}
	} else if c.OrderBefore != nil {
		fromBucket, fromVisible := model.BucketFor(c.OrderBefore.Status)
		if fromBucket != toBucket {
			rel := Relocation{OrderID: after.ID, OrderCode: after.OrderCode}
			if fromVisible {
				rel.From = fromBucket
			}
			if toVisible {
				rel.To = toBucket
			}
			effects = append(effects, rel)
		}

		switch after.Status {
		case model.StatusReady:
			effects = append(effects,
				SoundCue{Cue: CueOrderReady},
				Toast{
					Level:   ToastSuccess,
					Message: fmt.Sprintf("Order #%s is ready", after.OrderCode),
				})
		case model.StatusDelivered:
			effects = append(effects, Toast{
				Level:   ToastSuccess,
				Message: fmt.Sprintf("Order #%s delivered", after.OrderCode),
			})
		case model.StatusCancelled:
			effects = append(effects, Toast{
				Level:   ToastInfo,
				Message: fmt.Sprintf("Order #%s was cancelled", after.OrderCode),
			})
		}
	}

	effects = append(effects, CounterUpdate{Counts: counts})
	return effects
}

// TableEffects computes the effects of one table mutation.
func (n *Notifier) TableEffects(c *Change) []Effect {
	if c == nil || c.TableAfter == nil || c.TableBefore == nil {
		return nil
	}
	return []Effect{TableStateChanged{
		TableID: c.TableAfter.ID,
		Code:    c.TableAfter.Code,
		From:    c.TableBefore.Status,
		To:      c.TableAfter.Status,
	}}
}
