package engine

import (
	"boardsync/internal/model"
	"boardsync/internal/store"
	"boardsync/internal/util"

	"go.uber.org/zap"
)

// Change describes one entity mutation: what the store held before and
// what it holds now. Exactly one of the order/table pairs is set.
type Change struct {
	OrderBefore *model.Order
	OrderAfter  *model.Order
	TableBefore *model.Table
	TableAfter  *model.Table
	// OrderCreated marks a change that introduced the order to the
	// working set rather than moving an existing one.
	OrderCreated bool
}

// Ignore reasons recorded when an event produces no mutation.
const (
	reasonDuplicate  = "duplicate"
	reasonUnknown    = "unknown_entity"
	reasonIdempotent = "already_applied"
	reasonStale      = "stale_version"
	reasonOutOfOrder = "out_of_order"
	reasonCancelled  = "cancelled"
)

// Reconciler applies push events and confirmed local actions to the store
// under the idempotency and ordering rules of the order state machine.
type Reconciler struct {
	store  *store.Store
	logger *zap.Logger
}

// NewReconciler creates a reconciler over the given store.
func NewReconciler(st *store.Store) *Reconciler {
	return &Reconciler{store: st, logger: util.GetLogger()}
}

// ApplyNewOrder inserts an announced order. Returns nil when the order is
// already present: a push event and an optimistic local path can race to
// create the same entry, and the loser must be a no-op.
func (r *Reconciler) ApplyNewOrder(e model.NewOrderEvent) *Change {
	if _, ok := r.store.Order(e.Order.ID); ok {
		util.EventsIgnoredTotal.WithLabelValues(model.EventTypeNewOrder, reasonDuplicate).Inc()
		r.logger.Debug("Duplicate NewOrder suppressed", zap.String("order_id", e.Order.ID))
		return nil
	}
	if e.Order.Status == model.StatusCancelled {
		// Cancelled orders never enter the working set.
		util.EventsIgnoredTotal.WithLabelValues(model.EventTypeNewOrder, reasonCancelled).Inc()
		return nil
	}

	r.store.UpsertOrder(e.Order)
	util.EventsAppliedTotal.WithLabelValues(model.EventTypeNewOrder).Inc()

	after := e.Order
	return &Change{OrderAfter: &after, OrderCreated: true}
}

// ApplyOrderStatus applies a status change pushed by the backend.
func (r *Reconciler) ApplyOrderStatus(e model.OrderStatusUpdatedEvent) *Change {
	return r.applyOrderStatus(e.OrderID, e.NewStatus, e.Version)
}

// ApplyLocalOrderStatus applies a status change after the originating REST
// mutation succeeded. The push event confirming it later arrives as an
// authoritative duplicate and becomes a no-op.
func (r *Reconciler) ApplyLocalOrderStatus(orderID string, status model.OrderStatus) *Change {
	return r.applyOrderStatus(orderID, status, 0)
}

func (r *Reconciler) applyOrderStatus(orderID string, status model.OrderStatus, version int64) *Change {
	before, ok := r.store.Order(orderID)
	if !ok {
		// The order may belong to a snapshot window not yet loaded; the
		// next snapshot reconciles it.
		util.EventsIgnoredTotal.WithLabelValues(model.EventTypeOrderStatusUpdated, reasonUnknown).Inc()
		r.logger.Info("Ignoring status update for unknown order",
			zap.String("order_id", orderID), zap.String("new_status", string(status)))
		return nil
	}

	if before.Status == status {
		// A duplicate still advances the stored version, otherwise a later
		// out-of-order event with an intermediate version would pass the
		// staleness gate below and move the order backward.
		if version > before.Version {
			after := before
			after.Version = version
			r.store.UpsertOrder(after)
		}
		util.EventsIgnoredTotal.WithLabelValues(model.EventTypeOrderStatusUpdated, reasonIdempotent).Inc()
		return nil
	}

	if version > 0 && before.Version > 0 && version <= before.Version {
		util.EventsIgnoredTotal.WithLabelValues(model.EventTypeOrderStatusUpdated, reasonStale).Inc()
		r.logger.Warn("Ignoring stale status update",
			zap.String("order_id", orderID),
			zap.Int64("event_version", version),
			zap.Int64("store_version", before.Version))
		return nil
	}

	// Without versions to compare, the transition graph is the only
	// defense against out-of-order delivery.
	if version == 0 && !model.CanTransition(before.Status, status) {
		util.EventsIgnoredTotal.WithLabelValues(model.EventTypeOrderStatusUpdated, reasonOutOfOrder).Inc()
		r.logger.Warn("Ignoring backward status update",
			zap.String("order_id", orderID),
			zap.String("from", string(before.Status)),
			zap.String("to", string(status)))
		return nil
	}

	after := before
	after.Status = status
	if version > 0 {
		after.Version = version
	}

	switch status {
	case model.StatusCancelled:
		// Rejection flows hide the order entirely rather than show it
		// terminal.
		r.store.RemoveOrder(orderID)
	case model.StatusDelivered:
		r.store.UpsertOrder(after)
		r.store.PushDelivered(after)
	default:
		r.store.UpsertOrder(after)
	}

	util.EventsAppliedTotal.WithLabelValues(model.EventTypeOrderStatusUpdated).Inc()
	return &Change{OrderBefore: &before, OrderAfter: &after}
}

// ApplyTableState applies a table occupancy change pushed by the backend.
func (r *Reconciler) ApplyTableState(e model.TableStateUpdatedEvent) *Change {
	return r.applyTableState(e.TableID, e.NewState, e.Version)
}

// ApplyLocalTableState applies a table change after its REST mutation
// succeeded.
func (r *Reconciler) ApplyLocalTableState(tableID string, status model.TableStatus) *Change {
	return r.applyTableState(tableID, status, 0)
}

func (r *Reconciler) applyTableState(tableID string, status model.TableStatus, version int64) *Change {
	before, ok := r.store.Table(tableID)
	if !ok {
		util.EventsIgnoredTotal.WithLabelValues(model.EventTypeTableStateUpdated, reasonUnknown).Inc()
		r.logger.Info("Ignoring state update for unknown table",
			zap.String("table_id", tableID), zap.String("new_state", string(status)))
		return nil
	}

	if before.Status == status {
		if version > before.Version {
			after := before
			after.Version = version
			r.store.UpsertTable(after)
		}
		util.EventsIgnoredTotal.WithLabelValues(model.EventTypeTableStateUpdated, reasonIdempotent).Inc()
		return nil
	}

	if version > 0 && before.Version > 0 && version <= before.Version {
		util.EventsIgnoredTotal.WithLabelValues(model.EventTypeTableStateUpdated, reasonStale).Inc()
		return nil
	}

	// Table states are not ordered; any state may follow any other.
	after := before
	after.Status = status
	if version > 0 {
		after.Version = version
	}
	r.store.UpsertTable(after)

	util.EventsAppliedTotal.WithLabelValues(model.EventTypeTableStateUpdated).Inc()
	return &Change{TableBefore: &before, TableAfter: &after}
}
