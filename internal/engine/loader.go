package engine

import (
	"context"
	"fmt"
	"time"

	"boardsync/internal/model"
	"boardsync/internal/rest"
	"boardsync/internal/store"
	"boardsync/internal/util"

	"go.uber.org/zap"
)

// Snapshot load triggers. A snapshot is pulled at exactly these moments.
const (
	TriggerStartup   = "startup"
	TriggerManual    = "manual"
	TriggerReconnect = "reconnect"
	TriggerPoll      = "poll"
)

// Loader pulls authoritative snapshots from the backend to initialize or
// repair the store.
type Loader struct {
	client *rest.Client
	store  *store.Store
	scope  rest.Scope
	logger *zap.Logger
}

// NewLoader creates a snapshot loader for one engine instance.
func NewLoader(client *rest.Client, st *store.Store, scope rest.Scope) *Loader {
	return &Loader{
		client: client,
		store:  st,
		scope:  scope,
		logger: util.GetLogger(),
	}
}

// Load replaces the store's full working set from a fresh snapshot. Both
// entity kinds are fetched before either collection is swapped, so a
// failure partway leaves the store exactly as it was: stale-but-present
// beats empty.
func (l *Loader) Load(ctx context.Context, trigger string) error {
	ctx, span := util.StartSpan(ctx, "engine.LoadSnapshot")
	defer span.End()

	start := time.Now()

	orders, err := l.client.KitchenOrders(ctx, l.scope)
	if err != nil {
		util.SnapshotLoadsTotal.WithLabelValues(trigger, "failure").Inc()
		return fmt.Errorf("snapshot load (%s): %w", trigger, err)
	}

	tables, err := l.client.Tables(ctx)
	if err != nil {
		util.SnapshotLoadsTotal.WithLabelValues(trigger, "failure").Inc()
		return fmt.Errorf("snapshot load (%s): %w", trigger, err)
	}

	// Cancellation is filtered at snapshot time, not render time; the
	// filter holds even when the backend ignored the scope parameter.
	active := make([]model.Order, 0, len(orders))
	for _, o := range orders {
		if o.Status == model.StatusCancelled {
			continue
		}
		active = append(active, o)
	}

	l.store.ReplaceOrders(active)
	l.store.ReplaceTables(tables)

	util.SnapshotLoadsTotal.WithLabelValues(trigger, "success").Inc()
	util.SnapshotLoadLatency.Observe(time.Since(start).Seconds())

	l.logger.Info("Snapshot applied",
		zap.String("trigger", trigger),
		zap.Int("orders", len(active)),
		zap.Int("tables", len(tables)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}
