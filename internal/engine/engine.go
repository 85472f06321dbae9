// Package engine is the order/table synchronization core. One Engine is
// instantiated per display surface (kitchen board, waiter board, live
// dashboard); it owns the local store, keeps it live against the push
// channel, repairs it from REST snapshots, and emits UI effects to
// whatever presentation layer subscribed.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"boardsync/internal/channel"
	"boardsync/internal/model"
	"boardsync/internal/rest"
	"boardsync/internal/store"
	"boardsync/internal/util"

	"go.uber.org/zap"
)

// Action is an operator-initiated order mutation. The REST call runs
// first; the local state change applies only on confirmation, so the board
// never shows a status the backend rejected.
type Action string

const (
	ActionStart   Action = "start"
	ActionReady   Action = "ready"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionDeliver Action = "deliver"
)

// actionStatus maps each action to the status it confirms.
var actionStatus = map[Action]model.OrderStatus{
	ActionStart:   model.StatusInPreparation,
	ActionReady:   model.StatusReady,
	ActionApprove: model.StatusPending,
	ActionReject:  model.StatusCancelled,
	ActionDeliver: model.StatusDelivered,
}

// Options configures one engine instance.
type Options struct {
	// Scope narrows the snapshot for this surface.
	Scope rest.Scope
	// HistoryCap bounds the recently-delivered list; 0 means the default.
	HistoryCap int
	// TrackKPI enables the dashboard revenue/ticket summary.
	TrackKPI bool
}

// Engine composes the store, snapshot loader, event reconciler and
// transition notifier behind one run loop. All store writes happen on that
// loop goroutine; readers see consistent projections at any time.
type Engine struct {
	st       *store.Store
	client   *rest.Client
	ch       channel.Channel
	loader   *Loader
	rec      *Reconciler
	notifier *Notifier
	logger   *zap.Logger
	trackKPI bool

	commands chan func(context.Context)

	mu            sync.RWMutex
	conn          model.ConnectionState
	everConnected bool
	subs          []func([]Effect)
}

// New wires an engine from its collaborators. Nothing is global: two
// engines for two restaurants coexist without cross-contamination.
func New(client *rest.Client, ch channel.Channel, opts Options) *Engine {
	st := store.New(opts.HistoryCap)
	return &Engine{
		st:       st,
		client:   client,
		ch:       ch,
		loader:   NewLoader(client, st, opts.Scope),
		rec:      NewReconciler(st),
		notifier: NewNotifier(opts.TrackKPI),
		logger:   util.GetLogger(),
		trackKPI: opts.TrackKPI,
		commands: make(chan func(context.Context), 16),
	}
}

// Start performs the startup snapshot, opens the channel and launches the
// run loop. A failed initial load is reported as a load-error effect, not
// a fatal error: the board renders empty with a retry banner and recovers
// on the next refresh or reconnect.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.loader.Load(ctx, TriggerStartup); err != nil {
		e.logger.Error("Initial snapshot failed", zap.Error(err))
		e.enqueuePublish([]Effect{LoadError{Message: "could not load board data"}})
	} else {
		e.updateGauge()
		e.enqueuePublish(e.snapshotEffects(ctx))
	}

	if err := e.ch.Start(ctx); err != nil {
		return fmt.Errorf("start channel: %w", err)
	}

	go e.run(ctx)
	return nil
}

// run is the single-writer loop: every store mutation, from push events,
// refreshes or confirmed actions, executes here in arrival order.
func (e *Engine) run(ctx context.Context) {
	events := e.ch.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				// Channel gone for good; commands (manual refresh,
				// confirmed actions) keep the board usable.
				events = nil
				continue
			}
			e.handleEvent(ctx, ev)
		case fn := <-e.commands:
			fn(ctx)
		}
	}
}

func (e *Engine) handleEvent(ctx context.Context, ev model.Event) {
	switch ev := ev.(type) {
	case model.NewOrderEvent:
		e.finishOrderChange(e.rec.ApplyNewOrder(ev))
	case model.OrderStatusUpdatedEvent:
		e.finishOrderChange(e.rec.ApplyOrderStatus(ev))
	case model.TableStateUpdatedEvent:
		e.publish(e.notifier.TableEffects(e.rec.ApplyTableState(ev)))
	case model.RefreshTickEvent:
		e.reload(ctx, TriggerPoll)
	case model.ConnectionChangedEvent:
		e.handleConnection(ctx, ev)
	}
}

func (e *Engine) handleConnection(ctx context.Context, ev model.ConnectionChangedEvent) {
	e.mu.Lock()
	wasEverConnected := e.everConnected
	e.conn.Connected = ev.Connected
	e.conn.ReconnectAttempts = ev.Attempts
	if ev.Connected {
		e.everConnected = true
		e.conn.Degraded = false
	} else if ev.Final {
		e.conn.Degraded = true
	}
	state := e.conn
	e.mu.Unlock()

	e.publish([]Effect{ConnectionIndicator{State: state}})

	// Events emitted during an outage are permanently lost; after a
	// reconnect (not the initial connect) the snapshot must repair the
	// store before further events are trusted. The loop is serial, so
	// anything queued behind this reload applies to fresh state.
	if ev.Connected && wasEverConnected {
		e.reload(ctx, TriggerReconnect)
	}
}

// reload pulls a snapshot and publishes the outcome. On failure the store
// keeps its last-known state.
func (e *Engine) reload(ctx context.Context, trigger string) {
	if err := e.loader.Load(ctx, trigger); err != nil {
		e.logger.Error("Snapshot reload failed", zap.String("trigger", trigger), zap.Error(err))
		e.publish([]Effect{LoadError{Message: "could not refresh board data"}})
		return
	}
	e.updateGauge()
	e.publish(e.snapshotEffects(ctx))
}

// snapshotEffects builds the effect batch for a successful snapshot. For
// KPI-tracking surfaces it also re-seeds the summary accumulators from the
// backend, so revenue counted before startup or during an outage is never
// missed. A failed summary fetch keeps the running accumulators.
func (e *Engine) snapshotEffects(ctx context.Context) []Effect {
	effects := []Effect{SnapshotApplied{}, CounterUpdate{Counts: e.st.Counts()}}
	if !e.trackKPI {
		return effects
	}

	summary, err := e.client.DashboardSummary(ctx)
	if err != nil {
		e.logger.Warn("Summary snapshot failed, keeping running totals", zap.Error(err))
		return effects
	}
	e.notifier.SeedSummary(summary)
	return append(effects, SummaryUpdate{Summary: summary})
}

func (e *Engine) finishOrderChange(c *Change) {
	if c == nil {
		return
	}
	e.updateGauge()
	e.publish(e.notifier.OrderEffects(c, e.st.Counts()))
}

func (e *Engine) updateGauge() {
	util.ActiveOrders.Set(float64(e.st.Counts().Active))
}

// Refresh schedules a manual snapshot reload on the run loop. The outcome
// arrives as SnapshotApplied or LoadError effects.
func (e *Engine) Refresh() {
	e.commands <- func(ctx context.Context) { e.reload(ctx, TriggerManual) }
}

// PerformAction executes an operator action: REST first, local apply only
// on success. The returned error carries the server's message when the
// backend rejected the mutation; a matching error toast is also emitted.
func (e *Engine) PerformAction(ctx context.Context, action Action, orderID string) error {
	status, ok := actionStatus[action]
	if !ok {
		return fmt.Errorf("unknown action %q", action)
	}

	var err error
	switch action {
	case ActionStart:
		err = e.client.StartOrder(ctx, orderID)
	case ActionReady:
		err = e.client.MarkOrderReady(ctx, orderID)
	case ActionApprove:
		err = e.client.ApproveOrder(ctx, orderID)
	case ActionReject:
		err = e.client.RejectOrder(ctx, orderID)
	case ActionDeliver:
		err = e.client.DeliverOrder(ctx, orderID)
	}
	if err != nil {
		util.ActionsTotal.WithLabelValues(string(action), "failure").Inc()
		e.enqueuePublish([]Effect{Toast{Level: ToastError, Message: actionErrorMessage(action, err)}})
		return fmt.Errorf("action %s on order %s: %w", action, orderID, err)
	}

	util.ActionsTotal.WithLabelValues(string(action), "success").Inc()
	e.commands <- func(context.Context) {
		e.finishOrderChange(e.rec.ApplyLocalOrderStatus(orderID, status))
	}
	return nil
}

// SetTableStatus executes a table occupancy change with the same
// confirm-then-apply contract as order actions.
func (e *Engine) SetTableStatus(ctx context.Context, tableID string, status model.TableStatus) error {
	if err := e.client.UpdateTable(ctx, tableID, status); err != nil {
		util.ActionsTotal.WithLabelValues("table_update", "failure").Inc()
		e.enqueuePublish([]Effect{Toast{Level: ToastError, Message: "Could not update table"}})
		return fmt.Errorf("update table %s: %w", tableID, err)
	}

	util.ActionsTotal.WithLabelValues("table_update", "success").Inc()
	e.commands <- func(context.Context) {
		e.publish(e.notifier.TableEffects(e.rec.ApplyLocalTableState(tableID, status)))
	}
	return nil
}

// OnProjectionChanged subscribes to effect batches. Every callback runs on
// the engine's loop goroutine, including the toasts for rejected actions,
// and must not call mutating engine methods synchronously; schedule
// follow-up work instead.
func (e *Engine) OnProjectionChanged(fn func([]Effect)) {
	e.mu.Lock()
	e.subs = append(e.subs, fn)
	e.mu.Unlock()
}

// OrdersByStatus returns the current projection for one status, most
// recent first.
func (e *Engine) OrdersByStatus(status model.OrderStatus) []model.Order {
	return e.st.OrdersByStatus(status)
}

// Tables returns all tables sorted by code.
func (e *Engine) Tables() []model.Table { return e.st.Tables() }

// Counts returns the current per-bucket counts.
func (e *Engine) Counts() store.Counts { return e.st.Counts() }

// RecentlyDelivered returns the bounded delivered-order history.
func (e *Engine) RecentlyDelivered() []model.Order { return e.st.RecentlyDelivered() }

// Summary returns the dashboard KPI block. Zero-valued unless the engine
// was built with TrackKPI.
func (e *Engine) Summary() model.Summary { return e.notifier.Summary() }

// ConnectionState reports the push channel's health.
func (e *Engine) ConnectionState() model.ConnectionState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.conn
}

// enqueuePublish hands an effect batch to the run loop for delivery, so
// subscribers only ever hear from the loop goroutine regardless of which
// goroutine produced the effects.
func (e *Engine) enqueuePublish(effects []Effect) {
	e.commands <- func(context.Context) { e.publish(effects) }
}

func (e *Engine) publish(effects []Effect) {
	if len(effects) == 0 {
		return
	}
	e.mu.RLock()
	subs := make([]func([]Effect), len(e.subs))
	copy(subs, e.subs)
	e.mu.RUnlock()

	for _, fn := range subs {
		fn(effects)
	}
}

func actionErrorMessage(action Action, err error) string {
	var apiErr *rest.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	switch action {
	case ActionStart:
		return "Could not start the order"
	case ActionReady:
		return "Could not mark the order ready"
	case ActionApprove:
		return "Could not approve the order"
	case ActionReject:
		return "Could not reject the order"
	case ActionDeliver:
		return "Could not mark the order delivered"
	default:
		return "Action failed"
	}
}
