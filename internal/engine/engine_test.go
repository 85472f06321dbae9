package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"boardsync/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChannel feeds scripted events into the engine's run loop.
type fakeChannel struct {
	events chan model.Event
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{events: make(chan model.Event, 16)}
}

func (f *fakeChannel) Start(ctx context.Context) error { return nil }
func (f *fakeChannel) Events() <-chan model.Event      { return f.events }
func (f *fakeChannel) Close() error                    { return nil }

func (f *fakeChannel) push(e model.Event) { f.events <- e }

func connEvent(connected bool) model.ConnectionChangedEvent {
	return model.ConnectionChangedEvent{
		BaseEvent: model.BaseEvent{EventType: model.EventTypeConnectionChanged},
		Connected: connected,
	}
}

// effectRecorder collects published effects across goroutines.
type effectRecorder struct {
	mu      sync.Mutex
	batches [][]Effect
}

func (r *effectRecorder) record(effects []Effect) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, effects)
}

func (r *effectRecorder) find(match func(Effect) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, batch := range r.batches {
		for _, e := range batch {
			if match(e) {
				return true
			}
		}
	}
	return false
}

type testBackend struct {
	srv           *httptest.Server
	snapshotCalls atomic.Int64
	orders        []model.Order
	failActions   bool

	mu      sync.Mutex
	summary model.Summary
}

func (b *testBackend) setSummary(s model.Summary) {
	b.mu.Lock()
	b.summary = s
	b.mu.Unlock()
}

func newTestBackend(orders []model.Order) *testBackend {
	b := &testBackend{orders: orders}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/kitchen-orders":
			b.snapshotCalls.Add(1)
			_ = json.NewEncoder(w).Encode(b.orders)
		case r.URL.Path == "/tables":
			_ = json.NewEncoder(w).Encode([]model.Table{})
		case r.URL.Path == "/dashboard/summary":
			b.mu.Lock()
			summary := b.summary
			b.mu.Unlock()
			_ = json.NewEncoder(w).Encode(summary)
		case r.Method == http.MethodPut:
			if b.failActions {
				w.WriteHeader(http.StatusConflict)
				_ = json.NewEncoder(w).Encode(map[string]string{"message": "order already started"})
				return
			}
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	return b
}

func startTestEngine(t *testing.T, backend *testBackend, ch *fakeChannel) (*Engine, *effectRecorder) {
	return startTestEngineOpts(t, backend, ch, Options{})
}

func startTestEngineOpts(t *testing.T, backend *testBackend, ch *fakeChannel, opts Options) (*Engine, *effectRecorder) {
	t.Helper()

	eng := New(newTestClient(backend.srv.URL), ch, opts)
	rec := &effectRecorder{}
	eng.OnProjectionChanged(rec.record)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, eng.Start(ctx))
	return eng, rec
}

func TestEngineStartupSnapshot(t *testing.T) {
	backend := newTestBackend([]model.Order{
		{ID: "o1", OrderCode: "001", Status: model.StatusPending, CreatedAt: time.Now()},
	})
	defer backend.srv.Close()

	eng, _ := startTestEngine(t, backend, newFakeChannel())

	pending := eng.OrdersByStatus(model.StatusPending)
	require.Len(t, pending, 1)
	assert.Equal(t, "o1", pending[0].ID)
	assert.Equal(t, int64(1), backend.snapshotCalls.Load())
}

func TestEngineNewOrderEventFlow(t *testing.T) {
	backend := newTestBackend(nil)
	defer backend.srv.Close()

	ch := newFakeChannel()
	eng, rec := startTestEngine(t, backend, ch)

	ch.push(newOrderEvent(testOrder("o9", model.StatusPending)))

	assert.Eventually(t, func() bool {
		return len(eng.OrdersByStatus(model.StatusPending)) == 1
	}, time.Second, 10*time.Millisecond)

	assert.True(t, rec.find(func(e Effect) bool {
		cue, ok := e.(SoundCue)
		return ok && cue.Cue == CueNewOrder
	}), "a new order must ring the bell")
}

func TestEngineReconnectTriggersExactlyOneSnapshot(t *testing.T) {
	backend := newTestBackend(nil)
	defer backend.srv.Close()

	ch := newFakeChannel()
	eng, _ := startTestEngine(t, backend, ch)
	require.Equal(t, int64(1), backend.snapshotCalls.Load())

	// Initial connect: no reload, nothing was missed yet.
	ch.push(connEvent(true))
	assert.Eventually(t, func() bool {
		return eng.ConnectionState().Connected
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(1), backend.snapshotCalls.Load())

	// An outage and recovery: events in the gap are lost, so exactly one
	// repair snapshot must follow.
	ch.push(connEvent(false))
	ch.push(connEvent(true))

	assert.Eventually(t, func() bool {
		return backend.snapshotCalls.Load() == 2
	}, time.Second, 10*time.Millisecond)
}

func TestEngineRefreshTick(t *testing.T) {
	backend := newTestBackend(nil)
	defer backend.srv.Close()

	ch := newFakeChannel()
	startTestEngine(t, backend, ch)

	ch.push(model.RefreshTickEvent{BaseEvent: model.BaseEvent{EventType: model.EventTypeRefreshTick}})

	assert.Eventually(t, func() bool {
		return backend.snapshotCalls.Load() == 2
	}, time.Second, 10*time.Millisecond)
}

func TestEngineManualRefresh(t *testing.T) {
	backend := newTestBackend(nil)
	defer backend.srv.Close()

	eng, _ := startTestEngine(t, backend, newFakeChannel())
	eng.Refresh()

	assert.Eventually(t, func() bool {
		return backend.snapshotCalls.Load() == 2
	}, time.Second, 10*time.Millisecond)
}

func TestEnginePerformActionAppliesOnSuccess(t *testing.T) {
	backend := newTestBackend([]model.Order{
		{ID: "o1", OrderCode: "001", Status: model.StatusPending, CreatedAt: time.Now()},
	})
	defer backend.srv.Close()

	eng, _ := startTestEngine(t, backend, newFakeChannel())

	require.NoError(t, eng.PerformAction(context.Background(), ActionStart, "o1"))

	assert.Eventually(t, func() bool {
		got := eng.OrdersByStatus(model.StatusInPreparation)
		return len(got) == 1 && got[0].ID == "o1"
	}, time.Second, 10*time.Millisecond)
}

func TestEnginePerformActionRejectedKeepsState(t *testing.T) {
	backend := newTestBackend([]model.Order{
		{ID: "o1", OrderCode: "001", Status: model.StatusPending, CreatedAt: time.Now()},
	})
	backend.failActions = true
	defer backend.srv.Close()

	eng, rec := startTestEngine(t, backend, newFakeChannel())

	err := eng.PerformAction(context.Background(), ActionStart, "o1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order already started")

	// The board never shows a status the backend rejected.
	assert.Len(t, eng.OrdersByStatus(model.StatusPending), 1)
	assert.Empty(t, eng.OrdersByStatus(model.StatusInPreparation))

	assert.Eventually(t, func() bool {
		return rec.find(func(e Effect) bool {
			toast, ok := e.(Toast)
			return ok && toast.Level == ToastError && toast.Message == "order already started"
		})
	}, time.Second, 10*time.Millisecond)
}

func TestEngineUnknownAction(t *testing.T) {
	backend := newTestBackend(nil)
	defer backend.srv.Close()

	eng, _ := startTestEngine(t, backend, newFakeChannel())
	assert.Error(t, eng.PerformAction(context.Background(), Action("explode"), "o1"))
}

func TestEngineDegradedAfterFinalDisconnect(t *testing.T) {
	backend := newTestBackend(nil)
	defer backend.srv.Close()

	ch := newFakeChannel()
	eng, rec := startTestEngine(t, backend, ch)

	ch.push(connEvent(true))
	ch.push(model.ConnectionChangedEvent{
		BaseEvent: model.BaseEvent{EventType: model.EventTypeConnectionChanged},
		Connected: false,
		Attempts:  5,
		Final:     true,
	})

	assert.Eventually(t, func() bool {
		state := eng.ConnectionState()
		return !state.Connected && state.Degraded
	}, time.Second, 10*time.Millisecond)

	assert.True(t, rec.find(func(e Effect) bool {
		ind, ok := e.(ConnectionIndicator)
		return ok && ind.State.Degraded
	}), "spent retry budget must surface a persistent indicator")
}

func TestEngineStartupLoadFailureIsNonFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	eng := New(newTestClient(srv.URL), newFakeChannel(), Options{})
	rec := &effectRecorder{}
	eng.OnProjectionChanged(rec.record)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, eng.Start(ctx), "a failed initial load degrades, it does not abort")

	assert.Eventually(t, func() bool {
		return rec.find(func(e Effect) bool {
			_, ok := e.(LoadError)
			return ok
		})
	}, time.Second, 10*time.Millisecond)
}

func goroutineID() string {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	return strings.Fields(string(buf))[1]
}

func TestEngineEffectsDeliveredOnSingleGoroutine(t *testing.T) {
	backend := newTestBackend(nil)
	backend.failActions = true
	defer backend.srv.Close()

	ch := newFakeChannel()

	eng := New(newTestClient(backend.srv.URL), ch, Options{})
	var mu sync.Mutex
	gids := map[string]bool{}
	var sawCue, sawToast bool
	eng.OnProjectionChanged(func(effects []Effect) {
		mu.Lock()
		defer mu.Unlock()
		gids[goroutineID()] = true
		for _, e := range effects {
			switch e.(type) {
			case SoundCue:
				sawCue = true
			case Toast:
				sawToast = true
			}
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, eng.Start(ctx))

	// Effects from a pushed event and from a rejected action must arrive
	// from the same goroutine, or subscribers need their own locking.
	ch.push(newOrderEvent(testOrder("o1", model.StatusPending)))
	require.Error(t, eng.PerformAction(context.Background(), ActionStart, "o1"))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return sawCue && sawToast
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, gids, 1)
}

func TestEngineSeedsSummaryOnStartup(t *testing.T) {
	backend := newTestBackend(nil)
	backend.setSummary(model.Summary{RevenueToday: 150000, OrdersToday: 10, AverageTicket: 15000})
	defer backend.srv.Close()

	ch := newFakeChannel()
	eng, _ := startTestEngineOpts(t, backend, ch, Options{TrackKPI: true})

	// A dashboard opened mid-day starts from the backend's totals, not
	// from zero.
	assert.Eventually(t, func() bool {
		return eng.Summary().OrdersToday == 10
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, float64(150000), eng.Summary().RevenueToday)

	// New orders accumulate on top of the seed.
	o := testOrder("o1", model.StatusPending)
	o.Total = 20000
	ch.push(newOrderEvent(o))

	assert.Eventually(t, func() bool {
		s := eng.Summary()
		return s.OrdersToday == 11 && s.RevenueToday == 170000
	}, time.Second, 10*time.Millisecond)
}

func TestEngineReseedsSummaryOnReconnect(t *testing.T) {
	backend := newTestBackend(nil)
	backend.setSummary(model.Summary{RevenueToday: 50000, OrdersToday: 4, AverageTicket: 12500})
	defer backend.srv.Close()

	ch := newFakeChannel()
	eng, _ := startTestEngineOpts(t, backend, ch, Options{TrackKPI: true})

	assert.Eventually(t, func() bool {
		return eng.Summary().OrdersToday == 4
	}, time.Second, 10*time.Millisecond)

	// Orders sold during the outage are in the backend's totals; the
	// repair snapshot must bring them back.
	backend.setSummary(model.Summary{RevenueToday: 90000, OrdersToday: 7, AverageTicket: 12857})
	ch.push(connEvent(true))
	ch.push(connEvent(false))
	ch.push(connEvent(true))

	assert.Eventually(t, func() bool {
		s := eng.Summary()
		return s.OrdersToday == 7 && s.RevenueToday == 90000
	}, time.Second, 10*time.Millisecond)
}

func TestEngineSetTableStatus(t *testing.T) {
	backend := newTestBackend(nil)
	defer backend.srv.Close()

	ch := newFakeChannel()
	eng, _ := startTestEngine(t, backend, ch)

	// Seed a table through a snapshot-free path to keep the fixture small.
	require.NoError(t, eng.SetTableStatus(context.Background(), "t1", model.TableOccupied))
	// Unknown table: the REST call succeeded but there is nothing local
	// to move; the next snapshot reconciles it.
	assert.Empty(t, eng.Tables())
}
