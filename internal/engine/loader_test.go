package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"boardsync/internal/auth"
	"boardsync/internal/model"
	"boardsync/internal/rest"
	"boardsync/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotServer(t *testing.T, orders []model.Order, tables []model.Table) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/kitchen-orders":
			_ = json.NewEncoder(w).Encode(orders)
		case "/tables":
			_ = json.NewEncoder(w).Encode(tables)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestClient(baseURL string) *rest.Client {
	return rest.NewClient(baseURL, "r1", auth.StaticToken("test-token"), 2*time.Second)
}

func TestLoadPopulatesStore(t *testing.T) {
	srv := snapshotServer(t,
		[]model.Order{{ID: "o1", OrderCode: "001", Status: model.StatusPending, CreatedAt: time.Now()}},
		[]model.Table{{ID: "t1", Code: "M-01", Status: model.TableAvailable}},
	)
	defer srv.Close()

	st := store.New(0)
	l := NewLoader(newTestClient(srv.URL), st, rest.Scope{ExcludeCancelled: true})

	require.NoError(t, l.Load(context.Background(), TriggerStartup))

	pending := st.OrdersByStatus(model.StatusPending)
	require.Len(t, pending, 1)
	assert.Equal(t, "o1", pending[0].ID)

	tables := st.Tables()
	require.Len(t, tables, 1)
	assert.Equal(t, "M-01", tables[0].Code)
}

func TestLoadFiltersCancelled(t *testing.T) {
	srv := snapshotServer(t,
		[]model.Order{
			{ID: "o1", Status: model.StatusPending, CreatedAt: time.Now()},
			{ID: "o2", Status: model.StatusCancelled, CreatedAt: time.Now()},
		},
		nil,
	)
	defer srv.Close()

	st := store.New(0)
	l := NewLoader(newTestClient(srv.URL), st, rest.Scope{})

	require.NoError(t, l.Load(context.Background(), TriggerManual))

	_, ok := st.Order("o2")
	assert.False(t, ok, "cancelled orders are excluded at snapshot time")
	_, ok = st.Order("o1")
	assert.True(t, ok)
}

func TestLoadReplacesStaleEntries(t *testing.T) {
	srv := snapshotServer(t,
		[]model.Order{{ID: "fresh", Status: model.StatusPending, CreatedAt: time.Now()}},
		nil,
	)
	defer srv.Close()

	st := store.New(0)
	st.UpsertOrder(model.Order{ID: "stale", Status: model.StatusPending, CreatedAt: time.Now()})

	l := NewLoader(newTestClient(srv.URL), st, rest.Scope{})
	require.NoError(t, l.Load(context.Background(), TriggerReconnect))

	_, ok := st.Order("stale")
	assert.False(t, ok, "snapshot swap must clear entries the backend no longer reports")
	_, ok = st.Order("fresh")
	assert.True(t, ok)
}

func TestLoadFailureKeepsStaleState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "backend down"})
	}))
	defer srv.Close()

	st := store.New(0)
	st.UpsertOrder(model.Order{ID: "o1", Status: model.StatusPending, CreatedAt: time.Now()})

	l := NewLoader(newTestClient(srv.URL), st, rest.Scope{})
	err := l.Load(context.Background(), TriggerManual)
	require.Error(t, err)

	pending := st.OrdersByStatus(model.StatusPending)
	require.Len(t, pending, 1, "stale-but-present beats empty")
	assert.Equal(t, "o1", pending[0].ID)
}

func TestLoadFailureOnTablesKeepsOrdersToo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/kitchen-orders" {
			_ = json.NewEncoder(w).Encode([]model.Order{{ID: "new", Status: model.StatusPending}})
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	st := store.New(0)
	st.UpsertOrder(model.Order{ID: "old", Status: model.StatusPending, CreatedAt: time.Now()})

	l := NewLoader(newTestClient(srv.URL), st, rest.Scope{})
	require.Error(t, l.Load(context.Background(), TriggerManual))

	// Both fetches happen before either collection is swapped, so a
	// failure partway leaves everything untouched.
	_, ok := st.Order("old")
	assert.True(t, ok)
	_, ok = st.Order("new")
	assert.False(t, ok)
}
