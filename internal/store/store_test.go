package store

import (
	"testing"
	"time"

	"boardsync/internal/model"

	"github.com/stretchr/testify/assert"
)

func orderAt(id string, status model.OrderStatus, createdAt time.Time) model.Order {
	return model.Order{
		ID:        id,
		OrderCode: "C-" + id,
		TableCode: "T1",
		Status:    status,
		CreatedAt: createdAt,
		Items:     []model.OrderItem{{Name: "Empanada", Quantity: 2}},
		Total:     12000,
	}
}

func TestUpsertOrderReplacesWholesale(t *testing.T) {
	s := New(0)
	now := time.Now()

	s.UpsertOrder(orderAt("o1", model.StatusPending, now))

	updated := orderAt("o1", model.StatusReady, now)
	updated.Items = nil
	s.UpsertOrder(updated)

	got, ok := s.Order("o1")
	assert.True(t, ok)
	assert.Equal(t, model.StatusReady, got.Status)
	assert.Nil(t, got.Items, "upsert must replace the whole entity, not merge")
}

func TestOrdersByStatusSortsNewestFirst(t *testing.T) {
	s := New(0)
	base := time.Now()

	s.UpsertOrder(orderAt("old", model.StatusPending, base.Add(-10*time.Minute)))
	s.UpsertOrder(orderAt("new", model.StatusPending, base))
	s.UpsertOrder(orderAt("mid", model.StatusPending, base.Add(-5*time.Minute)))
	s.UpsertOrder(orderAt("other", model.StatusReady, base))

	got := s.OrdersByStatus(model.StatusPending)
	assert.Len(t, got, 3)
	assert.Equal(t, "new", got[0].ID)
	assert.Equal(t, "mid", got[1].ID)
	assert.Equal(t, "old", got[2].ID)
}

func TestOrdersByStatusEmptyOnAbsentStatus(t *testing.T) {
	s := New(0)
	assert.Empty(t, s.OrdersByStatus(model.StatusReady))
}

func TestRemoveOrder(t *testing.T) {
	s := New(0)
	s.UpsertOrder(orderAt("o1", model.StatusPending, time.Now()))

	s.RemoveOrder("o1")
	_, ok := s.Order("o1")
	assert.False(t, ok)

	// Removing an absent id is a no-op, never a panic.
	s.RemoveOrder("ghost")
}

func TestReplaceOrdersSwapsWorkingSet(t *testing.T) {
	s := New(0)
	now := time.Now()
	s.UpsertOrder(orderAt("stale", model.StatusPending, now))

	s.ReplaceOrders([]model.Order{
		orderAt("f1", model.StatusPending, now),
		orderAt("f2", model.StatusReady, now),
	})

	_, ok := s.Order("stale")
	assert.False(t, ok, "replace must clear entries absent from the snapshot")
	_, ok = s.Order("f1")
	assert.True(t, ok)
	_, ok = s.Order("f2")
	assert.True(t, ok)
}

func TestTablesSortedByCode(t *testing.T) {
	s := New(0)
	s.UpsertTable(model.Table{ID: "t2", Code: "M-02", Status: model.TableOccupied})
	s.UpsertTable(model.Table{ID: "t1", Code: "M-01", Status: model.TableAvailable})
	s.UpsertTable(model.Table{ID: "t3", Code: "M-03", Status: model.TableReserved})

	got := s.Tables()
	assert.Len(t, got, 3)
	assert.Equal(t, "M-01", got[0].Code)
	assert.Equal(t, "M-02", got[1].Code)
	assert.Equal(t, "M-03", got[2].Code)
}

func TestCounts(t *testing.T) {
	s := New(0)
	now := time.Now()
	s.UpsertOrder(orderAt("a", model.StatusPending, now))
	s.UpsertOrder(orderAt("b", model.StatusPending, now))
	s.UpsertOrder(orderAt("c", model.StatusReady, now))
	s.UpsertOrder(orderAt("d", model.StatusDelivered, now))

	c := s.Counts()
	assert.Equal(t, 2, c.PerBucket[model.BucketPending])
	assert.Equal(t, 1, c.PerBucket[model.BucketReady])
	assert.Equal(t, 1, c.PerBucket[model.BucketDelivered])
	assert.Equal(t, 0, c.PerBucket[model.BucketInPreparation])
	assert.Equal(t, 3, c.Active, "delivered orders are out of the active set")
}

func TestRingEvictsOldest(t *testing.T) {
	r := NewRing(3)
	now := time.Now()

	r.Push(orderAt("1", model.StatusDelivered, now))
	r.Push(orderAt("2", model.StatusDelivered, now))
	r.Push(orderAt("3", model.StatusDelivered, now))
	r.Push(orderAt("4", model.StatusDelivered, now))

	items := r.Items()
	assert.Len(t, items, 3)
	assert.Equal(t, "4", items[0].ID)
	assert.Equal(t, "3", items[1].ID)
	assert.Equal(t, "2", items[2].ID)
}

func TestRingRepushMovesToFront(t *testing.T) {
	r := NewRing(3)
	now := time.Now()

	r.Push(orderAt("1", model.StatusDelivered, now))
	r.Push(orderAt("2", model.StatusDelivered, now))
	r.Push(orderAt("1", model.StatusDelivered, now))

	items := r.Items()
	assert.Len(t, items, 2, "re-pushing the same order must not duplicate it")
	assert.Equal(t, "1", items[0].ID)
	assert.Equal(t, "2", items[1].ID)
}

func TestRingDefaultCap(t *testing.T) {
	r := NewRing(0)
	assert.Equal(t, DefaultHistoryCap, r.Cap())
}
