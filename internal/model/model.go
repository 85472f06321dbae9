package model

import "time"

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusAwaitingPayment OrderStatus = "AwaitingPayment"
	StatusPending         OrderStatus = "Pending"
	StatusInPreparation   OrderStatus = "InPreparation"
	StatusReady           OrderStatus = "Ready"
	StatusDelivered       OrderStatus = "Delivered"
	StatusCancelled       OrderStatus = "Cancelled"
)

// statusRank orders the forward path AwaitingPayment -> Delivered.
// Cancelled is a side exit and has no rank.
var statusRank = map[OrderStatus]int{
	StatusAwaitingPayment: 0,
	StatusPending:         1,
	StatusInPreparation:   2,
	StatusReady:           3,
	StatusDelivered:       4,
}

// IsForward reports whether moving from one status to another advances the
// order along the normal path. Skipping intermediate states counts as
// forward: a snapshot taken after a gap may legitimately jump ahead.
func IsForward(from, to OrderStatus) bool {
	fr, ok1 := statusRank[from]
	tr, ok2 := statusRank[to]
	return ok1 && ok2 && tr > fr
}

// CanTransition reports whether the status change is allowed by the order
// state machine. Cancellation is only permitted before preparation starts.
func CanTransition(from, to OrderStatus) bool {
	if to == StatusCancelled {
		return from == StatusAwaitingPayment || from == StatusPending
	}
	return IsForward(from, to)
}

// IsTerminal reports whether an order in this status has left the active
// working set.
func IsTerminal(s OrderStatus) bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Bucket identifies a kanban column on a display surface.
type Bucket string

const (
	BucketAwaiting      Bucket = "awaiting"
	BucketPending       Bucket = "pending"
	BucketInPreparation Bucket = "inPreparation"
	BucketReady         Bucket = "ready"
	BucketDelivered     Bucket = "delivered"
)

var statusBuckets = map[OrderStatus]Bucket{
	StatusAwaitingPayment: BucketAwaiting,
	StatusPending:         BucketPending,
	StatusInPreparation:   BucketInPreparation,
	StatusReady:           BucketReady,
	StatusDelivered:       BucketDelivered,
}

// BucketFor maps an order status to its kanban bucket. Cancelled orders are
// not kanban-visible, so they have no bucket.
func BucketFor(s OrderStatus) (Bucket, bool) {
	b, ok := statusBuckets[s]
	return b, ok
}

// Buckets lists all kanban buckets in board order.
func Buckets() []Bucket {
	return []Bucket{BucketAwaiting, BucketPending, BucketInPreparation, BucketReady, BucketDelivered}
}

// OrderItem is one line of an order. Items are immutable after creation.
type OrderItem struct {
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice,omitempty"`
}

// Order is one customer order in flight.
type Order struct {
	ID        string      `json:"id"`
	OrderCode string      `json:"orderCode"`
	TableCode string      `json:"tableCode"`
	Status    OrderStatus `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
	Items     []OrderItem `json:"items"`
	Total     float64     `json:"total"`
	// Version is a monotonic revision assigned by the backend. Zero means
	// the backend did not supply one.
	Version int64 `json:"version,omitempty"`
}

// TableStatus is the occupancy state of a table. Unlike order statuses,
// any table state may follow any other.
type TableStatus string

const (
	TableAvailable   TableStatus = "Available"
	TableOccupied    TableStatus = "Occupied"
	TableReserved    TableStatus = "Reserved"
	TableMaintenance TableStatus = "Maintenance"
)

// Table is one physical table's occupancy.
type Table struct {
	ID      string      `json:"id"`
	Code    string      `json:"code"`
	Status  TableStatus `json:"status"`
	Version int64       `json:"version,omitempty"`
}

// Summary is the dashboard KPI block for the current business day.
type Summary struct {
	RevenueToday  float64 `json:"revenueToday"`
	OrdersToday   int     `json:"ordersToday"`
	AverageTicket float64 `json:"averageTicket"`
}

// ConnectionState tracks the push channel's health for one engine instance.
type ConnectionState struct {
	Connected         bool `json:"connected"`
	ReconnectAttempts int  `json:"reconnectAttempts"`
	// Degraded is set once the reconnection budget is exhausted; the
	// engine keeps working on manual refresh only.
	Degraded bool `json:"degraded"`
}
