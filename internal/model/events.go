package model

import "time"

// Event types carried on the push channel.
const (
	EventTypeNewOrder           = "NewOrder"
	EventTypeOrderStatusUpdated = "OrderStatusUpdated"
	EventTypeTableStateUpdated  = "TableStateUpdated"
	// EventTypeConnectionChanged is synthesized by transports, never
	// received over the wire.
	EventTypeConnectionChanged = "ConnectionChanged"
	// EventTypeRefreshTick is synthesized by the polling transport.
	EventTypeRefreshTick = "RefreshTick"
)

// BaseEvent contains the envelope fields common to all events.
type BaseEvent struct {
	EventID   string    `json:"eventId"`
	EventType string    `json:"eventType"`
	Timestamp time.Time `json:"timestamp"`
}

// Event is the tagged union of everything the reconciler consumes. The
// marker method keeps the set closed so a switch over event kinds is
// exhaustive by construction.
type Event interface {
	Base() BaseEvent
	isEvent()
}

// NewOrderEvent announces an order that just entered the system.
type NewOrderEvent struct {
	BaseEvent
	Order Order `json:"order"`
}

// OrderStatusUpdatedEvent moves an existing order to a new status.
type OrderStatusUpdatedEvent struct {
	BaseEvent
	OrderID   string      `json:"orderId"`
	NewStatus OrderStatus `json:"newStatus"`
	// Version gates stale delivery: the update is ignored unless it is
	// newer than the stored entity. Zero disables the gate.
	Version int64 `json:"version,omitempty"`
}

// TableStateUpdatedEvent moves a table to a new occupancy state.
type TableStateUpdatedEvent struct {
	BaseEvent
	TableID  string      `json:"tableId"`
	NewState TableStatus `json:"newState"`
	Version  int64       `json:"version,omitempty"`
}

// ConnectionChangedEvent reports a transport lifecycle transition.
type ConnectionChangedEvent struct {
	BaseEvent
	Connected bool
	Attempts  int
	// Final marks the transition after which the transport gives up
	// reconnecting.
	Final bool
}

// RefreshTickEvent asks the engine to pull a fresh snapshot. Emitted by the
// polling transport in place of push events.
type RefreshTickEvent struct {
	BaseEvent
}

func (e NewOrderEvent) Base() BaseEvent           { return e.BaseEvent }
func (e OrderStatusUpdatedEvent) Base() BaseEvent { return e.BaseEvent }
func (e TableStateUpdatedEvent) Base() BaseEvent  { return e.BaseEvent }
func (e ConnectionChangedEvent) Base() BaseEvent  { return e.BaseEvent }
func (e RefreshTickEvent) Base() BaseEvent        { return e.BaseEvent }

func (NewOrderEvent) isEvent()           {}
func (OrderStatusUpdatedEvent) isEvent() {}
func (TableStateUpdatedEvent) isEvent()  {}
func (ConnectionChangedEvent) isEvent()  {}
func (RefreshTickEvent) isEvent()        {}
