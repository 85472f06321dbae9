package channel

import (
	"encoding/json"
	"fmt"
	"time"

	"boardsync/internal/model"

	"github.com/google/uuid"
)

// frame is the wire envelope shared by all push transports: a named event
// plus its payload.
type frame struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	EventID   string          `json:"eventId,omitempty"`
	Timestamp time.Time       `json:"timestamp,omitempty"`
}

// DecodeFrame turns a raw transport frame into a typed event. Unknown
// event names and undecodable payloads return an error; transports log and
// drop those frames rather than crash the engine.
func DecodeFrame(raw []byte) (model.Event, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode frame envelope: %w", err)
	}

	base := model.BaseEvent{
		EventID:   f.EventID,
		EventType: f.Event,
		Timestamp: f.Timestamp,
	}
	if base.EventID == "" {
		base.EventID = uuid.New().String()
	}
	if base.Timestamp.IsZero() {
		base.Timestamp = time.Now()
	}

	switch f.Event {
	case model.EventTypeNewOrder:
		var order model.Order
		if err := json.Unmarshal(f.Data, &order); err != nil {
			return nil, fmt.Errorf("decode NewOrder payload: %w", err)
		}
		if order.ID == "" {
			return nil, fmt.Errorf("NewOrder payload missing order id")
		}
		return model.NewOrderEvent{BaseEvent: base, Order: order}, nil

	case model.EventTypeOrderStatusUpdated:
		var payload struct {
			OrderID   string            `json:"orderId"`
			NewStatus model.OrderStatus `json:"newStatus"`
			Version   int64             `json:"version"`
		}
		if err := json.Unmarshal(f.Data, &payload); err != nil {
			return nil, fmt.Errorf("decode OrderStatusUpdated payload: %w", err)
		}
		if payload.OrderID == "" || payload.NewStatus == "" {
			return nil, fmt.Errorf("OrderStatusUpdated payload incomplete")
		}
		return model.OrderStatusUpdatedEvent{
			BaseEvent: base,
			OrderID:   payload.OrderID,
			NewStatus: payload.NewStatus,
			Version:   payload.Version,
		}, nil

	case model.EventTypeTableStateUpdated:
		var payload struct {
			TableID  string            `json:"tableId"`
			NewState model.TableStatus `json:"newState"`
			Version  int64             `json:"version"`
		}
		if err := json.Unmarshal(f.Data, &payload); err != nil {
			return nil, fmt.Errorf("decode TableStateUpdated payload: %w", err)
		}
		if payload.TableID == "" || payload.NewState == "" {
			return nil, fmt.Errorf("TableStateUpdated payload incomplete")
		}
		return model.TableStateUpdatedEvent{
			BaseEvent: base,
			TableID:   payload.TableID,
			NewState:  payload.NewState,
			Version:   payload.Version,
		}, nil

	default:
		return nil, fmt.Errorf("unknown event type %q", f.Event)
	}
}
