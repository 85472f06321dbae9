// Package channel carries backend state changes to the engine in real
// time. A Channel decodes transport frames into typed events and reports
// its own lifecycle as ConnectionChanged events on the same stream, so the
// engine consumes exactly one ordered sequence per transport.
package channel

import (
	"context"

	"boardsync/internal/model"
)

// Channel is the push-event transport contract. Implementations deliver
// decoded events and connection transitions on Events until the context
// given to Start is cancelled or Close is called.
type Channel interface {
	// Start begins delivering events. It does not block; delivery runs
	// on the transport's own goroutine.
	Start(ctx context.Context) error
	// Events is the stream the engine's run loop consumes.
	Events() <-chan model.Event
	// Close tears the transport down and closes the event stream.
	Close() error
}
