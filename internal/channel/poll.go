package channel

import (
	"context"
	"sync"
	"time"

	"boardsync/internal/model"

	"github.com/google/uuid"
)

// DefaultPollInterval matches the dashboard variant that refreshes on a
// timer instead of push events.
const DefaultPollInterval = 30 * time.Second

// Poller is the pull reconciliation strategy behind the Channel contract:
// instead of incremental events it emits a RefreshTick on a fixed interval,
// which the engine answers with a full snapshot load.
type Poller struct {
	interval time.Duration
	events   chan model.Event

	mu     sync.Mutex
	closed bool
	cancel context.CancelFunc
}

// NewPoller creates a polling channel. interval <= 0 falls back to
// DefaultPollInterval.
func NewPoller(interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		interval: interval,
		events:   make(chan model.Event, 4),
	}
}

// Events implements Channel.
func (p *Poller) Events() <-chan model.Event { return p.events }

// Start implements Channel.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrChannelClosed
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	go p.run(ctx)
	return nil
}

// Close implements Channel.
func (p *Poller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.events)

	// Polling has no connection to lose; report a steady link so the
	// board shows live rather than disconnected.
	p.emit(ctx, connectionEvent(true, 0, false))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.emit(ctx, model.RefreshTickEvent{
				BaseEvent: model.BaseEvent{
					EventID:   uuid.New().String(),
					EventType: model.EventTypeRefreshTick,
					Timestamp: time.Now(),
				},
			})
		}
	}
}

func (p *Poller) emit(ctx context.Context, e model.Event) {
	select {
	case p.events <- e:
	case <-ctx.Done():
	}
}

var _ Channel = (*Poller)(nil)
