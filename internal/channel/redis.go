package channel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"boardsync/internal/model"
	"boardsync/internal/util"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Redis consumes restaurant-scoped event frames over Redis pub/sub. Like
// the websocket hub it offers no replay: anything published while the
// subscriber is down is lost, which is exactly the gap the engine's
// reconnect-snapshot rule covers.
type Redis struct {
	rdb     *redis.Client
	chanKey string
	logger  *zap.Logger
	events  chan model.Event

	mu     sync.Mutex
	pubsub *redis.PubSub
	closed bool
}

// RedisChannelKey names the pub/sub channel for one restaurant.
func RedisChannelKey(restaurantID string) string {
	return fmt.Sprintf("restaurant:%s:events", restaurantID)
}

// NewRedis creates a Redis pub/sub channel.
func NewRedis(addr, password string, db int, restaurantID string) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Redis{
		rdb:     rdb,
		chanKey: RedisChannelKey(restaurantID),
		logger:  util.GetLogger(),
		events:  make(chan model.Event, 64),
	}, nil
}

// Events implements Channel.
func (r *Redis) Events() <-chan model.Event { return r.events }

// Start implements Channel.
func (r *Redis) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrChannelClosed
	}
	r.pubsub = r.rdb.Subscribe(ctx, r.chanKey)
	r.mu.Unlock()

	// Force the subscription handshake so a dead broker fails Start
	// instead of silently delivering nothing.
	if _, err := r.pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", r.chanKey, err)
	}

	go r.run(ctx)
	return nil
}

// Close implements Channel.
func (r *Redis) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.pubsub != nil {
		_ = r.pubsub.Close()
	}
	return r.rdb.Close()
}

func (r *Redis) run(ctx context.Context) {
	defer close(r.events)

	r.logger.Info("Redis channel subscribed", zap.String("channel", r.chanKey))
	r.emit(ctx, connectionEvent(true, 0, false))

	msgs := r.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				if !r.isClosed() {
					r.emit(ctx, connectionEvent(false, 0, true))
				}
				return
			}
			event, err := DecodeFrame([]byte(msg.Payload))
			if err != nil {
				util.MalformedPayloadsTotal.WithLabelValues("redis").Inc()
				r.logger.Warn("Dropping malformed Redis frame", zap.Error(err))
				continue
			}
			r.emit(ctx, event)
		}
	}
}

func (r *Redis) emit(ctx context.Context, e model.Event) {
	select {
	case r.events <- e:
	case <-ctx.Done():
	}
}

func (r *Redis) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

var _ Channel = (*Redis)(nil)
