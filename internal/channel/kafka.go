package channel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"boardsync/internal/model"
	"boardsync/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// kafkaReader is the slice of kafka.Reader the channel consumes through.
type kafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka consumes restaurant-scoped event frames from a Kafka topic.
// Deployments that already fan events out through a broker use this in
// place of the websocket hub; the frame format is identical.
type Kafka struct {
	reader  kafkaReader
	topic   string
	logger  *zap.Logger
	events  chan model.Event
	backoff func(int) time.Duration

	mu     sync.Mutex
	closed bool
}

// KafkaTopic names the event topic for one restaurant.
func KafkaTopic(restaurantID string) string {
	return fmt.Sprintf("restaurant.%s.events", restaurantID)
}

// NewKafka creates a Kafka channel. groupID isolates each display surface
// so every board receives the full stream.
func NewKafka(brokers []string, restaurantID, groupID string) *Kafka {
	topic := KafkaTopic(restaurantID)
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
	})

	return &Kafka{
		reader:  reader,
		topic:   topic,
		logger:  util.GetLogger(),
		events:  make(chan model.Event, 64),
		backoff: backoffDelay,
	}
}

// Events implements Channel.
func (k *Kafka) Events() <-chan model.Event { return k.events }

// Start implements Channel.
func (k *Kafka) Start(ctx context.Context) error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return ErrChannelClosed
	}
	k.mu.Unlock()

	go k.run(ctx)
	return nil
}

// Close implements Channel.
func (k *Kafka) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil
	}
	k.closed = true
	return k.reader.Close()
}

func (k *Kafka) run(ctx context.Context) {
	defer close(k.events)

	k.logger.Info("Kafka channel consuming", zap.String("topic", k.topic))
	k.emit(ctx, connectionEvent(true, 0, false))

	// One disconnect per outage, one reconnect once messages flow again.
	// The reconnect is what drives the engine's repair snapshot, so it must
	// not fire until fetching actually works.
	healthy := true
	failures := 0
	for {
		msg, err := k.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || k.isClosed() {
				return
			}
			if healthy {
				healthy = false
				k.logger.Warn("Kafka fetch failed", zap.Error(err))
				k.emit(ctx, connectionEvent(false, failures, false))
			}
			failures++
			select {
			case <-time.After(k.backoff(failures)):
			case <-ctx.Done():
				return
			}
			continue
		}

		if !healthy {
			healthy = true
			failures = 0
			util.ReconnectsTotal.Inc()
			k.emit(ctx, connectionEvent(true, 0, false))
		}

		event, err := DecodeFrame(msg.Value)
		if err != nil {
			util.MalformedPayloadsTotal.WithLabelValues("kafka").Inc()
			k.logger.Warn("Dropping malformed Kafka frame", zap.Error(err))
		} else {
			k.emit(ctx, event)
		}

		if err := k.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			k.logger.Warn("Kafka commit failed", zap.Error(err))
		}
	}
}

func (k *Kafka) emit(ctx context.Context, e model.Event) {
	select {
	case k.events <- e:
	case <-ctx.Done():
	}
}

func (k *Kafka) isClosed() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.closed
}

var _ Channel = (*Kafka)(nil)
