// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/tomtom215/basketwise/internal/logging"
	"github.com/tomtom215/basketwise/internal/metrics"
)

// ErrBusClosed is returned when publishing on a closed bus.
var ErrBusClosed = errors.New("event bus closed")

// correlationIDKey is the message metadata key carrying the correlation ID.
const correlationIDKey = "correlation_id"

// Config holds configuration for the event bus.
type Config struct {
	// OutputChannelBuffer is the per-subscriber channel buffer.
	OutputChannelBuffer int64

	// CloseTimeout is how long to wait for handlers to finish when closing.
	CloseTimeout time.Duration

	// Retry configuration for failing handlers.
	RetryMaxRetries      int
	RetryInitialInterval time.Duration
}

// DefaultConfig returns production defaults for the bus.
func DefaultConfig() Config {
	return Config{
		OutputChannelBuffer:  256,
		CloseTimeout:         10 * time.Second,
		RetryMaxRetries:      3,
		RetryInitialInterval: 100 * time.Millisecond,
	}
}

// Bus is an in-process publisher and router for domain events.
type Bus struct {
	pubsub *gochannel.GoChannel
	router *message.Router
	logger watermill.LoggerAdapter

	mu     sync.RWMutex
	closed bool
}

// NewBus creates a bus. A nil logger routes watermill logs through the
// global zerolog logger.
func NewBus(cfg Config, logger *slog.Logger) (*Bus, error) {
	if logger == nil {
		logger = logging.NewSlogLogger()
	}
	wmLogger := watermill.NewSlogLogger(logger.With("component", "events"))

	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: cfg.OutputChannelBuffer,
	}, wmLogger)

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}
	router.AddMiddleware(
		middleware.Recoverer,
		middleware.Retry{
			MaxRetries:      cfg.RetryMaxRetries,
			InitialInterval: cfg.RetryInitialInterval,
			Logger:          wmLogger,
		}.Middleware,
	)

	return &Bus{
		pubsub: pubsub,
		router: router,
		logger: wmLogger,
	}, nil
}

// PublishRulesReplaced publishes a RulesReplaced event.
func (b *Bus) PublishRulesReplaced(ctx context.Context, evt RulesReplaced) error {
	err := b.publish(ctx, TopicRulesReplaced, evt)
	metrics.RecordEventPublish(TopicRulesReplaced, err)
	return err
}

func (b *Bus) publish(ctx context.Context, topic string, payload interface{}) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.SetContext(ctx)
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		msg.Metadata.Set(correlationIDKey, id)
	}

	if err := b.pubsub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// OnRulesReplaced registers a handler for RulesReplaced events. Handlers
// must be registered before Run. Payloads that fail to decode are logged
// and acknowledged.
func (b *Bus) OnRulesReplaced(name string, fn func(ctx context.Context, evt RulesReplaced) error) {
	b.router.AddConsumerHandler(name, TopicRulesReplaced, b.pubsub, func(msg *message.Message) error {
		var evt RulesReplaced
		if err := json.Unmarshal(msg.Payload, &evt); err != nil {
			b.logger.Error("Dropping undecodable event", err, watermill.LogFields{
				"topic":      TopicRulesReplaced,
				"message_id": msg.UUID,
			})
			metrics.RecordEventHandled(TopicRulesReplaced, err)
			return nil
		}

		ctx := msg.Context()
		if id := msg.Metadata.Get(correlationIDKey); id != "" {
			ctx = logging.ContextWithCorrelationID(ctx, id)
		}
		err := fn(ctx, evt)
		metrics.RecordEventHandled(TopicRulesReplaced, err)
		return err
	})
}

// Run blocks processing events until ctx is done or the bus is closed.
func (b *Bus) Run(ctx context.Context) error {
	return b.router.Run(ctx)
}

// Running is closed once the router is processing events.
func (b *Bus) Running() chan struct{} {
	return b.router.Running()
}

// Close stops the router and closes the pub/sub. It is safe to call more than once.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	routerErr := b.router.Close()
	pubsubErr := b.pubsub.Close()
	return errors.Join(routerErr, pubsubErr)
}
