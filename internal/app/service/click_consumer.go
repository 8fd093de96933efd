package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/HashURL/internal/app/model"
	infraPrometheus "github.com/sifan077/HashURL/internal/infra/prometheus"
	"go.uber.org/zap"
)

const (
	fetchBatch   = 10
	fetchMaxWait = 5 * time.Second
)

// ClickConsumer reads click events back from NATS JetStream as an audit
// trail. Click counts live in the link repository; events never touch them.
type ClickConsumer struct {
	js      nats.JetStreamContext
	logger  *zap.Logger
	metrics *infraPrometheus.Metrics
}

// NewClickConsumer creates a new click event consumer
func NewClickConsumer(js nats.JetStreamContext, logger *zap.Logger, metrics *infraPrometheus.Metrics) *ClickConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClickConsumer{js: js, logger: logger, metrics: metrics}
}

// EnsureStream creates the click stream when it does not exist yet.
func EnsureStream(js nats.JetStreamContext) error {
	if _, err := js.StreamInfo(model.ClickStreamName); err == nil {
		return nil
	}
	_, err := js.AddStream(&nats.StreamConfig{
		Name:     model.ClickStreamName,
		Subjects: []string{model.ClickStreamSubject},
		MaxBytes: model.ClickStreamMaxBytes,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// Start begins consuming click events until ctx is cancelled.
func (c *ClickConsumer) Start(ctx context.Context) error {
	if err := EnsureStream(c.js); err != nil {
		return err
	}

	// Create consumer if not exists
	if _, err := c.js.ConsumerInfo(model.ClickStreamName, model.ClickConsumerName); err != nil {
		_, err = c.js.AddConsumer(model.ClickStreamName, &nats.ConsumerConfig{
			Durable:   model.ClickConsumerName,
			AckPolicy: nats.AckExplicitPolicy,
		})
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
	}

	sub, err := c.js.PullSubscribe(model.ClickStreamSubject, model.ClickConsumerName, nats.Bind(model.ClickStreamName, model.ClickConsumerName))
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go c.consume(ctx, sub)
	return nil
}

func (c *ClickConsumer) consume(ctx context.Context, sub *nats.Subscription) {
	defer func() {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			c.logger.Warn("failed to unsubscribe click consumer", zap.Error(err))
		}
	}()

	for {
		if ctx.Err() != nil {
			c.logger.Info("click consumer stopped")
			return
		}

		msgs, err := sub.Fetch(fetchBatch, nats.MaxWait(fetchMaxWait))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) {
				continue
			}
			if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) {
				c.logger.Info("click consumer stopped", zap.Error(err))
				return
			}
			c.logger.Error("failed to fetch messages", zap.Error(err))
			continue
		}

		for _, msg := range msgs {
			c.handle(msg)
		}
	}
}

func (c *ClickConsumer) handle(msg *nats.Msg) {
	event, err := DecodeClickEvent(msg.Data)
	if err != nil {
		c.logger.Error("failed to unmarshal click event", zap.Error(err))
		// Redelivery cannot fix a malformed payload.
		_ = msg.Term()
		return
	}

	c.metrics.ClickEventConsumed()
	c.logger.Debug("click event received",
		zap.String("id", event.ID),
		zap.String("link_code", event.LinkCode),
		zap.String("ip", event.IP),
		zap.Time("timestamp", event.Timestamp),
	)

	if err := msg.Ack(); err != nil {
		c.logger.Warn("failed to ack click event", zap.String("id", event.ID), zap.Error(err))
	}
}

// DecodeClickEvent parses a click event payload.
func DecodeClickEvent(data []byte) (model.ClickEvent, error) {
	var event model.ClickEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return model.ClickEvent{}, err
	}
	if event.LinkCode == "" {
		return model.ClickEvent{}, errors.New("click event without link code")
	}
	return event, nil
}
