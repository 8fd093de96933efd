package service

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sifan077/HashURL/internal/app/model"
)

// JetStreamPublisher is the slice of nats.JetStreamContext used for publishing.
type JetStreamPublisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// ClickPublisher publishes click events to NATS JetStream
type ClickPublisher struct {
	js  JetStreamPublisher
	now func() time.Time
}

// NewClickPublisher creates a new click event publisher
func NewClickPublisher(js JetStreamPublisher) *ClickPublisher {
	return &ClickPublisher{js: js, now: time.Now}
}

// Publish publishes a click event to the stream
func (p *ClickPublisher) Publish(linkCode, ip, userAgent string) error {
	event := model.ClickEvent{
		ID:        uuid.New().String(),
		LinkCode:  linkCode,
		IP:        ip,
		UserAgent: userAgent,
		Timestamp: p.now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal click event: %w", err)
	}

	if _, err := p.js.Publish(model.ClickStreamSubject, data); err != nil {
		return fmt.Errorf("publish click event: %w", err)
	}
	return nil
}
