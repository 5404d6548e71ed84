// Package audit records admin mutations on a Kafka topic. Publishing is
// fire-and-forget: an unreachable broker must never block or fail a console
// action.
package audit

import (
	"context"
	"time"

	pkgkafka "flowgate/pkg/kafka"
	applogger "flowgate/pkg/logger"
)

// Actions emitted by the admin console.
const (
	ActionExchangeCreated = "exchange.created"
	ActionExchangeUpdated = "exchange.updated"
	ActionAddressCreated  = "address.created"
	ActionAddressUpdated  = "address.updated"
	ActionResyncTriggered = "resync.triggered"
)

// Event is one admin mutation.
type Event struct {
	Action   string    `json:"action"`
	Actor    string    `json:"actor"`
	EntityID string    `json:"entity_id,omitempty"`
	At       time.Time `json:"at"`
}

// Publisher records admin mutation events.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// KafkaPublisher publishes events keyed by actor.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
	log      *applogger.Logger
}

// NewKafkaPublisher creates a publisher on the given topic.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string, log *applogger.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic, log: log}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	if err := p.producer.Publish(ctx, p.topic, []byte(ev.Actor), ev); err != nil {
		p.log.Warn("audit publish failed",
			applogger.String("action", ev.Action),
			applogger.Error(err),
		)
	}
}

// Close releases the underlying producer.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// NopPublisher drops all events. Used when audit is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}
