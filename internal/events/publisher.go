package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RoutingKeyCreated is the routing key of CreatedEvent messages.
const RoutingKeyCreated = "qr.created"

// CreatedEvent is published after the creation service accepted a request.
type CreatedEvent struct {
	Code      string    `json:"code"`
	ShortURL  string    `json:"short_url"`
	Kind      string    `json:"kind"`
	Guest     bool      `json:"guest"`
	Viewer    bool      `json:"viewer"`
	HasExpiry bool      `json:"has_expiry"`
	HasLimit  bool      `json:"has_limit"`
	CreatedAt time.Time `json:"created_at"`
}

// Publisher publishes form events.
type Publisher interface {
	PublishCreated(ctx context.Context, ev CreatedEvent) error
	Close() error
}

// AMQPPublisher publishes to a durable topic exchange. A channel is not
// safe for concurrent publishing, so calls are serialised.
type AMQPPublisher struct {
	mu       sync.Mutex
	ch       *amqp.Channel
	exchange string
}

// NewAMQPPublisher opens a channel on conn and declares exchange.
func NewAMQPPublisher(conn *amqp.Connection, exchange string) (*AMQPPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &AMQPPublisher{ch: ch, exchange: exchange}, nil
}

// PublishCreated publishes ev as a persistent JSON message.
func (p *AMQPPublisher) PublishCreated(ctx context.Context, ev CreatedEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.ch.PublishWithContext(ctx, p.exchange, RoutingKeyCreated, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now(),
		Type:         RoutingKeyCreated,
		Body:         body,
	})
}

// Close closes the channel; the connection is owned by the caller.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.Close()
}

// NopPublisher drops events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishCreated(context.Context, CreatedEvent) error { return nil }
func (NopPublisher) Close() error                                      { return nil }

var (
	_ Publisher = (*AMQPPublisher)(nil)
	_ Publisher = NopPublisher{}
)
