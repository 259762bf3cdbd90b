package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/quardintel/product-catalog/internal/core/domain"
)

// DefaultQueue is the durable queue catalog events are published to.
const DefaultQueue = "catalog.events"

// RabbitPublisher publishes catalog events as persistent JSON messages on a
// durable queue through the default exchange.
type RabbitPublisher struct {
	mu    sync.Mutex
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// NewRabbitPublisher dials url, opens a channel and declares queue.
func NewRabbitPublisher(url, queue string) (*RabbitPublisher, error) {
	if queue == "" {
		queue = DefaultQueue
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	return &RabbitPublisher{conn: conn, ch: ch, queue: queue}, nil
}

// Publish sends event. The channel is shared by all dispatcher workers, so
// publishes are serialized.
func (p *RabbitPublisher) Publish(ctx context.Context, event domain.CatalogEvent) error {
	msg, err := newMessage(event)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}

// Close shuts down the channel and connection.
func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.ch.Close()
	return p.conn.Close()
}

func newMessage(event domain.CatalogEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         string(event.Type),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}, nil
}
