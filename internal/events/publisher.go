package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"edurumble-service/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
)

const Exchange = "edurumble.events"

// Publisher forwards domain events to a RabbitMQ topic exchange, routed by event type.
// A publisher built without a URI is disabled and drops every event.
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	enabled  bool
}

func NewPublisher(uri string) (*Publisher, error) {
	if uri == "" {
		log.Warn("rabbitmq uri is empty, event publishing is disabled")
		return &Publisher{exchange: Exchange}, nil
	}

	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := channel.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	log.WithField("exchange", Exchange).Info("event publisher ready")
	return &Publisher{conn: conn, channel: channel, exchange: Exchange, enabled: true}, nil
}

// Enabled reports whether events reach a broker.
func (p *Publisher) Enabled() bool { return p.enabled }

func (p *Publisher) Publish(ctx context.Context, event domain.Event) error {
	if !p.enabled {
		log.WithField("event", event.Type).Debug("event publishing disabled, skipping")
		return nil
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	// amqp channels are not safe for concurrent publishing
	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(ctx, p.exchange, event.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.OccurredAt,
		Body:         body,
		Headers: amqp.Table{
			"event_type": event.Type,
			"quiz_id":    event.QuizID,
			"user_id":    event.UserID,
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	if !p.enabled {
		return nil
	}
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			log.WithError(err).Warn("close rabbitmq channel")
		}
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
