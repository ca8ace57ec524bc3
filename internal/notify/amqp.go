package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"upload_monitor/internal/digest"
)

// AMQP fans the digest out to a message queue so other systems can
// consume the run's results alongside the direct notifications.
type AMQP struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     *slog.Logger
}

// AMQPSettings holds the broker configuration.
type AMQPSettings struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
}

// NewAMQP connects to the broker and declares the exchange, queue and
// binding the digests are published through.
func NewAMQP(settings AMQPSettings, logger *slog.Logger) (*AMQP, error) {
	conn, err := amqp.Dial(settings.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		settings.Exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(
		settings.QueueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	err = ch.QueueBind(
		q.Name,
		settings.RoutingKey,
		settings.Exchange,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	logger.Info("connected to rabbitmq",
		"exchange", settings.Exchange,
		"queue", settings.QueueName,
		"routing_key", settings.RoutingKey,
	)

	return &AMQP{
		conn:       conn,
		channel:    ch,
		exchange:   settings.Exchange,
		routingKey: settings.RoutingKey,
		logger:     logger.With("notifier", "amqp"),
	}, nil
}

// DigestMessage is the queue payload for one delivered digest.
type DigestMessage struct {
	Subject   string         `json:"subject"`
	Body      string         `json:"body"`
	Entries   []digest.Entry `json:"entries"`
	Timestamp time.Time      `json:"timestamp"`
}

// Name identifies the transport in logs and stats.
func (p *AMQP) Name() string {
	return "amqp"
}

// Deliver publishes the digest as a persistent JSON message.
func (p *AMQP) Deliver(ctx context.Context, d digest.Digest, subject string) error {
	msg := DigestMessage{
		Subject:   subject,
		Body:      d.Markdown(),
		Entries:   d.Entries,
		Timestamp: time.Now().UTC(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		p.routingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	p.logger.Debug("digest published", "entries", len(d.Entries))
	return nil
}

// Close releases the channel and connection.
func (p *AMQP) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
