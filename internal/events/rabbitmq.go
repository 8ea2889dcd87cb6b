// internal/events/rabbitmq.go
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/valpere/PriceScrapexter/internal/utils"
)

// RabbitMQConfig configures RabbitMQPublisher.
type RabbitMQConfig struct {
	URL        string
	Exchange   string
	QueueName  string
	BindingKey string
}

// RabbitMQPublisher publishes events to a topic exchange, routed by event
// type.
type RabbitMQPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   utils.Logger
}

// NewRabbitMQPublisher dials the broker and declares the exchange. When
// QueueName is set, a durable queue is declared and bound with BindingKey.
func NewRabbitMQPublisher(config RabbitMQConfig, logger utils.Logger) (*RabbitMQPublisher, error) {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	if config.Exchange == "" {
		config.Exchange = "pricescrapexter.products"
	}
	if config.BindingKey == "" {
		config.BindingKey = "product.*"
	}

	conn, err := amqp.Dial(config.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(config.Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	if config.QueueName != "" {
		q, err := ch.QueueDeclare(config.QueueName, true, false, false, false, nil)
		if err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("declare queue: %w", err)
		}
		if err := ch.QueueBind(q.Name, config.BindingKey, config.Exchange, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("bind queue: %w", err)
		}
	}

	logger.WithFields(map[string]interface{}{
		"exchange": config.Exchange,
		"queue":    config.QueueName,
	}).Info("connected to rabbitmq")

	return &RabbitMQPublisher{
		conn:     conn,
		channel:  ch,
		exchange: config.Exchange,
		logger:   logger.WithField("component", "rabbitmq_publisher"),
	}, nil
}

// Publish sends event with persistent delivery.
func (r *RabbitMQPublisher) Publish(ctx context.Context, event ProductEvent) error {
	msg, err := encode(event)
	if err != nil {
		return err
	}

	if err := r.channel.PublishWithContext(ctx, r.exchange, string(event.Type), false, false, msg); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	r.logger.WithFields(map[string]interface{}{
		"type":       event.Type,
		"product_id": event.ProductID,
	}).Debug("published product event")
	return nil
}

// Close closes the channel and the connection.
func (r *RabbitMQPublisher) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func encode(event ProductEvent) (amqp.Publishing, error) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal message: %w", err)
	}
	return amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Type:         string(event.Type),
		Body:         body,
		Timestamp:    event.OccurredAt,
	}, nil
}
