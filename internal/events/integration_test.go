//go:build integration

// internal/events/integration_test.go
package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"
)

type RabbitMQIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *rabbitmq.RabbitMQContainer
	amqpURL   string
}

func (s *RabbitMQIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := rabbitmq.Run(s.ctx,
		"rabbitmq:3.13-management-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete").
				WithStartupTimeout(60*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	s.amqpURL, err = container.AmqpURL(s.ctx)
	s.Require().NoError(err)
}

func (s *RabbitMQIntegrationSuite) TearDownSuite() {
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func TestRabbitMQIntegrationSuite(t *testing.T) {
	suite.Run(t, new(RabbitMQIntegrationSuite))
}

func (s *RabbitMQIntegrationSuite) TestPublishPriceChanged() {
	cfg := RabbitMQConfig{
		URL:       s.amqpURL,
		Exchange:  "test-products",
		QueueName: "test-product-events",
	}
	pub, err := NewRabbitMQPublisher(cfg, nil)
	s.Require().NoError(err)
	defer pub.Close()

	at := time.Now().UTC().Truncate(time.Second)
	ev := PriceChanged(testProduct(), testProduct().CurrentPrice, at)
	s.Require().NoError(pub.Publish(s.ctx, ev))

	msg := s.consumeMessage(cfg.QueueName)
	s.Require().NotNil(msg)
	s.Equal("product.price_changed", msg.RoutingKey)
	s.Equal(uint8(amqp.Persistent), msg.DeliveryMode)

	var received ProductEvent
	s.Require().NoError(json.Unmarshal(msg.Body, &received))
	s.Equal(ProductPriceChanged, received.Type)
	s.Equal(int64(5), received.ProductID)
}

func (s *RabbitMQIntegrationSuite) consumeMessage(queue string) *amqp.Delivery {
	conn, err := amqp.Dial(s.amqpURL)
	s.Require().NoError(err)
	defer conn.Close()

	ch, err := conn.Channel()
	s.Require().NoError(err)
	defer ch.Close()

	msgs, err := ch.Consume(queue, "", true, false, false, false, nil)
	s.Require().NoError(err)

	select {
	case msg := <-msgs:
		return &msg
	case <-time.After(5 * time.Second):
		s.Fail("Timeout waiting for message")
		return nil
	}
}
