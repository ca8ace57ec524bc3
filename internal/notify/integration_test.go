//go:build integration

package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"

	"upload_monitor/internal/digest"
)

type AMQPIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *rabbitmq.RabbitMQContainer
	amqpURL   string
	logger    *slog.Logger
}

func (s *AMQPIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	container, err := rabbitmq.Run(s.ctx,
		"rabbitmq:3.13-management-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete").
				WithStartupTimeout(60*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	amqpURL, err := container.AmqpURL(s.ctx)
	s.Require().NoError(err)
	s.amqpURL = amqpURL
}

func (s *AMQPIntegrationSuite) TearDownSuite() {
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func TestAMQPIntegrationSuite(t *testing.T) {
	suite.Run(t, new(AMQPIntegrationSuite))
}

func (s *AMQPIntegrationSuite) consumeMessage(settings AMQPSettings) *amqp.Delivery {
	conn, err := amqp.Dial(s.amqpURL)
	s.Require().NoError(err)
	defer conn.Close()

	ch, err := conn.Channel()
	s.Require().NoError(err)
	defer ch.Close()

	deliveries, err := ch.Consume(settings.QueueName, "", true, false, false, false, nil)
	s.Require().NoError(err)

	select {
	case msg := <-deliveries:
		return &msg
	case <-time.After(10 * time.Second):
		s.FailNow("no message received")
		return nil
	}
}

func (s *AMQPIntegrationSuite) TestConnection() {
	settings := AMQPSettings{
		URL:        s.amqpURL,
		Exchange:   "test-exchange",
		RoutingKey: "test-routing-key",
		QueueName:  "test-queue",
	}

	pub, err := NewAMQP(settings, s.logger)
	s.NoError(err)
	s.NotNil(pub)

	err = pub.Close()
	s.NoError(err)
}

func (s *AMQPIntegrationSuite) TestDeliverDigest() {
	settings := AMQPSettings{
		URL:        s.amqpURL,
		Exchange:   "test-exchange-digest",
		RoutingKey: "test-routing-key-digest",
		QueueName:  "test-queue-digest",
	}

	pub, err := NewAMQP(settings, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	d := digest.Digest{
		Title: "AIGC Upload Digest",
		Entries: []digest.Entry{
			{Date: "11-14", Glyph: "📱", Author: "up-a", Title: "ComfyUI tips", URL: "https://www.bilibili.com/video/BV1"},
			{Date: "11-13", Glyph: "📺", Author: "channel-b", Title: "Sora breakdown", URL: "https://www.youtube.com/watch?v=abc"},
		},
	}

	err = pub.Deliver(s.ctx, d, "AIGC Upload Digest")
	s.NoError(err)

	msg := s.consumeMessage(settings)
	s.Require().NotNil(msg)
	s.Equal("application/json", msg.ContentType)

	var received DigestMessage
	err = json.Unmarshal(msg.Body, &received)
	s.NoError(err)
	s.Equal("AIGC Upload Digest", received.Subject)
	s.Len(received.Entries, 2)
	s.Equal("up-a", received.Entries[0].Author)
	s.Contains(received.Body, "[ComfyUI tips](https://www.bilibili.com/video/BV1)")
	s.False(received.Timestamp.IsZero())
}
