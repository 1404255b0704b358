package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Message — сообщение для публикации.
// Реализуется типами из domain.
type Message interface {
	MessageID() string
	MessageType() string
}

// Sink — очередь, в которую публикуются готовые байты.
// *Queue реализует Sink.
type Sink interface {
	Name() string
	Publish(ctx context.Context, body []byte, headers amqp.Table) error
}

// Publisher публикует JSON-сообщения в одну очередь.
type Publisher struct {
	sink   Sink
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(sink Sink, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		sink:   sink,
		logger: logger,
	}
}

// Publish сериализует сообщение и публикует его как persistent.
func (p *Publisher) Publish(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := p.sink.Publish(ctx, body, nil); err != nil {
		return err
	}

	p.logger.Debug("message published",
		"queue", p.sink.Name(),
		"message_id", msg.MessageID(),
		"type", msg.MessageType(),
	)

	return nil
}
