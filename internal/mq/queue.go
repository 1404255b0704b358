package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Queue — логическая очередь со своим каналом в режиме подтверждений.
//
// Публикация идёт через default exchange с routing key = имя очереди,
// поэтому exchanges и bindings не объявляются.
type Queue struct {
	name   string
	ch     *amqp.Channel
	logger *slog.Logger
}

// setupQueue объявляет durable очередь и включает confirm-режим.
func setupQueue(ch *amqp.Channel, name string, prefetch int) (*Queue, error) {
	_, err := ch.QueueDeclare(
		name,  // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("declare queue %s: %w", name, err)
	}

	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("confirm mode for %s: %w", name, err)
	}

	if prefetch > 0 {
		if err := ch.Qos(prefetch, 0, false); err != nil {
			return nil, fmt.Errorf("set qos for %s: %w", name, err)
		}
	}

	return &Queue{name: name, ch: ch, logger: slog.Default()}, nil
}

// Name возвращает имя очереди.
func (q *Queue) Name() string {
	return q.name
}

// Publish публикует тело сообщения в очередь и ждёт подтверждения брокера.
func (q *Queue) Publish(ctx context.Context, body []byte, headers amqp.Table) error {
	dc, err := q.ch.PublishWithDeferredConfirmWithContext(ctx,
		"",     // default exchange
		q.name, // routing key
		false,  // mandatory
		false,  // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Headers:      headers,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", q.name, err)
	}

	acked, err := dc.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("wait confirm from %s: %w", q.name, err)
	}
	if !acked {
		return fmt.Errorf("%w: %s", ErrNotConfirmed, q.name)
	}
	return nil
}

// Consume подписывается на очередь с ручным подтверждением.
func (q *Queue) Consume() (<-chan amqp.Delivery, error) {
	deliveries, err := q.ch.Consume(
		q.name, // queue
		"",     // consumer tag (auto-generated)
		false,  // auto-ack (мы ack вручную)
		false,  // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", q.name, err)
	}
	return deliveries, nil
}

// Close закрывает канал очереди.
func (q *Queue) Close() error {
	if err := q.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return fmt.Errorf("close channel %s: %w", q.name, err)
	}
	return nil
}
