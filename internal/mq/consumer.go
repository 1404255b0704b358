package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/doc-orchestrator/internal/telemetry"
)

// settleTimeout — сколько ждать подтверждения брокера при повторной публикации.
// Отмена ctx (остановка сервиса) на неё не влияет.
const settleTimeout = 5 * time.Second

// Handler — функция обработки сообщения.
// Ошибка приводит к повторной доставке, обёрнутая ErrDrop — к отбрасыванию.
type Handler func(ctx context.Context, d *Delivery) error

// Delivery — доставленное сообщение.
type Delivery struct {
	// Body — тело сообщения (JSON).
	Body []byte

	// Retry — сколько раз сообщение уже доставлялось повторно.
	Retry RetryPolicy

	// Raw — сырое AMQP сообщение.
	Raw amqp.Delivery
}

// Decode разбирает тело сообщения. Некорректный JSON помечается ErrDrop:
// повторная доставка его не исправит.
func (d *Delivery) Decode(v any) error {
	if err := json.Unmarshal(d.Body, v); err != nil {
		return fmt.Errorf("decode message: %w: %w", ErrDrop, err)
	}
	return nil
}

// Source — очередь, из которой читаются сообщения.
// *Queue реализует Source.
type Source interface {
	Name() string
	Consume() (<-chan amqp.Delivery, error)
}

// Consumer последовательно обрабатывает сообщения одной очереди.
//
// Следующее сообщение не берётся, пока текущее не подтверждено,
// поэтому при prefetch=1 все изменения в рамках очереди упорядочены.
type Consumer struct {
	source          Source
	sink            Sink
	logger          *slog.Logger
	handler         Handler
	maxRedeliveries int
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	// Handler — обработчик сообщений.
	Handler Handler

	// MaxRedeliveries — лимит повторных доставок (по умолчанию 10).
	MaxRedeliveries int
}

// NewConsumer создаёт Consumer для очереди.
// Повторная доставка идёт в ту же очередь.
func NewConsumer(q *Queue, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	return newConsumer(q, q, logger, cfg)
}

func newConsumer(source Source, sink Sink, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	maxRedeliveries := cfg.MaxRedeliveries
	if maxRedeliveries <= 0 {
		maxRedeliveries = DefaultMaxRedeliveries
	}

	return &Consumer{
		source:          source,
		sink:            sink,
		logger:          telemetry.WithQueue(logger, source.Name()),
		handler:         cfg.Handler,
		maxRedeliveries: maxRedeliveries,
	}
}

// Run потребляет сообщения, пока не отменён ctx.
// Закрытие канала доставки — ошибка ErrConnectionLost.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.source.Consume()
	if err != nil {
		return err
	}

	c.logger.Info("consumer started")
	defer c.logger.Info("consumer stopped")

	return c.processDeliveries(ctx, deliveries)
}

// processDeliveries обрабатывает сообщения из канала по одному.
func (c *Consumer) processDeliveries(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case raw, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("%w: deliveries channel for %s closed", ErrConnectionLost, c.source.Name())
			}

			c.handleDelivery(ctx, raw)
		}
	}
}

// handleDelivery обрабатывает одно сообщение.
// Сообщение подтверждается всегда; при ошибке обработчика
// его копия публикуется заново, пока не исчерпан лимит.
func (c *Consumer) handleDelivery(ctx context.Context, raw amqp.Delivery) {
	policy := RetryPolicyFromHeaders(raw.Headers, c.maxRedeliveries)
	logger := c.logger.With("redelivered_count", policy.Attempt)

	d := &Delivery{
		Body:  raw.Body,
		Retry: policy,
		Raw:   raw,
	}

	err := c.handler(telemetry.WithLogger(ctx, logger), d)
	outcome := c.settle(ctx, logger, d, err)

	if err := raw.Ack(false); err != nil {
		logger.Error("failed to ack message", "error", err)
	}

	telemetry.MessagesConsumed.WithLabelValues(c.source.Name(), outcome).Inc()
}

// settle решает судьбу сообщения после обработчика.
func (c *Consumer) settle(ctx context.Context, logger *slog.Logger, d *Delivery, err error) string {
	if err == nil {
		return telemetry.OutcomeAck
	}

	if errors.Is(err, ErrDrop) {
		logger.Error("message dropped",
			"error", err,
			"body", string(d.Body),
		)
		return telemetry.OutcomeDropped
	}

	if !d.Retry.CanRetry() {
		logger.Error("message dropped after max redeliveries",
			"max_redeliveries", d.Retry.MaxAttempts,
			"error", err,
			"body", string(d.Body),
		)
		return telemetry.OutcomeDropped
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	next := d.Retry.Next()
	if pubErr := c.sink.Publish(pubCtx, d.Body, next.Headers()); pubErr != nil {
		logger.Error("failed to redeliver message",
			"error", pubErr,
			"handler_error", err,
			"body", string(d.Body),
		)
		return telemetry.OutcomeDropped
	}

	logger.Warn("handler failed, message redelivered",
		"error", err,
		"attempt", next.Attempt,
	)
	return telemetry.OutcomeRedelivered
}
