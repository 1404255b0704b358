package mq

import (
	"strconv"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RedeliveredCountHeader — заголовок со счётчиком повторных доставок.
const RedeliveredCountHeader = "x-redelivered-count"

// DefaultMaxRedeliveries — сколько раз сообщение может быть доставлено повторно.
const DefaultMaxRedeliveries = 10

// RetryPolicy — счётчик повторов, который едет вместе с сообщением.
type RetryPolicy struct {
	// MaxAttempts — максимальное число повторных доставок.
	MaxAttempts int

	// Attempt — сколько раз сообщение уже было доставлено повторно.
	Attempt int
}

// RetryPolicyFromHeaders читает счётчик из заголовков сообщения.
// Отсутствующий или некорректный заголовок означает 0.
func RetryPolicyFromHeaders(headers amqp.Table, maxAttempts int) RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxRedeliveries
	}
	p := RetryPolicy{MaxAttempts: maxAttempts}

	raw, ok := headers[RedeliveredCountHeader]
	if !ok {
		return p
	}

	switch v := raw.(type) {
	case int:
		p.Attempt = v
	case int8:
		p.Attempt = int(v)
	case int16:
		p.Attempt = int(v)
	case int32:
		p.Attempt = int(v)
	case int64:
		p.Attempt = int(v)
	case uint8:
		p.Attempt = int(v)
	case uint16:
		p.Attempt = int(v)
	case uint32:
		p.Attempt = int(v)
	case float32:
		p.Attempt = int(v)
	case float64:
		p.Attempt = int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			p.Attempt = n
		}
	}

	if p.Attempt < 0 {
		p.Attempt = 0
	}
	return p
}

// CanRetry возвращает true, если сообщение ещё можно доставить повторно.
func (p RetryPolicy) CanRetry() bool {
	return p.Attempt < p.MaxAttempts
}

// Next возвращает политику для следующей доставки.
func (p RetryPolicy) Next() RetryPolicy {
	p.Attempt++
	return p
}

// Headers возвращает заголовки для публикации копии сообщения.
func (p RetryPolicy) Headers() amqp.Table {
	return amqp.Table{RedeliveredCountHeader: int32(p.Attempt)}
}
