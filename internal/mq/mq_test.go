package mq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/doc-orchestrator/internal/telemetry"
)

// --- fakes ---

type fakeAcknowledger struct {
	mu    sync.Mutex
	acks  int
	nacks int
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks++
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks++
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

type published struct {
	body    []byte
	headers amqp.Table
}

type fakeQueue struct {
	name       string
	mu         sync.Mutex
	published  []published
	publishErr error
	deliveries chan amqp.Delivery
}

func newFakeQueue(name string) *fakeQueue {
	return &fakeQueue{name: name, deliveries: make(chan amqp.Delivery, 16)}
}

func (q *fakeQueue) Name() string { return q.name }

func (q *fakeQueue) Publish(ctx context.Context, body []byte, headers amqp.Table) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.publishErr != nil {
		return q.publishErr
	}
	// как Queue.Publish: ожидание подтверждения прерывается отменой ctx
	if err := ctx.Err(); err != nil {
		return err
	}
	q.published = append(q.published, published{body: body, headers: headers})
	return nil
}

func (q *fakeQueue) Consume() (<-chan amqp.Delivery, error) {
	return q.deliveries, nil
}

func (q *fakeQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.published)
}

type testMessage struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

func (m *testMessage) MessageID() string   { return m.ID }
func (m *testMessage) MessageType() string { return m.Type }

func delivery(ack *fakeAcknowledger, body string, headers amqp.Table) amqp.Delivery {
	return amqp.Delivery{
		Acknowledger: ack,
		DeliveryTag:  1,
		Headers:      headers,
		Body:         []byte(body),
	}
}

// --- RetryPolicy Tests ---

func TestRetryPolicyFromHeaders(t *testing.T) {
	tests := []struct {
		name    string
		headers amqp.Table
		want    int
	}{
		{"no headers", nil, 0},
		{"int32", amqp.Table{RedeliveredCountHeader: int32(3)}, 3},
		{"int64", amqp.Table{RedeliveredCountHeader: int64(7)}, 7},
		{"int", amqp.Table{RedeliveredCountHeader: 2}, 2},
		{"string", amqp.Table{RedeliveredCountHeader: "5"}, 5},
		{"garbage", amqp.Table{RedeliveredCountHeader: "x"}, 0},
		{"negative", amqp.Table{RedeliveredCountHeader: int32(-4)}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := RetryPolicyFromHeaders(tt.headers, 10)
			assert.Equal(t, tt.want, p.Attempt)
			assert.Equal(t, 10, p.MaxAttempts)
		})
	}

	assert.Equal(t, DefaultMaxRedeliveries, RetryPolicyFromHeaders(nil, 0).MaxAttempts)
}

func TestRetryPolicy_Cap(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 10}
	retries := 0
	for p.CanRetry() {
		next := p.Next()
		require.Equal(t, p.Attempt+1, next.Attempt, "counter must grow by exactly one")
		p = next
		retries++
	}

	assert.Equal(t, 10, retries)
	assert.Equal(t, int32(10), p.Headers()[RedeliveredCountHeader])
}

// --- Consumer Tests ---

func TestConsumer_HandleDelivery_Success(t *testing.T) {
	q := newFakeQueue("DOC-STATUS")
	ack := &fakeAcknowledger{}
	c := newConsumer(q, q, nil, ConsumerConfig{
		Handler: func(ctx context.Context, d *Delivery) error {
			var msg testMessage
			return d.Decode(&msg)
		},
	})

	c.handleDelivery(context.Background(), delivery(ack, `{"id":"1"}`, nil))

	assert.Equal(t, 1, ack.acks)
	assert.Zero(t, ack.nacks)
	assert.Zero(t, q.count())
}

func TestConsumer_HandleDelivery_Redeliver(t *testing.T) {
	q := newFakeQueue("DOC-STATUS")
	ack := &fakeAcknowledger{}
	c := newConsumer(q, q, nil, ConsumerConfig{
		Handler: func(ctx context.Context, d *Delivery) error {
			return errors.New("dataset unavailable")
		},
	})

	c.handleDelivery(context.Background(), delivery(ack, `{"id":"1"}`, amqp.Table{RedeliveredCountHeader: int32(4)}))

	assert.Equal(t, 1, ack.acks, "original must be acknowledged")
	assert.Zero(t, ack.nacks, "native requeue must not be used")
	require.Equal(t, 1, q.count())
	assert.Equal(t, `{"id":"1"}`, string(q.published[0].body))
	assert.Equal(t, int32(5), q.published[0].headers[RedeliveredCountHeader])
}

func TestConsumer_HandleDelivery_DropAfterMax(t *testing.T) {
	q := newFakeQueue("DOC-TASKS")
	ack := &fakeAcknowledger{}
	c := newConsumer(q, q, nil, ConsumerConfig{
		Handler: func(ctx context.Context, d *Delivery) error {
			return errors.New("still failing")
		},
	})

	c.handleDelivery(context.Background(), delivery(ack, `{}`, amqp.Table{RedeliveredCountHeader: int32(10)}))

	assert.Equal(t, 1, ack.acks)
	assert.Zero(t, q.count())
}

func TestConsumer_HandleDelivery_Malformed(t *testing.T) {
	q := newFakeQueue("DOC-TASKS")
	ack := &fakeAcknowledger{}
	c := newConsumer(q, q, nil, ConsumerConfig{
		Handler: func(ctx context.Context, d *Delivery) error {
			var msg testMessage
			return d.Decode(&msg)
		},
	})

	c.handleDelivery(context.Background(), delivery(ack, `not json`, nil))

	assert.Equal(t, 1, ack.acks)
	assert.Zero(t, q.count(), "malformed message must not be redelivered")
}

func TestConsumer_HandleDelivery_RedeliverFails(t *testing.T) {
	q := newFakeQueue("DOC-STATUS")
	q.publishErr = errors.New("channel closed")
	ack := &fakeAcknowledger{}
	c := newConsumer(q, q, nil, ConsumerConfig{
		Handler: func(ctx context.Context, d *Delivery) error {
			return errors.New("boom")
		},
	})

	c.handleDelivery(context.Background(), delivery(ack, `{}`, nil))

	assert.Equal(t, 1, ack.acks)
}

func TestConsumer_HandleDelivery_RedeliverAfterShutdown(t *testing.T) {
	q := newFakeQueue("DOC-STATUS")
	ack := &fakeAcknowledger{}
	c := newConsumer(q, q, nil, ConsumerConfig{
		Handler: func(ctx context.Context, d *Delivery) error {
			return errors.New("dataset unavailable")
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c.handleDelivery(ctx, delivery(ack, `{"id":"1"}`, nil))

	assert.Equal(t, 1, ack.acks)
	require.Equal(t, 1, q.count(), "redelivery must survive service shutdown")
	assert.Equal(t, int32(1), q.published[0].headers[RedeliveredCountHeader])
}

func TestConsumer_HandlerGetsLoggerAndRetry(t *testing.T) {
	q := newFakeQueue("DOC-STATUS")
	var gotAttempt int
	var hasLogger bool
	c := newConsumer(q, q, nil, ConsumerConfig{
		Handler: func(ctx context.Context, d *Delivery) error {
			gotAttempt = d.Retry.Attempt
			hasLogger = ctx.Value(telemetry.CtxLogger) != nil
			return nil
		},
	})

	c.handleDelivery(context.Background(), delivery(&fakeAcknowledger{}, `{}`, amqp.Table{RedeliveredCountHeader: int32(2)}))

	assert.Equal(t, 2, gotAttempt)
	assert.True(t, hasLogger)
}

func TestConsumer_Run_ProcessesSequentiallyAndStopsOnClose(t *testing.T) {
	q := newFakeQueue("DOC-STATUS")
	ack := &fakeAcknowledger{}

	var order []string
	c := newConsumer(q, q, nil, ConsumerConfig{
		Handler: func(ctx context.Context, d *Delivery) error {
			var msg testMessage
			if err := d.Decode(&msg); err != nil {
				return err
			}
			order = append(order, msg.ID)
			return nil
		},
	})

	for i := 1; i <= 3; i++ {
		q.deliveries <- delivery(ack, fmt.Sprintf(`{"id":"%d"}`, i), nil)
	}
	close(q.deliveries)

	err := c.Run(context.Background())

	require.ErrorIs(t, err, ErrConnectionLost)
	assert.Equal(t, []string{"1", "2", "3"}, order)
	assert.Equal(t, 3, ack.acks)
}

func TestConsumer_Run_StopsOnContextCancel(t *testing.T) {
	q := newFakeQueue("DOC-STATUS")
	c := newConsumer(q, q, nil, ConsumerConfig{
		Handler: func(ctx context.Context, d *Delivery) error { return nil },
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

// --- Publisher Tests ---

func TestPublisher_Publish(t *testing.T) {
	q := newFakeQueue("DOC-EXECUTOR-TASKS")
	p := NewPublisher(q, nil)

	err := p.Publish(context.Background(), &testMessage{ID: "c1", Type: "EXECUTION_CREATE"})
	require.NoError(t, err)

	require.Equal(t, 1, q.count())
	assert.JSONEq(t, `{"id":"c1","type":"EXECUTION_CREATE"}`, string(q.published[0].body))
	assert.Nil(t, q.published[0].headers)
}

func TestPublisher_PublishError(t *testing.T) {
	q := newFakeQueue("DOC-EXECUTOR-TASKS")
	q.publishErr = ErrNotConfirmed
	p := NewPublisher(q, nil)

	err := p.Publish(context.Background(), &testMessage{ID: "c1"})
	assert.ErrorIs(t, err, ErrNotConfirmed)
}

// --- Dial Tests ---

func TestDialWithRetry_Exhausted(t *testing.T) {
	calls := 0
	var failures []int

	_, err := dialWithRetry(context.Background(), 3, time.Millisecond,
		func() (int, error) {
			calls++
			return 0, errors.New("connection refused")
		},
		func(attempt int, err error) { failures = append(failures, attempt) },
	)

	require.ErrorIs(t, err, ErrConnectionFailed)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2, 3}, failures)
}

func TestDialWithRetry_SucceedsLater(t *testing.T) {
	calls := 0
	got, err := dialWithRetry(context.Background(), 10, time.Millisecond,
		func() (string, error) {
			calls++
			if calls < 3 {
				return "", errors.New("not yet")
			}
			return "conn", nil
		},
		nil,
	)

	require.NoError(t, err)
	assert.Equal(t, "conn", got)
	assert.Equal(t, 3, calls)
}

func TestDialWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := dialWithRetry(ctx, 10, time.Hour,
		func() (int, error) { return 0, errors.New("refused") },
		nil,
	)

	require.ErrorIs(t, err, ErrConnectionFailed)
	assert.ErrorIs(t, err, context.Canceled)
}
