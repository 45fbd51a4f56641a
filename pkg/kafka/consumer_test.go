package kafka

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	msgs      chan kafka.Message
	mu        sync.Mutex
	committed []int64
	closed    chan struct{}
	once      sync.Once
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	r := &fakeReader{msgs: make(chan kafka.Message, len(msgs)), closed: make(chan struct{})}
	for _, m := range msgs {
		r.msgs <- m
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-r.closed:
		return kafka.Message{}, errors.New("reader closed")
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.once.Do(func() { close(r.closed) })
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func (w *fakeWriter) sent() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

type funcHandler struct {
	topic string
	fn    func(context.Context, []byte) error
}

func (h funcHandler) Topic() string                              { return h.topic }
func (h funcHandler) Handle(ctx context.Context, b []byte) error { return h.fn(ctx, b) }

func startConsumer(t *testing.T, r *fakeReader, dlq Writer, h MessageHandler, hook ConsumerHook, opts ...ConsumerOption) *Consumer {
	t.Helper()
	opts = append([]ConsumerOption{
		WithConsumerReaders(func(string) Reader { return r }, dlq),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond),
		WithConsumerMetrics(prometheus.NewRegistry()),
	}, opts...)
	c, err := NewConsumer(opts...)
	require.NoError(t, err)
	c.RegisterHandler(h)
	c.WithConsumerHook(hook)
	require.NoError(t, c.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = c.Stop(ctx)
	})
	return c
}

func TestConsumer_HandlesAndCommits(t *testing.T) {
	r := newFakeReader(
		kafka.Message{Topic: "events", Offset: 1, Value: []byte("a")},
		kafka.Message{Topic: "events", Offset: 2, Value: []byte("b")},
	)
	var mu sync.Mutex
	var got []string
	startConsumer(t, r, nil, funcHandler{topic: "events", fn: func(_ context.Context, b []byte) error {
		mu.Lock()
		got = append(got, string(b))
		mu.Unlock()
		return nil
	}}, nil)

	assert.Eventually(t, func() bool { return len(r.commits()) == 2 }, time.Second, 5*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestConsumer_RetriesThenDeadLetters(t *testing.T) {
	r := newFakeReader(kafka.Message{Topic: "events", Offset: 7, Value: []byte("bad")})
	dlq := &fakeWriter{}
	var calls atomic.Int32
	startConsumer(t, r, dlq, funcHandler{topic: "events", fn: func(context.Context, []byte) error {
		calls.Add(1)
		return errors.New("boom")
	}}, nil, WithConsumerDLQ("events.dlq"))

	assert.Eventually(t, func() bool { return len(r.commits()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())
	sent := dlq.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "events.dlq", sent[0].Topic)
	assert.Equal(t, "bad", string(sent[0].Value))
}

func TestConsumer_PermanentErrorSkipsRetry(t *testing.T) {
	r := newFakeReader(kafka.Message{Topic: "events", Offset: 9, Value: []byte("{")})
	dlq := &fakeWriter{}
	var calls atomic.Int32
	startConsumer(t, r, dlq, funcHandler{topic: "events", fn: func(context.Context, []byte) error {
		calls.Add(1)
		return Permanent(errors.New("malformed"))
	}}, nil, WithConsumerDLQ("events.dlq"))

	assert.Eventually(t, func() bool { return len(r.commits()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	require.Len(t, dlq.sent(), 1)
	assert.Equal(t, "{", string(dlq.sent()[0].Value))
}

func TestPermanent(t *testing.T) {
	assert.Nil(t, Permanent(nil))
	base := errors.New("bad payload")
	err := Permanent(base)
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, base)
	assert.False(t, IsPermanent(base))
}

func TestConsumer_FailureWithoutDLQLeavesOffset(t *testing.T) {
	r := newFakeReader(kafka.Message{Topic: "events", Offset: 3, Value: []byte("x")})
	var calls atomic.Int32
	startConsumer(t, r, nil, funcHandler{topic: "events", fn: func(context.Context, []byte) error {
		calls.Add(1)
		return errors.New("boom")
	}}, nil)

	assert.Eventually(t, func() bool { return calls.Load() == 3 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, r.commits())
}

func TestConsumer_SkipOrigin(t *testing.T) {
	self := kafka.Message{Topic: "events", Offset: 1, Value: []byte("self"),
		Headers: []kafka.Header{{Key: HeaderOrigin, Value: []byte("node-a")}}}
	other := kafka.Message{Topic: "events", Offset: 2, Value: []byte("other"),
		Headers: []kafka.Header{{Key: HeaderOrigin, Value: []byte("node-b")}}}
	r := newFakeReader(self, other)

	var mu sync.Mutex
	var got []string
	startConsumer(t, r, nil, funcHandler{topic: "events", fn: func(_ context.Context, b []byte) error {
		mu.Lock()
		got = append(got, string(b))
		mu.Unlock()
		return nil
	}}, SkipOrigin("node-a"))

	assert.Eventually(t, func() bool { return len(r.commits()) == 2 }, time.Second, 5*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"other"}, got)
}

func TestProducer_PublishStampsOrigin(t *testing.T) {
	w := &fakeWriter{}
	p, err := NewProducer(WithWriter(w), WithOrigin("node-a"), WithProducerMetrics(prometheus.NewRegistry()))
	require.NoError(t, err)

	require.NoError(t, p.Publish(context.Background(), "events", []byte("k"), map[string]string{"a": "b"}))
	sent := w.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "node-a", Header(sent[0], HeaderOrigin))
	assert.JSONEq(t, `{"a":"b"}`, string(sent[0].Value))
}

func TestNewConsumer_RequiresBrokers(t *testing.T) {
	_, err := NewConsumer()
	assert.Error(t, err)
}

func TestBackoffWithJitter(t *testing.T) {
	for attempt := 1; attempt < 10; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 100*time.Millisecond, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 100*time.Millisecond)
	}
}
