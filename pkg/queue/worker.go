package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"FinCast/pkg/logger"
)

// Mode selects whether a Queue runs workers.
type Mode int

const (
	ModeProducerConsumer Mode = iota
	ModeProducerOnly
)

// Queue is a job queue with a worker pool, delayed retries and a dead letter list.
type Queue struct {
	log     *logger.Logger
	cfg     Config
	backend Backend
	mode    Mode
	prefix  string
	now     func() time.Time

	mu      sync.RWMutex
	jobs    map[string]Job
	running bool
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// Option configures Queue.
type Option func(*Queue)

// WithKeyPrefix sets the key namespace in the backend.
func WithKeyPrefix(prefix string) Option {
	return func(q *Queue) { q.prefix = prefix }
}

// WithMode selects producer-only or producer-consumer operation.
func WithMode(m Mode) Option {
	return func(q *Queue) { q.mode = m }
}

// WithClock replaces time.Now for retry scheduling.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

func New(backend Backend, cfg Config, l *logger.Logger, opts ...Option) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = time.Second
	}
	if cfg.RetryPoll <= 0 {
		cfg.RetryPoll = 5 * time.Second
	}
	if l == nil {
		l = logger.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		log:     l.With(logger.String("component", "queue")),
		cfg:     cfg,
		backend: backend,
		prefix:  "fincast:queue",
		now:     time.Now,
		jobs:    make(map[string]Job),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// RegisterJob adds a handler. Registering a type twice keeps the first handler.
func (q *Queue) RegisterJob(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.jobs[job.Type()]; ok {
		q.log.Warn("job already registered", logger.String("type", job.Type()))
		return
	}
	q.jobs[job.Type()] = job
}

// Start pings the backend and launches the workers and the retry poller.
func (q *Queue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return fmt.Errorf("queue already running")
	}

	ctx, cancel := context.WithTimeout(q.ctx, 5*time.Second)
	defer cancel()
	if err := q.backend.Ping(ctx); err != nil {
		return fmt.Errorf("queue backend ping: %w", err)
	}
	q.running = true

	if q.mode == ModeProducerOnly {
		return nil
	}
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	q.wg.Add(1)
	go q.retryLoop()
	q.log.Info("queue started", logger.Int("workers", q.cfg.Workers), logger.Int("jobs", len(q.jobs)))
	return nil
}

// Stop cancels in-flight work and waits for the workers until ctx expires.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	q.cancel()
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("queue stop: %w", ctx.Err())
	case <-done:
		q.log.Info("queue stopped")
		return nil
	}
}

// Enqueue stores a message of type typ. payload is JSON encoded.
func (q *Queue) Enqueue(ctx context.Context, typ string, payload any) error {
	q.mu.RLock()
	running := q.running
	_, known := q.jobs[typ]
	q.mu.RUnlock()

	if !running {
		return fmt.Errorf("queue not running")
	}
	if q.mode != ModeProducerOnly && !known {
		return fmt.Errorf("no job registered for type %q", typ)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	data, err := json.Marshal(Message{
		ID:         uuid.NewString(),
		Type:       typ,
		Payload:    raw,
		EnqueuedAt: q.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := q.backend.Push(ctx, q.key("messages"), data); err != nil {
		return fmt.Errorf("enqueue %s: %w", typ, err)
	}
	return nil
}

// DeadLetters reports the number of messages that exhausted their retries.
func (q *Queue) DeadLetters(ctx context.Context) (int64, error) {
	return q.backend.Len(ctx, q.key("dlq"))
}

// Pending reports the number of messages waiting for a worker.
func (q *Queue) Pending(ctx context.Context) (int64, error) {
	return q.backend.Len(ctx, q.key("messages"))
}

func (q *Queue) key(name string) string {
	return q.prefix + ":" + name
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()
	for {
		if q.ctx.Err() != nil {
			return
		}
		data, err := q.backend.Pop(q.ctx, q.key("messages"), q.cfg.PollTimeout)
		switch {
		case err == nil:
			q.process(data)
		case errors.Is(err, ErrEmpty), errors.Is(err, context.Canceled):
		default:
			q.log.Error("queue pop", logger.Int("worker_id", id), logger.Error(err))
			q.sleep(time.Second)
		}
	}
}

func (q *Queue) process(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		q.log.Error("queue message unmarshal", logger.Error(err))
		q.bury(data)
		return
	}

	q.mu.RLock()
	job, ok := q.jobs[msg.Type]
	q.mu.RUnlock()
	if !ok {
		q.log.Error("no job for message", logger.String("type", msg.Type), logger.String("id", msg.ID))
		msg.LastError = "no job registered"
		q.buryMessage(msg)
		return
	}

	start := time.Now()
	err := job.Handle(q.ctx, msg.Payload)
	if err == nil {
		q.log.Debug("job done",
			logger.String("type", msg.Type),
			logger.String("id", msg.ID),
			logger.Duration("elapsed", time.Since(start)))
		return
	}
	if errors.Is(err, context.Canceled) && q.ctx.Err() != nil {
		// Shutting down: put it back for the next worker.
		if perr := q.backend.Push(context.Background(), q.key("messages"), data); perr != nil {
			q.log.Error("requeue on shutdown", logger.String("id", msg.ID), logger.Error(perr))
		}
		return
	}

	msg.Attempts++
	msg.LastError = err.Error()
	fields := []logger.Field{
		logger.String("type", msg.Type),
		logger.String("id", msg.ID),
		logger.Int("attempt", msg.Attempts),
		logger.Error(err),
	}
	if IsPermanent(err) || msg.Attempts > q.cfg.RetryLimit {
		q.log.Error("job failed, dead-lettering", fields...)
		q.buryMessage(msg)
		return
	}
	q.log.Warn("job failed, scheduling retry", fields...)
	q.scheduleRetry(msg)
}

func (q *Queue) scheduleRetry(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		q.log.Error("marshal retry", logger.Error(err))
		return
	}
	at := q.now().Add(q.cfg.RetryDelay)
	if err := q.backend.Schedule(context.Background(), q.key("retry"), data, at); err != nil {
		q.log.Error("schedule retry", logger.String("id", msg.ID), logger.Error(err))
	}
}

func (q *Queue) buryMessage(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		q.log.Error("marshal dead letter", logger.Error(err))
		return
	}
	q.bury(data)
}

func (q *Queue) bury(data []byte) {
	if err := q.backend.Push(context.Background(), q.key("dlq"), data); err != nil {
		q.log.Error("push dead letter", logger.Error(err))
	}
}

func (q *Queue) retryLoop() {
	defer q.wg.Done()
	t := time.NewTicker(q.cfg.RetryPoll)
	defer t.Stop()
	for {
		select {
		case <-q.ctx.Done():
			return
		case <-t.C:
			q.promoteDue()
		}
	}
}

func (q *Queue) promoteDue() {
	due, err := q.backend.Due(q.ctx, q.key("retry"), q.now())
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			q.log.Error("fetch due retries", logger.Error(err))
		}
		return
	}
	for _, data := range due {
		if err := q.backend.Requeue(q.ctx, q.key("retry"), q.key("messages"), data); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			q.log.Error("requeue retry", logger.Error(err))
		}
	}
}

func (q *Queue) sleep(d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-q.ctx.Done():
	case <-t.C:
	}
}
