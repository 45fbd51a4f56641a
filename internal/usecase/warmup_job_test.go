package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	"FinCast/pkg/logger"
	"FinCast/pkg/queue"
)

type enqueued struct {
	typ     string
	payload WarmupPayload
}

type recordingQueue struct {
	items []enqueued
	err   error
}

func (q *recordingQueue) Enqueue(_ context.Context, typ string, payload any) error {
	if q.err != nil {
		return q.err
	}
	q.items = append(q.items, enqueued{typ: typ, payload: payload.(WarmupPayload)})
	return nil
}

func warmupPayload(t *testing.T, symbol, tf string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(WarmupPayload{Symbol: symbol, Timeframe: tf})
	require.NoError(t, err)
	return raw
}

func TestWarm_TrainsOnce(t *testing.T) {
	f := newFixture(t, map[string][]models.PricePoint{"RELIANCE": trending(400)})
	ctx := context.Background()

	cached, err := f.uc.Warm(ctx, "reliance", domrepo.TF1M)
	require.NoError(t, err)
	assert.False(t, cached)

	cached, err = f.uc.Warm(ctx, "RELIANCE", domrepo.TF1M)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Len(t, f.metrics.trainings(), 1)

	rep, err := f.uc.Predict(ctx, "RELIANCE", domrepo.TF1M)
	require.NoError(t, err)
	assert.True(t, rep.Cached)
}

func TestWarmupJob_Handle(t *testing.T) {
	f := newFixture(t, map[string][]models.PricePoint{
		"RELIANCE": trending(400),
		"TINY":     trending(40),
	})
	job := NewWarmupJob(f.uc, f.metrics, logger.Nop())
	ctx := context.Background()

	assert.Equal(t, WarmupJobType, job.Type())
	require.NoError(t, job.Handle(ctx, warmupPayload(t, "RELIANCE", "1m")))
	_, ok := f.cache.Get(ctx, "RELIANCE", domrepo.TF1M)
	assert.True(t, ok)

	cases := map[string]json.RawMessage{
		"garbage":   json.RawMessage(`{"symbol":`),
		"timeframe": warmupPayload(t, "RELIANCE", "2W"),
		"unknown":   warmupPayload(t, "NOPE", "1M"),
		"short":     warmupPayload(t, "TINY", "1M"),
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			err := job.Handle(ctx, raw)
			require.Error(t, err)
			assert.True(t, queue.IsPermanent(err), err)
		})
	}
}

func TestWarmupJob_TransientErrorRetries(t *testing.T) {
	f := newFixture(t, map[string][]models.PricePoint{"RELIANCE": trending(400)})
	f.history.err = errors.New("connection reset")
	job := NewWarmupJob(f.uc, f.metrics, logger.Nop())

	err := job.Handle(context.Background(), warmupPayload(t, "RELIANCE", "1M"))
	require.Error(t, err)
	assert.False(t, queue.IsPermanent(err))
	assert.Contains(t, f.metrics.errors, "warmup")
}

func TestEnqueueWarmup(t *testing.T) {
	q := &recordingQueue{}
	n, err := EnqueueWarmup(context.Background(), q, []string{"tcs", "INFY"}, []domrepo.Timeframe{domrepo.TF1M, domrepo.TF1Y})
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	require.Len(t, q.items, 4)
	assert.Equal(t, WarmupJobType, q.items[0].typ)
	assert.Equal(t, WarmupPayload{Symbol: "TCS", Timeframe: "1M"}, q.items[0].payload)
	assert.Equal(t, WarmupPayload{Symbol: "INFY", Timeframe: "1Y"}, q.items[3].payload)

	q = &recordingQueue{}
	n, err = EnqueueWarmup(context.Background(), q, []string{"TCS"}, nil)
	require.NoError(t, err)
	assert.Equal(t, len(domrepo.AllTimeframes()), n)

	q = &recordingQueue{}
	_, err = EnqueueWarmup(context.Background(), q, []string{"TCS", "bad symbol!"}, nil)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	assert.Empty(t, q.items)

	q = &recordingQueue{err: errors.New("redis down")}
	n, err = EnqueueWarmup(context.Background(), q, []string{"TCS"}, nil)
	assert.Error(t, err)
	assert.Zero(t, n)
}
