package queue

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend keeps pending messages in a list and scheduled retries in a sorted set.
type RedisBackend struct {
	client *redis.Client
}

func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func (b *RedisBackend) Push(ctx context.Context, key string, data []byte) error {
	return b.client.LPush(ctx, key, data).Err()
}

func (b *RedisBackend) Pop(ctx context.Context, key string, timeout time.Duration) ([]byte, error) {
	res, err := b.client.BRPop(ctx, timeout, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrEmpty
		}
		return nil, err
	}
	if len(res) < 2 {
		return nil, ErrEmpty
	}
	return []byte(res[1]), nil
}

func (b *RedisBackend) Schedule(ctx context.Context, key string, data []byte, at time.Time) error {
	return b.client.ZAdd(ctx, key, redis.Z{Score: float64(at.UnixMilli()), Member: data}).Err()
}

func (b *RedisBackend) Due(ctx context.Context, key string, now time.Time) ([][]byte, error) {
	members, err := b.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(members))
	for i, m := range members {
		out[i] = []byte(m)
	}
	return out, nil
}

// Only the caller that removes the member pushes it, so concurrent pollers never duplicate a retry.
var requeueScript = redis.NewScript(`
if redis.call("ZREM", KEYS[1], ARGV[1]) == 1 then
	return redis.call("LPUSH", KEYS[2], ARGV[1])
end
return 0
`)

func (b *RedisBackend) Requeue(ctx context.Context, from, to string, data []byte) error {
	return requeueScript.Run(ctx, b.client, []string{from, to}, data).Err()
}

func (b *RedisBackend) Len(ctx context.Context, key string) (int64, error) {
	return b.client.LLen(ctx, key).Result()
}

func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}
