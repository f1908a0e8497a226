package bruteforce

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the attempt log in a per-address sorted set scored by
// unix-nano timestamp, so several server instances share one sliding
// window. Prune and count run in one pipeline, which is atomic enough
// here: an interleaved append can only raise the observed count, never
// lower it below the true value.
type RedisStore struct {
	client *redis.Client
	window time.Duration
}

func NewRedisStore(client *redis.Client, window time.Duration) *RedisStore {
	return &RedisStore{client: client, window: window}
}

func (s *RedisStore) key(addr string) string {
	return "taskgrid:attempts:" + addr
}

func (s *RedisStore) CountRecent(ctx context.Context, addr string, since time.Time) (int, time.Time, error) {
	key := s.key(addr)

	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(since.UnixNano(), 10))
	oldestCmd := pipe.ZRangeWithScores(ctx, key, 0, 0)
	countCmd := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, fmt.Errorf("redis error: %w", err)
	}

	count := int(countCmd.Val())
	if count == 0 {
		return 0, time.Time{}, nil
	}

	oldest := time.Time{}
	if entries := oldestCmd.Val(); len(entries) > 0 {
		oldest = time.Unix(0, int64(entries[0].Score))
	}

	return count, oldest, nil
}

func (s *RedisStore) Record(ctx context.Context, addr string, at time.Time) error {
	key := s.key(addr)
	score := float64(at.UnixNano())

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: score, Member: strconv.FormatInt(at.UnixNano(), 10)})
	// The key only needs to outlive the window; the TTL caps growth for
	// addresses that never come back.
	pipe.Expire(ctx, key, s.window+time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}

	return nil
}

func (s *RedisStore) Reset(ctx context.Context, addr string) error {
	if err := s.client.Del(ctx, s.key(addr)).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}
