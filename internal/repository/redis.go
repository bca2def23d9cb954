package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ratelimit:"

// RedisRateLimitStore keeps one sorted set per (endpoint, identity), scored by
// the entry's unix milliseconds.
type RedisRateLimitStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewRedisRateLimitStore builds a store whose keys expire after ttl of
// inactivity. ttl must cover the longest window in use.
func NewRedisRateLimitStore(rdb redis.Cmdable, ttl time.Duration) (*RedisRateLimitStore, error) {
	if rdb == nil {
		return nil, errors.New("repository: redis client must not be nil")
	}
	if ttl <= 0 {
		return nil, errors.New("repository: redis key ttl must be positive")
	}
	return &RedisRateLimitStore{rdb: rdb, ttl: ttl}, nil
}

func redisKey(identity, endpoint string) string {
	return redisKeyPrefix + endpoint + ":" + identity
}

func (s *RedisRateLimitStore) CountSince(ctx context.Context, identity, endpoint string, since time.Time) (int, error) {
	n, err := s.rdb.ZCount(ctx, redisKey(identity, endpoint), strconv.FormatInt(since.UTC().UnixMilli(), 10), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("repository: CountSince zcount: %w", err)
	}
	return int(n), nil
}

func (s *RedisRateLimitStore) Record(ctx context.Context, identity, endpoint string, at time.Time) error {
	key := redisKey(identity, endpoint)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(at.UTC().UnixMilli()), Member: uuid.NewString()})
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("repository: Record: %w", err)
	}
	return nil
}

func (s *RedisRateLimitStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	upper := "(" + strconv.FormatInt(cutoff.UTC().UnixMilli(), 10)
	removed := 0
	iter := s.rdb.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if !strings.HasPrefix(key, redisKeyPrefix) {
			continue
		}
		n, err := s.rdb.ZRemRangeByScore(ctx, key, "-inf", upper).Result()
		if err != nil {
			return removed, fmt.Errorf("repository: DeleteBefore %s: %w", key, err)
		}
		removed += int(n)
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("repository: DeleteBefore scan: %w", err)
	}
	return removed, nil
}
