package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// NotificationQueueKey is the sorted set holding queued notification
// envelopes, scored by the time they become ready.
const NotificationQueueKey = "notification_queue"

type RedisStore struct {
	client *redis.Client
}

func NewRedis(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Enqueue adds an envelope that becomes ready at readyAt.
func (s *RedisStore) Enqueue(ctx context.Context, member string, readyAt time.Time) error {
	err := s.client.ZAdd(ctx, NotificationQueueKey, redis.Z{
		Score:  float64(readyAt.UnixMicro()),
		Member: member,
	}).Err()
	if err != nil {
		return fmt.Errorf("queuing notification: %w", err)
	}
	return nil
}

// ClaimReady removes and returns up to limit envelopes that are ready at
// now. An envelope another poller removed first is skipped.
func (s *RedisStore) ClaimReady(ctx context.Context, now time.Time, limit int64) ([]string, error) {
	results, err := s.client.ZRangeByScore(ctx, NotificationQueueKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMicro(), 10),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("polling notification queue: %w", err)
	}

	claimed := make([]string, 0, len(results))
	for _, member := range results {
		removed, err := s.client.ZRem(ctx, NotificationQueueKey, member).Result()
		if err != nil {
			return claimed, fmt.Errorf("claiming notification: %w", err)
		}
		if removed == 0 {
			continue
		}
		claimed = append(claimed, member)
	}
	return claimed, nil
}

// QueueDepth returns the number of envelopes waiting, ready or not.
func (s *RedisStore) QueueDepth(ctx context.Context) (int64, error) {
	return s.client.ZCard(ctx, NotificationQueueKey).Result()
}
