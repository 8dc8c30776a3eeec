package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const dedupKeyPrefix = "dedup"

// redisClient is the subset of redis commands used by the publisher.
type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// RedisPublisher pushes envelopes on a redis list consumed by the worker with BRPOP.
type RedisPublisher struct {
	client   redisClient
	queueKey string
	dedupTTL time.Duration
}

func NewRedisPublisher(client redisClient, queueKey string, dedupTTL time.Duration) *RedisPublisher {
	return &RedisPublisher{
		client:   client,
		queueKey: queueKey,
		dedupTTL: dedupTTL,
	}
}

func (r *RedisPublisher) Publish(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg.Envelope)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	dedupKey := r.dedupKey(msg.Key)
	if msg.Key != "" {
		fresh, err := r.client.SetNX(ctx, dedupKey, 1, r.dedupTTL).Result()
		if err != nil {
			return fmt.Errorf("reserve idempotency key: %w", err)
		}
		if !fresh {
			return ErrDuplicateTask
		}
	}

	if err := r.client.LPush(ctx, r.queueKey, data).Err(); err != nil {
		if msg.Key != "" {
			// release the key so a retry is not mistaken for a duplicate
			if derr := r.client.Del(context.Background(), dedupKey).Err(); derr != nil {
				zap.S().Named("redis_publisher").Warnw("failed to release idempotency key", "key", dedupKey, "error", derr)
			}
		}
		return fmt.Errorf("lpush %s: %w", r.queueKey, err)
	}

	return nil
}

func (r *RedisPublisher) Close() error {
	return r.client.Close()
}

func (r *RedisPublisher) dedupKey(key string) string {
	return fmt.Sprintf("%s:%s:%s", r.queueKey, dedupKeyPrefix, key)
}
