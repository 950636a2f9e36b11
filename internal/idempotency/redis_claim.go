package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultClaimTTL = 2 * time.Minute

// releaseScript deletes the claim only if it still carries our token, so an
// expired claim re-taken by another request is not released by the old owner.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisClaimStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisClaimStore(client *redis.Client, ttl time.Duration) *RedisClaimStore {
	if ttl <= 0 {
		ttl = defaultClaimTTL
	}
	return &RedisClaimStore{client: client, ttl: ttl}
}

func (s *RedisClaimStore) Claim(ctx context.Context, orderReference string) (string, error) {
	token := uuid.NewString()

	ok, err := s.client.SetNX(ctx, claimKey(orderReference), token, s.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("redis setnx failed: %w", err)
	}
	if !ok {
		return "", ErrClaimHeld
	}
	return token, nil
}

func (s *RedisClaimStore) Release(ctx context.Context, orderReference, token string) error {
	if err := releaseScript.Run(ctx, s.client, []string{claimKey(orderReference)}, token).Err(); err != nil {
		return fmt.Errorf("redis release failed: %w", err)
	}
	return nil
}

func claimKey(orderReference string) string {
	return fmt.Sprintf("confirm:%s", orderReference)
}
