// Package dedup provides a Redis-backed seen-set so several optimizer
// processes working on the same space never simulate a configuration twice.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/paramsearch/internal/config"
	"github.com/ajitpratap0/paramsearch/pkg/search"
)

const (
	DefaultKeyPrefix = "paramsearch:seen"
	DefaultTTL       = 24 * time.Hour

	opTimeout    = 500 * time.Millisecond
	clearTimeout = 5 * time.Second
)

var _ search.SeenSet = (*RedisSeenSet)(nil)

// RedisSeenSet records configuration signatures as Redis keys with SETNX.
// Keys live under "<prefix>:<namespace>:" so unrelated searches sharing a
// Redis instance do not collide.
type RedisSeenSet struct {
	client    *redis.Client
	prefix    string
	namespace string
	ttl       time.Duration
}

// NewRedisSeenSet creates a seen-set. An empty prefix or zero TTL falls back
// to the defaults.
func NewRedisSeenSet(client *redis.Client, prefix, namespace string, ttl time.Duration) *RedisSeenSet {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisSeenSet{client: client, prefix: prefix, namespace: namespace, ttl: ttl}
}

// NewClient creates a Redis client from configuration
func NewClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.GetRedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Add marks signature as seen and reports whether it was new. Errors are
// returned to the caller, which decides whether to fail open.
func (s *RedisSeenSet) Add(ctx context.Context, signature string) (bool, error) {
	key := s.buildKey(signature)

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	added, err := s.client.SetNX(opCtx, key, 1, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record signature: %w", err)
	}

	if !added {
		log.Debug().
			Str("key", key).
			Msg("Signature already recorded")
	}
	return added, nil
}

// Clear removes every key of this namespace and returns how many it deleted
func (s *RedisSeenSet) Clear(ctx context.Context) (int, error) {
	opCtx, cancel := context.WithTimeout(ctx, clearTimeout)
	defer cancel()

	iter := s.client.Scan(opCtx, 0, s.keyPattern(), 0).Iterator()
	count := 0
	for iter.Next(opCtx) {
		if err := s.client.Del(opCtx, iter.Val()).Err(); err != nil {
			log.Warn().
				Err(err).
				Str("key", iter.Val()).
				Msg("Failed to delete seen-set key")
			continue
		}
		count++
	}
	if err := iter.Err(); err != nil {
		return count, fmt.Errorf("failed to scan seen-set keys: %w", err)
	}

	log.Info().
		Str("namespace", s.namespace).
		Int("deleted", count).
		Msg("Cleared seen-set")

	return count, nil
}

// Signatures can be long; keys carry their SHA-256 instead.
func (s *RedisSeenSet) buildKey(signature string) string {
	sum := sha256.Sum256([]byte(signature))
	return fmt.Sprintf("%s:%s:%s", s.prefix, s.namespace, hex.EncodeToString(sum[:]))
}

func (s *RedisSeenSet) keyPattern() string {
	return fmt.Sprintf("%s:%s:*", s.prefix, s.namespace)
}
