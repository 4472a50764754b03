// Package session stores server-issued respondent tokens. Redis is the
// primary backend; the Postgres store offers the same methods as a fallback.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore maps hashed session tokens to respondent session ids with a TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client, prefix: "sess:"}, nil
}

// NewRedisStoreWithClient wraps an existing client, mainly for tests.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "sess:"}
}

func (s *RedisStore) key(tokenHash string) string {
	return s.prefix + tokenHash
}

func (s *RedisStore) SaveSessionToken(ctx context.Context, tokenHash, sessionID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session token already expired")
	}
	if err := s.client.Set(ctx, s.key(tokenHash), sessionID, ttl).Err(); err != nil {
		return fmt.Errorf("save session token: %w", err)
	}
	return nil
}

// LookupSessionToken resolves a token hash to its session id. A missing or
// expired token returns redis.Nil.
func (s *RedisStore) LookupSessionToken(ctx context.Context, tokenHash string) (string, error) {
	sessionID, err := s.client.Get(ctx, s.key(tokenHash)).Result()
	if err != nil {
		return "", err
	}
	return sessionID, nil
}

func (s *RedisStore) DeleteSessionToken(ctx context.Context, tokenHash string) error {
	if err := s.client.Del(ctx, s.key(tokenHash)).Err(); err != nil {
		return fmt.Errorf("delete session token: %w", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
