package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/hongminglow/dunes-blog/internal/auth"
)

const keyPrefix = "atlantic-dunes:revoked:"

var _ auth.RevocationList = (*Redis)(nil)

// RedisOptions configures the Redis denylist.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// Redis keeps revoked session IDs as expiring keys so every instance sees them.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{client: client}, nil
}

// Revoke denylists sessionID for ttl.
func (r *Redis) Revoke(ctx context.Context, sessionID string, ttl time.Duration) error {
	if err := r.client.Set(ctx, keyPrefix+sessionID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// IsRevoked reports whether sessionID is denylisted.
func (r *Redis) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	n, err := r.client.Exists(ctx, keyPrefix+sessionID).Result()
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return n > 0, nil
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
