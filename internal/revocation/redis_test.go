package revocation

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRedisIntegration runs against a live Redis, e.g. REDIS_ADDR=localhost:6379.
func TestRedisIntegration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if os.Getenv("RUN_REDIS_INTEGRATION") != "true" || addr == "" {
		t.Skip("set RUN_REDIS_INTEGRATION=true and REDIS_ADDR to run this integration test")
	}

	ctx := context.Background()
	r, err := NewRedis(ctx, RedisOptions{Addr: addr, Password: os.Getenv("REDIS_PASSWORD")})
	require.NoError(t, err)
	defer r.Close()

	id := uuid.NewString()
	revoked, err := r.IsRevoked(ctx, id)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, r.Revoke(ctx, id, 2*time.Second))
	revoked, err = r.IsRevoked(ctx, id)
	require.NoError(t, err)
	assert.True(t, revoked)

	ttl, err := r.client.TTL(ctx, keyPrefix+id).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, 2*time.Second)
}
