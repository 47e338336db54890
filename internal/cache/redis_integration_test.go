//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sells-group/places-catalog/pkg/google"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(ctx) }) //nolint:errcheck

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	t.Cleanup(func() { rdb.Close() }) //nolint:errcheck
	return rdb
}

func TestDetailCache_RoundTrip(t *testing.T) {
	rdb := setupRedis(t)
	c := New(rdb, time.Minute)
	ctx := context.Background()

	miss, err := c.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, miss)

	rating := 4.7
	require.NoError(t, c.Set(ctx, "p1", &google.PlaceDetails{
		PlaceID:              "p1",
		FormattedPhoneNumber: "555-0100",
		Rating:               &rating,
	}))

	got, err := c.Get(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "555-0100", got.FormattedPhoneNumber)
	assert.InDelta(t, 4.7, *got.Rating, 1e-9)

	ttl, err := rdb.TTL(ctx, keyPrefix+"p1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestDetailCache_CorruptEntry(t *testing.T) {
	rdb := setupRedis(t)
	c := New(rdb, time.Minute)
	ctx := context.Background()

	require.NoError(t, rdb.Set(ctx, keyPrefix+"bad", "{not json", time.Minute).Err())
	_, err := c.Get(ctx, "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode details")
}
