// Package cache keeps Places detail responses in Redis between pipeline runs.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/places-catalog/pkg/google"
)

const keyPrefix = "places:details:"

var cacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "places_detail_cache_errors_total",
	Help: "Detail cache operation failures",
}, []string{"operation"}) // get, set

// DetailCache stores google.PlaceDetails as JSON under a TTL.
type DetailCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New wraps an existing client.
func New(rdb *redis.Client, ttl time.Duration) *DetailCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &DetailCache{rdb: rdb, ttl: ttl}
}

// Open parses a redis:// URL, connects and pings.
func Open(ctx context.Context, url string, ttl time.Duration) (*DetailCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, eris.Wrap(err, "cache: parse redis url")
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "cache: ping redis")
	}
	return New(rdb, ttl), nil
}

// Get returns nil, nil on a miss.
func (c *DetailCache) Get(ctx context.Context, placeID string) (*google.PlaceDetails, error) {
	data, err := c.rdb.Get(ctx, keyPrefix+placeID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		cacheErrors.WithLabelValues("get").Inc()
		return nil, eris.Wrap(err, "cache: get details")
	}

	var d google.PlaceDetails
	if err := json.Unmarshal(data, &d); err != nil {
		cacheErrors.WithLabelValues("get").Inc()
		return nil, eris.Wrap(err, "cache: decode details")
	}
	return &d, nil
}

// Set stores d for the cache TTL.
func (c *DetailCache) Set(ctx context.Context, placeID string, d *google.PlaceDetails) error {
	data, err := json.Marshal(d)
	if err != nil {
		return eris.Wrap(err, "cache: encode details")
	}
	if err := c.rdb.Set(ctx, keyPrefix+placeID, data, c.ttl).Err(); err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return eris.Wrap(err, "cache: set details")
	}
	return nil
}

// Close closes the Redis client.
func (c *DetailCache) Close() error {
	return c.rdb.Close()
}
