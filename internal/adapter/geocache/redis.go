package geocache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/couchcryptid/destination-etl/internal/domain"
	"github.com/couchcryptid/destination-etl/internal/observability"
)

const redisKeyPrefix = "destination-etl:geocode:"

// Dial connects to Redis and verifies the connection.
func Dial(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

// RedisGeocoder shares geocoding results between runs and processes. Redis
// failures are logged and fall through to the wrapped geocoder.
type RedisGeocoder struct {
	inner   domain.Geocoder
	client  redis.Cmdable
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewRedisGeocoder caches found results for ttl.
func NewRedisGeocoder(inner domain.Geocoder, client redis.Cmdable, ttl time.Duration, metrics *observability.Metrics, logger *slog.Logger) *RedisGeocoder {
	return &RedisGeocoder{inner: inner, client: client, ttl: ttl, metrics: metrics, logger: logger}
}

func (c *RedisGeocoder) ForwardGeocode(ctx context.Context, name, country string) (domain.GeocodingResult, error) {
	k := redisKeyPrefix + key(name, country)

	raw, err := c.client.Get(ctx, k).Result()
	switch {
	case err == nil:
		var result domain.GeocodingResult
		if jsonErr := json.Unmarshal([]byte(raw), &result); jsonErr == nil {
			c.metrics.GeocodeCache.WithLabelValues("redis", "hit").Inc()
			return result, nil
		}
		c.logger.Warn("discarding malformed cached geocode", "key", k)
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("geocode cache read failed", "key", k, "error", err)
	}
	c.metrics.GeocodeCache.WithLabelValues("redis", "miss").Inc()

	result, err := c.inner.ForwardGeocode(ctx, name, country)
	if err != nil || !result.Found() {
		return result, err
	}

	data, _ := json.Marshal(result)
	if err := c.client.Set(ctx, k, string(data), c.ttl).Err(); err != nil {
		c.logger.Warn("geocode cache write failed", "key", k, "error", err)
	}
	return result, nil
}
