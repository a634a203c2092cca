package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cache-telemetry-service/internal/core/ports"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

// ensure implementation
var _ ports.Cache = (*Redis)(nil)

// Redis is a remote cache backend. Calls go through a circuit breaker; a
// missing key is not a failure.
type Redis struct {
	client redis.Cmdable
	cb     *gobreaker.CircuitBreaker
}

// NewRedis wraps client with a breaker built from settings.
func NewRedis(client redis.Cmdable, settings gobreaker.Settings) *Redis {
	return &Redis{
		client: client,
		cb:     gobreaker.NewCircuitBreaker(settings),
	}
}

// DefaultBreakerSettings trips after five consecutive failures.
func DefaultBreakerSettings(name string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
}

func (r *Redis) execute(f func() error) error {
	_, err := r.cb.Execute(func() (interface{}, error) {
		return nil, f()
	})
	return err
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	found := true
	err := r.execute(func() error {
		var err error
		data, err = r.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			found = false
			return nil
		}
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}
	return data, found, nil
}

func (r *Redis) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	var values []interface{}
	err := r.execute(func() error {
		var err error
		values, err = r.client.MGet(ctx, keys...).Result()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("redis mget failed: %w", err)
	}
	for i, v := range values {
		if s, ok := v.(string); ok && i < len(keys) {
			out[keys[i]] = []byte(s)
		}
	}
	return out, nil
}

func (r *Redis) Has(ctx context.Context, key string) (bool, error) {
	var n int64
	err := r.execute(func() error {
		var err error
		n, err = r.client.Exists(ctx, key).Result()
		return err
	})
	if err != nil {
		return false, fmt.Errorf("redis exists failed: %w", err)
	}
	return n > 0, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.execute(func() error {
		return r.client.Set(ctx, key, value, ttl).Err()
	}); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.execute(func() error {
		return r.client.Del(ctx, key).Err()
	}); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

func (r *Redis) Clear(ctx context.Context) error {
	if err := r.execute(func() error {
		return r.client.FlushDB(ctx).Err()
	}); err != nil {
		return fmt.Errorf("redis flushdb failed: %w", err)
	}
	return nil
}

// State reports the breaker state.
func (r *Redis) State() gobreaker.State {
	return r.cb.State()
}
