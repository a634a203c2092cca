// Package backend provides cache backends that can be wrapped by a traceable cache.
package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cache-telemetry-service/internal/core/ports"

	"github.com/dgraph-io/ristretto"
)

var (
	// ErrSetDropped is returned when the local cache rejects a write.
	ErrSetDropped = errors.New("local cache dropped the write")
)

// ensure implementation
var _ ports.Cache = (*Local)(nil)

// Local is an in-process cache backed by ristretto. Values cost their length in bytes.
type Local struct {
	cache *ristretto.Cache
}

// NewLocal creates a local cache bounded to maxCost bytes and sized for about
// maxItems entries. Ristretto wants ten counters per expected item.
func NewLocal(maxItems, maxCost int64) (*Local, error) {
	if maxItems <= 0 {
		return nil, errors.New("max items must be greater than 0")
	}
	if maxCost <= 0 {
		return nil, errors.New("max cost must be greater than 0")
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxItems * 10,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ristretto cache: %w", err)
	}
	return &Local{cache: cache}, nil
}

func (l *Local) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	v, ok := l.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, ok := v.([]byte)
	return b, ok, nil
}

func (l *Local) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, key := range keys {
		v, ok, err := l.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			out[key] = v
		}
	}
	return out, nil
}

func (l *Local) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := l.Get(ctx, key)
	return ok, err
}

// Set stores value and waits for the write buffer to drain so that the value
// is visible to the next Get.
func (l *Local) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !l.cache.SetWithTTL(key, value, int64(len(value))+1, ttl) {
		return ErrSetDropped
	}
	l.cache.Wait()
	return nil
}

func (l *Local) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.cache.Del(key)
	return nil
}

func (l *Local) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.cache.Clear()
	return nil
}

// Close stops the cache's background goroutines.
func (l *Local) Close() error {
	l.cache.Close()
	return nil
}
