// Package traceable decorates a cache backend so that every call is recorded
// as an event on a named source.
package traceable

import (
	"context"
	"time"

	"cache-telemetry-service/internal/core/ports"
	"cache-telemetry-service/internal/event"
	"cache-telemetry-service/internal/observability"

	"go.uber.org/zap"
)

// ensure implementation
var _ ports.Cache = (*Cache)(nil)

// Cache records one event per call on the wrapped backend. Events are recorded
// whether or not the backend call succeeds.
type Cache struct {
	name     string
	backend  ports.Cache
	recorder ports.Recorder
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Cache
type Option func(*Cache)

// WithLogger sets the logger used when recording fails
func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New wraps backend, recording its calls under name.
func New(name string, backend ports.Cache, recorder ports.Recorder, opts ...Option) *Cache {
	c := &Cache{
		name:     name,
		backend:  backend,
		recorder: recorder,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the source name events are recorded under.
func (c *Cache) Name() string { return c.name }

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := c.now()
	val, hit, err := c.backend.Get(ctx, key)
	c.record(event.GetItem{Hit: hit}, start, key, resultOf(val, err))
	return val, hit, err
}

func (c *Cache) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	start := c.now()
	found, err := c.backend.GetMulti(ctx, keys)
	// Hits are counted per requested key; repeated keys collapse in found.
	var hits int64
	for _, k := range keys {
		if _, ok := found[k]; ok {
			hits++
		}
	}
	c.record(event.GetItems{Hits: hits, Misses: int64(len(keys)) - hits}, start, keys, resultOf(found, err))
	return found, err
}

func (c *Cache) Has(ctx context.Context, key string) (bool, error) {
	start := c.now()
	ok, err := c.backend.Has(ctx, key)
	c.record(event.HasItem{Found: ok}, start, key, resultOf(ok, err))
	return ok, err
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := c.now()
	err := c.backend.Set(ctx, key, value, ttl)
	c.record(event.Save{}, start, key, resultOf(err == nil, err))
	return err
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	start := c.now()
	err := c.backend.Delete(ctx, key)
	c.record(event.DeleteItem{}, start, key, resultOf(err == nil, err))
	return err
}

func (c *Cache) Clear(ctx context.Context) error {
	start := c.now()
	err := c.backend.Clear(ctx)
	c.record(event.Other{Op: "clear"}, start, nil, resultOf(err == nil, err))
	return err
}

func (c *Cache) record(op event.Operation, start time.Time, arg, result any) {
	e := event.Event{
		Op:       op,
		Start:    start,
		End:      c.now(),
		Argument: arg,
		Result:   result,
	}
	if _, failed := result.(errorResult); failed {
		observability.BackendErrorsTotal.WithLabelValues(c.name, op.Name()).Inc()
	}
	if err := c.recorder.Append(c.name, e); err != nil {
		c.logger.Warn("failed to record cache event",
			zap.String("source", c.name),
			zap.String("op", op.Name()),
			zap.Error(err),
		)
		return
	}
	observability.EventsRecordedTotal.WithLabelValues(c.name, op.Name()).Inc()
}

type errorResult struct {
	Error string `json:"error"`
}

func resultOf(v any, err error) any {
	if err != nil {
		return errorResult{Error: err.Error()}
	}
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	if m, ok := v.(map[string][]byte); ok {
		out := make(map[string]string, len(m))
		for k, b := range m {
			out[k] = string(b)
		}
		return out
	}
	return v
}
