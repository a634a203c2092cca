package ports

import (
	"context"
	"time"

	"cache-telemetry-service/internal/event"
	"cache-telemetry-service/internal/stats"
)

// StatsService maps incoming requests to the collector
type StatsService interface {
	Register(ctx context.Context, source string) error
	Record(ctx context.Context, source string, events ...event.Event) error
	Collect(ctx context.Context) (stats.Report, error)
	Statistics() []stats.SourceStatistics
	Totals() stats.Statistics
	Calls() []event.Source
	Reset(ctx context.Context)
}

// EventLog stores recorded events per named source
type EventLog interface {
	Recorder
	Register(source string) error
	Snapshot() []event.Source
	Reset()
}

// Recorder receives events from instrumented caches
type Recorder interface {
	Append(source string, events ...event.Event) error
}

// Cache is a cache backend that can be traced
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	GetMulti(ctx context.Context, keys []string) (map[string][]byte, error)
	Has(ctx context.Context, key string) (bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}
