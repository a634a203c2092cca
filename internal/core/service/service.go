package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cache-telemetry-service/internal/core/ports"
	"cache-telemetry-service/internal/event"
	"cache-telemetry-service/internal/observability"
	"cache-telemetry-service/internal/stats"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Name identifies the collector in reports.
const Name = "cache"

// ErrInvalidSource is returned for an empty source name.
var ErrInvalidSource = errors.New("invalid source name")

// ensure implementation
var _ ports.StatsService = (*ServiceImpl)(nil)

// ServiceImpl collects statistics from an event log. It keeps the result of
// the last collection until the next one.
type ServiceImpl struct {
	log    ports.EventLog
	logger *zap.Logger
	tracer trace.Tracer
	sf     singleflight.Group

	mu     sync.RWMutex
	calls  []event.Source
	report stats.Report
}

// Option configures a ServiceImpl
type Option func(*ServiceImpl)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *ServiceImpl) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTracer sets the tracer used for collection spans
func WithTracer(tracer trace.Tracer) Option {
	return func(s *ServiceImpl) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

func New(log ports.EventLog, opts ...Option) *ServiceImpl {
	s := &ServiceImpl{
		log:    log,
		logger: zap.NewNop(),
		tracer: otel.Tracer("cachestats"),
		calls:  []event.Source{},
		report: stats.Compute(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a named source so that it is reported even without events.
func (s *ServiceImpl) Register(ctx context.Context, source string) error {
	if source == "" {
		return ErrInvalidSource
	}
	if err := s.log.Register(source); err != nil {
		return fmt.Errorf("register %q: %w", source, err)
	}
	s.logger.Debug("source registered", zap.String("source", source))
	return nil
}

// Record appends events for a source.
func (s *ServiceImpl) Record(ctx context.Context, source string, events ...event.Event) error {
	if source == "" {
		return ErrInvalidSource
	}
	if err := s.log.Append(source, events...); err != nil {
		return fmt.Errorf("record %q: %w", source, err)
	}
	for _, e := range events {
		observability.EventsRecordedTotal.WithLabelValues(source, e.OpName()).Inc()
	}
	return nil
}

// Collect snapshots the event log and aggregates it. Concurrent callers share
// one aggregation pass.
func (s *ServiceImpl) Collect(ctx context.Context) (stats.Report, error) {
	if err := ctx.Err(); err != nil {
		return stats.Report{}, err
	}

	v, _, _ := s.sf.Do("collect", func() (interface{}, error) {
		return s.collect(ctx), nil
	})
	return cloneReport(v.(stats.Report)), nil
}

func (s *ServiceImpl) collect(ctx context.Context) stats.Report {
	_, span := s.tracer.Start(ctx, "Service.Collect")
	defer span.End()

	start := time.Now()
	snapshot := s.log.Snapshot()
	report := stats.Compute(snapshot)
	elapsed := time.Since(start)

	s.mu.Lock()
	s.calls = snapshot
	s.report = report
	s.mu.Unlock()

	observability.CollectionsTotal.Inc()
	observability.CollectDurationSeconds.Observe(elapsed.Seconds())

	span.SetAttributes(
		attribute.Int("sources", len(report.Sources)),
		attribute.Int64("calls", report.Total.Calls),
	)
	s.logger.Debug("statistics collected",
		zap.Int("sources", len(report.Sources)),
		zap.Int64("calls", report.Total.Calls),
		zap.String("hit_ratio", report.Total.HitRatio),
		zap.Duration("elapsed", elapsed),
	)
	return report
}

// Report returns a copy of the last collected report.
func (s *ServiceImpl) Report() stats.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneReport(s.report)
}

// Statistics returns the per-source statistics of the last collection.
func (s *ServiceImpl) Statistics() []stats.SourceStatistics {
	return s.Report().Sources
}

// Totals returns the total statistics of the last collection.
func (s *ServiceImpl) Totals() stats.Statistics {
	return s.Report().Total
}

// Calls returns the events the last collection was computed from.
func (s *ServiceImpl) Calls() []event.Source {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]event.Source, len(s.calls))
	for i, src := range s.calls {
		events := make([]event.Event, len(src.Events))
		copy(events, src.Events)
		out[i] = event.Source{Name: src.Name, Events: events}
	}
	return out
}

func cloneReport(r stats.Report) stats.Report {
	sources := make([]stats.SourceStatistics, len(r.Sources))
	copy(sources, r.Sources)
	return stats.Report{Sources: sources, Total: r.Total}
}

// Reset drops recorded events and the last collection.
func (s *ServiceImpl) Reset(ctx context.Context) {
	s.log.Reset()

	s.mu.Lock()
	s.calls = []event.Source{}
	s.report = stats.Compute(nil)
	s.mu.Unlock()

	s.logger.Info("statistics reset")
}
