package eventlog

import (
	"encoding/json"
	"errors"
	"io"
	"sync"

	"cache-telemetry-service/internal/event"

	"go.uber.org/atomic"
)

// ErrEmptySource is returned when a source is registered or appended to without a name.
var ErrEmptySource = errors.New("source name must not be empty")

// Log is a thread-safe, append-only record of cache events grouped by named source.
// Sources keep their registration order.
type Log struct {
	mu     sync.RWMutex
	order  []string
	events map[string][]event.Event

	maxEvents int
	appended  *atomic.Int64
	dropped   *atomic.Int64
}

// Option configures a Log
type Option func(*Log)

// WithMaxEvents bounds the number of events retained per source. The oldest
// events are dropped once the bound is reached. Zero means unbounded.
func WithMaxEvents(n int) Option {
	return func(l *Log) {
		if n > 0 {
			l.maxEvents = n
		}
	}
}

// New creates a new Log
func New(opts ...Option) *Log {
	l := &Log{
		events:   make(map[string][]event.Event),
		appended: atomic.NewInt64(0),
		dropped:  atomic.NewInt64(0),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Register adds a source with no events. Registering an existing source is a no-op.
func (l *Log) Register(name string) error {
	if name == "" {
		return ErrEmptySource
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.register(name)
	return nil
}

func (l *Log) register(name string) {
	if _, ok := l.events[name]; ok {
		return
	}
	l.order = append(l.order, name)
	l.events[name] = nil
}

// Append records events for a source, registering it on first use.
func (l *Log) Append(name string, events ...event.Event) error {
	if name == "" {
		return ErrEmptySource
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.register(name)
	seq := append(l.events[name], events...)
	if l.maxEvents > 0 && len(seq) > l.maxEvents {
		over := len(seq) - l.maxEvents
		seq = append(seq[:0:0], seq[over:]...)
		l.dropped.Add(int64(over))
	}
	l.events[name] = seq
	l.appended.Add(int64(len(events)))
	return nil
}

// Sources returns the registered source names in registration order.
func (l *Log) Sources() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.order...)
}

// Len returns the number of events currently held for a source.
func (l *Log) Len(name string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events[name])
}

// Snapshot returns a copy of every source's events. Later appends do not
// affect the returned slices, and a source without events has an empty,
// non-nil slice.
func (l *Log) Snapshot() []event.Source {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]event.Source, 0, len(l.order))
	for _, name := range l.order {
		events := make([]event.Event, len(l.events[name]))
		copy(events, l.events[name])
		out = append(out, event.Source{Name: name, Events: events})
	}
	return out
}

// Reset drops all events while keeping the registered sources.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for name := range l.events {
		l.events[name] = nil
	}
}

// Appended returns the number of events appended since creation.
func (l *Log) Appended() int64 {
	return l.appended.Load()
}

// Dropped returns the number of events discarded by the retention bound.
func (l *Log) Dropped() int64 {
	return l.dropped.Load()
}

// Export writes the entire log to w
func (l *Log) Export(w io.Writer) error {
	return json.NewEncoder(w).Encode(l.Snapshot())
}

// Import appends every source read from r, in the order they appear.
func (l *Log) Import(r io.Reader) error {
	var sources []event.Source
	if err := json.NewDecoder(r).Decode(&sources); err != nil {
		return err
	}
	for _, src := range sources {
		if err := l.Append(src.Name, src.Events...); err != nil {
			return err
		}
	}
	return nil
}
