package traceable

import (
	"context"
	"errors"
	"testing"
	"time"

	"cache-telemetry-service/internal/event"
	"cache-telemetry-service/internal/eventlog"
	"cache-telemetry-service/internal/stats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapBackend struct {
	data   map[string][]byte
	failOn string
}

var errBackend = errors.New("backend down")

func newMapBackend() *mapBackend {
	return &mapBackend{data: make(map[string][]byte)}
}

func (m *mapBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if m.failOn == "get" {
		return nil, false, errBackend
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mapBackend) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte)
	for _, k := range keys {
		if v, ok := m.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *mapBackend) Has(ctx context.Context, key string) (bool, error) {
	_, ok := m.data[key]
	return ok, nil
}

func (m *mapBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.failOn == "set" {
		return errBackend
	}
	m.data[key] = value
	return nil
}

func (m *mapBackend) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *mapBackend) Clear(ctx context.Context) error {
	m.data = make(map[string][]byte)
	return nil
}

// stepClock advances by step on every call.
func stepClock(step time.Duration) func() time.Time {
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(step)
		return t
	}
}

func TestCache_RecordsEveryOperation(t *testing.T) {
	log := eventlog.New()
	c := New("app", newMapBackend(), log, WithClock(stepClock(time.Millisecond)))
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))

	v, hit, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []byte("1"), v)

	_, hit, err = c.Get(ctx, "zzz")
	require.NoError(t, err)
	assert.False(t, hit)

	found, err := c.GetMulti(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, found, 2)

	ok, err := c.Has(ctx, "c")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Delete(ctx, "a"))
	require.NoError(t, c.Clear(ctx))

	snap := log.Snapshot()
	require.Len(t, snap, 1)
	require.Len(t, snap[0].Events, 8)
	assert.Equal(t, event.GetItems{Hits: 2, Misses: 1}, snap[0].Events[4].Op)
	assert.Equal(t, []string{"a", "b", "c"}, snap[0].Events[4].Argument)
	assert.Equal(t, event.Other{Op: "clear"}, snap[0].Events[7].Op)
	for _, e := range snap[0].Events {
		assert.Equal(t, time.Millisecond, e.Duration())
	}

	st := stats.Compute(snap).Total
	assert.Equal(t, stats.Statistics{
		Calls:    8,
		Time:     8 * time.Millisecond,
		Reads:    6,
		Hits:     3,
		Misses:   3,
		Writes:   2,
		Deletes:  1,
		HitRatio: "50%",
	}, st)
}

func TestCache_GetMultiRepeatedKeys(t *testing.T) {
	log := eventlog.New()
	c := New("app", newMapBackend(), log)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))

	found, err := c.GetMulti(ctx, []string{"a", "a", "b"})
	require.NoError(t, err)
	assert.Len(t, found, 1)

	events := log.Snapshot()[0].Events
	require.Len(t, events, 2)
	assert.Equal(t, event.GetItems{Hits: 2, Misses: 1}, events[1].Op)

	st := stats.Compute(log.Snapshot()).Total
	assert.Equal(t, int64(3), st.Reads)
	assert.Equal(t, "66.67%", st.HitRatio)
}

func TestCache_RecordsFailedCalls(t *testing.T) {
	log := eventlog.New()
	backend := newMapBackend()
	backend.failOn = "set"
	c := New("flaky", backend, log)

	err := c.Set(context.Background(), "k", []byte("v"), time.Minute)
	assert.ErrorIs(t, err, errBackend)

	events := log.Snapshot()[0].Events
	require.Len(t, events, 1)
	assert.Equal(t, event.Save{}, events[0].Op)
	assert.Equal(t, errorResult{Error: errBackend.Error()}, events[0].Result)
}

func TestCache_FailedGetCountsAsMiss(t *testing.T) {
	log := eventlog.New()
	backend := newMapBackend()
	backend.failOn = "get"
	c := New("flaky", backend, log)

	_, _, err := c.Get(context.Background(), "k")
	assert.Error(t, err)

	st := stats.Compute(log.Snapshot()).Total
	assert.Equal(t, int64(1), st.Misses)
}

func TestCache_EmptyNameNotRecorded(t *testing.T) {
	log := eventlog.New()
	c := New("", newMapBackend(), log)

	assert.NoError(t, c.Set(context.Background(), "k", []byte("v"), 0))
	assert.Empty(t, log.Sources())
}
