// Package event defines the recorded cache operation events consumed by the
// statistics aggregator.
package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind names a cache operation.
type Kind string

const (
	KindGetItem    Kind = "get_item"
	KindGetItems   Kind = "get_items"
	KindHasItem    Kind = "has_item"
	KindSave       Kind = "save"
	KindDeleteItem Kind = "delete_item"
	KindOther      Kind = "other"
)

// Operation is the outcome of one cache call. The set of implementations is
// closed; everything the aggregator does not classify is an Other.
type Operation interface {
	Kind() Kind
	// Name is the operation name as recorded by the instrumentation.
	Name() string
	operation()
}

// GetItem is a single-key read.
type GetItem struct {
	Hit bool
}

// GetItems is a batch read carrying the number of keys found and not found.
type GetItems struct {
	Hits   int64
	Misses int64
}

// HasItem is an existence check.
type HasItem struct {
	Found bool
}

// Save is a write.
type Save struct{}

// DeleteItem is a single-key delete.
type DeleteItem struct{}

// Other is any operation that is counted but not classified, e.g. "clear".
type Other struct {
	Op string
}

func (GetItem) Kind() Kind    { return KindGetItem }
func (GetItems) Kind() Kind   { return KindGetItems }
func (HasItem) Kind() Kind    { return KindHasItem }
func (Save) Kind() Kind       { return KindSave }
func (DeleteItem) Kind() Kind { return KindDeleteItem }
func (Other) Kind() Kind      { return KindOther }

func (GetItem) Name() string    { return string(KindGetItem) }
func (GetItems) Name() string   { return string(KindGetItems) }
func (HasItem) Name() string    { return string(KindHasItem) }
func (Save) Name() string       { return string(KindSave) }
func (DeleteItem) Name() string { return string(KindDeleteItem) }

func (o Other) Name() string {
	if o.Op == "" {
		return string(KindOther)
	}
	return o.Op
}

func (GetItem) operation()    {}
func (GetItems) operation()   {}
func (HasItem) operation()    {}
func (Save) operation()       {}
func (DeleteItem) operation() {}
func (Other) operation()      {}

// Event is one observation of a cache call on a named source.
type Event struct {
	Op    Operation
	Start time.Time
	End   time.Time

	// Argument and Result are captured for display only.
	Argument any
	Result   any
}

// Duration returns End - Start. Negative values are returned unchanged.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// OpName returns the recorded operation name, "other" for a nil Op.
func (e Event) OpName() string {
	if e.Op == nil {
		return string(KindOther)
	}
	return e.Op.Name()
}

// Source is the ordered event sequence of one named cache.
type Source struct {
	Name   string  `json:"name"`
	Events []Event `json:"events"`
}

type wireEvent struct {
	Op       string    `json:"op"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Hit      *bool     `json:"hit,omitempty"`
	Found    *bool     `json:"found,omitempty"`
	Hits     int64     `json:"hits,omitempty"`
	Misses   int64     `json:"misses,omitempty"`
	Argument any       `json:"argument,omitempty"`
	Result   any       `json:"result,omitempty"`
}

// MarshalJSON encodes the event with a flat "op" discriminator.
func (e Event) MarshalJSON() ([]byte, error) {
	w := wireEvent{
		Op:       e.OpName(),
		Start:    e.Start,
		End:      e.End,
		Argument: e.Argument,
		Result:   e.Result,
	}
	switch op := e.Op.(type) {
	case GetItem:
		w.Hit = &op.Hit
	case GetItems:
		w.Hits, w.Misses = op.Hits, op.Misses
	case HasItem:
		w.Found = &op.Found
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the flat form produced by MarshalJSON. Unknown op
// names decode to Other.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	e.Op = ParseOperation(w.Op, w.Hit, w.Found, w.Hits, w.Misses)
	e.Start = w.Start
	e.End = w.End
	e.Argument = w.Argument
	e.Result = w.Result
	return nil
}

// ParseOperation builds an Operation from its recorded name and outcome fields.
// Outcome fields that do not apply to the named operation are ignored.
func ParseOperation(name string, hit, found *bool, hits, misses int64) Operation {
	switch Kind(name) {
	case KindGetItem:
		return GetItem{Hit: hit != nil && *hit}
	case KindGetItems:
		return GetItems{Hits: hits, Misses: misses}
	case KindHasItem:
		return HasItem{Found: found != nil && *found}
	case KindSave:
		return Save{}
	case KindDeleteItem:
		return DeleteItem{}
	default:
		return Other{Op: name}
	}
}
