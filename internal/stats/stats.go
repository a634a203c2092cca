// Package stats reduces recorded cache events into per-source and total usage
// statistics.
package stats

import (
	"math"
	"strconv"
	"time"
)

// NotAvailable is the hit ratio reported when there were no reads.
const NotAvailable = "N/A"

// Statistics is the usage summary of one source, or of all sources combined.
type Statistics struct {
	Calls    int64         `json:"calls"`
	Time     time.Duration `json:"time"`
	Reads    int64         `json:"reads"`
	Hits     int64         `json:"hits"`
	Misses   int64         `json:"misses"`
	Writes   int64         `json:"writes"`
	Deletes  int64         `json:"deletes"`
	HitRatio string        `json:"hit_ratio"`
}

// SourceStatistics pairs a source name with its statistics.
type SourceStatistics struct {
	Name string `json:"name"`
	Statistics
}

// Report is the result of one aggregation pass.
type Report struct {
	Sources []SourceStatistics `json:"sources"`
	Total   Statistics         `json:"total"`
}

// PerSource returns the per-source statistics keyed by source name.
func (r Report) PerSource() map[string]Statistics {
	out := make(map[string]Statistics, len(r.Sources))
	for _, s := range r.Sources {
		out[s.Name] = s.Statistics
	}
	return out
}

// Source returns the statistics of the named source.
func (r Report) Source(name string) (Statistics, bool) {
	for _, s := range r.Sources {
		if s.Name == name {
			return s.Statistics, true
		}
	}
	return Statistics{}, false
}

// HitRatio formats 100*hits/reads rounded to two decimals with a trailing "%",
// or NotAvailable when reads is zero.
func HitRatio(hits, reads int64) string {
	if reads == 0 {
		return NotAvailable
	}
	ratio := math.Round(100*float64(hits)/float64(reads)*100) / 100
	return strconv.FormatFloat(ratio, 'f', -1, 64) + "%"
}

func (s *Statistics) add(o Statistics) {
	s.Calls += o.Calls
	s.Time += o.Time
	s.Reads += o.Reads
	s.Hits += o.Hits
	s.Misses += o.Misses
	s.Writes += o.Writes
	s.Deletes += o.Deletes
}

func (s *Statistics) deriveRatio() {
	s.HitRatio = HitRatio(s.Hits, s.Reads)
}
