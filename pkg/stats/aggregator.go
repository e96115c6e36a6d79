// Package stats keeps the process-wide keep/drop tallies per record category.
package stats

import (
	"fmt"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"pulsegate/pkg/model"
)

// Counts is a (total, kept) pair for one category.
type Counts struct {
	Total int64 `json:"total"`
	Kept  int64 `json:"kept"`
}

// Dropped returns Total - Kept.
func (c Counts) Dropped() int64 { return c.Total - c.Kept }

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Pulse   Counts `json:"pulse"`
	XHR     Counts `json:"xhr"`
	NewPair Counts `json:"new_pair"`
}

// Aggregator accumulates keep/drop counts. Safe for concurrent use: one mutex
// guards all six counters so every Record is a single atomic update.
type Aggregator struct {
	mu     sync.Mutex
	counts map[model.Category]*Counts

	records *prometheus.CounterVec // optional mirror, nil when not registered
}

// NewAggregator creates an empty aggregator. When reg is non-nil the counters
// are mirrored into a pulsegate_records_total counter registered on it.
func NewAggregator(reg prometheus.Registerer) *Aggregator {
	a := &Aggregator{
		counts: map[model.Category]*Counts{
			model.CategoryPulse:   {},
			model.CategoryXHR:     {},
			model.CategoryNewPair: {},
		},
	}
	if reg != nil {
		a.records = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulsegate_records_total",
			Help: "Records evaluated by the filter policy, by category and result",
		}, []string{"category", "result"})
		reg.MustRegister(a.records)
	}
	return a
}

// Record adds one decision batch. kept is clamped to [0, total] and negative
// totals are ignored, so kept never exceeds total for any category.
func (a *Aggregator) Record(category model.Category, total, kept int) {
	if total <= 0 {
		return
	}
	kept = max(0, min(kept, total))

	a.mu.Lock()
	c, ok := a.counts[category]
	if !ok {
		a.mu.Unlock()
		return
	}
	c.Total += int64(total)
	c.Kept += int64(kept)
	a.mu.Unlock()

	if a.records != nil {
		a.records.WithLabelValues(string(category), "kept").Add(float64(kept))
		a.records.WithLabelValues(string(category), "dropped").Add(float64(total - kept))
	}
}

// RecordNewPair records a single new_pairs decision.
func (a *Aggregator) RecordNewPair(kept bool) {
	k := 0
	if kept {
		k = 1
	}
	a.Record(model.CategoryNewPair, 1, k)
}

// Snapshot returns a copy of the current counters.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Snapshot{
		Pulse:   *a.counts[model.CategoryPulse],
		XHR:     *a.counts[model.CategoryXHR],
		NewPair: *a.counts[model.CategoryNewPair],
	}
}

// Summary renders the counters for operators. It does not modify state.
func (a *Aggregator) Summary() string {
	s := a.Snapshot()
	var b strings.Builder
	b.WriteString("=== Filter Statistics ===\n")
	fmt.Fprintf(&b, "Update Pulse: %d/%d items kept\n", s.Pulse.Kept, s.Pulse.Total)
	fmt.Fprintf(&b, "XHR Responses: %d/%d items kept\n", s.XHR.Kept, s.XHR.Total)
	fmt.Fprintf(&b, "New Pairs: %d/%d messages kept", s.NewPair.Kept, s.NewPair.Total)
	return b.String()
}

// Reset zeroes every counter. The Prometheus mirror is monotonic and is left alone.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, c := range a.counts {
		*c = Counts{}
	}
}
