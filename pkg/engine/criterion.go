package engine

import "pulsegate/pkg/model"

// Criterion is one independently toggleable keep condition of the address policy.
type Criterion interface {
	// Match reports whether the record satisfies the criterion.
	// A single match is enough to keep the record.
	Match(rec model.Record) bool

	// Name returns the identifier of the criterion (for metrics/logging).
	Name() string
}
