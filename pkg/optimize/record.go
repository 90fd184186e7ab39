// Package optimize provides parameter search and performance scoring for
// pluggable trading strategies. It contains a metric registry, an objective
// catalog, a trial-based optimizer (single and multi objective) and a
// generational genetic optimizer, all driven through the Strategy contract.
package optimize

import (
	"fmt"
	"time"
)

// Well-known performance record fields.
const (
	FieldReturns      = "returns"       // per-period strategy return
	FieldTradeReturns = "trade_returns" // per-trade compound return
	FieldPositionSize = "position_size" // signed position size per period
	FieldPrice        = "price"         // underlying price level per period
)

// PerformanceRecord is the time-indexed outcome of one strategy run: an
// ordered series of timestamps plus named numeric series. Per-period fields
// (returns, position sizes) align with the timestamps; per-trade fields may
// be shorter. A record is built once by the strategy that ran and must not
// be modified after it is handed to scoring.
type PerformanceRecord struct {
	timestamps []time.Time
	fields     map[string][]float64
}

// NewPerformanceRecord creates a record over the given timestamps, which
// must be strictly increasing.
func NewPerformanceRecord(timestamps []time.Time) (*PerformanceRecord, error) {
	for i := 1; i < len(timestamps); i++ {
		if !timestamps[i].After(timestamps[i-1]) {
			return nil, fmt.Errorf("timestamps must be strictly increasing: index %d (%s) does not follow %s",
				i, timestamps[i].Format(time.RFC3339), timestamps[i-1].Format(time.RFC3339))
		}
	}
	ts := make([]time.Time, len(timestamps))
	copy(ts, timestamps)
	return &PerformanceRecord{
		timestamps: ts,
		fields:     make(map[string][]float64),
	}, nil
}

// SetField attaches a named series to the record. A field can only be set
// once; records are immutable after construction.
func (r *PerformanceRecord) SetField(name string, values []float64) error {
	if name == "" {
		return fmt.Errorf("field name must not be empty")
	}
	if _, ok := r.fields[name]; ok {
		return fmt.Errorf("field %q already set", name)
	}
	series := make([]float64, len(values))
	copy(series, values)
	r.fields[name] = series
	return nil
}

// Len returns the number of time-stamped observations.
func (r *PerformanceRecord) Len() int { return len(r.timestamps) }

// Timestamps returns a copy of the observation timestamps.
func (r *PerformanceRecord) Timestamps() []time.Time {
	ts := make([]time.Time, len(r.timestamps))
	copy(ts, r.timestamps)
	return ts
}

// Field returns the named series and whether it is present. The returned
// slice is shared with the record and must not be modified.
func (r *PerformanceRecord) Field(name string) ([]float64, bool) {
	v, ok := r.fields[name]
	return v, ok
}

// HasField reports whether the named series is present.
func (r *PerformanceRecord) HasField(name string) bool {
	_, ok := r.fields[name]
	return ok
}

// MissingFields returns the subset of required that the record lacks.
func (r *PerformanceRecord) MissingFields(required []string) []string {
	var missing []string
	for _, name := range required {
		if !r.HasField(name) {
			missing = append(missing, name)
		}
	}
	return missing
}
