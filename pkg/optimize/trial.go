// Trial bookkeeping for trial-based search
package optimize

import "math"

var (
	posInf = math.Inf(1)
	negInf = math.Inf(-1)
)

// TrialStatus marks whether a trial was scored or failed.
type TrialStatus string

const (
	TrialOK     TrialStatus = "ok"
	TrialFailed TrialStatus = "failed"
)

// Trial is one sampled parameter assignment plus its scored outcome. A trial
// is immutable once scored. Failed trials carry the worst sentinel for the
// configured direction(s) so they can never win the search.
type Trial struct {
	Number int          `json:"number"`
	Params ParameterSet `json:"params"`

	// Value is the objective score in single-objective search; Values is
	// the per-objective vector in multi-objective search.
	Value  float64   `json:"value,omitempty"`
	Values []float64 `json:"values,omitempty"`

	// Metrics holds additional diagnostic metric values requested by the
	// study configuration.
	Metrics map[string]float64 `json:"metrics,omitempty"`

	Status TrialStatus `json:"status"`
	Err    error       `json:"-"`

	record *PerformanceRecord
}

// Record returns the performance record the trial was scored from, nil for
// failed trials.
func (t *Trial) Record() *PerformanceRecord { return t.record }
