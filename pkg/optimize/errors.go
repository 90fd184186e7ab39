// Error taxonomy for the optimization engine.
//
// Configuration errors (unknown names, polarity mismatches, bad budgets) are
// surfaced before any evaluation runs. Evaluation and data errors are
// absorbed into trial scores and never abort a search.
package optimize

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDuplicateMetric is returned when registering a metric name twice.
var ErrDuplicateMetric = errors.New("metric already registered")

// ErrUnknownMetric is returned when a metric name is not in the registry.
var ErrUnknownMetric = errors.New("unknown metric")

// ErrDuplicateObjective is returned when registering an objective name twice.
var ErrDuplicateObjective = errors.New("objective already registered")

// ErrUnknownObjective is returned when an objective name is not in the catalog.
var ErrUnknownObjective = errors.New("unknown optimization objective")

// ErrPolarityMismatch is returned when an objective's polarity disagrees with
// its target metric's polarity.
var ErrPolarityMismatch = errors.New("objective polarity does not match metric polarity")

// ErrEmptyObjectives is returned when a multi-objective study is constructed
// with zero objectives.
var ErrEmptyObjectives = errors.New("at least one objective must be specified")

// ErrDirectionMismatch is returned when a configured search direction
// contradicts the objective's declared polarity.
var ErrDirectionMismatch = errors.New("search direction does not match objective polarity")

// ErrNeutralPolarity is returned when a neutral metric is used where a search
// direction must be derived.
var ErrNeutralPolarity = errors.New("neutral polarity has no search direction")

// MissingFieldError reports record fields a metric needs but the record lacks.
type MissingFieldError struct {
	Metric string
	Fields []string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("metric %q: missing required fields: %s", e.Metric, strings.Join(e.Fields, ", "))
}

// ComputationError wraps an unexpected failure inside a metric function.
type ComputationError struct {
	Metric string
	Err    error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("metric %q: computation failed: %v", e.Metric, e.Err)
}

func (e *ComputationError) Unwrap() error { return e.Err }

// InvalidParameterError reports a parameter value that violates its declared
// bound or category.
type InvalidParameterError struct {
	Name   string
	Value  interface{}
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("parameter %q: invalid value %v: %s", e.Name, e.Value, e.Reason)
}
