// Strategy contract consumed by the optimizers
package optimize

import "context"

// Strategy is the capability contract every tunable strategy implements.
// The optimizers depend on this contract only, never on a concrete strategy.
type Strategy interface {
	// ParameterSpace declares the searchable parameters.
	ParameterSpace() ParameterSpace

	// SetParameters applies one concrete assignment. It fails with
	// InvalidParameterError when a value violates its bound or category.
	SetParameters(params ParameterSet) error

	// Run executes a full simulation with the applied parameters and
	// returns its performance record. Any error marks the evaluation as a
	// failed trial; it never aborts the surrounding search.
	Run(ctx context.Context) (*PerformanceRecord, error)
}

// StrategyFactory produces a fresh Strategy instance. Each trial and each
// population member evaluation constructs its own instance so no internal
// configuration is shared across evaluations.
type StrategyFactory func() (Strategy, error)
