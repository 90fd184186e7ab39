// Parameter-space genome encoding
//
// Bridges the genetic engine onto the same Strategy contract the trial-based
// studies use, so the two search backends are interchangeable.
package optimize

import (
	"context"
	"fmt"
	"math/rand"
)

// parameterOps implements GenomeOps over a declared parameter space. Genomes
// are ParameterSets: initialization samples the space, crossover mixes
// parents uniformly per parameter, mutation resamples one random parameter.
type parameterOps struct {
	space ParameterSpace
}

// NewParameterGenomeOps creates genome operations over the given space.
func NewParameterGenomeOps(space ParameterSpace) (GenomeOps, error) {
	if err := space.Validate(); err != nil {
		return nil, err
	}
	if len(space) == 0 {
		return nil, fmt.Errorf("parameter space must not be empty")
	}
	return &parameterOps{space: space}, nil
}

func (o *parameterOps) Init(rng *rand.Rand) Genome {
	return o.space.Sample(rng)
}

func (o *parameterOps) Clone(g Genome) Genome {
	return g.(ParameterSet).Clone()
}

// Crossover performs uniform crossover: each parameter comes from either
// parent with equal probability.
func (o *parameterOps) Crossover(rng *rand.Rand, a, b Genome) Genome {
	p1 := a.(ParameterSet)
	p2 := b.(ParameterSet)
	child := make(ParameterSet, len(o.space))
	for _, p := range o.space {
		if rng.Float64() < 0.5 {
			child[p.Name] = p1[p.Name]
		} else {
			child[p.Name] = p2[p.Name]
		}
	}
	return child
}

// Mutate resamples one uniformly chosen parameter from its declared bound.
func (o *parameterOps) Mutate(rng *rand.Rand, g Genome) Genome {
	mutated := g.(ParameterSet).Clone()
	p := o.space[rng.Intn(len(o.space))]
	switch p.Type {
	case ParamTypeInt:
		lo, hi := int(p.Min), int(p.Max)
		mutated[p.Name] = lo + rng.Intn(hi-lo+1)
	case ParamTypeFloat:
		mutated[p.Name] = p.Min + rng.Float64()*(p.Max-p.Min)
	case ParamTypeCategorical:
		mutated[p.Name] = p.Values[rng.Intn(len(p.Values))]
	}
	return mutated
}

// StrategyFitness builds a fitness function that decodes a ParameterSet
// genome, runs a fresh strategy with it, and scores the named objective.
// Minimize objectives are negated so the engine always maximizes fitness.
func StrategyFitness(factory StrategyFactory, catalog *ObjectiveCatalog, objectiveName string) (FitnessFunc, error) {
	if factory == nil {
		return nil, fmt.Errorf("strategy factory must not be nil")
	}
	if catalog == nil {
		return nil, fmt.Errorf("objective catalog must not be nil")
	}
	objective, ok := catalog.Get(objectiveName)
	if !ok {
		return nil, fmt.Errorf("%q: %w", objectiveName, ErrUnknownObjective)
	}
	direction, err := objective.Polarity.Direction()
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, g Genome) (float64, error) {
		params, ok := g.(ParameterSet)
		if !ok {
			return 0, fmt.Errorf("genome is %T, expected ParameterSet", g)
		}

		strategy, err := factory()
		if err != nil {
			return 0, fmt.Errorf("strategy construction failed: %w", err)
		}
		if err := strategy.SetParameters(params); err != nil {
			return 0, fmt.Errorf("set parameters failed: %w", err)
		}
		record, err := strategy.Run(ctx)
		if err != nil {
			return 0, fmt.Errorf("strategy run failed: %w", err)
		}

		value, err := catalog.Registry().Compute(record, objective.MetricName)
		if err != nil {
			return 0, err
		}
		if direction == Minimize {
			return -value, nil
		}
		return value, nil
	}, nil
}
