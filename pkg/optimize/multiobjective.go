// Multi-objective trial-based optimizer
package optimize

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// MultiStudyConfig configures a multi-objective trial-based search.
type MultiStudyConfig struct {
	// Objectives are the catalog objective names to optimize, each with
	// the direction derived from its declared polarity.
	Objectives []string

	NTrials     int
	Timeout     time.Duration
	Seed        int64
	MaxParallel int
}

// MultiObjectiveStudy scores each trial with a vector of objective values
// and drives the search toward the Pareto frontier. It returns every
// evaluated trial; frontier extraction is left to the caller, with
// ParetoFront available as a convenience.
type MultiObjectiveStudy struct {
	cfg        MultiStudyConfig
	factory    StrategyFactory
	catalog    *ObjectiveCatalog
	objectives []Objective
	directions []Direction
	seed       int64
	rng        *rand.Rand
}

// MultiStudyResult is the outcome of an exhausted multi-objective budget.
type MultiStudyResult struct {
	Trials     []*Trial      `json:"trials"`
	Directions []Direction   `json:"directions"`
	Duration   time.Duration `json:"duration"`
	Seed       int64         `json:"seed"`
}

// NewMultiObjectiveStudy validates the configuration and creates a study.
func NewMultiObjectiveStudy(factory StrategyFactory, catalog *ObjectiveCatalog, cfg MultiStudyConfig) (*MultiObjectiveStudy, error) {
	if factory == nil {
		return nil, fmt.Errorf("strategy factory must not be nil")
	}
	if catalog == nil {
		return nil, fmt.Errorf("objective catalog must not be nil")
	}
	if len(cfg.Objectives) == 0 {
		return nil, ErrEmptyObjectives
	}
	if cfg.NTrials < 1 {
		return nil, fmt.Errorf("n_trials must be at least 1, got %d", cfg.NTrials)
	}

	objectives := make([]Objective, len(cfg.Objectives))
	for i, name := range cfg.Objectives {
		o, ok := catalog.Get(name)
		if !ok {
			return nil, fmt.Errorf("%q: %w", name, ErrUnknownObjective)
		}
		objectives[i] = o
	}
	directions, err := catalog.Directions(cfg.Objectives)
	if err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &MultiObjectiveStudy{
		cfg:        cfg,
		factory:    factory,
		catalog:    catalog,
		objectives: objectives,
		directions: directions,
		seed:       seed,
		rng:        rand.New(rand.NewSource(seed)), // #nosec G404 -- search needs seeded, reproducible randomness
	}, nil
}

// Directions returns the per-objective search directions, in objective order.
func (s *MultiObjectiveStudy) Directions() []Direction {
	out := make([]Direction, len(s.directions))
	copy(out, s.directions)
	return out
}

// Run evaluates trials until the budget or timeout is exhausted.
func (s *MultiObjectiveStudy) Run(ctx context.Context) (*MultiStudyResult, error) {
	start := time.Now()

	log.Info().
		Strs("objectives", s.cfg.Objectives).
		Int("n_trials", s.cfg.NTrials).
		Int64("seed", s.seed).
		Msg("Starting multi-objective study")

	var deadline time.Time
	if s.cfg.Timeout > 0 {
		deadline = start.Add(s.cfg.Timeout)
	}

	var trials []*Trial
	if s.cfg.MaxParallel > 1 {
		trials = s.runParallel(ctx, deadline)
	} else {
		trials = s.runSequential(ctx, deadline)
	}

	result := &MultiStudyResult{
		Trials:     trials,
		Directions: s.Directions(),
		Duration:   time.Since(start),
		Seed:       s.seed,
	}

	log.Info().
		Int("trials", len(trials)).
		Int("pareto_front", len(result.ParetoFront())).
		Dur("duration", result.Duration).
		Msg("Multi-objective study complete")

	return result, nil
}

func (s *MultiObjectiveStudy) runSequential(ctx context.Context, deadline time.Time) []*Trial {
	trials := make([]*Trial, 0, s.cfg.NTrials)
	for i := 0; i < s.cfg.NTrials; i++ {
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			log.Info().Int("completed", i).Msg("Study timeout reached, no further trials started")
			break
		}
		trials = append(trials, s.runTrial(ctx, i, s.rng))
	}
	return trials
}

func (s *MultiObjectiveStudy) runParallel(ctx context.Context, deadline time.Time) []*Trial {
	slots := make([]*Trial, s.cfg.NTrials)

	var g errgroup.Group
	g.SetLimit(s.cfg.MaxParallel)

	started := 0
	for i := 0; i < s.cfg.NTrials; i++ {
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			log.Info().Int("started", started).Msg("Study timeout reached, no further trials started")
			break
		}
		started++
		num := i
		g.Go(func() error {
			rng := rand.New(rand.NewSource(s.seed + int64(num) + 1)) // #nosec G404 -- disjoint per-trial stream
			slots[num] = s.runTrial(ctx, num, rng)
			return nil
		})
	}
	_ = g.Wait()

	trials := make([]*Trial, 0, started)
	for _, t := range slots {
		if t != nil {
			trials = append(trials, t)
		}
	}
	return trials
}

// runTrial scores one trial with the full objective vector. A failed run
// yields the per-objective worst sentinel in every slot; a single objective
// failing to compute yields its own sentinel without failing the others.
func (s *MultiObjectiveStudy) runTrial(ctx context.Context, number int, rng *rand.Rand) *Trial {
	worst := make([]float64, len(s.directions))
	for i, d := range s.directions {
		worst[i] = worstValue(d)
	}

	params, record, err := s.evaluate(ctx, rng)
	if err != nil {
		log.Warn().Err(err).Int("trial", number).Msg("Trial failed")
		return &Trial{
			Number: number,
			Params: params,
			Values: worst,
			Status: TrialFailed,
			Err:    err,
		}
	}

	values := make([]float64, len(s.objectives))
	for i, o := range s.objectives {
		v, err := s.catalog.Registry().Compute(record, o.MetricName)
		if err != nil {
			log.Warn().Err(err).Int("trial", number).Str("objective", o.Name).
				Msg("Objective computation failed")
			values[i] = worst[i]
			continue
		}
		values[i] = v
	}

	return &Trial{
		Number: number,
		Params: params,
		Values: values,
		Status: TrialOK,
		record: record,
	}
}

func (s *MultiObjectiveStudy) evaluate(ctx context.Context, rng *rand.Rand) (ParameterSet, *PerformanceRecord, error) {
	strategy, err := s.factory()
	if err != nil {
		return nil, nil, fmt.Errorf("strategy construction failed: %w", err)
	}

	space := strategy.ParameterSpace()
	if err := space.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid parameter space: %w", err)
	}

	params := space.Sample(rng)
	if err := strategy.SetParameters(params); err != nil {
		return params, nil, fmt.Errorf("set parameters failed: %w", err)
	}

	record, err := strategy.Run(ctx)
	if err != nil {
		return params, nil, fmt.Errorf("strategy run failed: %w", err)
	}
	if record == nil {
		return params, nil, fmt.Errorf("strategy run returned no performance record")
	}
	return params, record, nil
}

// ParetoFront returns the successfully scored trials not dominated by any
// other trial across all objectives.
func (r *MultiStudyResult) ParetoFront() []*Trial {
	var front []*Trial
	for _, candidate := range r.Trials {
		if candidate.Status != TrialOK {
			continue
		}
		dominated := false
		for _, other := range r.Trials {
			if other == candidate || other.Status != TrialOK {
				continue
			}
			if dominates(r.Directions, other.Values, candidate.Values) {
				dominated = true
				break
			}
		}
		if !dominated {
			front = append(front, candidate)
		}
	}
	return front
}

// dominates reports whether a is at least as good as b in every objective
// and strictly better in at least one.
func dominates(directions []Direction, a, b []float64) bool {
	strictlyBetter := false
	for i, d := range directions {
		if betterValue(d, b[i], a[i]) {
			return false
		}
		if betterValue(d, a[i], b[i]) {
			strictlyBetter = true
		}
	}
	return strictlyBetter
}
