// Single-objective trial-based optimizer
package optimize

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// StudyConfig configures a single-objective trial-based search.
type StudyConfig struct {
	// Objective is the name of the catalog objective to optimize.
	Objective string

	// AdditionalMetrics are recorded on each trial for diagnostics; they
	// do not influence the search.
	AdditionalMetrics []string

	// NTrials is the trial budget.
	NTrials int

	// Timeout, when positive, bounds the number of further trials started.
	// A running trial is never interrupted.
	Timeout time.Duration

	// Direction, when set, must agree with the objective's declared
	// polarity. Leave empty to derive it.
	Direction Direction

	// Seed makes the suggestion sequence reproducible. Zero selects a
	// time-based seed.
	Seed int64

	// MaxParallel bounds concurrent trial evaluations. Values below 2 run
	// trials strictly sequentially. Parallel trials draw parameters from
	// disjoint per-trial seeded streams to stay reproducible.
	MaxParallel int
}

// Study drives a sequence of trials against strategies produced by a
// factory, sampling from their declared parameter space and scoring each
// trial through the objective catalog.
type Study struct {
	cfg       StudyConfig
	factory   StrategyFactory
	catalog   *ObjectiveCatalog
	objective Objective
	direction Direction
	seed      int64
	rng       *rand.Rand
}

// StudyResult is the outcome of an exhausted trial budget.
type StudyResult struct {
	BestTrial *Trial `json:"best_trial"`

	// BestMetrics is every registry metric recomputed from the best
	// trial's performance record.
	BestMetrics map[string]float64 `json:"best_metrics"`

	Trials    []*Trial      `json:"trials"`
	Direction Direction     `json:"direction"`
	Duration  time.Duration `json:"duration"`
	Seed      int64         `json:"seed"`
}

// NewStudy validates the configuration and creates a study. Configuration
// errors (unknown objective or metric, direction mismatch, bad budget)
// surface here, before any trial runs.
func NewStudy(factory StrategyFactory, catalog *ObjectiveCatalog, cfg StudyConfig) (*Study, error) {
	if factory == nil {
		return nil, fmt.Errorf("strategy factory must not be nil")
	}
	if catalog == nil {
		return nil, fmt.Errorf("objective catalog must not be nil")
	}
	if cfg.NTrials < 1 {
		return nil, fmt.Errorf("n_trials must be at least 1, got %d", cfg.NTrials)
	}

	objective, ok := catalog.Get(cfg.Objective)
	if !ok {
		return nil, fmt.Errorf("%q: %w", cfg.Objective, ErrUnknownObjective)
	}
	derived, err := objective.Polarity.Direction()
	if err != nil {
		return nil, err
	}
	if cfg.Direction != "" && cfg.Direction != derived {
		return nil, fmt.Errorf("objective %q is %s but direction %s requested: %w",
			cfg.Objective, derived, cfg.Direction, ErrDirectionMismatch)
	}

	for _, name := range cfg.AdditionalMetrics {
		if _, ok := catalog.Registry().Get(name); !ok {
			return nil, fmt.Errorf("additional metric %q: %w", name, ErrUnknownMetric)
		}
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Study{
		cfg:       cfg,
		factory:   factory,
		catalog:   catalog,
		objective: objective,
		direction: derived,
		seed:      seed,
		rng:       rand.New(rand.NewSource(seed)), // #nosec G404 -- search needs seeded, reproducible randomness
	}, nil
}

// Direction returns the resolved search direction.
func (s *Study) Direction() Direction { return s.direction }

// Run evaluates trials until the budget or timeout is exhausted and returns
// the best trial with its recomputed metrics. Individual trial failures are
// absorbed as worst-sentinel scores and never abort the study.
func (s *Study) Run(ctx context.Context) (*StudyResult, error) {
	start := time.Now()

	log.Info().
		Str("objective", s.cfg.Objective).
		Str("direction", string(s.direction)).
		Int("n_trials", s.cfg.NTrials).
		Dur("timeout", s.cfg.Timeout).
		Int64("seed", s.seed).
		Msg("Starting study")

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

	best := bestTrial(trials, s.direction)

	result := &StudyResult{
		BestTrial: best,
		Trials:    trials,
		Direction: s.direction,
		Duration:  time.Since(start),
		Seed:      s.seed,
	}
	if best != nil && best.record != nil {
		result.BestMetrics = s.catalog.Registry().ComputeAvailable(best.record)
	}

	logEvent := log.Info().
		Int("trials", len(trials)).
		Dur("duration", result.Duration)
	if best != nil {
		logEvent = logEvent.Int("best_trial", best.Number).Float64("best_value", best.Value)
	}
	logEvent.Msg("Study complete")

	return result, nil
}

func (s *Study) runSequential(ctx context.Context, deadline time.Time) []*Trial {
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

// runParallel evaluates trials concurrently under the configured limit.
// Each trial gets its own deterministically seeded stream; aggregation
// happens only after every started trial has finished.
func (s *Study) runParallel(ctx context.Context, deadline time.Time) []*Trial {
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

// runTrial evaluates one trial: fresh strategy, sampled parameters, run,
// score. Any failure produces a failed trial carrying the worst sentinel.
func (s *Study) runTrial(ctx context.Context, number int, rng *rand.Rand) *Trial {
	params, record, err := s.evaluate(ctx, rng)
	if err != nil {
		log.Warn().Err(err).Int("trial", number).Msg("Trial failed")
		return &Trial{
			Number: number,
			Params: params,
			Value:  worstValue(s.direction),
			Status: TrialFailed,
			Err:    err,
		}
	}

	value, err := s.catalog.Registry().Compute(record, s.objective.MetricName)
	if err != nil {
		log.Warn().Err(err).Int("trial", number).Msg("Trial scoring failed")
		return &Trial{
			Number: number,
			Params: params,
			Value:  worstValue(s.direction),
			Status: TrialFailed,
			Err:    err,
		}
	}

	trial := &Trial{
		Number: number,
		Params: params,
		Value:  value,
		Status: TrialOK,
		record: record,
	}

	if len(s.cfg.AdditionalMetrics) > 0 {
		trial.Metrics = make(map[string]float64, len(s.cfg.AdditionalMetrics))
		for _, name := range s.cfg.AdditionalMetrics {
			v, err := s.catalog.Registry().Compute(record, name)
			if err != nil {
				// A diagnostic metric failing does not fail the trial or
				// the other metrics computed from the same record.
				log.Warn().Err(err).Int("trial", number).Str("metric", name).
					Msg("Additional metric computation failed")
				continue
			}
			trial.Metrics[name] = v
		}
	}

	log.Debug().Int("trial", number).Float64("value", value).Msg("Trial scored")
	return trial
}

// evaluate builds a fresh strategy, samples and applies parameters, and runs
// the simulation.
func (s *Study) evaluate(ctx context.Context, rng *rand.Rand) (ParameterSet, *PerformanceRecord, error) {
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
		return params, nil, errors.New("strategy run returned no performance record")
	}
	return params, record, nil
}

// bestTrial picks the best trial for the direction, ties broken by earliest
// trial number.
func bestTrial(trials []*Trial, direction Direction) *Trial {
	var best *Trial
	for _, t := range trials {
		if best == nil || betterValue(direction, t.Value, best.Value) {
			best = t
		}
	}
	return best
}
