// Generational genetic optimizer
package optimize

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Genome is an opaque, encoding-defined candidate solution. The engine never
// inspects it; all encoding-specific behavior lives in GenomeOps.
type Genome interface{}

// GenomeOps supplies the encoding-specific genetic operations. Crossover and
// Mutate must return new genomes; Clone must produce a value that shares no
// mutable state with its source, so no genome is aliased across populations.
type GenomeOps interface {
	Init(rng *rand.Rand) Genome
	Clone(g Genome) Genome
	Crossover(rng *rand.Rand, a, b Genome) Genome
	Mutate(rng *rand.Rand, g Genome) Genome
}

// FitnessFunc scores a genome; higher is better. An error marks the
// evaluation failed: the individual is assigned the worst sentinel and the
// run continues.
type FitnessFunc func(ctx context.Context, g Genome) (float64, error)

// Individual pairs a genome with its lazily computed, cached fitness. The
// cache is dropped whenever the encoding changes.
type Individual struct {
	Genome    Genome
	fitness   float64
	evaluated bool
}

// Fitness returns the cached fitness; valid only after evaluation.
func (ind *Individual) Fitness() float64 { return ind.fitness }

// GeneticConfig configures the generational loop.
type GeneticConfig struct {
	PopulationSize int
	Generations    int
	MutationRate   float64 // in [0, 1]
	CrossoverRate  float64 // in [0, 1]
	EliteSize      int     // must not exceed PopulationSize

	// Seed makes the evolution reproducible. Zero selects a time-based seed.
	Seed int64

	// MaxParallel bounds concurrent fitness evaluations within one
	// generation. Aggregation waits for the whole generation regardless.
	MaxParallel int
}

// Validate surfaces configuration errors before any evaluation runs.
func (cfg GeneticConfig) Validate() error {
	if cfg.PopulationSize < 1 {
		return fmt.Errorf("population_size must be at least 1, got %d", cfg.PopulationSize)
	}
	if cfg.Generations < 1 {
		return fmt.Errorf("generations must be at least 1, got %d", cfg.Generations)
	}
	if cfg.MutationRate < 0 || cfg.MutationRate > 1 {
		return fmt.Errorf("mutation_rate must be in [0, 1], got %v", cfg.MutationRate)
	}
	if cfg.CrossoverRate < 0 || cfg.CrossoverRate > 1 {
		return fmt.Errorf("crossover_rate must be in [0, 1], got %v", cfg.CrossoverRate)
	}
	if cfg.EliteSize < 0 || cfg.EliteSize > cfg.PopulationSize {
		return fmt.Errorf("elite_size must be in [0, population_size], got %d", cfg.EliteSize)
	}
	return nil
}

// GeneticOptimizer evolves a population of candidate solutions through a
// fixed number of generations of selection, crossover, mutation and elitism.
// The engine owns only the generation loop and bookkeeping; initialization,
// crossover and mutation are supplied per encoding through GenomeOps.
type GeneticOptimizer struct {
	cfg     GeneticConfig
	ops     GenomeOps
	fitness FitnessFunc
	seed    int64
	rng     *rand.Rand
}

// EvolutionResult is the terminal output of a genetic run.
type EvolutionResult struct {
	// Best is the best-ever genome across all generations, retained even
	// after its generation was superseded.
	Best        Genome  `json:"-"`
	BestFitness float64 `json:"best_fitness"`

	// FitnessHistory holds one mean-fitness entry per generation.
	FitnessHistory []float64 `json:"fitness_history"`

	Generations int           `json:"generations"`
	Duration    time.Duration `json:"duration"`
	Seed        int64         `json:"seed"`
}

// NewGeneticOptimizer validates the configuration and creates the engine.
func NewGeneticOptimizer(cfg GeneticConfig, ops GenomeOps, fitness FitnessFunc) (*GeneticOptimizer, error) {
	if ops == nil {
		return nil, fmt.Errorf("genome operations must not be nil")
	}
	if fitness == nil {
		return nil, fmt.Errorf("fitness function must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &GeneticOptimizer{
		cfg:     cfg,
		ops:     ops,
		fitness: fitness,
		seed:    seed,
		rng:     rand.New(rand.NewSource(seed)), // #nosec G404 -- evolution needs seeded, reproducible randomness
	}, nil
}

// Run evolves the population for the configured generation count and returns
// the best-ever genome, its fitness, and the full fitness history.
func (g *GeneticOptimizer) Run(ctx context.Context) (*EvolutionResult, error) {
	start := time.Now()

	log.Info().
		Int("population", g.cfg.PopulationSize).
		Int("generations", g.cfg.Generations).
		Float64("mutation_rate", g.cfg.MutationRate).
		Float64("crossover_rate", g.cfg.CrossoverRate).
		Int("elite_size", g.cfg.EliteSize).
		Int64("seed", g.seed).
		Msg("Starting evolution")

	population := make([]*Individual, g.cfg.PopulationSize)
	for i := range population {
		population[i] = &Individual{Genome: g.ops.Init(g.rng)}
	}

	var best *Individual
	history := make([]float64, 0, g.cfg.Generations)

	for gen := 0; gen < g.cfg.Generations; gen++ {
		g.evaluate(ctx, population)

		sum := 0.0
		genBest := population[0]
		genWorst := population[0]
		for _, ind := range population {
			sum += ind.fitness
			if ind.fitness > genBest.fitness {
				genBest = ind
			}
			if ind.fitness < genWorst.fitness {
				genWorst = ind
			}
		}
		history = append(history, sum/float64(len(population)))

		if best == nil || genBest.fitness > best.fitness {
			best = &Individual{
				Genome:    g.ops.Clone(genBest.Genome),
				fitness:   genBest.fitness,
				evaluated: true,
			}
		}

		log.Info().
			Int("generation", gen+1).
			Int("total", g.cfg.Generations).
			Float64("best", genBest.fitness).
			Float64("worst", genWorst.fitness).
			Float64("mean", history[len(history)-1]).
			Msg("Generation evaluated")

		if gen == g.cfg.Generations-1 {
			break
		}
		population = g.reproduce(population)
	}

	result := &EvolutionResult{
		Best:           best.Genome,
		BestFitness:    best.fitness,
		FitnessHistory: history,
		Generations:    g.cfg.Generations,
		Duration:       time.Since(start),
		Seed:           g.seed,
	}

	log.Info().
		Float64("best_fitness", result.BestFitness).
		Dur("duration", result.Duration).
		Msg("Evolution complete")

	return result, nil
}

// evaluate computes fitness for every individual that does not already carry
// a cached value. Evaluation failures are absorbed as the worst sentinel.
// With parallelism enabled, evaluations run under the configured limit and
// the generation barrier is the group wait.
func (g *GeneticOptimizer) evaluate(ctx context.Context, population []*Individual) {
	if g.cfg.MaxParallel > 1 {
		var group errgroup.Group
		group.SetLimit(g.cfg.MaxParallel)
		for _, ind := range population {
			if ind.evaluated {
				continue
			}
			ind := ind
			group.Go(func() error {
				g.evaluateOne(ctx, ind)
				return nil
			})
		}
		_ = group.Wait()
		return
	}

	for _, ind := range population {
		if !ind.evaluated {
			g.evaluateOne(ctx, ind)
		}
	}
}

func (g *GeneticOptimizer) evaluateOne(ctx context.Context, ind *Individual) {
	value, err := g.fitness(ctx, ind.Genome)
	if err != nil {
		log.Warn().Err(err).Msg("Fitness evaluation failed")
		value = negInf
	}
	ind.fitness = value
	ind.evaluated = true
}

// reproduce builds the next generation: elites first, then children from
// tournament crossover or uniform cloning, each independently mutated with
// the configured rate. The new population owns only fresh individuals.
func (g *GeneticOptimizer) reproduce(population []*Individual) []*Individual {
	order := make([]int, len(population))
	for i := range order {
		order[i] = i
	}
	// Stable sort keeps original population order for equal fitness.
	sort.SliceStable(order, func(i, j int) bool {
		return population[order[i]].fitness > population[order[j]].fitness
	})

	next := make([]*Individual, 0, g.cfg.PopulationSize)
	for i := 0; i < g.cfg.EliteSize; i++ {
		elite := population[order[i]]
		next = append(next, &Individual{
			Genome:    g.ops.Clone(elite.Genome),
			fitness:   elite.fitness,
			evaluated: true,
		})
	}

	for len(next) < g.cfg.PopulationSize {
		var child *Individual
		if g.rng.Float64() < g.cfg.CrossoverRate {
			p1 := g.tournament(g.rng, population)
			p2 := g.tournament(g.rng, population)
			child = &Individual{Genome: g.ops.Crossover(g.rng, p1.Genome, p2.Genome)}
		} else {
			src := population[g.rng.Intn(len(population))]
			child = &Individual{
				Genome:    g.ops.Clone(src.Genome),
				fitness:   src.fitness,
				evaluated: src.evaluated,
			}
		}

		if g.rng.Float64() < g.cfg.MutationRate {
			// The encoding changed, so the cached fitness is invalid.
			child = &Individual{Genome: g.ops.Mutate(g.rng, child.Genome)}
		}
		next = append(next, child)
	}

	return next
}

// tournament samples three individuals uniformly with replacement and
// returns the fittest.
func (g *GeneticOptimizer) tournament(rng *rand.Rand, population []*Individual) *Individual {
	const tournamentSize = 3
	best := population[rng.Intn(len(population))]
	for i := 1; i < tournamentSize; i++ {
		contestant := population[rng.Intn(len(population))]
		if contestant.fitness > best.fitness {
			best = contestant
		}
	}
	return best
}
