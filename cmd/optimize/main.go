// Strategy Optimizer CLI
// Tunes strategy parameters against historical data using trial-based or
// genetic search.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/quantfunk/stratopt/internal/config"
	"github.com/quantfunk/stratopt/internal/data"
	"github.com/quantfunk/stratopt/internal/strategy"
	"github.com/quantfunk/stratopt/pkg/optimize"
)

// ============================================================================
// CLI FLAGS
// ============================================================================

var (
	strategyName = flag.String("strategy", "", "Strategy name (ma, rsi, bollinger)")
	dataFile     = flag.String("data", "", "CSV file with historical candles")
	method       = flag.String("method", "trial", "Search method (trial, multi, genetic)")

	objective  = flag.String("objective", "", "Objective name for trial/genetic search")
	objectives = flag.String("objectives", "", "Comma-separated objective names for multi search")
	metrics    = flag.String("metrics", "", "Comma-separated additional metrics to record")

	nTrials   = flag.Int("trials", 0, "Trial budget")
	timeout   = flag.Duration("timeout", 0, "Wall-clock budget (bounds trials started)")
	direction = flag.String("direction", "", "Search direction (maximize, minimize)")

	population    = flag.Int("population", 0, "Genetic population size")
	generations   = flag.Int("generations", 0, "Genetic generation count")
	mutationRate  = flag.Float64("mutation-rate", -1, "Genetic mutation rate in [0,1]")
	crossoverRate = flag.Float64("crossover-rate", -1, "Genetic crossover rate in [0,1]")
	eliteSize     = flag.Int("elite", -1, "Genetic elite size")

	seed        = flag.Int64("seed", 0, "Random seed (0 = time-based)")
	maxParallel = flag.Int("parallel", 0, "Max concurrent evaluations")

	configFile = flag.String("config", "", "Config file path (optional)")
	outputFile = flag.String("output", "", "YAML output file for results (optional)")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
)

// ============================================================================
// MAIN
// ============================================================================

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg)

	logLevel := cfg.App.LogLevel
	if *verbose {
		logLevel = "debug"
	}
	config.InitLogger(logLevel, cfg.App.LogFormat)

	if *strategyName == "" {
		fmt.Fprintln(os.Stderr, "Error: -strategy flag is required")
		flag.Usage()
		os.Exit(1)
	}
	if cfg.Data.File == "" {
		fmt.Fprintln(os.Stderr, "Error: -data flag or data.file config is required")
		flag.Usage()
		os.Exit(1)
	}

	if err := run(context.Background(), cfg); err != nil {
		log.Fatal().Err(err).Msg("Optimization failed")
	}
}

// applyFlags overlays explicitly passed flags onto the loaded config.
func applyFlags(cfg *config.Config) {
	if *dataFile != "" {
		cfg.Data.File = *dataFile
	}
	if *objective != "" {
		cfg.Study.Objective = *objective
	}
	if *objectives != "" {
		cfg.Study.Objectives = splitList(*objectives)
	}
	if *metrics != "" {
		cfg.Study.AdditionalMetrics = splitList(*metrics)
	}
	if *nTrials > 0 {
		cfg.Study.NTrials = *nTrials
	}
	if *timeout > 0 {
		cfg.Study.Timeout = *timeout
	}
	if *direction != "" {
		cfg.Study.Direction = *direction
	}
	if *seed != 0 {
		cfg.Study.Seed = *seed
		cfg.Genetic.Seed = *seed
	}
	if *maxParallel > 0 {
		cfg.Study.MaxParallel = *maxParallel
		cfg.Genetic.MaxParallel = *maxParallel
	}
	if *population > 0 {
		cfg.Genetic.PopulationSize = *population
	}
	if *generations > 0 {
		cfg.Genetic.Generations = *generations
	}
	if *mutationRate >= 0 {
		cfg.Genetic.MutationRate = *mutationRate
	}
	if *crossoverRate >= 0 {
		cfg.Genetic.CrossoverRate = *crossoverRate
	}
	if *eliteSize >= 0 {
		cfg.Genetic.EliteSize = *eliteSize
	}
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// ============================================================================
// OPTIMIZATION EXECUTION
// ============================================================================

func run(ctx context.Context, cfg *config.Config) error {
	candles, err := data.LoadCandles(cfg.Data.File)
	if err != nil {
		return err
	}
	timestamps, closes := data.Series(candles)

	factory, err := strategy.Factory(*strategyName, timestamps, closes)
	if err != nil {
		return err
	}

	registry := optimize.DefaultRegistry()
	catalog, err := optimize.DefaultObjectiveCatalog(registry)
	if err != nil {
		return err
	}

	log.Info().
		Str("strategy", *strategyName).
		Str("method", *method).
		Msg("Starting optimization")

	switch *method {
	case "trial":
		return runStudy(ctx, cfg, factory, catalog)
	case "multi":
		return runMultiStudy(ctx, cfg, factory, catalog)
	case "genetic":
		return runGenetic(ctx, cfg, factory, catalog)
	default:
		return fmt.Errorf("unknown method %q (available: trial, multi, genetic)", *method)
	}
}

func runStudy(ctx context.Context, cfg *config.Config, factory optimize.StrategyFactory, catalog *optimize.ObjectiveCatalog) error {
	study, err := optimize.NewStudy(factory, catalog, optimize.StudyConfig{
		Objective:         cfg.Study.Objective,
		AdditionalMetrics: cfg.Study.AdditionalMetrics,
		NTrials:           cfg.Study.NTrials,
		Timeout:           cfg.Study.Timeout,
		Direction:         optimize.Direction(cfg.Study.Direction),
		Seed:              cfg.Study.Seed,
		MaxParallel:       cfg.Study.MaxParallel,
	})
	if err != nil {
		return err
	}

	result, err := study.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Print(optimize.StudyReport(result))

	summary := map[string]interface{}{
		"method":    "trial",
		"strategy":  *strategyName,
		"objective": cfg.Study.Objective,
		"direction": string(result.Direction),
		"trials":    len(result.Trials),
		"seed":      result.Seed,
	}
	if result.BestTrial != nil {
		summary["best_value"] = result.BestTrial.Value
		summary["best_params"] = result.BestTrial.Params
		summary["best_metrics"] = result.BestMetrics
	}
	return writeOutput(summary)
}

func runMultiStudy(ctx context.Context, cfg *config.Config, factory optimize.StrategyFactory, catalog *optimize.ObjectiveCatalog) error {
	study, err := optimize.NewMultiObjectiveStudy(factory, catalog, optimize.MultiStudyConfig{
		Objectives:  cfg.Study.Objectives,
		NTrials:     cfg.Study.NTrials,
		Timeout:     cfg.Study.Timeout,
		Seed:        cfg.Study.Seed,
		MaxParallel: cfg.Study.MaxParallel,
	})
	if err != nil {
		return err
	}

	result, err := study.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Print(optimize.MultiStudyReport(result, cfg.Study.Objectives))

	front := result.ParetoFront()
	frontOut := make([]map[string]interface{}, 0, len(front))
	for _, t := range front {
		frontOut = append(frontOut, map[string]interface{}{
			"trial":  t.Number,
			"values": t.Values,
			"params": t.Params,
		})
	}
	return writeOutput(map[string]interface{}{
		"method":       "multi",
		"strategy":     *strategyName,
		"objectives":   cfg.Study.Objectives,
		"trials":       len(result.Trials),
		"seed":         result.Seed,
		"pareto_front": frontOut,
	})
}

func runGenetic(ctx context.Context, cfg *config.Config, factory optimize.StrategyFactory, catalog *optimize.ObjectiveCatalog) error {
	// The genome is the strategy's own parameter space; construct one
	// instance up front to read its declaration.
	probe, err := factory()
	if err != nil {
		return err
	}
	ops, err := optimize.NewParameterGenomeOps(probe.ParameterSpace())
	if err != nil {
		return err
	}
	fitness, err := optimize.StrategyFitness(factory, catalog, cfg.Study.Objective)
	if err != nil {
		return err
	}

	engine, err := optimize.NewGeneticOptimizer(optimize.GeneticConfig{
		PopulationSize: cfg.Genetic.PopulationSize,
		Generations:    cfg.Genetic.Generations,
		MutationRate:   cfg.Genetic.MutationRate,
		CrossoverRate:  cfg.Genetic.CrossoverRate,
		EliteSize:      cfg.Genetic.EliteSize,
		Seed:           cfg.Genetic.Seed,
		MaxParallel:    cfg.Genetic.MaxParallel,
	}, ops, fitness)
	if err != nil {
		return err
	}

	result, err := engine.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Print(optimize.EvolutionReport(result))
	return writeOutput(map[string]interface{}{
		"method":          "genetic",
		"strategy":        *strategyName,
		"objective":       cfg.Study.Objective,
		"generations":     result.Generations,
		"seed":            result.Seed,
		"best_fitness":    result.BestFitness,
		"best_params":     result.Best,
		"fitness_history": result.FitnessHistory,
	})
}

// writeOutput writes the result summary as YAML when -output is set.
func writeOutput(summary map[string]interface{}) error {
	if *outputFile == "" {
		return nil
	}
	out, err := yaml.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := os.WriteFile(*outputFile, out, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", *outputFile, err)
	}
	log.Info().Str("file", *outputFile).Msg("Results written")
	return nil
}
