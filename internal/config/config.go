// Package config loads application configuration from file, environment and
// defaults, and bootstraps logging.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Study   StudyConfig   `mapstructure:"study"`
	Genetic GeneticConfig `mapstructure:"genetic"`
	Data    DataConfig    `mapstructure:"data"`
}

// AppConfig contains application-level settings.
type AppConfig struct {
	Name      string `mapstructure:"name"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"` // "json" or "console"
}

// StudyConfig contains trial-based optimizer settings.
type StudyConfig struct {
	Objective         string        `mapstructure:"objective"`
	Objectives        []string      `mapstructure:"objectives"` // multi-objective mode
	AdditionalMetrics []string      `mapstructure:"additional_metrics"`
	NTrials           int           `mapstructure:"n_trials"`
	Timeout           time.Duration `mapstructure:"timeout"`
	Direction         string        `mapstructure:"direction"`
	Seed              int64         `mapstructure:"seed"`
	MaxParallel       int           `mapstructure:"max_parallel"`
}

// GeneticConfig contains genetic optimizer settings.
type GeneticConfig struct {
	PopulationSize int     `mapstructure:"population_size"`
	Generations    int     `mapstructure:"generations"`
	MutationRate   float64 `mapstructure:"mutation_rate"`
	CrossoverRate  float64 `mapstructure:"crossover_rate"`
	EliteSize      int     `mapstructure:"elite_size"`
	Seed           int64   `mapstructure:"seed"`
	MaxParallel    int     `mapstructure:"max_parallel"`
}

// DataConfig contains historical data settings.
type DataConfig struct {
	File string `mapstructure:"file"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("stratopt")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("STRATOPT")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "stratopt")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "console")

	v.SetDefault("study.objective", "sharpe_ratio")
	v.SetDefault("study.n_trials", 100)
	v.SetDefault("study.max_parallel", 1)

	v.SetDefault("genetic.population_size", 50)
	v.SetDefault("genetic.generations", 20)
	v.SetDefault("genetic.mutation_rate", 0.1)
	v.SetDefault("genetic.crossover_rate", 0.7)
	v.SetDefault("genetic.elite_size", 5)
	v.SetDefault("genetic.max_parallel", 1)
}

// Validate checks configuration ranges before anything runs.
func (c *Config) Validate() error {
	if c.Study.NTrials < 1 {
		return fmt.Errorf("study.n_trials must be at least 1, got %d", c.Study.NTrials)
	}
	if c.Study.Direction != "" && c.Study.Direction != "maximize" && c.Study.Direction != "minimize" {
		return fmt.Errorf("study.direction must be maximize or minimize, got %q", c.Study.Direction)
	}
	if c.Genetic.PopulationSize < 1 {
		return fmt.Errorf("genetic.population_size must be at least 1, got %d", c.Genetic.PopulationSize)
	}
	if c.Genetic.Generations < 1 {
		return fmt.Errorf("genetic.generations must be at least 1, got %d", c.Genetic.Generations)
	}
	if c.Genetic.MutationRate < 0 || c.Genetic.MutationRate > 1 {
		return fmt.Errorf("genetic.mutation_rate must be in [0, 1], got %v", c.Genetic.MutationRate)
	}
	if c.Genetic.CrossoverRate < 0 || c.Genetic.CrossoverRate > 1 {
		return fmt.Errorf("genetic.crossover_rate must be in [0, 1], got %v", c.Genetic.CrossoverRate)
	}
	if c.Genetic.EliteSize < 0 || c.Genetic.EliteSize > c.Genetic.PopulationSize {
		return fmt.Errorf("genetic.elite_size must be in [0, population_size], got %d", c.Genetic.EliteSize)
	}
	return nil
}
