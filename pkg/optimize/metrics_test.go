package optimize

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// REGISTRY TESTS
// ============================================================================

func TestMetricRegistry_Register(t *testing.T) {
	registry := NewMetricRegistry()

	metric := Metric{
		Name:           "test_metric",
		Category:       CategoryReturns,
		Polarity:       HigherIsBetter,
		RequiredFields: []string{FieldReturns},
		Compute:        func(*PerformanceRecord) float64 { return 1 },
	}
	require.NoError(t, registry.Register(metric))

	t.Run("Duplicate", func(t *testing.T) {
		err := registry.Register(metric)
		assert.ErrorIs(t, err, ErrDuplicateMetric)
	})

	t.Run("EmptyName", func(t *testing.T) {
		err := registry.Register(Metric{Compute: func(*PerformanceRecord) float64 { return 0 }})
		assert.Error(t, err)
	})

	t.Run("NilCompute", func(t *testing.T) {
		err := registry.Register(Metric{Name: "broken"})
		assert.Error(t, err)
	})

	t.Run("Get", func(t *testing.T) {
		m, ok := registry.Get("test_metric")
		require.True(t, ok)
		assert.Equal(t, CategoryReturns, m.Category)

		_, ok = registry.Get("nope")
		assert.False(t, ok)
	})
}

func TestDefaultRegistry(t *testing.T) {
	registry := DefaultRegistry()

	expected := []string{
		"average_position_size", "average_trade", "calmar_ratio", "expectancy",
		"max_drawdown", "omega_ratio", "profit_factor", "recovery_factor",
		"sharpe_ratio", "sortino_ratio", "ulcer_index", "win_rate",
	}
	assert.Equal(t, expected, registry.Names())

	t.Run("ByCategory", func(t *testing.T) {
		ratios := registry.ByCategory(CategoryRatios)
		names := make([]string, len(ratios))
		for i, m := range ratios {
			names[i] = m.Name
		}
		assert.Equal(t, []string{"calmar_ratio", "omega_ratio", "sharpe_ratio", "sortino_ratio"}, names)
	})

	t.Run("Polarities", func(t *testing.T) {
		for _, name := range []string{"max_drawdown", "ulcer_index"} {
			m, ok := registry.Get(name)
			require.True(t, ok)
			assert.Equal(t, LowerIsBetter, m.Polarity, name)
		}
		m, ok := registry.Get("average_position_size")
		require.True(t, ok)
		assert.Equal(t, Neutral, m.Polarity)
	})
}

func TestMetricRegistry_Compute(t *testing.T) {
	registry := DefaultRegistry()
	record := newTestRecord(t, map[string][]float64{
		FieldReturns: {0.01, -0.02, 0.03},
	})

	t.Run("UnknownMetric", func(t *testing.T) {
		_, err := registry.Compute(record, "nope")
		assert.ErrorIs(t, err, ErrUnknownMetric)
	})

	t.Run("MissingField", func(t *testing.T) {
		_, err := registry.Compute(record, "win_rate")

		var missing *MissingFieldError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "win_rate", missing.Metric)
		assert.Equal(t, []string{FieldTradeReturns}, missing.Fields)
	})

	t.Run("PanicRecovered", func(t *testing.T) {
		require.NoError(t, registry.Register(Metric{
			Name:     "panics",
			Category: CategoryReturns,
			Polarity: HigherIsBetter,
			Compute:  func(*PerformanceRecord) float64 { panic("boom") },
		}))

		_, err := registry.Compute(record, "panics")

		var comp *ComputationError
		require.ErrorAs(t, err, &comp)
		assert.Equal(t, "panics", comp.Metric)
	})
}

func TestMetricRegistry_ComputeAvailable(t *testing.T) {
	registry := DefaultRegistry()

	// Only the returns field is present, so trade and position metrics are
	// skipped without failing the rest.
	record := newTestRecord(t, map[string][]float64{
		FieldReturns: {0.01, -0.02, 0.03},
	})

	values := registry.ComputeAvailable(record)
	assert.Contains(t, values, "sharpe_ratio")
	assert.Contains(t, values, "max_drawdown")
	assert.NotContains(t, values, "win_rate")
	assert.NotContains(t, values, "average_position_size")
}

// ============================================================================
// METRIC VALUE TESTS
// ============================================================================

func TestSharpeRatio(t *testing.T) {
	registry := DefaultRegistry()

	t.Run("TooFewObservations", func(t *testing.T) {
		record := newTestRecord(t, map[string][]float64{FieldReturns: {0.05}})
		v, err := registry.Compute(record, "sharpe_ratio")
		require.NoError(t, err)
		assert.Equal(t, 0.0, v)
	})

	t.Run("ZeroVolatility", func(t *testing.T) {
		record := newTestRecord(t, map[string][]float64{FieldReturns: {0.01, 0.01, 0.01}})
		v, err := registry.Compute(record, "sharpe_ratio")
		require.NoError(t, err)
		assert.True(t, math.IsInf(v, 1))
	})

	t.Run("ZeroMeanNoise", func(t *testing.T) {
		// A year of zero-mean Gaussian noise has a Sharpe near zero. The
		// sample mean of 252 draws is within 4 sigma/sqrt(252) essentially
		// always, which bounds the annualized ratio by 4.
		rng := rand.New(rand.NewSource(42)) // #nosec G404 -- deterministic test data
		returns := make([]float64, tradingDaysPerYear)
		for i := range returns {
			returns[i] = rng.NormFloat64() * 0.01
		}

		record := newTestRecord(t, map[string][]float64{FieldReturns: returns})
		v, err := registry.Compute(record, "sharpe_ratio")
		require.NoError(t, err)
		assert.InDelta(t, 0, v, 4)
	})

	t.Run("SampleDeviation", func(t *testing.T) {
		// Volatility uses the sample estimator (n-1 denominator): for
		// {0.01, 0.03} that is sqrt(0.0002), not the population 0.01.
		record := newTestRecord(t, map[string][]float64{FieldReturns: {0.01, 0.03}})
		v, err := registry.Compute(record, "sharpe_ratio")
		require.NoError(t, err)
		assert.InDelta(t, math.Sqrt(tradingDaysPerYear)*0.02/math.Sqrt(0.0002), v, 1e-12)
	})

	t.Run("PositiveDrift", func(t *testing.T) {
		record := newTestRecord(t, map[string][]float64{
			FieldReturns: {0.01, 0.02, 0.01, 0.03, 0.01, 0.02},
		})
		v, err := registry.Compute(record, "sharpe_ratio")
		require.NoError(t, err)
		assert.Greater(t, v, 0.0)
	})
}

func TestSortinoRatio(t *testing.T) {
	registry := DefaultRegistry()

	t.Run("NoDownside", func(t *testing.T) {
		record := newTestRecord(t, map[string][]float64{FieldReturns: {0.01, 0.02, 0.03}})
		v, err := registry.Compute(record, "sortino_ratio")
		require.NoError(t, err)
		assert.True(t, math.IsInf(v, 1))
	})

	t.Run("TooFewObservations", func(t *testing.T) {
		record := newTestRecord(t, map[string][]float64{FieldReturns: {-0.05}})
		v, err := registry.Compute(record, "sortino_ratio")
		require.NoError(t, err)
		assert.Equal(t, 0.0, v)
	})

	t.Run("PenalizesDownside", func(t *testing.T) {
		record := newTestRecord(t, map[string][]float64{
			FieldReturns: {0.02, -0.03, 0.02, -0.01, 0.02},
		})
		v, err := registry.Compute(record, "sortino_ratio")
		require.NoError(t, err)
		assert.False(t, math.IsInf(v, 0))
	})

	t.Run("SampleDownsideDeviation", func(t *testing.T) {
		// Downside {-0.01, -0.03} has sample deviation sqrt(0.0002).
		record := newTestRecord(t, map[string][]float64{
			FieldReturns: {0.03, -0.01, 0.02, -0.03},
		})
		v, err := registry.Compute(record, "sortino_ratio")
		require.NoError(t, err)
		assert.InDelta(t, math.Sqrt(tradingDaysPerYear)*0.0025/math.Sqrt(0.0002), v, 1e-12)
	})

	t.Run("SingleDownsideObservation", func(t *testing.T) {
		// One losing period has no measurable spread.
		record := newTestRecord(t, map[string][]float64{
			FieldReturns: {0.01, -0.02, 0.03},
		})
		v, err := registry.Compute(record, "sortino_ratio")
		require.NoError(t, err)
		assert.True(t, math.IsInf(v, 1))
	})
}

func TestMaxDrawdown(t *testing.T) {
	registry := DefaultRegistry()

	t.Run("MonotonicGains", func(t *testing.T) {
		record := newTestRecord(t, map[string][]float64{FieldReturns: {0.01, 0.02, 0.03}})
		v, err := registry.Compute(record, "max_drawdown")
		require.NoError(t, err)
		assert.Equal(t, 0.0, v)
	})

	t.Run("HalfLoss", func(t *testing.T) {
		// Equity 1.0 -> 2.0 -> 1.0 is a 50% decline from the peak.
		record := newTestRecord(t, map[string][]float64{FieldReturns: {1.0, -0.5}})
		v, err := registry.Compute(record, "max_drawdown")
		require.NoError(t, err)
		assert.InDelta(t, 0.5, v, 1e-12)
	})

	t.Run("ReportedAsMagnitude", func(t *testing.T) {
		record := newTestRecord(t, map[string][]float64{FieldReturns: {-0.1, 0.05, -0.2}})
		v, err := registry.Compute(record, "max_drawdown")
		require.NoError(t, err)
		assert.Greater(t, v, 0.0)
	})
}

func TestRatioDegenerates(t *testing.T) {
	registry := DefaultRegistry()

	// No drawdown means calmar and recovery have nothing to divide by.
	record := newTestRecord(t, map[string][]float64{FieldReturns: {0.01, 0.02}})

	for _, name := range []string{"calmar_ratio", "recovery_factor", "omega_ratio"} {
		v, err := registry.Compute(record, name)
		require.NoError(t, err)
		assert.True(t, math.IsInf(v, 1), name)
	}
}

func TestUlcerIndex(t *testing.T) {
	registry := DefaultRegistry()

	t.Run("NoDrawdown", func(t *testing.T) {
		record := newTestRecord(t, map[string][]float64{FieldReturns: {0.01, 0.02}})
		v, err := registry.Compute(record, "ulcer_index")
		require.NoError(t, err)
		assert.Equal(t, 0.0, v)
	})

	t.Run("ConstantDrawdown", func(t *testing.T) {
		// A single 20% drop held for one period: drawdown series is
		// {0, -0.2}, RMS sqrt(0.04/2).
		record := newTestRecord(t, map[string][]float64{FieldReturns: {0.0, -0.2}})
		v, err := registry.Compute(record, "ulcer_index")
		require.NoError(t, err)
		assert.InDelta(t, math.Sqrt(0.02), v, 1e-12)
	})
}

func TestExpectancy(t *testing.T) {
	registry := DefaultRegistry()
	record := newTestRecord(t, map[string][]float64{FieldReturns: {0.01, 0.03, -0.01}})

	v, err := registry.Compute(record, "expectancy")
	require.NoError(t, err)
	assert.InDelta(t, 0.01, v, 1e-12)
}

func TestTradeMetrics(t *testing.T) {
	registry := DefaultRegistry()

	t.Run("AllWinners", func(t *testing.T) {
		record := newTestRecord(t, map[string][]float64{
			FieldTradeReturns: {0.05, 0.10, 0.02},
		})

		winRate, err := registry.Compute(record, "win_rate")
		require.NoError(t, err)
		assert.Equal(t, 1.0, winRate)

		pf, err := registry.Compute(record, "profit_factor")
		require.NoError(t, err)
		assert.True(t, math.IsInf(pf, 1))
	})

	t.Run("AllLosers", func(t *testing.T) {
		record := newTestRecord(t, map[string][]float64{
			FieldTradeReturns: {-0.05, -0.10},
		})

		winRate, err := registry.Compute(record, "win_rate")
		require.NoError(t, err)
		assert.Equal(t, 0.0, winRate)

		pf, err := registry.Compute(record, "profit_factor")
		require.NoError(t, err)
		assert.Equal(t, 0.0, pf)
	})

	t.Run("NoTrades", func(t *testing.T) {
		record := newTestRecord(t, map[string][]float64{
			FieldTradeReturns: {},
		})

		for _, name := range []string{"win_rate", "profit_factor", "average_trade"} {
			v, err := registry.Compute(record, name)
			require.NoError(t, err)
			assert.Equal(t, 0.0, v, name)
		}
	})

	t.Run("Mixed", func(t *testing.T) {
		record := newTestRecord(t, map[string][]float64{
			FieldTradeReturns: {0.10, -0.05, 0.10, -0.05},
		})

		winRate, err := registry.Compute(record, "win_rate")
		require.NoError(t, err)
		assert.Equal(t, 0.5, winRate)

		pf, err := registry.Compute(record, "profit_factor")
		require.NoError(t, err)
		assert.InDelta(t, 2.0, pf, 1e-12)

		avg, err := registry.Compute(record, "average_trade")
		require.NoError(t, err)
		assert.InDelta(t, 0.025, avg, 1e-12)
	})
}

func TestAveragePositionSize(t *testing.T) {
	registry := DefaultRegistry()
	record := newTestRecord(t, map[string][]float64{
		FieldPositionSize: {1, -1, 0, 1},
	})

	v, err := registry.Compute(record, "average_position_size")
	require.NoError(t, err)
	assert.InDelta(t, 0.75, v, 1e-12)
}

// ============================================================================
// ERROR TYPE TESTS
// ============================================================================

func TestComputationError_Unwrap(t *testing.T) {
	inner := errors.New("division by zero")
	err := &ComputationError{Metric: "m", Err: inner}

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "m")
}
