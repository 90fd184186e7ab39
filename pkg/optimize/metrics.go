// Performance metric catalog and registry
package optimize

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog/log"
)

// tradingDaysPerYear is the conventional annualization factor for daily data.
const tradingDaysPerYear = 252

// MetricCategory groups related metrics.
type MetricCategory string

const (
	CategoryReturns  MetricCategory = "returns"
	CategoryRisk     MetricCategory = "risk"
	CategoryRatios   MetricCategory = "ratios"
	CategoryTrades   MetricCategory = "trades"
	CategoryPosition MetricCategory = "position"
)

// Polarity declares whether a metric is better when higher, lower, or neither.
type Polarity string

const (
	HigherIsBetter Polarity = "higher"
	LowerIsBetter  Polarity = "lower"
	Neutral        Polarity = "neutral"
)

// MetricFunc computes a scalar score from a performance record. The required
// fields are guaranteed present when the registry invokes it; each function
// defines its own degenerate-input policy and never returns an error.
type MetricFunc func(*PerformanceRecord) float64

// Metric describes one registered performance metric.
type Metric struct {
	Name           string
	Description    string
	Category       MetricCategory
	Polarity       Polarity
	RequiredFields []string
	Compute        MetricFunc
}

// MetricRegistry maps metric names to their computation. It is populated at
// construction time and injected into optimizers; it is not mutated after
// registration completes.
type MetricRegistry struct {
	metrics map[string]Metric
}

// NewMetricRegistry creates an empty registry.
func NewMetricRegistry() *MetricRegistry {
	return &MetricRegistry{metrics: make(map[string]Metric)}
}

// Register adds a metric to the registry. Registering the same name twice
// fails with ErrDuplicateMetric.
func (r *MetricRegistry) Register(m Metric) error {
	if m.Name == "" {
		return fmt.Errorf("metric name must not be empty")
	}
	if m.Compute == nil {
		return fmt.Errorf("metric %q: compute function must not be nil", m.Name)
	}
	if _, ok := r.metrics[m.Name]; ok {
		return fmt.Errorf("%q: %w", m.Name, ErrDuplicateMetric)
	}
	r.metrics[m.Name] = m
	return nil
}

// Get returns the named metric.
func (r *MetricRegistry) Get(name string) (Metric, bool) {
	m, ok := r.metrics[name]
	return m, ok
}

// Names returns all registered metric names, sorted.
func (r *MetricRegistry) Names() []string {
	names := make([]string, 0, len(r.metrics))
	for name := range r.metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ByCategory returns the metrics in the given category, sorted by name.
func (r *MetricRegistry) ByCategory(category MetricCategory) []Metric {
	var out []Metric
	for _, name := range r.Names() {
		if m := r.metrics[name]; m.Category == category {
			out = append(out, m)
		}
	}
	return out
}

// Compute evaluates the named metric against the record. It fails with
// ErrUnknownMetric for unregistered names and MissingFieldError when the
// record lacks required fields. A panic inside the metric function is
// recovered and reported as a ComputationError so one bad metric cannot
// abort a whole trial.
func (r *MetricRegistry) Compute(record *PerformanceRecord, name string) (value float64, err error) {
	m, ok := r.metrics[name]
	if !ok {
		return 0, fmt.Errorf("%q: %w", name, ErrUnknownMetric)
	}
	if missing := record.MissingFields(m.RequiredFields); len(missing) > 0 {
		return 0, &MissingFieldError{Metric: name, Fields: missing}
	}

	defer func() {
		if p := recover(); p != nil {
			err = &ComputationError{Metric: name, Err: fmt.Errorf("%v", p)}
		}
	}()
	return m.Compute(record), nil
}

// ComputeAvailable evaluates every registered metric whose required fields
// the record carries. Failures are logged and skipped rather than failing
// the remaining metrics.
func (r *MetricRegistry) ComputeAvailable(record *PerformanceRecord) map[string]float64 {
	out := make(map[string]float64)
	for _, name := range r.Names() {
		m := r.metrics[name]
		if len(record.MissingFields(m.RequiredFields)) > 0 {
			continue
		}
		value, err := r.Compute(record, name)
		if err != nil {
			log.Warn().Err(err).Str("metric", name).Msg("Metric computation failed")
			continue
		}
		out[name] = value
	}
	return out
}

// DefaultRegistry builds the standard metric table.
func DefaultRegistry() *MetricRegistry {
	registry := NewMetricRegistry()
	for _, m := range []Metric{
		{
			Name:           "sharpe_ratio",
			Description:    "Risk-adjusted return using standard deviation of returns",
			Category:       CategoryRatios,
			Polarity:       HigherIsBetter,
			RequiredFields: []string{FieldReturns},
			Compute:        computeSharpeRatio,
		},
		{
			Name:           "sortino_ratio",
			Description:    "Risk-adjusted return using downside deviation",
			Category:       CategoryRatios,
			Polarity:       HigherIsBetter,
			RequiredFields: []string{FieldReturns},
			Compute:        computeSortinoRatio,
		},
		{
			Name:           "calmar_ratio",
			Description:    "Annualized return over maximum drawdown",
			Category:       CategoryRatios,
			Polarity:       HigherIsBetter,
			RequiredFields: []string{FieldReturns},
			Compute:        computeCalmarRatio,
		},
		{
			Name:           "omega_ratio",
			Description:    "Probability weighted ratio of gains versus losses",
			Category:       CategoryRatios,
			Polarity:       HigherIsBetter,
			RequiredFields: []string{FieldReturns},
			Compute:        computeOmegaRatio,
		},
		{
			Name:           "max_drawdown",
			Description:    "Maximum peak to trough decline",
			Category:       CategoryRisk,
			Polarity:       LowerIsBetter,
			RequiredFields: []string{FieldReturns},
			Compute:        computeMaxDrawdown,
		},
		{
			Name:           "ulcer_index",
			Description:    "Root mean square of drawdowns",
			Category:       CategoryRisk,
			Polarity:       LowerIsBetter,
			RequiredFields: []string{FieldReturns},
			Compute:        computeUlcerIndex,
		},
		{
			Name:           "expectancy",
			Description:    "Mean per-period return",
			Category:       CategoryReturns,
			Polarity:       HigherIsBetter,
			RequiredFields: []string{FieldReturns},
			Compute:        computeExpectancy,
		},
		{
			Name:           "recovery_factor",
			Description:    "Total compound return over maximum drawdown",
			Category:       CategoryReturns,
			Polarity:       HigherIsBetter,
			RequiredFields: []string{FieldReturns},
			Compute:        computeRecoveryFactor,
		},
		{
			Name:           "win_rate",
			Description:    "Percentage of winning trades",
			Category:       CategoryTrades,
			Polarity:       HigherIsBetter,
			RequiredFields: []string{FieldTradeReturns},
			Compute:        computeWinRate,
		},
		{
			Name:           "profit_factor",
			Description:    "Ratio of gross profits to gross losses",
			Category:       CategoryTrades,
			Polarity:       HigherIsBetter,
			RequiredFields: []string{FieldTradeReturns},
			Compute:        computeProfitFactor,
		},
		{
			Name:           "average_trade",
			Description:    "Average return per trade",
			Category:       CategoryTrades,
			Polarity:       HigherIsBetter,
			RequiredFields: []string{FieldTradeReturns},
			Compute:        computeAverageTrade,
		},
		{
			Name:           "average_position_size",
			Description:    "Average absolute position size",
			Category:       CategoryPosition,
			Polarity:       Neutral,
			RequiredFields: []string{FieldPositionSize},
			Compute:        computeAveragePositionSize,
		},
	} {
		if err := registry.Register(m); err != nil {
			// The table above is static; a failure here is a programming error.
			panic(err)
		}
	}
	return registry
}

// ============================================================================
// METRIC FUNCTIONS
// ============================================================================

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stdDev is the sample standard deviation (n-1 denominator), the estimator
// the ratio metrics annualize. Fewer than two observations have no spread.
func stdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	sumSq := 0.0
	for _, v := range values {
		diff := v - m
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(len(values)-1))
}

// drawdowns returns the (value - running peak) / running peak series of the
// compound equity curve implied by the returns.
func drawdowns(returns []float64) []float64 {
	out := make([]float64, len(returns))
	equity := 1.0
	peak := 1.0
	for i, r := range returns {
		equity *= 1 + r
		if equity > peak {
			peak = equity
		}
		out[i] = (equity - peak) / peak
	}
	return out
}

func maxDrawdownMagnitude(returns []float64) float64 {
	worst := 0.0
	for _, dd := range drawdowns(returns) {
		if dd < worst {
			worst = dd
		}
	}
	return math.Abs(worst)
}

func computeSharpeRatio(record *PerformanceRecord) float64 {
	returns, _ := record.Field(FieldReturns)
	if len(returns) < 2 {
		return 0
	}
	vol := stdDev(returns)
	if vol == 0 {
		return math.Inf(1)
	}
	return math.Sqrt(tradingDaysPerYear) * mean(returns) / vol
}

func computeSortinoRatio(record *PerformanceRecord) float64 {
	returns, _ := record.Field(FieldReturns)
	if len(returns) < 2 {
		return 0
	}
	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) == 0 {
		return math.Inf(1)
	}
	vol := stdDev(downside)
	if vol == 0 {
		return math.Inf(1)
	}
	return math.Sqrt(tradingDaysPerYear) * mean(returns) / vol
}

func computeMaxDrawdown(record *PerformanceRecord) float64 {
	returns, _ := record.Field(FieldReturns)
	return maxDrawdownMagnitude(returns)
}

func computeCalmarRatio(record *PerformanceRecord) float64 {
	returns, _ := record.Field(FieldReturns)
	annual := math.Pow(1+mean(returns), tradingDaysPerYear) - 1
	maxDD := maxDrawdownMagnitude(returns)
	if maxDD == 0 {
		return math.Inf(1)
	}
	return math.Abs(annual / maxDD)
}

func computeRecoveryFactor(record *PerformanceRecord) float64 {
	returns, _ := record.Field(FieldReturns)
	total := 1.0
	for _, r := range returns {
		total *= 1 + r
	}
	total -= 1
	maxDD := maxDrawdownMagnitude(returns)
	if maxDD == 0 {
		return math.Inf(1)
	}
	return math.Abs(total / maxDD)
}

func computeUlcerIndex(record *PerformanceRecord) float64 {
	returns, _ := record.Field(FieldReturns)
	dds := drawdowns(returns)
	if len(dds) == 0 {
		return 0
	}
	sumSq := 0.0
	for _, dd := range dds {
		sumSq += dd * dd
	}
	return math.Sqrt(sumSq / float64(len(dds)))
}

func computeOmegaRatio(record *PerformanceRecord) float64 {
	returns, _ := record.Field(FieldReturns)
	gains, losses := 0.0, 0.0
	for _, r := range returns {
		if r > 0 {
			gains += r
		} else {
			losses += -r
		}
	}
	if losses == 0 {
		return math.Inf(1)
	}
	return gains / losses
}

func computeExpectancy(record *PerformanceRecord) float64 {
	returns, _ := record.Field(FieldReturns)
	return mean(returns)
}

func computeWinRate(record *PerformanceRecord) float64 {
	trades, ok := record.Field(FieldTradeReturns)
	if !ok || len(trades) == 0 {
		return 0
	}
	wins := 0
	for _, t := range trades {
		if t > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(trades))
}

func computeProfitFactor(record *PerformanceRecord) float64 {
	trades, ok := record.Field(FieldTradeReturns)
	if !ok || len(trades) == 0 {
		return 0
	}
	gains, losses := 0.0, 0.0
	for _, t := range trades {
		if t > 0 {
			gains += t
		} else if t < 0 {
			losses += -t
		}
	}
	if losses == 0 {
		return math.Inf(1)
	}
	return gains / losses
}

func computeAverageTrade(record *PerformanceRecord) float64 {
	trades, ok := record.Field(FieldTradeReturns)
	if !ok || len(trades) == 0 {
		return 0
	}
	return mean(trades)
}

func computeAveragePositionSize(record *PerformanceRecord) float64 {
	sizes, ok := record.Field(FieldPositionSize)
	if !ok || len(sizes) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range sizes {
		sum += math.Abs(s)
	}
	return sum / float64(len(sizes))
}
