// Optimization objective catalog
package optimize

import (
	"fmt"
	"sort"
)

// Direction is the sense of a search: maximize or minimize the objective.
type Direction string

const (
	Maximize Direction = "maximize"
	Minimize Direction = "minimize"
)

// Direction derives the search direction implied by a polarity. Neutral
// metrics have no direction and cannot be optimization targets.
func (p Polarity) Direction() (Direction, error) {
	switch p {
	case HigherIsBetter:
		return Maximize, nil
	case LowerIsBetter:
		return Minimize, nil
	default:
		return "", fmt.Errorf("%q: %w", p, ErrNeutralPolarity)
	}
}

// worstValue is the sentinel assigned to failed evaluations: the least
// attractive score for the direction, so a failed trial can never win.
func worstValue(d Direction) float64 {
	if d == Minimize {
		return posInf
	}
	return negInf
}

// betterValue reports whether a improves on b for the direction. Equal
// values are not an improvement, which gives first-found-wins tie breaking.
func betterValue(d Direction, a, b float64) bool {
	if d == Minimize {
		return a < b
	}
	return a > b
}

// Objective names a metric to optimize and the direction implied by its
// polarity.
type Objective struct {
	Name        string
	Description string
	Polarity    Polarity
	MetricName  string
}

// ObjectiveCatalog maps objective names onto registered metrics. Like the
// metric registry it is built once and injected into optimizers.
type ObjectiveCatalog struct {
	registry   *MetricRegistry
	objectives map[string]Objective
}

// NewObjectiveCatalog creates an empty catalog over the given registry.
func NewObjectiveCatalog(registry *MetricRegistry) *ObjectiveCatalog {
	return &ObjectiveCatalog{
		registry:   registry,
		objectives: make(map[string]Objective),
	}
}

// Registry returns the metric registry the catalog projects over.
func (c *ObjectiveCatalog) Registry() *MetricRegistry { return c.registry }

// Register adds an objective. The target metric must exist, must not be
// neutral, and its polarity must equal the objective's declared polarity.
func (c *ObjectiveCatalog) Register(o Objective) error {
	if o.Name == "" {
		return fmt.Errorf("objective name must not be empty")
	}
	if _, ok := c.objectives[o.Name]; ok {
		return fmt.Errorf("%q: %w", o.Name, ErrDuplicateObjective)
	}
	metric, ok := c.registry.Get(o.MetricName)
	if !ok {
		return fmt.Errorf("objective %q targets %q: %w", o.Name, o.MetricName, ErrUnknownMetric)
	}
	if _, err := o.Polarity.Direction(); err != nil {
		return fmt.Errorf("objective %q: %w", o.Name, err)
	}
	if metric.Polarity != o.Polarity {
		return fmt.Errorf("objective %q (%s) targets metric %q (%s): %w",
			o.Name, o.Polarity, metric.Name, metric.Polarity, ErrPolarityMismatch)
	}
	c.objectives[o.Name] = o
	return nil
}

// Get returns the named objective.
func (c *ObjectiveCatalog) Get(name string) (Objective, bool) {
	o, ok := c.objectives[name]
	return o, ok
}

// Names returns all registered objective names, sorted.
func (c *ObjectiveCatalog) Names() []string {
	names := make([]string, 0, len(c.objectives))
	for name := range c.objectives {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Available returns objective names mapped to their descriptions.
func (c *ObjectiveCatalog) Available() map[string]string {
	out := make(map[string]string, len(c.objectives))
	for name, o := range c.objectives {
		out[name] = o.Description
	}
	return out
}

// Directions resolves the per-objective search directions for the named
// objectives, in order.
func (c *ObjectiveCatalog) Directions(names []string) ([]Direction, error) {
	directions := make([]Direction, len(names))
	for i, name := range names {
		o, ok := c.objectives[name]
		if !ok {
			return nil, fmt.Errorf("%q: %w", name, ErrUnknownObjective)
		}
		d, err := o.Polarity.Direction()
		if err != nil {
			return nil, fmt.Errorf("objective %q: %w", name, err)
		}
		directions[i] = d
	}
	return directions, nil
}

// DefaultObjectiveCatalog builds the standard objective table over the given
// registry, which must carry the default metrics.
func DefaultObjectiveCatalog(registry *MetricRegistry) (*ObjectiveCatalog, error) {
	catalog := NewObjectiveCatalog(registry)
	for _, o := range []Objective{
		{
			Name:        "sharpe_ratio",
			Description: "Optimize for risk-adjusted returns",
			Polarity:    HigherIsBetter,
			MetricName:  "sharpe_ratio",
		},
		{
			Name:        "sortino_ratio",
			Description: "Optimize for downside risk-adjusted returns",
			Polarity:    HigherIsBetter,
			MetricName:  "sortino_ratio",
		},
		{
			Name:        "max_drawdown",
			Description: "Optimize for capital preservation",
			Polarity:    LowerIsBetter,
			MetricName:  "max_drawdown",
		},
		{
			Name:        "profit_factor",
			Description: "Optimize for trade profitability",
			Polarity:    HigherIsBetter,
			MetricName:  "profit_factor",
		},
	} {
		if err := catalog.Register(o); err != nil {
			return nil, err
		}
	}
	return catalog, nil
}
