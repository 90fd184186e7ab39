// Parameter space definition and sampling
package optimize

import (
	"fmt"
	"math/rand"
)

// ParamType defines the type of a searchable parameter.
type ParamType string

const (
	ParamTypeInt         ParamType = "int"
	ParamTypeFloat       ParamType = "float"
	ParamTypeCategorical ParamType = "categorical"
)

// Parameter describes one searchable parameter: an integer or real range
// with inclusive bounds, or a categorical set of allowed values.
type Parameter struct {
	Name   string    `json:"name"`
	Type   ParamType `json:"type"`
	Min    float64   `json:"min,omitempty"`
	Max    float64   `json:"max,omitempty"`
	Values []string  `json:"values,omitempty"`
}

// IntParam declares an integer parameter over the closed interval [lo, hi].
func IntParam(name string, lo, hi int) Parameter {
	return Parameter{Name: name, Type: ParamTypeInt, Min: float64(lo), Max: float64(hi)}
}

// FloatParam declares a real parameter over the closed interval [lo, hi].
func FloatParam(name string, lo, hi float64) Parameter {
	return Parameter{Name: name, Type: ParamTypeFloat, Min: lo, Max: hi}
}

// CategoricalParam declares a parameter drawn from a fixed set of values.
func CategoricalParam(name string, values ...string) Parameter {
	return Parameter{Name: name, Type: ParamTypeCategorical, Values: values}
}

// ParameterSpace is the set of searchable parameters a strategy declares.
type ParameterSpace []Parameter

// Validate checks bound ordering, categorical non-emptiness and name
// uniqueness.
func (s ParameterSpace) Validate() error {
	seen := make(map[string]bool, len(s))
	for _, p := range s {
		if p.Name == "" {
			return fmt.Errorf("parameter name must not be empty")
		}
		if seen[p.Name] {
			return fmt.Errorf("parameter %q declared twice", p.Name)
		}
		seen[p.Name] = true

		switch p.Type {
		case ParamTypeInt, ParamTypeFloat:
			if p.Min > p.Max {
				return fmt.Errorf("parameter %q: min %v greater than max %v", p.Name, p.Min, p.Max)
			}
		case ParamTypeCategorical:
			if len(p.Values) == 0 {
				return fmt.Errorf("parameter %q: categorical values must not be empty", p.Name)
			}
		default:
			return fmt.Errorf("parameter %q: unknown type %q", p.Name, p.Type)
		}
	}
	return nil
}

// Sample draws one concrete assignment from the space: uniform over the
// closed interval for numeric parameters, uniform over the declared values
// for categorical ones. The space must have been validated.
func (s ParameterSpace) Sample(rng *rand.Rand) ParameterSet {
	params := make(ParameterSet, len(s))
	for _, p := range s {
		switch p.Type {
		case ParamTypeInt:
			lo, hi := int(p.Min), int(p.Max)
			params[p.Name] = lo + rng.Intn(hi-lo+1)
		case ParamTypeFloat:
			params[p.Name] = p.Min + rng.Float64()*(p.Max-p.Min)
		case ParamTypeCategorical:
			params[p.Name] = p.Values[rng.Intn(len(p.Values))]
		}
	}
	return params
}

// Conforms checks that the assignment covers every declared parameter with a
// value inside its bound or category, failing with InvalidParameterError.
func (s ParameterSpace) Conforms(params ParameterSet) error {
	for _, p := range s {
		raw, ok := params[p.Name]
		if !ok {
			return &InvalidParameterError{Name: p.Name, Value: nil, Reason: "missing"}
		}
		switch p.Type {
		case ParamTypeInt:
			v, ok := params.Int(p.Name)
			if !ok {
				return &InvalidParameterError{Name: p.Name, Value: raw, Reason: "not an integer"}
			}
			if float64(v) < p.Min || float64(v) > p.Max {
				return &InvalidParameterError{Name: p.Name, Value: raw,
					Reason: fmt.Sprintf("outside [%d, %d]", int(p.Min), int(p.Max))}
			}
		case ParamTypeFloat:
			v, ok := params.Float(p.Name)
			if !ok {
				return &InvalidParameterError{Name: p.Name, Value: raw, Reason: "not a number"}
			}
			if v < p.Min || v > p.Max {
				return &InvalidParameterError{Name: p.Name, Value: raw,
					Reason: fmt.Sprintf("outside [%v, %v]", p.Min, p.Max)}
			}
		case ParamTypeCategorical:
			v, ok := raw.(string)
			if !ok {
				return &InvalidParameterError{Name: p.Name, Value: raw, Reason: "not a string"}
			}
			found := false
			for _, allowed := range p.Values {
				if v == allowed {
					found = true
					break
				}
			}
			if !found {
				return &InvalidParameterError{Name: p.Name, Value: raw, Reason: "not an allowed value"}
			}
		}
	}
	return nil
}

// ParameterSet is one concrete assignment of parameter values.
type ParameterSet map[string]interface{}

// Clone creates a deep copy of the parameter set.
func (ps ParameterSet) Clone() ParameterSet {
	clone := make(ParameterSet, len(ps))
	for k, v := range ps {
		clone[k] = v
	}
	return clone
}

// Int returns the named value as an integer.
func (ps ParameterSet) Int(name string) (int, bool) {
	switch v := ps[name].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	}
	return 0, false
}

// Float returns the named value as a float64.
func (ps ParameterSet) Float(name string) (float64, bool) {
	switch v := ps[name].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// String returns the named value as a string.
func (ps ParameterSet) String(name string) (string, bool) {
	v, ok := ps[name].(string)
	return v, ok
}
