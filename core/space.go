package core

import (
	"fmt"
	"sort"
)

// ParameterKind defines the data type of a tunable parameter
type ParameterKind string

const (
	// KindInt represents integer parameters
	KindInt ParameterKind = "int"
	// KindFloat represents floating-point parameters
	KindFloat ParameterKind = "float"
	// KindCategorical represents categorical parameters with predefined choices
	KindCategorical ParameterKind = "categorical"
)

// Parameter describes one tunable dimension of the search space
type Parameter struct {
	Name    string        // Name of the parameter
	Kind    ParameterKind // Type of the parameter
	Low     float64       // Lower bound (inclusive, numeric kinds)
	High    float64       // Upper bound (inclusive, numeric kinds)
	Step    float64       // Step size for integer parameters (0 means 1)
	Log     bool          // Sample float parameters on a log scale
	Choices []any         // Possible values (categorical kind)
}

// ParameterSpace is the ordered set of tunable dimensions. It is immutable
// once constructed and shared read-only across all trials and windows.
type ParameterSpace []Parameter

// Validate checks the declared bounds of every dimension.
func (s ParameterSpace) Validate() error {
	if len(s) == 0 {
		return ErrEmptyParameterSpace
	}

	for _, p := range s {
		switch p.Kind {
		case KindInt, KindFloat:
			if p.Low > p.High {
				return fmt.Errorf("parameter %s: low %v greater than high %v", p.Name, p.Low, p.High)
			}
			if p.Step < 0 {
				return fmt.Errorf("parameter %s: negative step", p.Name)
			}
			if p.Log && p.Low <= 0 {
				return fmt.Errorf("parameter %s: log scale requires a positive lower bound", p.Name)
			}
		case KindCategorical:
			if len(p.Choices) == 0 {
				return fmt.Errorf("parameter %s: categorical kind requires choices", p.Name)
			}
		default:
			return fmt.Errorf("parameter %s: unsupported kind %s", p.Name, p.Kind)
		}
	}

	return nil
}

// ParamSet represents a collection of parameters with specific values
type ParamSet map[string]any

// Clone creates a shallow copy of the parameter set
func (p ParamSet) Clone() ParamSet {
	clone := make(ParamSet, len(p))
	for k, v := range p {
		clone[k] = v
	}
	return clone
}

// Key formats the parameter set as a canonical string. Two sets with equal
// names and values produce the same key, which makes it usable for exact
// tuple grouping across windows.
func (p ParamSet) Key() string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)

	key := "{"
	for i, name := range names {
		if i > 0 {
			key += ", "
		}
		key += fmt.Sprintf("%s: %v", name, p[name])
	}
	return key + "}"
}
