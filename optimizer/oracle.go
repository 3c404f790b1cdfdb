package optimizer

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/tradeforge/walkforward/core"
)

// ErrGridExhausted is returned by GridOracle.Ask once every combination has
// been suggested.
var ErrGridExhausted = errors.New("grid oracle exhausted all combinations")

// RandomOracle suggests uniformly random parameter assignments. It is
// stateless across observations: Tell records nothing. Useful as a search
// baseline and as a deterministic (seeded) oracle in tests.
type RandomOracle struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomOracle creates a random oracle. A zero seed uses the current time.
func NewRandomOracle(seed int64) *RandomOracle {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandomOracle{rng: rand.New(rand.NewSource(seed))}
}

// Ask implements core.Oracle.
func (o *RandomOracle) Ask(space core.ParameterSpace) (core.ParamSet, error) {
	if len(space) == 0 {
		return nil, core.ErrEmptyParameterSpace
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	params := make(core.ParamSet, len(space))
	for _, p := range space {
		switch p.Kind {
		case core.KindInt:
			params[p.Name] = o.randomInt(p)
		case core.KindFloat:
			params[p.Name] = o.randomFloat(p)
		case core.KindCategorical:
			params[p.Name] = p.Choices[o.rng.Intn(len(p.Choices))]
		}
	}
	return params, nil
}

// Tell implements core.Oracle. Random search keeps no observation history.
func (o *RandomOracle) Tell(core.ParamSet, []float64) error { return nil }

// randomInt draws an integer from [low, high] honoring the step size.
func (o *RandomOracle) randomInt(p core.Parameter) int {
	low, high := int(p.Low), int(p.High)
	if low >= high {
		return low
	}

	step := int(p.Step)
	if step <= 0 {
		step = 1
	}

	steps := (high-low)/step + 1
	return low + o.rng.Intn(steps)*step
}

// randomFloat draws a float from [low, high], optionally on a log scale.
func (o *RandomOracle) randomFloat(p core.Parameter) float64 {
	if p.Low >= p.High {
		return p.Low
	}

	if p.Log {
		logLow, logHigh := math.Log(p.Low), math.Log(p.High)
		return math.Exp(logLow + o.rng.Float64()*(logHigh-logLow))
	}

	return p.Low + o.rng.Float64()*(p.High-p.Low)
}

// GridOracle deals every combination of the parameter grid in order.
// Callers are expected to size the trial budget to Size(); asking past the
// end returns ErrGridExhausted.
type GridOracle struct {
	mu   sync.Mutex
	sets []core.ParamSet
	next int
}

// NewGridOracle pre-enumerates the cartesian product of all parameter values.
func NewGridOracle(space core.ParameterSpace) (*GridOracle, error) {
	if err := space.Validate(); err != nil {
		return nil, err
	}

	sets := []core.ParamSet{make(core.ParamSet)}
	for _, p := range space {
		values, err := gridValues(p)
		if err != nil {
			return nil, err
		}

		var expanded []core.ParamSet
		for _, set := range sets {
			for _, value := range values {
				next := set.Clone()
				next[p.Name] = value
				expanded = append(expanded, next)
			}
		}
		sets = expanded
	}

	return &GridOracle{sets: sets}, nil
}

// Size returns the number of combinations in the grid.
func (o *GridOracle) Size() int { return len(o.sets) }

// Ask implements core.Oracle.
func (o *GridOracle) Ask(core.ParameterSpace) (core.ParamSet, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.next >= len(o.sets) {
		return nil, ErrGridExhausted
	}

	params := o.sets[o.next]
	o.next++
	return params, nil
}

// Tell implements core.Oracle. Grid search keeps no observation history.
func (o *GridOracle) Tell(core.ParamSet, []float64) error { return nil }

// gridValues enumerates the values of one dimension.
func gridValues(p core.Parameter) ([]any, error) {
	switch p.Kind {
	case core.KindInt:
		step := int(p.Step)
		if step <= 0 {
			step = 1
		}
		var values []any
		for v := int(p.Low); v <= int(p.High); v += step {
			values = append(values, v)
		}
		return values, nil
	case core.KindFloat:
		step := p.Step
		if step <= 0 {
			return nil, errors.New("float grid dimensions require a positive step")
		}
		var values []any
		for v := p.Low; v <= p.High; v += step {
			values = append(values, v)
		}
		return values, nil
	case core.KindCategorical:
		return p.Choices, nil
	default:
		return nil, errors.New("unsupported parameter kind: " + string(p.Kind))
	}
}
