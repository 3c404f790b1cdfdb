package optimizer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"
	"github.com/tradeforge/walkforward/core"
)

// Pareto searches a parameter space against several objectives at once and
// returns the non-dominated subset of the trial history instead of a single
// winner.
type Pareto struct {
	config     *Config
	objectives []string
	directions []core.Direction
}

// NewPareto creates a multi-objective optimizer. Objectives and directions
// are matched by position and their lengths must agree; the mismatch is
// rejected here, before any evaluation happens.
func NewPareto(config *Config, objectives []string, directions []core.Direction) (*Pareto, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := config.Space.Validate(); err != nil {
		return nil, err
	}
	if config.Trials < 0 {
		return nil, fmt.Errorf("trial budget cannot be negative")
	}
	if config.Workers < 1 {
		return nil, fmt.Errorf("at least one worker is required")
	}
	if len(objectives) == 0 {
		return nil, fmt.Errorf("%w: no objectives declared", core.ErrObjectiveDirectionMismatch)
	}
	if len(objectives) != len(directions) {
		return nil, fmt.Errorf("%w: %d objectives, %d directions",
			core.ErrObjectiveDirectionMismatch, len(objectives), len(directions))
	}
	for _, d := range directions {
		if !d.Valid() {
			return nil, fmt.Errorf("%w: invalid direction %q",
				core.ErrObjectiveDirectionMismatch, d)
		}
	}

	return &Pareto{config: config, objectives: objectives, directions: directions}, nil
}

// Run executes the trial budget and returns the non-dominated front.
// Concurrency follows the single-objective runner: oracle access is
// serialized, evaluator calls run on up to Config.Workers goroutines. An
// empty budget yields an empty front.
func (p *Pareto) Run(ctx context.Context, evaluator core.Evaluator, oracle core.Oracle,
	data []core.Candle) (core.ParetoFront, error) {

	if evaluator == nil {
		return nil, fmt.Errorf("evaluator cannot be nil")
	}
	if oracle == nil {
		return nil, fmt.Errorf("oracle cannot be nil")
	}

	if p.config.Trials == 0 {
		return core.ParetoFront{}, nil
	}

	p.config.logf("starting multi-objective run: %d trials, objectives %v", p.config.Trials, p.objectives)

	var deadline time.Time
	if p.config.MaxDuration > 0 {
		deadline = time.Now().Add(p.config.MaxDuration)
	}

	var bar *progressbar.ProgressBar
	if p.config.ShowProgress {
		bar = progressbar.Default(int64(p.config.Trials))
	}

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, p.config.Workers)
		oracleErr error
		trials    = make([]core.Trial, 0, p.config.Trials)
		failed    int
	)

	for i := 0; i < p.config.Trials; i++ {
		if ctx.Err() != nil {
			break
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			p.config.warnf("wall-clock budget reached after %d trials", i)
			break
		}

		mu.Lock()
		stop := oracleErr != nil
		mu.Unlock()
		if stop {
			break
		}

		wg.Add(1)
		semaphore <- struct{}{} // Acquire semaphore

		go func(index int) {
			defer wg.Done()
			defer func() { <-semaphore }() // Release semaphore

			mu.Lock()
			if oracleErr != nil {
				mu.Unlock()
				return
			}
			params, err := oracle.Ask(p.config.Space)
			if err != nil {
				oracleErr = fmt.Errorf("oracle ask failed: %w", err)
				mu.Unlock()
				return
			}
			mu.Unlock()

			values, didFail := p.evaluate(ctx, evaluator, params, data)

			mu.Lock()
			defer mu.Unlock()

			if err := oracle.Tell(params, values); err != nil {
				if oracleErr == nil {
					oracleErr = fmt.Errorf("oracle tell failed: %w", err)
				}
				return
			}

			trial := core.Trial{Index: index, Params: params, Values: values, Failed: didFail}
			trials = append(trials, trial)
			if didFail {
				failed++
			}

			p.persist(ctx, trial)

			if bar != nil {
				if err := bar.Add(1); err != nil {
					p.config.warnf("update progressbar fail: %v", err)
				}
			}
		}(i)
	}

	wg.Wait()

	if oracleErr != nil {
		return nil, oracleErr
	}

	sort.Slice(trials, func(a, b int) bool { return trials[a].Index < trials[b].Index })

	front := nonDominated(trials, p.directions)
	p.config.logf("multi-objective run complete: %d trials, %d failed, front size %d",
		len(trials), failed, len(front))
	return front, nil
}

// evaluate extracts the declared objectives from the evaluator's metric map.
// An evaluator error maps the whole vector to worst values; a missing metric
// key maps only that component.
func (p *Pareto) evaluate(ctx context.Context, evaluator core.Evaluator,
	params core.ParamSet, data []core.Candle) ([]float64, bool) {

	values := make([]float64, len(p.objectives))

	metrics, err := evaluator.Evaluate(ctx, params, data)
	if err != nil {
		p.config.warnf("evaluation failed for %s: %v", params.Key(), err)
		for i, d := range p.directions {
			values[i] = d.Worst()
		}
		return values, true
	}

	for i, name := range p.objectives {
		value, ok := metrics[name]
		if !ok {
			value = p.directions[i].Worst()
		}
		values[i] = value
	}
	return values, false
}

func (p *Pareto) persist(ctx context.Context, trial core.Trial) {
	if p.config.Storage == nil {
		return
	}

	record, err := NewTrialRecord(p.config.StudyName, 0, trial)
	if err != nil {
		p.config.warnf("encode trial %d fail: %v", trial.Index, err)
		return
	}
	if err := p.config.Storage.SaveTrial(ctx, record); err != nil {
		p.config.warnf("persist trial %d fail: %v", trial.Index, err)
	}
}

// Dominates reports whether a dominates b: a is no worse on every objective
// and strictly better on at least one.
func Dominates(a, b []float64, directions []core.Direction) bool {
	strictlyBetter := false
	for i, d := range directions {
		if d.Better(b[i], a[i]) {
			return false
		}
		if d.Better(a[i], b[i]) {
			strictlyBetter = true
		}
	}
	return strictlyBetter
}

// nonDominated filters the trial history down to its Pareto front. The
// quadratic scan is fine at trial-budget scale.
//
// Trials whose vector is entirely worst-valued (failed evaluations) are
// dropped before the dominance check. They are mutually non-dominating, so
// an all-failure history yields an empty front rather than a front of
// unusable points, and such excluded trials are not necessarily dominated
// by a front member.
func nonDominated(trials []core.Trial, directions []core.Direction) core.ParetoFront {
	front := lo.Filter(trials, func(candidate core.Trial, _ int) bool {
		if allWorst(candidate.Values, directions) {
			return false
		}
		for _, other := range trials {
			if other.Index == candidate.Index {
				continue
			}
			if Dominates(other.Values, candidate.Values, directions) {
				return false
			}
		}
		return true
	})
	return core.ParetoFront(front)
}

// allWorst reports whether every component of the vector is the worst
// possible value, as produced by a failed evaluation.
func allWorst(values []float64, directions []core.Direction) bool {
	for i, d := range directions {
		if values[i] != d.Worst() {
			return false
		}
	}
	return true
}
