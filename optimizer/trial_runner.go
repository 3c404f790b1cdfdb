package optimizer

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/tradeforge/walkforward/core"
)

// RunResult is the outcome of one trial budget.
type RunResult struct {
	BestParams core.ParamSet
	BestValue  float64
	Trials     []core.Trial
	Failed     int
}

// Unusable reports whether every trial in the budget failed. Callers must
// treat such a window as carrying no usable parameters.
func (r *RunResult) Unusable() bool {
	return len(r.BestParams) == 0
}

// TrialRunner drives the suggestion oracle through a fixed trial budget on
// one data slice, evaluating each suggestion and tracking the best observed
// assignment.
type TrialRunner struct {
	config *Config
}

// NewTrialRunner creates a trial runner, validating the configuration before
// any evaluator or oracle call.
func NewTrialRunner(config *Config) (*TrialRunner, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &TrialRunner{config: config}, nil
}

// Run executes the trial budget. Evaluator calls run on up to
// Config.Workers goroutines; oracle Ask/Tell calls are serialized so the
// oracle never observes concurrent access while slow evaluations proceed
// unlocked.
//
// An evaluator error marks that trial with the worst possible value and the
// loop continues; an oracle error aborts the run. If every trial fails the
// result carries an empty parameter set and the worst possible value.
func (r *TrialRunner) Run(ctx context.Context, evaluator core.Evaluator, oracle core.Oracle,
	data []core.Candle, windowIndex int) (*RunResult, error) {

	if evaluator == nil {
		return nil, fmt.Errorf("evaluator cannot be nil")
	}
	if oracle == nil {
		return nil, fmt.Errorf("oracle cannot be nil")
	}

	result := &RunResult{
		BestValue: r.config.Direction.Worst(),
		Trials:    make([]core.Trial, 0, r.config.Trials),
	}
	if r.config.Trials == 0 {
		result.BestParams = core.ParamSet{}
		return result, nil
	}

	var deadline time.Time
	if r.config.MaxDuration > 0 {
		deadline = time.Now().Add(r.config.MaxDuration)
	}

	var bar *progressbar.ProgressBar
	if r.config.ShowProgress {
		bar = progressbar.Default(int64(r.config.Trials))
	}

	var (
		mu        sync.Mutex // single critical section for oracle access and bookkeeping
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, r.config.Workers)
		oracleErr error
		bestIndex = math.MaxInt
	)

	for i := 0; i < r.config.Trials; i++ {
		if ctx.Err() != nil {
			break
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			r.config.warnf("wall-clock budget reached after %d trials", i)
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
			params, err := oracle.Ask(r.config.Space)
			if err != nil {
				oracleErr = fmt.Errorf("oracle ask failed: %w", err)
				mu.Unlock()
				return
			}
			mu.Unlock()

			// The (possibly slow) evaluator call runs unlocked.
			value, failed := r.evaluate(ctx, evaluator, params, data)

			mu.Lock()
			defer mu.Unlock()

			if err := oracle.Tell(params, []float64{value}); err != nil {
				if oracleErr == nil {
					oracleErr = fmt.Errorf("oracle tell failed: %w", err)
				}
				return
			}

			trial := core.Trial{Index: index, Params: params, Value: value, Failed: failed}
			result.Trials = append(result.Trials, trial)
			if failed {
				result.Failed++
			}

			// Strict improvement; equal values keep the earliest trial index
			// so parallel runs stay deterministic given a deterministic oracle.
			improved := r.config.Direction.Better(value, result.BestValue)
			tied := result.BestParams != nil && value == result.BestValue && index < bestIndex
			if improved || tied {
				result.BestParams = params
				result.BestValue = value
				bestIndex = index
			}

			r.persist(ctx, windowIndex, trial)

			if bar != nil {
				if err := bar.Add(1); err != nil {
					r.config.warnf("update progressbar fail: %v", err)
				}
			}
		}(i)
	}

	wg.Wait()

	if oracleErr != nil {
		return nil, oracleErr
	}

	sort.Slice(result.Trials, func(a, b int) bool {
		return result.Trials[a].Index < result.Trials[b].Index
	})

	if result.BestParams == nil {
		result.BestParams = core.ParamSet{}
	}
	return result, nil
}

// evaluate calls the evaluator and extracts the target metric. Evaluator
// errors and missing metric keys both map to the worst possible value for
// the configured direction; only errors count as failures.
func (r *TrialRunner) evaluate(ctx context.Context, evaluator core.Evaluator,
	params core.ParamSet, data []core.Candle) (float64, bool) {

	metrics, err := evaluator.Evaluate(ctx, params, data)
	if err != nil {
		r.config.warnf("evaluation failed for %s: %v", params.Key(), err)
		return r.config.Direction.Worst(), true
	}

	value, ok := metrics[r.config.MetricName]
	if !ok {
		return r.config.Direction.Worst(), false
	}
	return value, false
}

// persist appends the trial to the configured storage, if any.
func (r *TrialRunner) persist(ctx context.Context, windowIndex int, trial core.Trial) {
	if r.config.Storage == nil {
		return
	}

	record, err := NewTrialRecord(r.config.StudyName, windowIndex, trial)
	if err != nil {
		r.config.warnf("encode trial %d fail: %v", trial.Index, err)
		return
	}
	if err := r.config.Storage.SaveTrial(ctx, record); err != nil {
		r.config.warnf("persist trial %d fail: %v", trial.Index, err)
	}
}
