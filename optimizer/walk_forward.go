package optimizer

import (
	"context"
	"fmt"
	"math"

	"github.com/tradeforge/walkforward/core"
	"github.com/tradeforge/walkforward/internal/metric"
)

// WalkForward runs the in-sample search over every window and validates each
// window's best assignment against its own out-of-sample slice, aggregating
// generalization statistics across windows.
type WalkForward struct {
	config *Config
	runner *TrialRunner
}

// NewWalkForward creates a walk-forward orchestrator.
func NewWalkForward(config *Config) (*WalkForward, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.Splits <= 0 {
		return nil, fmt.Errorf("%w: splits must be >= 1, got %d", core.ErrInvalidWindowConfig, config.Splits)
	}
	if config.InSampleRatio <= 0 || config.InSampleRatio >= 1 {
		return nil, fmt.Errorf("%w: in-sample ratio must be in (0, 1), got %v",
			core.ErrInvalidWindowConfig, config.InSampleRatio)
	}

	runner, err := NewTrialRunner(config)
	if err != nil {
		return nil, err
	}

	return &WalkForward{config: config, runner: runner}, nil
}

// Run splits the dataset, searches each window's in-sample slice through the
// trial budget, evaluates the winning assignment once on the out-of-sample
// slice, and aggregates the results. Windows are processed sequentially;
// parallelism lives inside each window's trial budget.
//
// A window whose trials all failed is still recorded, carrying the worst
// possible in-sample value and an empty parameter set.
func (w *WalkForward) Run(ctx context.Context, evaluator core.Evaluator, oracle core.Oracle,
	data []core.Candle) (*core.Summary, error) {

	windows, err := Split(data, w.config.Splits, w.config.InSampleRatio)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return nil, fmt.Errorf("%w: %d rows cannot fill %d windows",
			core.ErrNoWindowsProduced, len(data), w.config.Splits)
	}

	w.config.logf("starting walk-forward run: %d windows, %d trials per window, metric %s (%s)",
		len(windows), w.config.Trials, w.config.MetricName, w.config.Direction)

	results := make([]core.WindowResult, 0, len(windows))
	for _, window := range windows {
		w.config.logf("window %d: %d in-sample rows, %d out-of-sample rows",
			window.Index+1, len(window.InSample), len(window.OutOfSample))

		run, err := w.runner.Run(ctx, evaluator, oracle, window.InSample, window.Index)
		if err != nil {
			return nil, err
		}

		oosValue := w.config.Direction.Worst()
		if !run.Unusable() {
			oosValue = w.evaluateOnce(ctx, evaluator, run.BestParams, window.OutOfSample)
		} else {
			w.config.warnf("window %d produced no usable parameters (%d failed trials)",
				window.Index+1, run.Failed)
		}

		result := core.WindowResult{
			WindowIndex:       window.Index,
			BestParams:        run.BestParams,
			InSampleMetric:    run.BestValue,
			OutOfSampleMetric: oosValue,
			Gap:               run.BestValue - oosValue,
			FailedTrials:      run.Failed,
		}
		results = append(results, result)

		w.config.logf("window %d complete: in-sample %.4f, out-of-sample %.4f",
			window.Index+1, result.InSampleMetric, result.OutOfSampleMetric)
	}

	summary := w.aggregate(results)
	w.config.logf("walk-forward complete: avg out-of-sample %.4f, overfit ratio %.2f",
		summary.AvgOutOfSampleMetric, summary.OverfitRatio)
	return summary, nil
}

// evaluateOnce evaluates the best assignment on the held-out slice. No
// further search happens here; a failure or missing metric maps to the worst
// possible value so the window stays visible in the summary.
func (w *WalkForward) evaluateOnce(ctx context.Context, evaluator core.Evaluator,
	params core.ParamSet, data []core.Candle) float64 {

	metrics, err := evaluator.Evaluate(ctx, params, data)
	if err != nil {
		w.config.warnf("out-of-sample evaluation failed for %s: %v", params.Key(), err)
		return w.config.Direction.Worst()
	}

	value, ok := metrics[w.config.MetricName]
	if !ok {
		return w.config.Direction.Worst()
	}
	return value
}

// aggregate folds the window results into an optimization summary.
func (w *WalkForward) aggregate(results []core.WindowResult) *core.Summary {
	isValues := make([]float64, len(results))
	oosValues := make([]float64, len(results))
	gaps := make([]float64, len(results))
	failed := 0
	for i, r := range results {
		isValues[i] = r.InSampleMetric
		oosValues[i] = r.OutOfSampleMetric
		gaps[i] = r.Gap
		failed += r.FailedTrials
	}

	avgIS := metric.Mean(isValues)
	avgOOS := metric.Mean(oosValues)
	avgGap := metric.Mean(gaps)

	// Normalized gap; zero mean in-sample performance yields zero rather
	// than a division by zero.
	overfitRatio := 0.0
	if avgIS != 0 && !math.IsNaN(avgIS) {
		overfitRatio = avgGap / avgIS
	}

	return &core.Summary{
		WindowCount:          len(results),
		AvgInSampleMetric:    avgIS,
		AvgOutOfSampleMetric: avgOOS,
		AvgGap:               avgGap,
		OverfitRatio:         overfitRatio,
		RobustParams:         robustParams(results),
		WindowResults:        results,
		FailedTrials:         failed,
	}
}

// robustParams picks the parameter tuple that won the most windows, breaking
// ties by earliest window index.
//
// Matching is by exact tuple equality, which is brittle for continuous
// parameters that rarely repeat bit-for-bit across windows; with float
// dimensions expect every window to form its own group. Kept for parity
// with coordinate-free consensus over heuristic clustering.
func robustParams(results []core.WindowResult) core.ParamSet {
	type group struct {
		params      core.ParamSet
		count       int
		firstWindow int
	}

	groups := make(map[string]*group)
	for _, r := range results {
		if len(r.BestParams) == 0 {
			continue
		}
		key := r.BestParams.Key()
		if g, ok := groups[key]; ok {
			g.count++
			continue
		}
		groups[key] = &group{params: r.BestParams, count: 1, firstWindow: r.WindowIndex}
	}

	var winner *group
	for _, g := range groups {
		if winner == nil ||
			g.count > winner.count ||
			(g.count == winner.count && g.firstWindow < winner.firstWindow) {
			winner = g
		}
	}

	if winner == nil {
		return core.ParamSet{}
	}
	return winner.params
}
