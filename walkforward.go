// Package walkforward tunes trading strategy parameters against historical
// market data. It wraps the optimizer package behind a small facade: declare
// a parameter space and an evaluator, pick an oracle, and run either a
// walk-forward study (one metric, sequential out-of-sample validation) or a
// multi-objective study (several metrics, Pareto front).
package walkforward

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/olekukonko/tablewriter"
	"github.com/tradeforge/walkforward/core"
	"github.com/tradeforge/walkforward/internal/metric"
	"github.com/tradeforge/walkforward/logger/zerolog"
	"github.com/tradeforge/walkforward/optimizer"
)

// Study binds a parameter space, an evaluator and an oracle into a runnable
// optimization.
type Study struct {
	config    *optimizer.Config
	evaluator core.Evaluator
	oracle    core.Oracle
	logger    core.Logger
}

type Option func(*Study)

// NewStudy creates a study over the given space and evaluator. By default it
// logs to stderr at info level and searches with a time-seeded random oracle.
func NewStudy(space core.ParameterSpace, evaluator core.Evaluator, options ...Option) (*Study, error) {
	if evaluator == nil {
		return nil, fmt.Errorf("evaluator cannot be nil")
	}

	study := &Study{
		config:    optimizer.NewConfig().WithSpace(space),
		evaluator: evaluator,
	}

	for _, option := range options {
		option(study)
	}

	if study.logger == nil {
		log, err := zerolog.New("info")
		if err != nil {
			return nil, err
		}
		study.logger = log
	}
	study.config.WithLogger(study.logger)

	if study.oracle == nil {
		study.oracle = optimizer.NewRandomOracle(0)
	}

	return study, nil
}

// WithOracle sets the suggestion oracle.
func WithOracle(oracle core.Oracle) Option {
	return func(s *Study) {
		s.oracle = oracle
	}
}

// WithLogger sets the logger.
func WithLogger(logger core.Logger) Option {
	return func(s *Study) {
		s.logger = logger
	}
}

// WithStorage persists every trial to the given storage under the study name.
func WithStorage(storage core.TrialStorage, study string) Option {
	return func(s *Study) {
		s.config.WithStorage(storage, study)
	}
}

// WithMetric sets the target metric and its direction for walk-forward runs.
func WithMetric(name string, direction core.Direction) Option {
	return func(s *Study) {
		s.config.WithMetric(name, direction)
	}
}

// WithTrials sets the per-window trial budget.
func WithTrials(n int) Option {
	return func(s *Study) {
		s.config.WithTrials(n)
	}
}

// WithWorkers sets the number of parallel evaluator calls.
func WithWorkers(n int) Option {
	return func(s *Study) {
		s.config.WithWorkers(n)
	}
}

// WithSplits sets the number of walk-forward windows and the in-sample share
// of each window.
func WithSplits(n int, inSampleRatio float64) Option {
	return func(s *Study) {
		s.config.WithSplits(n, inSampleRatio)
	}
}

// WithMaxDuration caps the wall-clock time of each trial budget.
func WithMaxDuration(d time.Duration) Option {
	return func(s *Study) {
		s.config.WithMaxDuration(d)
	}
}

// WithProgress renders a progress bar while trial budgets run.
func WithProgress(show bool) Option {
	return func(s *Study) {
		s.config.WithProgress(show)
	}
}

// RunWalkForward splits the dataset into sequential windows, searches each
// window's in-sample slice and validates on its out-of-sample slice.
func (s *Study) RunWalkForward(ctx context.Context, data []core.Candle) (*core.Summary, error) {
	wf, err := optimizer.NewWalkForward(s.config)
	if err != nil {
		return nil, err
	}
	return wf.Run(ctx, s.evaluator, s.oracle, data)
}

// RunPareto runs a multi-objective search over the full dataset and returns
// the non-dominated front. Objectives and directions are matched by position.
func (s *Study) RunPareto(ctx context.Context, data []core.Candle,
	objectives []string, directions []core.Direction) (core.ParetoFront, error) {

	pareto, err := optimizer.NewPareto(s.config, objectives, directions)
	if err != nil {
		return nil, err
	}
	return pareto.Run(ctx, s.evaluator, s.oracle, data)
}

// Summary prints the walk-forward results to stdout: a per-window table, a
// histogram of the generalization gaps and a bootstrap confidence interval
// of the out-of-sample metric.
func (s *Study) Summary(summary *core.Summary) {
	buffer := bytes.NewBuffer(nil)
	table := tablewriter.NewWriter(buffer)
	table.SetHeader([]string{"Window", "Best Params", "In-Sample", "Out-of-Sample", "Gap", "Failed"})
	table.SetFooterAlignment(tablewriter.ALIGN_RIGHT)

	for _, r := range summary.WindowResults {
		table.Append([]string{
			strconv.Itoa(r.WindowIndex + 1),
			r.BestParams.Key(),
			fmt.Sprintf("%.4f", r.InSampleMetric),
			fmt.Sprintf("%.4f", r.OutOfSampleMetric),
			fmt.Sprintf("%.4f", r.Gap),
			strconv.Itoa(r.FailedTrials),
		})
	}

	table.SetFooter([]string{
		"AVG",
		summary.RobustParams.Key(),
		fmt.Sprintf("%.4f", summary.AvgInSampleMetric),
		fmt.Sprintf("%.4f", summary.AvgOutOfSampleMetric),
		fmt.Sprintf("%.4f", summary.AvgGap),
		strconv.Itoa(summary.FailedTrials),
	})
	table.Render()

	fmt.Println(buffer.String())
	fmt.Printf("OVERFIT RATIO: %.3f\n", summary.OverfitRatio)

	gaps := make([]float64, len(summary.WindowResults))
	for i, r := range summary.WindowResults {
		gaps[i] = r.Gap
	}
	if finite := metric.Finite(gaps); len(finite) > 0 {
		fmt.Println("------ GAP DISTRIBUTION -------")
		hist := histogram.Hist(10, finite)
		if err := histogram.Fprint(os.Stdout, hist, histogram.Linear(10)); err != nil {
			s.logger.Warnf("render histogram fail: %v", err)
		}
		fmt.Println()
	}

	oos := make([]float64, len(summary.WindowResults))
	for i, r := range summary.WindowResults {
		oos[i] = r.OutOfSampleMetric
	}
	if finite := metric.Finite(oos); len(finite) > 1 {
		fmt.Println("------ OUT-OF-SAMPLE CONFIDENCE INTERVAL (95%) -------")
		interval := metric.Bootstrap(finite, metric.Mean, 10000, 0.95)
		fmt.Printf("%s: %.4f (%.4f ~ %.4f)\n",
			s.config.MetricName, interval.Mean, interval.Lower, interval.Upper)
		fmt.Println()
	}
}

// Front prints a non-dominated front to stdout, one row per trial.
func (s *Study) Front(front core.ParetoFront, objectives []string) {
	buffer := bytes.NewBuffer(nil)
	table := tablewriter.NewWriter(buffer)
	table.SetHeader(append([]string{"Trial", "Params"}, objectives...))

	for _, trial := range front {
		row := []string{strconv.Itoa(trial.Index), trial.Params.Key()}
		for i := range objectives {
			if i < len(trial.Values) {
				row = append(row, fmt.Sprintf("%.4f", trial.Values[i]))
			} else {
				row = append(row, "")
			}
		}
		table.Append(row)
	}
	table.Render()

	fmt.Println(buffer.String())
	fmt.Printf("FRONT SIZE: %d\n", len(front))
}
