package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xhit/go-str2duration/v2"

	"github.com/tradeforge/walkforward"
	"github.com/tradeforge/walkforward/core"
	"github.com/tradeforge/walkforward/evaluator"
	"github.com/tradeforge/walkforward/feed"
	"github.com/tradeforge/walkforward/optimizer"
	"github.com/tradeforge/walkforward/storage"
)

// Command line flags
var (
	dataFile   string
	splits     int
	ratio      float64
	trials     int
	metricName string
	direction  string
	workers    int
	budget     string
	dbFile     string
	studyName  string
	seed       int64
	objectives []string
	directions []string
	progress   bool
	outputFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "walkforward",
		Short:   "Walk-forward and multi-objective strategy parameter optimization",
		Version: "1.0.0",
	}

	rootCmd.AddCommand(buildOptimizeCmd())
	rootCmd.AddCommand(buildParetoCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&dataFile, "data", "d", "", "CSV file with candle data")
	cmd.Flags().IntVarP(&trials, "trials", "n", 100, "Trial budget")
	cmd.Flags().IntVarP(&workers, "workers", "w", 1, "Parallel evaluator calls")
	cmd.Flags().StringVarP(&budget, "budget", "b", "", "Wall-clock budget (e.g. 5m, 1h)")
	cmd.Flags().StringVar(&dbFile, "db", "", "Persist trials to this database file")
	cmd.Flags().StringVar(&studyName, "study", "default", "Study name for persisted trials")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random oracle seed (0 uses current time)")
	cmd.Flags().BoolVar(&progress, "progress", true, "Show a progress bar")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write results to this CSV file")

	cmd.MarkFlagRequired("data")
}

func buildOptimizeCmd() *cobra.Command {
	optimizeCmd := &cobra.Command{
		Use:   "optimize",
		Short: "Run a walk-forward optimization of the EMA crossover strategy",
		RunE:  runOptimize,
	}

	addCommonFlags(optimizeCmd)
	optimizeCmd.Flags().IntVarP(&splits, "splits", "s", 5, "Number of walk-forward windows")
	optimizeCmd.Flags().Float64VarP(&ratio, "ratio", "r", 0.7, "In-sample share of each window")
	optimizeCmd.Flags().StringVarP(&metricName, "metric", "m", "sharpe_ratio", "Target metric")
	optimizeCmd.Flags().StringVar(&direction, "direction", "maximize", "maximize or minimize")

	return optimizeCmd
}

func buildParetoCmd() *cobra.Command {
	paretoCmd := &cobra.Command{
		Use:   "pareto",
		Short: "Run a multi-objective optimization and print the Pareto front",
		RunE:  runPareto,
	}

	addCommonFlags(paretoCmd)
	paretoCmd.Flags().StringSliceVar(&objectives, "objectives",
		[]string{"sharpe_ratio", "max_drawdown"}, "Objective metrics")
	paretoCmd.Flags().StringSliceVar(&directions, "directions",
		[]string{"maximize", "minimize"}, "Per-objective directions")

	return paretoCmd
}

func runOptimize(cmd *cobra.Command, args []string) error {
	study, candles, err := buildStudy(
		walkforward.WithSplits(splits, ratio),
		walkforward.WithMetric(metricName, core.Direction(strings.ToLower(direction))),
	)
	if err != nil {
		return err
	}

	summary, err := study.RunWalkForward(cmd.Context(), candles)
	if err != nil {
		return err
	}

	study.Summary(summary)

	if outputFile != "" {
		return optimizer.SaveWindowResultsCSV(summary, outputFile)
	}
	return nil
}

func runPareto(cmd *cobra.Command, args []string) error {
	study, candles, err := buildStudy()
	if err != nil {
		return err
	}

	dirs := make([]core.Direction, len(directions))
	for i, d := range directions {
		dirs[i] = core.Direction(strings.ToLower(d))
	}

	front, err := study.RunPareto(cmd.Context(), candles, objectives, dirs)
	if err != nil {
		return err
	}

	study.Front(front, objectives)

	if outputFile != "" {
		return optimizer.SaveFrontCSV(front, objectives, outputFile)
	}
	return nil
}

// buildStudy loads the candle data and assembles a study from the shared
// flags plus any extra options.
func buildStudy(extra ...walkforward.Option) (*walkforward.Study, []core.Candle, error) {
	candles, err := feed.ReadCandlesFromCSV(dataFile)
	if err != nil {
		return nil, nil, err
	}

	strategy := evaluator.NewEMACross()

	options := []walkforward.Option{
		walkforward.WithTrials(trials),
		walkforward.WithWorkers(workers),
		walkforward.WithOracle(optimizer.NewRandomOracle(seed)),
		walkforward.WithProgress(progress),
	}
	options = append(options, extra...)

	if budget != "" {
		d, err := str2duration.ParseDuration(budget)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid budget: %w", err)
		}
		options = append(options, walkforward.WithMaxDuration(d))
	}

	if dbFile != "" {
		db, err := storage.FromFile(dbFile)
		if err != nil {
			return nil, nil, err
		}
		options = append(options, walkforward.WithStorage(db, studyName))
	}

	s, err := walkforward.NewStudy(strategy.Space(), strategy, options...)
	if err != nil {
		return nil, nil, err
	}
	return s, candles, nil
}
