// Package optimizer implements walk-forward and multi-objective parameter
// search over ordered market data. Parameter suggestions come from a
// pluggable ask/tell oracle; strategy evaluation is a black-box Evaluator.
package optimizer

import (
	"fmt"
	"time"

	"github.com/tradeforge/walkforward/core"
)

// Config holds configuration for the optimization process
type Config struct {
	// Space declares the tunable dimensions
	Space core.ParameterSpace
	// Target metric to optimize (key of the evaluator's metric map)
	MetricName string
	// Whether the target metric is maximized or minimized
	Direction core.Direction
	// Trials is the evaluation budget (per window for walk-forward runs)
	Trials int
	// Number of parallel evaluator calls
	Workers int
	// Number of walk-forward windows
	Splits int
	// In-sample share of each window, in (0, 1)
	InSampleRatio float64
	// MaxDuration optionally caps the wall-clock time of a trial budget;
	// zero means no cap. Partial completion still yields a valid result.
	MaxDuration time.Duration
	// Logger instance
	Logger core.Logger
	// Storage optionally persists the append-only trial log
	Storage core.TrialStorage
	// StudyName labels persisted trials
	StudyName string
	// ShowProgress renders a progress bar while a trial budget runs
	ShowProgress bool
}

// NewConfig creates a default configuration
func NewConfig() *Config {
	return &Config{
		MetricName:    "sharpe_ratio",
		Direction:     core.Maximize,
		Trials:        100,
		Workers:       1,
		Splits:        5,
		InSampleRatio: 0.7,
		StudyName:     "default",
	}
}

// WithSpace sets the parameter space
func (c *Config) WithSpace(space core.ParameterSpace) *Config {
	c.Space = space
	return c
}

// WithMetric sets the target metric and its direction
func (c *Config) WithMetric(name string, direction core.Direction) *Config {
	c.MetricName = name
	c.Direction = direction
	return c
}

// WithTrials sets the trial budget
func (c *Config) WithTrials(n int) *Config {
	c.Trials = n
	return c
}

// WithWorkers sets the number of parallel evaluator calls
func (c *Config) WithWorkers(n int) *Config {
	c.Workers = n
	return c
}

// WithSplits sets the number of walk-forward windows and the in-sample ratio
func (c *Config) WithSplits(n int, inSampleRatio float64) *Config {
	c.Splits = n
	c.InSampleRatio = inSampleRatio
	return c
}

// WithMaxDuration caps the wall-clock time of each trial budget
func (c *Config) WithMaxDuration(d time.Duration) *Config {
	c.MaxDuration = d
	return c
}

// WithLogger sets the logger
func (c *Config) WithLogger(logger core.Logger) *Config {
	c.Logger = logger
	return c
}

// WithStorage sets the trial log storage
func (c *Config) WithStorage(storage core.TrialStorage, study string) *Config {
	c.Storage = storage
	if study != "" {
		c.StudyName = study
	}
	return c
}

// WithProgress enables the progress bar
func (c *Config) WithProgress(show bool) *Config {
	c.ShowProgress = show
	return c
}

// validate checks the configuration before any evaluator or oracle call.
func (c *Config) validate() error {
	if err := c.Space.Validate(); err != nil {
		return err
	}
	if c.MetricName == "" {
		return fmt.Errorf("metric name cannot be empty")
	}
	if !c.Direction.Valid() {
		return fmt.Errorf("invalid direction: %s", c.Direction)
	}
	if c.Trials < 0 {
		return fmt.Errorf("trial budget cannot be negative")
	}
	if c.Workers < 1 {
		return fmt.Errorf("at least one worker is required")
	}
	return nil
}

// logf logs a message if a logger is configured
func (c *Config) logf(format string, args ...any) {
	if c.Logger != nil {
		c.Logger.Infof(format, args...)
	}
}

// warnf logs a warning if a logger is configured
func (c *Config) warnf(format string, args ...any) {
	if c.Logger != nil {
		c.Logger.Warnf(format, args...)
	}
}
