package core

import (
	"math"
	"time"
)

// Direction tells whether a metric should be maximized or minimized
type Direction string

const (
	// Maximize indicates that higher metric values are better
	Maximize Direction = "maximize"
	// Minimize indicates that lower metric values are better
	Minimize Direction = "minimize"
)

// Worst returns the worst possible value under this direction.
func (d Direction) Worst() float64 {
	if d == Minimize {
		return math.Inf(1)
	}
	return math.Inf(-1)
}

// Better reports whether a is a strict improvement over b. Ties are not
// improvements, so the earliest observation wins.
func (d Direction) Better(a, b float64) bool {
	if d == Minimize {
		return a < b
	}
	return a > b
}

// Valid reports whether the direction is one of the recognized values.
func (d Direction) Valid() bool {
	return d == Maximize || d == Minimize
}

// Trial is a single (parameter assignment, objective observation) pair.
// Trials are immutable once recorded; the trial history of a run is an
// append-only sequence ordered by Index.
type Trial struct {
	Index  int       // Position in the evaluation order
	Params ParamSet  // The parameter values used
	Value  float64   // Scalar objective (single-objective runs)
	Values []float64 // Objective vector (multi-objective runs)
	Failed bool      // The evaluator returned an error for this assignment
}

// Window is one (in-sample, out-of-sample) pair produced by the windower.
// The out-of-sample slice is strictly later in time than the in-sample slice
// and the two never overlap.
type Window struct {
	Index       int
	InSample    []Candle
	OutOfSample []Candle
}

// WindowResult captures the outcome of one walk-forward window.
type WindowResult struct {
	WindowIndex       int
	BestParams        ParamSet
	InSampleMetric    float64
	OutOfSampleMetric float64
	Gap               float64
	FailedTrials      int
}

// Summary aggregates all window results of a walk-forward run.
type Summary struct {
	WindowCount           int
	AvgInSampleMetric     float64
	AvgOutOfSampleMetric  float64
	AvgGap                float64
	OverfitRatio          float64
	RobustParams          ParamSet
	WindowResults         []WindowResult
	FailedTrials          int
}

// ParetoFront is the subset of a trial history not dominated by any other
// trial under the declared per-objective directions.
type ParetoFront []Trial

// TrialRecord is the persisted form of a trial, as written to trial storage.
type TrialRecord struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Study       string    `json:"study" gorm:"index"`
	WindowIndex int       `json:"window_index"`
	TrialIndex  int       `json:"trial_index"`
	Params      string    `json:"params"`
	Values      string    `json:"values"`
	Failed      bool      `json:"failed"`
	SavedAt     time.Time `json:"saved_at"`
}
