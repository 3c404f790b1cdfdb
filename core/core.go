package core

import "context"

// Evaluator runs a backtest with the given parameters over a slice of
// time-ordered candles and returns named performance metrics.
type Evaluator interface {
	Evaluate(ctx context.Context, params ParamSet, candles []Candle) (map[string]float64, error)
}

// Oracle is a black-box parameter-suggestion algorithm driven through an
// ask/tell contract. Ask proposes the next assignment to try; Tell reports
// the observed objective value (or vector) back so future suggestions can
// improve. The engine serializes Ask/Tell calls; implementations keep their
// observation history for the lifetime of one optimization run.
type Oracle interface {
	Ask(space ParameterSpace) (ParamSet, error)
	Tell(params ParamSet, values []float64) error
}

// TrialStorage persists the append-only trial log of a run.
type TrialStorage interface {
	SaveTrial(ctx context.Context, record *TrialRecord) error
	Trials(ctx context.Context, study string) ([]*TrialRecord, error)
	Close() error
}
