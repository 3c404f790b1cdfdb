package optimizer

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradeforge/walkforward/core"
)

func walkForwardConfig() *Config {
	return NewConfig().
		WithSpace(testSpace()).
		WithMetric("m", core.Maximize).
		WithTrials(3).
		WithSplits(2, 0.5)
}

func TestWalkForwardAggregates(t *testing.T) {
	oracle := newCycleOracle(
		core.ParamSet{"x": 1},
		core.ParamSet{"x": 5},
		core.ParamSet{"x": 3},
	)

	wf, err := NewWalkForward(walkForwardConfig())
	require.NoError(t, err)

	summary, err := wf.Run(context.Background(), valueOfX, oracle, makeCandles(20))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.WindowCount)
	require.Len(t, summary.WindowResults, 2)

	// x=5 wins every window and generalizes perfectly
	for _, r := range summary.WindowResults {
		assert.Equal(t, 5, r.BestParams["x"])
		assert.Equal(t, 5.0, r.InSampleMetric)
		assert.Equal(t, 5.0, r.OutOfSampleMetric)
		assert.Zero(t, r.Gap)
	}

	assert.Equal(t, 5.0, summary.AvgInSampleMetric)
	assert.Equal(t, 5.0, summary.AvgOutOfSampleMetric)
	assert.Zero(t, summary.AvgGap)
	assert.Zero(t, summary.OverfitRatio)
	assert.Equal(t, 5, summary.RobustParams["x"])
}

func TestWalkForwardOverfitRatio(t *testing.T) {
	// In-sample scores higher than out-of-sample for the same assignment:
	// the evaluator rewards short slices, so the smaller out-of-sample
	// piece cannot reproduce the in-sample value.
	overfitter := &funcEvaluator{
		fn: func(params core.ParamSet, candles []core.Candle) (map[string]float64, error) {
			base := float64(params["x"].(int))
			if len(candles) < 5 {
				return map[string]float64{"m": base / 2}, nil
			}
			return map[string]float64{"m": base}, nil
		},
	}

	oracle := newCycleOracle(core.ParamSet{"x": 4})

	wf, err := NewWalkForward(walkForwardConfig().WithTrials(1).WithSplits(2, 0.7))
	require.NoError(t, err)

	// Window size 10: 7 in-sample rows, 3 out-of-sample rows
	summary, err := wf.Run(context.Background(), overfitter, oracle, makeCandles(20))
	require.NoError(t, err)

	assert.Equal(t, 4.0, summary.AvgInSampleMetric)
	assert.Equal(t, 2.0, summary.AvgOutOfSampleMetric)
	assert.Equal(t, 2.0, summary.AvgGap)
	assert.Equal(t, 0.5, summary.OverfitRatio)
}

func TestWalkForwardZeroInSampleGuard(t *testing.T) {
	zero := &funcEvaluator{
		fn: func(core.ParamSet, []core.Candle) (map[string]float64, error) {
			return map[string]float64{"m": 0}, nil
		},
	}

	wf, err := NewWalkForward(walkForwardConfig())
	require.NoError(t, err)

	summary, err := wf.Run(context.Background(), zero, newCycleOracle(core.ParamSet{"x": 1}), makeCandles(20))
	require.NoError(t, err)

	// Zero mean in-sample performance must not divide by zero
	assert.Zero(t, summary.AvgInSampleMetric)
	assert.Zero(t, summary.OverfitRatio)
}

func TestWalkForwardNoWindows(t *testing.T) {
	wf, err := NewWalkForward(walkForwardConfig().WithSplits(5, 0.7))
	require.NoError(t, err)

	_, err = wf.Run(context.Background(), valueOfX, NewRandomOracle(1), makeCandles(3))
	assert.ErrorIs(t, err, core.ErrNoWindowsProduced)
}

func TestWalkForwardRobustParamsTieBreak(t *testing.T) {
	// The best assignment depends on the window's data: the evaluator
	// prefers x equal to the first close of the slice it sees. With two
	// windows each picking a different x, the earliest window's winner is
	// reported as the robust choice.
	dataDependent := &funcEvaluator{
		fn: func(params core.ParamSet, candles []core.Candle) (map[string]float64, error) {
			x := float64(params["x"].(int))
			target := candles[0].Close
			return map[string]float64{"m": -math.Abs(x - target)}, nil
		},
	}

	oracle := newCycleOracle(
		core.ParamSet{"x": 1},
		core.ParamSet{"x": 11},
	)

	wf, err := NewWalkForward(walkForwardConfig().WithTrials(2))
	require.NoError(t, err)

	// Closes are 1..20; window 0 in-sample starts at close 1, window 1 at
	// close 11, so each window elects its own tuple with count one.
	summary, err := wf.Run(context.Background(), dataDependent, oracle, makeCandles(20))
	require.NoError(t, err)

	require.Len(t, summary.WindowResults, 2)
	assert.Equal(t, 1, summary.WindowResults[0].BestParams["x"])
	assert.Equal(t, 11, summary.WindowResults[1].BestParams["x"])
	assert.Equal(t, 1, summary.RobustParams["x"])
}

func TestWalkForwardFailedWindowStillRecorded(t *testing.T) {
	// Evaluation works in the first window and always fails in the second
	partial := &funcEvaluator{
		fn: func(params core.ParamSet, candles []core.Candle) (map[string]float64, error) {
			if candles[0].Close > 10 {
				return nil, errors.New("regime change")
			}
			return map[string]float64{"m": float64(params["x"].(int))}, nil
		},
	}

	oracle := newCycleOracle(core.ParamSet{"x": 2})

	wf, err := NewWalkForward(walkForwardConfig().WithTrials(3))
	require.NoError(t, err)

	summary, err := wf.Run(context.Background(), partial, oracle, makeCandles(20))
	require.NoError(t, err)

	require.Len(t, summary.WindowResults, 2)

	healthy := summary.WindowResults[0]
	assert.Equal(t, 2.0, healthy.InSampleMetric)
	assert.Zero(t, healthy.FailedTrials)

	broken := summary.WindowResults[1]
	assert.Empty(t, broken.BestParams)
	assert.Equal(t, 3, broken.FailedTrials)
	assert.True(t, math.IsInf(broken.InSampleMetric, -1))
	assert.True(t, math.IsInf(broken.OutOfSampleMetric, -1))

	assert.Equal(t, 3, summary.FailedTrials)
	assert.Equal(t, 2, summary.RobustParams["x"])
}

func TestNewWalkForwardValidation(t *testing.T) {
	_, err := NewWalkForward(nil)
	assert.Error(t, err)

	_, err = NewWalkForward(walkForwardConfig().WithSplits(0, 0.7))
	assert.ErrorIs(t, err, core.ErrInvalidWindowConfig)

	_, err = NewWalkForward(walkForwardConfig().WithSplits(5, 1.5))
	assert.ErrorIs(t, err, core.ErrInvalidWindowConfig)
}
