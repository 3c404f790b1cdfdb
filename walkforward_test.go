package walkforward

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradeforge/walkforward/core"
	"github.com/tradeforge/walkforward/optimizer"
)

type stubEvaluator struct{}

func (stubEvaluator) Evaluate(_ context.Context, params core.ParamSet,
	candles []core.Candle) (map[string]float64, error) {

	x := params["x"].(int)
	return map[string]float64{
		"sharpe_ratio": float64(x),
		"max_drawdown": float64(x) * float64(x) / 100,
	}, nil
}

func testSpace() core.ParameterSpace {
	return core.ParameterSpace{
		{Name: "x", Kind: core.KindInt, Low: 1, High: 10, Step: 1},
	}
}

func makeCandles(n int) []core.Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]core.Candle, n)
	for i := range candles {
		price := float64(i + 1)
		candles[i] = core.Candle{Time: start.Add(time.Duration(i) * time.Hour),
			Open: price, Close: price, Low: price, High: price, Volume: 1}
	}
	return candles
}

func TestStudyRunWalkForward(t *testing.T) {
	oracle, err := optimizer.NewGridOracle(testSpace())
	require.NoError(t, err)

	study, err := NewStudy(testSpace(), stubEvaluator{},
		WithOracle(oracle),
		WithTrials(5),
		WithSplits(2, 0.5),
		WithMetric("sharpe_ratio", core.Maximize),
		WithProgress(false),
	)
	require.NoError(t, err)

	summary, err := study.RunWalkForward(context.Background(), makeCandles(20))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.WindowCount)
	assert.False(t, math.IsInf(summary.AvgOutOfSampleMetric, 0))
}

func TestStudyRunPareto(t *testing.T) {
	oracle, err := optimizer.NewGridOracle(testSpace())
	require.NoError(t, err)

	study, err := NewStudy(testSpace(), stubEvaluator{},
		WithOracle(oracle),
		WithTrials(oracle.Size()),
		WithProgress(false),
	)
	require.NoError(t, err)

	front, err := study.RunPareto(context.Background(), makeCandles(20),
		[]string{"sharpe_ratio", "max_drawdown"},
		[]core.Direction{core.Maximize, core.Minimize})
	require.NoError(t, err)

	assert.NotEmpty(t, front)
}

func TestStudyParetoMismatchBeforeEvaluation(t *testing.T) {
	study, err := NewStudy(testSpace(), stubEvaluator{}, WithProgress(false))
	require.NoError(t, err)

	_, err = study.RunPareto(context.Background(), makeCandles(20),
		[]string{"sharpe_ratio", "max_drawdown"},
		[]core.Direction{core.Maximize})
	assert.ErrorIs(t, err, core.ErrObjectiveDirectionMismatch)
}

func TestNewStudyRequiresEvaluator(t *testing.T) {
	_, err := NewStudy(testSpace(), nil)
	assert.Error(t, err)
}
