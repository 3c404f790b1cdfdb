package evaluator

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradeforge/walkforward/core"
)

// makeTrendingCandles builds candles following an upward trend with a cycle
// on top, enough to trigger several crossovers.
func makeTrendingCandles(n int) []core.Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]core.Candle, n)
	for i := range candles {
		price := 100 + float64(i)*0.1 + 5*math.Sin(float64(i)/10)
		candles[i] = core.Candle{
			Time:   start.Add(time.Duration(i) * time.Hour),
			Open:   price,
			Close:  price,
			Low:    price * 0.99,
			High:   price * 1.01,
			Volume: 1000,
		}
	}
	return candles
}

func TestEMACrossEvaluate(t *testing.T) {
	eval := NewEMACross()
	params := core.ParamSet{"fast_period": 5, "slow_period": 20}

	metrics, err := eval.Evaluate(context.Background(), params, makeTrendingCandles(400))
	require.NoError(t, err)

	for _, name := range []string{"total_return", "sharpe_ratio", "max_drawdown", "win_rate", "trade_count"} {
		assert.Contains(t, metrics, name)
	}

	assert.GreaterOrEqual(t, metrics["win_rate"], 0.0)
	assert.LessOrEqual(t, metrics["win_rate"], 1.0)
	assert.GreaterOrEqual(t, metrics["max_drawdown"], 0.0)
	assert.LessOrEqual(t, metrics["max_drawdown"], 1.0)
	assert.Greater(t, metrics["trade_count"], 0.0)
}

func TestEMACrossFloatParams(t *testing.T) {
	// Parameters round-tripped through JSON arrive as float64
	eval := NewEMACross()
	params := core.ParamSet{"fast_period": 5.0, "slow_period": 20.0}

	_, err := eval.Evaluate(context.Background(), params, makeTrendingCandles(400))
	assert.NoError(t, err)
}

func TestEMACrossInvalidPeriods(t *testing.T) {
	eval := NewEMACross()
	candles := makeTrendingCandles(400)

	_, err := eval.Evaluate(context.Background(), core.ParamSet{"fast_period": 20, "slow_period": 20}, candles)
	assert.Error(t, err)

	_, err = eval.Evaluate(context.Background(), core.ParamSet{"fast_period": 30, "slow_period": 10}, candles)
	assert.Error(t, err)
}

func TestEMACrossMissingParam(t *testing.T) {
	eval := NewEMACross()

	_, err := eval.Evaluate(context.Background(), core.ParamSet{"fast_period": 5}, makeTrendingCandles(400))
	assert.Error(t, err)

	_, err = eval.Evaluate(context.Background(),
		core.ParamSet{"fast_period": "fast", "slow_period": 20}, makeTrendingCandles(400))
	assert.Error(t, err)
}

func TestEMACrossInsufficientData(t *testing.T) {
	eval := NewEMACross()
	params := core.ParamSet{"fast_period": 5, "slow_period": 20}

	_, err := eval.Evaluate(context.Background(), params, makeTrendingCandles(10))
	assert.Error(t, err)
}

func TestEMACrossCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eval := NewEMACross()
	params := core.ParamSet{"fast_period": 5, "slow_period": 20}

	_, err := eval.Evaluate(ctx, params, makeTrendingCandles(400))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEMACrossSpace(t *testing.T) {
	space := NewEMACross().Space()
	require.NoError(t, space.Validate())
	assert.Len(t, space, 2)
}
