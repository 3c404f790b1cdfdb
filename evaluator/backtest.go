// Package evaluator provides backtest evaluators that turn a parameter
// assignment and a candle slice into named performance metrics.
package evaluator

import (
	"context"
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
	"github.com/samber/lo"
	"github.com/tradeforge/walkforward/core"
	"gonum.org/v1/gonum/stat"
)

// periodsPerYear annualizes the sharpe ratio assuming daily candles
const periodsPerYear = 252

// EMACross backtests a long-only exponential moving average crossover. It
// enters when the fast average crosses above the slow one and exits on the
// opposite cross. Expected parameters are fast_period and slow_period.
type EMACross struct{}

// NewEMACross creates an EMA crossover evaluator.
func NewEMACross() *EMACross {
	return &EMACross{}
}

// Space returns a parameter space suited to this evaluator.
func (e *EMACross) Space() core.ParameterSpace {
	return core.ParameterSpace{
		{Name: "fast_period", Kind: core.KindInt, Low: 5, High: 50, Step: 1},
		{Name: "slow_period", Kind: core.KindInt, Low: 20, High: 200, Step: 1},
	}
}

// Evaluate implements core.Evaluator.
func (e *EMACross) Evaluate(ctx context.Context, params core.ParamSet,
	candles []core.Candle) (map[string]float64, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fast, err := intParam(params, "fast_period")
	if err != nil {
		return nil, err
	}
	slow, err := intParam(params, "slow_period")
	if err != nil {
		return nil, err
	}

	if fast >= slow {
		return nil, fmt.Errorf("fast period %d must be smaller than slow period %d", fast, slow)
	}
	if len(candles) <= slow {
		return nil, fmt.Errorf("need more than %d candles, got %d", slow, len(candles))
	}

	closes := lo.Map(candles, func(c core.Candle, _ int) float64 { return c.Close })
	fastEMA := talib.Ema(closes, fast)
	slowEMA := talib.Ema(closes, slow)

	return e.runBacktest(closes, fastEMA, slowEMA, slow), nil
}

// runBacktest walks the series once, switching a long position on crossovers
// and accumulating per-period strategy returns.
func (e *EMACross) runBacktest(closes, fastEMA, slowEMA []float64, warmup int) map[string]float64 {
	var (
		inPosition bool
		entryPrice float64
		equity     = 1.0
		peak       = 1.0
		maxDD      float64
		wins       int
		trades     int
		returns    []float64
	)

	for i := warmup + 1; i < len(closes); i++ {
		crossedUp := fastEMA[i] > slowEMA[i] && fastEMA[i-1] <= slowEMA[i-1]
		crossedDown := fastEMA[i] < slowEMA[i] && fastEMA[i-1] >= slowEMA[i-1]

		if !inPosition && crossedUp {
			inPosition = true
			entryPrice = closes[i]
			continue
		}

		if inPosition {
			periodReturn := closes[i]/closes[i-1] - 1
			returns = append(returns, periodReturn)

			equity *= 1 + periodReturn
			if equity > peak {
				peak = equity
			}
			if dd := (peak - equity) / peak; dd > maxDD {
				maxDD = dd
			}

			if crossedDown {
				inPosition = false
				trades++
				if closes[i] > entryPrice {
					wins++
				}
			}
		}
	}

	// Close any open position at the last candle
	if inPosition {
		trades++
		if closes[len(closes)-1] > entryPrice {
			wins++
		}
	}

	winRate := 0.0
	if trades > 0 {
		winRate = float64(wins) / float64(trades)
	}

	return map[string]float64{
		"total_return": equity - 1,
		"sharpe_ratio": sharpe(returns),
		"max_drawdown": maxDD,
		"win_rate":     winRate,
		"trade_count":  float64(trades),
	}
}

// sharpe annualizes the mean/stddev ratio of the per-period returns.
func sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	mean, stdDev := stat.MeanStdDev(returns, nil)
	if stdDev == 0 {
		return 0
	}
	return mean / stdDev * math.Sqrt(periodsPerYear)
}

// intParam coerces a parameter to int. Values round-tripped through JSON
// arrive as float64.
func intParam(params core.ParamSet, name string) (int, error) {
	value, ok := params[name]
	if !ok {
		return 0, fmt.Errorf("missing parameter %q", name)
	}

	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("parameter %q has unsupported type %T", name, value)
	}
}
