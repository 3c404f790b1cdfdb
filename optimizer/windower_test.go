package optimizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradeforge/walkforward/core"
)

// makeCandles builds n candles with ascending timestamps and closes.
func makeCandles(n int) []core.Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]core.Candle, n)
	for i := range candles {
		price := float64(i + 1)
		candles[i] = core.Candle{
			Time:   start.Add(time.Duration(i) * time.Hour),
			Open:   price,
			Close:  price,
			Low:    price,
			High:   price,
			Volume: 100,
		}
	}
	return candles
}

func TestSplit(t *testing.T) {
	windows, err := Split(makeCandles(100), 5, 0.7)
	require.NoError(t, err)
	require.Len(t, windows, 5)

	for i, w := range windows {
		assert.Equal(t, i, w.Index)
		assert.Len(t, w.InSample, 14)
		assert.Len(t, w.OutOfSample, 6)

		// Out-of-sample follows in-sample with no overlap
		lastIS := w.InSample[len(w.InSample)-1].Time
		firstOOS := w.OutOfSample[0].Time
		assert.True(t, firstOOS.After(lastIS))

		// Windows are sequential
		if i > 0 {
			prevEnd := windows[i-1].OutOfSample[len(windows[i-1].OutOfSample)-1].Time
			assert.True(t, w.InSample[0].Time.After(prevEnd))
		}
	}
}

func TestSplitUnevenSizes(t *testing.T) {
	windows, err := Split(makeCandles(10), 3, 0.5)
	require.NoError(t, err)
	require.Len(t, windows, 3)

	for _, w := range windows {
		assert.Len(t, w.InSample, 1)
		assert.Len(t, w.OutOfSample, 2)
	}
}

func TestSplitTooFewRows(t *testing.T) {
	// Fewer rows than splits produces no windows but no error either
	windows, err := Split(makeCandles(3), 5, 0.7)
	require.NoError(t, err)
	assert.Empty(t, windows)
}

func TestSplitInvalidConfig(t *testing.T) {
	candles := makeCandles(10)

	_, err := Split(candles, 0, 0.7)
	assert.ErrorIs(t, err, core.ErrInvalidWindowConfig)

	_, err = Split(candles, 5, 0)
	assert.ErrorIs(t, err, core.ErrInvalidWindowConfig)

	_, err = Split(candles, 5, 1)
	assert.ErrorIs(t, err, core.ErrInvalidWindowConfig)

	_, err = Split(nil, 5, 0.7)
	assert.ErrorIs(t, err, core.ErrInvalidWindowConfig)
}
