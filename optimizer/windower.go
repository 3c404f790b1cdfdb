package optimizer

import (
	"fmt"

	"github.com/tradeforge/walkforward/core"
)

// Split partitions the ordered dataset into sequential, non-overlapping
// (in-sample, out-of-sample) window pairs. The out-of-sample slice of every
// window starts immediately after its in-sample slice, so held-out data is
// always strictly later in time than the data used for search.
//
// window_size = len(data) / nSplits; each window takes the leading
// inSampleRatio share as in-sample and the remainder as out-of-sample.
// Windows that would have an empty out-of-sample slice are not emitted, so
// small datasets produce fewer than nSplits windows.
//
// This is deliberately not a rolling or expanding scheme: simplicity over
// data efficiency.
func Split(data []core.Candle, nSplits int, inSampleRatio float64) ([]core.Window, error) {
	if nSplits <= 0 {
		return nil, fmt.Errorf("%w: splits must be >= 1, got %d", core.ErrInvalidWindowConfig, nSplits)
	}
	if inSampleRatio <= 0 || inSampleRatio >= 1 {
		return nil, fmt.Errorf("%w: in-sample ratio must be in (0, 1), got %v", core.ErrInvalidWindowConfig, inSampleRatio)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty dataset", core.ErrInvalidWindowConfig)
	}

	windowSize := len(data) / nSplits
	isSize := int(float64(windowSize) * inSampleRatio)
	oosSize := windowSize - isSize

	windows := make([]core.Window, 0, nSplits)
	for i := 0; i < nSplits; i++ {
		start := i * windowSize
		isEnd := start + isSize
		oosEnd := isEnd + oosSize
		if oosEnd > len(data) {
			oosEnd = len(data)
		}

		// No out-of-sample portion left: stop emitting windows.
		if isSize == 0 || isEnd >= len(data) || oosEnd <= isEnd {
			break
		}

		windows = append(windows, core.Window{
			Index:       i,
			InSample:    data[start:isEnd],
			OutOfSample: data[isEnd:oosEnd],
		})
	}

	return windows, nil
}
