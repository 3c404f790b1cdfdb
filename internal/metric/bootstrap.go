package metric

import (
	"sort"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
)

// BootstrapInterval bounds a statistic estimated by resampling. The summary
// report uses it to show how far the out-of-sample metric can be expected to
// drift from the handful of window observations.
type BootstrapInterval struct {
	Lower  float64
	Upper  float64
	StdDev float64
	Mean   float64
}

// Bootstrap estimates a confidence interval for measure over values by
// resampling with replacement. sampleSize is the number of resamples drawn;
// confidence is the covered probability mass (0.95 for 95%). Callers feed it
// finite values only; pass window metrics through Finite first.
func Bootstrap(values []float64, measure func([]float64) float64, sampleSize int,
	confidence float64) BootstrapInterval {

	if len(values) == 0 {
		return BootstrapInterval{}
	}

	estimates := make([]float64, sampleSize)
	resample := make([]float64, len(values))
	for i := range estimates {
		for j := range resample {
			resample[j] = lo.Sample(values)
		}
		estimates[i] = measure(resample)
	}
	sort.Float64s(estimates)

	mean, stdDev := stat.MeanStdDev(estimates, nil)
	tail := (1 - confidence) / 2

	return BootstrapInterval{
		Lower:  stat.Quantile(tail, stat.LinInterp, estimates, nil),
		Upper:  stat.Quantile(1-tail, stat.LinInterp, estimates, nil),
		StdDev: stdDev,
		Mean:   mean,
	}
}
