package analyzer

import (
	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
)

// centeredResiduals compares every value of xs with the simple moving average of the
// window centred on it and returns |x - sma| indexed by frame. Values near the ends that
// no full window covers get residual 0.
func centeredResiduals(xs []float64, period int) []float64 {
	out := make([]float64, len(xs))
	if period < 2 || len(xs) < period {
		return out
	}
	sma := movingAverage(xs, period)
	// The average at k covers the window ending at offset+k.
	offset := len(xs) - len(sma)
	for k, avg := range sma {
		end := offset + k
		mid := end - period/2
		if end-period+1 < 0 || mid < 0 {
			continue
		}
		d := xs[mid] - avg
		if d < 0 {
			d = -d
		}
		out[mid] = d
	}
	return out
}

// movingAverage is the trailing simple moving average of xs.
func movingAverage(xs []float64, period int) []float64 {
	sma := trend.NewSmaWithPeriod[float64](period)
	return helper.ChanToSlice(sma.Compute(helper.SliceToChan(xs)))
}

func maxOf(xs []float64) float64 {
	m := 0.0
	for i, x := range xs {
		if i == 0 || x > m {
			m = x
		}
	}
	return m
}
