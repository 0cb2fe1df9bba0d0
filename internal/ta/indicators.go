package ta

import "math"

// Eps guards divisions against zero denominators. The value is shared by
// every indicator so trained-model numerics stay reproducible.
const Eps = 1e-10

func MeanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

// NaNs returns a series of length n filled with NaN.
func NaNs(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// window collects the trailing non-NaN values ending at idx.
func window(values []float64, idx, period int) []float64 {
	start := idx - period + 1
	if start < 0 {
		start = 0
	}
	out := make([]float64, 0, idx-start+1)
	for i := start; i <= idx; i++ {
		if !math.IsNaN(values[i]) {
			out = append(out, values[i])
		}
	}
	return out
}

// RollingMean is a trailing moving average with a minimum-period-1
// fallback: leading rows average the partial window instead of being
// left undefined.
func RollingMean(values []float64, period int) []float64 {
	out := NaNs(len(values))
	for i := range values {
		w := window(values, i, period)
		if len(w) == 0 {
			continue
		}
		sum := 0.0
		for _, v := range w {
			sum += v
		}
		out[i] = sum / float64(len(w))
	}
	return out
}

// RollingStd is the trailing sample standard deviation (ddof=1). A
// window with fewer than two observations stays undefined.
func RollingStd(values []float64, period int) []float64 {
	out := NaNs(len(values))
	for i := range values {
		w := window(values, i, period)
		n := len(w)
		if n < 2 {
			continue
		}
		mean := 0.0
		for _, v := range w {
			mean += v
		}
		mean /= float64(n)
		variance := 0.0
		for _, v := range w {
			d := v - mean
			variance += d * d
		}
		out[i] = math.Sqrt(variance / float64(n-1))
	}
	return out
}

func RollingSum(values []float64, period int) []float64 {
	out := NaNs(len(values))
	for i := range values {
		w := window(values, i, period)
		if len(w) == 0 {
			continue
		}
		sum := 0.0
		for _, v := range w {
			sum += v
		}
		out[i] = sum
	}
	return out
}

func RollingMax(values []float64, period int) []float64 {
	out := NaNs(len(values))
	for i := range values {
		w := window(values, i, period)
		if len(w) == 0 {
			continue
		}
		m := w[0]
		for _, v := range w[1:] {
			if v > m {
				m = v
			}
		}
		out[i] = m
	}
	return out
}

func RollingMin(values []float64, period int) []float64 {
	out := NaNs(len(values))
	for i := range values {
		w := window(values, i, period)
		if len(w) == 0 {
			continue
		}
		m := w[0]
		for _, v := range w[1:] {
			if v < m {
				m = v
			}
		}
		out[i] = m
	}
	return out
}

// RollingSkew is the bias-corrected trailing sample skewness; it needs
// at least three observations.
func RollingSkew(values []float64, period int) []float64 {
	out := NaNs(len(values))
	for i := range values {
		w := window(values, i, period)
		n := float64(len(w))
		if n < 3 {
			continue
		}
		mean, s := sampleMeanStd(w)
		if s == 0 {
			continue
		}
		sum := 0.0
		for _, v := range w {
			z := (v - mean) / s
			sum += z * z * z
		}
		out[i] = n / ((n - 1) * (n - 2)) * sum
	}
	return out
}

// RollingKurt is the bias-corrected trailing excess kurtosis; it needs
// at least four observations.
func RollingKurt(values []float64, period int) []float64 {
	out := NaNs(len(values))
	for i := range values {
		w := window(values, i, period)
		n := float64(len(w))
		if n < 4 {
			continue
		}
		mean, s := sampleMeanStd(w)
		if s == 0 {
			continue
		}
		sum := 0.0
		for _, v := range w {
			z := (v - mean) / s
			sum += z * z * z * z
		}
		out[i] = n*(n+1)/((n-1)*(n-2)*(n-3))*sum - 3*(n-1)*(n-1)/((n-2)*(n-3))
	}
	return out
}

func sampleMeanStd(w []float64) (float64, float64) {
	n := float64(len(w))
	mean := 0.0
	for _, v := range w {
		mean += v
	}
	mean /= n
	variance := 0.0
	for _, v := range w {
		d := v - mean
		variance += d * d
	}
	return mean, math.Sqrt(variance / (n - 1))
}

// EMASeries is an exponential moving average with span semantics
// (alpha = 2/(period+1)) seeded from the first value.
func EMASeries(values []float64, period int) []float64 {
	if len(values) == 0 {
		return nil
	}
	if period <= 1 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	alpha := 2.0 / float64(period+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// Shift lags a series by lag steps; the warm-up region stays undefined.
func Shift(values []float64, lag int) []float64 {
	out := NaNs(len(values))
	for i := lag; i < len(values); i++ {
		out[i] = values[i-lag]
	}
	return out
}

// Diff is the lag-step difference with an undefined warm-up region.
func Diff(values []float64, lag int) []float64 {
	out := NaNs(len(values))
	for i := lag; i < len(values); i++ {
		out[i] = values[i] - values[i-lag]
	}
	return out
}

// PctChange is the fractional change over lag steps.
func PctChange(values []float64, lag int) []float64 {
	out := NaNs(len(values))
	for i := lag; i < len(values); i++ {
		base := values[i-lag]
		if base == 0 {
			continue
		}
		out[i] = values[i]/base - 1
	}
	return out
}

// RSISeries computes RSI from trailing average gain over average loss.
// Undefined values, and windows with no movement at all, report the
// neutral 50.
func RSISeries(closes []float64, period int) []float64 {
	n := len(closes)
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}
	avgGain := RollingMean(gains, period)
	avgLoss := RollingMean(losses, period)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(avgGain[i]) || math.IsNaN(avgLoss[i]) || (avgGain[i] == 0 && avgLoss[i] == 0) {
			out[i] = 50
			continue
		}
		rs := avgGain[i] / (avgLoss[i] + Eps)
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// MACDSeries returns the fast/slow EMA difference and its signal line.
func MACDSeries(values []float64, fast, slow, signal int) ([]float64, []float64) {
	if len(values) == 0 {
		return nil, nil
	}
	fastEMA := EMASeries(values, fast)
	slowEMA := EMASeries(values, slow)
	macdLine := make([]float64, len(values))
	for i := range values {
		macdLine[i] = fastEMA[i] - slowEMA[i]
	}
	signalLine := EMASeries(macdLine, signal)
	return macdLine, signalLine
}

// StochasticSeries computes %K against the trailing close-price range
// and %D as its 3-period smoothing; undefined values report 50.
func StochasticSeries(closes []float64, period int) ([]float64, []float64) {
	lowest := RollingMin(closes, period)
	highest := RollingMax(closes, period)
	k := make([]float64, len(closes))
	for i := range closes {
		if math.IsNaN(lowest[i]) || math.IsNaN(highest[i]) {
			k[i] = 50
			continue
		}
		k[i] = 100 * (closes[i] - lowest[i]) / (highest[i] - lowest[i] + Eps)
	}
	d := RollingMean(k, 3)
	for i := range d {
		if math.IsNaN(d[i]) {
			d[i] = 50
		}
	}
	return k, d
}

// TrueRangeSeries is max(high-low, |high-prevclose|, |low-prevclose|).
func TrueRangeSeries(high, low, close []float64) []float64 {
	n := len(close)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		hl := high[i] - low[i]
		if i == 0 {
			out[i] = hl
			continue
		}
		hc := math.Abs(high[i] - close[i-1])
		lc := math.Abs(low[i] - close[i-1])
		out[i] = math.Max(hl, math.Max(hc, lc))
	}
	return out
}

// ATRSeries is the trailing average of the true range.
func ATRSeries(high, low, close []float64, period int) []float64 {
	return RollingMean(TrueRangeSeries(high, low, close), period)
}

// OBVSeries is cumulative on-balance volume: volume is added when the
// close rose, subtracted when it fell, and carried otherwise. The first
// value is that bar's volume.
func OBVSeries(close, volume []float64) []float64 {
	out := make([]float64, len(close))
	for i := range close {
		if i == 0 {
			out[i] = volume[i]
			continue
		}
		switch {
		case close[i] > close[i-1]:
			out[i] = out[i-1] + volume[i]
		case close[i] < close[i-1]:
			out[i] = out[i-1] - volume[i]
		default:
			out[i] = out[i-1]
		}
	}
	return out
}

// ADXSeries smooths directional movement into directional indices, then
// into DX, and smooths that again. Undefined values report 50.
func ADXSeries(high, low, close []float64, period int) []float64 {
	n := len(close)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		up := high[i] - high[i-1]
		down := low[i-1] - low[i]
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}
	atr := ATRSeries(high, low, close, period)
	plusAvg := RollingMean(plusDM, period)
	minusAvg := RollingMean(minusDM, period)

	dx := make([]float64, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(atr[i]) || math.IsNaN(plusAvg[i]) || math.IsNaN(minusAvg[i]) {
			dx[i] = math.NaN()
			continue
		}
		plusDI := 100 * plusAvg[i] / (atr[i] + Eps)
		minusDI := 100 * minusAvg[i] / (atr[i] + Eps)
		dx[i] = 100 * math.Abs(plusDI-minusDI) / (plusDI + minusDI + Eps)
	}
	adx := RollingMean(dx, period)
	for i := range adx {
		if math.IsNaN(adx[i]) {
			adx[i] = 50
		}
	}
	return adx
}

// SuperTrendSeries follows the upper band while price stays at or below
// the prior upper band and switches to the lower band otherwise. The
// first value is the bar midpoint. A single forward scan, one
// accumulator.
func SuperTrendSeries(high, low, close []float64, period int, multiplier float64) []float64 {
	n := len(close)
	atr := ATRSeries(high, low, close, period)
	upper := make([]float64, n)
	lower := make([]float64, n)
	for i := 0; i < n; i++ {
		hl2 := (high[i] + low[i]) / 2
		band := multiplier * atr[i]
		upper[i] = hl2 + band
		lower[i] = hl2 - band
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		if i == 0 {
			out[i] = (high[i] + low[i]) / 2
			continue
		}
		if close[i] <= upper[i-1] {
			out[i] = upper[i]
		} else {
			out[i] = lower[i]
		}
	}
	return out
}

// Sign mirrors np.sign: −1, 0 or +1, with NaN passed through.
func Sign(v float64) float64 {
	if math.IsNaN(v) {
		return math.NaN()
	}
	if v > 0 {
		return 1
	}
	if v < 0 {
		return -1
	}
	return 0
}
