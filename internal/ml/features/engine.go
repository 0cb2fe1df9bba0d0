package features

import (
	"math"
	"strconv"

	"stocksense/internal/domain"
	"stocksense/internal/ta"
)

const (
	featureSpecVersion = "kse-v2"

	atrPeriod        = 14
	adxPeriod        = 14
	stochPeriod      = 14
	macdFast         = 12
	macdSlow         = 26
	macdSignal       = 9
	superTrendPeriod = 10
	superTrendMult   = 3.0
	yearWindow       = 252
)

var (
	maPeriods         = []int{3, 5, 10, 20, 50, 100, 200}
	maRatioPeriods    = []int{20, 50, 200}
	rsiPeriods        = []int{5, 14, 21}
	rocPeriods        = []int{5, 10, 20}
	momentumPeriods   = []int{1, 3, 5, 10, 20}
	volatilityPeriods = []int{5, 10, 20, 60}
	bollingerPeriods  = []int{20, 50}
	lagSteps          = []int{1, 2, 3, 5, 7, 10, 20, 30}
	cumReturnPeriods  = []int{5, 10, 20, 60}
	statPeriods       = []int{20, 60}
)

// excludedColumns are frame columns that never enter the model feature
// set: raw OHLCV, targets and regime-detector outputs.
var excludedColumns = map[string]bool{
	"Open": true, "High": true, "Low": true, "Close": true, "Volume": true,
	"Annual_Return": true, "Annual_Volatility": true,
}

func FeatureSpecVersion() string { return featureSpecVersion }

// Engine computes the full technical-indicator bank from raw OHLCV
// history. Augment returns a new frame; the input series is not mutated.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

// Augment builds every indicator column plus the per-row market regime.
// Window lengths and the shared epsilon are load-bearing: they reproduce
// the numerics the deployed models were trained on.
func (e *Engine) Augment(series domain.Series) (*Frame, []domain.Regime) {
	n := len(series)
	open := make([]float64, n)
	high := make([]float64, n)
	low := make([]float64, n)
	closes := make([]float64, n)
	volume := make([]float64, n)
	for i, b := range series {
		open[i] = b.Open
		high[i] = b.High
		low[i] = b.Low
		closes[i] = b.Close
		volume[i] = b.Volume
	}

	f := NewFrame(n)
	f.Set("Open", open)
	f.Set("High", high)
	f.Set("Low", low)
	f.Set("Close", closes)
	f.Set("Volume", volume)

	returns := ta.PctChange(closes, 1)
	f.Set("Returns", returns)
	f.Set("Log_Returns", logReturns(closes))

	regimes, annualReturn, annualVol := DetectRegimes(closes)
	f.Set("Annual_Return", annualReturn)
	f.Set("Annual_Volatility", annualVol)

	for _, p := range maPeriods {
		f.Set(smaName(p), ta.RollingMean(closes, p))
		f.Set(emaName(p), ta.EMASeries(closes, p))
	}
	f.Set("SMA_5_20_Cross", crossSeries(f.Get("SMA_5"), f.Get("SMA_20")))
	f.Set("SMA_20_50_Cross", crossSeries(f.Get("SMA_20"), f.Get("SMA_50")))
	f.Set("SMA_50_200_Cross", crossSeries(f.Get("SMA_50"), f.Get("SMA_200")))
	f.Set("SMA_5_200_Cross", crossSeries(f.Get("SMA_5"), f.Get("SMA_200")))

	for _, p := range maRatioPeriods {
		f.Set(priceRatioName("SMA", p), ratioSeries(closes, f.Get(smaName(p))))
		f.Set(priceRatioName("EMA", p), ratioSeries(closes, f.Get(emaName(p))))
	}

	for _, p := range rsiPeriods {
		f.Set(rsiName(p), ta.RSISeries(closes, p))
	}

	macd, signal := ta.MACDSeries(closes, macdFast, macdSlow, macdSignal)
	f.Set("MACD", macd)
	f.Set("MACD_Signal", signal)
	macdDiff := make([]float64, n)
	macdHist := make([]float64, n)
	for i := range macd {
		macdDiff[i] = macd[i] - signal[i]
		macdHist[i] = ta.Sign(macdDiff[i])
	}
	f.Set("MACD_Diff", macdDiff)
	f.Set("MACD_Histogram", macdHist)

	stochK, stochD := ta.StochasticSeries(closes, stochPeriod)
	f.Set("Stoch_K", stochK)
	f.Set("Stoch_D", stochD)

	for _, p := range rocPeriods {
		f.Set(rocName(p), rocSeries(closes, p))
	}
	for _, p := range momentumPeriods {
		f.Set(momentumName(p), ta.Diff(closes, p))
	}
	for _, p := range volatilityPeriods {
		f.Set(volatilityName(p), ta.RollingStd(returns, p))
	}

	atr := ta.ATRSeries(high, low, closes, atrPeriod)
	f.Set("ATR", atr)
	f.Set("ATR_Percent", ratioSeries(atr, closes))

	for _, p := range bollingerPeriods {
		e.bollinger(f, closes, p)
	}

	volSMA5 := ta.RollingMean(volume, 5)
	volSMA20 := ta.RollingMean(volume, 20)
	f.Set("Volume_SMA_5", volSMA5)
	f.Set("Volume_SMA_20", volSMA20)
	f.Set("Volume_Ratio", ratioSeries(volume, volSMA20))
	f.Set("Volume_Trend", ratioSeries(volSMA5, volSMA20))

	obv := ta.OBVSeries(closes, volume)
	obvSMA := ta.RollingMean(obv, 20)
	f.Set("OBV", obv)
	f.Set("OBV_SMA", obvSMA)
	obvSignal := make([]float64, n)
	for i := range obv {
		obvSignal[i] = ta.Sign(obv[i] - obvSMA[i])
	}
	f.Set("OBV_Signal", obvSignal)

	pvtRaw := make([]float64, n)
	for i := range returns {
		pvtRaw[i] = returns[i] * volume[i]
	}
	pvt := ta.RollingSum(pvtRaw, 20)
	f.Set("PVT", pvt)
	f.Set("PVT_SMA", ta.RollingMean(pvt, 20))

	f.Set("High_Low_Range", highLowRange(high, low))
	f.Set("Close_Position", closePosition(high, low, closes))
	f.Set("Open_Close_Ratio", openCloseRatio(open, closes))
	f.Set("High_Close_Ratio", overClose(high, closes, true))
	f.Set("Low_Close_Ratio", overClose(low, closes, false))

	f.Set("ADX", ta.ADXSeries(high, low, closes, adxPeriod))
	f.Set("SuperTrend", ta.SuperTrendSeries(high, low, closes, superTrendPeriod, superTrendMult))

	rsi14 := f.Get(rsiName(14))
	for _, lag := range lagSteps {
		f.Set(lagName("Close_Lag", lag), ta.Shift(closes, lag))
		f.Set(lagName("Return_Lag", lag), ta.Shift(returns, lag))
		f.Set(lagName("RSI_Lag", lag), ta.Shift(rsi14, lag))
	}

	for _, p := range cumReturnPeriods {
		f.Set(lagName("Cumulative_Return", p), ta.RollingSum(returns, p))
	}

	f.Set("Bullish_Signal", compositeCount(f.Get("SMA_5"), f.Get("SMA_20"), rsi14, macdDiff, true))
	f.Set("Bearish_Signal", compositeCount(f.Get("SMA_5"), f.Get("SMA_20"), rsi14, macdDiff, false))

	volRatio := f.Get("Volume_Ratio")
	vol20 := f.Get(volatilityName(20))
	vpt := make([]float64, n)
	for i := range vpt {
		vpt[i] = volRatio[i] * vol20[i]
	}
	f.Set("Volume_Price_Trend", vpt)

	high52 := ta.RollingMax(closes, yearWindow)
	low52 := ta.RollingMin(closes, yearWindow)
	f.Set("High_52W", high52)
	f.Set("Low_52W", low52)
	pos52 := make([]float64, n)
	for i := range pos52 {
		pos52[i] = (closes[i] - low52[i]) / (high52[i] - low52[i] + ta.Eps)
	}
	f.Set("Position_52W", pos52)

	for _, p := range statPeriods {
		f.Set(lagName("Skewness", p), ta.RollingSkew(returns, p))
		f.Set(lagName("Kurtosis", p), ta.RollingKurt(returns, p))
	}

	return f, regimes
}

func (e *Engine) bollinger(f *Frame, closes []float64, period int) {
	n := len(closes)
	mid := ta.RollingMean(closes, period)
	std := ta.RollingStd(closes, period)
	upper := make([]float64, n)
	lower := make([]float64, n)
	width := make([]float64, n)
	position := make([]float64, n)
	squeeze := make([]float64, n)
	for i := 0; i < n; i++ {
		upper[i] = mid[i] + 2*std[i]
		lower[i] = mid[i] - 2*std[i]
		width[i] = upper[i] - lower[i]
		position[i] = clamp01((closes[i] - lower[i]) / (width[i] + ta.Eps))
		squeeze[i] = width[i] / (closes[i] * 0.02)
	}
	prefix := bbName(period)
	f.Set(prefix+"_Upper", upper)
	f.Set(prefix+"_Lower", lower)
	f.Set(prefix+"_Mid", mid)
	f.Set(prefix+"_Width", width)
	f.Set(prefix+"_Position", position)
	f.Set(prefix+"_Squeeze", squeeze)
}

// FeatureColumns derives the model feature schema from a frame: every
// column in insertion order minus the excluded raw/target columns.
func FeatureColumns(f *Frame) []string {
	var out []string
	for _, name := range f.Columns() {
		if excludedColumns[name] {
			continue
		}
		out = append(out, name)
	}
	return out
}

func logReturns(closes []float64) []float64 {
	out := ta.NaNs(len(closes))
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			continue
		}
		out[i] = math.Log(closes[i] / closes[i-1])
	}
	return out
}

// crossSeries is the sign-based crossover indicator: +1 when fast is
// strictly above slow, −1 otherwise. Never 0.
func crossSeries(fast, slow []float64) []float64 {
	out := make([]float64, len(fast))
	for i := range fast {
		if fast[i] > slow[i] {
			out[i] = 1
		} else {
			out[i] = -1
		}
	}
	return out
}

func ratioSeries(num, den []float64) []float64 {
	out := make([]float64, len(num))
	for i := range num {
		out[i] = num[i] / (den[i] + ta.Eps)
	}
	return out
}

func rocSeries(closes []float64, period int) []float64 {
	shifted := ta.Shift(closes, period)
	out := ta.NaNs(len(closes))
	for i := range closes {
		if math.IsNaN(shifted[i]) {
			continue
		}
		out[i] = (closes[i] - shifted[i]) / (shifted[i] + ta.Eps) * 100
	}
	return out
}

func highLowRange(high, low []float64) []float64 {
	out := make([]float64, len(high))
	for i := range high {
		out[i] = (high[i] - low[i]) / low[i]
	}
	return out
}

func closePosition(high, low, closes []float64) []float64 {
	out := make([]float64, len(high))
	for i := range high {
		out[i] = (closes[i] - low[i]) / (high[i] - low[i] + ta.Eps)
	}
	return out
}

func openCloseRatio(open, closes []float64) []float64 {
	out := make([]float64, len(open))
	for i := range open {
		out[i] = (closes[i] - open[i]) / (open[i] + ta.Eps)
	}
	return out
}

func overClose(side, closes []float64, above bool) []float64 {
	out := make([]float64, len(side))
	for i := range side {
		if above {
			out[i] = (side[i] - closes[i]) / closes[i]
		} else {
			out[i] = (closes[i] - side[i]) / closes[i]
		}
	}
	return out
}

// compositeCount counts 0–3 simultaneous bullish (or bearish)
// conditions: MA cross direction, RSI threshold side, MACD-diff sign.
func compositeCount(sma5, sma20, rsi14, macdDiff []float64, bullish bool) []float64 {
	out := make([]float64, len(sma5))
	for i := range sma5 {
		count := 0.0
		if bullish {
			if sma5[i] > sma20[i] {
				count++
			}
			if rsi14[i] < 70 {
				count++
			}
			if macdDiff[i] > 0 {
				count++
			}
		} else {
			if sma5[i] < sma20[i] {
				count++
			}
			if rsi14[i] > 30 {
				count++
			}
			if macdDiff[i] < 0 {
				count++
			}
		}
		out[i] = count
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func smaName(p int) string { return lagName("SMA", p) }
func emaName(p int) string { return lagName("EMA", p) }
func rsiName(p int) string { return lagName("RSI", p) }
func rocName(p int) string { return lagName("ROC", p) }
func bbName(p int) string  { return lagName("BB", p) }

func momentumName(p int) string   { return lagName("Momentum", p) }
func volatilityName(p int) string { return lagName("Volatility", p) }

func lagName(prefix string, n int) string {
	return prefix + "_" + strconv.Itoa(n)
}

func priceRatioName(kind string, p int) string {
	return "Price_" + kind + strconv.Itoa(p) + "_Ratio"
}
