package features

import (
	"math"
	"testing"
	"time"

	"stocksense/internal/domain"
)

// makeBars builds a deterministic synthetic daily series with a gentle
// uptrend and a repeating intraday range.
func makeBars(symbol string, n int, dailyDrift float64) domain.Series {
	out := make(domain.Series, 0, n)
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	price := 100.0
	for i := 0; i < n; i++ {
		price *= 1 + dailyDrift
		wiggle := 0.4 + 0.2*math.Sin(float64(i)/3)
		out = append(out, domain.Bar{
			Symbol: symbol,
			Date:   start.AddDate(0, 0, i),
			Open:   price * (1 - 0.002),
			High:   price * (1 + 0.004 + wiggle/1000),
			Low:    price * (1 - 0.005 - wiggle/1000),
			Close:  price,
			Volume: 1_000_000 + float64(i%7)*25_000,
		})
	}
	return out
}

func makeFlatBars(symbol string, n int) domain.Series {
	out := make(domain.Series, 0, n)
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		out = append(out, domain.Bar{
			Symbol: symbol,
			Date:   start.AddDate(0, 0, i),
			Open:   50, High: 50, Low: 50, Close: 50,
			Volume: 500_000,
		})
	}
	return out
}

func TestAugmentDefinedOutsideWarmUp(t *testing.T) {
	series := makeBars("OGDC", SequenceLength+DefaultHorizonDays+252, 0.002)
	engine := NewEngine()
	frame, regimes := engine.Augment(series)

	if len(regimes) != len(series) {
		t.Fatalf("regime length %d != series length %d", len(regimes), len(series))
	}
	cols := FeatureColumns(frame)
	if len(cols) < 90 {
		t.Fatalf("expected the full indicator bank, got %d feature columns", len(cols))
	}
	// Every row past the longest lag warm-up must be fully defined.
	for i := tabularWarmUp; i < frame.Len(); i++ {
		if !frame.RowDefined(cols, i) {
			for _, c := range cols {
				v := frame.Get(c)[i]
				if math.IsNaN(v) || math.IsInf(v, 0) {
					t.Fatalf("column %s undefined at row %d", c, i)
				}
			}
		}
	}
}

func TestAugmentExcludesRawColumnsFromFeatures(t *testing.T) {
	series := makeBars("PPL", 120, 0.001)
	frame, _ := NewEngine().Augment(series)
	for _, c := range FeatureColumns(frame) {
		switch c {
		case "Open", "High", "Low", "Close", "Volume", "Annual_Return", "Annual_Volatility":
			t.Fatalf("raw column %s leaked into the feature set", c)
		}
	}
}

func TestCrossoversAreAlwaysSigned(t *testing.T) {
	series := makeBars("LUCK", 300, 0.0015)
	frame, _ := NewEngine().Augment(series)
	for _, name := range []string{"SMA_5_20_Cross", "SMA_20_50_Cross", "SMA_50_200_Cross", "SMA_5_200_Cross"} {
		for i, v := range frame.Get(name) {
			if v != 1 && v != -1 {
				t.Fatalf("%s[%d]=%v, want strictly ±1", name, i, v)
			}
		}
	}
}

func TestOscillatorBounds(t *testing.T) {
	series := makeBars("HBL", 400, 0.002)
	frame, _ := NewEngine().Augment(series)
	for _, name := range []string{"RSI_5", "RSI_14", "RSI_21", "Stoch_K", "Stoch_D", "ADX"} {
		for i, v := range frame.Get(name) {
			if v < 0 || v > 100+1e-9 {
				t.Fatalf("%s[%d]=%v outside [0,100]", name, i, v)
			}
		}
	}
}

func TestBollingerPositionClamped(t *testing.T) {
	series := makeBars("MCB", 300, 0.004)
	frame, _ := NewEngine().Augment(series)
	for _, name := range []string{"BB_20_Position", "BB_50_Position"} {
		for i, v := range frame.Get(name) {
			if v < 0 || v > 1 {
				t.Fatalf("%s[%d]=%v outside [0,1]", name, i, v)
			}
		}
	}
}

func TestFlatSeriesNeutralIndicators(t *testing.T) {
	series := makeFlatBars("FFC", 300)
	frame, regimes := NewEngine().Augment(series)

	rsi := frame.Get("RSI_14")
	for i, v := range rsi {
		if v != 50 {
			t.Fatalf("RSI_14[%d]=%v, want 50 on a flat series", i, v)
		}
	}
	width := frame.Get("BB_20_Width")
	last := len(width) - 1
	if math.Abs(width[last]) > 1e-9 {
		t.Fatalf("expected near-zero Bollinger width, got %v", width[last])
	}
	if regimes[last] != domain.RegimeSideways {
		t.Fatalf("expected Sideways regime on a flat series, got %s", regimes[last])
	}
}

func TestRegimeDetectionOnTrendingSeries(t *testing.T) {
	up := makeBars("ENGRO", 400, 0.002)
	_, regimes := NewEngine().Augment(up)
	if regimes[len(regimes)-1] != domain.RegimeBull {
		t.Fatalf("expected Bull regime for a 0.2%%/day uptrend, got %s", regimes[len(regimes)-1])
	}

	down := makeBars("NBP", 400, -0.002)
	_, regimes = NewEngine().Augment(down)
	if regimes[len(regimes)-1] != domain.RegimeBear {
		t.Fatalf("expected Bear regime for a downtrend, got %s", regimes[len(regimes)-1])
	}
}

func TestAugmentDoesNotMutateInput(t *testing.T) {
	series := makeBars("UBL", 100, 0.001)
	before := series[41]
	NewEngine().Augment(series)
	if series[41] != before {
		t.Fatal("input series mutated by indicator computation")
	}
}
