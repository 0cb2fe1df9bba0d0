package features

import (
	"math"
	"time"

	"stocksense/internal/domain"
	"stocksense/internal/ta"
)

const (
	// DefaultHorizonDays is the forward shift used to build the target.
	DefaultHorizonDays = 7
	// SequenceLength is the fixed window length fed to the sequence model.
	SequenceLength = 60
	// tabularWarmUp covers the longest lag feature (30 steps of the
	// return series, which itself starts at index 1).
	tabularWarmUp = 32
)

// State is the fitted, per-symbol pipeline state owned by the symbol's
// model bundle: the feature schema derived at training time and both
// scalers. It is created once during training and reused unchanged at
// inference.
type State struct {
	Symbol         string          `json:"symbol"`
	HorizonDays    int             `json:"horizon_days"`
	FeatureSpec    string          `json:"feature_spec"`
	FeatureColumns []string        `json:"feature_columns"`
	Tabular        *StandardScaler `json:"tabular_scaler"`
	Sequence       *MinMaxScaler   `json:"sequence_scaler"`
}

// TabularDataset is the standardized training matrix for the tree
// models, with absolute future close prices as the target.
type TabularDataset struct {
	Columns      []string
	X            [][]float64
	Target       []float64
	TargetReturn []float64
	Dates        []time.Time
	Regimes      []domain.Regime
}

// SequenceDataset holds overlapping scaled price windows, each labeled
// with the next day's scaled price.
type SequenceDataset struct {
	Windows [][]float64
	Labels  []float64
}

// Pipeline assembles both model-ready representations. The tabular and
// sequence paths are kept strictly separate: each has its own scaler.
type Pipeline struct {
	engine  *Engine
	horizon int
}

func NewPipeline(horizonDays int) *Pipeline {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	return &Pipeline{engine: NewEngine(), horizon: horizonDays}
}

func (p *Pipeline) HorizonDays() int { return p.horizon }

// Fit runs both paths in training mode: it computes indicators, builds
// the shifted target, drops rows with undefined values, fits both
// scalers from the full available history and derives the feature
// schema. The returned State must accompany the trained models.
func (p *Pipeline) Fit(symbol string, series domain.Series) (*State, *TabularDataset, *SequenceDataset, error) {
	need := SequenceLength + p.horizon + 1
	if len(series) < need {
		return nil, nil, nil, &domain.InsufficientHistoryError{Symbol: symbol, Need: need, Have: len(series)}
	}

	frame, regimes := p.engine.Augment(series)
	cols := FeatureColumns(frame)
	closes := series.Closes()

	target, targetReturn := p.buildTarget(closes)

	var (
		rows    [][]float64
		targets []float64
		rets    []float64
		dates   []time.Time
		regs    []domain.Regime
	)
	for i := 0; i < frame.Len(); i++ {
		if math.IsNaN(target[i]) || !frame.RowDefined(cols, i) {
			continue
		}
		rows = append(rows, frame.Row(cols, i))
		targets = append(targets, target[i])
		rets = append(rets, targetReturn[i])
		dates = append(dates, series[i].Date)
		regs = append(regs, regimes[i])
	}
	if len(rows) == 0 {
		return nil, nil, nil, &domain.InsufficientHistoryError{Symbol: symbol, Need: tabularWarmUp + p.horizon, Have: len(series)}
	}

	tabScaler, err := FitStandard(rows)
	if err != nil {
		return nil, nil, nil, err
	}
	tabular := &TabularDataset{
		Columns:      cols,
		X:            tabScaler.TransformAll(rows),
		Target:       targets,
		TargetReturn: rets,
		Dates:        dates,
		Regimes:      regs,
	}

	seqScaler, err := FitMinMax(closes)
	if err != nil {
		return nil, nil, nil, err
	}
	sequence := buildSequences(seqScaler.TransformAll(closes))

	state := &State{
		Symbol:         symbol,
		HorizonDays:    p.horizon,
		FeatureSpec:    featureSpecVersion,
		FeatureColumns: cols,
		Tabular:        tabScaler,
		Sequence:       seqScaler,
	}
	return state, tabular, sequence, nil
}

// InferenceRow reproduces the stored feature schema for the most recent
// bar and standardizes it with the fitted scaler.
func (p *Pipeline) InferenceRow(series domain.Series, st *State) ([]float64, error) {
	if st == nil || st.Tabular == nil {
		return nil, &domain.MissingScalerError{Symbol: symbolOf(st, series)}
	}
	if len(series) < tabularWarmUp {
		return nil, &domain.InsufficientHistoryError{Symbol: st.Symbol, Need: tabularWarmUp, Have: len(series)}
	}

	frame, _ := p.engine.Augment(series)
	if missing := frame.Missing(st.FeatureColumns); len(missing) > 0 {
		return nil, &domain.FeatureMismatchError{Symbol: st.Symbol, Missing: missing}
	}
	last := frame.Len() - 1
	if !frame.RowDefined(st.FeatureColumns, last) {
		return nil, &domain.InsufficientHistoryError{Symbol: st.Symbol, Need: tabularWarmUp, Have: len(series)}
	}
	return st.Tabular.Transform(frame.Row(st.FeatureColumns, last)), nil
}

// InferenceWindow scales exactly the most recent SequenceLength closes
// with the stored min-max scaler, producing one input window.
func (p *Pipeline) InferenceWindow(series domain.Series, st *State) ([]float64, error) {
	if st == nil || st.Sequence == nil {
		return nil, &domain.MissingScalerError{Symbol: symbolOf(st, series)}
	}
	if len(series) < SequenceLength {
		return nil, &domain.InsufficientHistoryError{Symbol: st.Symbol, Need: SequenceLength, Have: len(series)}
	}
	closes := series.Closes()
	return st.Sequence.TransformAll(closes[len(closes)-SequenceLength:]), nil
}

// Snapshot extracts the latest indicator values the signal logic needs.
func (p *Pipeline) Snapshot(series domain.Series) (domain.TechnicalSnapshot, error) {
	if len(series) == 0 {
		return domain.TechnicalSnapshot{}, &domain.InsufficientHistoryError{Symbol: "", Need: 1, Have: 0}
	}
	frame, regimes := p.engine.Augment(series)
	last := frame.Len() - 1
	return domain.TechnicalSnapshot{
		RSI14:         zeroIfNaN(frame.Get("RSI_14")[last]),
		VolatilityPct: zeroIfNaN(frame.Get("Volatility_20")[last]),
		MACDDiff:      zeroIfNaN(frame.Get("MACD_Diff")[last]),
		BBPosition:    zeroIfNaN(frame.Get("BB_20_Position")[last]),
		ADX:           zeroIfNaN(frame.Get("ADX")[last]),
		MarketRegime:  regimes[last],
	}, nil
}

func (p *Pipeline) buildTarget(closes []float64) ([]float64, []float64) {
	n := len(closes)
	target := ta.NaNs(n)
	targetReturn := ta.NaNs(n)
	for i := 0; i+p.horizon < n; i++ {
		target[i] = closes[i+p.horizon]
		targetReturn[i] = (target[i] - closes[i]) / (closes[i] + ta.Eps) * 100
	}
	return target, targetReturn
}

func buildSequences(scaled []float64) *SequenceDataset {
	ds := &SequenceDataset{}
	for i := 0; i+SequenceLength < len(scaled); i++ {
		win := make([]float64, SequenceLength)
		copy(win, scaled[i:i+SequenceLength])
		ds.Windows = append(ds.Windows, win)
		ds.Labels = append(ds.Labels, scaled[i+SequenceLength])
	}
	return ds
}

func symbolOf(st *State, series domain.Series) string {
	if st != nil && st.Symbol != "" {
		return st.Symbol
	}
	if len(series) > 0 {
		return series[0].Symbol
	}
	return ""
}

func zeroIfNaN(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
