package ensemble

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"stocksense/internal/domain"
	"stocksense/internal/ml/features"
	"stocksense/internal/ta"

	"go.opentelemetry.io/otel/trace"
)

const (
	confidenceFloor = 25.0
	confidenceCeil  = 95.0
	signalFloor     = 15.0

	// Base return threshold in percent, widened with realized volatility.
	baseThresholdPct = 1.2
	volThresholdGain = 0.4
)

type Predictor struct {
	tracer   trace.Tracer
	pipeline *features.Pipeline
}

func NewPredictor(tracer trace.Tracer, pipeline *features.Pipeline) *Predictor {
	return &Predictor{tracer: tracer, pipeline: pipeline}
}

// Predict runs the full inference path for one symbol: feature
// extraction, the three sub-models, the weighted blend, confidence
// scoring and the signal decision. The same bars always yield the same
// record.
func (p *Predictor) Predict(ctx context.Context, bundle *Bundle, series domain.Series) (*domain.PredictionRecord, error) {
	_, span := p.tracer.Start(ctx, "ensemble.predict")
	defer span.End()

	if bundle == nil || bundle.State == nil {
		return nil, errors.New("no trained bundle")
	}
	series = domain.NormalizeSeries(series)
	if len(series) == 0 {
		return nil, &domain.InsufficientHistoryError{Symbol: bundle.State.Symbol, Need: features.SequenceLength, Have: 0}
	}

	row, err := p.pipeline.InferenceRow(series, bundle.State)
	if err != nil {
		return nil, err
	}
	window, err := p.pipeline.InferenceWindow(series, bundle.State)
	if err != nil {
		return nil, err
	}
	snapshot, err := p.pipeline.Snapshot(series)
	if err != nil {
		return nil, err
	}

	lstmPrice := bundle.State.Sequence.Inverse(bundle.LSTM.Predict(window))
	treeA := bundle.TreeA.Predict(row)
	treeB := bundle.TreeB.Predict(row)

	w := bundle.Weights
	ensemblePrice := w[0]*lstmPrice + w[1]*treeA + w[2]*treeB
	if !finite(lstmPrice) || !finite(treeA) || !finite(treeB) || !finite(ensemblePrice) || ensemblePrice <= 0 {
		return nil, fmt.Errorf("degenerate sub-model output for %s: lstm=%v treeA=%v treeB=%v", bundle.State.Symbol, lstmPrice, treeA, treeB)
	}

	spread := predictionSpread(lstmPrice, treeA, treeB)
	agreement := (1 - math.Min(spread, 1)) * 100

	last := series.Last()
	currentPrice := last.Close
	returnPct := (ensemblePrice - currentPrice) / (currentPrice + ta.Eps) * 100

	confidence := confidenceScore(bundle.Metrics.AvgR2(), spread, snapshot.VolatilityPct, snapshot.MarketRegime)
	action, signalConfidence, reasoning := decideSignal(returnPct, confidence, snapshot)

	record := &domain.PredictionRecord{
		Symbol:          bundle.State.Symbol,
		CurrentPrice:    currentPrice,
		PredictedPrice:  round2(ensemblePrice),
		PredictedReturn: round2(returnPct),
		HorizonDays:     bundle.State.HorizonDays,
		CurrentDate:     last.Date,
		PredictionDate:  last.Date.AddDate(0, 0, bundle.State.HorizonDays),
		Signal:          action,
		Confidence:      round2(signalConfidence),
		Reasoning:       reasoning,
		Technical:       snapshot,
		ModelPredictions: domain.SubModelPredictions{
			LSTM:     round2(lstmPrice),
			TreeA:    round2(treeA),
			TreeB:    round2(treeB),
			Ensemble: round2(ensemblePrice),
		},
		ModelMetrics:      bundle.Metrics,
		EnsembleAgreement: round2(agreement),
		DirectionProbUp:   0.5,
	}
	if bundle.Direction != nil {
		record.DirectionProbUp = round2(bundle.Direction.ProbUp(row))
	}
	return record, nil
}

// predictionSpread is the sub-model range relative to their plain mean.
func predictionSpread(a, b, c float64) float64 {
	hi := math.Max(a, math.Max(b, c))
	lo := math.Min(a, math.Min(b, c))
	return (hi - lo) / ((a+b+c)/3 + ta.Eps)
}

// confidenceScore maps average cross-validated R² to a base score, then
// adjusts for sub-model agreement, realized volatility and regime.
func confidenceScore(avgR2, spread, dailyVol float64, regime domain.Regime) float64 {
	var base float64
	switch {
	case avgR2 < 0:
		base = 35
	case avgR2 < 0.1:
		base = 45
	case avgR2 < 0.2:
		base = 55
	case avgR2 < 0.3:
		base = 65
	default:
		base = math.Min(85, 55+avgR2*80)
	}

	agreementBoost := (1 - math.Min(spread, 1)) * 20

	var volPenalty float64
	switch {
	case dailyVol < 0.005:
		volPenalty = 0
	case dailyVol < 0.015:
		volPenalty = 2
	case dailyVol < 0.03:
		volPenalty = 5
	default:
		volPenalty = 10
	}

	var regimeAdj float64
	switch regime {
	case domain.RegimeBull:
		regimeAdj = 2
	case domain.RegimeBear:
		regimeAdj = -2
	}

	score := base + agreementBoost - volPenalty + regimeAdj
	return math.Min(confidenceCeil, math.Max(confidenceFloor, score))
}

// decideSignal applies the volatility-adjusted threshold and RSI gates.
// HOLD signals carry reduced confidence; every signal keeps a floor so
// downstream ranking never divides by zero weight.
func decideSignal(returnPct, confidence float64, snap domain.TechnicalSnapshot) (domain.SignalAction, float64, string) {
	threshold := baseThresholdPct + snap.VolatilityPct*100*volThresholdGain
	rsi := snap.RSI14

	var (
		action  = domain.SignalHold
		sigConf = confidence * 0.6
		reasons []string
	)

	switch {
	case returnPct > 2*threshold && confidence > 40 && rsi < 75:
		action = domain.SignalBuy
		sigConf = math.Min(confidenceCeil, confidence+5)
		reasons = append(reasons,
			fmt.Sprintf("expected return %+.2f%% clears twice the %.2f%% threshold", returnPct, threshold),
			fmt.Sprintf("RSI %.1f below strong-buy cutoff 75", rsi))
	case returnPct > threshold && confidence > 40 && rsi < 65:
		action = domain.SignalBuy
		sigConf = confidence
		reasons = append(reasons,
			fmt.Sprintf("expected return %+.2f%% clears the %.2f%% threshold", returnPct, threshold),
			fmt.Sprintf("RSI %.1f below overbought cutoff 65", rsi))
	case returnPct < -2*threshold && confidence > 40 && rsi > 25:
		action = domain.SignalSell
		sigConf = math.Min(confidenceCeil, confidence+5)
		reasons = append(reasons,
			fmt.Sprintf("expected return %+.2f%% breaches twice the -%.2f%% threshold", returnPct, threshold),
			fmt.Sprintf("RSI %.1f above strong-sell cutoff 25", rsi))
	case returnPct < -threshold && confidence > 40 && rsi > 35:
		action = domain.SignalSell
		sigConf = confidence
		reasons = append(reasons,
			fmt.Sprintf("expected return %+.2f%% breaches the -%.2f%% threshold", returnPct, threshold),
			fmt.Sprintf("RSI %.1f above oversold cutoff 35", rsi))
	default:
		reasons = append(reasons, holdReason(returnPct, threshold, confidence, rsi))
	}

	reasons = append(reasons, fmt.Sprintf("%s regime, daily volatility %.2f%%", snap.MarketRegime, snap.VolatilityPct*100))
	return action, math.Max(signalFloor, sigConf), strings.Join(reasons, "; ")
}

func holdReason(returnPct, threshold, confidence, rsi float64) string {
	switch {
	case math.Abs(returnPct) <= threshold:
		return fmt.Sprintf("expected return %+.2f%% inside the ±%.2f%% band", returnPct, threshold)
	case confidence <= 40:
		return fmt.Sprintf("confidence %.1f too low to act on %+.2f%%", confidence, returnPct)
	case returnPct > 0:
		return fmt.Sprintf("RSI %.1f overbought, skipping buy on %+.2f%%", rsi, returnPct)
	default:
		return fmt.Sprintf("RSI %.1f oversold, skipping sell on %+.2f%%", rsi, returnPct)
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
