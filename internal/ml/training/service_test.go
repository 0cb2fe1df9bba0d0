package training

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"stocksense/internal/domain"
	"stocksense/internal/ml/models/lstm"

	"go.opentelemetry.io/otel/trace"
)

type fakeBarSource struct {
	series map[string]domain.Series
	err    map[string]error
}

func (f *fakeBarSource) ListBars(_ context.Context, symbol string, _ int) (domain.Series, error) {
	if err, ok := f.err[symbol]; ok {
		return nil, err
	}
	return f.series[symbol], nil
}

func syntheticSeries(symbol string, n int) domain.Series {
	start := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	series := make(domain.Series, n)
	for i := 0; i < n; i++ {
		price := 80 + 0.15*float64(i) + 3*math.Sin(float64(i)/8) + 0.8*math.Cos(float64(i)/3)
		series[i] = domain.Bar{
			Symbol: symbol,
			Date:   start.AddDate(0, 0, i),
			Open:   price - 0.4,
			High:   price + 1.1,
			Low:    price - 1.2,
			Close:  price,
			Volume: 500_000 + float64((i*37)%9000),
		}
	}
	return series
}

func newTestService(bars BarSource) *Service {
	seq := lstm.DefaultTrainOptions()
	seq.Hidden1 = 4
	seq.Hidden2 = 3
	seq.DenseUnits = 3
	seq.Epochs = 3
	return NewService(trace.NewNoopTracerProvider().Tracer("test"), bars, Config{CVFolds: 4, Sequence: &seq})
}

func TestTrainProducesCompleteBundle(t *testing.T) {
	svc := newTestService(&fakeBarSource{})
	series := syntheticSeries("HUBC", 280)

	result, err := svc.Train(context.Background(), "HUBC", series)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	b := result.Bundle
	if b == nil || b.LSTM == nil || b.TreeA == nil || b.TreeB == nil || b.State == nil {
		t.Fatal("bundle is missing sub-models or pipeline state")
	}
	if b.State.Symbol != "HUBC" {
		t.Fatalf("state bound to wrong symbol: %q", b.State.Symbol)
	}
	if result.SampleCount == 0 || result.SequenceCount == 0 {
		t.Fatalf("empty datasets: samples=%d sequences=%d", result.SampleCount, result.SequenceCount)
	}
	if b.Weights != [3]float64{0.35, 0.35, 0.30} {
		t.Fatalf("unexpected ensemble weights: %v", b.Weights)
	}
	if b.TrainedAt.IsZero() {
		t.Fatal("TrainedAt not stamped")
	}
	// The trees fit in-sample history with a held-out tail; on a smooth
	// series their MAE should be small relative to the price level.
	if result.Metrics.TreeAMAE <= 0 || result.Metrics.TreeAMAE > 50 {
		t.Fatalf("implausible tree A MAE: %v", result.Metrics.TreeAMAE)
	}
}

func TestTrainRejectsShortHistory(t *testing.T) {
	svc := newTestService(&fakeBarSource{})
	_, err := svc.Train(context.Background(), "MARI", syntheticSeries("MARI", 40))
	var insufficient *domain.InsufficientHistoryError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientHistoryError, got %v", err)
	}
	if insufficient.Have != 40 {
		t.Fatalf("error should report available bars, got %d", insufficient.Have)
	}
}

func TestTrainAllCollectsPerSymbolFailures(t *testing.T) {
	bars := &fakeBarSource{
		series: map[string]domain.Series{
			"HUBC": syntheticSeries("HUBC", 280),
			"MARI": syntheticSeries("MARI", 30),
		},
		err: map[string]error{
			"EFERT": errors.New("feed unavailable"),
		},
	}
	svc := newTestService(bars)

	results, failures := svc.TrainAll(context.Background(), []string{"HUBC", "MARI", "EFERT"})
	if len(results) != 1 || results[0].Symbol != "HUBC" {
		t.Fatalf("expected one successful result for HUBC, got %d", len(results))
	}
	if len(failures) != 2 {
		t.Fatalf("expected two failures, got %d: %v", len(failures), failures)
	}
	var te *domain.TrainingError
	if !errors.As(failures[1], &te) || te.Symbol != "EFERT" {
		t.Fatalf("fetch failure should be wrapped as a TrainingError for EFERT, got %v", failures[1])
	}
}

func TestTrainAllStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := newTestService(&fakeBarSource{series: map[string]domain.Series{"HUBC": syntheticSeries("HUBC", 280)}})

	results, failures := svc.TrainAll(ctx, []string{"HUBC"})
	if len(results) != 0 {
		t.Fatalf("expected no results after cancellation, got %d", len(results))
	}
	if len(failures) != 1 || !errors.Is(failures[0], context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", failures)
	}
}

func TestScoreMetrics(t *testing.T) {
	m := score([]float64{1, 2, 3, 4}, []float64{1, 2, 3, 4})
	if m.r2 != 1 || m.mae != 0 {
		t.Fatalf("perfect fit should score r2=1 mae=0, got %+v", m)
	}
	m = score([]float64{2, 2, 2}, []float64{1, 2, 3})
	if m.r2 != 0 {
		t.Fatalf("constant actuals should yield r2=0, got %v", m.r2)
	}
	if math.Abs(m.mae-2.0/3.0) > 1e-9 {
		t.Fatalf("unexpected MAE %v", m.mae)
	}
}
