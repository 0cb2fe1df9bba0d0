package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"stocksense/internal/domain"
	"stocksense/internal/ml/ensemble"
	"stocksense/internal/ml/features"
	"stocksense/internal/ml/models/gbrt"
	"stocksense/internal/ml/models/lstm"
	"stocksense/internal/ml/training"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

func TestPredictorService_PredictCacheHit(t *testing.T) {
	t.Parallel()

	fr := newFakeRedis()
	record := &domain.PredictionRecord{Symbol: "OGDC", PredictedPrice: 101.5, Signal: domain.SignalBuy}
	data, _ := json.Marshal(record)
	_ = fr.Set(context.Background(), "prediction:OGDC", data, 0)

	predictor := &fakePredictor{}
	svc := NewPredictorService(testTracer, &fakeBarRepo{}, nil, &fakeTrainer{}, predictor, fr, 0)

	got, err := svc.Predict(context.Background(), "OGDC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.PredictedPrice != record.PredictedPrice {
		t.Fatalf("expected cached record, got %+v", got)
	}
	if predictor.calls != 0 {
		t.Fatalf("cache hit must not run inference, got %d calls", predictor.calls)
	}
}

func TestPredictorService_PredictUnsupportedSymbol(t *testing.T) {
	t.Parallel()

	svc := NewPredictorService(testTracer, &fakeBarRepo{}, nil, &fakeTrainer{}, &fakePredictor{}, nil, 0)
	if _, err := svc.Predict(context.Background(), "AAPL"); err == nil {
		t.Fatal("expected error for unsupported symbol")
	}
}

func TestPredictorService_PredictWithoutModel(t *testing.T) {
	t.Parallel()

	svc := NewPredictorService(testTracer, &fakeBarRepo{}, nil, &fakeTrainer{}, &fakePredictor{}, nil, 0)
	_, err := svc.Predict(context.Background(), "OGDC")
	var missing *domain.MissingModelError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingModelError, got %v", err)
	}
}

func TestPredictorService_PredictAllReportsFailures(t *testing.T) {
	t.Parallel()

	bundle := tinyBundle(t, "OGDC")
	trainer := &fakeTrainer{result: &training.Result{Symbol: "OGDC", Bundle: bundle}}
	predictor := &fakePredictor{record: &domain.PredictionRecord{Symbol: "OGDC", Signal: domain.SignalBuy}}
	svc := NewPredictorService(testTracer, &fakeBarRepo{series: tinySeries("OGDC", 120)}, &fakeRegistry{}, trainer, predictor, nil, 0)
	if _, err := svc.TrainSymbol(context.Background(), "OGDC"); err != nil {
		t.Fatalf("TrainSymbol: %v", err)
	}

	batch, err := svc.PredictAll(context.Background())
	if err != nil {
		t.Fatalf("PredictAll: %v", err)
	}
	if len(batch.Records) != 1 || batch.Records[0].Symbol != "OGDC" {
		t.Fatalf("expected the one trained symbol to succeed, got %+v", batch.Records)
	}
	// Every untrained symbol is reported, not dropped.
	if len(batch.Failed) != len(domain.KSE30Symbols)-1 {
		t.Fatalf("expected %d failures, got %d", len(domain.KSE30Symbols)-1, len(batch.Failed))
	}
	if _, ok := batch.Failed["OGDC"]; ok {
		t.Fatal("trained symbol must not be listed as failed")
	}
	if msg := batch.Failed["UBL"]; msg == "" {
		t.Fatalf("missing failure entry for untrained symbol: %+v", batch.Failed)
	}
}

func TestPredictorService_History(t *testing.T) {
	t.Parallel()

	svc := NewPredictorService(testTracer, &fakeBarRepo{series: tinySeries("OGDC", 30)}, nil, &fakeTrainer{}, &fakePredictor{}, nil, 0)

	from := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	bars, err := svc.History(context.Background(), "OGDC", from, to)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(bars) == 0 {
		t.Fatal("expected bars in range")
	}
	for _, b := range bars {
		if b.Date.Before(from) || b.Date.After(to) {
			t.Fatalf("bar outside requested range: %v", b.Date)
		}
	}

	if _, err := svc.History(context.Background(), "AAPL", from, to); err == nil {
		t.Fatal("expected error for unsupported symbol")
	}
	if _, err := svc.History(context.Background(), "OGDC", to, from); err == nil {
		t.Fatal("expected error for inverted range")
	}
}

func TestPredictorService_PredictRestoresFromRegistry(t *testing.T) {
	t.Parallel()

	bundle := tinyBundle(t, "OGDC")
	blob, err := bundle.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal bundle: %v", err)
	}
	registry := &fakeRegistry{
		latest: map[string]*domain.ModelArtifact{
			"OGDC": {Symbol: "OGDC", Version: 3, ArtifactBlob: blob},
		},
	}
	predictor := &fakePredictor{record: &domain.PredictionRecord{Symbol: "OGDC", Signal: domain.SignalHold}}
	svc := NewPredictorService(testTracer, &fakeBarRepo{series: tinySeries("OGDC", 120)}, registry, &fakeTrainer{}, predictor, nil, 0)

	if _, err := svc.Predict(context.Background(), "OGDC"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Predict(context.Background(), "OGDC"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if registry.getLatestCalls != 1 {
		t.Fatalf("restored bundle should stay live, registry hit %d times", registry.getLatestCalls)
	}
	if predictor.calls != 2 {
		t.Fatalf("expected two inference calls, got %d", predictor.calls)
	}
}

func TestPredictorService_TrainSymbolPersistsAndGoesLive(t *testing.T) {
	t.Parallel()

	bundle := tinyBundle(t, "OGDC")
	trainer := &fakeTrainer{result: &training.Result{Symbol: "OGDC", Bundle: bundle}}
	registry := &fakeRegistry{}
	fr := newFakeRedis()
	fr.data["prediction:OGDC"] = []byte("stale")
	predictor := &fakePredictor{record: &domain.PredictionRecord{Symbol: "OGDC"}}
	svc := NewPredictorService(testTracer, &fakeBarRepo{series: tinySeries("OGDC", 120)}, registry, trainer, predictor, fr, 0)

	if _, err := svc.TrainSymbol(context.Background(), "OGDC"); err != nil {
		t.Fatalf("TrainSymbol: %v", err)
	}
	if registry.insertCalls != 1 {
		t.Fatalf("expected one registry insert, got %d", registry.insertCalls)
	}
	inserted := registry.inserted[0]
	if inserted.Version != 1 || inserted.ArtifactFormat != ensemble.ArtifactFormat {
		t.Fatalf("unexpected artifact: version=%d format=%q", inserted.Version, inserted.ArtifactFormat)
	}
	if len(inserted.ArtifactBlob) == 0 {
		t.Fatal("artifact blob is empty")
	}
	if _, ok := fr.data["prediction:OGDC"]; ok {
		t.Fatal("stale cached prediction not invalidated")
	}
	// The new bundle is live without touching the registry again.
	if _, err := svc.Predict(context.Background(), "OGDC"); err != nil {
		t.Fatalf("Predict after training: %v", err)
	}
	if registry.getLatestCalls != 0 {
		t.Fatal("prediction should use the live bundle, not the registry")
	}
}

func TestPredictorService_TrainAllCollectsFailures(t *testing.T) {
	t.Parallel()

	bundle := tinyBundle(t, "any")
	trainer := &fakeTrainer{
		result:  &training.Result{Bundle: bundle},
		failFor: map[string]error{"OGDC": errors.New("not enough bars")},
	}
	svc := NewPredictorService(testTracer, &fakeBarRepo{series: tinySeries("X", 120)}, nil, trainer, &fakePredictor{}, nil, 0)

	summary, err := svc.TrainAll(context.Background())
	if err != nil {
		t.Fatalf("TrainAll: %v", err)
	}
	if len(summary.Trained) != len(domain.KSE30Symbols)-1 {
		t.Fatalf("expected %d trained, got %d", len(domain.KSE30Symbols)-1, len(summary.Trained))
	}
	if _, ok := summary.Failed["OGDC"]; !ok {
		t.Fatalf("expected OGDC in failures, got %v", summary.Failed)
	}
}

func TestPredictorService_TopRecommendationsRanksByConfidence(t *testing.T) {
	t.Parallel()

	records := map[string]*domain.PredictionRecord{}
	for i, symbol := range domain.KSE30Symbols {
		r := &domain.PredictionRecord{Symbol: symbol, Signal: domain.SignalHold, Confidence: 50}
		switch i {
		case 0:
			r.Signal, r.Confidence = domain.SignalBuy, 62
		case 1:
			r.Signal, r.Confidence = domain.SignalBuy, 81
		case 2:
			r.Signal, r.Confidence = domain.SignalBuy, 74
		case 3:
			r.Signal, r.Confidence = domain.SignalSell, 68
		}
		records[symbol] = r
	}
	predictor := &fakePredictor{records: records}
	svc := NewPredictorService(testTracer, &fakeBarRepo{series: tinySeries("X", 120)}, nil, &fakeTrainer{}, predictor, nil, 0)
	for _, symbol := range domain.KSE30Symbols {
		svc.swapBundle(symbol, tinyStateBundle(symbol))
	}

	rec, err := svc.TopRecommendations(context.Background(), 2)
	if err != nil {
		t.Fatalf("TopRecommendations: %v", err)
	}
	if len(rec.Buys) != 2 || rec.Buys[0].Confidence != 81 || rec.Buys[1].Confidence != 74 {
		t.Fatalf("unexpected buy ranking: %+v", rec.Buys)
	}
	if len(rec.Sells) != 1 || rec.Sells[0].Confidence != 68 {
		t.Fatalf("unexpected sell ranking: %+v", rec.Sells)
	}
}

func TestPredictorService_ModelInfos(t *testing.T) {
	t.Parallel()

	svc := NewPredictorService(testTracer, &fakeBarRepo{}, nil, &fakeTrainer{}, &fakePredictor{}, nil, 0)
	svc.swapBundle("UBL", tinyStateBundle("UBL"))
	svc.swapBundle("HBL", tinyStateBundle("HBL"))

	infos := svc.ModelInfos(context.Background())
	if len(infos) != 2 {
		t.Fatalf("expected 2 infos, got %d", len(infos))
	}
	if infos[0].Symbol != "HBL" || infos[1].Symbol != "UBL" {
		t.Fatalf("infos not sorted by symbol: %+v", infos)
	}
}

func TestPredictorService_IngestBarsRejectsUnknownSymbol(t *testing.T) {
	t.Parallel()

	repo := &fakeBarRepo{}
	svc := NewPredictorService(testTracer, repo, nil, &fakeTrainer{}, &fakePredictor{}, nil, 0)
	err := svc.IngestBars(context.Background(), domain.Series{{Symbol: "TSLA", Date: time.Now()}})
	if err == nil {
		t.Fatal("expected error for unknown symbol")
	}
	if repo.upsertCalls != 0 {
		t.Fatal("nothing should be stored on validation failure")
	}
}

// tinyBundle trains a minimal but real bundle so artifact round-trips
// exercise the actual codec.
func tinyBundle(t *testing.T, symbol string) *ensemble.Bundle {
	t.Helper()
	series := tinySeries(symbol, 150)
	pipe := features.NewPipeline(features.DefaultHorizonDays)
	state, tabular, sequence, err := pipe.Fit(symbol, series)
	if err != nil {
		t.Fatalf("pipeline fit: %v", err)
	}
	treeOpts := gbrt.ConfigA()
	treeOpts.Rounds = 10
	treeA, err := gbrt.Train(tabular.X, tabular.Target, tabular.Columns, treeOpts, nil, nil)
	if err != nil {
		t.Fatalf("train tree A: %v", err)
	}
	treeB, err := gbrt.Train(tabular.X, tabular.Target, tabular.Columns, treeOpts, nil, nil)
	if err != nil {
		t.Fatalf("train tree B: %v", err)
	}
	seqOpts := lstm.DefaultTrainOptions()
	seqOpts.Hidden1, seqOpts.Hidden2, seqOpts.DenseUnits, seqOpts.Epochs = 3, 2, 2, 1
	seqModel, err := lstm.Train(sequence.Windows, sequence.Labels, seqOpts)
	if err != nil {
		t.Fatalf("train sequence model: %v", err)
	}
	return &ensemble.Bundle{
		State:     state,
		LSTM:      seqModel,
		TreeA:     treeA,
		TreeB:     treeB,
		Weights:   ensemble.DefaultWeights,
		TrainedAt: time.Now().UTC(),
	}
}

// tinyStateBundle is enough for the map-only paths that never marshal
// or run sub-models.
func tinyStateBundle(symbol string) *ensemble.Bundle {
	return &ensemble.Bundle{
		State:     &features.State{Symbol: symbol, HorizonDays: features.DefaultHorizonDays, FeatureSpec: "test"},
		TrainedAt: time.Now().UTC(),
	}
}

func tinySeries(symbol string, n int) domain.Series {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	series := make(domain.Series, n)
	for i := 0; i < n; i++ {
		price := 50 + 0.1*float64(i) + math.Sin(float64(i)/5)
		series[i] = domain.Bar{
			Symbol: symbol,
			Date:   start.AddDate(0, 0, i),
			Open:   price - 0.2,
			High:   price + 0.5,
			Low:    price - 0.5,
			Close:  price,
			Volume: 10_000,
		}
	}
	return series
}

type fakeBarRepo struct {
	series      domain.Series
	listErr     error
	upsertCalls int
}

func (f *fakeBarRepo) ListBars(_ context.Context, symbol string, _ int) (domain.Series, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.series, nil
}

func (f *fakeBarRepo) ListBarsInRange(_ context.Context, symbol string, from, to time.Time) (domain.Series, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out domain.Series
	for _, b := range f.series {
		if !b.Date.Before(from) && !b.Date.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBarRepo) UpsertBars(_ context.Context, bars domain.Series) error {
	f.upsertCalls++
	return nil
}

type fakeRegistry struct {
	latest         map[string]*domain.ModelArtifact
	inserted       []domain.ModelArtifact
	insertCalls    int
	getLatestCalls int
}

func (f *fakeRegistry) NextVersion(_ context.Context, symbol string) (int, error) {
	max := 0
	for _, a := range f.inserted {
		if a.Symbol == symbol && a.Version > max {
			max = a.Version
		}
	}
	return max + 1, nil
}

func (f *fakeRegistry) Insert(_ context.Context, artifact domain.ModelArtifact) (*domain.ModelArtifact, error) {
	f.insertCalls++
	f.inserted = append(f.inserted, artifact)
	return &artifact, nil
}

func (f *fakeRegistry) GetLatest(_ context.Context, symbol string) (*domain.ModelArtifact, error) {
	f.getLatestCalls++
	return f.latest[symbol], nil
}

func (f *fakeRegistry) ListLatest(_ context.Context) ([]domain.ModelArtifact, error) {
	var out []domain.ModelArtifact
	for _, a := range f.latest {
		out = append(out, *a)
	}
	return out, nil
}

func (f *fakeRegistry) Prune(_ context.Context, _ string, _ int) (int64, error) {
	return 0, nil
}

type fakeTrainer struct {
	result  *training.Result
	failFor map[string]error
}

func (f *fakeTrainer) Train(_ context.Context, symbol string, _ domain.Series) (*training.Result, error) {
	if err, ok := f.failFor[symbol]; ok {
		return nil, err
	}
	if f.result == nil {
		return nil, errors.New("no result configured")
	}
	r := *f.result
	r.Symbol = symbol
	return &r, nil
}

type fakePredictor struct {
	record  *domain.PredictionRecord
	records map[string]*domain.PredictionRecord
	calls   int
}

func (f *fakePredictor) Predict(_ context.Context, bundle *ensemble.Bundle, _ domain.Series) (*domain.PredictionRecord, error) {
	f.calls++
	if f.records != nil {
		if r, ok := f.records[bundle.State.Symbol]; ok {
			return r, nil
		}
	}
	if f.record != nil {
		return f.record, nil
	}
	return &domain.PredictionRecord{Symbol: bundle.State.Symbol, Signal: domain.SignalHold}, nil
}

type fakeRedis struct {
	data   map[string][]byte
	setErr error
	getErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string][]byte)}
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = append([]byte(nil), v...)
	case string:
		f.data[key] = []byte(v)
	default:
		bytes, _ := json.Marshal(v)
		f.data[key] = bytes
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	if v, ok := f.data[key]; ok {
		return redis.NewStringResult(string(v), nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	removed := int64(0)
	for _, key := range keys {
		if _, ok := f.data[key]; ok {
			delete(f.data, key)
			removed++
		}
	}
	return redis.NewIntResult(removed, nil)
}
