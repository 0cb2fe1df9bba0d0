// Package training fits a full model bundle per symbol: cross-validated
// gradient-boosted trees over the engineered feature matrix, the
// sequence model over scaled price windows, and the supplementary
// direction classifier.
package training

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"stocksense/internal/domain"
	"stocksense/internal/ml/ensemble"
	"stocksense/internal/ml/features"
	"stocksense/internal/ml/models/direction"
	"stocksense/internal/ml/models/gbrt"
	"stocksense/internal/ml/models/lstm"
	"stocksense/internal/ml/quality"
	"stocksense/internal/ta"

	"go.opentelemetry.io/otel/trace"
)

type BarSource interface {
	ListBars(ctx context.Context, symbol string, limit int) (domain.Series, error)
}

type Config struct {
	HorizonDays int
	CVFolds     int
	HistoryBars int
	// Sequence overrides the sequence-model hyperparameters when set.
	Sequence *lstm.TrainOptions
}

type Service struct {
	tracer   trace.Tracer
	bars     BarSource
	pipeline *features.Pipeline
	screener *quality.Screener
	cfg      Config
}

// Result summarizes one symbol's training run.
type Result struct {
	Symbol        string
	Bundle        *ensemble.Bundle
	SampleCount   int
	SequenceCount int
	DroppedRows   int
	Metrics       domain.SubModelMetrics
}

func NewService(tracer trace.Tracer, bars BarSource, cfg Config) *Service {
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = features.DefaultHorizonDays
	}
	if cfg.CVFolds <= 0 {
		cfg.CVFolds = 10
	}
	if cfg.HistoryBars <= 0 {
		cfg.HistoryBars = 1250
	}
	return &Service{
		tracer:   tracer,
		bars:     bars,
		pipeline: features.NewPipeline(cfg.HorizonDays),
		screener: quality.NewScreener(),
		cfg:      cfg,
	}
}

// Train fits every sub-model for one symbol from its bar history.
func (s *Service) Train(ctx context.Context, symbol string, series domain.Series) (*Result, error) {
	_, span := s.tracer.Start(ctx, "ml-training.train-symbol")
	defer span.End()

	series = domain.NormalizeSeries(series)
	state, tabular, sequence, err := s.pipeline.Fit(symbol, series)
	if err != nil {
		return nil, err
	}

	mask, dropped := s.screener.Screen(tabular.X)
	x := quality.Apply(mask, tabular.X)
	target := quality.Apply(mask, tabular.Target)
	targetReturn := quality.Apply(mask, tabular.TargetReturn)
	if dropped > 0 {
		log.Printf("training %s: screened out %d of %d rows", symbol, dropped, len(tabular.X))
	}

	treeA, metricsA, err := s.trainTree(x, target, tabular.Columns, gbrt.ConfigA())
	if err != nil {
		return nil, &domain.TrainingError{Symbol: symbol, Err: fmt.Errorf("tree A: %w", err)}
	}
	treeB, metricsB, err := s.trainTree(x, target, tabular.Columns, gbrt.ConfigB())
	if err != nil {
		return nil, &domain.TrainingError{Symbol: symbol, Err: fmt.Errorf("tree B: %w", err)}
	}

	seqModel, seqMetrics, err := s.trainSequence(sequence, state.Sequence)
	if err != nil {
		return nil, &domain.TrainingError{Symbol: symbol, Err: fmt.Errorf("sequence model: %w", err)}
	}

	// The direction classifier is best effort: a one-sided market
	// leaves it untrainable and the bundle simply omits it.
	dirModel, err := direction.Train(x, targetReturn, tabular.Columns, direction.DefaultTrainOptions())
	if err != nil {
		log.Printf("training %s: direction model skipped: %v", symbol, err)
		dirModel = nil
	}

	metrics := domain.SubModelMetrics{
		LSTMR2:    seqMetrics.r2,
		LSTMMAE:   seqMetrics.mae,
		TreeAR2:   metricsA.r2,
		TreeAMAE:  metricsA.mae,
		TreeAMAPE: metricsA.mape,
		TreeBR2:   metricsB.r2,
		TreeBMAE:  metricsB.mae,
		TreeBMAPE: metricsB.mape,
	}

	bundle := &ensemble.Bundle{
		State:     state,
		LSTM:      seqModel,
		TreeA:     treeA,
		TreeB:     treeB,
		Direction: dirModel,
		Weights:   ensemble.DefaultWeights,
		Metrics:   metrics,
		TrainedAt: time.Now().UTC(),
	}
	return &Result{
		Symbol:        symbol,
		Bundle:        bundle,
		SampleCount:   len(x),
		SequenceCount: len(sequence.Windows),
		DroppedRows:   dropped,
		Metrics:       metrics,
	}, nil
}

// TrainAll trains every symbol in order, collecting per-symbol failures
// instead of aborting the batch.
func (s *Service) TrainAll(ctx context.Context, symbols []string) ([]*Result, []error) {
	ctx, span := s.tracer.Start(ctx, "ml-training.train-all")
	defer span.End()

	results := make([]*Result, 0, len(symbols))
	var failures []error
	for _, symbol := range symbols {
		if ctx.Err() != nil {
			failures = append(failures, ctx.Err())
			break
		}
		series, err := s.bars.ListBars(ctx, symbol, s.cfg.HistoryBars)
		if err != nil {
			failures = append(failures, &domain.TrainingError{Symbol: symbol, Err: err})
			continue
		}
		result, err := s.Train(ctx, symbol, series)
		if err != nil {
			failures = append(failures, wrapTraining(symbol, err))
			continue
		}
		results = append(results, result)
	}
	return results, failures
}

type evalMetrics struct {
	r2, mae, mape float64
}

// trainTree cross-validates one tree configuration with forward-chaining
// folds, then refits on the full history with a chronological validation
// tail driving early stopping.
func (s *Service) trainTree(x [][]float64, target []float64, cols []string, opts gbrt.TrainOptions) (*gbrt.Model, evalMetrics, error) {
	metrics := s.crossValidate(x, target, cols, opts)

	trainX, trainY, valX, valY := tailSplit(x, target, 0.15)
	model, err := gbrt.Train(trainX, trainY, cols, opts, valX, valY)
	if err != nil {
		return nil, evalMetrics{}, err
	}
	return model, metrics, nil
}

// crossValidate runs forward-chaining folds: fold k trains on the first
// k blocks and scores on block k+1, so every score is strictly
// out-of-sample in time.
func (s *Service) crossValidate(x [][]float64, target []float64, cols []string, opts gbrt.TrainOptions) evalMetrics {
	folds := s.cfg.CVFolds
	block := len(x) / (folds + 1)
	if block < 10 {
		folds = len(x)/10 - 1
		if folds < 2 {
			// Too little history to cross-validate; score a single
			// chronological hold-out instead.
			trainX, trainY, valX, valY := tailSplit(x, target, 0.2)
			model, err := gbrt.Train(trainX, trainY, cols, opts, nil, nil)
			if err != nil {
				return evalMetrics{}
			}
			return score(valY, model.PredictBatch(valX))
		}
		block = len(x) / (folds + 1)
	}

	var sum evalMetrics
	counted := 0
	for k := 1; k <= folds; k++ {
		trainEnd := block * k
		testEnd := block * (k + 1)
		if k == folds {
			testEnd = len(x)
		}
		model, err := gbrt.Train(x[:trainEnd], target[:trainEnd], cols, opts, nil, nil)
		if err != nil {
			continue
		}
		m := score(target[trainEnd:testEnd], model.PredictBatch(x[trainEnd:testEnd]))
		sum.r2 += m.r2
		sum.mae += m.mae
		sum.mape += m.mape
		counted++
	}
	if counted == 0 {
		return evalMetrics{}
	}
	return evalMetrics{
		r2:   sum.r2 / float64(counted),
		mae:  sum.mae / float64(counted),
		mape: sum.mape / float64(counted),
	}
}

// trainSequence fits the sequence model and scores it on the trailing
// windows in price space, inverting the min-max scaler first.
func (s *Service) trainSequence(ds *features.SequenceDataset, scaler *features.MinMaxScaler) (*lstm.Model, evalMetrics, error) {
	opts := lstm.DefaultTrainOptions()
	if s.cfg.Sequence != nil {
		opts = *s.cfg.Sequence
	}
	model, err := lstm.Train(ds.Windows, ds.Labels, opts)
	if err != nil {
		return nil, evalMetrics{}, err
	}

	holdoutStart := int(float64(len(ds.Windows)) * (1 - opts.ValFraction))
	if holdoutStart >= len(ds.Windows) {
		holdoutStart = len(ds.Windows) - 1
	}
	actual := make([]float64, 0, len(ds.Windows)-holdoutStart)
	predicted := make([]float64, 0, len(ds.Windows)-holdoutStart)
	for i := holdoutStart; i < len(ds.Windows); i++ {
		actual = append(actual, scaler.Inverse(ds.Labels[i]))
		predicted = append(predicted, scaler.Inverse(model.Predict(ds.Windows[i])))
	}
	return model, score(actual, predicted), nil
}

func tailSplit(x [][]float64, y []float64, fraction float64) ([][]float64, []float64, [][]float64, []float64) {
	cut := int(float64(len(x)) * (1 - fraction))
	if cut < 1 {
		cut = 1
	}
	if cut >= len(x) {
		cut = len(x) - 1
	}
	return x[:cut], y[:cut], x[cut:], y[cut:]
}

func score(actual, predicted []float64) evalMetrics {
	n := len(actual)
	if n == 0 || len(predicted) != n {
		return evalMetrics{}
	}
	mean := 0.0
	for _, v := range actual {
		mean += v
	}
	mean /= float64(n)

	var ssRes, ssTot, mae, mape float64
	for i := 0; i < n; i++ {
		d := actual[i] - predicted[i]
		ssRes += d * d
		t := actual[i] - mean
		ssTot += t * t
		mae += math.Abs(d)
		mape += math.Abs(d) / (math.Abs(actual[i]) + ta.Eps) * 100
	}

	r2 := 0.0
	if ssTot > 0 {
		r2 = 1 - ssRes/ssTot
	}
	return evalMetrics{r2: r2, mae: mae / float64(n), mape: mape / float64(n)}
}

func wrapTraining(symbol string, err error) error {
	var te *domain.TrainingError
	if errors.As(err, &te) {
		return err
	}
	return &domain.TrainingError{Symbol: symbol, Err: err}
}
