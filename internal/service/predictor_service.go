package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"stocksense/internal/cache"
	"stocksense/internal/domain"
	"stocksense/internal/ml/ensemble"
	"stocksense/internal/ml/training"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

const keptModelVersions = 5

type BarRepository interface {
	ListBars(ctx context.Context, symbol string, limit int) (domain.Series, error)
	ListBarsInRange(ctx context.Context, symbol string, from, to time.Time) (domain.Series, error)
	UpsertBars(ctx context.Context, bars domain.Series) error
}

type ModelRegistry interface {
	NextVersion(ctx context.Context, symbol string) (int, error)
	Insert(ctx context.Context, artifact domain.ModelArtifact) (*domain.ModelArtifact, error)
	GetLatest(ctx context.Context, symbol string) (*domain.ModelArtifact, error)
	ListLatest(ctx context.Context) ([]domain.ModelArtifact, error)
	Prune(ctx context.Context, symbol string, keep int) (int64, error)
}

type Trainer interface {
	Train(ctx context.Context, symbol string, series domain.Series) (*training.Result, error)
}

type Predictor interface {
	Predict(ctx context.Context, bundle *ensemble.Bundle, series domain.Series) (*domain.PredictionRecord, error)
}

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// PredictorService owns the live bundle per symbol and serves every
// prediction and training request. Bundles swap atomically under the
// lock; in-flight predictions finish on the bundle they started with.
type PredictorService struct {
	tracer    trace.Tracer
	bars      BarRepository
	registry  ModelRegistry
	trainer   Trainer
	predictor Predictor
	redis     RedisClient

	historyBars int

	mu      sync.RWMutex
	bundles map[string]*ensemble.Bundle
}

// TrainSummary reports one batch training run.
type TrainSummary struct {
	Trained  []string          `json:"trained"`
	Failed   map[string]string `json:"failed,omitempty"`
	Duration time.Duration     `json:"duration"`
}

// PredictionBatch reports one sweep over the index: the records that
// could be produced plus the per-symbol errors for the rest.
type PredictionBatch struct {
	Records []*domain.PredictionRecord `json:"predictions"`
	Failed  map[string]string          `json:"failed,omitempty"`
}

// ModelInfo describes the live bundle of one symbol.
type ModelInfo struct {
	Symbol      string                 `json:"symbol"`
	TrainedAt   time.Time              `json:"trained_at"`
	HorizonDays int                    `json:"horizon_days"`
	FeatureSpec string                 `json:"feature_spec"`
	Metrics     domain.SubModelMetrics `json:"metrics"`
	HasDirModel bool                   `json:"has_direction_model"`
}

func NewPredictorService(
	tracer trace.Tracer,
	bars BarRepository,
	registry ModelRegistry,
	trainer Trainer,
	predictor Predictor,
	redisClient RedisClient,
	historyBars int,
) *PredictorService {
	if historyBars <= 0 {
		historyBars = 1250
	}
	return &PredictorService{
		tracer:      tracer,
		bars:        bars,
		registry:    registry,
		trainer:     trainer,
		predictor:   predictor,
		redis:       redisClient,
		historyBars: historyBars,
		bundles:     make(map[string]*ensemble.Bundle),
	}
}

// LoadFromRegistry restores the newest persisted bundle of every symbol,
// so restarts do not require retraining.
func (s *PredictorService) LoadFromRegistry(ctx context.Context) error {
	_, span := s.tracer.Start(ctx, "predictor-service.load-from-registry")
	defer span.End()

	if s.registry == nil {
		return nil
	}
	artifacts, err := s.registry.ListLatest(ctx)
	if err != nil {
		return err
	}
	loaded := 0
	for _, a := range artifacts {
		bundle, err := ensemble.UnmarshalBundle(a.ArtifactBlob)
		if err != nil {
			log.Printf("skipping stored model for %s v%d: %v", a.Symbol, a.Version, err)
			continue
		}
		s.swapBundle(a.Symbol, bundle)
		loaded++
	}
	log.Printf("Restored %d model bundles from registry", loaded)
	return nil
}

// TrainSymbol retrains one symbol from its full stored history, persists
// the new bundle and makes it live.
func (s *PredictorService) TrainSymbol(ctx context.Context, symbol string) (*training.Result, error) {
	ctx, span := s.tracer.Start(ctx, "predictor-service.train-symbol")
	defer span.End()

	if !domain.IsSupportedSymbol(symbol) {
		return nil, fmt.Errorf("unsupported symbol: %s", symbol)
	}
	series, err := s.bars.ListBars(ctx, symbol, s.historyBars)
	if err != nil {
		return nil, err
	}
	result, err := s.trainer.Train(ctx, symbol, series)
	if err != nil {
		return nil, err
	}

	if s.registry != nil {
		if err := s.persist(ctx, symbol, result.Bundle); err != nil {
			return nil, fmt.Errorf("persist bundle for %s: %w", symbol, err)
		}
	}
	s.swapBundle(symbol, result.Bundle)
	s.invalidatePrediction(ctx, symbol)
	return result, nil
}

// TrainAll retrains the whole universe, continuing past per-symbol
// failures.
func (s *PredictorService) TrainAll(ctx context.Context) (*TrainSummary, error) {
	ctx, span := s.tracer.Start(ctx, "predictor-service.train-all")
	defer span.End()

	start := time.Now()
	summary := &TrainSummary{Failed: make(map[string]string)}
	for _, symbol := range domain.KSE30Symbols {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if _, err := s.TrainSymbol(ctx, symbol); err != nil {
			log.Printf("training %s failed: %v", symbol, err)
			summary.Failed[symbol] = err.Error()
			continue
		}
		summary.Trained = append(summary.Trained, symbol)
	}
	summary.Duration = time.Since(start)
	if len(summary.Failed) == 0 {
		summary.Failed = nil
	}
	log.Printf("Batch training finished: %d trained, %d failed in %s",
		len(summary.Trained), len(summary.Failed), summary.Duration.Round(time.Second))
	return summary, nil
}

// Predict serves one symbol's prediction, preferring the short-lived
// cache. Identical bars always produce the identical record, so caching
// never changes an answer, only its latency.
func (s *PredictorService) Predict(ctx context.Context, symbol string) (*domain.PredictionRecord, error) {
	ctx, span := s.tracer.Start(ctx, "predictor-service.predict")
	defer span.End()

	if !domain.IsSupportedSymbol(symbol) {
		return nil, fmt.Errorf("unsupported symbol: %s", symbol)
	}

	if s.redis != nil {
		cached, err := s.getPredictionCache(ctx, symbol)
		if err != nil {
			log.Printf("redis cache read error: %v", err)
		}
		if cached != nil {
			return cached, nil
		}
	}

	bundle, err := s.bundle(ctx, symbol)
	if err != nil {
		return nil, err
	}
	series, err := s.bars.ListBars(ctx, symbol, s.historyBars)
	if err != nil {
		return nil, err
	}
	record, err := s.predictor.Predict(ctx, bundle, series)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		if err := s.setPredictionCache(ctx, record); err != nil {
			log.Printf("redis cache write error for %s: %v", symbol, err)
		}
	}
	return record, nil
}

// PredictAll predicts every tracked symbol. Failures never abort the
// sweep: each failing symbol is reported in the batch next to the
// records that succeeded.
func (s *PredictorService) PredictAll(ctx context.Context) (*PredictionBatch, error) {
	ctx, span := s.tracer.Start(ctx, "predictor-service.predict-all")
	defer span.End()

	batch := &PredictionBatch{}
	for _, symbol := range domain.KSE30Symbols {
		if err := ctx.Err(); err != nil {
			return batch, err
		}
		record, err := s.Predict(ctx, symbol)
		if err != nil {
			log.Printf("prediction failed for %s: %v", symbol, err)
			if batch.Failed == nil {
				batch.Failed = make(map[string]string)
			}
			batch.Failed[symbol] = err.Error()
			continue
		}
		batch.Records = append(batch.Records, record)
	}
	return batch, nil
}

// TopRecommendations ranks current BUY and SELL signals by confidence.
func (s *PredictorService) TopRecommendations(ctx context.Context, limit int) (*domain.Recommendations, error) {
	ctx, span := s.tracer.Start(ctx, "predictor-service.top-recommendations")
	defer span.End()

	if limit <= 0 {
		limit = 5
	}
	batch, err := s.PredictAll(ctx)
	if err != nil {
		return nil, err
	}

	rec := &domain.Recommendations{}
	for _, r := range batch.Records {
		switch r.Signal {
		case domain.SignalBuy:
			rec.Buys = append(rec.Buys, r)
		case domain.SignalSell:
			rec.Sells = append(rec.Sells, r)
		}
	}
	sort.SliceStable(rec.Buys, func(i, j int) bool { return rec.Buys[i].Confidence > rec.Buys[j].Confidence })
	sort.SliceStable(rec.Sells, func(i, j int) bool { return rec.Sells[i].Confidence > rec.Sells[j].Confidence })
	if len(rec.Buys) > limit {
		rec.Buys = rec.Buys[:limit]
	}
	if len(rec.Sells) > limit {
		rec.Sells = rec.Sells[:limit]
	}
	return rec, nil
}

// ModelInfos lists the live bundles.
func (s *PredictorService) ModelInfos(ctx context.Context) []ModelInfo {
	_, span := s.tracer.Start(ctx, "predictor-service.model-infos")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]ModelInfo, 0, len(s.bundles))
	for symbol, b := range s.bundles {
		infos = append(infos, ModelInfo{
			Symbol:      symbol,
			TrainedAt:   b.TrainedAt,
			HorizonDays: b.State.HorizonDays,
			FeatureSpec: b.State.FeatureSpec,
			Metrics:     b.Metrics,
			HasDirModel: b.Direction != nil,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Symbol < infos[j].Symbol })
	return infos
}

// IngestBars stores fresh bars and drops the affected cached prediction.
func (s *PredictorService) IngestBars(ctx context.Context, bars domain.Series) error {
	ctx, span := s.tracer.Start(ctx, "predictor-service.ingest-bars")
	defer span.End()

	bars = domain.NormalizeSeries(bars)
	for _, b := range bars {
		if !domain.IsSupportedSymbol(b.Symbol) {
			return fmt.Errorf("unsupported symbol: %s", b.Symbol)
		}
	}
	if err := s.bars.UpsertBars(ctx, bars); err != nil {
		return err
	}
	seen := make(map[string]struct{})
	for _, b := range bars {
		if _, ok := seen[b.Symbol]; ok {
			continue
		}
		seen[b.Symbol] = struct{}{}
		s.invalidatePrediction(ctx, b.Symbol)
	}
	return nil
}

// History lists a symbol's stored daily bars between two dates inclusive.
func (s *PredictorService) History(ctx context.Context, symbol string, from, to time.Time) (domain.Series, error) {
	ctx, span := s.tracer.Start(ctx, "predictor-service.history")
	defer span.End()

	if !domain.IsSupportedSymbol(symbol) {
		return nil, fmt.Errorf("unsupported symbol: %s", symbol)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("invalid range: %s is after %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	}
	return s.bars.ListBarsInRange(ctx, symbol, from, to)
}

func (s *PredictorService) bundle(ctx context.Context, symbol string) (*ensemble.Bundle, error) {
	s.mu.RLock()
	bundle, ok := s.bundles[symbol]
	s.mu.RUnlock()
	if ok {
		return bundle, nil
	}

	// Not live yet: try the registry before reporting the symbol as
	// untrained.
	if s.registry != nil {
		artifact, err := s.registry.GetLatest(ctx, symbol)
		if err != nil {
			return nil, err
		}
		if artifact != nil {
			restored, err := ensemble.UnmarshalBundle(artifact.ArtifactBlob)
			if err == nil {
				s.swapBundle(symbol, restored)
				return restored, nil
			}
			log.Printf("stored model for %s v%d unusable: %v", symbol, artifact.Version, err)
		}
	}
	return nil, &domain.MissingModelError{Symbol: symbol}
}

func (s *PredictorService) persist(ctx context.Context, symbol string, bundle *ensemble.Bundle) error {
	blob, err := bundle.MarshalBinary()
	if err != nil {
		return err
	}
	version, err := s.registry.NextVersion(ctx, symbol)
	if err != nil {
		return err
	}
	metricsJSON, _ := json.Marshal(bundle.Metrics)
	if _, err := s.registry.Insert(ctx, domain.ModelArtifact{
		Symbol:         symbol,
		Version:        version,
		HorizonDays:    bundle.State.HorizonDays,
		FeatureSpec:    bundle.State.FeatureSpec,
		TrainedAt:      bundle.TrainedAt,
		MetricsJSON:    string(metricsJSON),
		ArtifactFormat: ensemble.ArtifactFormat,
		ArtifactBlob:   blob,
	}); err != nil {
		return err
	}
	if _, err := s.registry.Prune(ctx, symbol, keptModelVersions); err != nil {
		log.Printf("pruning old models for %s: %v", symbol, err)
	}
	return nil
}

func (s *PredictorService) swapBundle(symbol string, bundle *ensemble.Bundle) {
	s.mu.Lock()
	s.bundles[symbol] = bundle
	s.mu.Unlock()
}

func (s *PredictorService) invalidatePrediction(ctx context.Context, symbol string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, cache.PredictionKey(symbol)).Err(); err != nil {
		log.Printf("redis cache delete error for %s: %v", symbol, err)
	}
}

func (s *PredictorService) setPredictionCache(ctx context.Context, record *domain.PredictionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, cache.PredictionKey(record.Symbol), data, cache.PredictionTTL).Err()
}

func (s *PredictorService) getPredictionCache(ctx context.Context, symbol string) (*domain.PredictionRecord, error) {
	data, err := s.redis.Get(ctx, cache.PredictionKey(symbol)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var record domain.PredictionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}
