package domain

import "time"

// Regime is the coarse market-trend classification derived from the
// trailing annual return.
type Regime string

const (
	RegimeBull     Regime = "Bull"
	RegimeBear     Regime = "Bear"
	RegimeSideways Regime = "Sideways"
)

// SignalAction is the discrete trading signal emitted for a prediction.
type SignalAction string

const (
	SignalBuy  SignalAction = "BUY"
	SignalSell SignalAction = "SELL"
	SignalHold SignalAction = "HOLD"
)

// TechnicalSnapshot is the subset of indicator values used by the signal
// logic, reported alongside each prediction.
type TechnicalSnapshot struct {
	RSI14         float64 `json:"rsi_14"`
	VolatilityPct float64 `json:"volatility"`
	MACDDiff      float64 `json:"macd_diff"`
	BBPosition    float64 `json:"bb_position"`
	ADX           float64 `json:"adx"`
	MarketRegime  Regime  `json:"market_regime"`
}

// SubModelPredictions holds the three raw point forecasts plus the
// combined ensemble price.
type SubModelPredictions struct {
	LSTM     float64 `json:"lstm"`
	TreeA    float64 `json:"tree_a"`
	TreeB    float64 `json:"tree_b"`
	Ensemble float64 `json:"ensemble"`
}

// SubModelMetrics records the cross-validated quality of each sub-model
// at training time.
type SubModelMetrics struct {
	LSTMR2    float64 `json:"lstm_r2"`
	TreeAR2   float64 `json:"tree_a_r2"`
	TreeBR2   float64 `json:"tree_b_r2"`
	TreeAMAE  float64 `json:"tree_a_mae"`
	TreeBMAE  float64 `json:"tree_b_mae"`
	TreeAMAPE float64 `json:"tree_a_mape"`
	TreeBMAPE float64 `json:"tree_b_mape"`
	LSTMMAE   float64 `json:"lstm_mae"`
}

// AvgR2 is the average sub-model coefficient of determination used as
// the base of the confidence score.
func (m SubModelMetrics) AvgR2() float64 {
	return (m.LSTMR2 + m.TreeAR2 + m.TreeBR2) / 3
}

// PredictionRecord is the ephemeral output of one inference call. It is
// recomputed on demand and never persisted.
type PredictionRecord struct {
	Symbol            string              `json:"symbol"`
	CurrentPrice      float64             `json:"current_price"`
	PredictedPrice    float64             `json:"predicted_price"`
	PredictedReturn   float64             `json:"predicted_return"`
	HorizonDays       int                 `json:"prediction_horizon_days"`
	CurrentDate       time.Time           `json:"current_date"`
	PredictionDate    time.Time           `json:"prediction_date"`
	Signal            SignalAction        `json:"signal"`
	Confidence        float64             `json:"confidence"`
	Reasoning         string              `json:"reasoning"`
	Technical         TechnicalSnapshot   `json:"technical_indicators"`
	ModelPredictions  SubModelPredictions `json:"model_predictions"`
	ModelMetrics      SubModelMetrics     `json:"model_metrics"`
	EnsembleAgreement float64             `json:"ensemble_agreement"`
	DirectionProbUp   float64             `json:"direction_prob_up"`
}

// ModelArtifact is one persisted, versioned model bundle for a symbol.
// The blob round-trips all sub-models, both scalers and the metrics
// record; the registry treats it as opaque.
type ModelArtifact struct {
	ID             int64
	Symbol         string
	Version        int
	HorizonDays    int
	FeatureSpec    string
	TrainedAt      time.Time
	MetricsJSON    string
	ArtifactFormat string
	ArtifactBlob   []byte
	CreatedAt      time.Time
}

// Recommendations groups the highest-confidence BUY and SELL predictions.
type Recommendations struct {
	Buys  []*PredictionRecord `json:"top_buys"`
	Sells []*PredictionRecord `json:"top_sells"`
}
