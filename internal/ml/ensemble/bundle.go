// Package ensemble combines the three price sub-models into a single
// forecast, scores confidence from their cross-validated quality and
// disagreement, and derives the discrete trading signal.
package ensemble

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"stocksense/internal/domain"
	"stocksense/internal/ml/features"
	"stocksense/internal/ml/models/direction"
	"stocksense/internal/ml/models/gbrt"
	"stocksense/internal/ml/models/lstm"
)

// ArtifactFormat tags serialized bundles in the registry.
const ArtifactFormat = "json/stocksense-bundle-v1"

// DefaultWeights blends the sub-model forecasts in the order
// LSTM, tree A, tree B.
var DefaultWeights = [3]float64{0.35, 0.35, 0.30}

// Bundle is everything needed to predict for one symbol: the fitted
// feature state, all sub-models and the training metrics backing the
// confidence score. The direction classifier is optional.
type Bundle struct {
	State     *features.State
	LSTM      *lstm.Model
	TreeA     *gbrt.Model
	TreeB     *gbrt.Model
	Direction *direction.Model
	Weights   [3]float64
	Metrics   domain.SubModelMetrics
	TrainedAt time.Time
}

type bundleArtifact struct {
	State     *features.State        `json:"state"`
	LSTM      []byte                 `json:"lstm"`
	TreeA     []byte                 `json:"tree_a"`
	TreeB     []byte                 `json:"tree_b"`
	Direction []byte                 `json:"direction,omitempty"`
	Weights   [3]float64             `json:"weights"`
	Metrics   domain.SubModelMetrics `json:"metrics"`
	TrainedAt time.Time              `json:"trained_at"`
}

func (b *Bundle) MarshalBinary() ([]byte, error) {
	if b == nil || b.State == nil || b.LSTM == nil || b.TreeA == nil || b.TreeB == nil {
		return nil, errors.New("incomplete bundle")
	}
	lstmBlob, err := b.LSTM.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal sequence model: %w", err)
	}
	treeABlob, err := b.TreeA.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal tree A: %w", err)
	}
	treeBBlob, err := b.TreeB.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal tree B: %w", err)
	}
	a := bundleArtifact{
		State:     b.State,
		LSTM:      lstmBlob,
		TreeA:     treeABlob,
		TreeB:     treeBBlob,
		Weights:   b.Weights,
		Metrics:   b.Metrics,
		TrainedAt: b.TrainedAt,
	}
	if b.Direction != nil {
		dirBlob, err := b.Direction.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("marshal direction model: %w", err)
		}
		a.Direction = dirBlob
	}
	return json.Marshal(a)
}

func UnmarshalBundle(blob []byte) (*Bundle, error) {
	if len(blob) == 0 {
		return nil, errors.New("empty bundle artifact")
	}
	var a bundleArtifact
	if err := json.Unmarshal(blob, &a); err != nil {
		return nil, err
	}
	if a.State == nil {
		return nil, errors.New("bundle artifact missing pipeline state")
	}
	lstmModel, err := lstm.UnmarshalBinary(a.LSTM)
	if err != nil {
		return nil, fmt.Errorf("restore sequence model: %w", err)
	}
	treeA, err := gbrt.UnmarshalBinary(a.TreeA)
	if err != nil {
		return nil, fmt.Errorf("restore tree A: %w", err)
	}
	treeB, err := gbrt.UnmarshalBinary(a.TreeB)
	if err != nil {
		return nil, fmt.Errorf("restore tree B: %w", err)
	}
	b := &Bundle{
		State:     a.State,
		LSTM:      lstmModel,
		TreeA:     treeA,
		TreeB:     treeB,
		Weights:   a.Weights,
		Metrics:   a.Metrics,
		TrainedAt: a.TrainedAt,
	}
	if b.Weights == ([3]float64{}) {
		b.Weights = DefaultWeights
	}
	if len(a.Direction) > 0 {
		dir, err := direction.UnmarshalBinary(a.Direction)
		if err != nil {
			return nil, fmt.Errorf("restore direction model: %w", err)
		}
		b.Direction = dir
	}
	return b, nil
}
