// Package direction wraps a gradient-boosted classifier that estimates
// the probability of a positive return over the prediction horizon. It
// supplements the price ensemble: the probability is reported next to
// the point forecast but never blended into it.
package direction

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"math"

	"github.com/rmera/boo"
	"github.com/rmera/boo/utils"
)

type TrainOptions struct {
	Rounds       int
	LearningRate float64
	MaxDepth     int
}

func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		Rounds:       60,
		LearningRate: 0.08,
		MaxDepth:     4,
	}
}

type artifact struct {
	FeatureNames []string `json:"feature_names"`
	ModelText    string   `json:"model_text"`
}

type Model struct {
	featureNames []string
	boost        *boo.MultiClass
}

// Train fits an up/down classifier. Returns are thresholded at zero:
// class 1 means the horizon return is positive.
func Train(samples [][]float64, horizonReturns []float64, featureNames []string, opts TrainOptions) (*Model, error) {
	if len(samples) == 0 || len(samples) != len(horizonReturns) {
		return nil, errors.New("invalid training dataset")
	}
	if len(samples[0]) == 0 {
		return nil, errors.New("empty feature vectors")
	}
	if len(featureNames) != len(samples[0]) {
		return nil, errors.New("feature name count does not match feature vectors")
	}

	labels := make([]int, len(horizonReturns))
	classSet := make(map[int]struct{}, 2)
	for i, r := range horizonReturns {
		if r > 0 {
			labels[i] = 1
		}
		classSet[labels[i]] = struct{}{}
	}
	if len(classSet) < 2 {
		return nil, errors.New("direction model requires both up and down samples")
	}

	if opts.Rounds <= 0 {
		opts.Rounds = DefaultTrainOptions().Rounds
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = DefaultTrainOptions().LearningRate
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultTrainOptions().MaxDepth
	}

	o := boo.DefaultXOptions()
	o.Rounds = opts.Rounds
	o.LearningRate = opts.LearningRate
	o.MaxDepth = opts.MaxDepth
	o.Verbose = false
	o.EarlyStop = 0

	data := &utils.DataBunch{
		Data:   samples,
		Labels: labels,
		Keys:   featureNames,
	}
	model := boo.NewMultiClass(data, o)
	if model == nil {
		return nil, errors.New("failed to train direction model")
	}
	return &Model{
		featureNames: append([]string(nil), featureNames...),
		boost:        model,
	}, nil
}

// ProbUp returns the probability that the horizon return is positive.
func (m *Model) ProbUp(sample []float64) float64 {
	if m == nil || m.boost == nil {
		return 0.5
	}
	probs := m.boost.PredictSingle(sample)
	labels := m.boost.ClassLabels()
	for i := range labels {
		if labels[i] == 1 {
			return clamp01(probs[i])
		}
	}
	if len(probs) == 0 {
		return 0.5
	}
	return clamp01(probs[len(probs)-1])
}

func (m *Model) FeatureNames() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.featureNames))
	copy(out, m.featureNames)
	return out
}

func (m *Model) MarshalBinary() ([]byte, error) {
	if m == nil || m.boost == nil {
		return nil, errors.New("nil model")
	}
	var buf bytes.Buffer
	if err := boo.JSONMultiClass(m.boost, "softmax", &buf); err != nil {
		return nil, err
	}
	return json.Marshal(artifact{
		FeatureNames: m.featureNames,
		ModelText:    buf.String(),
	})
}

func UnmarshalBinary(blob []byte) (*Model, error) {
	if len(blob) == 0 {
		return nil, errors.New("empty artifact")
	}
	var a artifact
	if err := json.Unmarshal(blob, &a); err != nil {
		return nil, err
	}
	reader := bufio.NewReader(bytes.NewReader([]byte(a.ModelText)))
	model, err := boo.UnJSONMultiClass(reader)
	if err != nil {
		return nil, err
	}
	return &Model{
		featureNames: append([]string(nil), a.FeatureNames...),
		boost:        model,
	}, nil
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0.5
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
