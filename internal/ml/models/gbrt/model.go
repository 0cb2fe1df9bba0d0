package gbrt

import (
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"sort"
)

// TrainOptions configures one gradient-boosted regression tree ensemble.
// Two presets exist so the ensemble can carry two independently
// configured tree sub-models over the same implementation.
type TrainOptions struct {
	Rounds          int
	LearningRate    float64
	MaxDepth        int
	MinSamplesLeaf  int
	FeatureFraction float64
	Lambda          float64
	EarlyStopRounds int
	Seed            int64
}

// ConfigA is the slow-and-deep preset: low learning rate, deeper trees,
// heavier leaf regularization.
func ConfigA() TrainOptions {
	return TrainOptions{
		Rounds:          400,
		LearningRate:    0.02,
		MaxDepth:        6,
		MinSamplesLeaf:  15,
		FeatureFraction: 0.8,
		Lambda:          0.8,
		EarlyStopRounds: 30,
		Seed:            17,
	}
}

// ConfigB is the fast-and-shallow preset.
func ConfigB() TrainOptions {
	return TrainOptions{
		Rounds:          250,
		LearningRate:    0.05,
		MaxDepth:        4,
		MinSamplesLeaf:  5,
		FeatureFraction: 0.9,
		Lambda:          1.0,
		EarlyStopRounds: 30,
		Seed:            29,
	}
}

type node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Value     float64 `json:"v"`
	Leaf      bool    `json:"leaf"`
	Left      *node   `json:"l,omitempty"`
	Right     *node   `json:"r,omitempty"`
}

type artifact struct {
	FeatureNames []string `json:"feature_names"`
	Base         float64  `json:"base"`
	LearningRate float64  `json:"learning_rate"`
	Trees        []*node  `json:"trees"`
}

// Model is a trained regression ensemble: an additive sequence of
// residual-fitting trees on top of the target mean.
type Model struct {
	featureNames []string
	base         float64
	learningRate float64
	trees        []*node
}

// Train fits trees to squared-error residuals. When a validation split
// is supplied, boosting stops early once validation MSE has not
// improved for EarlyStopRounds rounds and the model is truncated at the
// best round.
func Train(samples [][]float64, targets []float64, featureNames []string, opts TrainOptions, valX [][]float64, valY []float64) (*Model, error) {
	if len(samples) == 0 || len(samples) != len(targets) {
		return nil, errors.New("invalid training dataset")
	}
	if len(samples[0]) == 0 {
		return nil, errors.New("empty feature vectors")
	}
	if opts.Rounds <= 0 || opts.LearningRate <= 0 || opts.MaxDepth <= 0 {
		return nil, errors.New("invalid boosting options")
	}
	if opts.MinSamplesLeaf < 1 {
		opts.MinSamplesLeaf = 1
	}
	if opts.FeatureFraction <= 0 || opts.FeatureFraction > 1 {
		opts.FeatureFraction = 1
	}
	if len(featureNames) != len(samples[0]) {
		featureNames = nil
	}

	base := mean(targets)
	m := &Model{
		featureNames: append([]string(nil), featureNames...),
		base:         base,
		learningRate: opts.LearningRate,
	}

	pred := make([]float64, len(targets))
	for i := range pred {
		pred[i] = base
	}
	var valPred []float64
	if len(valX) > 0 && len(valX) == len(valY) {
		valPred = make([]float64, len(valY))
		for i := range valPred {
			valPred[i] = base
		}
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	residual := make([]float64, len(targets))
	bestRound := 0
	bestVal := math.Inf(1)
	sinceBest := 0

	for round := 0; round < opts.Rounds; round++ {
		for i := range targets {
			residual[i] = targets[i] - pred[i]
		}
		root := buildTree(samples, residual, allRows(len(samples)), opts, 0, rng)
		m.trees = append(m.trees, root)
		for i := range samples {
			pred[i] += opts.LearningRate * evalTree(root, samples[i])
		}

		if valPred == nil {
			bestRound = round + 1
			continue
		}
		for i := range valX {
			valPred[i] += opts.LearningRate * evalTree(root, valX[i])
		}
		mse := 0.0
		for i := range valY {
			d := valY[i] - valPred[i]
			mse += d * d
		}
		mse /= float64(len(valY))
		if mse < bestVal-1e-12 {
			bestVal = mse
			bestRound = round + 1
			sinceBest = 0
		} else {
			sinceBest++
			if opts.EarlyStopRounds > 0 && sinceBest >= opts.EarlyStopRounds {
				break
			}
		}
	}

	if bestRound < len(m.trees) {
		m.trees = m.trees[:bestRound]
	}
	if len(m.trees) == 0 {
		return nil, errors.New("boosting produced no trees")
	}
	return m, nil
}

func (m *Model) Predict(sample []float64) float64 {
	if m == nil {
		return 0
	}
	out := m.base
	for _, t := range m.trees {
		out += m.learningRate * evalTree(t, sample)
	}
	return out
}

func (m *Model) PredictBatch(samples [][]float64) []float64 {
	out := make([]float64, len(samples))
	for i := range samples {
		out[i] = m.Predict(samples[i])
	}
	return out
}

func (m *Model) Rounds() int {
	if m == nil {
		return 0
	}
	return len(m.trees)
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
	if m == nil || len(m.trees) == 0 {
		return nil, errors.New("nil model")
	}
	return json.Marshal(artifact{
		FeatureNames: m.featureNames,
		Base:         m.base,
		LearningRate: m.learningRate,
		Trees:        m.trees,
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
	if len(a.Trees) == 0 || a.LearningRate <= 0 {
		return nil, errors.New("invalid artifact")
	}
	return &Model{
		featureNames: a.FeatureNames,
		base:         a.Base,
		learningRate: a.LearningRate,
		trees:        a.Trees,
	}, nil
}

func buildTree(samples [][]float64, residual []float64, rows []int, opts TrainOptions, depth int, rng *rand.Rand) *node {
	if depth >= opts.MaxDepth || len(rows) < 2*opts.MinSamplesLeaf {
		return leaf(residual, rows, opts.Lambda)
	}

	feature, threshold, ok := bestSplit(samples, residual, rows, opts, rng)
	if !ok {
		return leaf(residual, rows, opts.Lambda)
	}

	var left, right []int
	for _, r := range rows {
		if samples[r][feature] <= threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	if len(left) < opts.MinSamplesLeaf || len(right) < opts.MinSamplesLeaf {
		return leaf(residual, rows, opts.Lambda)
	}

	return &node{
		Feature:   feature,
		Threshold: threshold,
		Left:      buildTree(samples, residual, left, opts, depth+1, rng),
		Right:     buildTree(samples, residual, right, opts, depth+1, rng),
	}
}

// bestSplit scans a sampled feature subset for the split with the
// largest squared-error gain, using prefix sums over the sorted rows.
func bestSplit(samples [][]float64, residual []float64, rows []int, opts TrainOptions, rng *rand.Rand) (int, float64, bool) {
	featCount := len(samples[0])
	candidates := sampledFeatures(featCount, opts.FeatureFraction, rng)

	total := 0.0
	for _, r := range rows {
		total += residual[r]
	}
	n := float64(len(rows))
	baseScore := total * total / n

	bestGain := 1e-12
	bestFeature := -1
	bestThreshold := 0.0

	order := make([]int, len(rows))
	for _, f := range candidates {
		copy(order, rows)
		sort.Slice(order, func(i, j int) bool {
			return samples[order[i]][f] < samples[order[j]][f]
		})
		leftSum := 0.0
		for i := 0; i < len(order)-1; i++ {
			leftSum += residual[order[i]]
			leftN := float64(i + 1)
			if int(leftN) < opts.MinSamplesLeaf || len(order)-i-1 < opts.MinSamplesLeaf {
				continue
			}
			cur := samples[order[i]][f]
			next := samples[order[i+1]][f]
			if cur == next {
				continue
			}
			rightSum := total - leftSum
			rightN := n - leftN
			gain := leftSum*leftSum/leftN + rightSum*rightSum/rightN - baseScore
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = (cur + next) / 2
			}
		}
	}
	if bestFeature < 0 {
		return 0, 0, false
	}
	return bestFeature, bestThreshold, true
}

func sampledFeatures(featCount int, fraction float64, rng *rand.Rand) []int {
	k := int(math.Ceil(fraction * float64(featCount)))
	if k >= featCount {
		out := make([]int, featCount)
		for i := range out {
			out[i] = i
		}
		return out
	}
	perm := rng.Perm(featCount)
	out := perm[:k]
	sort.Ints(out)
	return out
}

func leaf(residual []float64, rows []int, lambda float64) *node {
	sum := 0.0
	for _, r := range rows {
		sum += residual[r]
	}
	return &node{
		Leaf:  true,
		Value: sum / (float64(len(rows)) + lambda),
	}
}

func evalTree(nd *node, sample []float64) float64 {
	for !nd.Leaf {
		if sample[nd.Feature] <= nd.Threshold {
			nd = nd.Left
		} else {
			nd = nd.Right
		}
	}
	return nd.Value
}

func allRows(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
