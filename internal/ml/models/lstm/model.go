// Package lstm implements the temporal sub-model of the ensemble: a
// stacked bidirectional LSTM regressor over fixed-length scaled price
// windows, trained with mean-squared-error loss and early stopping on a
// chronological hold-out split.
package lstm

import (
	"encoding/json"
	"errors"
	"math"
	"math/rand"
)

type TrainOptions struct {
	Hidden1      int
	Hidden2      int
	DenseUnits   int
	LearningRate float64
	Epochs       int
	BatchSize    int
	Patience     int
	ValFraction  float64
	Seed         int64
}

func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		Hidden1:      32,
		Hidden2:      16,
		DenseUnits:   8,
		LearningRate: 0.001,
		Epochs:       60,
		BatchSize:    32,
		Patience:     8,
		ValFraction:  0.15,
		Seed:         7,
	}
}

// tensor is a dense parameter matrix with its gradient and Adam moments.
type tensor struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	W    []float64 `json:"w"`

	grad, m, v []float64
}

func newTensor(rows, cols int, rng *rand.Rand) *tensor {
	t := &tensor{Rows: rows, Cols: cols, W: make([]float64, rows*cols)}
	limit := math.Sqrt(6.0 / float64(rows+cols))
	for i := range t.W {
		t.W[i] = (rng.Float64()*2 - 1) * limit
	}
	t.initTraining()
	return t
}

func (t *tensor) initTraining() {
	t.grad = make([]float64, len(t.W))
	t.m = make([]float64, len(t.W))
	t.v = make([]float64, len(t.W))
}

func (t *tensor) at(r, c int) float64 { return t.W[r*t.Cols+c] }
func (t *tensor) addGrad(r, c int, g float64) {
	t.grad[r*t.Cols+c] += g
}

// matVec computes W·x.
func (t *tensor) matVec(x []float64) []float64 {
	out := make([]float64, t.Rows)
	for r := 0; r < t.Rows; r++ {
		sum := 0.0
		row := t.W[r*t.Cols : (r+1)*t.Cols]
		for c := range row {
			sum += row[c] * x[c]
		}
		out[r] = sum
	}
	return out
}

// matVecT computes Wᵀ·y.
func (t *tensor) matVecT(y []float64) []float64 {
	out := make([]float64, t.Cols)
	for r := 0; r < t.Rows; r++ {
		row := t.W[r*t.Cols : (r+1)*t.Cols]
		for c := range row {
			out[c] += row[c] * y[r]
		}
	}
	return out
}

// lstmCell packs the four gates (i, f, o, g) into stacked weight
// matrices: W over the input, U over the previous hidden state, B bias.
type lstmCell struct {
	Hidden int     `json:"hidden"`
	In     int     `json:"in"`
	W      *tensor `json:"w"`
	U      *tensor `json:"u"`
	B      *tensor `json:"b"`
}

func newCell(inputSize, hidden int, rng *rand.Rand) *lstmCell {
	return &lstmCell{
		Hidden: hidden,
		In:     inputSize,
		W:      newTensor(4*hidden, inputSize, rng),
		U:      newTensor(4*hidden, hidden, rng),
		B:      newTensor(4*hidden, 1, rng),
	}
}

type cellStep struct {
	x, hPrev, cPrev      []float64
	i, f, o, g, c, tanhC []float64
}

type cellCache struct {
	steps []cellStep
}

func (cell *lstmCell) forward(xs [][]float64) ([][]float64, *cellCache) {
	h := make([]float64, cell.Hidden)
	c := make([]float64, cell.Hidden)
	outs := make([][]float64, len(xs))
	cache := &cellCache{steps: make([]cellStep, len(xs))}

	for t, x := range xs {
		pre := cell.W.matVec(x)
		preU := cell.U.matVec(h)
		for k := range pre {
			pre[k] += preU[k] + cell.B.W[k]
		}
		H := cell.Hidden
		step := cellStep{
			x: x, hPrev: h, cPrev: c,
			i: make([]float64, H), f: make([]float64, H),
			o: make([]float64, H), g: make([]float64, H),
			c: make([]float64, H), tanhC: make([]float64, H),
		}
		newH := make([]float64, H)
		for k := 0; k < H; k++ {
			step.i[k] = sigmoid(pre[k])
			step.f[k] = sigmoid(pre[H+k])
			step.o[k] = sigmoid(pre[2*H+k])
			step.g[k] = math.Tanh(pre[3*H+k])
			step.c[k] = step.f[k]*c[k] + step.i[k]*step.g[k]
			step.tanhC[k] = math.Tanh(step.c[k])
			newH[k] = step.o[k] * step.tanhC[k]
		}
		h = newH
		c = step.c
		cache.steps[t] = step
		outs[t] = newH
	}
	return outs, cache
}

// backward propagates per-step hidden-state gradients through time and
// returns the gradient with respect to each input step.
func (cell *lstmCell) backward(cache *cellCache, dhs [][]float64) [][]float64 {
	H := cell.Hidden
	dxs := make([][]float64, len(cache.steps))
	dhNext := make([]float64, H)
	dcNext := make([]float64, H)

	for t := len(cache.steps) - 1; t >= 0; t-- {
		step := cache.steps[t]
		dh := make([]float64, H)
		for k := 0; k < H; k++ {
			dh[k] = dhNext[k]
			if dhs[t] != nil {
				dh[k] += dhs[t][k]
			}
		}
		dpre := make([]float64, 4*H)
		dcPrev := make([]float64, H)
		for k := 0; k < H; k++ {
			dc := dcNext[k] + dh[k]*step.o[k]*(1-step.tanhC[k]*step.tanhC[k])
			di := dc * step.g[k]
			df := dc * step.cPrev[k]
			do := dh[k] * step.tanhC[k]
			dg := dc * step.i[k]
			dpre[k] = di * step.i[k] * (1 - step.i[k])
			dpre[H+k] = df * step.f[k] * (1 - step.f[k])
			dpre[2*H+k] = do * step.o[k] * (1 - step.o[k])
			dpre[3*H+k] = dg * (1 - step.g[k]*step.g[k])
			dcPrev[k] = dc * step.f[k]
		}

		for r := 0; r < 4*H; r++ {
			cell.B.grad[r] += dpre[r]
			for c := 0; c < cell.In; c++ {
				cell.W.addGrad(r, c, dpre[r]*step.x[c])
			}
			for c := 0; c < H; c++ {
				cell.U.addGrad(r, c, dpre[r]*step.hPrev[c])
			}
		}
		dxs[t] = cell.W.matVecT(dpre)
		dhNext = cell.U.matVecT(dpre)
		dcNext = dcPrev
	}
	return dxs
}

// biLayer runs one forward and one backward cell over a sequence and
// concatenates their per-step outputs.
type biLayer struct {
	Fwd *lstmCell `json:"fwd"`
	Bwd *lstmCell `json:"bwd"`
}

func newBiLayer(inputSize, hidden int, rng *rand.Rand) *biLayer {
	return &biLayer{
		Fwd: newCell(inputSize, hidden, rng),
		Bwd: newCell(inputSize, hidden, rng),
	}
}

type biCache struct {
	fwd, bwd *cellCache
	steps    int
}

func (l *biLayer) forward(xs [][]float64) ([][]float64, *biCache) {
	fwdOut, fwdCache := l.Fwd.forward(xs)
	bwdOut, bwdCache := l.Bwd.forward(reverse(xs))
	bwdOut = reverse(bwdOut)

	H := l.Fwd.Hidden
	outs := make([][]float64, len(xs))
	for t := range xs {
		out := make([]float64, 2*H)
		copy(out[:H], fwdOut[t])
		copy(out[H:], bwdOut[t])
		outs[t] = out
	}
	return outs, &biCache{fwd: fwdCache, bwd: bwdCache, steps: len(xs)}
}

func (l *biLayer) backward(cache *biCache, douts [][]float64) [][]float64 {
	H := l.Fwd.Hidden
	dFwd := make([][]float64, cache.steps)
	dBwd := make([][]float64, cache.steps)
	for t := 0; t < cache.steps; t++ {
		if douts[t] == nil {
			continue
		}
		dFwd[t] = append([]float64(nil), douts[t][:H]...)
		dBwd[t] = append([]float64(nil), douts[t][H:]...)
	}
	dxFwd := l.Fwd.backward(cache.fwd, dFwd)
	dxBwd := reverse(l.Bwd.backward(cache.bwd, reverse(dBwd)))

	dxs := make([][]float64, cache.steps)
	for t := range dxs {
		dx := make([]float64, len(dxFwd[t]))
		for k := range dx {
			dx[k] = dxFwd[t][k] + dxBwd[t][k]
		}
		dxs[t] = dx
	}
	return dxs
}

// Model is the full network: two stacked bidirectional LSTM layers, a
// ReLU dense layer and a linear output head.
type Model struct {
	Layer1 *biLayer `json:"layer1"`
	Layer2 *biLayer `json:"layer2"`
	Dense  *tensor  `json:"dense"`
	DenseB *tensor  `json:"dense_b"`
	Out    *tensor  `json:"out"`
	OutB   *tensor  `json:"out_b"`
}

func (m *Model) params() []*tensor {
	return []*tensor{
		m.Layer1.Fwd.W, m.Layer1.Fwd.U, m.Layer1.Fwd.B,
		m.Layer1.Bwd.W, m.Layer1.Bwd.U, m.Layer1.Bwd.B,
		m.Layer2.Fwd.W, m.Layer2.Fwd.U, m.Layer2.Fwd.B,
		m.Layer2.Bwd.W, m.Layer2.Bwd.U, m.Layer2.Bwd.B,
		m.Dense, m.DenseB, m.Out, m.OutB,
	}
}

type forwardCache struct {
	c1, c2   *biCache
	denseIn  []float64
	densePre []float64
	denseOut []float64
	steps    int
}

func (m *Model) forward(window []float64) (float64, *forwardCache) {
	xs := make([][]float64, len(window))
	for t, v := range window {
		xs[t] = []float64{v}
	}
	seq1, c1 := m.Layer1.forward(xs)
	seq2, c2 := m.Layer2.forward(seq1)

	// Final representation: forward cell's last state next to the
	// backward cell's state after its full pass (stored at step 0).
	H2 := m.Layer2.Fwd.Hidden
	last := make([]float64, 2*H2)
	copy(last[:H2], seq2[len(seq2)-1][:H2])
	copy(last[H2:], seq2[0][H2:])

	pre := m.Dense.matVec(last)
	denseOut := make([]float64, len(pre))
	for k := range pre {
		pre[k] += m.DenseB.W[k]
		denseOut[k] = math.Max(pre[k], 0)
	}
	y := m.Out.matVec(denseOut)[0] + m.OutB.W[0]

	return y, &forwardCache{
		c1: c1, c2: c2,
		denseIn: last, densePre: pre, denseOut: denseOut,
		steps: len(window),
	}
}

func (m *Model) backward(cache *forwardCache, dy float64) {
	// Output head.
	for c := range cache.denseOut {
		m.Out.addGrad(0, c, dy*cache.denseOut[c])
	}
	m.OutB.grad[0] += dy

	dDense := make([]float64, len(cache.denseOut))
	for k := range dDense {
		d := dy * m.Out.at(0, k)
		if cache.densePre[k] <= 0 {
			d = 0
		}
		dDense[k] = d
	}
	for r := range dDense {
		m.DenseB.grad[r] += dDense[r]
		for c := range cache.denseIn {
			m.Dense.addGrad(r, c, dDense[r]*cache.denseIn[c])
		}
	}
	dLast := m.Dense.matVecT(dDense)

	// Scatter the head gradient back onto the two final states.
	H2 := m.Layer2.Fwd.Hidden
	dSeq2 := make([][]float64, cache.steps)
	dEnd := make([]float64, 2*H2)
	copy(dEnd[:H2], dLast[:H2])
	dStart := make([]float64, 2*H2)
	copy(dStart[H2:], dLast[H2:])
	dSeq2[cache.steps-1] = dEnd
	if cache.steps > 1 {
		dSeq2[0] = dStart
	} else {
		for k := range dEnd {
			dEnd[k] += dStart[k]
		}
	}

	dSeq1 := m.Layer2.backward(cache.c2, dSeq2)
	m.Layer1.backward(cache.c1, dSeq1)
}

func (m *Model) Predict(window []float64) float64 {
	y, _ := m.forward(window)
	return y
}

func (m *Model) PredictBatch(windows [][]float64) []float64 {
	out := make([]float64, len(windows))
	for i := range windows {
		out[i] = m.Predict(windows[i])
	}
	return out
}

// Train fits the network with Adam on mean-squared error. The trailing
// ValFraction of the windows forms the hold-out split (chronological,
// never shuffled across the boundary) used for early stopping.
func Train(windows [][]float64, labels []float64, opts TrainOptions) (*Model, error) {
	if len(windows) == 0 || len(windows) != len(labels) {
		return nil, errors.New("invalid training dataset")
	}
	if opts.Hidden1 <= 0 || opts.Hidden2 <= 0 || opts.DenseUnits <= 0 {
		return nil, errors.New("invalid layer sizes")
	}
	if opts.Epochs <= 0 {
		opts.Epochs = DefaultTrainOptions().Epochs
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultTrainOptions().BatchSize
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = DefaultTrainOptions().LearningRate
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	m := &Model{
		Layer1: newBiLayer(1, opts.Hidden1, rng),
		Layer2: newBiLayer(2*opts.Hidden1, opts.Hidden2, rng),
		Dense:  newTensor(opts.DenseUnits, 2*opts.Hidden2, rng),
		DenseB: newTensor(opts.DenseUnits, 1, rng),
		Out:    newTensor(1, opts.DenseUnits, rng),
		OutB:   newTensor(1, 1, rng),
	}

	trainEnd := len(windows)
	if opts.ValFraction > 0 && opts.ValFraction < 1 {
		trainEnd = int(float64(len(windows)) * (1 - opts.ValFraction))
		if trainEnd < 1 {
			trainEnd = 1
		}
	}
	valX := windows[trainEnd:]
	valY := labels[trainEnd:]

	adamStep := 0
	bestVal := math.Inf(1)
	sinceBest := 0

	order := make([]int, trainEnd)
	for i := range order {
		order[i] = i
	}

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		for start := 0; start < len(order); start += opts.BatchSize {
			end := start + opts.BatchSize
			if end > len(order) {
				end = len(order)
			}
			batch := order[start:end]
			for _, idx := range batch {
				y, cache := m.forward(windows[idx])
				dy := 2 * (y - labels[idx]) / float64(len(batch))
				m.backward(cache, dy)
			}
			adamStep++
			m.applyAdam(opts.LearningRate, adamStep)
		}

		if len(valX) == 0 {
			continue
		}
		mse := 0.0
		for i := range valX {
			d := m.Predict(valX[i]) - valY[i]
			mse += d * d
		}
		mse /= float64(len(valX))
		if mse < bestVal-1e-9 {
			bestVal = mse
			sinceBest = 0
		} else {
			sinceBest++
			if opts.Patience > 0 && sinceBest >= opts.Patience {
				break
			}
		}
	}
	return m, nil
}

func (m *Model) applyAdam(lr float64, step int) {
	const (
		beta1 = 0.9
		beta2 = 0.999
		eps   = 1e-8
	)
	bc1 := 1 - math.Pow(beta1, float64(step))
	bc2 := 1 - math.Pow(beta2, float64(step))
	for _, t := range m.params() {
		for i := range t.W {
			g := t.grad[i]
			t.m[i] = beta1*t.m[i] + (1-beta1)*g
			t.v[i] = beta2*t.v[i] + (1-beta2)*g*g
			t.W[i] -= lr * (t.m[i] / bc1) / (math.Sqrt(t.v[i]/bc2) + eps)
			t.grad[i] = 0
		}
	}
}

func (m *Model) MarshalBinary() ([]byte, error) {
	if m == nil || m.Layer1 == nil {
		return nil, errors.New("nil model")
	}
	return json.Marshal(m)
}

func UnmarshalBinary(blob []byte) (*Model, error) {
	if len(blob) == 0 {
		return nil, errors.New("empty artifact")
	}
	var m Model
	if err := json.Unmarshal(blob, &m); err != nil {
		return nil, err
	}
	if m.Layer1 == nil || m.Layer2 == nil || m.Out == nil {
		return nil, errors.New("invalid artifact")
	}
	for _, t := range m.params() {
		t.initTraining()
	}
	return &m, nil
}

func sigmoid(x float64) float64 {
	if x > 35 {
		return 1
	}
	if x < -35 {
		return 0
	}
	return 1 / (1 + math.Exp(-x))
}

func reverse(xs [][]float64) [][]float64 {
	out := make([][]float64, len(xs))
	for i := range xs {
		out[i] = xs[len(xs)-1-i]
	}
	return out
}
