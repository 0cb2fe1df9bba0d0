package features

import "math"

// Frame is an ordered set of named float columns of equal length. Column
// order is insertion order, which fixes the feature schema derived at
// training time.
type Frame struct {
	names []string
	cols  map[string][]float64
	n     int
}

func NewFrame(n int) *Frame {
	return &Frame{cols: make(map[string][]float64), n: n}
}

func (f *Frame) Len() int { return f.n }

// Set adds or replaces a column. The series must match the frame length.
func (f *Frame) Set(name string, values []float64) {
	if len(values) != f.n {
		panic("features: column length mismatch for " + name)
	}
	if _, ok := f.cols[name]; !ok {
		f.names = append(f.names, name)
	}
	f.cols[name] = values
}

func (f *Frame) Get(name string) []float64 {
	return f.cols[name]
}

func (f *Frame) Has(name string) bool {
	_, ok := f.cols[name]
	return ok
}

// Columns returns the column names in insertion order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.names))
	copy(out, f.names)
	return out
}

// Row extracts the values of the named columns at index i.
func (f *Frame) Row(names []string, i int) []float64 {
	out := make([]float64, len(names))
	for j, name := range names {
		out[j] = f.cols[name][i]
	}
	return out
}

// RowDefined reports whether every named column holds a finite value at
// index i.
func (f *Frame) RowDefined(names []string, i int) bool {
	for _, name := range names {
		v := f.cols[name][i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Missing returns the subset of names absent from the frame.
func (f *Frame) Missing(names []string) []string {
	var out []string
	for _, name := range names {
		if !f.Has(name) {
			out = append(out, name)
		}
	}
	return out
}
