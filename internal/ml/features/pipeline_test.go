package features

import (
	"errors"
	"math"
	"testing"

	"stocksense/internal/domain"
)

func TestPipelineFitBuildsBothRepresentations(t *testing.T) {
	series := makeBars("OGDC", 400, 0.002)
	pipe := NewPipeline(7)

	state, tabular, sequence, err := pipe.Fit("OGDC", series)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if state.Symbol != "OGDC" || state.HorizonDays != 7 {
		t.Fatalf("unexpected state: %+v", state)
	}
	if len(state.FeatureColumns) != len(tabular.Columns) {
		t.Fatal("state feature schema diverges from dataset columns")
	}
	if len(tabular.X) == 0 || len(tabular.X) != len(tabular.Target) {
		t.Fatalf("inconsistent tabular dataset: %d rows, %d targets", len(tabular.X), len(tabular.Target))
	}
	for i, row := range tabular.X {
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("undefined value in scaled matrix at (%d,%d)", i, j)
			}
		}
	}

	wantWindows := len(series) - SequenceLength
	if len(sequence.Windows) != wantWindows {
		t.Fatalf("expected %d sequence windows, got %d", wantWindows, len(sequence.Windows))
	}
	for _, w := range sequence.Windows {
		if len(w) != SequenceLength {
			t.Fatalf("window length %d, want %d", len(w), SequenceLength)
		}
	}
	for _, label := range sequence.Labels {
		if label < 0 || label > 1 {
			t.Fatalf("sequence label %v outside [0,1]", label)
		}
	}
}

func TestPipelineTargetIsForwardShiftedClose(t *testing.T) {
	series := makeBars("PPL", 200, 0.001)
	pipe := NewPipeline(7)
	_, tabular, _, err := pipe.Fit("PPL", series)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	// The first kept row is the first fully-defined indicator row; its
	// target must equal the close 7 days later.
	firstDate := tabular.Dates[0]
	var idx int
	for i := range series {
		if series[i].Date.Equal(firstDate) {
			idx = i
			break
		}
	}
	want := series[idx+7].Close
	if math.Abs(tabular.Target[0]-want) > 1e-9 {
		t.Fatalf("target[0]=%v, want close 7 days ahead %v", tabular.Target[0], want)
	}
}

func TestPipelineInsufficientHistory(t *testing.T) {
	series := makeBars("SYS", 30, 0.001)
	pipe := NewPipeline(7)
	_, _, _, err := pipe.Fit("SYS", series)
	var insufficient *domain.InsufficientHistoryError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientHistoryError, got %v", err)
	}
	if insufficient.Have != 30 {
		t.Fatalf("unexpected error detail: %+v", insufficient)
	}
}

func TestInferenceRowMatchesTrainingSchema(t *testing.T) {
	series := makeBars("HUBC", 400, 0.002)
	pipe := NewPipeline(7)
	state, tabular, _, err := pipe.Fit("HUBC", series)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}

	row, err := pipe.InferenceRow(series, state)
	if err != nil {
		t.Fatalf("inference row: %v", err)
	}
	if len(row) != len(tabular.Columns) {
		t.Fatalf("inference row width %d, want %d", len(row), len(tabular.Columns))
	}

	again, err := pipe.InferenceRow(series, state)
	if err != nil {
		t.Fatalf("second inference row: %v", err)
	}
	for i := range row {
		if row[i] != again[i] {
			t.Fatal("inference row not deterministic for unchanged history")
		}
	}
}

func TestInferenceRowMissingScaler(t *testing.T) {
	series := makeBars("MARI", 400, 0.002)
	pipe := NewPipeline(7)

	_, err := pipe.InferenceRow(series, &State{Symbol: "MARI"})
	var missing *domain.MissingScalerError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingScalerError, got %v", err)
	}
}

func TestInferenceRowFeatureMismatch(t *testing.T) {
	series := makeBars("POL", 400, 0.002)
	pipe := NewPipeline(7)
	state, _, _, err := pipe.Fit("POL", series)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	state.FeatureColumns = append([]string{"Nonexistent_Feature"}, state.FeatureColumns...)

	_, err = pipe.InferenceRow(series, state)
	var mismatch *domain.FeatureMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected FeatureMismatchError, got %v", err)
	}
	if len(mismatch.Missing) != 1 || mismatch.Missing[0] != "Nonexistent_Feature" {
		t.Fatalf("unexpected missing columns: %v", mismatch.Missing)
	}
}

func TestInferenceWindowUsesStoredScaler(t *testing.T) {
	series := makeBars("TRG", 400, 0.002)
	pipe := NewPipeline(7)
	state, _, _, err := pipe.Fit("TRG", series)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}

	win, err := pipe.InferenceWindow(series, state)
	if err != nil {
		t.Fatalf("inference window: %v", err)
	}
	if len(win) != SequenceLength {
		t.Fatalf("window length %d, want %d", len(win), SequenceLength)
	}
	closes := series.Closes()
	want := state.Sequence.Transform(closes[len(closes)-1])
	if win[len(win)-1] != want {
		t.Fatalf("window tail %v, want scaled latest close %v", win[len(win)-1], want)
	}

	_, err = pipe.InferenceWindow(series[:10], state)
	var insufficient *domain.InsufficientHistoryError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientHistoryError for short window, got %v", err)
	}
}

func TestScalerRoundTrip(t *testing.T) {
	values := []float64{10, 20, 30, 40, 50}
	mm, err := FitMinMax(values)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	for _, v := range values {
		got := mm.Inverse(mm.Transform(v))
		if math.Abs(got-v) > 1e-9 {
			t.Fatalf("min-max round trip %v -> %v", v, got)
		}
	}

	flat := []float64{5, 5, 5}
	mmFlat, err := FitMinMax(flat)
	if err != nil {
		t.Fatalf("fit flat: %v", err)
	}
	if v := mmFlat.Transform(5); v != 0 {
		t.Fatalf("zero-range transform = %v, want 0", v)
	}
}

func TestSnapshotReportsSignalInputs(t *testing.T) {
	series := makeBars("EFERT", 400, 0.003)
	pipe := NewPipeline(7)
	snap, err := pipe.Snapshot(series)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.RSI14 <= 50 {
		t.Fatalf("expected RSI above neutral on an uptrend, got %v", snap.RSI14)
	}
	if snap.MarketRegime != domain.RegimeBull {
		t.Fatalf("expected Bull regime, got %s", snap.MarketRegime)
	}
	if snap.BBPosition < 0 || snap.BBPosition > 1 {
		t.Fatalf("BB position %v outside [0,1]", snap.BBPosition)
	}
}
