package direction

import (
	"testing"
)

func TestTrainProbAndRoundTrip(t *testing.T) {
	samples, returns := dataset()
	model, err := Train(samples, returns, []string{"momentum", "rsi"}, DefaultTrainOptions())
	if err != nil {
		t.Fatalf("train failed: %v", err)
	}

	pDown := model.ProbUp([]float64{-1.8, -1.3})
	pUp := model.ProbUp([]float64{1.8, 1.3})
	if pDown < 0 || pDown > 1 || pUp < 0 || pUp > 1 {
		t.Fatalf("expected probabilities in [0,1], got down=%.4f up=%.4f", pDown, pUp)
	}
	if pUp <= pDown {
		t.Fatalf("expected up sample probability > down sample probability, got %.4f <= %.4f", pUp, pDown)
	}

	blob, err := model.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	restored, err := UnmarshalBinary(blob)
	if err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	pRoundTrip := restored.ProbUp([]float64{1.8, 1.3})
	if pRoundTrip < 0 || pRoundTrip > 1 {
		t.Fatalf("expected roundtrip probability in [0,1], got %.4f", pRoundTrip)
	}
}

func TestTrainRequiresBothDirections(t *testing.T) {
	samples := [][]float64{{1, 2}, {2, 3}, {3, 4}}
	returns := []float64{0.01, 0.02, 0.03}
	if _, err := Train(samples, returns, []string{"a", "b"}, DefaultTrainOptions()); err == nil {
		t.Fatal("expected error when every sample moves the same way")
	}
}

func TestTrainRejectsMismatchedNames(t *testing.T) {
	samples, returns := dataset()
	if _, err := Train(samples, returns, []string{"only_one"}, DefaultTrainOptions()); err == nil {
		t.Fatal("expected error for feature name mismatch")
	}
}

func dataset() ([][]float64, []float64) {
	samples := make([][]float64, 0, 120)
	returns := make([]float64, 0, 120)
	for i := 0; i < 60; i++ {
		samples = append(samples, []float64{-2.0 + float64(i)/90.0, -1.5 + float64(i)/120.0})
		returns = append(returns, -0.02)
	}
	for i := 0; i < 60; i++ {
		samples = append(samples, []float64{1.0 + float64(i)/90.0, 1.1 + float64(i)/110.0})
		returns = append(returns, 0.03)
	}
	return samples, returns
}
