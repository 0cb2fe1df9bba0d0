package domain

import (
	"errors"
	"testing"
	"time"
)

func TestNormalizeSeriesSortsAndDeduplicates(t *testing.T) {
	day := func(n int) time.Time {
		return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
	}
	bars := []Bar{
		{Symbol: "OGDC", Date: day(2), Close: 102},
		{Symbol: "OGDC", Date: day(0), Close: 100},
		{Symbol: "OGDC", Date: day(2), Close: 999},
		{Symbol: "OGDC", Date: day(1), Close: 101},
	}

	series := NormalizeSeries(bars)
	if len(series) != 3 {
		t.Fatalf("expected 3 bars after dedup, got %d", len(series))
	}
	for i := 1; i < len(series); i++ {
		if !series[i].Date.After(series[i-1].Date) {
			t.Fatalf("series not strictly increasing at %d", i)
		}
	}
	if series[2].Close != 102 {
		t.Fatalf("expected first occurrence kept on duplicate date, got close=%v", series[2].Close)
	}
}

func TestKSE30UniverseSize(t *testing.T) {
	if len(KSE30Symbols) != 30 {
		t.Fatalf("expected 30 symbols, got %d", len(KSE30Symbols))
	}
	if !IsSupportedSymbol("LUCK") {
		t.Fatal("expected LUCK to be supported")
	}
	if IsSupportedSymbol("BTC") {
		t.Fatal("did not expect BTC in the equity universe")
	}
}

func TestTrainingErrorUnwrap(t *testing.T) {
	cause := &InsufficientHistoryError{Symbol: "PPL", Need: 319, Have: 40}
	err := &TrainingError{Symbol: "PPL", Err: cause}

	var insufficient *InsufficientHistoryError
	if !errors.As(err, &insufficient) {
		t.Fatal("expected TrainingError to wrap InsufficientHistoryError")
	}
	if insufficient.Have != 40 {
		t.Fatalf("unexpected wrapped error: %+v", insufficient)
	}
}
