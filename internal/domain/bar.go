package domain

import (
	"sort"
	"time"
)

// Bar represents a single daily OHLCV bar for an equity.
type Bar struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Series is a per-symbol ordered sequence of daily bars, strictly
// increasing by date with no duplicate dates.
type Series []Bar

// NormalizeSeries sorts bars ascending by date and drops duplicate dates,
// keeping the first occurrence.
func NormalizeSeries(bars []Bar) Series {
	out := make(Series, 0, len(bars))
	seen := make(map[int64]struct{}, len(bars))
	sorted := append([]Bar(nil), bars...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})
	for _, b := range sorted {
		key := b.Date.UTC().Truncate(24 * time.Hour).Unix()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, b)
	}
	return out
}

// Closes extracts the close-price column.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i := range s {
		out[i] = s[i].Close
	}
	return out
}

// Last returns the most recent bar, or a zero bar for an empty series.
func (s Series) Last() Bar {
	if len(s) == 0 {
		return Bar{}
	}
	return s[len(s)-1]
}

// KSE30Symbols lists the fixed 30-equity universe tracked by the system.
var KSE30Symbols = []string{
	"AGP", "ATRL", "BAFL", "BAHL", "CHCC",
	"DGKC", "EFERT", "ENGRO", "FCCL", "FFC",
	"HBL", "HUBC", "INIL", "ISL", "KAPCO",
	"KOHC", "LUCK", "MARI", "MCB", "MEBL",
	"MLCF", "NBP", "OGDC", "POL", "PPL",
	"PSO", "SEARL", "SYS", "TRG", "UBL",
}

// IsSupportedSymbol reports whether symbol is part of the tracked universe.
func IsSupportedSymbol(symbol string) bool {
	for _, s := range KSE30Symbols {
		if s == symbol {
			return true
		}
	}
	return false
}
