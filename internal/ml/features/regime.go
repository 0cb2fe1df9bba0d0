package features

import (
	"math"

	"stocksense/internal/domain"
	"stocksense/internal/ta"
)

const regimeWindow = 252

// DetectRegimes classifies every bar into a coarse market regime from the
// trailing one-year return: Bull above +10%, Bear below −10%, Sideways
// between. It also returns the trailing annual return and volatility
// series. Pure function of the price history.
func DetectRegimes(closes []float64) ([]domain.Regime, []float64, []float64) {
	annualReturn := ta.PctChange(closes, regimeWindow)
	for i := range annualReturn {
		if math.IsNaN(annualReturn[i]) {
			annualReturn[i] = 0
		}
	}
	returns := ta.PctChange(closes, 1)
	annualVol := ta.RollingStd(returns, regimeWindow)

	regimes := make([]domain.Regime, len(closes))
	for i := range closes {
		switch {
		case annualReturn[i] > 0.1:
			regimes[i] = domain.RegimeBull
		case annualReturn[i] < -0.1:
			regimes[i] = domain.RegimeBear
		default:
			regimes[i] = domain.RegimeSideways
		}
	}
	return regimes, annualReturn, annualVol
}
