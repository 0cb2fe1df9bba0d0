package advisor

import (
	"fmt"
	"strings"
	"time"

	"stocksense/internal/domain"
)

const commentaryPhilosophy = `You are an equity research assistant for the KSE-30 index. Your role is to interpret model predictions and technical indicators, NOT to generate predictions yourself.

Rules:
- Always reference the specific prediction values and indicators provided.
- Never fabricate data. If a symbol has no prediction, say so.
- A confidence below 45 means the models disagree or history is noisy; say that plainly.
- Mention the market regime and volatility when they drive the signal.
- Keep responses concise. Two short paragraphs at most.
- Prices are in Pakistani rupees (PKR).`

func BuildSystemPrompt(predictionContext string) string {
	var sb strings.Builder
	sb.WriteString(commentaryPhilosophy)
	sb.WriteString("\n\n--- CURRENT MODEL OUTPUT (as of ")
	sb.WriteString(time.Now().UTC().Format(time.RFC822))
	sb.WriteString(") ---\n")
	sb.WriteString(predictionContext)
	return sb.String()
}

func FormatPredictionContext(records []*domain.PredictionRecord) string {
	if len(records) == 0 {
		return "No predictions currently available."
	}

	var sb strings.Builder
	for _, r := range records {
		sb.WriteString(fmt.Sprintf("%s: %s (confidence %.0f)\n", r.Symbol, r.Signal, r.Confidence))
		sb.WriteString(fmt.Sprintf("  price %.2f -> %.2f in %d days (%+.2f%%)\n",
			r.CurrentPrice, r.PredictedPrice, r.HorizonDays, r.PredictedReturn))
		sb.WriteString(fmt.Sprintf("  RSI %.1f, volatility %.2f%%, %s regime, model agreement %.0f%%\n",
			r.Technical.RSI14, r.Technical.VolatilityPct*100, r.Technical.MarketRegime, r.EnsembleAgreement))
		sb.WriteString(fmt.Sprintf("  signal basis: %s\n", r.Reasoning))
	}
	return sb.String()
}

// HeuristicCommentary is the LLM-free fallback: a faithful restatement
// of the record in plain language.
func HeuristicCommentary(r *domain.PredictionRecord) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s: the ensemble expects %.2f in %d days, %+.2f%% from %.2f. ",
		r.Symbol, r.PredictedPrice, r.HorizonDays, r.PredictedReturn, r.CurrentPrice))
	sb.WriteString(fmt.Sprintf("Signal is %s at confidence %.0f. ", r.Signal, r.Confidence))

	switch {
	case r.Confidence < 45:
		sb.WriteString("Confidence is low, so treat this as noise rather than an opportunity. ")
	case r.EnsembleAgreement >= 90:
		sb.WriteString("All three models point the same way. ")
	}
	if r.Technical.MarketRegime == domain.RegimeBear {
		sb.WriteString("The broader trend is bearish, which weighs on any long idea. ")
	}
	sb.WriteString(r.Reasoning)
	return sb.String()
}
