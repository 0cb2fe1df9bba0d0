package bot

import (
	"strings"
	"testing"

	"stocksense/internal/domain"
)

func TestStartTelegramBotSkipsWithoutToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	StartTelegramBot(nil)
}

func TestFormatRecord(t *testing.T) {
	msg := formatRecord(&domain.PredictionRecord{
		Symbol:          "OGDC",
		Signal:          domain.SignalBuy,
		Confidence:      72,
		CurrentPrice:    100,
		PredictedPrice:  104.5,
		HorizonDays:     7,
		PredictedReturn: 4.5,
		Reasoning:       "expected return clears the threshold",
	})
	if !strings.Contains(msg, "OGDC: BUY (confidence 72)") {
		t.Fatalf("unexpected message: %s", msg)
	}
	if !strings.Contains(msg, "104.50 PKR in 7 days (+4.50%)") {
		t.Fatalf("unexpected target line: %s", msg)
	}
}

func TestFormatRecommendations(t *testing.T) {
	if got := formatRecommendations(nil); got != "No actionable signals right now." {
		t.Fatalf("unexpected empty message: %s", got)
	}

	msg := formatRecommendations(&domain.Recommendations{
		Buys:  []*domain.PredictionRecord{{Symbol: "ENGRO", PredictedReturn: 3.1, Confidence: 80}},
		Sells: []*domain.PredictionRecord{{Symbol: "PSO", PredictedReturn: -2.4, Confidence: 66}},
	})
	if !strings.Contains(msg, "Top buys:") || !strings.Contains(msg, "ENGRO +3.10% (confidence 80)") {
		t.Fatalf("unexpected buys section: %s", msg)
	}
	if !strings.Contains(msg, "Top sells:") || !strings.Contains(msg, "PSO -2.40% (confidence 66)") {
		t.Fatalf("unexpected sells section: %s", msg)
	}
}
