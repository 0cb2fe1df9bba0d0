package bot

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"stocksense/internal/domain"

	tele "gopkg.in/telebot.v3"
)

type PredictionQuerier interface {
	Predict(ctx context.Context, symbol string) (*domain.PredictionRecord, error)
	TopRecommendations(ctx context.Context, limit int) (*domain.Recommendations, error)
}

func StartTelegramBot(predictions PredictionQuerier) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		log.Fatalf("failed to create Telegram bot: %v", err)
	}

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	b.Handle("/predict", func(c tele.Context) error {
		args := c.Args()
		if len(args) == 0 {
			return c.Send(fmt.Sprintf("Usage: /predict OGDC\nSupported: %s", strings.Join(domain.KSE30Symbols, ", ")))
		}
		symbol := strings.ToUpper(args[0])
		if !domain.IsSupportedSymbol(symbol) {
			return c.Send(fmt.Sprintf("Unknown symbol: %s\nSupported: %s", symbol, strings.Join(domain.KSE30Symbols, ", ")))
		}
		record, err := predictions.Predict(context.Background(), symbol)
		if err != nil {
			return c.Send(fmt.Sprintf("Error predicting %s: %v", symbol, err))
		}
		return c.Send(formatRecord(record))
	})

	b.Handle("/signals", func(c tele.Context) error {
		recs, err := predictions.TopRecommendations(context.Background(), 5)
		if err != nil {
			return c.Send(fmt.Sprintf("Error fetching recommendations: %v", err))
		}
		return c.Send(formatRecommendations(recs))
	})

	log.Println("Telegram bot started")
	go b.Start()
}

func formatRecord(r *domain.PredictionRecord) string {
	return fmt.Sprintf(
		"%s: %s (confidence %.0f)\nPrice: %.2f PKR\nTarget: %.2f PKR in %d days (%+.2f%%)\n%s",
		r.Symbol, r.Signal, r.Confidence,
		r.CurrentPrice, r.PredictedPrice, r.HorizonDays, r.PredictedReturn,
		r.Reasoning,
	)
}

func formatRecommendations(recs *domain.Recommendations) string {
	if recs == nil || (len(recs.Buys) == 0 && len(recs.Sells) == 0) {
		return "No actionable signals right now."
	}
	var sb strings.Builder
	if len(recs.Buys) > 0 {
		sb.WriteString("Top buys:\n")
		for _, r := range recs.Buys {
			sb.WriteString(fmt.Sprintf("  %s %+.2f%% (confidence %.0f)\n", r.Symbol, r.PredictedReturn, r.Confidence))
		}
	}
	if len(recs.Sells) > 0 {
		sb.WriteString("Top sells:\n")
		for _, r := range recs.Sells {
			sb.WriteString(fmt.Sprintf("  %s %+.2f%% (confidence %.0f)\n", r.Symbol, r.PredictedReturn, r.Confidence))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
