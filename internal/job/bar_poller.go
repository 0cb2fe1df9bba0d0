package job

import (
	"context"
	"log"
	"time"

	"stocksense/internal/domain"
)

// BarFetcher pulls end-of-day bars from the market data gateway.
type BarFetcher interface {
	FetchDailyBars(ctx context.Context, symbol string, days int) (domain.Series, error)
}

// BarSink persists fetched bars.
type BarSink interface {
	IngestBars(ctx context.Context, bars domain.Series) error
}

// BarPoller periodically fetches recent daily bars for every supported
// symbol and hands them to the sink. PSX publishes one bar per trading
// day, so a small lookback window per poll keeps the table current.
type BarPoller struct {
	fetcher      BarFetcher
	sink         BarSink
	pollInterval time.Duration
	lookbackDays int
}

func NewBarPoller(fetcher BarFetcher, sink BarSink, pollIntervalMins int) *BarPoller {
	if pollIntervalMins <= 0 {
		pollIntervalMins = 60
	}
	return &BarPoller{
		fetcher:      fetcher,
		sink:         sink,
		pollInterval: time.Duration(pollIntervalMins) * time.Minute,
		lookbackDays: 10,
	}
}

// Start polls until ctx is cancelled. The first sweep runs immediately.
func (p *BarPoller) Start(ctx context.Context) {
	log.Println("Bar poller starting...")

	p.sweep(ctx)

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Bar poller stopped")
			return
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

func (p *BarPoller) sweep(ctx context.Context) {
	for _, symbol := range domain.KSE30Symbols {
		if ctx.Err() != nil {
			return
		}
		bars, err := p.fetcher.FetchDailyBars(ctx, symbol, p.lookbackDays)
		if err != nil {
			log.Printf("bar fetch error for %s: %v", symbol, err)
			continue
		}
		if len(bars) == 0 {
			continue
		}
		if err := p.sink.IngestBars(ctx, bars); err != nil {
			log.Printf("bar ingest error for %s: %v", symbol, err)
		}
	}
}
