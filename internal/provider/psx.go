package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"stocksense/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PSXProvider fetches end-of-day OHLCV bars from a PSX data gateway.
// The gateway URL is deployment configuration; the wire format is the
// gateway's /eod endpoint.
type PSXProvider struct {
	client  *http.Client
	baseURL string
	tracer  trace.Tracer
	limiter *RateLimiter
}

// NewPSXProvider creates a provider rate limited to 30 requests per
// minute, which keeps a full 30-symbol refresh inside one window.
func NewPSXProvider(tracer trace.Tracer, baseURL string) *PSXProvider {
	return &PSXProvider{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
		tracer:  tracer,
		limiter: NewRateLimiter(30, 2*time.Second),
	}
}

type eodBar struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

type eodResponse struct {
	Symbol string   `json:"symbol"`
	Bars   []eodBar `json:"bars"`
}

// FetchDailyBars fetches up to days of daily history for one symbol,
// oldest first.
func (p *PSXProvider) FetchDailyBars(ctx context.Context, symbol string, days int) (domain.Series, error) {
	_, span := p.tracer.Start(ctx, "psx.fetch-daily-bars")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol))

	if !domain.IsSupportedSymbol(symbol) {
		return nil, fmt.Errorf("unsupported symbol: %s", symbol)
	}

	url := fmt.Sprintf("%s/eod/%s?days=%d", p.baseURL, symbol, days)
	body, err := p.doRequest(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch daily bars for %s: %w", symbol, err)
	}

	var raw eodResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse daily bars for %s: %w", symbol, err)
	}

	bars := make([]domain.Bar, 0, len(raw.Bars))
	for _, b := range raw.Bars {
		date, err := time.Parse("2006-01-02", b.Date)
		if err != nil {
			return nil, fmt.Errorf("parse bar date %q for %s: %w", b.Date, symbol, err)
		}
		bars = append(bars, domain.Bar{
			Symbol: symbol,
			Date:   date.UTC(),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		})
	}

	return domain.NormalizeSeries(bars), nil
}

func (p *PSXProvider) doRequest(ctx context.Context, url string) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("psx gateway error %d: %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}
