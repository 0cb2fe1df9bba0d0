package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestPSXProviderFetchDailyBars(t *testing.T) {
	t.Parallel()

	provider := NewPSXProvider(trace.NewNoopTracerProvider().Tracer("test"), "http://example")
	provider.client = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			if !strings.Contains(req.URL.Path, "/eod/OGDC") {
				t.Fatalf("unexpected path: %s", req.URL.Path)
			}
			resp := eodResponse{
				Symbol: "OGDC",
				Bars: []eodBar{
					{Date: "2026-08-28", Open: 101, High: 103, Low: 100, Close: 102, Volume: 5e5},
					{Date: "2026-08-27", Open: 100, High: 102, Low: 99, Close: 101, Volume: 4e5},
				},
			}
			data, _ := json.Marshal(resp)
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(bytes.NewReader(data)),
				Header:     make(http.Header),
			}, nil
		}),
	}
	provider.limiter = NewRateLimiter(10, time.Millisecond)

	bars, err := provider.FetchDailyBars(context.Background(), "OGDC", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	// Normalized oldest first.
	if !bars[0].Date.Before(bars[1].Date) {
		t.Fatalf("bars not sorted ascending: %v then %v", bars[0].Date, bars[1].Date)
	}
	if bars[1].Close != 102 || bars[1].Symbol != "OGDC" {
		t.Fatalf("unexpected latest bar: %+v", bars[1])
	}
}

func TestPSXProviderRejectsUnknownSymbol(t *testing.T) {
	t.Parallel()

	provider := NewPSXProvider(trace.NewNoopTracerProvider().Tracer("test"), "http://example")
	if _, err := provider.FetchDailyBars(context.Background(), "AAPL", 5); err == nil {
		t.Fatal("expected error for unsupported symbol")
	}
}

func TestPSXProviderGatewayError(t *testing.T) {
	t.Parallel()

	provider := NewPSXProvider(trace.NewNoopTracerProvider().Tracer("test"), "http://example")
	provider.client = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusBadGateway,
				Body:       io.NopCloser(strings.NewReader("upstream down")),
				Header:     make(http.Header),
			}, nil
		}),
	}
	provider.limiter = NewRateLimiter(10, time.Millisecond)

	if _, err := provider.FetchDailyBars(context.Background(), "OGDC", 5); err == nil {
		t.Fatal("expected gateway error")
	}
}
