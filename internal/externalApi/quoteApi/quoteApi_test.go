package quoteApi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/KotFed0t/papertrade/config"
	"github.com/KotFed0t/papertrade/internal/externalApi"
	"github.com/shopspring/decimal"
)

func newTestApi(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *QuoteApi {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.API.Timeout = timeout
	cfg.API.QuoteApi.Url = srv.URL
	cfg.API.QuoteApi.Token = "secret"

	return New(cfg)
}

func TestGetQuote(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantErr   error
		wantQuote string
		wantName  string
		wantPrice string
	}{
		{
			name:      "found",
			status:    http.StatusOK,
			body:      `{"symbol":"aapl","companyName":"Apple Inc.","latestPrice":187.44}`,
			wantQuote: "AAPL",
			wantName:  "Apple Inc.",
			wantPrice: "187.44",
		},
		{
			name:      "name falls back to symbol",
			status:    http.StatusOK,
			body:      `{"symbol":"XYZ","latestPrice":"12.5"}`,
			wantQuote: "XYZ",
			wantName:  "XYZ",
			wantPrice: "12.5",
		},
		{
			name:      "price rounded to storage scale",
			status:    http.StatusOK,
			body:      `{"symbol":"PENNY","companyName":"Penny Co","latestPrice":1.23456}`,
			wantQuote: "PENNY",
			wantName:  "Penny Co",
			wantPrice: "1.2346",
		},
		{
			name:    "price rounds down to zero",
			status:  http.StatusOK,
			body:    `{"symbol":"DUST","latestPrice":0.00004}`,
			wantErr: externalApi.ErrUnavailable,
		},
		{
			name:    "unknown symbol",
			status:  http.StatusNotFound,
			body:    `Unknown symbol`,
			wantErr: externalApi.ErrNotFound,
		},
		{
			name:    "empty symbol in body",
			status:  http.StatusOK,
			body:    `{"symbol":"","latestPrice":1}`,
			wantErr: externalApi.ErrNotFound,
		},
		{
			name:    "server error",
			status:  http.StatusInternalServerError,
			body:    `oops`,
			wantErr: externalApi.ErrUnavailable,
		},
		{
			name:    "malformed body",
			status:  http.StatusOK,
			body:    `{"symbol":`,
			wantErr: externalApi.ErrUnavailable,
		},
		{
			name:    "zero price",
			status:  http.StatusOK,
			body:    `{"symbol":"ZERO","latestPrice":0}`,
			wantErr: externalApi.ErrUnavailable,
		},
		{
			name:    "missing price",
			status:  http.StatusOK,
			body:    `{"symbol":"NOPE","companyName":"Nope"}`,
			wantErr: externalApi.ErrUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestApi(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("token") != "secret" {
					t.Errorf("token query param = %q, want %q", r.URL.Query().Get("token"), "secret")
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, time.Second)

			quote, err := api.GetQuote(context.Background(), "aapl")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("GetQuote() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetQuote() unexpected error: %v", err)
			}

			if quote.Symbol != tt.wantQuote {
				t.Errorf("Symbol = %q, want %q", quote.Symbol, tt.wantQuote)
			}
			if quote.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", quote.Name, tt.wantName)
			}
			if !quote.Price.Equal(decimal.RequireFromString(tt.wantPrice)) {
				t.Errorf("Price = %s, want %s", quote.Price, tt.wantPrice)
			}
		})
	}
}

func TestGetQuoteRequestPath(t *testing.T) {
	var gotPath string
	api := newTestApi(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"symbol":"MSFT","companyName":"Microsoft","latestPrice":400}`))
	}, time.Second)

	if _, err := api.GetQuote(context.Background(), "MSFT"); err != nil {
		t.Fatalf("GetQuote() unexpected error: %v", err)
	}

	if gotPath != "/stock/MSFT/quote" {
		t.Errorf("path = %q, want %q", gotPath, "/stock/MSFT/quote")
	}
}

func TestGetQuoteTimeout(t *testing.T) {
	api := newTestApi(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, 50*time.Millisecond)

	_, err := api.GetQuote(context.Background(), "SLOW")
	if !errors.Is(err, externalApi.ErrUnavailable) {
		t.Fatalf("GetQuote() error = %v, want %v", err, externalApi.ErrUnavailable)
	}
}
