package pricing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestCoinGecko_FetchPrices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/simple/price" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("ids"); got != "flow,ethereum" {
			t.Errorf("expected ids flow,ethereum, got %s", got)
		}
		if got := r.URL.Query().Get("vs_currencies"); got != "usd" {
			t.Errorf("expected usd, got %s", got)
		}
		if got := r.Header.Get("x-cg-demo-api-key"); got != "demo" {
			t.Errorf("expected api key header, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"flow":{"usd":0.52},"ethereum":{"usd":2000}}`))
	}))
	defer server.Close()

	c := NewCoinGecko(WithBaseURL(server.URL), WithAPIKey("demo"))
	prices, err := c.FetchPrices(context.Background(), []string{"flow", "ethereum"})
	if err != nil {
		t.Fatalf("FetchPrices: %v", err)
	}
	if prices["flow"] != 0.52 || prices["ethereum"] != 2000 {
		t.Errorf("unexpected prices %v", prices)
	}
}

func TestCoinGecko_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing usd", `{"ethereum":{}}`},
		{"zero usd", `{"ethereum":{"usd":0}}`},
		{"non numeric", `{"ethereum":{"usd":"n/a"}}`},
		{"empty", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := NewCoinGecko(WithBaseURL(server.URL))
			_, err := c.FetchPrices(context.Background(), []string{"ethereum"})
			if !errors.Is(err, ErrMalformedResponse) {
				t.Errorf("expected ErrMalformedResponse, got %v", err)
			}
		})
	}
}

func TestCoinGecko_RetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ethereum":{"usd":1999.5}}`))
	}))
	defer server.Close()

	c := NewCoinGecko(WithBaseURL(server.URL), WithRetries(2, time.Millisecond))
	prices, err := c.FetchPrices(context.Background(), []string{"ethereum"})
	if err != nil {
		t.Fatalf("FetchPrices: %v", err)
	}
	if prices["ethereum"] != 1999.5 {
		t.Errorf("unexpected price %v", prices["ethereum"])
	}
	if attempts.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts.Load())
	}
}

func TestCoinGecko_ClientErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := NewCoinGecko(WithBaseURL(server.URL), WithRetries(3, time.Millisecond))
	if _, err := c.FetchPrices(context.Background(), []string{"ethereum"}); err == nil {
		t.Fatal("expected error")
	}
	if attempts.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts.Load())
	}
}
