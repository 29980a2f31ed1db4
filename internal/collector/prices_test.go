package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cryptotracker/internal/logging"
	"github.com/cryptotracker/internal/models"
	"github.com/shopspring/decimal"
)

func testLogger() *logging.Logger {
	return logging.New(logging.LevelFatal, logging.FormatText)
}

func TestCoinID(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Ethereum", "ethereum"},
		{"Liquity USD", "liquity-usd"},
		{"  Rocket Pool ETH ", "rocket-pool-eth"},
	}
	for _, tt := range tests {
		if got := coinID(tt.name); got != tt.want {
			t.Errorf("coinID(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestPricesFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/simple/price" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("vs_currencies"); got != "eur" {
			t.Errorf("expected eur quote currency, got %s", got)
		}
		fmt.Fprint(w, `{"ethereum": {"eur": 2345.67}, "liquity": {"eur": 1.5}}`)
	}))
	defer srv.Close()

	source := NewCoinGeckoSource(srv.URL, "EUR", testLogger())
	prices, err := source.Prices(context.Background(), []*models.Cryptocurrency{
		{ID: "crypto-eth", Name: "Ethereum", Symbol: "ETH"},
		{ID: "crypto-lqty", Name: "Liquity", Symbol: "LQTY"},
		{ID: "crypto-obscure", Name: "Obscure Token", Symbol: "OBS"},
	})
	if err != nil {
		t.Fatalf("prices failed: %v", err)
	}

	if want := decimal.RequireFromString("2345.67"); !prices["crypto-eth"].Equal(want) {
		t.Errorf("expected ETH price %s, got %s", want, prices["crypto-eth"])
	}
	if want := decimal.RequireFromString("1.5"); !prices["crypto-lqty"].Equal(want) {
		t.Errorf("expected LQTY price %s, got %s", want, prices["crypto-lqty"])
	}
	// The token the API does not know is simply absent
	if _, ok := prices["crypto-obscure"]; ok {
		t.Error("unknown token must not appear in the price map")
	}
}

func TestPricesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	source := NewCoinGeckoSource(srv.URL, "EUR", testLogger())
	_, err := source.Prices(context.Background(), []*models.Cryptocurrency{
		{ID: "crypto-eth", Name: "Ethereum", Symbol: "ETH"},
	})
	if err == nil {
		t.Error("expected error on non-200 response")
	}
}

func TestPricesEmptyInput(t *testing.T) {
	source := NewCoinGeckoSource("http://unused.invalid", "EUR", testLogger())
	prices, err := source.Prices(context.Background(), nil)
	if err != nil {
		t.Fatalf("expected no error for empty input: %v", err)
	}
	if len(prices) != 0 {
		t.Errorf("expected empty map, got %d entries", len(prices))
	}
}
