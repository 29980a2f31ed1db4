package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cryptotracker/internal/models"
	"github.com/shopspring/decimal"
)

var testSymbols = map[string]string{
	"ETH":  "crypto-eth",
	"LUSD": "crypto-lusd",
	"LQTY": "crypto-lqty",
}

func TestPositionState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/positions/pos-ext-1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{
			"balances": [{"symbol": "lusd", "quantity": "500"}],
			"rewards": [{"symbol": "LQTY", "quantity": "12.5"}, {"symbol": "WEIRD", "quantity": "1"}]
		}`)
	}))
	defer srv.Close()

	client := NewDefiClient(srv.URL, testSymbols, testLogger())
	positionID := "pos-ext-1"
	balances, rewards, err := client.PositionState(context.Background(), &models.PoolPosition{
		ID: "pos-1", PositionID: &positionID,
	})
	if err != nil {
		t.Fatalf("position state failed: %v", err)
	}

	if len(balances) != 1 || balances[0].CryptocurrencyID != "crypto-lusd" {
		t.Errorf("unexpected balances: %+v", balances)
	}
	if !balances[0].Quantity.Equal(decimal.NewFromInt(500)) {
		t.Errorf("expected 500 LUSD, got %s", balances[0].Quantity)
	}

	// Unknown WEIRD token is dropped, known LQTY reward kept
	if len(rewards) != 1 || rewards[0].CryptocurrencyID != "crypto-lqty" {
		t.Errorf("unexpected rewards: %+v", rewards)
	}
}

func TestPositionStateWithoutExternalID(t *testing.T) {
	client := NewDefiClient("http://unused.invalid", testSymbols, testLogger())

	_, _, err := client.PositionState(context.Background(), &models.PoolPosition{ID: "pos-1"})
	if err == nil {
		t.Error("expected error for position without protocol-side id")
	}
}

func TestTroveState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/troves/42" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"collateral": "2", "debt": "1500", "balance": "2500", "interestRate": "5.5"}`)
	}))
	defer srv.Close()

	client := NewDefiClient(srv.URL, testSymbols, testLogger())
	state, err := client.TroveState(context.Background(), &models.Trove{ID: "trove-1", TroveID: "42"})
	if err != nil {
		t.Fatalf("trove state failed: %v", err)
	}

	if !state.Collateral.Equal(decimal.NewFromInt(2)) {
		t.Errorf("expected collateral 2, got %s", state.Collateral)
	}
	if !state.Debt.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("expected debt 1500, got %s", state.Debt)
	}
	if !state.Balance.Equal(decimal.NewFromInt(2500)) {
		t.Errorf("expected balance 2500, got %s", state.Balance)
	}
}
