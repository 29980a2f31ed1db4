package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cryptotracker/internal/models"
	"github.com/cryptotracker/internal/types"
	"github.com/shopspring/decimal"
)

func TestValidatorState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/validator/1001" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		// 32.4 ETH in gwei
		fmt.Fprint(w, `{"data": {"balance": 32400000000, "status": "active_online"}}`)
	}))
	defer srv.Close()

	source := NewBeaconSource(srv.URL)
	state, err := source.ValidatorState(context.Background(), &models.Validator{ID: "val-1", ValidatorIndex: 1001})
	if err != nil {
		t.Fatalf("validator state failed: %v", err)
	}

	if want := decimal.RequireFromString("32.4"); !state.Balance.Equal(want) {
		t.Errorf("expected balance %s, got %s", want, state.Balance)
	}
	if want := decimal.RequireFromString("0.4"); !state.Rewards.Equal(want) {
		t.Errorf("expected rewards %s, got %s", want, state.Rewards)
	}
	if state.Status != types.ValidatorActive {
		t.Errorf("expected active status, got %s", state.Status)
	}
}

func TestValidatorStateBelowPrincipal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A slashed validator under 32 ETH must not report negative rewards
		fmt.Fprint(w, `{"data": {"balance": 31000000000, "status": "active_slashed"}}`)
	}))
	defer srv.Close()

	source := NewBeaconSource(srv.URL)
	state, err := source.ValidatorState(context.Background(), &models.Validator{ValidatorIndex: 7})
	if err != nil {
		t.Fatalf("validator state failed: %v", err)
	}

	if !state.Rewards.IsZero() {
		t.Errorf("expected zero rewards below principal, got %s", state.Rewards)
	}
}

func TestMapValidatorStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want types.ValidatorStatus
	}{
		{"active_online", types.ValidatorActive},
		{"active_offline", types.ValidatorActive},
		{"pending", types.ValidatorPending},
		{"deposited", types.ValidatorPending},
		{"exited", types.ValidatorExited},
		{"slashed", types.ValidatorExited},
	}
	for _, tt := range tests {
		if got := mapValidatorStatus(tt.raw); got != tt.want {
			t.Errorf("mapValidatorStatus(%q) = %s, want %s", tt.raw, got, tt.want)
		}
	}
}

func TestValidatorStateAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	source := NewBeaconSource(srv.URL)
	if _, err := source.ValidatorState(context.Background(), &models.Validator{ValidatorIndex: 9}); err == nil {
		t.Error("expected error on non-200 response")
	}
}
