package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cryptotracker/internal/models"
	"github.com/cryptotracker/internal/types"
	"github.com/shopspring/decimal"
)

// validators hold a 32 ETH principal; anything above it is accrued rewards
var validatorPrincipal = decimal.NewFromInt(32)

// gweiPerETH converts beacon chain balances (gwei) to ETH
var gweiPerETH = decimal.NewFromInt(1_000_000_000)

// BeaconSource fetches validator state from a beaconcha.in-compatible API
type BeaconSource struct {
	baseURL string
	client  *http.Client
}

// NewBeaconSource creates a staking source against the given API base URL
func NewBeaconSource(baseURL string) *BeaconSource {
	return &BeaconSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type beaconValidatorResponse struct {
	Data struct {
		Balance int64  `json:"balance"`
		Status  string `json:"status"`
	} `json:"data"`
}

// ValidatorState fetches one validator's current balance and status.
// Balances arrive in gwei and are stored in ETH; rewards are the balance in
// excess of the 32 ETH principal.
func (s *BeaconSource) ValidatorState(ctx context.Context, validator *models.Validator) (*models.ValidatorSnapshot, error) {
	endpoint := fmt.Sprintf("%s/api/v1/validator/%d", s.baseURL, validator.ValidatorIndex)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build validator request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("validator request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("beacon API returned status %d for validator %d", resp.StatusCode, validator.ValidatorIndex)
	}

	var payload beaconValidatorResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode validator response: %w", err)
	}

	balance := decimal.NewFromInt(payload.Data.Balance).Div(gweiPerETH)
	rewards := balance.Sub(validatorPrincipal)
	if rewards.IsNegative() {
		rewards = decimal.Zero
	}

	return &models.ValidatorSnapshot{
		Balance: balance,
		Status:  mapValidatorStatus(payload.Data.Status),
		Rewards: rewards,
	}, nil
}

func mapValidatorStatus(status string) types.ValidatorStatus {
	switch {
	case strings.HasPrefix(status, "active"):
		return types.ValidatorActive
	case strings.HasPrefix(status, "pending"), strings.HasPrefix(status, "deposited"):
		return types.ValidatorPending
	default:
		return types.ValidatorExited
	}
}
