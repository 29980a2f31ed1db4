package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cryptotracker/internal/logging"
	"github.com/cryptotracker/internal/models"
	"github.com/shopspring/decimal"
)

// DefiClient fetches DeFi position state from a positions API.
// The API exposes pool positions and troves by their protocol-side
// identifiers; token amounts come back symbol-keyed and are resolved to
// cryptocurrency ids through the registry-derived symbol map.
type DefiClient struct {
	baseURL  string
	client   *http.Client
	bySymbol map[string]string // token symbol -> cryptocurrency id
	logger   *logging.Logger
}

// NewDefiClient creates a positions client against the given API base URL
func NewDefiClient(baseURL string, bySymbol map[string]string, logger *logging.Logger) *DefiClient {
	return &DefiClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: 15 * time.Second},
		bySymbol: bySymbol,
		logger:   logger,
	}
}

type tokenAmount struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
}

type positionResponse struct {
	Balances []tokenAmount `json:"balances"`
	Rewards  []tokenAmount `json:"rewards"`
}

type troveResponse struct {
	Collateral   decimal.Decimal `json:"collateral"`
	Debt         decimal.Decimal `json:"debt"`
	Balance      decimal.Decimal `json:"balance"`
	InterestRate decimal.Decimal `json:"interestRate"`
}

func (c *DefiClient) get(ctx context.Context, endpoint string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build positions request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("positions request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("positions API returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode positions response: %w", err)
	}
	return nil
}

// PositionState fetches the balances and unclaimed rewards of one pool
// position. Amounts in tokens the registry does not know are dropped with a
// warning rather than failing the position.
func (c *DefiClient) PositionState(ctx context.Context, position *models.PoolPosition) ([]*models.PoolBalanceSnapshot, []*models.PoolRewardsSnapshot, error) {
	if position.PositionID == nil || *position.PositionID == "" {
		return nil, nil, fmt.Errorf("pool position %s has no protocol-side id", position.ID)
	}

	var payload positionResponse
	endpoint := fmt.Sprintf("%s/positions/%s", c.baseURL, *position.PositionID)
	if err := c.get(ctx, endpoint, &payload); err != nil {
		return nil, nil, err
	}

	var balances []*models.PoolBalanceSnapshot
	for _, amount := range payload.Balances {
		cryptoID, ok := c.resolve(amount.Symbol)
		if !ok {
			continue
		}
		balances = append(balances, &models.PoolBalanceSnapshot{
			CryptocurrencyID: cryptoID,
			Quantity:         amount.Quantity,
		})
	}

	var rewards []*models.PoolRewardsSnapshot
	for _, amount := range payload.Rewards {
		cryptoID, ok := c.resolve(amount.Symbol)
		if !ok {
			continue
		}
		rewards = append(rewards, &models.PoolRewardsSnapshot{
			CryptocurrencyID: cryptoID,
			Quantity:         amount.Quantity,
		})
	}

	return balances, rewards, nil
}

// TroveState fetches the collateral and debt state of one trove
func (c *DefiClient) TroveState(ctx context.Context, trove *models.Trove) (*models.TroveSnapshot, error) {
	var payload troveResponse
	endpoint := fmt.Sprintf("%s/troves/%s", c.baseURL, trove.TroveID)
	if err := c.get(ctx, endpoint, &payload); err != nil {
		return nil, err
	}

	return &models.TroveSnapshot{
		Collateral:   payload.Collateral,
		Debt:         payload.Debt,
		Balance:      payload.Balance,
		InterestRate: payload.InterestRate,
	}, nil
}

func (c *DefiClient) resolve(symbol string) (string, bool) {
	cryptoID, ok := c.bySymbol[strings.ToUpper(symbol)]
	if !ok {
		c.logger.WithField("symbol", symbol).Warn("unknown token symbol in positions response")
	}
	return cryptoID, ok
}
