package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cryptotracker/internal/logging"
	"github.com/cryptotracker/internal/models"
	"github.com/shopspring/decimal"
)

// CoinGeckoSource fetches reporting-currency token prices from a
// CoinGecko-compatible API.
type CoinGeckoSource struct {
	baseURL  string
	currency string
	client   *http.Client
	logger   *logging.Logger
}

// NewCoinGeckoSource creates a price source against the given API base URL
func NewCoinGeckoSource(baseURL, currency string, logger *logging.Logger) *CoinGeckoSource {
	return &CoinGeckoSource{
		baseURL:  strings.TrimRight(baseURL, "/"),
		currency: strings.ToLower(currency),
		client:   &http.Client{Timeout: 15 * time.Second},
		logger:   logger,
	}
}

// coinID derives the API coin id from a token name ("Liquity USD" -> "liquity-usd")
func coinID(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}

// Prices fetches current prices for the given tokens in one request.
// Tokens the API does not know are absent from the returned map; the caller
// records those as collection errors.
func (s *CoinGeckoSource) Prices(ctx context.Context, cryptos []*models.Cryptocurrency) (map[string]decimal.Decimal, error) {
	if len(cryptos) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	ids := make([]string, 0, len(cryptos))
	byCoinID := make(map[string]string, len(cryptos))
	for _, crypto := range cryptos {
		id := coinID(crypto.Name)
		ids = append(ids, id)
		byCoinID[id] = crypto.ID
	}

	endpoint := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=%s",
		s.baseURL,
		url.QueryEscape(strings.Join(ids, ",")),
		url.QueryEscape(s.currency),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build price request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("price request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price API returned status %d", resp.StatusCode)
	}

	// {"ethereum": {"eur": 2345.67}, ...}
	var payload map[string]map[string]json.Number
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode price response: %w", err)
	}

	prices := make(map[string]decimal.Decimal, len(payload))
	for id, quotes := range payload {
		cryptoID, ok := byCoinID[id]
		if !ok {
			continue
		}
		quote, ok := quotes[s.currency]
		if !ok {
			continue
		}
		price, err := decimal.NewFromString(quote.String())
		if err != nil {
			s.logger.WithField("coin", id).Warn("unparseable price in API response")
			continue
		}
		prices[cryptoID] = price
	}

	return prices, nil
}
