// Package collector implements the data sources the snapshot worker pulls
// from: EVM chains for token balances, the beacon chain for staking state,
// a price API for reporting-currency prices, and a positions API for DeFi
// protocol state.
package collector

import (
	"context"
	"fmt"
	"math/big"

	"github.com/cryptotracker/internal/logging"
	"github.com/cryptotracker/internal/models"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

// ERC-20 function selectors
var (
	selectorBalanceOf = common.Hex2Bytes("70a08231")
	selectorDecimals  = common.Hex2Bytes("313ce567")
)

const nativeDecimals = 18

// EVMCollector reads token balances from EVM chains over JSON-RPC.
// It implements the asset collection interface of the snapshot service.
type EVMCollector struct {
	// clients is keyed by network id
	clients  map[string]*ethclient.Client
	decimals map[string]int32 // token contract address -> decimals cache
	logger   *logging.Logger
}

// NewEVMCollector creates a collector over the given per-network RPC clients
func NewEVMCollector(clients map[string]*ethclient.Client, logger *logging.Logger) *EVMCollector {
	return &EVMCollector{
		clients:  clients,
		decimals: make(map[string]int32),
		logger:   logger,
	}
}

// DialNetworks connects an RPC client for every network that has an RPC URL
// configured. Networks without one are skipped with a warning.
func DialNetworks(networks []*models.Network, logger *logging.Logger) map[string]*ethclient.Client {
	clients := make(map[string]*ethclient.Client)
	for _, network := range networks {
		if network.RPCURL == nil || *network.RPCURL == "" {
			logger.WithField("network", network.Name).Warn("network has no RPC URL, skipping")
			continue
		}
		client, err := ethclient.Dial(*network.RPCURL)
		if err != nil {
			logger.WithError(err).WithField("network", network.Name).Warn("failed to dial network RPC")
			continue
		}
		clients[network.ID] = client
	}
	return clients
}

// Balances fetches the address's balance for every known token deployment.
// A deployment with a nil token address is the network's native coin.
// Deployments on networks without a connected client are skipped; zero
// balances are dropped to keep snapshots small.
func (c *EVMCollector) Balances(ctx context.Context, address *models.UserAddress, deployments []*models.CryptocurrencyNetwork) ([]*models.SnapshotAsset, error) {
	holder := common.HexToAddress(address.PublicAddress)

	var assets []*models.SnapshotAsset
	for _, deployment := range deployments {
		client, ok := c.clients[deployment.NetworkID]
		if !ok {
			continue
		}

		var quantity decimal.Decimal
		var err error
		if deployment.TokenAddress == nil {
			quantity, err = c.nativeBalance(ctx, client, holder)
		} else {
			quantity, err = c.tokenBalance(ctx, client, holder, *deployment.TokenAddress)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to fetch balance for deployment %s: %w", deployment.ID, err)
		}

		if quantity.IsZero() {
			continue
		}

		assets = append(assets, &models.SnapshotAsset{
			CryptocurrencyNetworkID: deployment.ID,
			Quantity:                quantity,
		})
	}

	return assets, nil
}

func (c *EVMCollector) nativeBalance(ctx context.Context, client *ethclient.Client, holder common.Address) (decimal.Decimal, error) {
	wei, err := client.BalanceAt(ctx, holder, nil)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromBigInt(wei, -nativeDecimals), nil
}

func (c *EVMCollector) tokenBalance(ctx context.Context, client *ethclient.Client, holder common.Address, tokenAddress string) (decimal.Decimal, error) {
	token := common.HexToAddress(tokenAddress)

	data := make([]byte, 0, 36)
	data = append(data, selectorBalanceOf...)
	data = append(data, common.LeftPadBytes(holder.Bytes(), 32)...)

	raw, err := client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("balanceOf call failed: %w", err)
	}

	decimals, err := c.tokenDecimals(ctx, client, token)
	if err != nil {
		return decimal.Zero, err
	}

	balance := new(big.Int).SetBytes(raw)
	return decimal.NewFromBigInt(balance, -decimals), nil
}

func (c *EVMCollector) tokenDecimals(ctx context.Context, client *ethclient.Client, token common.Address) (int32, error) {
	key := token.Hex()
	if cached, ok := c.decimals[key]; ok {
		return cached, nil
	}

	raw, err := client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: selectorDecimals}, nil)
	if err != nil {
		return 0, fmt.Errorf("decimals call failed: %w", err)
	}

	decimals := int32(new(big.Int).SetBytes(raw).Int64()) // #nosec G115 - decimals fits in int32
	c.decimals[key] = decimals
	return decimals, nil
}
