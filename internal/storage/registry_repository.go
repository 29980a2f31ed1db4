package storage

import (
	"context"
	"fmt"

	"github.com/cryptotracker/internal/models"
)

// RegistryRepository reads the reference data the snapshot collector resolves
// against: tokens, token-network deployments, validators, positions, troves.
type RegistryRepository struct {
	db *PostgresDB
}

// NewRegistryRepository creates a new registry repository
func NewRegistryRepository(db *PostgresDB) *RegistryRepository {
	return &RegistryRepository{db: db}
}

// ListNetworks lists every network known to the system
func (r *RegistryRepository) ListNetworks(ctx context.Context) ([]*models.Network, error) {
	query := `SELECT id, name, url_rpc, image FROM networks ORDER BY name`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list networks: %w", err)
	}
	defer rows.Close()

	var networks []*models.Network
	for rows.Next() {
		var network models.Network
		if err := rows.Scan(&network.ID, &network.Name, &network.RPCURL, &network.Image); err != nil {
			return nil, fmt.Errorf("failed to scan network: %w", err)
		}
		networks = append(networks, &network)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating networks: %w", err)
	}

	return networks, nil
}

// ListCryptocurrencies lists every token known to the system
func (r *RegistryRepository) ListCryptocurrencies(ctx context.Context) ([]*models.Cryptocurrency, error) {
	query := `SELECT id, name, symbol, image FROM cryptocurrencies ORDER BY symbol`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list cryptocurrencies: %w", err)
	}
	defer rows.Close()

	var cryptos []*models.Cryptocurrency
	for rows.Next() {
		var crypto models.Cryptocurrency
		if err := rows.Scan(&crypto.ID, &crypto.Name, &crypto.Symbol, &crypto.Image); err != nil {
			return nil, fmt.Errorf("failed to scan cryptocurrency: %w", err)
		}
		cryptos = append(cryptos, &crypto)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cryptocurrencies: %w", err)
	}

	return cryptos, nil
}

// ListCryptocurrencyNetworks lists every token deployment known to the system
func (r *RegistryRepository) ListCryptocurrencyNetworks(ctx context.Context) ([]*models.CryptocurrencyNetwork, error) {
	query := `
		SELECT id, cryptocurrency_id, network_id, token_address
		FROM cryptocurrency_networks
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list cryptocurrency networks: %w", err)
	}
	defer rows.Close()

	var deployments []*models.CryptocurrencyNetwork
	for rows.Next() {
		var cn models.CryptocurrencyNetwork
		if err := rows.Scan(&cn.ID, &cn.CryptocurrencyID, &cn.NetworkID, &cn.TokenAddress); err != nil {
			return nil, fmt.Errorf("failed to scan cryptocurrency network: %w", err)
		}
		deployments = append(deployments, &cn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cryptocurrency networks: %w", err)
	}

	return deployments, nil
}

// ListValidatorsByAddresses lists validators tied to the given addresses
func (r *RegistryRepository) ListValidatorsByAddresses(ctx context.Context, addressIDs []string) ([]*models.Validator, error) {
	if len(addressIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, user_address_id, validator_index, public_key, activation_date
		FROM validators
		WHERE user_address_id = ANY($1::uuid[])
		ORDER BY validator_index
	`

	rows, err := r.db.Pool().Query(ctx, query, addressIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list validators: %w", err)
	}
	defer rows.Close()

	var validators []*models.Validator
	for rows.Next() {
		var v models.Validator
		if err := rows.Scan(&v.ID, &v.UserAddressID, &v.ValidatorIndex, &v.PublicKey, &v.ActivationDate); err != nil {
			return nil, fmt.Errorf("failed to scan validator: %w", err)
		}
		validators = append(validators, &v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating validators: %w", err)
	}

	return validators, nil
}

// ListPoolPositionsByAddresses lists pool positions held by the given addresses
func (r *RegistryRepository) ListPoolPositionsByAddresses(ctx context.Context, addressIDs []string) ([]*models.PoolPosition, error) {
	if len(addressIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, pool_id, user_address_id, position_id
		FROM pool_positions
		WHERE user_address_id = ANY($1::uuid[])
	`

	rows, err := r.db.Pool().Query(ctx, query, addressIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list pool positions: %w", err)
	}
	defer rows.Close()

	var positions []*models.PoolPosition
	for rows.Next() {
		var p models.PoolPosition
		if err := rows.Scan(&p.ID, &p.PoolID, &p.UserAddressID, &p.PositionID); err != nil {
			return nil, fmt.Errorf("failed to scan pool position: %w", err)
		}
		positions = append(positions, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pool positions: %w", err)
	}

	return positions, nil
}

// ListTrovesByAddresses lists troves opened by the given addresses
func (r *RegistryRepository) ListTrovesByAddresses(ctx context.Context, addressIDs []string) ([]*models.Trove, error) {
	if len(addressIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, user_address_id, pool_id, trove_id, cryptocurrency_id
		FROM troves
		WHERE user_address_id = ANY($1::uuid[])
	`

	rows, err := r.db.Pool().Query(ctx, query, addressIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list troves: %w", err)
	}
	defer rows.Close()

	var troves []*models.Trove
	for rows.Next() {
		var t models.Trove
		if err := rows.Scan(&t.ID, &t.UserAddressID, &t.PoolID, &t.TroveID, &t.CryptocurrencyID); err != nil {
			return nil, fmt.Errorf("failed to scan trove: %w", err)
		}
		troves = append(troves, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating troves: %w", err)
	}

	return troves, nil
}
