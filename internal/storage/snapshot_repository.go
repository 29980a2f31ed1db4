package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cryptotracker/internal/models"
	"github.com/cryptotracker/internal/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// SnapshotRepository handles the append-only snapshot ledger and the
// aggregation queries the valuation layer reads from it.
type SnapshotRepository struct {
	db *PostgresDB
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *PostgresDB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Latest returns the most recent snapshot, or ErrNotFound when none exists
func (r *SnapshotRepository) Latest(ctx context.Context) (*models.Snapshot, error) {
	query := `SELECT id, date FROM snapshots ORDER BY date DESC LIMIT 1`

	var snapshot models.Snapshot
	err := r.db.Pool().QueryRow(ctx, query).Scan(&snapshot.ID, &snapshot.Date)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}

	return &snapshot, nil
}

// GetByDay returns the newest snapshot taken on the given UTC calendar day
func (r *SnapshotRepository) GetByDay(ctx context.Context, day time.Time) (*models.Snapshot, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	query := `
		SELECT id, date
		FROM snapshots
		WHERE date >= $1 AND date < $2
		ORDER BY date DESC
		LIMIT 1
	`

	var snapshot models.Snapshot
	err := r.db.Pool().QueryRow(ctx, query, dayStart, dayEnd).Scan(&snapshot.ID, &snapshot.Date)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get snapshot by day: %w", err)
	}

	return &snapshot, nil
}

// SnapshotRun holds every row produced by one collection run.
// CommitRun writes the whole run in a single transaction, so readers either
// see the complete snapshot or nothing at all.
type SnapshotRun struct {
	Snapshot           models.Snapshot
	Prices             []*models.Price
	Assets             []*models.SnapshotAsset
	ValidatorSnapshots []*models.ValidatorSnapshot
	PoolBalances       []*models.PoolBalanceSnapshot
	PoolRewards        []*models.PoolRewardsSnapshot
	TroveSnapshots     []*models.TroveSnapshot
	Errors             []*models.SnapshotError
}

// CommitRun persists a collection run atomically
func (r *SnapshotRepository) CommitRun(ctx context.Context, run *SnapshotRun) error {
	if run.Snapshot.ID == "" {
		run.Snapshot.ID = uuid.New().String()
	}
	if run.Snapshot.Date.IsZero() {
		run.Snapshot.Date = time.Now().UTC()
	}

	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // nolint:errcheck // no-op after commit
	}()

	if _, err := tx.Exec(ctx,
		`INSERT INTO snapshots (id, date) VALUES ($1, $2)`,
		run.Snapshot.ID, run.Snapshot.Date,
	); err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	for _, price := range run.Prices {
		if price.ID == "" {
			price.ID = uuid.New().String()
		}
		price.SnapshotID = run.Snapshot.ID
		if _, err := tx.Exec(ctx,
			`INSERT INTO prices (id, cryptocurrency_id, snapshot_id, price) VALUES ($1, $2, $3, $4)`,
			price.ID, price.CryptocurrencyID, price.SnapshotID, price.Price,
		); err != nil {
			return fmt.Errorf("failed to insert price: %w", err)
		}
	}

	for _, asset := range run.Assets {
		if asset.ID == "" {
			asset.ID = uuid.New().String()
		}
		asset.SnapshotID = run.Snapshot.ID
		if _, err := tx.Exec(ctx,
			`INSERT INTO snapshot_assets (id, cryptocurrency_network_id, user_address_id, snapshot_id, quantity)
			 VALUES ($1, $2, $3, $4, $5)`,
			asset.ID, asset.CryptocurrencyNetworkID, asset.UserAddressID, asset.SnapshotID, asset.Quantity,
		); err != nil {
			return fmt.Errorf("failed to insert snapshot asset: %w", err)
		}
	}

	for _, vs := range run.ValidatorSnapshots {
		if vs.ID == "" {
			vs.ID = uuid.New().String()
		}
		vs.SnapshotID = run.Snapshot.ID
		if _, err := tx.Exec(ctx,
			`INSERT INTO validator_snapshots (id, validator_id, snapshot_id, balance, status, rewards)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			vs.ID, vs.ValidatorID, vs.SnapshotID, vs.Balance, vs.Status, vs.Rewards,
		); err != nil {
			return fmt.Errorf("failed to insert validator snapshot: %w", err)
		}
	}

	for _, pb := range run.PoolBalances {
		if pb.ID == "" {
			pb.ID = uuid.New().String()
		}
		pb.SnapshotID = run.Snapshot.ID
		if _, err := tx.Exec(ctx,
			`INSERT INTO pool_balance_snapshots (id, pool_position_id, cryptocurrency_id, snapshot_id, quantity)
			 VALUES ($1, $2, $3, $4, $5)`,
			pb.ID, pb.PoolPositionID, pb.CryptocurrencyID, pb.SnapshotID, pb.Quantity,
		); err != nil {
			return fmt.Errorf("failed to insert pool balance snapshot: %w", err)
		}
	}

	for _, pr := range run.PoolRewards {
		if pr.ID == "" {
			pr.ID = uuid.New().String()
		}
		pr.SnapshotID = run.Snapshot.ID
		if _, err := tx.Exec(ctx,
			`INSERT INTO pool_rewards_snapshots (id, pool_position_id, cryptocurrency_id, snapshot_id, quantity)
			 VALUES ($1, $2, $3, $4, $5)`,
			pr.ID, pr.PoolPositionID, pr.CryptocurrencyID, pr.SnapshotID, pr.Quantity,
		); err != nil {
			return fmt.Errorf("failed to insert pool rewards snapshot: %w", err)
		}
	}

	for _, ts := range run.TroveSnapshots {
		if ts.ID == "" {
			ts.ID = uuid.New().String()
		}
		ts.SnapshotID = run.Snapshot.ID
		if _, err := tx.Exec(ctx,
			`INSERT INTO trove_snapshots (id, trove_id, snapshot_id, collateral, debt, balance, interest_rate)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			ts.ID, ts.TroveID, ts.SnapshotID, ts.Collateral, ts.Debt, ts.Balance, ts.InterestRate,
		); err != nil {
			return fmt.Errorf("failed to insert trove snapshot: %w", err)
		}
	}

	for _, se := range run.Errors {
		if se.ID == "" {
			se.ID = uuid.New().String()
		}
		se.SnapshotID = run.Snapshot.ID
		if _, err := tx.Exec(ctx,
			`INSERT INTO snapshot_errors (id, snapshot_id, user_address_id, error_type, cryptocurrency_id, protocol_id, message)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			se.ID, se.SnapshotID, se.UserAddressID, se.ErrorType, se.CryptocurrencyID, se.ProtocolID, se.Message,
		); err != nil {
			return fmt.Errorf("failed to insert snapshot error: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit snapshot run: %w", err)
	}

	return nil
}

// AssetAggregate is one token's aggregated holding across a set of addresses
// at a snapshot, priced in the reporting currency.
type AssetAggregate struct {
	Symbol   string          `json:"symbol"`
	Name     string          `json:"name"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Amount   decimal.Decimal `json:"amount"`
}

// AssetAggregates sums token holdings per cryptocurrency for the given
// addresses at the given snapshot. Tokens without a price row contribute zero.
func (r *SnapshotRepository) AssetAggregates(ctx context.Context, snapshotID string, addressIDs []string) ([]*AssetAggregate, error) {
	if len(addressIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT c.symbol,
		       c.name,
		       SUM(sa.quantity) AS quantity,
		       COALESCE(p.price, 0) AS price,
		       SUM(sa.quantity) * COALESCE(p.price, 0) AS amount
		FROM snapshot_assets sa
		JOIN cryptocurrency_networks cn ON cn.id = sa.cryptocurrency_network_id
		JOIN cryptocurrencies c ON c.id = cn.cryptocurrency_id
		LEFT JOIN prices p ON p.snapshot_id = sa.snapshot_id AND p.cryptocurrency_id = c.id
		WHERE sa.snapshot_id = $1 AND sa.user_address_id = ANY($2::uuid[])
		GROUP BY c.id, c.symbol, c.name, p.price
		ORDER BY amount DESC
	`

	rows, err := r.db.Pool().Query(ctx, query, snapshotID, addressIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate assets: %w", err)
	}
	defer rows.Close()

	var aggregates []*AssetAggregate
	for rows.Next() {
		var agg AssetAggregate
		if err := rows.Scan(&agg.Symbol, &agg.Name, &agg.Quantity, &agg.Price, &agg.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan asset aggregate: %w", err)
		}
		aggregates = append(aggregates, &agg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating asset aggregates: %w", err)
	}

	return aggregates, nil
}

// StakingAggregate is the summed staking state for a set of addresses
type StakingAggregate struct {
	Balance decimal.Decimal `json:"balance"`
	Rewards decimal.Decimal `json:"rewards"`
}

// StakingAggregate sums validator balances and rewards for the given
// addresses at the given snapshot.
func (r *SnapshotRepository) StakingAggregate(ctx context.Context, snapshotID string, addressIDs []string) (*StakingAggregate, error) {
	if len(addressIDs) == 0 {
		return &StakingAggregate{}, nil
	}

	query := `
		SELECT COALESCE(SUM(vs.balance), 0), COALESCE(SUM(vs.rewards), 0)
		FROM validator_snapshots vs
		JOIN validators v ON v.id = vs.validator_id
		WHERE vs.snapshot_id = $1 AND v.user_address_id = ANY($2::uuid[])
	`

	var agg StakingAggregate
	err := r.db.Pool().QueryRow(ctx, query, snapshotID, addressIDs).Scan(&agg.Balance, &agg.Rewards)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate staking: %w", err)
	}

	return &agg, nil
}

// ValidatorDetail is one validator's state at a snapshot, for the staking view
type ValidatorDetail struct {
	ValidatorIndex int64                 `json:"validatorIndex"`
	PublicKey      string                `json:"publicKey"`
	Status         types.ValidatorStatus `json:"status"`
	Balance        decimal.Decimal       `json:"balance"`
	Rewards        decimal.Decimal       `json:"rewards"`
	SnapshotDate   time.Time             `json:"snapshotDate"`
}

// ValidatorDetails lists per-validator state for the given addresses at the
// given snapshot.
func (r *SnapshotRepository) ValidatorDetails(ctx context.Context, snapshotID string, addressIDs []string) ([]*ValidatorDetail, error) {
	if len(addressIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT v.validator_index, v.public_key, vs.status, vs.balance, vs.rewards, s.date
		FROM validator_snapshots vs
		JOIN validators v ON v.id = vs.validator_id
		JOIN snapshots s ON s.id = vs.snapshot_id
		WHERE vs.snapshot_id = $1 AND v.user_address_id = ANY($2::uuid[])
		ORDER BY v.validator_index
	`

	rows, err := r.db.Pool().Query(ctx, query, snapshotID, addressIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list validator details: %w", err)
	}
	defer rows.Close()

	var details []*ValidatorDetail
	for rows.Next() {
		var d ValidatorDetail
		if err := rows.Scan(&d.ValidatorIndex, &d.PublicKey, &d.Status, &d.Balance, &d.Rewards, &d.SnapshotDate); err != nil {
			return nil, fmt.Errorf("failed to scan validator detail: %w", err)
		}
		details = append(details, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating validator details: %w", err)
	}

	return details, nil
}

// PoolAggregate is one pool position's holding priced in the reporting currency
type PoolAggregate struct {
	Protocol string          `json:"protocol"`
	PoolType string          `json:"poolType"`
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Amount   decimal.Decimal `json:"amount"`
}

// PoolBalanceAggregates lists priced pool balances for the given addresses at
// the given snapshot, grouped by protocol.
func (r *SnapshotRepository) PoolBalanceAggregates(ctx context.Context, snapshotID string, addressIDs []string) ([]*PoolAggregate, error) {
	return r.poolAggregates(ctx, "pool_balance_snapshots", snapshotID, addressIDs)
}

// PoolRewardAggregates lists priced unclaimed pool rewards for the given
// addresses at the given snapshot.
func (r *SnapshotRepository) PoolRewardAggregates(ctx context.Context, snapshotID string, addressIDs []string) ([]*PoolAggregate, error) {
	return r.poolAggregates(ctx, "pool_rewards_snapshots", snapshotID, addressIDs)
}

func (r *SnapshotRepository) poolAggregates(ctx context.Context, table, snapshotID string, addressIDs []string) ([]*PoolAggregate, error) {
	if len(addressIDs) == 0 {
		return nil, nil
	}

	// table is one of two compile-time constants, never user input
	query := fmt.Sprintf(`
		SELECT pr.name,
		       pt.name,
		       c.symbol,
		       ps.quantity,
		       COALESCE(p.price, 0),
		       ps.quantity * COALESCE(p.price, 0)
		FROM %s ps
		JOIN pool_positions pp ON pp.id = ps.pool_position_id
		JOIN pools pl ON pl.id = pp.pool_id
		JOIN pool_types pt ON pt.id = pl.pool_type_id
		JOIN protocol_networks pn ON pn.id = pl.protocol_network_id
		JOIN protocols pr ON pr.id = pn.protocol_id
		JOIN cryptocurrencies c ON c.id = ps.cryptocurrency_id
		LEFT JOIN prices p ON p.snapshot_id = ps.snapshot_id AND p.cryptocurrency_id = c.id
		WHERE ps.snapshot_id = $1 AND pp.user_address_id = ANY($2::uuid[])
		ORDER BY pr.name, pt.name
	`, table)

	rows, err := r.db.Pool().Query(ctx, query, snapshotID, addressIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate pools: %w", err)
	}
	defer rows.Close()

	var aggregates []*PoolAggregate
	for rows.Next() {
		var agg PoolAggregate
		if err := rows.Scan(&agg.Protocol, &agg.PoolType, &agg.Symbol, &agg.Quantity, &agg.Price, &agg.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan pool aggregate: %w", err)
		}
		aggregates = append(aggregates, &agg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pool aggregates: %w", err)
	}

	return aggregates, nil
}

// TroveAggregate is one trove's state at a snapshot; Balance is already in
// the reporting currency.
type TroveAggregate struct {
	Protocol     string          `json:"protocol"`
	Symbol       string          `json:"symbol"`
	Collateral   decimal.Decimal `json:"collateral"`
	Debt         decimal.Decimal `json:"debt"`
	Balance      decimal.Decimal `json:"balance"`
	InterestRate decimal.Decimal `json:"interestRate"`
}

// TroveAggregates lists trove states for the given addresses at the snapshot
func (r *SnapshotRepository) TroveAggregates(ctx context.Context, snapshotID string, addressIDs []string) ([]*TroveAggregate, error) {
	if len(addressIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT pr.name, c.symbol, ts.collateral, ts.debt, ts.balance, ts.interest_rate
		FROM trove_snapshots ts
		JOIN troves t ON t.id = ts.trove_id
		JOIN pools pl ON pl.id = t.pool_id
		JOIN protocol_networks pn ON pn.id = pl.protocol_network_id
		JOIN protocols pr ON pr.id = pn.protocol_id
		JOIN cryptocurrencies c ON c.id = t.cryptocurrency_id
		WHERE ts.snapshot_id = $1 AND t.user_address_id = ANY($2::uuid[])
		ORDER BY pr.name
	`

	rows, err := r.db.Pool().Query(ctx, query, snapshotID, addressIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate troves: %w", err)
	}
	defer rows.Close()

	var aggregates []*TroveAggregate
	for rows.Next() {
		var agg TroveAggregate
		if err := rows.Scan(&agg.Protocol, &agg.Symbol, &agg.Collateral, &agg.Debt, &agg.Balance, &agg.InterestRate); err != nil {
			return nil, fmt.Errorf("failed to scan trove aggregate: %w", err)
		}
		aggregates = append(aggregates, &agg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trove aggregates: %w", err)
	}

	return aggregates, nil
}

// PriceBySymbol returns the reporting-currency price of a token at a snapshot
func (r *SnapshotRepository) PriceBySymbol(ctx context.Context, snapshotID, symbol string) (decimal.Decimal, error) {
	query := `
		SELECT p.price
		FROM prices p
		JOIN cryptocurrencies c ON c.id = p.cryptocurrency_id
		WHERE p.snapshot_id = $1 AND c.symbol = $2
	`

	var price decimal.Decimal
	err := r.db.Pool().QueryRow(ctx, query, snapshotID, symbol).Scan(&price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to get price: %w", err)
	}

	return price, nil
}

// LastPriceBySymbol returns the most recent persisted price for a token at or
// before the given time.
func (r *SnapshotRepository) LastPriceBySymbol(ctx context.Context, symbol string, at time.Time) (decimal.Decimal, error) {
	query := `
		SELECT p.price
		FROM prices p
		JOIN cryptocurrencies c ON c.id = p.cryptocurrency_id
		JOIN snapshots s ON s.id = p.snapshot_id
		WHERE c.symbol = $1 AND s.date <= $2
		ORDER BY s.date DESC
		LIMIT 1
	`

	var price decimal.Decimal
	err := r.db.Pool().QueryRow(ctx, query, symbol, at).Scan(&price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to get last price: %w", err)
	}

	return price, nil
}
