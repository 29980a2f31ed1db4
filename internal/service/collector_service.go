package service

import (
	"context"
	"time"

	"github.com/cryptotracker/internal/logging"
	"github.com/cryptotracker/internal/models"
	"github.com/cryptotracker/internal/storage"
	"github.com/cryptotracker/internal/types"
	"github.com/shopspring/decimal"
)

// PriceSource fetches reporting-currency prices for a set of tokens.
// The returned map is keyed by cryptocurrency ID; tokens the source cannot
// price are simply absent from the map.
type PriceSource interface {
	Prices(ctx context.Context, cryptos []*models.Cryptocurrency) (map[string]decimal.Decimal, error)
}

// AssetCollector fetches on-chain token balances for one tracked address
// across the known token deployments.
type AssetCollector interface {
	Balances(ctx context.Context, address *models.UserAddress, deployments []*models.CryptocurrencyNetwork) ([]*models.SnapshotAsset, error)
}

// StakingCollector fetches the current state of one staking validator
type StakingCollector interface {
	ValidatorState(ctx context.Context, validator *models.Validator) (*models.ValidatorSnapshot, error)
}

// ProtocolCollector fetches DeFi position state: pool balances plus unclaimed
// rewards for a position, and collateral/debt state for a trove.
type ProtocolCollector interface {
	PositionState(ctx context.Context, position *models.PoolPosition) ([]*models.PoolBalanceSnapshot, []*models.PoolRewardsSnapshot, error)
	TroveState(ctx context.Context, trove *models.Trove) (*models.TroveSnapshot, error)
}

// CollectorRegistryRepository is the reference data surface the collector
// resolves holdings against.
type CollectorRegistryRepository interface {
	ListCryptocurrencies(ctx context.Context) ([]*models.Cryptocurrency, error)
	ListCryptocurrencyNetworks(ctx context.Context) ([]*models.CryptocurrencyNetwork, error)
	ListValidatorsByAddresses(ctx context.Context, addressIDs []string) ([]*models.Validator, error)
	ListPoolPositionsByAddresses(ctx context.Context, addressIDs []string) ([]*models.PoolPosition, error)
	ListTrovesByAddresses(ctx context.Context, addressIDs []string) ([]*models.Trove, error)
}

// CollectorAddressRepository lists the addresses a run collects for
type CollectorAddressRepository interface {
	ListByUser(ctx context.Context, userID string) ([]*models.UserAddress, error)
}

// CollectorSnapshotRepository persists a finished run atomically
type CollectorSnapshotRepository interface {
	CommitRun(ctx context.Context, run *storage.SnapshotRun) error
}

// CollectorService runs snapshot collection: it walks a user's tracked
// addresses, fetches balances, staking state, DeFi positions, and prices,
// and commits the whole run as one snapshot.
//
// Individual fetch failures never abort the run. Each failure becomes a row
// in the error ledger and the run commits with whatever data was collected,
// so one flaky RPC endpoint cannot block the snapshot.
type CollectorService struct {
	registryRepo CollectorRegistryRepository
	addressRepo  CollectorAddressRepository
	snapshotRepo CollectorSnapshotRepository
	prices       PriceSource
	assets       AssetCollector
	staking      StakingCollector
	protocols    ProtocolCollector
	logger       *logging.Logger
}

// NewCollectorService creates a new collector service
func NewCollectorService(
	registryRepo CollectorRegistryRepository,
	addressRepo CollectorAddressRepository,
	snapshotRepo CollectorSnapshotRepository,
	prices PriceSource,
	assets AssetCollector,
	staking StakingCollector,
	protocols ProtocolCollector,
	logger *logging.Logger,
) *CollectorService {
	return &CollectorService{
		registryRepo: registryRepo,
		addressRepo:  addressRepo,
		snapshotRepo: snapshotRepo,
		prices:       prices,
		assets:       assets,
		staking:      staking,
		protocols:    protocols,
		logger:       logger,
	}
}

// Run collects a full snapshot for one user's addresses and commits it
func (s *CollectorService) Run(ctx context.Context, userID string) error {
	started := time.Now()

	addresses, err := s.addressRepo.ListByUser(ctx, userID)
	if err != nil {
		return err
	}

	run := &storage.SnapshotRun{
		Snapshot: models.Snapshot{Date: time.Now().UTC()},
	}

	s.collectPrices(ctx, run)
	s.collectAssets(ctx, run, addresses)
	s.collectStaking(ctx, run, addresses)
	s.collectProtocols(ctx, run, addresses)

	if err := s.snapshotRepo.CommitRun(ctx, run); err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"snapshotId": run.Snapshot.ID,
		"userId":     userID,
		"assets":     len(run.Assets),
		"validators": len(run.ValidatorSnapshots),
		"errors":     len(run.Errors),
		"durationMs": time.Since(started).Milliseconds(),
	}).Info("snapshot collected")

	return nil
}

func (s *CollectorService) collectPrices(ctx context.Context, run *storage.SnapshotRun) {
	cryptos, err := s.registryRepo.ListCryptocurrencies(ctx)
	if err != nil {
		s.recordError(run, types.ErrorPrices, nil, nil, err)
		return
	}

	priced, err := s.prices.Prices(ctx, cryptos)
	if err != nil {
		s.recordError(run, types.ErrorPrices, nil, nil, err)
		return
	}

	for _, crypto := range cryptos {
		price, ok := priced[crypto.ID]
		if !ok {
			cryptoID := crypto.ID
			run.Errors = append(run.Errors, &models.SnapshotError{
				ErrorType:        types.ErrorPrices,
				CryptocurrencyID: &cryptoID,
				Message:          "no price available for " + crypto.Symbol,
			})
			continue
		}
		run.Prices = append(run.Prices, &models.Price{
			CryptocurrencyID: crypto.ID,
			Price:            price,
		})
	}
}

func (s *CollectorService) collectAssets(ctx context.Context, run *storage.SnapshotRun, addresses []*models.UserAddress) {
	deployments, err := s.registryRepo.ListCryptocurrencyNetworks(ctx)
	if err != nil {
		s.recordError(run, types.ErrorAssets, nil, nil, err)
		return
	}

	for _, address := range addresses {
		balances, err := s.assets.Balances(ctx, address, deployments)
		if err != nil {
			s.recordError(run, types.ErrorAssets, &address.ID, nil, err)
			continue
		}
		for _, balance := range balances {
			balance.UserAddressID = address.ID
			run.Assets = append(run.Assets, balance)
		}
	}
}

func (s *CollectorService) collectStaking(ctx context.Context, run *storage.SnapshotRun, addresses []*models.UserAddress) {
	validators, err := s.registryRepo.ListValidatorsByAddresses(ctx, addressIDs(addresses))
	if err != nil {
		s.recordError(run, types.ErrorStaking, nil, nil, err)
		return
	}

	for _, validator := range validators {
		state, err := s.staking.ValidatorState(ctx, validator)
		if err != nil {
			s.recordError(run, types.ErrorStaking, &validator.UserAddressID, nil, err)
			continue
		}
		state.ValidatorID = validator.ID
		run.ValidatorSnapshots = append(run.ValidatorSnapshots, state)
	}
}

func (s *CollectorService) collectProtocols(ctx context.Context, run *storage.SnapshotRun, addresses []*models.UserAddress) {
	ids := addressIDs(addresses)

	positions, err := s.registryRepo.ListPoolPositionsByAddresses(ctx, ids)
	if err != nil {
		s.recordError(run, types.ErrorProtocols, nil, nil, err)
	} else {
		for _, position := range positions {
			balances, rewards, err := s.protocols.PositionState(ctx, position)
			if err != nil {
				s.recordError(run, types.ErrorProtocols, &position.UserAddressID, nil, err)
				continue
			}
			for _, b := range balances {
				b.PoolPositionID = position.ID
				run.PoolBalances = append(run.PoolBalances, b)
			}
			for _, r := range rewards {
				r.PoolPositionID = position.ID
				run.PoolRewards = append(run.PoolRewards, r)
			}
		}
	}

	troves, err := s.registryRepo.ListTrovesByAddresses(ctx, ids)
	if err != nil {
		s.recordError(run, types.ErrorProtocols, nil, nil, err)
		return
	}
	for _, trove := range troves {
		state, err := s.protocols.TroveState(ctx, trove)
		if err != nil {
			s.recordError(run, types.ErrorProtocols, &trove.UserAddressID, nil, err)
			continue
		}
		state.TroveID = trove.ID
		run.TroveSnapshots = append(run.TroveSnapshots, state)
	}
}

func (s *CollectorService) recordError(run *storage.SnapshotRun, errType types.CollectionErrorType, addressID, protocolID *string, err error) {
	s.logger.WithError(err).WithField("errorType", string(errType)).Warn("snapshot collection failure")
	run.Errors = append(run.Errors, &models.SnapshotError{
		UserAddressID: addressID,
		ErrorType:     errType,
		ProtocolID:    protocolID,
		Message:       err.Error(),
	})
}
