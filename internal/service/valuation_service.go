package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cryptotracker/internal/logging"
	"github.com/cryptotracker/internal/models"
	"github.com/cryptotracker/internal/storage"
	"github.com/cryptotracker/internal/types"
	"github.com/shopspring/decimal"
)

// stakingSymbol is the token staking balances and rewards are denominated in
const stakingSymbol = "ETH"

// ValuationSnapshotRepository is the snapshot read surface the valuation
// service aggregates over.
type ValuationSnapshotRepository interface {
	Latest(ctx context.Context) (*models.Snapshot, error)
	GetByDay(ctx context.Context, day time.Time) (*models.Snapshot, error)
	AssetAggregates(ctx context.Context, snapshotID string, addressIDs []string) ([]*storage.AssetAggregate, error)
	StakingAggregate(ctx context.Context, snapshotID string, addressIDs []string) (*storage.StakingAggregate, error)
	ValidatorDetails(ctx context.Context, snapshotID string, addressIDs []string) ([]*storage.ValidatorDetail, error)
	PoolBalanceAggregates(ctx context.Context, snapshotID string, addressIDs []string) ([]*storage.PoolAggregate, error)
	PoolRewardAggregates(ctx context.Context, snapshotID string, addressIDs []string) ([]*storage.PoolAggregate, error)
	TroveAggregates(ctx context.Context, snapshotID string, addressIDs []string) ([]*storage.TroveAggregate, error)
	PriceBySymbol(ctx context.Context, snapshotID, symbol string) (decimal.Decimal, error)
	LastPriceBySymbol(ctx context.Context, symbol string, at time.Time) (decimal.Decimal, error)
}

// ValuationAddressRepository is the address read surface the valuation service
// resolves a user's holdings through.
type ValuationAddressRepository interface {
	GetByIDAndUser(ctx context.Context, id, userID string) (*models.UserAddress, error)
	ListByUser(ctx context.Context, userID string) ([]*models.UserAddress, error)
	ListByAccount(ctx context.Context, accountID string) ([]*models.UserAddress, error)
	ListByUserAndWalletType(ctx context.Context, userID string, walletType types.WalletType) ([]*models.UserAddress, error)
}

// ValuationAccountRepository lists a user's accounts for per-account breakdowns
type ValuationAccountRepository interface {
	ListByUser(ctx context.Context, userID string) ([]*models.Account, error)
}

// ValuationErrorRepository reads the collection error ledger
type ValuationErrorRepository interface {
	ListBySnapshot(ctx context.Context, snapshotID string, addressIDs []string) ([]*models.SnapshotError, error)
}

// ValuationService computes portfolio values from persisted snapshots.
// It never touches chains or price feeds; everything it reports was collected
// by an earlier snapshot run.
type ValuationService struct {
	snapshotRepo ValuationSnapshotRepository
	addressRepo  ValuationAddressRepository
	accountRepo  ValuationAccountRepository
	errorRepo    ValuationErrorRepository
	logger       *logging.Logger
}

// NewValuationService creates a new valuation service
func NewValuationService(
	snapshotRepo ValuationSnapshotRepository,
	addressRepo ValuationAddressRepository,
	accountRepo ValuationAccountRepository,
	errorRepo ValuationErrorRepository,
	logger *logging.Logger,
) *ValuationService {
	return &ValuationService{
		snapshotRepo: snapshotRepo,
		addressRepo:  addressRepo,
		accountRepo:  accountRepo,
		errorRepo:    errorRepo,
		logger:       logger,
	}
}

func addressIDs(addresses []*models.UserAddress) []string {
	ids := make([]string, 0, len(addresses))
	for _, a := range addresses {
		ids = append(ids, a.ID)
	}
	return ids
}

// TotalValue sums a set of addresses' holdings at a snapshot: spot token
// balances, staked balances priced at the snapshot's staking token price,
// pool balances, and trove balances. Missing prices contribute zero rather
// than failing the whole valuation.
func (s *ValuationService) TotalValue(ctx context.Context, snapshot *models.Snapshot, ids []string) (decimal.Decimal, error) {
	if len(ids) == 0 {
		return decimal.Zero, nil
	}

	total := decimal.Zero

	assets, err := s.snapshotRepo.AssetAggregates(ctx, snapshot.ID, ids)
	if err != nil {
		return decimal.Zero, err
	}
	for _, a := range assets {
		total = total.Add(a.Amount)
	}

	staking, err := s.snapshotRepo.StakingAggregate(ctx, snapshot.ID, ids)
	if err != nil {
		return decimal.Zero, err
	}
	if !staking.Balance.IsZero() {
		price, err := s.snapshotRepo.PriceBySymbol(ctx, snapshot.ID, stakingSymbol)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				return decimal.Zero, err
			}
			s.logger.WithField("snapshotId", snapshot.ID).Warn("no staking token price at snapshot, staking valued at zero")
			price = decimal.Zero
		}
		total = total.Add(staking.Balance.Mul(price))
	}

	pools, err := s.snapshotRepo.PoolBalanceAggregates(ctx, snapshot.ID, ids)
	if err != nil {
		return decimal.Zero, err
	}
	for _, p := range pools {
		total = total.Add(p.Amount)
	}

	troves, err := s.snapshotRepo.TroveAggregates(ctx, snapshot.ID, ids)
	if err != nil {
		return decimal.Zero, err
	}
	for _, t := range troves {
		total = total.Add(t.Balance)
	}

	return total, nil
}

// UserTotalValue is TotalValue over every address the user tracks at the
// latest snapshot. With no snapshots yet it reports zero instead of failing.
func (s *ValuationService) UserTotalValue(ctx context.Context, userID string) (decimal.Decimal, error) {
	snapshot, err := s.snapshotRepo.Latest(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("no snapshots exist yet, total value is zero")
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}

	addresses, err := s.addressRepo.ListByUser(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}

	return s.TotalValue(ctx, snapshot, addressIDs(addresses))
}

// Portfolio is the full valuation view at one snapshot
type Portfolio struct {
	SnapshotDate time.Time                 `json:"snapshotDate"`
	Currency     string                    `json:"currency"`
	TotalValue   decimal.Decimal           `json:"totalValue"`
	Assets       []*storage.AssetAggregate `json:"assets"`
	Staking      *storage.StakingAggregate `json:"staking"`
	StakingValue decimal.Decimal           `json:"stakingValue"`
	Pools        []*storage.PoolAggregate  `json:"pools"`
	Troves       []*storage.TroveAggregate `json:"troves"`
	Errors       []*models.SnapshotError   `json:"errors,omitempty"`
	Warning      string                    `json:"warning,omitempty"`
}

// PortfolioAt builds the portfolio view for a user. A nil date means the
// latest snapshot. When no snapshot exists on the requested day the view
// falls back to the latest one and carries a warning instead of erroring.
func (s *ValuationService) PortfolioAt(ctx context.Context, userID string, date *time.Time) (*Portfolio, error) {
	var warning string

	snapshot, err := s.resolveSnapshot(ctx, date, &warning)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// No snapshots at all: an empty portfolio, not an error
			return &Portfolio{
				Currency:   types.ReportingCurrency,
				TotalValue: decimal.Zero,
				Staking:    &storage.StakingAggregate{},
				Warning:    "no snapshots have been collected yet",
			}, nil
		}
		return nil, err
	}

	addresses, err := s.addressRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := addressIDs(addresses)

	portfolio := &Portfolio{
		SnapshotDate: snapshot.Date,
		Currency:     types.ReportingCurrency,
		Staking:      &storage.StakingAggregate{},
		Warning:      warning,
	}

	if len(ids) == 0 {
		portfolio.TotalValue = decimal.Zero
		return portfolio, nil
	}

	portfolio.Assets, err = s.snapshotRepo.AssetAggregates(ctx, snapshot.ID, ids)
	if err != nil {
		return nil, err
	}

	portfolio.Staking, err = s.snapshotRepo.StakingAggregate(ctx, snapshot.ID, ids)
	if err != nil {
		return nil, err
	}

	portfolio.Pools, err = s.snapshotRepo.PoolBalanceAggregates(ctx, snapshot.ID, ids)
	if err != nil {
		return nil, err
	}

	portfolio.Troves, err = s.snapshotRepo.TroveAggregates(ctx, snapshot.ID, ids)
	if err != nil {
		return nil, err
	}

	portfolio.Errors, err = s.errorRepo.ListBySnapshot(ctx, snapshot.ID, ids)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, a := range portfolio.Assets {
		total = total.Add(a.Amount)
	}
	if !portfolio.Staking.Balance.IsZero() {
		price, err := s.snapshotRepo.PriceBySymbol(ctx, snapshot.ID, stakingSymbol)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				return nil, err
			}
			price = decimal.Zero
		}
		portfolio.StakingValue = portfolio.Staking.Balance.Mul(price)
		total = total.Add(portfolio.StakingValue)
	}
	for _, p := range portfolio.Pools {
		total = total.Add(p.Amount)
	}
	for _, t := range portfolio.Troves {
		total = total.Add(t.Balance)
	}
	portfolio.TotalValue = total

	return portfolio, nil
}

func (s *ValuationService) resolveSnapshot(ctx context.Context, date *time.Time, warning *string) (*models.Snapshot, error) {
	if date == nil {
		return s.snapshotRepo.Latest(ctx)
	}

	snapshot, err := s.snapshotRepo.GetByDay(ctx, *date)
	if err == nil {
		return snapshot, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	*warning = fmt.Sprintf("no snapshot found for %s, showing the latest instead", date.Format("2006-01-02"))
	s.logger.WithField("date", date.Format("2006-01-02")).Warn("requested snapshot day missing, falling back to latest")
	return s.snapshotRepo.Latest(ctx)
}

// StatisticsEntry is one labelled slice of the portfolio with its share of the
// total.
type StatisticsEntry struct {
	Label      string          `json:"label"`
	Value      decimal.Decimal `json:"value"`
	Percentage decimal.Decimal `json:"percentage"`
}

// Statistics is the portfolio broken down by wallet type and by account
type Statistics struct {
	TotalValue   decimal.Decimal    `json:"totalValue"`
	Currency     string             `json:"currency"`
	ByWalletType []*StatisticsEntry `json:"byWalletType"`
	ByAccount    []*StatisticsEntry `json:"byAccount"`
	SnapshotDate time.Time          `json:"snapshotDate"`
}

// Statistics breaks the user's latest valuation down by wallet type and
// account. Slices that value to zero are still listed so the view is stable
// across refreshes.
func (s *ValuationService) Statistics(ctx context.Context, userID string) (*Statistics, error) {
	snapshot, err := s.snapshotRepo.Latest(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &Statistics{TotalValue: decimal.Zero, Currency: types.ReportingCurrency}, nil
		}
		return nil, err
	}

	stats := &Statistics{
		Currency:     types.ReportingCurrency,
		SnapshotDate: snapshot.Date,
	}

	total := decimal.Zero
	for _, wt := range types.WalletTypes {
		addresses, err := s.addressRepo.ListByUserAndWalletType(ctx, userID, wt)
		if err != nil {
			return nil, err
		}
		value, err := s.TotalValue(ctx, snapshot, addressIDs(addresses))
		if err != nil {
			return nil, err
		}
		stats.ByWalletType = append(stats.ByWalletType, &StatisticsEntry{
			Label: string(wt),
			Value: value,
		})
		total = total.Add(value)
	}
	stats.TotalValue = total

	accounts, err := s.accountRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, account := range accounts {
		addresses, err := s.addressRepo.ListByAccount(ctx, account.ID)
		if err != nil {
			return nil, err
		}
		value, err := s.TotalValue(ctx, snapshot, addressIDs(addresses))
		if err != nil {
			return nil, err
		}
		stats.ByAccount = append(stats.ByAccount, &StatisticsEntry{
			Label: account.Name,
			Value: value,
		})
	}

	hundred := decimal.NewFromInt(100)
	for _, entry := range append(stats.ByWalletType, stats.ByAccount...) {
		if total.IsZero() {
			entry.Percentage = decimal.Zero
			continue
		}
		entry.Percentage = entry.Value.Div(total).Mul(hundred).Round(2)
	}

	return stats, nil
}

// ValidatorReward is one validator's accrued rewards priced at the last known
// staking token price on or before the snapshot.
type ValidatorReward struct {
	ValidatorIndex int64           `json:"validatorIndex"`
	Rewards        decimal.Decimal `json:"rewards"`
	Value          decimal.Decimal `json:"value"`
	SnapshotDate   time.Time       `json:"snapshotDate"`
}

// Rewards is the staking rewards view at the latest snapshot
type Rewards struct {
	Currency     string             `json:"currency"`
	TotalRewards decimal.Decimal    `json:"totalRewards"`
	TotalValue   decimal.Decimal    `json:"totalValue"`
	Validators   []*ValidatorReward `json:"validators"`
}

// Rewards reports per-validator accrued rewards for the user at the latest
// snapshot, each priced at the most recent price on or before that snapshot.
func (s *ValuationService) Rewards(ctx context.Context, userID string) (*Rewards, error) {
	rewards := &Rewards{Currency: types.ReportingCurrency}

	snapshot, err := s.snapshotRepo.Latest(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return rewards, nil
		}
		return nil, err
	}

	addresses, err := s.addressRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	details, err := s.snapshotRepo.ValidatorDetails(ctx, snapshot.ID, addressIDs(addresses))
	if err != nil {
		return nil, err
	}

	for _, d := range details {
		price, err := s.snapshotRepo.LastPriceBySymbol(ctx, stakingSymbol, d.SnapshotDate)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				return nil, err
			}
			price = decimal.Zero
		}
		vr := &ValidatorReward{
			ValidatorIndex: d.ValidatorIndex,
			Rewards:        d.Rewards,
			Value:          d.Rewards.Mul(price),
			SnapshotDate:   d.SnapshotDate,
		}
		rewards.Validators = append(rewards.Validators, vr)
		rewards.TotalRewards = rewards.TotalRewards.Add(vr.Rewards)
		rewards.TotalValue = rewards.TotalValue.Add(vr.Value)
	}

	return rewards, nil
}

// StakingDetail is the per-validator staking view at the latest snapshot
type StakingDetail struct {
	Currency     string                     `json:"currency"`
	TotalBalance decimal.Decimal            `json:"totalBalance"`
	TotalValue   decimal.Decimal            `json:"totalValue"`
	Validators   []*storage.ValidatorDetail `json:"validators"`
	PoolRewards  []*storage.PoolAggregate   `json:"poolRewards"`
}

// StakingDetail lists the user's validators and unclaimed pool rewards at the
// latest snapshot.
func (s *ValuationService) StakingDetail(ctx context.Context, userID string) (*StakingDetail, error) {
	detail := &StakingDetail{Currency: types.ReportingCurrency}

	snapshot, err := s.snapshotRepo.Latest(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return detail, nil
		}
		return nil, err
	}

	addresses, err := s.addressRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := addressIDs(addresses)

	detail.Validators, err = s.snapshotRepo.ValidatorDetails(ctx, snapshot.ID, ids)
	if err != nil {
		return nil, err
	}

	detail.PoolRewards, err = s.snapshotRepo.PoolRewardAggregates(ctx, snapshot.ID, ids)
	if err != nil {
		return nil, err
	}

	price := decimal.Zero
	if len(detail.Validators) > 0 {
		price, err = s.snapshotRepo.PriceBySymbol(ctx, snapshot.ID, stakingSymbol)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				return nil, err
			}
			price = decimal.Zero
		}
	}

	for _, v := range detail.Validators {
		detail.TotalBalance = detail.TotalBalance.Add(v.Balance)
	}
	detail.TotalValue = detail.TotalBalance.Mul(price)

	return detail, nil
}

// AddressValuation pairs one tracked address with its current value
type AddressValuation struct {
	Address *models.UserAddress `json:"address"`
	Value   decimal.Decimal     `json:"value"`
}

// AddressValuations lists the user's addresses with each address's value at
// the latest snapshot.
func (s *ValuationService) AddressValuations(ctx context.Context, userID string) ([]*AddressValuation, error) {
	addresses, err := s.addressRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.snapshotRepo.Latest(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	valuations := make([]*AddressValuation, 0, len(addresses))
	for _, address := range addresses {
		value := decimal.Zero
		if snapshot != nil {
			value, err = s.TotalValue(ctx, snapshot, []string{address.ID})
			if err != nil {
				return nil, err
			}
		}
		valuations = append(valuations, &AddressValuation{Address: address, Value: value})
	}

	return valuations, nil
}

// AddressDetail is one address's full breakdown at the latest snapshot
type AddressDetail struct {
	Address      *models.UserAddress       `json:"address"`
	SnapshotDate time.Time                 `json:"snapshotDate"`
	Currency     string                    `json:"currency"`
	Value        decimal.Decimal           `json:"value"`
	Assets       []*storage.AssetAggregate `json:"assets"`
	Staking      *storage.StakingAggregate `json:"staking"`
	Pools        []*storage.PoolAggregate  `json:"pools"`
	Troves       []*storage.TroveAggregate `json:"troves"`
	Errors       []*models.SnapshotError   `json:"errors,omitempty"`
}

// AddressDetail breaks one address down into assets, staking, pools, and
// troves at the latest snapshot, including its collection errors.
func (s *ValuationService) AddressDetail(ctx context.Context, userID, addressID string) (*AddressDetail, error) {
	address, err := s.addressRepo.GetByIDAndUser(ctx, addressID, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, notFoundError("address", addressID)
		}
		return nil, err
	}

	detail := &AddressDetail{
		Address:  address,
		Currency: types.ReportingCurrency,
		Staking:  &storage.StakingAggregate{},
	}

	snapshot, err := s.snapshotRepo.Latest(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return detail, nil
		}
		return nil, err
	}
	detail.SnapshotDate = snapshot.Date

	ids := []string{address.ID}

	detail.Assets, err = s.snapshotRepo.AssetAggregates(ctx, snapshot.ID, ids)
	if err != nil {
		return nil, err
	}
	detail.Staking, err = s.snapshotRepo.StakingAggregate(ctx, snapshot.ID, ids)
	if err != nil {
		return nil, err
	}
	detail.Pools, err = s.snapshotRepo.PoolBalanceAggregates(ctx, snapshot.ID, ids)
	if err != nil {
		return nil, err
	}
	detail.Troves, err = s.snapshotRepo.TroveAggregates(ctx, snapshot.ID, ids)
	if err != nil {
		return nil, err
	}
	detail.Errors, err = s.errorRepo.ListBySnapshot(ctx, snapshot.ID, ids)
	if err != nil {
		return nil, err
	}

	detail.Value, err = s.TotalValue(ctx, snapshot, ids)
	if err != nil {
		return nil, err
	}

	return detail, nil
}

// AccountValuation pairs an account with its addresses and current value
type AccountValuation struct {
	Account   *models.Account       `json:"account"`
	Addresses []*models.UserAddress `json:"addresses"`
	Value     decimal.Decimal       `json:"value"`
}

// AccountValuations lists the user's accounts with their addresses and each
// account's value at the latest snapshot.
func (s *ValuationService) AccountValuations(ctx context.Context, userID string) ([]*AccountValuation, error) {
	accounts, err := s.accountRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.snapshotRepo.Latest(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	valuations := make([]*AccountValuation, 0, len(accounts))
	for _, account := range accounts {
		addresses, err := s.addressRepo.ListByAccount(ctx, account.ID)
		if err != nil {
			return nil, err
		}

		value := decimal.Zero
		if snapshot != nil {
			value, err = s.TotalValue(ctx, snapshot, addressIDs(addresses))
			if err != nil {
				return nil, err
			}
		}

		valuations = append(valuations, &AccountValuation{
			Account:   account,
			Addresses: addresses,
			Value:     value,
		})
	}

	return valuations, nil
}
