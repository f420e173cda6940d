package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/verdantlabs/greenbond/internal/domain"
)

// BondService owns the bond lifecycle bookkeeping: issuance, staking,
// investment, and status projection. Check-and-append sequences run under a
// per-bond lock so concurrent writers cannot overshoot the stake capacity.
type BondService struct {
	bonds          domain.BondStore
	locks          domain.LockManager
	notifier       Notifier
	conversionRate decimal.Decimal
	maturityMonths int
	lockTTL        time.Duration
	log            *slog.Logger
}

// NewBondService creates a BondService. notifier may be nil.
func NewBondService(bonds domain.BondStore, locks domain.LockManager, notifier Notifier, conversionRate decimal.Decimal, maturityMonths int, lockTTL time.Duration, logger *slog.Logger) *BondService {
	return &BondService{
		bonds:          bonds,
		locks:          locks,
		notifier:       notifier,
		conversionRate: conversionRate,
		maturityMonths: maturityMonths,
		lockTTL:        lockTTL,
		log:            logger.With("component", "bond"),
	}
}

// CreateBondInput carries the caller-supplied fields of a new bond.
type CreateBondInput struct {
	Name          string          `json:"name"`
	Issuer        string          `json:"issuer"`
	FaceAmount    decimal.Decimal `json:"face_amount"`
	InterestRate  decimal.Decimal `json:"interest_rate"`
	Description   string          `json:"description"`
	StakeCapacity decimal.Decimal `json:"stake_capacity"`
}

// BondView is a bond together with its derived status and recomputed totals.
type BondView struct {
	domain.Bond
	Status   domain.BondStatus `json:"status"`
	Staked   decimal.Decimal   `json:"staked"`
	Invested decimal.Decimal   `json:"invested"`
}

// view projects a bond into its read shape. Status and totals are always
// recomputed here, never read from a stored field.
func (s *BondService) view(b domain.Bond) BondView {
	return BondView{
		Bond:     b,
		Status:   b.Classify(s.conversionRate),
		Staked:   b.StakedTotal(),
		Invested: b.InvestedTotal(),
	}
}

// Create issues a new bond. Maturity is derived from the creation time plus
// the configured maturity horizon.
func (s *BondService) Create(ctx context.Context, in CreateBondInput) (BondView, error) {
	if in.Name == "" {
		return BondView{}, fmt.Errorf("engine/bond: name must not be empty")
	}
	if !in.StakeCapacity.GreaterThan(decimal.Zero) {
		return BondView{}, fmt.Errorf("engine/bond: stake capacity must be positive")
	}

	now := time.Now().UTC()
	bond := domain.Bond{
		ID:            uuid.NewString(),
		Name:          in.Name,
		Issuer:        in.Issuer,
		FaceAmount:    in.FaceAmount,
		InterestRate:  in.InterestRate,
		Description:   in.Description,
		StakeCapacity: in.StakeCapacity,
		StakedCached:  decimal.Zero,
		CreatedAt:     now,
		MaturityDate:  now.AddDate(0, s.maturityMonths, 0),
	}

	if err := s.bonds.Create(ctx, bond); err != nil {
		return BondView{}, fmt.Errorf("engine/bond: create: %w", err)
	}

	s.log.Info("bond issued",
		"bond_id", bond.ID,
		"name", bond.Name,
		"capacity", bond.StakeCapacity.String(),
		"maturity", bond.MaturityDate)
	return s.view(bond), nil
}

// Get returns one bond with its derived status.
func (s *BondService) Get(ctx context.Context, id string) (BondView, error) {
	bond, err := s.bonds.GetByID(ctx, id)
	if err != nil {
		return BondView{}, fmt.Errorf("engine/bond: get %s: %w", id, err)
	}
	return s.view(bond), nil
}

// List returns bonds filtered by status. Filter values: "all" (or empty),
// "pending", "active", "open", "closed". Active covers both open and closed.
func (s *BondService) List(ctx context.Context, filter string) ([]BondView, error) {
	bonds, err := s.bonds.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine/bond: list: %w", err)
	}

	filter = strings.ToLower(strings.TrimSpace(filter))
	views := make([]BondView, 0, len(bonds))
	for _, b := range bonds {
		v := s.view(b)
		switch filter {
		case "", "all":
		case string(domain.BondPending), string(domain.BondActive),
			string(domain.BondOpen), string(domain.BondClosed):
			if !v.Status.In(domain.BondStatus(filter)) {
				continue
			}
		default:
			return nil, fmt.Errorf("engine/bond: unknown status filter %q", filter)
		}
		views = append(views, v)
	}
	return views, nil
}

// Stake records a stake against the bond. The capacity check and the append
// are one atomic step under the bond's lock: a stake that would push the
// total past capacity is rejected whole, never clipped.
func (s *BondService) Stake(ctx context.Context, bondID string, stake domain.Stake) (BondView, error) {
	if !stake.Amount.GreaterThan(decimal.Zero) {
		return BondView{}, fmt.Errorf("engine/bond: stake amount must be positive")
	}

	unlock, err := s.locks.Acquire(ctx, "lock:bond:"+bondID, s.lockTTL)
	if err != nil {
		return BondView{}, fmt.Errorf("engine/bond: stake %s: %w", bondID, err)
	}
	defer unlock()

	bond, err := s.bonds.GetByID(ctx, bondID)
	if err != nil {
		return BondView{}, fmt.Errorf("engine/bond: stake %s: %w", bondID, err)
	}

	staked := bond.StakedTotal()
	if staked.Add(stake.Amount).GreaterThan(bond.StakeCapacity) {
		s.notify(ctx, "capacity_exceeded", map[string]any{
			"bond_id":   bondID,
			"staked":    staked.String(),
			"capacity":  bond.StakeCapacity.String(),
			"attempted": stake.Amount.String(),
		})
		return BondView{}, fmt.Errorf("engine/bond: stake %s of %s onto %s/%s: %w",
			stake.Amount, bondID, staked, bond.StakeCapacity, domain.ErrCapacityExceeded)
	}

	bond.Stakes = append(bond.Stakes, stake)
	bond.StakedCached = bond.StakedTotal()

	if err := s.bonds.Save(ctx, bond); err != nil {
		return BondView{}, fmt.Errorf("engine/bond: stake %s: save: %w", bondID, err)
	}

	s.notify(ctx, "stake_recorded", map[string]any{
		"bond_id": bondID,
		"amount":  stake.Amount.String(),
		"project": stake.Project,
		"staked":  bond.StakedCached.String(),
	})
	s.log.Info("stake recorded",
		"bond_id", bondID,
		"amount", stake.Amount.String(),
		"staked", bond.StakedCached.String(),
		"capacity", bond.StakeCapacity.String())
	return s.view(bond), nil
}

// Invest records an investor contribution. Investments are not capped: a
// closed bond stays closed informationally, but late contributions are still
// accepted and recorded.
func (s *BondService) Invest(ctx context.Context, bondID string, inv domain.Investment) (BondView, error) {
	if !inv.Amount.GreaterThan(decimal.Zero) {
		return BondView{}, fmt.Errorf("engine/bond: investment amount must be positive")
	}

	unlock, err := s.locks.Acquire(ctx, "lock:bond:"+bondID, s.lockTTL)
	if err != nil {
		return BondView{}, fmt.Errorf("engine/bond: invest %s: %w", bondID, err)
	}
	defer unlock()

	bond, err := s.bonds.GetByID(ctx, bondID)
	if err != nil {
		return BondView{}, fmt.Errorf("engine/bond: invest %s: %w", bondID, err)
	}

	inv.BondID = bondID
	bond.Investments = append(bond.Investments, inv)

	if err := s.bonds.Save(ctx, bond); err != nil {
		return BondView{}, fmt.Errorf("engine/bond: invest %s: save: %w", bondID, err)
	}

	s.log.Info("investment recorded",
		"bond_id", bondID,
		"investor", inv.Investor,
		"amount", inv.Amount.String(),
		"invested", bond.InvestedTotal().String())
	return s.view(bond), nil
}

// RecordTokenization stamps the ledger token reference minted for the
// bond's staked units.
func (s *BondService) RecordTokenization(ctx context.Context, bondID, tokenRef string) (BondView, error) {
	unlock, err := s.locks.Acquire(ctx, "lock:bond:"+bondID, s.lockTTL)
	if err != nil {
		return BondView{}, fmt.Errorf("engine/bond: tokenize %s: %w", bondID, err)
	}
	defer unlock()

	bond, err := s.bonds.GetByID(ctx, bondID)
	if err != nil {
		return BondView{}, fmt.Errorf("engine/bond: tokenize %s: %w", bondID, err)
	}

	bond.NFTokenID = tokenRef
	if err := s.bonds.Save(ctx, bond); err != nil {
		return BondView{}, fmt.Errorf("engine/bond: tokenize %s: save: %w", bondID, err)
	}
	return s.view(bond), nil
}

func (s *BondService) notify(ctx context.Context, event string, payload map[string]any) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, event, payload)
	}
}
