package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BondStatus is the lifecycle state of a green bond. It is derived from the
// bond's stake and investment records on every read and never stored, so a
// bond can never carry a stale status.
type BondStatus string

const (
	// BondPending: staked total has not yet reached the stake capacity.
	BondPending BondStatus = "pending"
	// BondActive: staked total has reached capacity. Active bonds are
	// further split into open and closed by invested total.
	BondActive BondStatus = "active"
	// BondOpen: active, and invested total is below the convertible value
	// of the staked units.
	BondOpen BondStatus = "open"
	// BondClosed: active, and invested total has met or exceeded the
	// convertible value of the staked units.
	BondClosed BondStatus = "closed"
)

// Stake is one unit of committed value recorded against a bond. Stakes are
// append-only: once recorded they are never edited or removed.
type Stake struct {
	Amount         decimal.Decimal `json:"amount"`
	Project        string          `json:"project"`
	IssuanceDate   time.Time       `json:"issuance_date"`
	ExpirationDate time.Time       `json:"expiration_date"`
}

// Investment is a recorded investor contribution to a bond.
type Investment struct {
	Investor string          `json:"investor"`
	Amount   decimal.Decimal `json:"amount"`
	BondID   string          `json:"bond_id"`
	Account  string          `json:"account"`
}

// Bond is a green bond backed by staked offset units. Created once at
// issuance, mutated only by appending stakes and investments, never deleted.
//
// StakedCached mirrors the sum of Stakes' amounts as persisted by older
// writers. It is a cache, not ground truth: every decision recomputes the
// total from the Stakes list.
type Bond struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Issuer        string          `json:"issuer"`
	FaceAmount    decimal.Decimal `json:"face_amount"`
	InterestRate  decimal.Decimal `json:"interest_rate"`
	Description   string          `json:"description"`
	StakeCapacity decimal.Decimal `json:"stake_capacity"`
	StakedCached  decimal.Decimal `json:"staked_cached"`
	NFTokenID     string          `json:"nftoken_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	MaturityDate  time.Time       `json:"maturity_date"`
	Stakes        []Stake         `json:"stakes"`
	Investments   []Investment    `json:"investments"`
}

// StakedTotal recomputes the sum of all recorded stake amounts.
func (b *Bond) StakedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, s := range b.Stakes {
		total = total.Add(s.Amount)
	}
	return total
}

// InvestedTotal recomputes the sum of all recorded investments.
func (b *Bond) InvestedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, inv := range b.Investments {
		total = total.Add(inv.Amount)
	}
	return total
}

// Classify derives the bond's status from its current stake and investment
// records. conversionRate is the value of one staked unit in the investment
// denomination. The result reflects the totals at the time of the call;
// open/closed can oscillate as investments grow relative to stakes.
func (b *Bond) Classify(conversionRate decimal.Decimal) BondStatus {
	staked := b.StakedTotal()
	if staked.LessThan(b.StakeCapacity) {
		return BondPending
	}
	ceiling := staked.Mul(conversionRate)
	if b.InvestedTotal().LessThan(ceiling) {
		return BondOpen
	}
	return BondClosed
}

// IsActive reports whether the bond has reached its stake capacity. Both
// open and closed bonds are active.
func (b *Bond) IsActive() bool {
	return !b.StakedTotal().LessThan(b.StakeCapacity)
}

// In reports whether the status falls under group. Every status is in
// itself; open and closed are additionally in BondActive.
func (s BondStatus) In(group BondStatus) bool {
	if s == group {
		return true
	}
	return group == BondActive && (s == BondOpen || s == BondClosed)
}
