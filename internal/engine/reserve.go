package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/verdantlabs/greenbond/internal/domain"
	"github.com/verdantlabs/greenbond/internal/ledger"
)

// ReserveGuard tops an account up before a flow spends from it. The ledger
// locks part of every balance as reserve (base plus one increment per owned
// object); only the remainder is spendable.
type ReserveGuard struct {
	faucet Funder
	floor  decimal.Decimal
	log    *slog.Logger
}

// NewReserveGuard creates a guard that funds accounts whose spendable
// balance is below floor (whole native units).
func NewReserveGuard(faucet Funder, floor decimal.Decimal, logger *slog.Logger) *ReserveGuard {
	return &ReserveGuard{
		faucet: faucet,
		floor:  floor,
		log:    logger.With("component", "reserve"),
	}
}

// Ensure checks the spendable balance of address and requests faucet funding
// when it is under the floor. Query errors are fail-soft: the flow proceeds
// on its current balance rather than aborting, since the submission itself
// will surface a genuine shortfall.
func (g *ReserveGuard) Ensure(ctx context.Context, cli ledger.Client, address string) error {
	info, err := cli.AccountInfo(ctx, address)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Account does not exist on-ledger yet; funding creates it.
			return g.fund(ctx, address)
		}
		g.log.Warn("balance check failed, proceeding unfunded", "address", address, "error", err)
		return nil
	}

	si, err := cli.ServerInfo(ctx)
	if err != nil {
		g.log.Warn("reserve parameters unavailable, proceeding", "address", address, "error", err)
		return nil
	}

	reserved := si.ReserveBase.Add(si.ReserveIncrement.Mul(decimal.NewFromInt(int64(info.OwnerCount))))
	available := info.Balance.Value.Sub(reserved)

	if available.GreaterThanOrEqual(g.floor) {
		return nil
	}

	g.log.Info("spendable balance below floor",
		"address", address,
		"available", available.String(),
		"floor", g.floor.String())
	return g.fund(ctx, address)
}

func (g *ReserveGuard) fund(ctx context.Context, address string) error {
	if g.faucet == nil {
		g.log.Warn("no faucet configured, cannot fund", "address", address)
		return nil
	}
	if _, err := g.faucet.Fund(ctx, address); err != nil {
		return fmt.Errorf("engine/reserve: funding %s: %w", address, err)
	}
	return nil
}
