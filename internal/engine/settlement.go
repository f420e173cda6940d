package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/verdantlabs/greenbond/internal/domain"
	"github.com/verdantlabs/greenbond/internal/ledger"
)

// SettlementFlow places an order and confirms what actually settled. The
// submit acknowledgment only says the order was accepted; whether anything
// crossed is read from the account's balance before and after. That diff is
// the single source of truth for the filled quantity.
type SettlementFlow struct {
	pipeline  *Pipeline
	tolerance decimal.Decimal
	notifier  Notifier
	log       *slog.Logger
}

// NewSettlementFlow creates a flow with the given rounding tolerance for
// balance-diff comparisons. notifier may be nil.
func NewSettlementFlow(pipeline *Pipeline, tolerance decimal.Decimal, notifier Notifier, logger *slog.Logger) *SettlementFlow {
	return &SettlementFlow{
		pipeline:  pipeline,
		tolerance: tolerance,
		notifier:  notifier,
		log:       logger.With("component", "settlement"),
	}
}

// Execute submits an offer giving give in exchange for want and classifies
// the outcome by balance diff:
//
//   - diff within tolerance of want: fully filled
//   - positive diff short of want: partially filled, remainder rests on the
//     book
//   - no positive diff: failure, even when the submission was accepted
//
// The error return is reserved for infrastructure failures; settlement
// failures come back inside the result.
func (s *SettlementFlow) Execute(ctx context.Context, cli ledger.Client, signer Signer, give, want domain.AssetAmount) (domain.PurchaseResult, error) {
	before, err := s.balanceOf(ctx, cli, signer.Address(), want)
	if err != nil {
		return domain.PurchaseResult{}, fmt.Errorf("engine/settlement: pre-trade balance: %w", err)
	}

	intent := domain.TransactionIntent{
		Type:      domain.TxOfferCreate,
		Account:   signer.Address(),
		TakerGets: give,
		TakerPays: want,
	}

	out, err := s.pipeline.Submit(ctx, cli, intent, signer)
	if err != nil {
		return domain.PurchaseResult{}, fmt.Errorf("engine/settlement: %w", err)
	}

	now := time.Now().UTC()

	if out.Result == domain.ResultUnfundedOffer {
		// The account cannot cover its side; nothing was placed.
		return s.failed(ctx, signer.Address(), domain.PurchaseResult{
			Status:    domain.PurchaseFailed,
			Bought:    decimal.Zero,
			TxHash:    out.TxHash,
			Currency:  want.Currency,
			SettledAt: now,
			Message:   "offer is not funded; try a different offer",
		}), nil
	}
	if !out.Succeeded() {
		return s.failed(ctx, signer.Address(), domain.PurchaseResult{
			Status:    domain.PurchaseFailed,
			Bought:    decimal.Zero,
			TxHash:    out.TxHash,
			Currency:  want.Currency,
			SettledAt: now,
			Message:   fmt.Sprintf("order %s: %s", out.Kind.String(), out.EngineResult),
		}), nil
	}

	after, err := s.balanceOf(ctx, cli, signer.Address(), want)
	if err != nil {
		return domain.PurchaseResult{}, fmt.Errorf("engine/settlement: post-trade balance: %w", err)
	}

	bought := after.Sub(before)
	s.log.Info("settlement diff",
		"account", signer.Address(),
		"currency", want.Currency,
		"before", before.String(),
		"after", after.String(),
		"bought", bought.String(),
		"wanted", want.Value.String())

	switch {
	case bought.GreaterThanOrEqual(want.Value.Sub(s.tolerance)):
		return domain.PurchaseResult{
			Status:    domain.PurchaseFullyFilled,
			Bought:    bought,
			TxHash:    out.TxHash,
			Currency:  want.Currency,
			SettledAt: now,
		}, nil
	case bought.GreaterThan(s.tolerance):
		return domain.PurchaseResult{
			Status:        domain.PurchasePartiallyFilled,
			Bought:        bought,
			OpenRemainder: want.Value.Sub(bought),
			TxHash:        out.TxHash,
			Currency:      want.Currency,
			SettledAt:     now,
			Message:       "order partially filled; remainder rests on the book",
		}, nil
	default:
		// Accepted by the engine but nothing moved: no matching liquidity at
		// this price.
		return s.failed(ctx, signer.Address(), domain.PurchaseResult{
			Status:    domain.PurchaseFailed,
			Bought:    decimal.Zero,
			TxHash:    out.TxHash,
			Currency:  want.Currency,
			SettledAt: now,
			Message:   "order was accepted but nothing settled; try a different offer",
		}), nil
	}
}

// failed publishes a settlement_failed event for a failed result and passes
// the result through. Failures are part of the result contract rather than
// the error return, so the event is how operators hear about them.
func (s *SettlementFlow) failed(ctx context.Context, account string, res domain.PurchaseResult) domain.PurchaseResult {
	if s.notifier != nil {
		s.notifier.Notify(ctx, "settlement_failed", map[string]any{
			"account":  account,
			"currency": res.Currency,
			"tx_hash":  res.TxHash,
			"message":  res.Message,
		})
	}
	return res
}

// balanceOf reads the account's balance in the given asset: the native
// balance from the account root, or the matching trust line balance for
// issued assets. A missing line reads as zero.
func (s *SettlementFlow) balanceOf(ctx context.Context, cli ledger.Client, address string, asset domain.AssetAmount) (decimal.Decimal, error) {
	if asset.IsNative() {
		info, err := cli.AccountInfo(ctx, address)
		if err != nil {
			return decimal.Zero, err
		}
		return info.Balance.Value, nil
	}

	lines, err := cli.AccountLines(ctx, address)
	if err != nil {
		return decimal.Zero, err
	}
	for _, l := range lines {
		if l.Currency == asset.Currency && l.Account == asset.Issuer {
			return l.Balance, nil
		}
	}
	return decimal.Zero, nil
}
