package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/verdantlabs/greenbond/internal/domain"
	"github.com/verdantlabs/greenbond/internal/ledger"
)

// BondLedgerFlows runs the ledger legs of the bond lifecycle: moving staked
// units into custody and minting derivative tokens against them. Each flow
// opens its own session and closes it on every exit path.
type BondLedgerFlows struct {
	dial    ledger.Dialer
	reserve *ReserveGuard
	pipe    *Pipeline
	bonds   *BondService

	issuerSigner   Signer
	stakingAddress string
	pfmu           domain.AssetAmount // currency and issuer template, value unused
	derivative     string             // derivative token currency code
	log            *slog.Logger
}

// NewBondLedgerFlows wires the ledger legs. issuerSigner is the mint
// authority for derivative tokens.
func NewBondLedgerFlows(dial ledger.Dialer, reserve *ReserveGuard, pipe *Pipeline, bonds *BondService, issuerSigner Signer, stakingAddress string, pfmu domain.AssetAmount, derivative string, logger *slog.Logger) *BondLedgerFlows {
	return &BondLedgerFlows{
		dial:           dial,
		reserve:        reserve,
		pipe:           pipe,
		bonds:          bonds,
		issuerSigner:   issuerSigner,
		stakingAddress: stakingAddress,
		pfmu:           pfmu,
		derivative:     derivative,
		log:            logger.With("component", "bond_flows"),
	}
}

// StakeWithTransfer moves the staked units from the staker's account to the
// custody account, then records the stake. The transfer settles first: a
// stake is only bookkept once the units are actually in custody, and a
// capacity rejection after a successful transfer is surfaced for manual
// reversal rather than hidden.
func (f *BondLedgerFlows) StakeWithTransfer(ctx context.Context, bondID string, stake domain.Stake, staker Signer) (BondView, error) {
	cli, err := f.dial(ctx)
	if err != nil {
		return BondView{}, fmt.Errorf("engine/bond_flows: stake transfer: %w", err)
	}
	defer cli.Close()

	if err := f.reserve.Ensure(ctx, cli, staker.Address()); err != nil {
		return BondView{}, fmt.Errorf("engine/bond_flows: stake transfer: %w", err)
	}

	intent := domain.TransactionIntent{
		Type:        domain.TxPayment,
		Account:     staker.Address(),
		Destination: f.stakingAddress,
		Amount: domain.AssetAmount{
			Currency: f.pfmu.Currency,
			Issuer:   f.pfmu.Issuer,
			Value:    stake.Amount,
		},
	}
	out, err := f.pipe.Submit(ctx, cli, intent, staker)
	if err != nil {
		return BondView{}, fmt.Errorf("engine/bond_flows: stake transfer: %w", err)
	}
	if !out.Succeeded() {
		return BondView{}, fmt.Errorf("engine/bond_flows: stake transfer %s: %s",
			out.Kind.String(), out.EngineResult)
	}

	view, err := f.bonds.Stake(ctx, bondID, stake)
	if err != nil {
		f.log.Error("stake transfer settled but bookkeeping failed, manual reversal needed",
			"bond_id", bondID,
			"staker", staker.Address(),
			"amount", stake.Amount.String(),
			"hash", out.TxHash,
			"error", err)
		return BondView{}, err
	}
	return view, nil
}

// Tokenize mints derivative tokens equal to the bond's staked total and pays
// them to recipient. The minting payment's hash becomes the bond's token
// reference.
func (f *BondLedgerFlows) Tokenize(ctx context.Context, bondID, recipient string) (BondView, error) {
	view, err := f.bonds.Get(ctx, bondID)
	if err != nil {
		return BondView{}, err
	}
	if !view.Staked.GreaterThan(decimal.Zero) {
		return BondView{}, fmt.Errorf("engine/bond_flows: tokenize %s: nothing staked", bondID)
	}
	if view.NFTokenID != "" {
		return BondView{}, fmt.Errorf("engine/bond_flows: tokenize %s: %w", bondID, domain.ErrAlreadyExists)
	}

	cli, err := f.dial(ctx)
	if err != nil {
		return BondView{}, fmt.Errorf("engine/bond_flows: tokenize: %w", err)
	}
	defer cli.Close()

	if err := f.reserve.Ensure(ctx, cli, f.issuerSigner.Address()); err != nil {
		return BondView{}, fmt.Errorf("engine/bond_flows: tokenize: %w", err)
	}

	intent := domain.TransactionIntent{
		Type:        domain.TxPayment,
		Account:     f.issuerSigner.Address(),
		Destination: recipient,
		Amount: domain.AssetAmount{
			Currency: f.derivative,
			Issuer:   f.issuerSigner.Address(),
			Value:    view.Staked,
		},
	}
	out, err := f.pipe.Submit(ctx, cli, intent, f.issuerSigner)
	if err != nil {
		return BondView{}, fmt.Errorf("engine/bond_flows: tokenize: %w", err)
	}
	if !out.Succeeded() {
		return BondView{}, fmt.Errorf("engine/bond_flows: tokenize %s: %s",
			out.Kind.String(), out.EngineResult)
	}

	f.log.Info("derivative tokens minted",
		"bond_id", bondID,
		"recipient", recipient,
		"amount", view.Staked.String(),
		"hash", out.TxHash)
	return f.bonds.RecordTokenization(ctx, bondID, out.TxHash)
}
