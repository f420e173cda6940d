package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/verdantlabs/greenbond/internal/domain"
	"github.com/verdantlabs/greenbond/internal/ledger"
)

// TrustLineSetup makes sure an account can hold an issued asset before a
// flow tries to receive it. Setting an already-present line is a harmless
// no-op on-ledger, so Ensure is idempotent either way.
type TrustLineSetup struct {
	pipeline *Pipeline
	limit    decimal.Decimal
	log      *slog.Logger
}

// NewTrustLineSetup creates a setup helper stamping limit on new lines.
func NewTrustLineSetup(pipeline *Pipeline, limit decimal.Decimal, logger *slog.Logger) *TrustLineSetup {
	return &TrustLineSetup{
		pipeline: pipeline,
		limit:    limit,
		log:      logger.With("component", "trustline"),
	}
}

// Ensure checks the signer's trust lines for the asset and submits a
// TrustSet when absent. It reports whether a line was created.
func (t *TrustLineSetup) Ensure(ctx context.Context, cli ledger.Client, signer Signer, asset domain.AssetAmount) (bool, error) {
	lines, err := cli.AccountLines(ctx, signer.Address())
	if err != nil {
		// Can't tell; setting the line again is safe.
		t.log.Warn("trust line listing failed, setting anyway",
			"address", signer.Address(), "error", err)
	} else {
		for _, l := range lines {
			if l.Currency == asset.Currency && l.Account == asset.Issuer {
				return false, nil
			}
		}
	}

	intent := domain.TransactionIntent{
		Type:    domain.TxTrustSet,
		Account: signer.Address(),
		LimitAmount: domain.AssetAmount{
			Currency: asset.Currency,
			Issuer:   asset.Issuer,
			Value:    t.limit,
		},
	}

	out, err := t.pipeline.Submit(ctx, cli, intent, signer)
	if err != nil {
		return false, fmt.Errorf("engine/trustline: %w", err)
	}
	if !out.Succeeded() {
		return false, fmt.Errorf("engine/trustline: TrustSet %s/%s rejected: %s",
			asset.Currency, asset.Issuer, out.EngineResult)
	}

	t.log.Info("trust line established",
		"address", signer.Address(),
		"currency", asset.Currency,
		"issuer", asset.Issuer,
		"limit", t.limit.String())
	return true, nil
}
