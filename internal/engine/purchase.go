package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/verdantlabs/greenbond/internal/domain"
	"github.com/verdantlabs/greenbond/internal/ledger"
)

// PurchaseService is the end-to-end buy flow: resolve the user's wallet,
// check reserves and the trust line, price the order off the live book, and
// run the settlement-checked offer.
type PurchaseService struct {
	dial    ledger.Dialer
	reserve *ReserveGuard
	trust   *TrustLineSetup
	settle  *SettlementFlow
	wallets *WalletService

	pfmu           domain.AssetAmount // traded asset template, value unused
	conversionRate decimal.Decimal    // fallback unit price in XRP
	bookLimit      int
	log            *slog.Logger
}

// NewPurchaseService wires the purchase flow.
func NewPurchaseService(dial ledger.Dialer, reserve *ReserveGuard, trust *TrustLineSetup, settle *SettlementFlow, wallets *WalletService, pfmu domain.AssetAmount, conversionRate decimal.Decimal, bookLimit int, logger *slog.Logger) *PurchaseService {
	return &PurchaseService{
		dial:           dial,
		reserve:        reserve,
		trust:          trust,
		settle:         settle,
		wallets:        wallets,
		pfmu:           pfmu,
		conversionRate: conversionRate,
		bookLimit:      bookLimit,
		log:            logger.With("component", "purchase"),
	}
}

// Purchase buys quantity units for userID, paying XRP. The whole flow runs
// on one session, closed on every exit path.
func (p *PurchaseService) Purchase(ctx context.Context, userID string, quantity decimal.Decimal) (domain.PurchaseResult, error) {
	if !quantity.GreaterThan(decimal.Zero) {
		return domain.PurchaseResult{}, fmt.Errorf("engine/purchase: quantity must be positive")
	}

	wallet, err := p.wallets.EnsureWallet(ctx, userID)
	if err != nil {
		return domain.PurchaseResult{}, err
	}
	signer, err := p.wallets.SignerFor(wallet)
	if err != nil {
		return domain.PurchaseResult{}, err
	}

	cli, err := p.dial(ctx)
	if err != nil {
		return domain.PurchaseResult{}, fmt.Errorf("engine/purchase: %w", err)
	}
	defer cli.Close()

	if err := p.reserve.Ensure(ctx, cli, signer.Address()); err != nil {
		return domain.PurchaseResult{}, err
	}
	if _, err := p.trust.Ensure(ctx, cli, signer, p.pfmu); err != nil {
		return domain.PurchaseResult{}, err
	}

	price, err := p.unitPrice(ctx, cli)
	if err != nil {
		return domain.PurchaseResult{}, err
	}

	want := domain.AssetAmount{
		Currency: p.pfmu.Currency,
		Issuer:   p.pfmu.Issuer,
		Value:    quantity,
	}
	give := domain.NativeAmount(quantity.Mul(price))

	p.log.Info("placing purchase order",
		"user_id", userID,
		"account", signer.Address(),
		"quantity", quantity.String(),
		"unit_price", price.String(),
		"total", give.Value.String())

	return p.settle.Execute(ctx, cli, signer, give, want)
}

// unitPrice reads the best asking price off the sell book, falling back to
// the configured conversion rate when the book is empty.
func (p *PurchaseService) unitPrice(ctx context.Context, cli ledger.Client) (decimal.Decimal, error) {
	offers, err := cli.BookOffers(ctx, p.pfmu, domain.NativeAmount(decimal.Zero), p.bookLimit)
	if err != nil {
		return decimal.Zero, fmt.Errorf("engine/purchase: book: %w", err)
	}

	best := decimal.Zero
	for _, o := range offers {
		if o.TakerGets.Value.IsZero() {
			continue
		}
		price := o.TakerPays.Value.Div(o.TakerGets.Value)
		if best.IsZero() || price.LessThan(best) {
			best = price
		}
	}
	if best.IsZero() {
		p.log.Debug("empty sell book, using conversion rate",
			"rate", p.conversionRate.String())
		return p.conversionRate, nil
	}
	return best, nil
}
