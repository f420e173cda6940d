package engine

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantlabs/greenbond/internal/domain"
	"github.com/verdantlabs/greenbond/internal/ledger"
)

func sellOffer(quantity, total float64) domain.Offer {
	return domain.Offer{
		Account:   "rMaker",
		TakerGets: domain.AssetAmount{Currency: testCurrency, Issuer: testIssuer, Value: decimal.NewFromFloat(quantity)},
		TakerPays: domain.NativeAmount(decimal.NewFromFloat(total)),
		Sequence:  42,
	}
}

func newTestPurchaseService(cli *fakeClient, funder *fakeFunder) *PurchaseService {
	pipe := newTestPipeline(nil)
	return NewPurchaseService(
		cli.dialer(),
		NewReserveGuard(funder, decimal.NewFromInt(10), testLogger()),
		NewTrustLineSetup(pipe, decimal.NewFromInt(1_000_000), testLogger()),
		NewSettlementFlow(pipe, decimal.NewFromFloat(0.0001), nil, testLogger()),
		newTestWalletService(newFakeWalletStore(), funder),
		pfmuAsset(),
		decimal.NewFromFloat(10.5),
		10,
		testLogger(),
	)
}

func TestPurchaseEndToEnd(t *testing.T) {
	cli := &fakeClient{
		index:  1000,
		offers: []domain.Offer{sellOffer(100, 1050)}, // 10.5 per unit
		lineSets: [][]ledger.TrustLine{
			{issuedLine(testCurrency, testIssuer, 0)}, // trust line check
			{issuedLine(testCurrency, testIssuer, 0)}, // pre-trade snapshot
			{issuedLine(testCurrency, testIssuer, 20)}, // post-trade
		},
		results: scripted("tesSUCCESS"),
	}
	funder := &fakeFunder{}
	svc := newTestPurchaseService(cli, funder)

	res, err := svc.Purchase(context.Background(), "user-1", decimal.NewFromInt(20))
	require.NoError(t, err)

	assert.Equal(t, domain.PurchaseFullyFilled, res.Status)
	assert.True(t, res.Bought.Equal(decimal.NewFromInt(20)))
	assert.True(t, cli.closed, "session must be closed when the flow ends")

	// Provisioning plus the reserve top-up for the fresh unfunded account.
	assert.Contains(t, funder.funded, "")
}

func TestPurchaseFallsBackToConversionRate(t *testing.T) {
	// Empty book: the order is priced at the configured conversion rate.
	cli := &fakeClient{
		index:  1000,
		offers: nil,
		lineSets: [][]ledger.TrustLine{
			{issuedLine(testCurrency, testIssuer, 0)},
			{issuedLine(testCurrency, testIssuer, 0)},
			{issuedLine(testCurrency, testIssuer, 0)},
		},
		results: scripted("tesSUCCESS"),
	}
	svc := newTestPurchaseService(cli, &fakeFunder{})

	res, err := svc.Purchase(context.Background(), "user-1", decimal.NewFromInt(2))
	require.NoError(t, err)

	// Nothing crossed on an empty book, so settlement reports failure.
	assert.Equal(t, domain.PurchaseFailed, res.Status)

	tx, err := decodeBlob(cli.lastBlob)
	require.NoError(t, err)
	assert.Equal(t, "OfferCreate", tx.TransactionType)
	// 2 units at the 10.5 fallback rate is 21 XRP of TakerGets drops.
	assert.Equal(t, "21000000", tx.TakerGets)
}

func TestPurchaseRejectsNonPositiveQuantity(t *testing.T) {
	svc := newTestPurchaseService(&fakeClient{index: 1000}, &fakeFunder{})

	_, err := svc.Purchase(context.Background(), "user-1", decimal.Zero)
	assert.Error(t, err)
}
