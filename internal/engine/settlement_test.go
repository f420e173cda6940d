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

const (
	testCurrency = "PFMU-BRA-03182024"
	testIssuer   = "rPFMUIssuer"
)

func newTestSettlement() *SettlementFlow {
	return NewSettlementFlow(newTestPipeline(nil), decimal.NewFromFloat(0.0001), nil, testLogger())
}

func settleArgs(quantity float64) (give, want domain.AssetAmount) {
	q := decimal.NewFromFloat(quantity)
	want = domain.AssetAmount{Currency: testCurrency, Issuer: testIssuer, Value: q}
	give = domain.NativeAmount(q.Mul(decimal.NewFromFloat(10.5)))
	return give, want
}

func TestSettlementFullyFilled(t *testing.T) {
	// Buyer holds 25.3 units, buys 20, ends at 45.3.
	cli := &fakeClient{
		index:   1000,
		results: scripted("tesSUCCESS"),
		lineSets: [][]ledger.TrustLine{
			{issuedLine(testCurrency, testIssuer, 25.3)},
			{issuedLine(testCurrency, testIssuer, 45.3)},
		},
	}
	give, want := settleArgs(20)

	res, err := newTestSettlement().Execute(context.Background(), cli, fakeSigner{address: "rBuyer"}, give, want)
	require.NoError(t, err)

	assert.Equal(t, domain.PurchaseFullyFilled, res.Status)
	assert.True(t, res.Bought.Equal(decimal.NewFromFloat(20)), "bought %s", res.Bought)
	assert.Equal(t, testCurrency, res.Currency)
}

func TestSettlementWithinTolerance(t *testing.T) {
	// A hair under the requested quantity still counts as fully filled.
	cli := &fakeClient{
		index:   1000,
		results: scripted("tesSUCCESS"),
		lineSets: [][]ledger.TrustLine{
			{issuedLine(testCurrency, testIssuer, 0)},
			{issuedLine(testCurrency, testIssuer, 19.99995)},
		},
	}
	give, want := settleArgs(20)

	res, err := newTestSettlement().Execute(context.Background(), cli, fakeSigner{address: "rBuyer"}, give, want)
	require.NoError(t, err)
	assert.Equal(t, domain.PurchaseFullyFilled, res.Status)
}

func TestSettlementPartialFill(t *testing.T) {
	cli := &fakeClient{
		index:   1000,
		results: scripted("tesSUCCESS"),
		lineSets: [][]ledger.TrustLine{
			{issuedLine(testCurrency, testIssuer, 0)},
			{issuedLine(testCurrency, testIssuer, 12.5)},
		},
	}
	give, want := settleArgs(20)

	res, err := newTestSettlement().Execute(context.Background(), cli, fakeSigner{address: "rBuyer"}, give, want)
	require.NoError(t, err)

	assert.Equal(t, domain.PurchasePartiallyFilled, res.Status)
	assert.True(t, res.Bought.Equal(decimal.NewFromFloat(12.5)))
	assert.True(t, res.OpenRemainder.Equal(decimal.NewFromFloat(7.5)), "remainder %s", res.OpenRemainder)
}

func TestSettlementAcceptedButNothingMoved(t *testing.T) {
	// The engine accepted the order but no liquidity crossed. The balance
	// diff, not the acknowledgment, decides: this is a failure.
	cli := &fakeClient{
		index:   1000,
		results: scripted("tesSUCCESS"),
		lineSets: [][]ledger.TrustLine{
			{issuedLine(testCurrency, testIssuer, 25.3)},
			{issuedLine(testCurrency, testIssuer, 25.3)},
		},
	}
	give, want := settleArgs(20)

	res, err := newTestSettlement().Execute(context.Background(), cli, fakeSigner{address: "rBuyer"}, give, want)
	require.NoError(t, err)

	assert.Equal(t, domain.PurchaseFailed, res.Status)
	assert.True(t, res.Bought.IsZero())
	assert.Contains(t, res.Message, "try a different offer")
}

func TestSettlementUnfundedOfferShortCircuits(t *testing.T) {
	cli := &fakeClient{
		index:   1000,
		results: scripted("tecUNFUNDED_OFFER"),
		lineSets: [][]ledger.TrustLine{
			{issuedLine(testCurrency, testIssuer, 0)},
		},
	}
	give, want := settleArgs(20)

	res, err := newTestSettlement().Execute(context.Background(), cli, fakeSigner{address: "rBuyer"}, give, want)
	require.NoError(t, err)

	assert.Equal(t, domain.PurchaseFailed, res.Status)
	assert.Contains(t, res.Message, "not funded")
	assert.Equal(t, 1, cli.lineCalls, "no post-trade read after an unfunded short-circuit")
}

func TestSettlementRejectedSubmission(t *testing.T) {
	cli := &fakeClient{
		index:   1000,
		results: scripted("tecPATH_DRY"),
		lineSets: [][]ledger.TrustLine{
			{issuedLine(testCurrency, testIssuer, 0)},
		},
	}
	give, want := settleArgs(20)

	res, err := newTestSettlement().Execute(context.Background(), cli, fakeSigner{address: "rBuyer"}, give, want)
	require.NoError(t, err)

	assert.Equal(t, domain.PurchaseFailed, res.Status)
	assert.Contains(t, res.Message, "tecPATH_DRY")
	assert.Equal(t, 1, cli.lineCalls)
}

func TestSettlementFailurePublishesEvent(t *testing.T) {
	notifier := &fakeNotifier{}
	flow := NewSettlementFlow(newTestPipeline(nil), decimal.NewFromFloat(0.0001), notifier, testLogger())

	// Accepted order, no balance movement: a failure the caller only sees in
	// the result, so the event is the operator's signal.
	cli := &fakeClient{
		index:   1000,
		results: scripted("tesSUCCESS"),
		lineSets: [][]ledger.TrustLine{
			{issuedLine(testCurrency, testIssuer, 25.3)},
			{issuedLine(testCurrency, testIssuer, 25.3)},
		},
	}
	give, want := settleArgs(20)

	res, err := flow.Execute(context.Background(), cli, fakeSigner{address: "rBuyer"}, give, want)
	require.NoError(t, err)
	require.Equal(t, domain.PurchaseFailed, res.Status)

	require.Equal(t, []string{"settlement_failed"}, notifier.events)
	assert.Equal(t, "rBuyer", notifier.payloads[0]["account"])
	assert.Equal(t, testCurrency, notifier.payloads[0]["currency"])
}

func TestSettlementSuccessPublishesNothing(t *testing.T) {
	notifier := &fakeNotifier{}
	flow := NewSettlementFlow(newTestPipeline(nil), decimal.NewFromFloat(0.0001), notifier, testLogger())

	cli := &fakeClient{
		index:   1000,
		results: scripted("tesSUCCESS"),
		lineSets: [][]ledger.TrustLine{
			{issuedLine(testCurrency, testIssuer, 0)},
			{issuedLine(testCurrency, testIssuer, 20)},
		},
	}
	give, want := settleArgs(20)

	res, err := flow.Execute(context.Background(), cli, fakeSigner{address: "rBuyer"}, give, want)
	require.NoError(t, err)
	require.Equal(t, domain.PurchaseFullyFilled, res.Status)
	assert.Empty(t, notifier.events)
}

func TestSettlementMissingLineReadsAsZero(t *testing.T) {
	// First purchase: no trust line balance before, 20 after.
	cli := &fakeClient{
		index:   1000,
		results: scripted("tesSUCCESS"),
		lineSets: [][]ledger.TrustLine{
			{}, // no lines yet
			{issuedLine(testCurrency, testIssuer, 20)},
		},
	}
	give, want := settleArgs(20)

	res, err := newTestSettlement().Execute(context.Background(), cli, fakeSigner{address: "rBuyer"}, give, want)
	require.NoError(t, err)
	assert.Equal(t, domain.PurchaseFullyFilled, res.Status)
}
