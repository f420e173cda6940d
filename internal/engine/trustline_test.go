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

func newTestTrustLineSetup() *TrustLineSetup {
	return NewTrustLineSetup(newTestPipeline(nil), decimal.NewFromInt(1_000_000), testLogger())
}

func pfmuAsset() domain.AssetAmount {
	return domain.AssetAmount{Currency: testCurrency, Issuer: testIssuer}
}

func TestTrustLineAlreadyPresent(t *testing.T) {
	cli := &fakeClient{
		index: 1000,
		lineSets: [][]ledger.TrustLine{
			{issuedLine(testCurrency, testIssuer, 0)},
		},
	}

	created, err := newTestTrustLineSetup().Ensure(context.Background(), cli, fakeSigner{address: "rAlice"}, pfmuAsset())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 0, cli.submitCalls, "present lines must not be re-set")
}

func TestTrustLineCreatedWhenAbsent(t *testing.T) {
	cli := &fakeClient{
		index:    1000,
		lineSets: [][]ledger.TrustLine{{}},
		results:  scripted("tesSUCCESS"),
	}

	created, err := newTestTrustLineSetup().Ensure(context.Background(), cli, fakeSigner{address: "rAlice"}, pfmuAsset())
	require.NoError(t, err)
	assert.True(t, created)
	require.Equal(t, 1, cli.submitCalls)

	tx, err := decodeBlob(cli.lastBlob)
	require.NoError(t, err)
	assert.Equal(t, "TrustSet", tx.TransactionType)
}

func TestTrustLineDistinguishesIssuers(t *testing.T) {
	// Same currency from a different issuer is a different asset.
	cli := &fakeClient{
		index: 1000,
		lineSets: [][]ledger.TrustLine{
			{issuedLine(testCurrency, "rOtherIssuer", 5)},
		},
		results: scripted("tesSUCCESS"),
	}

	created, err := newTestTrustLineSetup().Ensure(context.Background(), cli, fakeSigner{address: "rAlice"}, pfmuAsset())
	require.NoError(t, err)
	assert.True(t, created)
}

func TestTrustLineRejectedSubmission(t *testing.T) {
	cli := &fakeClient{
		index:    1000,
		lineSets: [][]ledger.TrustLine{{}},
		results:  scripted("tecNO_PERMISSION"),
	}

	_, err := newTestTrustLineSetup().Ensure(context.Background(), cli, fakeSigner{address: "rAlice"}, pfmuAsset())
	assert.ErrorContains(t, err, "tecNO_PERMISSION")
}
