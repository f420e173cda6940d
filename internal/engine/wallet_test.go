package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantlabs/greenbond/internal/domain"
)

func newTestWalletService(store domain.WalletStore, funder Funder) *WalletService {
	return NewWalletService(store, funder, nil, nil, pfmuAsset(), "test-password", testLogger())
}

func TestEnsureWalletProvisionsOnFirstUse(t *testing.T) {
	store := newFakeWalletStore()
	funder := &fakeFunder{}
	svc := newTestWalletService(store, funder)

	wallet, err := svc.EnsureWallet(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, "user-1", wallet.UserID)
	assert.NotEmpty(t, wallet.Address)
	assert.NotEmpty(t, wallet.PublicKey)
	assert.NotEmpty(t, wallet.EncryptedSeed)
	assert.Equal(t, []string{""}, funder.funded, "provisioning asks the faucet for a fresh account")

	// The persisted seed is not stored in the clear.
	assert.NotContains(t, string(wallet.EncryptedSeed), "sEdFaucetSeed")
}

func TestEnsureWalletIsIdempotent(t *testing.T) {
	store := newFakeWalletStore()
	funder := &fakeFunder{}
	svc := newTestWalletService(store, funder)

	first, err := svc.EnsureWallet(context.Background(), "user-1")
	require.NoError(t, err)
	second, err := svc.EnsureWallet(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, first.Address, second.Address)
	assert.Len(t, funder.funded, 1, "existing wallets are never re-provisioned")
}

func TestSignerForRoundTrips(t *testing.T) {
	store := newFakeWalletStore()
	svc := newTestWalletService(store, &fakeFunder{})

	wallet, err := svc.EnsureWallet(context.Background(), "user-1")
	require.NoError(t, err)

	signer, err := svc.SignerFor(wallet)
	require.NoError(t, err)
	assert.Equal(t, wallet.Address, signer.Address())
	assert.Equal(t, wallet.PublicKey, signer.PublicKey())
}

func TestSignerForMissingCredentials(t *testing.T) {
	svc := newTestWalletService(newFakeWalletStore(), &fakeFunder{})

	_, err := svc.SignerFor(domain.Wallet{Address: "rNoSeed"})
	assert.ErrorIs(t, err, domain.ErrNoCredentials)
}
