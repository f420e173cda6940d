package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/verdantlabs/greenbond/internal/crypto"
	"github.com/verdantlabs/greenbond/internal/domain"
	"github.com/verdantlabs/greenbond/internal/ledger"
)

// WalletService provisions and resolves per-user signing accounts. Seeds are
// encrypted at rest; decryption happens only at signing time.
type WalletService struct {
	wallets  domain.WalletStore
	faucet   Funder
	dial     ledger.Dialer
	trust    *TrustLineSetup
	pfmu     domain.AssetAmount // trust line target, value unused
	password string             // at-rest seed encryption password
	log      *slog.Logger
}

// NewWalletService creates a WalletService.
func NewWalletService(wallets domain.WalletStore, faucet Funder, dial ledger.Dialer, trust *TrustLineSetup, pfmu domain.AssetAmount, password string, logger *slog.Logger) *WalletService {
	return &WalletService{
		wallets:  wallets,
		faucet:   faucet,
		dial:     dial,
		trust:    trust,
		pfmu:     pfmu,
		password: password,
		log:      logger.With("component", "wallet"),
	}
}

// EnsureWallet returns the user's wallet, provisioning one on first use: a
// fresh faucet-funded account with its seed encrypted at rest and a trust
// line for the traded asset.
func (w *WalletService) EnsureWallet(ctx context.Context, userID string) (domain.Wallet, error) {
	wallet, err := w.wallets.GetByUserID(ctx, userID)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Wallet{}, fmt.Errorf("engine/wallet: lookup %s: %w", userID, err)
	}

	funded, err := w.faucet.Fund(ctx, "")
	if err != nil {
		return domain.Wallet{}, fmt.Errorf("engine/wallet: provisioning %s: %w", userID, err)
	}

	signer, err := crypto.NewSigner(funded.Seed, funded.Address)
	if err != nil {
		return domain.Wallet{}, fmt.Errorf("engine/wallet: provisioning %s: %w", userID, err)
	}
	encrypted, err := crypto.EncryptSeed(funded.Seed, w.password)
	if err != nil {
		return domain.Wallet{}, fmt.Errorf("engine/wallet: provisioning %s: %w", userID, err)
	}

	wallet = domain.Wallet{
		UserID:        userID,
		Address:       funded.Address,
		PublicKey:     signer.PublicKey(),
		EncryptedSeed: encrypted,
		CreatedAt:     time.Now().UTC(),
	}
	if err := w.wallets.Save(ctx, wallet); err != nil {
		return domain.Wallet{}, fmt.Errorf("engine/wallet: saving %s: %w", userID, err)
	}

	w.log.Info("wallet provisioned", "user_id", userID, "address", wallet.Address)

	// The trust line is a convenience for the first purchase; flows set it
	// again themselves, so a failure here only costs a later round trip.
	if w.trust != nil {
		if err := w.setTrustLine(ctx, signer); err != nil {
			w.log.Warn("initial trust line setup failed", "address", wallet.Address, "error", err)
		}
	}

	return wallet, nil
}

func (w *WalletService) setTrustLine(ctx context.Context, signer Signer) error {
	cli, err := w.dial(ctx)
	if err != nil {
		return err
	}
	defer cli.Close()

	_, err = w.trust.Ensure(ctx, cli, signer, w.pfmu)
	return err
}

// SignerFor decrypts the wallet's seed and builds its signer.
func (w *WalletService) SignerFor(wallet domain.Wallet) (*crypto.Signer, error) {
	if len(wallet.EncryptedSeed) == 0 {
		return nil, fmt.Errorf("engine/wallet: %s: %w", wallet.Address, domain.ErrNoCredentials)
	}
	seed, err := crypto.DecryptSeed(wallet.EncryptedSeed, w.password)
	if err != nil {
		return nil, fmt.Errorf("engine/wallet: %s: %w", wallet.Address, err)
	}
	return crypto.NewSigner(seed, wallet.Address)
}
