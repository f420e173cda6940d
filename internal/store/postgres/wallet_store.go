package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verdantlabs/greenbond/internal/domain"
)

// WalletStore implements domain.WalletStore. Seeds are stored encrypted;
// the store never sees plaintext credentials.
type WalletStore struct {
	pool *pgxpool.Pool
}

// NewWalletStore creates a WalletStore backed by the given client.
func NewWalletStore(c *Client) *WalletStore {
	return &WalletStore{pool: c.Pool()}
}

// Save upserts a wallet keyed by user ID.
func (s *WalletStore) Save(ctx context.Context, w domain.Wallet) error {
	const query = `
		INSERT INTO wallets (user_id, address, public_key, encrypted_seed, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET address = EXCLUDED.address,
			public_key = EXCLUDED.public_key,
			encrypted_seed = EXCLUDED.encrypted_seed`

	_, err := s.pool.Exec(ctx, query,
		w.UserID, w.Address, w.PublicKey, w.EncryptedSeed, w.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: save wallet for user %s: %w", w.UserID, err)
	}
	return nil
}

// GetByUserID fetches the wallet for a user. Returns domain.ErrNotFound when
// the user has no wallet yet.
func (s *WalletStore) GetByUserID(ctx context.Context, userID string) (domain.Wallet, error) {
	const query = `
		SELECT user_id, address, public_key, encrypted_seed, created_at
		FROM wallets WHERE user_id = $1`

	return s.getOne(ctx, query, userID)
}

// GetByAddress fetches the wallet holding the given ledger address.
func (s *WalletStore) GetByAddress(ctx context.Context, address string) (domain.Wallet, error) {
	const query = `
		SELECT user_id, address, public_key, encrypted_seed, created_at
		FROM wallets WHERE address = $1`

	return s.getOne(ctx, query, address)
}

func (s *WalletStore) getOne(ctx context.Context, query, arg string) (domain.Wallet, error) {
	var w domain.Wallet
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&w.UserID, &w.Address, &w.PublicKey, &w.EncryptedSeed, &w.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Wallet{}, fmt.Errorf("postgres: wallet %s: %w", arg, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Wallet{}, fmt.Errorf("postgres: get wallet %s: %w", arg, err)
	}
	return w, nil
}

// Compile-time interface check.
var _ domain.WalletStore = (*WalletStore)(nil)
