package domain

import (
	"context"
	"time"
)

// BondStore persists bonds and their append-only stake and investment lists.
// Implementations provide read-your-writes consistency within the calling
// process; cross-process isolation comes from the LockManager.
type BondStore interface {
	Create(ctx context.Context, bond Bond) error
	GetByID(ctx context.Context, id string) (Bond, error)
	List(ctx context.Context) ([]Bond, error)
	Save(ctx context.Context, bond Bond) error
}

// WalletStore persists signing credentials keyed by both the external user
// identifier and the ledger-native address. GetBy* return ErrNotFound when
// absent; callers provision a new account in that case.
type WalletStore interface {
	Save(ctx context.Context, w Wallet) error
	GetByUserID(ctx context.Context, userID string) (Wallet, error)
	GetByAddress(ctx context.Context, address string) (Wallet, error)
}

// SubmissionStore is the append-only audit trail of final submission
// outcomes. Delete takes explicit ids so the archiver removes exactly the
// rows it uploaded, regardless of timestamp collisions.
type SubmissionStore interface {
	Append(ctx context.Context, rec SubmissionRecord) error
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]SubmissionRecord, error)
	Delete(ctx context.Context, ids []string) (int64, error)
}

// LockManager provides TTL-bounded mutual exclusion for a named resource.
// Acquire returns ErrLockHeld when another party holds the lock; on success
// the returned function releases it and is safe to call more than once.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// OfferCache caches formatted order-book reads for a short TTL so repeated
// browsing does not hammer the ledger session.
type OfferCache interface {
	Get(ctx context.Context, key string) ([]FormattedOffer, error)
	Set(ctx context.Context, key string, offers []FormattedOffer, ttl time.Duration) error
}

// BlobWriter writes an object to blob storage.
type BlobWriter interface {
	Write(ctx context.Context, key string, data []byte, contentType string) error
}
