package domain

import "time"

// AccountRef identifies a ledger account together with the user it belongs
// to. The signing credentials themselves live in the wallet store and are
// resolved separately; an AccountRef is never shared across concurrent
// signers.
type AccountRef struct {
	Address string
	UserID  string
}

// Wallet is a stored ledger account credential. The seed is encrypted at
// rest; callers decrypt it through the key manager before signing.
type Wallet struct {
	UserID        string
	Address       string
	PublicKey     string
	EncryptedSeed []byte
	CreatedAt     time.Time
}

// Ref returns the AccountRef for this wallet.
func (w Wallet) Ref() AccountRef {
	return AccountRef{Address: w.Address, UserID: w.UserID}
}
