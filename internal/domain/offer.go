package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Offer is a standing order on the shared order book: the owning account
// gives TakerGets in exchange for TakerPays. Read-only from this system's
// perspective except for the offers it creates itself.
type Offer struct {
	Account   string      `json:"account"`
	TakerGets AssetAmount `json:"taker_gets"`
	TakerPays AssetAmount `json:"taker_pays"`
	Sequence  uint32      `json:"sequence"`
}

// FormattedOffer is an order-book entry rendered for display: unit price,
// quantity on offer, and total cost in the quote currency.
type FormattedOffer struct {
	Price      string `json:"price"`
	Amount     string `json:"amount"`
	TotalPrice string `json:"total_price"`
}

// BalanceSnapshot is a point-in-time reading of one account's balance in one
// asset. Snapshots exist only to be diffed against a later snapshot; they
// are never persisted.
type BalanceSnapshot struct {
	Account  string
	Currency string
	Quantity decimal.Decimal
	TakenAt  time.Time
}

// PurchaseStatus classifies the outcome of an order placement after
// settlement checking.
type PurchaseStatus string

const (
	PurchaseFullyFilled     PurchaseStatus = "fully_filled"
	PurchasePartiallyFilled PurchaseStatus = "partially_filled"
	PurchaseFailed          PurchaseStatus = "failed"
)

// PurchaseResult is the settlement-checked outcome of placing an order. The
// Bought figure comes from the balance diff, which is the source of truth; a
// clean submission with no balance movement is reported as failed.
type PurchaseResult struct {
	Status        PurchaseStatus  `json:"status"`
	Bought        decimal.Decimal `json:"bought"`
	OpenRemainder decimal.Decimal `json:"open_remainder"`
	TxHash        string          `json:"tx_hash,omitempty"`
	Currency      string          `json:"currency"`
	SettledAt     time.Time       `json:"settled_at"`
	Message       string          `json:"message,omitempty"`
}
