// Package ledger is the client boundary to the XRP Ledger: a WebSocket
// JSON-RPC session, wire-format encoding for amounts and transactions, and
// the engine-result classification the rest of the system pattern-matches on.
package ledger

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/verdantlabs/greenbond/internal/domain"
)

// rpcRequest is the WebSocket command envelope. Command-specific parameters
// are merged into the same JSON object by the session before writing.
type rpcRequest struct {
	ID      uint64 `json:"id"`
	Command string `json:"command"`
}

// rpcResponse is the common envelope of every reply.
type rpcResponse struct {
	ID           uint64          `json:"id"`
	Status       string          `json:"status"`
	Type         string          `json:"type"`
	Result       json.RawMessage `json:"result"`
	ErrorCode    string          `json:"error"`
	ErrorMessage string          `json:"error_message"`
}

// wireAmount is the on-wire amount representation: a bare string of drops
// for the native asset, an object for issued assets.
type wireAmount struct {
	Currency string `json:"currency"`
	Issuer   string `json:"issuer,omitempty"`
	Value    string `json:"value"`
}

// encodeAmount converts a domain amount to its wire form.
func encodeAmount(a domain.AssetAmount) any {
	if a.IsNative() {
		return a.Drops()
	}
	return wireAmount{
		Currency: domain.EncodeCurrency(a.Currency),
		Issuer:   a.Issuer,
		Value:    a.Value.String(),
	}
}

// decodeAmount converts a raw wire amount (string drops or issued object)
// back to a domain amount.
func decodeAmount(raw json.RawMessage) (domain.AssetAmount, error) {
	var drops string
	if err := json.Unmarshal(raw, &drops); err == nil {
		a, err := domain.AmountFromDrops(drops)
		if err != nil {
			return domain.AssetAmount{}, fmt.Errorf("ledger: invalid drops amount %q: %w", drops, err)
		}
		return a, nil
	}

	var w wireAmount
	if err := json.Unmarshal(raw, &w); err != nil {
		return domain.AssetAmount{}, fmt.Errorf("ledger: unrecognized amount %s: %w", string(raw), err)
	}
	v, err := decimal.NewFromString(w.Value)
	if err != nil {
		return domain.AssetAmount{}, fmt.Errorf("ledger: invalid amount value %q: %w", w.Value, err)
	}
	return domain.AssetAmount{
		Currency: domain.DecodeCurrency(w.Currency),
		Issuer:   w.Issuer,
		Value:    v,
	}, nil
}

// bookAsset is the currency/issuer pair used by book queries. The native
// asset is expressed as {"currency": "XRP"} with no issuer.
type bookAsset struct {
	Currency string `json:"currency"`
	Issuer   string `json:"issuer,omitempty"`
}

func encodeBookAsset(a domain.AssetAmount) bookAsset {
	if a.IsNative() {
		return bookAsset{Currency: domain.NativeCurrency}
	}
	return bookAsset{Currency: domain.EncodeCurrency(a.Currency), Issuer: a.Issuer}
}

// ServerInfo is the subset of the server state this system depends on:
// reserve parameters and the current validated ledger index.
type ServerInfo struct {
	ReserveBase      decimal.Decimal
	ReserveIncrement decimal.Decimal
	ValidatedLedger  uint32
	NetworkID        uint32
}

// AccountInfo is the subset of an account root entry the engine reads.
type AccountInfo struct {
	Address    string
	Balance    domain.AssetAmount // native, in whole units
	Sequence   uint32
	OwnerCount uint32
}

// TrustLine is one entry of an account's trust line listing.
type TrustLine struct {
	Account  string
	Currency string
	Balance  decimal.Decimal
	Limit    decimal.Decimal
}

// SubmitResult is the acknowledgment returned by a submit call. Class is the
// decoded verdict; EngineResult keeps the raw code for audit records.
type SubmitResult struct {
	Class        domain.ResultClass
	EngineResult string
	TxHash       string
	Applied      bool
}

// PreparedTx is a fully autofilled, signable transaction. Field names follow
// the ledger's canonical transaction JSON.
type PreparedTx struct {
	TransactionType    string `json:"TransactionType"`
	Account            string `json:"Account"`
	Fee                string `json:"Fee"`
	Sequence           uint32 `json:"Sequence"`
	LastLedgerSequence uint32 `json:"LastLedgerSequence"`
	NetworkID          uint32 `json:"NetworkID,omitempty"`

	// Payment
	Destination    string `json:"Destination,omitempty"`
	Amount         any    `json:"Amount,omitempty"`
	DestinationTag uint32 `json:"DestinationTag,omitempty"`

	// TrustSet
	LimitAmount any `json:"LimitAmount,omitempty"`

	// OfferCreate
	TakerGets any `json:"TakerGets,omitempty"`
	TakerPays any `json:"TakerPays,omitempty"`

	SigningPubKey string `json:"SigningPubKey,omitempty"`
	TxnSignature  string `json:"TxnSignature,omitempty"`
}

// ClassifyResult maps a raw engine result code onto the closed set of
// classes the pipeline understands. Unknown codes that are still in the
// rejection namespaces decode as rejected, never as retryable.
func ClassifyResult(code string) domain.ResultClass {
	switch {
	case code == "":
		return domain.ResultUnknown
	case strings.HasPrefix(code, "tes"):
		return domain.ResultOK
	case code == "terQUEUED":
		return domain.ResultQueued
	case code == "tefPAST_SEQ" || code == "terPRE_SEQ":
		return domain.ResultStaleSequence
	case code == "tecUNFUNDED_OFFER":
		return domain.ResultUnfundedOffer
	default:
		return domain.ResultRejected
	}
}
