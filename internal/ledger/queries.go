package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/verdantlabs/greenbond/internal/domain"
)

// ServerInfo fetches reserve parameters and the current validated ledger
// index from the connected node.
func (c *WSClient) ServerInfo(ctx context.Context) (ServerInfo, error) {
	raw, err := c.call(ctx, "server_info", nil)
	if err != nil {
		return ServerInfo{}, err
	}

	var out struct {
		Info struct {
			NetworkID       uint32 `json:"network_id"`
			ValidatedLedger struct {
				Seq         uint32  `json:"seq"`
				ReserveBase float64 `json:"reserve_base_xrp"`
				ReserveInc  float64 `json:"reserve_inc_xrp"`
			} `json:"validated_ledger"`
		} `json:"info"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return ServerInfo{}, fmt.Errorf("ledger: server_info: decode: %w", err)
	}

	return ServerInfo{
		ReserveBase:      decimal.NewFromFloat(out.Info.ValidatedLedger.ReserveBase),
		ReserveIncrement: decimal.NewFromFloat(out.Info.ValidatedLedger.ReserveInc),
		ValidatedLedger:  out.Info.ValidatedLedger.Seq,
		NetworkID:        out.Info.NetworkID,
	}, nil
}

// AccountInfo fetches the account root entry for address from the validated
// ledger. Unknown accounts map to domain.ErrNotFound.
func (c *WSClient) AccountInfo(ctx context.Context, address string) (AccountInfo, error) {
	raw, err := c.call(ctx, "account_info", map[string]any{
		"account":      address,
		"ledger_index": "validated",
	})
	if err != nil {
		return AccountInfo{}, accountErr(address, err)
	}

	var out struct {
		AccountData struct {
			Account    string `json:"Account"`
			Balance    string `json:"Balance"`
			Sequence   uint32 `json:"Sequence"`
			OwnerCount uint32 `json:"OwnerCount"`
		} `json:"account_data"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return AccountInfo{}, fmt.Errorf("ledger: account_info: decode: %w", err)
	}

	bal, err := domain.AmountFromDrops(out.AccountData.Balance)
	if err != nil {
		return AccountInfo{}, fmt.Errorf("ledger: account_info: balance: %w", err)
	}
	return AccountInfo{
		Address:    out.AccountData.Account,
		Balance:    bal,
		Sequence:   out.AccountData.Sequence,
		OwnerCount: out.AccountData.OwnerCount,
	}, nil
}

// AccountLines lists the trust lines held by address.
func (c *WSClient) AccountLines(ctx context.Context, address string) ([]TrustLine, error) {
	raw, err := c.call(ctx, "account_lines", map[string]any{
		"account":      address,
		"ledger_index": "validated",
	})
	if err != nil {
		return nil, accountErr(address, err)
	}

	var out struct {
		Lines []struct {
			Account  string `json:"account"`
			Currency string `json:"currency"`
			Balance  string `json:"balance"`
			Limit    string `json:"limit"`
		} `json:"lines"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("ledger: account_lines: decode: %w", err)
	}

	lines := make([]TrustLine, 0, len(out.Lines))
	for _, l := range out.Lines {
		bal, err := decimal.NewFromString(l.Balance)
		if err != nil {
			return nil, fmt.Errorf("ledger: account_lines: balance %q: %w", l.Balance, err)
		}
		limit, err := decimal.NewFromString(l.Limit)
		if err != nil {
			return nil, fmt.Errorf("ledger: account_lines: limit %q: %w", l.Limit, err)
		}
		lines = append(lines, TrustLine{
			Account:  l.Account,
			Currency: domain.DecodeCurrency(l.Currency),
			Balance:  bal,
			Limit:    limit,
		})
	}
	return lines, nil
}

// LedgerIndex returns the index of the most recent validated ledger.
func (c *WSClient) LedgerIndex(ctx context.Context) (uint32, error) {
	raw, err := c.call(ctx, "ledger", map[string]any{"ledger_index": "validated"})
	if err != nil {
		return 0, err
	}

	var out struct {
		LedgerIndex uint32 `json:"ledger_index"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return 0, fmt.Errorf("ledger: ledger: decode: %w", err)
	}
	return out.LedgerIndex, nil
}

// BookOffers lists the best offers selling takerGets for takerPays.
func (c *WSClient) BookOffers(ctx context.Context, takerGets, takerPays domain.AssetAmount, limit int) ([]domain.Offer, error) {
	raw, err := c.call(ctx, "book_offers", map[string]any{
		"taker_gets":   encodeBookAsset(takerGets),
		"taker_pays":   encodeBookAsset(takerPays),
		"ledger_index": "validated",
		"limit":        limit,
	})
	if err != nil {
		return nil, err
	}

	var out struct {
		Offers []struct {
			Account   string          `json:"Account"`
			TakerGets json.RawMessage `json:"TakerGets"`
			TakerPays json.RawMessage `json:"TakerPays"`
			Sequence  uint32          `json:"Sequence"`
		} `json:"offers"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("ledger: book_offers: decode: %w", err)
	}

	offers := make([]domain.Offer, 0, len(out.Offers))
	for _, o := range out.Offers {
		gets, err := decodeAmount(o.TakerGets)
		if err != nil {
			return nil, fmt.Errorf("ledger: book_offers: %w", err)
		}
		pays, err := decodeAmount(o.TakerPays)
		if err != nil {
			return nil, fmt.Errorf("ledger: book_offers: %w", err)
		}
		offers = append(offers, domain.Offer{
			Account:   o.Account,
			TakerGets: gets,
			TakerPays: pays,
			Sequence:  o.Sequence,
		})
	}
	return offers, nil
}

// Autofill derives a signable transaction from an intent: it stamps the
// account's next sequence, the open-ledger fee, and an expiry of the current
// validated index plus expiryWindow. The intent itself is not mutated.
func (c *WSClient) Autofill(ctx context.Context, intent domain.TransactionIntent, expiryWindow uint32) (PreparedTx, error) {
	info, err := c.AccountInfo(ctx, intent.Account)
	if err != nil {
		return PreparedTx{}, err
	}
	index, err := c.LedgerIndex(ctx)
	if err != nil {
		return PreparedTx{}, err
	}
	fee, err := c.openLedgerFee(ctx)
	if err != nil {
		return PreparedTx{}, err
	}

	tx := PreparedTx{
		TransactionType:    string(intent.Type),
		Account:            intent.Account,
		Fee:                fee,
		Sequence:           info.Sequence,
		LastLedgerSequence: index + expiryWindow,
		NetworkID:          c.networkID,
	}

	switch intent.Type {
	case domain.TxPayment:
		tx.Destination = intent.Destination
		tx.Amount = encodeAmount(intent.Amount)
		tx.DestinationTag = intent.DestinationTag
	case domain.TxTrustSet:
		tx.LimitAmount = encodeAmount(intent.LimitAmount)
	case domain.TxOfferCreate:
		tx.TakerGets = encodeAmount(intent.TakerGets)
		tx.TakerPays = encodeAmount(intent.TakerPays)
	default:
		return PreparedTx{}, fmt.Errorf("ledger: autofill: unsupported transaction type %q", intent.Type)
	}

	return tx, nil
}

// openLedgerFee queries the current open-ledger fee in drops.
func (c *WSClient) openLedgerFee(ctx context.Context) (string, error) {
	raw, err := c.call(ctx, "fee", nil)
	if err != nil {
		return "", err
	}

	var out struct {
		Drops struct {
			OpenLedgerFee string `json:"open_ledger_fee"`
			BaseFee       string `json:"base_fee"`
		} `json:"drops"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("ledger: fee: decode: %w", err)
	}
	if out.Drops.OpenLedgerFee != "" {
		return out.Drops.OpenLedgerFee, nil
	}
	return out.Drops.BaseFee, nil
}

// Submit sends a signed transaction blob and decodes the engine's verdict.
func (c *WSClient) Submit(ctx context.Context, txBlob string) (SubmitResult, error) {
	raw, err := c.call(ctx, "submit", map[string]any{"tx_blob": txBlob})
	if err != nil {
		return SubmitResult{}, err
	}

	var out struct {
		EngineResult string `json:"engine_result"`
		Applied      bool   `json:"applied"`
		TxJSON       struct {
			Hash string `json:"hash"`
		} `json:"tx_json"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return SubmitResult{}, fmt.Errorf("ledger: submit: decode: %w", err)
	}

	res := SubmitResult{
		Class:        ClassifyResult(out.EngineResult),
		EngineResult: out.EngineResult,
		TxHash:       out.TxJSON.Hash,
		Applied:      out.Applied,
	}
	c.log.Debug("submit acknowledged",
		"engine_result", out.EngineResult,
		"class", res.Class.String(),
		"hash", res.TxHash)
	return res, nil
}

// accountErr maps the node's actNotFound error onto domain.ErrNotFound so
// callers can branch on provisioning.
func accountErr(address string, err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "actNotFound") {
		return fmt.Errorf("ledger: account %s: %w", address, domain.ErrNotFound)
	}
	return err
}
