package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// FundedAccount is the credential pair returned by a test-network faucet.
type FundedAccount struct {
	Address string
	Seed    string
	Balance decimal.Decimal
}

// FaucetClient requests test-network funding over HTTP. Passing an existing
// address tops that account up; passing none creates and funds a fresh one.
type FaucetClient struct {
	url  string
	http *http.Client
	log  *slog.Logger
}

// NewFaucetClient creates a faucet client for the given endpoint.
func NewFaucetClient(url string, logger *slog.Logger) *FaucetClient {
	return &FaucetClient{
		url:  url,
		http: &http.Client{Timeout: 30 * time.Second},
		log:  logger.With("component", "faucet"),
	}
}

// Fund requests funding for destination, or a brand new funded account when
// destination is empty.
func (f *FaucetClient) Fund(ctx context.Context, destination string) (FundedAccount, error) {
	body := map[string]any{}
	if destination != "" {
		body["destination"] = destination
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return FundedAccount{}, fmt.Errorf("ledger: faucet: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(payload))
	if err != nil {
		return FundedAccount{}, fmt.Errorf("ledger: faucet: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.http.Do(req)
	if err != nil {
		return FundedAccount{}, fmt.Errorf("ledger: faucet: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return FundedAccount{}, fmt.Errorf("ledger: faucet: read: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return FundedAccount{}, fmt.Errorf("ledger: faucet: status %d: %s", resp.StatusCode, raw)
	}

	var out struct {
		Account struct {
			Address string `json:"address"`
			Secret  string `json:"secret"`
			Seed    string `json:"seed"`
		} `json:"account"`
		Balance float64 `json:"balance"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return FundedAccount{}, fmt.Errorf("ledger: faucet: decode: %w", err)
	}

	seed := out.Account.Seed
	if seed == "" {
		seed = out.Account.Secret
	}

	f.log.Info("faucet funding granted",
		"address", out.Account.Address,
		"balance", out.Balance)

	return FundedAccount{
		Address: out.Account.Address,
		Seed:    seed,
		Balance: decimal.NewFromFloat(out.Balance),
	}, nil
}
