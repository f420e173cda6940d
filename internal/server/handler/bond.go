package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/verdantlabs/greenbond/internal/crypto"
	"github.com/verdantlabs/greenbond/internal/domain"
	"github.com/verdantlabs/greenbond/internal/engine"
)

// BondService defines the bookkeeping methods the bond handler requires.
type BondService interface {
	Create(ctx context.Context, in engine.CreateBondInput) (engine.BondView, error)
	Get(ctx context.Context, id string) (engine.BondView, error)
	List(ctx context.Context, filter string) ([]engine.BondView, error)
	Invest(ctx context.Context, bondID string, inv domain.Investment) (engine.BondView, error)
}

// LedgerFlows defines the ledger-coupled bond operations: staking with its
// on-ledger transfer leg, and tokenization.
type LedgerFlows interface {
	StakeWithTransfer(ctx context.Context, bondID string, stake domain.Stake, staker engine.Signer) (engine.BondView, error)
	Tokenize(ctx context.Context, bondID, recipient string) (engine.BondView, error)
}

// SignerResolver provisions a wallet for a user and opens its signer.
type SignerResolver interface {
	EnsureWallet(ctx context.Context, userID string) (domain.Wallet, error)
	SignerFor(w domain.Wallet) (*crypto.Signer, error)
}

// BondHandler serves the bond lifecycle endpoints.
type BondHandler struct {
	bonds   BondService
	flows   LedgerFlows
	wallets SignerResolver
	logger  *slog.Logger
}

// NewBondHandler creates a BondHandler.
func NewBondHandler(bonds BondService, flows LedgerFlows, wallets SignerResolver, logger *slog.Logger) *BondHandler {
	return &BondHandler{
		bonds:   bonds,
		flows:   flows,
		wallets: wallets,
		logger:  logHandler(logger, "bond"),
	}
}

// CreateBond issues a new bond.
// POST /api/bonds
func (h *BondHandler) CreateBond(w http.ResponseWriter, r *http.Request) {
	var in engine.CreateBondInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := h.bonds.Create(r.Context(), in)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "create bond failed",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "failed to create bond")
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// ListBonds returns bonds filtered by derived status.
// GET /api/bonds?status=pending|active|open|closed
func (h *BondHandler) ListBonds(w http.ResponseWriter, r *http.Request) {
	views, err := h.bonds.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list bonds failed",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "failed to list bonds")
		return
	}
	if views == nil {
		views = []engine.BondView{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"bonds": views,
		"count": len(views),
	})
}

// GetBond returns a single bond with its derived status.
// GET /api/bonds/{id}
func (h *BondHandler) GetBond(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing bond id")
		return
	}

	view, err := h.bonds.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "failed to get bond")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type stakeRequest struct {
	UserID         string          `json:"user_id"`
	Amount         decimal.Decimal `json:"amount"`
	Project        string          `json:"project"`
	IssuanceDate   time.Time       `json:"issuance_date"`
	ExpirationDate time.Time       `json:"expiration_date"`
}

// Stake records a stake against a bond, settling the unit transfer on the
// ledger first.
// POST /api/bonds/{id}/stake
func (h *BondHandler) Stake(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req stakeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if !req.Amount.GreaterThan(decimal.Zero) {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	if req.IssuanceDate.IsZero() {
		req.IssuanceDate = time.Now().UTC()
	}

	wallet, err := h.wallets.EnsureWallet(r.Context(), req.UserID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "wallet provisioning failed",
			slog.String("user_id", req.UserID),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "failed to provision wallet")
		return
	}
	signer, err := h.wallets.SignerFor(wallet)
	if err != nil {
		writeDomainError(w, err, "failed to open wallet")
		return
	}

	stake := domain.Stake{
		Amount:         req.Amount,
		Project:        req.Project,
		IssuanceDate:   req.IssuanceDate,
		ExpirationDate: req.ExpirationDate,
	}
	view, err := h.flows.StakeWithTransfer(r.Context(), id, stake, signer)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "stake failed",
			slog.String("bond_id", id),
			slog.String("user_id", req.UserID),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "failed to record stake")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type investRequest struct {
	Investor string          `json:"investor"`
	Amount   decimal.Decimal `json:"amount"`
	Account  string          `json:"account"`
}

// Invest records an investor contribution.
// POST /api/bonds/{id}/invest
func (h *BondHandler) Invest(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req investRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Amount.GreaterThan(decimal.Zero) {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	view, err := h.bonds.Invest(r.Context(), id, domain.Investment{
		Investor: req.Investor,
		Amount:   req.Amount,
		Account:  req.Account,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "invest failed",
			slog.String("bond_id", id),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "failed to record investment")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type tokenizeRequest struct {
	Recipient string `json:"recipient"`
}

// Tokenize mints the derivative token for a bond's staked units.
// POST /api/bonds/{id}/tokenize
func (h *BondHandler) Tokenize(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req tokenizeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Recipient == "" {
		writeError(w, http.StatusBadRequest, "recipient is required")
		return
	}

	view, err := h.flows.Tokenize(r.Context(), id, req.Recipient)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "tokenize failed",
			slog.String("bond_id", id),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "failed to tokenize bond")
		return
	}
	writeJSON(w, http.StatusOK, view)
}
