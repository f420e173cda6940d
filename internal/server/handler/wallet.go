package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/verdantlabs/greenbond/internal/domain"
)

// WalletService defines the wallet provisioning method the handler requires.
type WalletService interface {
	EnsureWallet(ctx context.Context, userID string) (domain.Wallet, error)
}

// WalletHandler serves wallet provisioning. The response never includes seed
// material, encrypted or otherwise.
type WalletHandler struct {
	wallets WalletService
	logger  *slog.Logger
}

// NewWalletHandler creates a WalletHandler.
func NewWalletHandler(wallets WalletService, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{wallets: wallets, logger: logHandler(logger, "wallet")}
}

type walletRequest struct {
	UserID string `json:"user_id"`
}

type walletResponse struct {
	UserID    string `json:"user_id"`
	Address   string `json:"address"`
	PublicKey string `json:"public_key"`
	CreatedAt string `json:"created_at"`
}

// EnsureWallet returns the user's wallet, provisioning and funding a new
// ledger account on first use.
// POST /api/wallets
func (h *WalletHandler) EnsureWallet(w http.ResponseWriter, r *http.Request) {
	var req walletRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
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

	writeJSON(w, http.StatusOK, walletResponse{
		UserID:    wallet.UserID,
		Address:   wallet.Address,
		PublicKey: wallet.PublicKey,
		CreatedAt: wallet.CreatedAt.UTC().Format(time.RFC3339),
	})
}
