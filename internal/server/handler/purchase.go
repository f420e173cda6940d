package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/verdantlabs/greenbond/internal/domain"
)

// PurchaseService defines the settlement flow the purchase handler requires.
type PurchaseService interface {
	Purchase(ctx context.Context, userID string, quantity decimal.Decimal) (domain.PurchaseResult, error)
}

// PurchaseHandler serves the unit purchase endpoint.
type PurchaseHandler struct {
	purchases PurchaseService
	logger    *slog.Logger
}

// NewPurchaseHandler creates a PurchaseHandler.
func NewPurchaseHandler(purchases PurchaseService, logger *slog.Logger) *PurchaseHandler {
	return &PurchaseHandler{purchases: purchases, logger: logHandler(logger, "purchase")}
}

type purchaseRequest struct {
	UserID   string          `json:"user_id"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Purchase buys units on the open market for a user. The response reports
// the settled amount measured from the buyer's balance, not from the
// submission acknowledgment.
// POST /api/purchase
func (h *PurchaseHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if !req.Quantity.GreaterThan(decimal.Zero) {
		writeError(w, http.StatusBadRequest, "quantity must be positive")
		return
	}

	result, err := h.purchases.Purchase(r.Context(), req.UserID, req.Quantity)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "purchase failed",
			slog.String("user_id", req.UserID),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "failed to execute purchase")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
