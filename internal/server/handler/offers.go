package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/verdantlabs/greenbond/internal/engine"
)

// OfferService defines the order-book reads the offer handler requires.
type OfferService interface {
	SellOffers(ctx context.Context) (engine.OfferBook, error)
	BuyOffers(ctx context.Context) (engine.OfferBook, error)
}

// OfferHandler serves the order-book browsing endpoints.
type OfferHandler struct {
	offers OfferService
	logger *slog.Logger
}

// NewOfferHandler creates an OfferHandler.
func NewOfferHandler(offers OfferService, logger *slog.Logger) *OfferHandler {
	return &OfferHandler{offers: offers, logger: logHandler(logger, "offers")}
}

// SellOffers lists offers selling units, what a buyer browses.
// GET /api/offers/sell
func (h *OfferHandler) SellOffers(w http.ResponseWriter, r *http.Request) {
	book, err := h.offers.SellOffers(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "sell offers failed",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "failed to read sell offers")
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// BuyOffers lists offers buying units.
// GET /api/offers/buy
func (h *OfferHandler) BuyOffers(w http.ResponseWriter, r *http.Request) {
	book, err := h.offers.BuyOffers(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "buy offers failed",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "failed to read buy offers")
		return
	}
	writeJSON(w, http.StatusOK, book)
}
