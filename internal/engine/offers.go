package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/verdantlabs/greenbond/internal/domain"
	"github.com/verdantlabs/greenbond/internal/ledger"
)

// OfferService renders the shared order book for browsing. The XRP and USD
// books are fetched concurrently on one session and the formatted result is
// cached briefly so page refreshes do not hammer the node.
type OfferService struct {
	dial      ledger.Dialer
	cache     domain.OfferCache
	pfmu      domain.AssetAmount // currency and issuer template, value unused
	usdIssuer string
	bookLimit int
	bookTTL   time.Duration
	log       *slog.Logger
}

// NewOfferService creates an OfferService. cache may be nil to disable
// caching; usdIssuer may be empty to skip the USD book.
func NewOfferService(dial ledger.Dialer, cache domain.OfferCache, pfmu domain.AssetAmount, usdIssuer string, bookLimit int, bookTTL time.Duration, logger *slog.Logger) *OfferService {
	return &OfferService{
		dial:      dial,
		cache:     cache,
		pfmu:      pfmu,
		usdIssuer: usdIssuer,
		bookLimit: bookLimit,
		bookTTL:   bookTTL,
		log:       logger.With("component", "offers"),
	}
}

// OfferBook is the formatted order book split by quote currency.
type OfferBook struct {
	XRP []domain.FormattedOffer `json:"xrp"`
	USD []domain.FormattedOffer `json:"usd,omitempty"`
}

// SellOffers lists offers selling the unit for XRP and USD: what a buyer
// browses before purchasing.
func (s *OfferService) SellOffers(ctx context.Context) (OfferBook, error) {
	return s.book(ctx, "sell")
}

// BuyOffers lists offers buying the unit with XRP and USD.
func (s *OfferService) BuyOffers(ctx context.Context) (OfferBook, error) {
	return s.book(ctx, "buy")
}

func (s *OfferService) book(ctx context.Context, side string) (OfferBook, error) {
	book := OfferBook{
		XRP: s.cached(ctx, side, "xrp"),
		USD: s.cached(ctx, side, "usd"),
	}
	if book.XRP != nil && (s.usdIssuer == "" || book.USD != nil) {
		return book, nil
	}

	cli, err := s.dial(ctx)
	if err != nil {
		return OfferBook{}, fmt.Errorf("engine/offers: %w", err)
	}
	defer cli.Close()

	xrp := domain.NativeAmount(decimal.Zero)
	usd := domain.AssetAmount{Currency: "USD", Issuer: s.usdIssuer}

	// On a sell book the unit is what the maker gives; on a buy book it is
	// what the maker wants.
	gets, pays := s.pfmu, xrp
	if side == "buy" {
		gets, pays = xrp, s.pfmu
	}

	var xrpOffers, usdOffers []domain.Offer
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		xrpOffers, err = cli.BookOffers(gctx, gets, pays, s.bookLimit)
		return err
	})
	if s.usdIssuer != "" {
		ugets, upays := s.pfmu, usd
		if side == "buy" {
			ugets, upays = usd, s.pfmu
		}
		g.Go(func() error {
			var err error
			usdOffers, err = cli.BookOffers(gctx, ugets, upays, s.bookLimit)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return OfferBook{}, fmt.Errorf("engine/offers: %w", err)
	}

	book.XRP = formatOffers(xrpOffers, s.pfmu)
	book.USD = formatOffers(usdOffers, s.pfmu)
	s.store(ctx, side, "xrp", book.XRP)
	if s.usdIssuer != "" {
		s.store(ctx, side, "usd", book.USD)
	}
	return book, nil
}

func (s *OfferService) cached(ctx context.Context, side, quote string) []domain.FormattedOffer {
	if s.cache == nil {
		return nil
	}
	offers, err := s.cache.Get(ctx, "book:"+side+":"+quote)
	if err != nil {
		return nil
	}
	return offers
}

func (s *OfferService) store(ctx context.Context, side, quote string, offers []domain.FormattedOffer) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, "book:"+side+":"+quote, offers, s.bookTTL); err != nil {
		s.log.Warn("book cache write failed", "side", side, "quote", quote, "error", err)
	}
}

// formatOffers renders raw offers for display: unit price, quantity on
// offer, and total in the quote currency. Price is always quote-per-unit:
// sell-book makers give the unit while buy-book makers pay for it, so the
// ratio flips with the side the unit sits on.
func formatOffers(offers []domain.Offer, unit domain.AssetAmount) []domain.FormattedOffer {
	out := make([]domain.FormattedOffer, 0, len(offers))
	for _, o := range offers {
		quantity, total := o.TakerGets.Value, o.TakerPays.Value
		if !o.TakerGets.SameAsset(unit) {
			quantity, total = o.TakerPays.Value, o.TakerGets.Value
		}
		if quantity.IsZero() {
			continue
		}
		out = append(out, domain.FormattedOffer{
			Price:      total.Div(quantity).StringFixed(6),
			Amount:     quantity.String(),
			TotalPrice: total.StringFixed(6),
		})
	}
	return out
}
