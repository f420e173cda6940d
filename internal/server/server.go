// Package server provides the HTTP API for the settlement engine.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/verdantlabs/greenbond/internal/server/handler"
	"github.com/verdantlabs/greenbond/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// RateLimit caps requests per client IP per minute; 0 disables limiting.
	RateLimit int
}

// Handlers aggregates all HTTP handlers that the server registers.
type Handlers struct {
	Health    *handler.HealthHandler
	Bonds     *handler.BondHandler
	Offers    *handler.OfferHandler
	Purchases *handler.PurchaseHandler
	Wallets   *handler.WalletHandler
}

// Server is the HTTP API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered and the middleware
// chain (rate limiting, auth, logging, CORS) applied. limiter may be nil to
// disable rate limiting.
func NewServer(cfg Config, handlers Handlers, limiter middleware.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Bond lifecycle.
	mux.HandleFunc("POST /api/bonds", handlers.Bonds.CreateBond)
	mux.HandleFunc("GET /api/bonds", handlers.Bonds.ListBonds)
	mux.HandleFunc("GET /api/bonds/{id}", handlers.Bonds.GetBond)
	mux.HandleFunc("POST /api/bonds/{id}/stake", handlers.Bonds.Stake)
	mux.HandleFunc("POST /api/bonds/{id}/invest", handlers.Bonds.Invest)
	mux.HandleFunc("POST /api/bonds/{id}/tokenize", handlers.Bonds.Tokenize)

	// Order-book browsing.
	mux.HandleFunc("GET /api/ledger/offers/sell", handlers.Offers.SellOffers)
	mux.HandleFunc("GET /api/ledger/offers/buy", handlers.Offers.BuyOffers)

	// Market purchase.
	mux.HandleFunc("POST /api/ledger/purchase", handlers.Purchases.Purchase)

	// Wallet provisioning.
	mux.HandleFunc("POST /api/wallets", handlers.Wallets.EnsureWallet)

	var h http.Handler = mux

	h = middleware.Auth(cfg.APIKey)(h)
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, time.Minute)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
