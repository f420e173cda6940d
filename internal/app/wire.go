package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	s3blob "github.com/verdantlabs/greenbond/internal/blob/s3"
	"github.com/verdantlabs/greenbond/internal/cache/redis"
	"github.com/verdantlabs/greenbond/internal/config"
	"github.com/verdantlabs/greenbond/internal/crypto"
	"github.com/verdantlabs/greenbond/internal/domain"
	"github.com/verdantlabs/greenbond/internal/engine"
	"github.com/verdantlabs/greenbond/internal/ledger"
	"github.com/verdantlabs/greenbond/internal/notify"
	"github.com/verdantlabs/greenbond/internal/server"
	"github.com/verdantlabs/greenbond/internal/server/handler"
	"github.com/verdantlabs/greenbond/internal/store/postgres"
)

// Dependencies bundles everything the running application needs: stores,
// caches, the settlement engine services, and the HTTP server. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Bonds     *engine.BondService
	Flows     *engine.BondLedgerFlows
	Offers    *engine.OfferService
	Purchases *engine.PurchaseService
	Wallets   *engine.WalletService

	Archiver *s3blob.Archiver // nil when S3 is disabled
	Notifier *notify.Notifier
	Server   *server.Server
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	bondStore := postgres.NewBondStore(pgClient)
	walletStore := postgres.NewWalletStore(pgClient)
	submissionStore := postgres.NewSubmissionStore(pgClient)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	locks := redis.NewLockManager(redisClient)
	offerCache := redis.NewOfferCache(redisClient)
	rateLimiter := redis.NewRateLimiter(redisClient)

	// --- S3 submission archive (optional) ---
	var blobWriter domain.BlobWriter
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		blobWriter = s3blob.NewWriter(s3Client)
		retention := time.Duration(cfg.S3.RetentionDays) * 24 * time.Hour
		deps.Archiver = s3blob.NewArchiver(blobWriter, submissionStore, retention, logger)
	}

	// --- Notifications ---
	if cfg.Notify.WebhookURL != "" {
		deps.Notifier = notify.NewNotifier(
			[]notify.Sender{notify.NewWebhookSender(cfg.Notify.WebhookURL)},
			cfg.Notify.Events, logger)
	} else {
		deps.Notifier = notify.Noop(logger)
	}

	// --- Ledger access ---
	dial := ledger.NewDialer(cfg.Ledger.Endpoint, cfg.Ledger.NetworkID, logger)
	faucet := ledger.NewFaucetClient(cfg.Ledger.FaucetURL, logger)

	issuerSeed, err := crypto.LoadSeed(crypto.SeedConfig{
		RawSeed:           cfg.Issuer.Seed,
		EncryptedSeedPath: cfg.Issuer.EncryptedSeedPath,
		SeedPassword:      cfg.Issuer.SeedPassword,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: issuer seed: %w", err)
	}
	issuerSigner, err := crypto.NewSigner(issuerSeed, cfg.Issuer.Address)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: issuer signer: %w", err)
	}

	// --- Settlement engine ---
	lockTTL := time.Duration(cfg.Engine.LockTTLSeconds) * time.Second
	pipeline := engine.NewPipeline(locks, submissionStore,
		cfg.Engine.ExpiryWindow, cfg.Engine.MaxAttempts, lockTTL, logger)
	reserve := engine.NewReserveGuard(faucet,
		decimal.NewFromFloat(cfg.Engine.SafetyFloor), logger)
	trust := engine.NewTrustLineSetup(pipeline,
		decimal.NewFromFloat(cfg.Engine.TrustLineLimit), logger)
	settle := engine.NewSettlementFlow(pipeline,
		decimal.NewFromFloat(cfg.Engine.SettleTolerance), deps.Notifier, logger)

	pfmu := domain.AssetAmount{
		Currency: cfg.Assets.PFMUCurrency,
		Issuer:   cfg.Assets.PFMUIssuer,
	}
	conversionRate := decimal.NewFromFloat(cfg.Assets.ConversionRate)
	bookTTL := time.Duration(cfg.Redis.BookTTLSeconds) * time.Second

	deps.Bonds = engine.NewBondService(bondStore, locks, deps.Notifier,
		conversionRate, cfg.Engine.MaturityMonths, lockTTL, logger)
	deps.Wallets = engine.NewWalletService(walletStore, faucet, dial, trust,
		pfmu, cfg.Issuer.SeedPassword, logger)
	deps.Offers = engine.NewOfferService(dial, offerCache, pfmu,
		cfg.Assets.USDIssuer, cfg.Ledger.BookLimit, bookTTL, logger)
	deps.Purchases = engine.NewPurchaseService(dial, reserve, trust, settle,
		deps.Wallets, pfmu, conversionRate, cfg.Ledger.BookLimit, logger)
	deps.Flows = engine.NewBondLedgerFlows(dial, reserve, pipeline, deps.Bonds,
		issuerSigner, cfg.Issuer.StakingAddress, pfmu,
		cfg.Assets.DerivativeCurrency, logger)

	// --- HTTP server ---
	handlers := server.Handlers{
		Health: handler.NewHealthHandler(map[string]handler.Pinger{
			"postgres": pgClient.Pool(),
			"redis":    redisClient,
		}, logger),
		Bonds:     handler.NewBondHandler(deps.Bonds, deps.Flows, deps.Wallets, logger),
		Offers:    handler.NewOfferHandler(deps.Offers, logger),
		Purchases: handler.NewPurchaseHandler(deps.Purchases, logger),
		Wallets:   handler.NewWalletHandler(deps.Wallets, logger),
	}
	deps.Server = server.NewServer(server.Config{
		Port:        cfg.Server.Port,
		CORSOrigins: cfg.Server.CORSOrigins,
		APIKey:      cfg.Server.APIKey,
		RateLimit:   cfg.Server.RateLimit,
	}, handlers, rateLimiter, logger)

	return deps, cleanup, nil
}
