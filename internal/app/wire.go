package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	s3blob "github.com/vmarket/vmarket/internal/blob/s3"
	"github.com/vmarket/vmarket/internal/cache/redis"
	"github.com/vmarket/vmarket/internal/chain"
	"github.com/vmarket/vmarket/internal/config"
	"github.com/vmarket/vmarket/internal/crypto"
	"github.com/vmarket/vmarket/internal/domain"
	"github.com/vmarket/vmarket/internal/notify"
	"github.com/vmarket/vmarket/internal/platform/sports"
	"github.com/vmarket/vmarket/internal/store/postgres"
)

// Dependencies bundles the concrete infrastructure the modes build services
// from. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	// Stores
	GameStore   domain.GameStore
	MarketStore domain.MarketStore
	RuleStore   domain.RuleStore
	AuditStore  domain.AuditStore

	// Caches
	RateLimiter     domain.RateLimiter
	LockManager     domain.LockManager
	MarketInfoCache domain.MarketInfoCache
	EventBus        *redis.EventBus

	// Chain
	Contracts *chain.Registry
	// Operator is the signing account, empty for a read-only deployment.
	Operator string

	// Sports data
	Providers *sports.Registry

	// Exporter is nil when S3 is disabled.
	Exporter *s3blob.Exporter

	// Health checks by dependency name.
	Pingers map[string]pinger

	// Notifications
	Notifier *notify.Notifier
}

type pinger interface {
	Ping(ctx context.Context) error
}

// s3Pinger adapts the bucket health check to the health endpoint.
type s3Pinger struct{ c *s3blob.Client }

func (p s3Pinger) Ping(ctx context.Context) error { return p.c.Health(ctx) }

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

	deps := &Dependencies{Pingers: make(map[string]pinger)}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)
	deps.Pingers["postgres"] = pgClient

	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.GameStore = postgres.NewGameStore(pool)
	deps.MarketStore = postgres.NewMarketStore(pool)
	deps.RuleStore = postgres.NewRuleStore(pool)
	deps.AuditStore = postgres.NewAuditStore(pool)

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
	deps.Pingers["redis"] = redisClient

	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.MarketInfoCache = redis.NewMarketInfoCache(redisClient, cfg.Redis.MarketInfoTTL.Duration)
	deps.EventBus = redis.NewEventBus(redisClient)

	// --- S3 exports (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Exporter = s3blob.NewExporter(s3blob.NewWriter(s3Client))
		deps.Pingers["s3"] = s3Pinger{c: s3Client}
	}

	// --- Signer (optional outside signing modes) ---
	var signer *crypto.Signer
	if cfg.Wallet.PrivateKey != "" || cfg.Wallet.EncryptedKeyPath != "" {
		keyHex, err := crypto.LoadKey(crypto.KeySource{
			RawHex:   cfg.Wallet.PrivateKey,
			FilePath: cfg.Wallet.EncryptedKeyPath,
			Password: cfg.Wallet.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: wallet: %w", err)
		}
		signer, err = crypto.NewSigner(keyHex)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: wallet: %w", err)
		}
		deps.Operator = signer.Address().Hex()
	} else {
		logger.WarnContext(ctx, "no wallet configured; contract transactions are disabled")
	}

	// --- Chain ---
	rooms := make([]chain.RoomConfig, 0, len(cfg.Rooms))
	for _, name := range cfg.RoomNames() {
		rc := cfg.Rooms[name]
		rooms = append(rooms, chain.RoomConfig{
			Room:            domain.Room(name),
			RPCURL:          rc.RPCURL,
			ContractAddress: rc.ContractAddress,
			ABIPath:         rc.ABIPath,
		})
	}
	registry, err := chain.Dial(ctx, rooms, signer, chain.TxOptions{
		ReceiptTimeout: cfg.Chain.ReceiptTimeout.Duration,
		PollInterval:   cfg.Chain.PollInterval.Duration,
		GasMultiplier:  cfg.Chain.GasMultiplier,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: chain: %w", err)
	}
	closers = append(closers, registry.Close)
	deps.Contracts = registry

	// --- Sports providers ---
	deps.Providers = newProviders(cfg, deps.RateLimiter, logger)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

// rateLimited is implemented by every sports client.
type rateLimited interface {
	domain.ScheduleProvider
	SetRateLimiter(l domain.RateLimiter, limit int, window time.Duration)
	SetLogger(l *slog.Logger)
}

// newProviders builds a client for each configured league.
func newProviders(cfg *config.Config, limiter domain.RateLimiter, logger *slog.Logger) *sports.Registry {
	var providers []domain.ScheduleProvider
	for _, name := range cfg.Sports.Leagues {
		var p rateLimited
		switch domain.League(strings.ToUpper(name)) {
		case domain.LeagueNBA:
			p = sports.NewNBAClient(cfg.Sports.NBA.BaseURL, cfg.Sports.NBA.Host, cfg.Sports.NBA.APIKey)
		case domain.LeagueNFL:
			p = sports.NewNFLClient(cfg.Sports.NFL.BaseURL, cfg.Sports.NFL.Host, cfg.Sports.NFL.APIKey)
		case domain.LeagueEPL:
			p = sports.NewSportMonksClient(cfg.Sports.SportMonks.BaseURL, cfg.Sports.SportMonks.APIToken,
				domain.LeagueEPL, cfg.Sports.SportMonks.EPLLeagueID)
		case domain.LeagueCL:
			p = sports.NewSportMonksClient(cfg.Sports.SportMonks.BaseURL, cfg.Sports.SportMonks.APIToken,
				domain.LeagueCL, cfg.Sports.SportMonks.CLLeagueID)
		default:
			continue
		}
		p.SetLogger(logger)
		if cfg.Sports.RequestsPerMinute > 0 {
			p.SetRateLimiter(limiter, cfg.Sports.RequestsPerMinute, time.Minute)
		}
		providers = append(providers, p)
	}
	return sports.NewRegistry(providers...)
}
