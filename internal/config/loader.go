package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults and applies environment overrides. An empty path skips
// the file. The returned Config has NOT been validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyLegacyEnv(&cfg)
	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyLegacyEnv honours the variable names used by the original deployment
// scripts. VMARKET_* variables are applied afterwards and win.
func applyLegacyEnv(cfg *Config) {
	setStr(&cfg.Wallet.PrivateKey, "PRIVATE_KEY")
	setStr(&cfg.Sports.NBA.APIKey, "RAPIDAPI_KEY")
	setStr(&cfg.Sports.NFL.APIKey, "RAPIDAPI_KEY")
	setStr(&cfg.Sports.SportMonks.APIToken, "SPORTMONKS_API_TOKEN")

	if v := os.Getenv("INFURA_URL"); v != "" {
		for name, r := range cfg.Rooms {
			if r.RPCURL == "" {
				r.RPCURL = v
				cfg.Rooms[name] = r
			}
		}
	}
	setRoomStr(cfg, "vesta", func(r *RoomConfig) *string { return &r.ContractAddress }, "VESTA_CONTRACT_ADDRESS")
	setRoomStr(cfg, "usdc", func(r *RoomConfig) *string { return &r.ContractAddress }, "USDC_CONTRACT_ADDRESS")
}

// applyEnvOverrides reads well-known VMARKET_* environment variables and
// overwrites the corresponding Config fields when a variable is set.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "VMARKET_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "VMARKET_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "VMARKET_WALLET_KEY_PASSWORD")

	// ── Rooms ──
	for _, name := range cfg.RoomNames() {
		prefix := "VMARKET_ROOMS_" + strings.ToUpper(name) + "_"
		setRoomStr(cfg, name, func(r *RoomConfig) *string { return &r.RPCURL }, prefix+"RPC_URL")
		setRoomStr(cfg, name, func(r *RoomConfig) *string { return &r.ContractAddress }, prefix+"CONTRACT_ADDRESS")
		setRoomStr(cfg, name, func(r *RoomConfig) *string { return &r.ABIPath }, prefix+"ABI_PATH")
	}

	// ── Sports ──
	setStringSlice(&cfg.Sports.Leagues, "VMARKET_SPORTS_LEAGUES")
	setInt(&cfg.Sports.RequestsPerMinute, "VMARKET_SPORTS_REQUESTS_PER_MINUTE")
	setStr(&cfg.Sports.NBA.APIKey, "VMARKET_SPORTS_NBA_API_KEY")
	setStr(&cfg.Sports.NFL.APIKey, "VMARKET_SPORTS_NFL_API_KEY")
	setStr(&cfg.Sports.SportMonks.APIToken, "VMARKET_SPORTS_SPORTMONKS_API_TOKEN")
	setStr(&cfg.Timezone, "VMARKET_TIMEZONE")

	// ── Database ──
	setStr(&cfg.Database.DSN, "VMARKET_DATABASE_DSN")
	setStr(&cfg.Database.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Database.Host, "VMARKET_DATABASE_HOST")
	setInt(&cfg.Database.Port, "VMARKET_DATABASE_PORT")
	setStr(&cfg.Database.Database, "VMARKET_DATABASE_DATABASE")
	setStr(&cfg.Database.User, "VMARKET_DATABASE_USER")
	setStr(&cfg.Database.Password, "VMARKET_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "VMARKET_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "VMARKET_DATABASE_POOL_MAX_CONNS")
	setBool(&cfg.Database.RunMigrations, "VMARKET_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "VMARKET_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "VMARKET_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "VMARKET_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "VMARKET_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.MarketInfoTTL, "VMARKET_REDIS_MARKET_INFO_TTL")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "VMARKET_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "VMARKET_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "VMARKET_S3_REGION")
	setStr(&cfg.S3.Bucket, "VMARKET_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "VMARKET_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "VMARKET_S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "VMARKET_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setInt(&cfg.Server.Port, "VMARKET_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "VMARKET_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimitPerMinute, "VMARKET_SERVER_RATE_LIMIT_PER_MINUTE")
	setStr(&cfg.Server.DefaultRoom, "VMARKET_SERVER_DEFAULT_ROOM")

	// ── Scheduler ──
	setStr(&cfg.Scheduler.CreateCron, "VMARKET_SCHEDULER_CREATE_CRON")
	setStr(&cfg.Scheduler.ResolveCron, "VMARKET_SCHEDULER_RESOLVE_CRON")
	setStr(&cfg.Scheduler.ClaimCron, "VMARKET_SCHEDULER_CLAIM_CRON")
	setStringSlice(&cfg.Scheduler.Rooms, "VMARKET_SCHEDULER_ROOMS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "VMARKET_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "VMARKET_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "VMARKET_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "VMARKET_NOTIFY_EVENTS")

	// ── Chain ──
	setDuration(&cfg.Chain.ReceiptTimeout, "VMARKET_CHAIN_RECEIPT_TIMEOUT")
	setFloat64(&cfg.Chain.GasMultiplier, "VMARKET_CHAIN_GAS_MULTIPLIER")

	// ── Top-level ──
	setStr(&cfg.Mode, "VMARKET_MODE")
	setStr(&cfg.LogLevel, "VMARKET_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setRoomStr sets a field of a map-held RoomConfig, creating the room when
// the variable is set and the room is missing.
func setRoomStr(cfg *Config, room string, field func(*RoomConfig) *string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if cfg.Rooms == nil {
		cfg.Rooms = make(map[string]RoomConfig)
	}
	r := cfg.Rooms[room]
	*field(&r) = v
	cfg.Rooms[room] = r
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
