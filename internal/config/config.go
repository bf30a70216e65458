// Package config defines the vmarket configuration and its validation.
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/robfig/cron/v3"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by environment variables.
type Config struct {
	Wallet    WalletConfig          `toml:"wallet"`
	Rooms     map[string]RoomConfig `toml:"rooms"`
	Sports    SportsConfig          `toml:"sports"`
	Timezone  string                `toml:"timezone"`
	Database  DatabaseConfig        `toml:"database"`
	Redis     RedisConfig           `toml:"redis"`
	S3        S3Config              `toml:"s3"`
	Server    ServerConfig          `toml:"server"`
	Scheduler SchedulerConfig       `toml:"scheduler"`
	Notify    NotifyConfig          `toml:"notify"`
	Chain     ChainConfig           `toml:"chain"`
	Mode      string                `toml:"mode"`
	LogLevel  string                `toml:"log_level"`
}

// WalletConfig holds the operator key used to sign contract transactions.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// RoomConfig locates the market contract for one room.
type RoomConfig struct {
	Network         string `toml:"network"`
	ChainID         int    `toml:"chain_id"`
	RPCURL          string `toml:"rpc_url"`
	ContractAddress string `toml:"contract_address"`
	ABIPath         string `toml:"abi_path"`
}

// SportsConfig holds the sports data providers.
type SportsConfig struct {
	// Leagues lists the leagues the scheduler and API accept.
	Leagues []string `toml:"leagues"`
	// RequestsPerMinute caps calls per provider; 0 disables throttling.
	RequestsPerMinute int              `toml:"requests_per_minute"`
	NBA               RapidAPIConfig   `toml:"nba"`
	NFL               RapidAPIConfig   `toml:"nfl"`
	SportMonks        SportMonksConfig `toml:"sportmonks"`
}

// RapidAPIConfig holds one RapidAPI-hosted provider.
type RapidAPIConfig struct {
	BaseURL string `toml:"base_url"`
	Host    string `toml:"host"`
	APIKey  string `toml:"api_key"`
}

// SportMonksConfig holds the football provider used for EPL and CL.
type SportMonksConfig struct {
	BaseURL     string `toml:"base_url"`
	APIToken    string `toml:"api_token"`
	EPLLeagueID int    `toml:"epl_league_id"`
	CLLeagueID  int    `toml:"cl_league_id"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr          string   `toml:"addr"`
	Password      string   `toml:"password"`
	DB            int      `toml:"db"`
	PoolSize      int      `toml:"pool_size"`
	MaxRetries    int      `toml:"max_retries"`
	TLSEnabled    bool     `toml:"tls_enabled"`
	MarketInfoTTL duration `toml:"market_info_ttl"`
	LockTTL       duration `toml:"lock_ttl"`
}

// S3Config holds S3-compatible object storage parameters for exports.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port               int      `toml:"port"`
	CORSOrigins        []string `toml:"cors_origins"`
	RateLimitPerMinute int      `toml:"rate_limit_per_minute"`
	// DefaultRoom is used when a request names no room.
	DefaultRoom string `toml:"default_room"`
}

// SchedulerConfig holds cron specs (with a leading seconds field) for the
// recurring jobs.
type SchedulerConfig struct {
	CreateCron  string   `toml:"create_cron"`
	ResolveCron string   `toml:"resolve_cron"`
	ClaimCron   string   `toml:"claim_cron"`
	Rooms       []string `toml:"rooms"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// ChainConfig tunes transaction submission.
type ChainConfig struct {
	ReceiptTimeout duration `toml:"receipt_timeout"`
	PollInterval   duration `toml:"poll_interval"`
	GasMultiplier  float64  `toml:"gas_multiplier"`
}

// duration wraps time.Duration so TOML strings like "5m" decode.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Rooms: map[string]RoomConfig{
			"vesta": {Network: "sepolia", ChainID: 11155111},
			"usdc":  {Network: "sepolia", ChainID: 11155111},
		},
		Sports: SportsConfig{
			Leagues:           []string{"NBA", "NFL", "EPL", "CL"},
			RequestsPerMinute: 30,
			NBA: RapidAPIConfig{
				BaseURL: "https://api-nba-v1.p.rapidapi.com",
				Host:    "api-nba-v1.p.rapidapi.com",
			},
			NFL: RapidAPIConfig{
				BaseURL: "https://api-american-football.p.rapidapi.com",
				Host:    "api-american-football.p.rapidapi.com",
			},
			SportMonks: SportMonksConfig{
				BaseURL:     "https://api.sportmonks.com/v3/football",
				EPLLeagueID: 8,
				CLLeagueID:  2,
			},
		},
		Timezone: "America/New_York",
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "vmarket",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:          "localhost:6379",
			PoolSize:      10,
			MaxRetries:    3,
			MarketInfoTTL: duration{30 * time.Second},
			LockTTL:       duration{5 * time.Minute},
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "vmarket-data",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Port:               8080,
			CORSOrigins:        []string{"*"},
			RateLimitPerMinute: 120,
			DefaultRoom:        "vesta",
		},
		Scheduler: SchedulerConfig{
			CreateCron:  "0 0 6 * * *",
			ResolveCron: "0 */15 * * * *",
			ClaimCron:   "",
			Rooms:       []string{"vesta", "usdc"},
		},
		Notify: NotifyConfig{
			Events: []string{"create_run", "resolve_run", "error"},
		},
		Chain: ChainConfig{
			ReceiptTimeout: duration{2 * time.Minute},
			PollInterval:   duration{2 * time.Second},
			GasMultiplier:  1.2,
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"server":    true,
	"scheduler": true,
	"full":      true,
	"fetch":     true,
	"create":    true,
	"resolve":   true,
	"claim":     true,
}

// signingModes submit transactions and therefore need a wallet.
var signingModes = map[string]bool{
	"scheduler": true,
	"full":      true,
	"create":    true,
	"resolve":   true,
	"claim":     true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLeagues = map[string]bool{"NBA": true, "NFL": true, "EPL": true, "CL": true}

// cronParser accepts specs with a leading seconds field.
var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Location returns the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// RoomNames returns configured room names in order.
func (c *Config) RoomNames() []string {
	out := make([]string, 0, len(c.Rooms))
	for name := range c.Rooms {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, scheduler, full, fetch, create, resolve, claim)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Sprintf("timezone: %v", err))
	}

	// Wallet
	if signingModes[mode] && c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
		errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode "+c.Mode)
	}
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}

	// Rooms
	if len(c.Rooms) == 0 {
		errs = append(errs, "rooms: at least one room must be configured")
	}
	for _, name := range c.RoomNames() {
		r := c.Rooms[name]
		if r.RPCURL == "" {
			errs = append(errs, fmt.Sprintf("rooms.%s: rpc_url must not be empty", name))
		}
		if !common.IsHexAddress(r.ContractAddress) {
			errs = append(errs, fmt.Sprintf("rooms.%s: contract_address %q is not a hex address", name, r.ContractAddress))
		}
	}

	// Sports
	for _, l := range c.Sports.Leagues {
		l = strings.ToUpper(l)
		if !validLeagues[l] {
			errs = append(errs, fmt.Sprintf("sports: unknown league %q (valid: NBA, NFL, EPL, CL)", l))
			continue
		}
		switch l {
		case "NBA":
			if c.Sports.NBA.APIKey == "" {
				errs = append(errs, "sports.nba: api_key must be set when NBA is enabled")
			}
		case "NFL":
			if c.Sports.NFL.APIKey == "" {
				errs = append(errs, "sports.nfl: api_key must be set when NFL is enabled")
			}
		default:
			if c.Sports.SportMonks.APIToken == "" {
				errs = append(errs, fmt.Sprintf("sports.sportmonks: api_token must be set when %s is enabled", l))
			}
		}
	}
	if c.Sports.RequestsPerMinute < 0 {
		errs = append(errs, "sports: requests_per_minute must be >= 0")
	}

	// Database
	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 || c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must be between 0 and pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}
	if c.Redis.LockTTL.Duration <= 0 {
		errs = append(errs, "redis: lock_ttl must be > 0")
	}

	// S3
	if c.S3.Enabled && c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty when enabled")
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if _, ok := c.Rooms[c.Server.DefaultRoom]; !ok {
		errs = append(errs, fmt.Sprintf("server: default_room %q is not a configured room", c.Server.DefaultRoom))
	}

	// Scheduler
	for field, spec := range map[string]string{
		"create_cron":  c.Scheduler.CreateCron,
		"resolve_cron": c.Scheduler.ResolveCron,
		"claim_cron":   c.Scheduler.ClaimCron,
	} {
		if spec == "" {
			continue
		}
		if _, err := cronParser.Parse(spec); err != nil {
			errs = append(errs, fmt.Sprintf("scheduler: %s %q: %v", field, spec, err))
		}
	}
	for _, room := range c.Scheduler.Rooms {
		if _, ok := c.Rooms[room]; !ok {
			errs = append(errs, fmt.Sprintf("scheduler: room %q is not configured", room))
		}
	}

	// Chain
	if c.Chain.GasMultiplier < 1 {
		errs = append(errs, "chain: gas_multiplier must be >= 1")
	}
	if c.Chain.ReceiptTimeout.Duration <= 0 {
		errs = append(errs, "chain: receipt_timeout must be > 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
