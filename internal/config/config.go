package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fernet/fernet-go"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the engine. It is loaded and validated
// once at startup; components receive it (or slices of it) by injection and
// never consult the environment afterwards.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Remote    RemoteConfig
	Account   AccountConfig
	Sources   SourcesConfig
	Sampler   SamplerConfig
	Triggers  TriggerConfig
	Jobs      JobsConfig
	Dispatch  DispatchConfig
	Admin     AdminConfig
	CORS      CORSConfig
	LogLevel  string
	LogPretty bool
}

// ServerConfig holds HTTP server configuration for the admin surface.
type ServerConfig struct {
	Port string
	Host string
	Addr string // Combined host:port for convenience
}

// DatabaseConfig holds local store configuration.
type DatabaseConfig struct {
	Path string
}

// RemoteConfig holds the best-effort remote snapshot store configuration.
// The remote store is optional; when disabled, snapshots are local-only.
type RemoteConfig struct {
	Enabled         bool
	Endpoint        string
	Region          string
	Bucket          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	Timeout         time.Duration
}

// AccountConfig identifies the tracked account and its well-known assets.
type AccountConfig struct {
	// TrackedAddress is the account whose transfers are classified as
	// deposits and withdrawals. Required.
	TrackedAddress string
	// PrimaryAssetID is the volatile asset the account is denominated
	// against (spot holding). Required.
	PrimaryAssetID string
	PrimarySymbol  string
	// StakedAssetID identifies the staked form of the primary asset. Staked
	// balances are priced at the primary asset price. Optional.
	StakedAssetID string
	// CashAssetID identifies the cash-equivalent asset; transfers of it are
	// valued 1:1. Optional.
	CashAssetID string
}

// SourcesConfig points at the external data services.
type SourcesConfig struct {
	PriceServiceURL  string
	WalletServiceURL string
}

// SamplerConfig controls the background snapshot loop.
type SamplerConfig struct {
	// BaseInterval is the normal time between samples.
	BaseInterval time.Duration
	// ThrottledInterval replaces BaseInterval while the price oracle reports
	// back-pressure. Reverts automatically when the signal clears.
	ThrottledInterval time.Duration
	// InitGrace suppresses trigger evaluation for this long after startup so
	// a cold start does not immediately fire alarms.
	InitGrace time.Duration
	// ShutdownGrace bounds how long shutdown waits for the final cycle.
	ShutdownGrace time.Duration
	// MirrorTimeout bounds the detached remote mirror of each snapshot. Load
	// sets it from the remote store timeout.
	MirrorTimeout time.Duration
	// CacheSize bounds the in-memory recent-snapshot window.
	CacheSize int
	// MaxPositionPrice and MaxPositionValue bound plausible position pricing;
	// values beyond them fall back to the last known good price or drop the
	// position from the snapshot.
	MaxPositionPrice float64
	MaxPositionValue float64
}

// TriggerConfig holds the threshold rules and their cooldowns.
type TriggerConfig struct {
	MinimumBalanceUSD    float64
	DrawdownLimitPct     float64 // negative, e.g. -30
	MaxLossPct           float64 // positive, e.g. 10
	ConsecutiveLossLimit int

	PositionSizeTrigger float64 // fraction of total value, e.g. 0.15
	GainMultipleTrigger float64 // unrealized multiple, e.g. 3.0

	DustThresholdUSD   float64
	PrimaryMinPct      float64
	PrimaryMaxPct      float64
	CashMinPct         float64
	CashEmergencyPct   float64
	RebalanceTolerance float64 // fraction of the cash increase, e.g. 0.8

	RiskCooldown        time.Duration
	AnalysisCooldown    time.Duration // per asset
	MaintenanceCooldown time.Duration
}

// JobsConfig holds cron schedules for the maintenance jobs.
type JobsConfig struct {
	RemoteSyncSchedule string
	CleanupSchedule    string
	SnapshotRetention  time.Duration
}

// DispatchConfig points alerts at the external executor. When ExecutorURL
// is empty, alerts are logged and acknowledged without leaving the process.
type DispatchConfig struct {
	ExecutorURL string
	Timeout     time.Duration
}

// AdminConfig secures the mutating admin endpoints. When TokenKey is empty
// authentication is disabled (development mode).
type AdminConfig struct {
	TokenKey string
	TokenTTL time.Duration
}

// CORSConfig holds CORS-specific configuration.
type CORSConfig struct {
	AllowedOrigins []string
}

// Load reads configuration from environment variables and .env file, then
// validates it. Components must not re-read the environment after this.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "5080"),
			Host: getEnv("SERVER_HOST", "localhost"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/watchtower.db"),
		},
		Remote: RemoteConfig{
			Enabled:         getEnvBool("REMOTE_STORE_ENABLED", false),
			Endpoint:        getEnv("REMOTE_STORE_ENDPOINT", ""),
			Region:          getEnv("REMOTE_STORE_REGION", "auto"),
			Bucket:          getEnv("REMOTE_STORE_BUCKET", ""),
			Prefix:          getEnv("REMOTE_STORE_PREFIX", "snapshots"),
			AccessKeyID:     getEnv("REMOTE_STORE_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("REMOTE_STORE_SECRET_ACCESS_KEY", ""),
			Timeout:         getEnvDuration("REMOTE_STORE_TIMEOUT", 5*time.Second),
		},
		Account: AccountConfig{
			TrackedAddress: getEnv("TRACKED_ADDRESS", ""),
			PrimaryAssetID: getEnv("PRIMARY_ASSET_ID", ""),
			PrimarySymbol:  getEnv("PRIMARY_ASSET_SYMBOL", "SOL"),
			StakedAssetID:  getEnv("STAKED_ASSET_ID", ""),
			CashAssetID:    getEnv("CASH_ASSET_ID", ""),
		},
		Sources: SourcesConfig{
			PriceServiceURL:  getEnv("PRICE_SERVICE_URL", "http://localhost:5081"),
			WalletServiceURL: getEnv("WALLET_SERVICE_URL", "http://localhost:5082"),
		},
		Sampler: SamplerConfig{
			BaseInterval:      getEnvDuration("SAMPLE_INTERVAL", 60*time.Second),
			ThrottledInterval: getEnvDuration("SAMPLE_INTERVAL_THROTTLED", 300*time.Second),
			InitGrace:         getEnvDuration("TRIGGER_INIT_GRACE", 2*time.Minute),
			ShutdownGrace:     getEnvDuration("SHUTDOWN_GRACE", 10*time.Second),
			CacheSize:         getEnvInt("SNAPSHOT_CACHE_SIZE", 1440),
			MaxPositionPrice:  getEnvFloat("MAX_POSITION_PRICE", 100),
			MaxPositionValue:  getEnvFloat("MAX_POSITION_VALUE", 1_000_000),
		},
		Triggers: TriggerConfig{
			MinimumBalanceUSD:    getEnvFloat("MINIMUM_BALANCE_USD", 50),
			DrawdownLimitPct:     getEnvFloat("DRAWDOWN_LIMIT_PERCENT", -30),
			MaxLossPct:           getEnvFloat("MAX_LOSS_PERCENT", 10),
			ConsecutiveLossLimit: getEnvInt("CONSECUTIVE_LOSS_LIMIT", 6),
			PositionSizeTrigger:  getEnvFloat("POSITION_SIZE_TRIGGER", 0.15),
			GainMultipleTrigger:  getEnvFloat("GAIN_MULTIPLE_TRIGGER", 3.0),
			DustThresholdUSD:     getEnvFloat("DUST_THRESHOLD_USD", 1.0),
			PrimaryMinPct:        getEnvFloat("PRIMARY_MINIMUM_PERCENT", 0.10),
			PrimaryMaxPct:        getEnvFloat("PRIMARY_MAXIMUM_PERCENT", 0.20),
			CashMinPct:           getEnvFloat("CASH_MINIMUM_PERCENT", 0.20),
			CashEmergencyPct:     getEnvFloat("CASH_EMERGENCY_PERCENT", 0.05),
			RebalanceTolerance:   getEnvFloat("REBALANCE_TOLERANCE", 0.8),
			RiskCooldown:         getEnvDuration("RISK_COOLDOWN", 5*time.Minute),
			AnalysisCooldown:     getEnvDuration("ANALYSIS_COOLDOWN", 15*time.Minute),
			MaintenanceCooldown:  getEnvDuration("MAINTENANCE_COOLDOWN", 10*time.Minute),
		},
		Jobs: JobsConfig{
			RemoteSyncSchedule: getEnv("REMOTE_SYNC_SCHEDULE", "@every 5m"),
			CleanupSchedule:    getEnv("CLEANUP_SCHEDULE", "@daily"),
			SnapshotRetention:  getEnvDuration("SNAPSHOT_RETENTION", 30*24*time.Hour),
		},
		Dispatch: DispatchConfig{
			ExecutorURL: getEnv("EXECUTOR_URL", ""),
			Timeout:     getEnvDuration("EXECUTOR_TIMEOUT", 2*time.Minute),
		},
		Admin: AdminConfig{
			TokenKey: getEnv("ADMIN_TOKEN_KEY", ""),
			TokenTTL: getEnvDuration("ADMIN_TOKEN_TTL", time.Hour),
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{
				"http://localhost:3000",
				"http://localhost",
			},
		},
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnvBool("LOG_PRETTY", true),
	}

	// Combine host and port
	config.Server.Addr = fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port)

	// The mirror upload shares the remote store's time budget.
	config.Sampler.MirrorTimeout = config.Remote.Timeout

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate enforces required fields and sane ranges. It is called by Load
// and directly by tests that build configs by hand.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	if c.Account.TrackedAddress == "" {
		return fmt.Errorf("TRACKED_ADDRESS is required")
	}
	if c.Account.PrimaryAssetID == "" {
		return fmt.Errorf("PRIMARY_ASSET_ID is required")
	}
	if c.Sampler.BaseInterval <= 0 {
		return fmt.Errorf("SAMPLE_INTERVAL must be positive")
	}
	if c.Sampler.ThrottledInterval < c.Sampler.BaseInterval {
		return fmt.Errorf("SAMPLE_INTERVAL_THROTTLED must not be shorter than SAMPLE_INTERVAL")
	}
	if c.Sampler.CacheSize <= 0 {
		return fmt.Errorf("SNAPSHOT_CACHE_SIZE must be positive")
	}
	if c.Triggers.DrawdownLimitPct >= 0 {
		return fmt.Errorf("DRAWDOWN_LIMIT_PERCENT must be negative")
	}
	if c.Triggers.MaxLossPct <= 0 {
		return fmt.Errorf("MAX_LOSS_PERCENT must be positive")
	}
	if c.Triggers.RebalanceTolerance <= 0 || c.Triggers.RebalanceTolerance > 1 {
		return fmt.Errorf("REBALANCE_TOLERANCE must be in (0, 1]")
	}
	if c.Triggers.PrimaryMinPct > c.Triggers.PrimaryMaxPct {
		return fmt.Errorf("PRIMARY_MINIMUM_PERCENT must not exceed PRIMARY_MAXIMUM_PERCENT")
	}
	if c.Remote.Enabled {
		if c.Remote.Bucket == "" {
			return fmt.Errorf("REMOTE_STORE_BUCKET is required when the remote store is enabled")
		}
		if c.Remote.Timeout <= 0 {
			return fmt.Errorf("REMOTE_STORE_TIMEOUT must be positive")
		}
	}
	if c.Admin.TokenKey != "" {
		if _, err := fernet.DecodeKey(c.Admin.TokenKey); err != nil {
			return fmt.Errorf("ADMIN_TOKEN_KEY is not a valid fernet key: %w", err)
		}
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
