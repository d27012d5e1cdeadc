package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(NewConfig),
)

// Config holds all application configuration
type Config struct {
	// Server settings
	ServerPort    int    `env:"SERVER_PORT" envDefault:"3004"`
	ServerAddress string `env:"SERVER_ADDRESS" envDefault:"0.0.0.0"`
	Environment   string `env:"ENVIRONMENT" envDefault:"local"`
	Debug         bool   `env:"DEBUG" envDefault:"false"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	// WorkerID identifies this process as an event source tag
	WorkerID string `env:"WORKER_ID" envDefault:"prospector-1"`

	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Mining    MiningConfig
	Import    ImportConfig
	Cost      CostConfig
	Circuit   CircuitConfig
	Canonical CanonicalConfig

	// Server timeouts
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"600s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"600s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host         string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port         int           `env:"POSTGRES_PORT" envDefault:"5432"`
	User         string        `env:"POSTGRES_USER" envDefault:"prospector"`
	Password     string        `env:"POSTGRES_PASSWORD" envDefault:""`
	Database     string        `env:"POSTGRES_DB" envDefault:"prospector"`
	SSLMode      string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	MaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	MaxIdleTime  time.Duration `env:"DB_MAX_IDLE_TIME" envDefault:"5m"`
	QueryDebug   bool          `env:"DB_QUERY_DEBUG" envDefault:"false"`
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// RedisConfig holds the TTL store connection settings
type RedisConfig struct {
	// URL is the full redis connection string; when set it wins over Host/Port
	URL      string `env:"REDIS_URL" envDefault:""`
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     int    `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	// Disabled turns the TTL store off entirely; aggregation then falls back
	// to direct persistence and Flow 2 never runs
	Disabled bool `env:"REDIS_DISABLED" envDefault:"false"`
}

// Addr returns the host:port address for the redis client
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// AuthConfig holds the authentication boundary settings
type AuthConfig struct {
	// JWTSecret signs and verifies tenant bearer tokens (HS256)
	JWTSecret string `env:"AUTH_JWT_SECRET" envDefault:""`

	// ManualMinerToken is the shared token accepted on the results-ingest route
	ManualMinerToken string `env:"MANUAL_MINER_TOKEN" envDefault:""`
}

// MiningConfig holds extraction and orchestration knobs
type MiningConfig struct {
	ScoutTimeout     time.Duration `env:"MINING_SCOUT_TIMEOUT" envDefault:"15s"`
	TableTimeout     time.Duration `env:"MINING_TABLE_TIMEOUT" envDefault:"60s"`
	AITimeout        time.Duration `env:"MINING_AI_TIMEOUT" envDefault:"120s"`
	CrawlTimeout     time.Duration `env:"MINING_CRAWL_TIMEOUT" envDefault:"300s"`
	JobTimeout       time.Duration `env:"MINING_JOB_TIMEOUT" envDefault:"5m"`
	PageDelay        time.Duration `env:"MINING_PAGE_DELAY" envDefault:"500ms"`
	MaxPages         int           `env:"MINING_MAX_PAGES" envDefault:"20"`
	DefaultTotal     int           `env:"MINING_DEFAULT_TOTAL_PAGES" envDefault:"5"`
	TempTTL          time.Duration `env:"MINING_TEMP_TTL" envDefault:"10m"`
	HTMLCacheTTL     time.Duration `env:"MINING_HTML_CACHE_TTL" envDefault:"1h"`
	Flow2Disabled    bool          `env:"MINING_FLOW2_DISABLED" envDefault:"false"`
	Flow2Concurrency int           `env:"MINING_FLOW2_CONCURRENCY" envDefault:"2"`
	Flow2MaxWebsites int           `env:"MINING_FLOW2_MAX_WEBSITES" envDefault:"50"`
	Flow2BatchConc   int           `env:"MINING_FLOW2_BATCH_CONCURRENCY" envDefault:"3"`
	EnrichThreshold  float64       `env:"MINING_ENRICH_THRESHOLD" envDefault:"0.20"`
	Flow2Grace       time.Duration `env:"MINING_FLOW2_GRACE" envDefault:"1m"`
}

// ImportConfig holds background import pipeline knobs
type ImportConfig struct {
	BatchSize      int           `env:"IMPORT_BATCH_SIZE" envDefault:"200"`
	StaleThreshold time.Duration `env:"IMPORT_STALE_THRESHOLD" envDefault:"5m"`
	MaxErrors      int           `env:"IMPORT_MAX_ERRORS" envDefault:"10"`
}

// CostConfig holds per-operation unit costs and spending limits
type CostConfig struct {
	AICost        float64 `env:"COST_AI" envDefault:"0.01"`
	BrowserCost   float64 `env:"COST_BROWSER_PAGE" envDefault:"0.001"`
	HTTPCost      float64 `env:"COST_HTTP" envDefault:"0.0001"`
	DeepCrawlCost float64 `env:"COST_DEEP_CRAWL_PAGE" envDefault:"0.005"`

	URLLimit     float64 `env:"COST_URL_LIMIT" envDefault:"0.10"`
	JobLimit     float64 `env:"COST_JOB_LIMIT" envDefault:"2.00"`
	MonthlyLimit float64 `env:"COST_TENANT_MONTHLY_LIMIT" envDefault:"50.00"`
	MaxRetries   int     `env:"COST_MAX_RETRIES_PER_URL" envDefault:"3"`
}

// CircuitConfig holds circuit breaker tuning
type CircuitConfig struct {
	FailureThreshold int           `env:"CIRCUIT_FAILURE_THRESHOLD" envDefault:"5"`
	SuccessThreshold int           `env:"CIRCUIT_SUCCESS_THRESHOLD" envDefault:"2"`
	RecoveryTimeout  time.Duration `env:"CIRCUIT_RECOVERY_TIMEOUT" envDefault:"30m"`
	InactiveCleanup  time.Duration `env:"CIRCUIT_INACTIVE_CLEANUP" envDefault:"24h"`
}

// CanonicalConfig controls the persons/affiliations aggregation step
type CanonicalConfig struct {
	// Disabled turns the canonical aggregation trigger off entirely
	Disabled bool `env:"CANONICAL_AGGREGATION_DISABLED" envDefault:"false"`

	// ShadowMode logs what would be written without persisting
	ShadowMode bool `env:"CANONICAL_SHADOW_MODE" envDefault:"false"`

	// VerboseShadow logs each shadow record individually
	VerboseShadow bool `env:"CANONICAL_SHADOW_VERBOSE" envDefault:"false"`
}

// NewConfig loads configuration from environment variables
func NewConfig(log *slog.Logger) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	log.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.ServerPort),
		slog.String("db_host", cfg.Database.Host),
		slog.String("worker_id", cfg.WorkerID),
		slog.Bool("flow2_disabled", cfg.Mining.Flow2Disabled),
	)

	return cfg, nil
}
