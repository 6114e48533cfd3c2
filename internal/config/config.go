package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

const (
	StorageDriverFile     = "file"
	StorageDriverPostgres = "postgres"
	StorageDriverSQLite   = "sqlite"
)

// DefaultCatalogCacheSizeMB keeps a catalog of a few hundred workouts under
// freecache's 1/1024 of the cache size entry limit.
const DefaultCatalogCacheSizeMB = 4

type Config struct {
	Environment string `toml:"environment" env:"GYMTRACKER_ENVIRONMENT"`
	Host        string `toml:"host" env:"GYMTRACKER_HOST"`
	Port        int    `toml:"port" env:"GYMTRACKER_PORT"`

	// logging
	LogLevel      string `toml:"log_level" env:"GYMTRACKER_LOG_LEVEL"`
	LogsPath      string `toml:"logs_path" env:"GYMTRACKER_LOGS_PATH"`
	LogToStdout   bool   `toml:"log_to_stdout" env:"GYMTRACKER_LOG_TO_STDOUT"`
	LogFormatJSON bool   `toml:"log_format_json" env:"GYMTRACKER_LOG_FORMAT_JSON"`
	SentryEnabled bool   `toml:"sentry_enabled" env:"GYMTRACKER_SENTRY_ENABLED"`

	// storage
	StorageDriver   string `toml:"storage_driver" env:"GYMTRACKER_STORAGE_DRIVER"`
	DataDir         string `toml:"data_dir" env:"GYMTRACKER_DATA_DIR"`
	CatalogPath     string `toml:"catalog_path" env:"GYMTRACKER_CATALOG_PATH"`
	SQLitePath      string `toml:"sqlite_path" env:"GYMTRACKER_SQLITE_PATH"`
	PostgresHost    string `toml:"postgres_host" env:"GYMTRACKER_POSTGRES_HOST"`
	PostgresPort    string `toml:"postgres_port" env:"GYMTRACKER_POSTGRES_PORT"`
	PostgresDBName  string `toml:"postgres_db_name" env:"GYMTRACKER_POSTGRES_DB_NAME"`
	PostgresUser    string `toml:"postgres_user" env:"GYMTRACKER_POSTGRES_USER"`
	PostgresMaxConn int32  `toml:"postgres_max_conn" env:"GYMTRACKER_POSTGRES_MAX_CONN"`

	// SeedCatalog loads the catalog file into the database store on start.
	SeedCatalog     bool `toml:"seed_catalog" env:"GYMTRACKER_SEED_CATALOG"`
	PasswordHashing bool `toml:"password_hashing" env:"GYMTRACKER_PASSWORD_HASHING"`

	// catalog cache
	CatalogCacheSizeMB     int `toml:"catalog_cache_size_mb" env:"GYMTRACKER_CATALOG_CACHE_SIZE_MB"`
	CatalogCacheTTLSeconds int `toml:"catalog_cache_ttl_seconds" env:"GYMTRACKER_CATALOG_CACHE_TTL_SECONDS"`

	// redis (sessions, rate limiting)
	RedisHost                   string `toml:"redis_host" env:"GYMTRACKER_REDIS_HOST"`
	RedisPort                   string `toml:"redis_port" env:"GYMTRACKER_REDIS_PORT"`
	SessionTTLHours             int    `toml:"session_ttl_hours" env:"GYMTRACKER_SESSION_TTL_HOURS"`
	LoginRateLimitAllowedPerMin int    `toml:"login_rate_limit_allowed_per_min" env:"GYMTRACKER_LOGIN_RATE_LIMIT_PER_MIN"`

	// http
	AllowedOrigins []string `toml:"allowed_origins" env:"GYMTRACKER_ALLOWED_ORIGINS" envSeparator:","`
	MCPEnabled     bool     `toml:"mcp_enabled" env:"GYMTRACKER_MCP_ENABLED"`

	// metrics
	PrometheusMetricsHost string `toml:"prometheus_metrics_host" env:"GYMTRACKER_METRICS_HOST"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port" env:"GYMTRACKER_METRICS_PORT"`
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	var cfg *Config
	switch strings.ToLower(env) {
	case "dev", "development":
		cfg = t.Development
	case "prod", "production":
		cfg = t.Production
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
	if cfg == nil {
		return nil, fmt.Errorf("config for env [%s] not set", env)
	}
	return cfg, nil
}

// Load reads the TOML config for the given environment, then applies
// environment variable overrides and fills in defaults.
func Load(env, path string) (*Config, error) {
	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode toml config [%s]: %w", path, err)
	}

	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}
	if cfg.Environment == "" {
		cfg.Environment = strings.ToLower(env)
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides the config fields for which an environment variable is set.
func ApplyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Default returns the config used when no config file is given,
// e.g. by the command line tool working on the local data files.
func Default() *Config {
	cfg := &Config{Environment: "development"}
	cfg.setDefaults()
	return cfg
}

func (c *Config) setDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 9000
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.StorageDriver == "" {
		c.StorageDriver = StorageDriverFile
	}
	if c.DataDir == "" {
		c.DataDir = "."
	}
	if c.PostgresUser == "" {
		c.PostgresUser = "postgres"
	}
	if c.SQLitePath == "" {
		c.SQLitePath = "gymtracker.db"
	}
	if c.CatalogCacheSizeMB == 0 {
		c.CatalogCacheSizeMB = DefaultCatalogCacheSizeMB
	}
	if c.CatalogCacheTTLSeconds == 0 {
		c.CatalogCacheTTLSeconds = 300
	}
	if c.RedisHost == "" {
		c.RedisHost = "localhost"
	}
	if c.RedisPort == "" {
		c.RedisPort = "6379"
	}
	if c.SessionTTLHours == 0 {
		c.SessionTTLHours = 24 * 7
	}
	if c.LoginRateLimitAllowedPerMin == 0 {
		c.LoginRateLimitAllowedPerMin = 15
	}
	if c.PrometheusMetricsHost == "" {
		c.PrometheusMetricsHost = "localhost"
	}
	if c.PrometheusMetricsPort == "" {
		c.PrometheusMetricsPort = "2112"
	}
}

func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverFile, StorageDriverSQLite:
	case StorageDriverPostgres:
		if c.PostgresHost == "" || c.PostgresPort == "" || c.PostgresDBName == "" {
			return fmt.Errorf("postgres storage needs host, port and db name")
		}
	default:
		return fmt.Errorf("unknown storage driver: %s", c.StorageDriver)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	return nil
}
