package config

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/guillermoBallester/obddash/internal/core/domain"
	"github.com/jackc/pgx/v5/pgconn"
)

type Config struct {
	// Database connection. DatabaseURL wins over the discrete DB_* fields.
	DatabaseURL string
	DBHost      string
	DBPort      int
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string

	QueryTimeout time.Duration // 0 means no per-query bound

	// Result cache and diagnostic log.
	CacheMaxEntries int
	CacheDefaultTTL time.Duration
	LogCapacity     int
	QueryCatalog    string // optional path to named query YAML

	// Logging.
	LogLevel slog.Level

	// Transport.
	Transport       string // "http" (default) or "stdio"
	HTTPAddr        string // listen address for HTTP transport (default ":8080")
	HTTPBearerToken string // required when transport=http

	// Connection pool.
	PoolMaxConns        int32         // default: 10
	PoolMinConns        int32         // default: 0
	PoolMaxConnLifetime time.Duration // default: 30m
	PoolAcquireTimeout  time.Duration // default: 0, wait in queue forever

	// Observability.
	OTelEnabled bool // enable OpenTelemetry tracing and metrics

	// CLI-only fields (not settable via env vars).
	AuditLog string // path to NDJSON audit log file
}

// Overrides holds CLI flag values that override environment variables.
// Pointer fields distinguish "not set" from zero values.
type Overrides struct {
	DatabaseURL     *string
	DBHost          *string
	DBPort          *int
	DBUser          *string
	DBName          *string
	DBSSLMode       *string
	LogLevel        *string
	QueryTimeout    *time.Duration
	QueryCatalog    *string
	Transport       *string
	HTTPAddr        *string
	HTTPBearerToken *string
	OTelEnabled     bool
	AuditLog        string

	// Cache overrides.
	CacheMaxEntries *int
	CacheDefaultTTL *time.Duration

	// Connection pool overrides.
	PoolMaxConns        *int32
	PoolMinConns        *int32
	PoolMaxConnLifetime *time.Duration
	PoolAcquireTimeout  *time.Duration
}

// Load builds a Config from environment variables, then applies CLI overrides,
// then validates the result.
func Load(overrides Overrides) (*Config, error) {
	cfg := defaults()

	if err := loadEnvVars(cfg); err != nil {
		return nil, err
	}
	if err := applyOverrides(cfg, overrides); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaults returns a Config populated with default values.
func defaults() *Config {
	return &Config{
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		DBPort:              5432,
		DBSSLMode:           "prefer",
		CacheMaxEntries:     domain.MaxCacheSize,
		CacheDefaultTTL:     domain.DefaultCacheTTL,
		LogCapacity:         domain.MaxLogs,
		Transport:           "http",
		HTTPAddr:            ":8080",
		PoolMaxConns:        domain.DefaultMaxConns,
		PoolMinConns:        0,
		PoolMaxConnLifetime: 30 * time.Minute,
	}
}

// loadEnvVars reads all supported environment variables into cfg.
func loadEnvVars(cfg *Config) error {
	cfg.DBHost = os.Getenv("DB_HOST")
	cfg.DBUser = os.Getenv("DB_USER")
	cfg.DBPassword = os.Getenv("DB_PASSWORD")
	cfg.DBName = os.Getenv("DB_NAME")
	if v := os.Getenv("DB_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 65535 {
			return fmt.Errorf("invalid DB_PORT value %q: must be a TCP port", v)
		}
		cfg.DBPort = n
	}
	if v := os.Getenv("DB_SSLMODE"); v != "" {
		cfg.DBSSLMode = v
	}

	if v := os.Getenv("QUERY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid QUERY_TIMEOUT value %q: %w", v, err)
		}
		cfg.QueryTimeout = d
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}

	cfg.QueryCatalog = os.Getenv("QUERY_CATALOG")

	if v := os.Getenv("TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	cfg.HTTPBearerToken = os.Getenv("HTTP_BEARER_TOKEN")

	if v := os.Getenv("OTEL_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid OTEL_ENABLED value %q: %w", v, err)
		}
		cfg.OTelEnabled = b
	}

	if err := loadCacheEnvVars(cfg); err != nil {
		return err
	}
	if err := loadPoolEnvVars(cfg); err != nil {
		return err
	}

	return nil
}

// loadCacheEnvVars reads result cache and diagnostic log sizing.
func loadCacheEnvVars(cfg *Config) error {
	if v := os.Getenv("CACHE_MAX_ENTRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid CACHE_MAX_ENTRIES value %q: must be a positive integer", v)
		}
		cfg.CacheMaxEntries = n
	}
	if v := os.Getenv("CACHE_DEFAULT_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid CACHE_DEFAULT_TTL value %q: must be a positive duration", v)
		}
		cfg.CacheDefaultTTL = d
	}
	if v := os.Getenv("LOG_CAPACITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid LOG_CAPACITY value %q: must be a positive integer", v)
		}
		cfg.LogCapacity = n
	}
	return nil
}

// loadPoolEnvVars reads connection pool environment variables.
func loadPoolEnvVars(cfg *Config) error {
	if v := os.Getenv("POOL_MAX_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid POOL_MAX_CONNS value %q: must be a positive integer", v)
		}
		cfg.PoolMaxConns = int32(n)
	}
	if v := os.Getenv("POOL_MIN_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid POOL_MIN_CONNS value %q: must be a non-negative integer", v)
		}
		cfg.PoolMinConns = int32(n)
	}
	if v := os.Getenv("POOL_MAX_CONN_LIFETIME"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid POOL_MAX_CONN_LIFETIME value %q: %w", v, err)
		}
		cfg.PoolMaxConnLifetime = d
	}
	if v := os.Getenv("POOL_ACQUIRE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return fmt.Errorf("invalid POOL_ACQUIRE_TIMEOUT value %q: must be a non-negative duration", v)
		}
		cfg.PoolAcquireTimeout = d
	}
	return nil
}

// applyOverrides applies CLI flag values on top of the env-loaded config.
func applyOverrides(cfg *Config, o Overrides) error {
	if o.DatabaseURL != nil {
		cfg.DatabaseURL = *o.DatabaseURL
	}
	if o.DBHost != nil {
		cfg.DBHost = *o.DBHost
	}
	if o.DBPort != nil {
		if *o.DBPort <= 0 || *o.DBPort > 65535 {
			return fmt.Errorf("invalid --db-port value: must be a TCP port")
		}
		cfg.DBPort = *o.DBPort
	}
	if o.DBUser != nil {
		cfg.DBUser = *o.DBUser
	}
	if o.DBName != nil {
		cfg.DBName = *o.DBName
	}
	if o.DBSSLMode != nil {
		cfg.DBSSLMode = *o.DBSSLMode
	}
	if o.LogLevel != nil {
		level, err := parseLogLevel(*o.LogLevel)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}
	if o.QueryTimeout != nil {
		cfg.QueryTimeout = *o.QueryTimeout
	}
	if o.QueryCatalog != nil {
		cfg.QueryCatalog = *o.QueryCatalog
	}
	if o.Transport != nil {
		cfg.Transport = *o.Transport
	}
	if o.HTTPAddr != nil {
		cfg.HTTPAddr = *o.HTTPAddr
	}
	if o.HTTPBearerToken != nil {
		cfg.HTTPBearerToken = *o.HTTPBearerToken
	}
	if o.CacheMaxEntries != nil {
		if *o.CacheMaxEntries <= 0 {
			return fmt.Errorf("invalid --cache-max-entries value: must be a positive integer")
		}
		cfg.CacheMaxEntries = *o.CacheMaxEntries
	}
	if o.CacheDefaultTTL != nil {
		if *o.CacheDefaultTTL <= 0 {
			return fmt.Errorf("invalid --cache-ttl value: must be a positive duration")
		}
		cfg.CacheDefaultTTL = *o.CacheDefaultTTL
	}

	if err := applyPoolOverrides(cfg, o); err != nil {
		return err
	}

	cfg.AuditLog = o.AuditLog
	cfg.OTelEnabled = cfg.OTelEnabled || o.OTelEnabled

	return nil
}

// applyPoolOverrides applies connection pool CLI flag overrides.
func applyPoolOverrides(cfg *Config, o Overrides) error {
	if o.PoolMaxConns != nil {
		if *o.PoolMaxConns <= 0 {
			return fmt.Errorf("invalid --pool-max-conns value: must be a positive integer")
		}
		cfg.PoolMaxConns = *o.PoolMaxConns
	}
	if o.PoolMinConns != nil {
		if *o.PoolMinConns < 0 {
			return fmt.Errorf("invalid --pool-min-conns value: must be a non-negative integer")
		}
		cfg.PoolMinConns = *o.PoolMinConns
	}
	if o.PoolMaxConnLifetime != nil {
		cfg.PoolMaxConnLifetime = *o.PoolMaxConnLifetime
	}
	if o.PoolAcquireTimeout != nil {
		if *o.PoolAcquireTimeout < 0 {
			return fmt.Errorf("invalid --pool-acquire-timeout value: must be a non-negative duration")
		}
		cfg.PoolAcquireTimeout = *o.PoolAcquireTimeout
	}
	return nil
}

var sslModes = map[string]bool{
	"disable":     true,
	"allow":       true,
	"prefer":      true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

// validate checks cross-field constraints on the final config.
func validate(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		var missing []string
		if cfg.DBHost == "" {
			missing = append(missing, "DB_HOST")
		}
		if cfg.DBUser == "" {
			missing = append(missing, "DB_USER")
		}
		if cfg.DBName == "" {
			missing = append(missing, "DB_NAME")
		}
		if len(missing) > 0 {
			return fmt.Errorf("%s required when DATABASE_URL is not set", strings.Join(missing, ", "))
		}
		if !sslModes[cfg.DBSSLMode] {
			return fmt.Errorf("invalid DB_SSLMODE value %q: must be one of disable, allow, prefer, require, verify-ca, verify-full", cfg.DBSSLMode)
		}
	}

	switch cfg.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("invalid TRANSPORT value %q: must be \"stdio\" or \"http\"", cfg.Transport)
	}

	if cfg.Transport == "http" && cfg.HTTPBearerToken == "" {
		return fmt.Errorf("HTTP_BEARER_TOKEN is required when transport is \"http\" (set via env var or --http-bearer-token flag)")
	}

	if cfg.PoolMinConns > cfg.PoolMaxConns {
		return fmt.Errorf("POOL_MIN_CONNS (%d) must not exceed POOL_MAX_CONNS (%d)", cfg.PoolMinConns, cfg.PoolMaxConns)
	}

	return nil
}

// ConnString returns DatabaseURL when set, otherwise a postgres URL built
// from the DB_* fields.
func (c *Config) ConnString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     net.JoinHostPort(c.DBHost, strconv.Itoa(c.DBPort)),
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": {c.DBSSLMode}}.Encode(),
	}
	if c.DBPassword == "" {
		u.User = url.User(c.DBUser)
	}
	return u.String()
}

// TLSVerified reports whether the connection verifies the server certificate.
// DatabaseURL is read the way pgx reads it, so keyword DSNs, PG* environment
// variables and sslrootcert count. Without sslmode libpq's default, prefer,
// applies.
func (c *Config) TLSVerified() bool {
	if c.DatabaseURL == "" {
		return strings.HasPrefix(c.DBSSLMode, "verify-")
	}
	pc, err := pgconn.ParseConfig(c.DatabaseURL)
	if err != nil || pc.TLSConfig == nil {
		return false
	}
	return !pc.TLSConfig.InsecureSkipVerify || pc.TLSConfig.VerifyPeerCertificate != nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL value %q: must be debug, info, warn, or error", s)
	}
}
