package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/guillermoBallester/obddash/internal/config"
)

// parseFlags maps command-line flags onto config overrides. Only flags the
// user actually set produce non-nil fields.
func parseFlags(args []string) (config.Overrides, error) {
	fs := pflag.NewFlagSet("obddash", pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: obddash [flags]\n\nEnvironment variables are read first; flags override them.\n\nFlags:\n")
		fs.PrintDefaults()
	}

	databaseURL := fs.String("database-url", "", "PostgreSQL connection URL (overrides DATABASE_URL and DB_*)")
	dbHost := fs.String("db-host", "", "database host (DB_HOST)")
	dbPort := fs.Int("db-port", 5432, "database port (DB_PORT)")
	dbUser := fs.String("db-user", "", "database user (DB_USER)")
	dbName := fs.String("db-name", "", "database name (DB_NAME)")
	dbSSLMode := fs.String("db-sslmode", "prefer", "TLS mode: disable, allow, prefer, require, verify-ca, verify-full (DB_SSLMODE)")
	logLevel := fs.String("log-level", "info", "log level: debug, info, warn, error (LOG_LEVEL)")
	queryTimeout := fs.Duration("query-timeout", 0, "per-query timeout, 0 for none (QUERY_TIMEOUT)")
	queryCatalog := fs.String("query-catalog", "", "path to named dashboard query YAML (QUERY_CATALOG)")
	transport := fs.String("transport", "http", "transport: http or stdio (TRANSPORT)")
	httpAddr := fs.String("http-addr", ":8080", "HTTP listen address (HTTP_ADDR)")
	httpToken := fs.String("http-bearer-token", "", "bearer token required on /api and /mcp (HTTP_BEARER_TOKEN)")
	cacheMax := fs.Int("cache-max-entries", 100, "result cache capacity (CACHE_MAX_ENTRIES)")
	cacheTTL := fs.Duration("cache-ttl", time.Minute, "default result cache TTL (CACHE_DEFAULT_TTL)")
	poolMax := fs.Int32("pool-max-conns", 10, "maximum open connections (POOL_MAX_CONNS)")
	poolMin := fs.Int32("pool-min-conns", 0, "minimum idle connections (POOL_MIN_CONNS)")
	poolLifetime := fs.Duration("pool-max-conn-lifetime", 30*time.Minute, "maximum connection lifetime (POOL_MAX_CONN_LIFETIME)")
	poolAcquire := fs.Duration("pool-acquire-timeout", 0, "bound on waiting for a free connection, 0 waits forever (POOL_ACQUIRE_TIMEOUT)")
	otelEnabled := fs.Bool("otel", false, "enable OpenTelemetry tracing and metrics (OTEL_ENABLED)")
	auditLog := fs.String("audit-log", "", "mirror the operation log to this NDJSON file")

	if err := fs.Parse(args); err != nil {
		return config.Overrides{}, err
	}

	var o config.Overrides
	setIfChanged(fs, "database-url", &o.DatabaseURL, databaseURL)
	setIfChanged(fs, "db-host", &o.DBHost, dbHost)
	setIfChanged(fs, "db-port", &o.DBPort, dbPort)
	setIfChanged(fs, "db-user", &o.DBUser, dbUser)
	setIfChanged(fs, "db-name", &o.DBName, dbName)
	setIfChanged(fs, "db-sslmode", &o.DBSSLMode, dbSSLMode)
	setIfChanged(fs, "log-level", &o.LogLevel, logLevel)
	setIfChanged(fs, "query-timeout", &o.QueryTimeout, queryTimeout)
	setIfChanged(fs, "query-catalog", &o.QueryCatalog, queryCatalog)
	setIfChanged(fs, "transport", &o.Transport, transport)
	setIfChanged(fs, "http-addr", &o.HTTPAddr, httpAddr)
	setIfChanged(fs, "http-bearer-token", &o.HTTPBearerToken, httpToken)
	setIfChanged(fs, "cache-max-entries", &o.CacheMaxEntries, cacheMax)
	setIfChanged(fs, "cache-ttl", &o.CacheDefaultTTL, cacheTTL)
	setIfChanged(fs, "pool-max-conns", &o.PoolMaxConns, poolMax)
	setIfChanged(fs, "pool-min-conns", &o.PoolMinConns, poolMin)
	setIfChanged(fs, "pool-max-conn-lifetime", &o.PoolMaxConnLifetime, poolLifetime)
	setIfChanged(fs, "pool-acquire-timeout", &o.PoolAcquireTimeout, poolAcquire)
	o.OTelEnabled = *otelEnabled
	o.AuditLog = *auditLog

	return o, nil
}

func setIfChanged[T any](fs *pflag.FlagSet, name string, dst **T, v *T) {
	if fs.Changed(name) {
		*dst = v
	}
}
