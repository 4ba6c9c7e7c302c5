package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/guillermoBallester/obddash/internal/adapter/catalog"
	"github.com/guillermoBallester/obddash/internal/adapter/httpapi"
	"github.com/guillermoBallester/obddash/internal/adapter/mcp"
	"github.com/guillermoBallester/obddash/internal/adapter/postgres"
	"github.com/guillermoBallester/obddash/internal/audit"
	"github.com/guillermoBallester/obddash/internal/cache"
	"github.com/guillermoBallester/obddash/internal/config"
	"github.com/guillermoBallester/obddash/internal/core/domain"
	"github.com/guillermoBallester/obddash/internal/core/port"
	"github.com/guillermoBallester/obddash/internal/core/service"
	"github.com/guillermoBallester/obddash/internal/dataaccess"
	"github.com/guillermoBallester/obddash/internal/oplog"
	"github.com/guillermoBallester/obddash/internal/telemetry"
)

var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	overrides, err := parseFlags(args)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Logs go to stderr; stdout is reserved for the MCP stdio transport.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	logger.Info("starting obddash",
		slog.String("version", version),
		slog.String("log_level", cfg.LogLevel.String()),
		slog.String("transport", cfg.Transport),
		slog.String("database", redactDSN(cfg.ConnString())),
		slog.Int("pool_max_conns", int(cfg.PoolMaxConns)),
		slog.Int("cache_max_entries", cfg.CacheMaxEntries),
		slog.String("cache_default_ttl", cfg.CacheDefaultTTL.String()),
		slog.Int("log_capacity", cfg.LogCapacity),
	)
	if !cfg.TLSVerified() {
		logger.Warn("database server certificate is not verified; set DB_SSLMODE=verify-full in production",
			slog.String("db.system", "postgresql"),
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Telemetry
	var otelProvider *telemetry.Provider
	tracer := telemetry.NoopTracer()
	inst := telemetry.NoopInstruments()
	if cfg.OTelEnabled {
		otelProvider, err = telemetry.Init(ctx, telemetry.Options{
			ServiceName: "obddash",
			Version:     version,
			Database:    cfg.DBName,
		})
		if err != nil {
			return fmt.Errorf("initializing telemetry: %w", err)
		}
		tracer = otelProvider.Tracer("github.com/guillermoBallester/obddash")
		inst = otelProvider.Instruments()
		logger.Info("opentelemetry enabled")
	}

	// Diagnostic log, optionally mirrored to an NDJSON file.
	var sink port.AuditSink
	if cfg.AuditLog != "" {
		fa, err := audit.NewFileAuditor(cfg.AuditLog)
		if err != nil {
			return fmt.Errorf("opening audit log: %w", err)
		}
		defer func() { _ = fa.Close() }()
		sink = fa
		logger.Info("audit log enabled", slog.String("file", cfg.AuditLog))
	}
	store := oplog.NewStore(cfg.LogCapacity)
	recorder := oplog.NewRecorder(store, logger, sink)

	resultCache, err := cache.New(cfg.CacheMaxEntries, cfg.CacheDefaultTTL)
	if err != nil {
		return fmt.Errorf("creating result cache: %w", err)
	}

	// The pool is created on the first query, not here.
	pool := postgres.NewManager(postgres.PoolConfig{
		ConnString:      cfg.ConnString(),
		MaxConns:        cfg.PoolMaxConns,
		MinConns:        cfg.PoolMinConns,
		MaxConnLifetime: cfg.PoolMaxConnLifetime,
		AcquireTimeout:  cfg.PoolAcquireTimeout,
	}, recorder, logger)

	reg, err := inst.RegisterPoolMetrics(pool.Stats)
	if err != nil {
		return fmt.Errorf("registering pool metrics: %w", err)
	}
	defer func() { _ = reg.Unregister() }()

	layer := dataaccess.New(dataaccess.Deps{
		Pool:         pool,
		Cache:        resultCache,
		Logs:         store,
		Recorder:     recorder,
		Logger:       logger,
		Tracer:       tracer,
		Inst:         inst,
		QueryTimeout: cfg.QueryTimeout,
	})

	named, err := loadCatalog(cfg.QueryCatalog)
	if err != nil {
		return fmt.Errorf("loading query catalog: %w", err)
	}
	statsSvc := service.NewStatsService(layer.Queries(), named)
	logger.Info("query catalog loaded", slog.Int("queries", len(named)))

	mcpServer := mcp.NewServer(version, layer, statsSvc, logger, tracer, inst)

	switch cfg.Transport {
	case "http":
		err = serveHTTP(ctx, cfg, layer, statsSvc, mcpServer, logger)
	default:
		logger.Info("serving MCP over stdio")
		err = mcpserver.NewStdioServer(mcpServer).Listen(ctx, os.Stdin, os.Stdout)
		if err != nil {
			err = fmt.Errorf("stdio server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if closeErr := layer.CloseConnectionPool(shutdownCtx); closeErr != nil {
		logger.Error("closing connection pool", slog.String("error.message", closeErr.Error()))
	}
	if otelErr := otelProvider.Shutdown(shutdownCtx); otelErr != nil {
		logger.Error("shutting down telemetry", slog.String("error.message", otelErr.Error()))
	}

	if err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

func loadCatalog(path string) ([]domain.NamedQuery, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.LoadFromFile(path)
}

// serveHTTP runs the diagnostics API and the MCP streamable endpoint until
// ctx is cancelled, then drains in-flight requests.
func serveHTTP(ctx context.Context, cfg *config.Config, layer *dataaccess.Layer, stats *service.StatsService, mcpServer *mcpserver.MCPServer, logger *slog.Logger) error {
	r := chi.NewRouter()
	r.Get("/health", healthHandler)
	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return bearerAuthMiddleware(next, cfg.HTTPBearerToken)
		})
		r.Mount("/api", httpapi.NewRouter(layer, stats, logger))
		r.Handle("/mcp", mcpserver.NewStreamableHTTPServer(mcpServer))
	})

	var handler http.Handler = recoveryMiddleware(r, logger)
	handler = otelhttp.NewHandler(handler, "obddash",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("serving HTTP", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

