package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"rewardkit/adapters/jsonfile"
	mem "rewardkit/adapters/memory"
	redisAdapter "rewardkit/adapters/redis"
	sqlxAdapter "rewardkit/adapters/sqlx"
	"rewardkit/analytics"
	"rewardkit/api/httpapi"
	"rewardkit/config"
	"rewardkit/engine"
	"rewardkit/leaderboard"
	"rewardkit/progression"
	"rewardkit/realtime"
)

// App aggregates the assembled server components.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Hub     *realtime.Hub
	Service *engine.ProgressionService
	Metrics *analytics.Collector
	Handler http.Handler
	Server  *http.Server
	// MetricsServer is nil when metrics are disabled.
	MetricsServer *http.Server
}

func provideConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.Environment == config.EnvProduction {
		if err := cfg.LoadSecretsFromEnv(ctx); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func provideLogger(cfg *config.Config) *slog.Logger {
	return setupLogging(cfg)
}

func provideHub() *realtime.Hub {
	return realtime.NewHub()
}

func provideLeaderboard() *leaderboard.Tracker {
	return leaderboard.NewTracker()
}

func provideMetrics(cfg *config.Config) *analytics.Collector {
	return analytics.NewCollector("rewardkit", cfg.Metrics.CollectSystem)
}

func provideStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (engine.Store, func(), error) {
	return setupStorage(ctx, cfg, log)
}

func provideService(cfg *config.Config, log *slog.Logger, hub *realtime.Hub, store engine.Store, metrics *analytics.Collector) (*engine.ProgressionService, func()) {
	svc := progression.New(
		progression.WithStore(store),
		progression.WithLogger(log),
		progression.WithRealtime(hub),
		progression.WithMetrics(metrics),
		progression.WithRewards(cfg.Rewards.ActivityRewards()),
		progression.WithDispatchMode(engine.ParseDispatchMode(cfg.Engine.DispatchMode)),
		progression.WithWebhooks(cfg.Integrations.WebhookURLs...),
		progression.WithWebhookTimeout(cfg.Integrations.WebhookTimeout),
	)
	return svc, svc.Close
}

func provideHandler(svc *engine.ProgressionService, hub *realtime.Hub, board *leaderboard.Tracker, cfg *config.Config, log *slog.Logger) http.Handler {
	return httpapi.NewMux(svc, hub, httpapi.Options{
		PathPrefix:      cfg.Server.PathPrefix,
		AllowCORSOrigin: cfg.Server.CORSOrigin,
		APIKeys:         cfg.Security.APIKeys,
		Leaderboard:     board,
		Logger:          log,
	})
}

func provideServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

// MetricsServer is a distinct type so the injector can tell it apart from
// the API server.
type MetricsServer *http.Server

func provideMetricsServer(cfg *config.Config, metrics *analytics.Collector) MetricsServer {
	if !cfg.Metrics.Enabled {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, metrics.Handler())
	return &http.Server{
		Addr:              cfg.Metrics.Address,
		Handler:           mux,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}
}

func newApp(cfg *config.Config, log *slog.Logger, hub *realtime.Hub, svc *engine.ProgressionService,
	metrics *analytics.Collector, handler http.Handler, srv *http.Server, metricsSrv MetricsServer) *App {
	return &App{
		Config:        cfg,
		Logger:        log,
		Hub:           hub,
		Service:       svc,
		Metrics:       metrics,
		Handler:       handler,
		Server:        srv,
		MetricsServer: metricsSrv,
	}
}

// setupLogging configures the logger based on configuration.
func setupLogging(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	out := os.Stdout
	if cfg.Logging.Output == "stderr" {
		out = os.Stderr
	}

	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	if len(cfg.Logging.Attributes) > 0 {
		handler = handler.WithAttrs(convertAttributes(cfg.Logging.Attributes))
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// convertAttributes converts map[string]string to []slog.Attr.
func convertAttributes(attrs map[string]string) []slog.Attr {
	var result []slog.Attr
	for k, v := range attrs {
		result = append(result, slog.String(k, v))
	}
	return result
}

// setupStorage creates the storage adapter named by configuration. The
// returned cleanup releases its connections.
func setupStorage(_ context.Context, cfg *config.Config, log *slog.Logger) (engine.Store, func(), error) {
	noop := func() {}
	switch cfg.Storage.Adapter {
	case "memory":
		return mem.New(), noop, nil
	case "redis":
		s, err := redisAdapter.New(cfg.Storage.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("redis storage: %w", err)
		}
		return s, closer(log, "redis", s.Close), nil
	case "sql":
		s, err := sqlxAdapter.New(cfg.Storage.SQL)
		if err != nil {
			return nil, nil, fmt.Errorf("sql storage: %w", err)
		}
		return s, closer(log, "sql", s.Close), nil
	case "file":
		s, err := jsonfile.New(cfg.Storage.File.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("file storage: %w", err)
		}
		return s, noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage adapter: %s", cfg.Storage.Adapter)
	}
}

func closer(log *slog.Logger, name string, fn func() error) func() {
	return func() {
		if err := fn(); err != nil {
			log.Warn("storage close failed", "adapter", name, "error", err)
		}
	}
}
