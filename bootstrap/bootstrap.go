// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/artpar/lexgate/adapters/anthropic"
	"github.com/artpar/lexgate/adapters/auth"
	"github.com/artpar/lexgate/adapters/clock"
	apihttp "github.com/artpar/lexgate/adapters/http"
	"github.com/artpar/lexgate/adapters/idgen"
	"github.com/artpar/lexgate/adapters/memory"
	"github.com/artpar/lexgate/adapters/metrics"
	"github.com/artpar/lexgate/adapters/redis"
	"github.com/artpar/lexgate/app"
	"github.com/artpar/lexgate/config"
	"github.com/artpar/lexgate/pkg/retry"
	"github.com/artpar/lexgate/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Options provides optional configuration for application initialization.
type Options struct {
	// ConfigPath is the YAML or TOML file. When it does not exist the
	// configuration is read from LEXGATE_* environment variables.
	ConfigPath string

	Version string

	// Registry isolates metrics, mainly for tests. Nil uses the default
	// Prometheus registry.
	Registry *prometheus.Registry

	// LogOutput defaults to stdout.
	LogOutput io.Writer
}

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Holder
	HTTPServer *http.Server
	Handler    http.Handler
	Metrics    *metrics.Collector
	Chat       *app.ChatService

	limiter      *app.RateLimiter
	guestLimiter *app.RateLimiter
	closers      []namedCloser
}

type namedCloser struct {
	name string
	c    io.Closer
}

// checkFunc adapts a function to apihttp.HealthChecker.
type checkFunc func(ctx context.Context) error

func (f checkFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// New loads configuration and creates the application.
func New(opts Options) (*App, error) {
	path := opts.ConfigPath
	if path == "" {
		path = config.DefaultPath
	}

	cfg, err := config.LoadWithFallback(path)
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); statErr != nil {
		path = ""
	}
	return NewWithConfig(cfg, path, opts)
}

// NewWithConfig creates the application from an already loaded config.
// path may be empty, in which case hot reload is unavailable.
func NewWithConfig(cfg *config.Config, path string, opts Options) (*App, error) {
	out := opts.LogOutput
	if out == nil {
		out = os.Stdout
	}
	logger := NewLogger(cfg.Logging, out)
	logger.Info().Str("version", opts.Version).Msg("initializing lexgate")

	holder, err := config.NewStaticHolder(cfg, path, logger)
	if err != nil {
		return nil, fmt.Errorf("config holder: %w", err)
	}

	a := &App{
		Logger: logger,
		Config: holder,
	}

	if cfg.Metrics.Enabled {
		if opts.Registry != nil {
			a.Metrics = metrics.NewWithRegistry(opts.Registry)
		} else {
			a.Metrics = metrics.New()
		}
		logger.Info().Str("path", cfg.Metrics.Path).Msg("prometheus metrics enabled")
	}

	checks := map[string]apihttp.HealthChecker{}

	deps, err := a.buildDependencies(cfg, checks)
	if err != nil {
		a.close()
		return nil, err
	}

	policy := cfg.Retry.Policy()
	if a.Metrics != nil {
		policy.OnRetry = func(error, time.Duration) { a.Metrics.UpstreamRetries.Inc() }
	}

	a.Chat = app.NewChatService(deps, app.ChatConfig{
		Plans:          cfg.PlanTable(),
		MaxInputLength: cfg.Validation.MaxInputLength,
		MaxMessages:    cfg.Validation.MaxMessages,
		ModelOverride:  cfg.Upstream.Model,
		Retry:          policy,
		CacheTTL:       cfg.Cache.General.TTL,
		FAQTTL:         cfg.Cache.FAQ.TTL,
		GuestEnabled:   cfg.Guest.IsEnabled(),
	})

	routerCfg := apihttp.RouterConfig{
		Metrics:        a.Metrics,
		MetricsPath:    cfg.Metrics.Path,
		EnableOpenAPI:  cfg.OpenAPI.Enabled,
		Version:        opts.Version,
		RequestTimeout: cfg.Server.RequestTimeout,

		TrustProxyHeaders: cfg.Server.TrustProxyHeaders,
	}
	if a.Metrics != nil && opts.Registry != nil {
		routerCfg.MetricsHandler = promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})
	}

	a.Handler = apihttp.NewRouter(
		apihttp.NewChatHandler(a.Chat, logger, a.Metrics),
		apihttp.NewHealthHandler(checks),
		logger,
		routerCfg,
	)

	a.HTTPServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      a.Handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	holder.OnChange(a.applyConfig)
	holder.OnError(func(error) {
		if a.Metrics != nil {
			a.Metrics.ConfigReloadErrors.Inc()
		}
	})
	if a.Metrics != nil {
		a.Metrics.ConfigLastReload.SetToCurrentTime()
	}

	return a, nil
}

func (a *App) buildDependencies(cfg *config.Config, checks map[string]apihttp.HealthChecker) (app.ChatDeps, error) {
	clk := clock.Real{}

	// Rate limit store shared by both limiters; keys are namespaced per limiter.
	var store ports.RateLimitStore
	switch cfg.RateLimit.Backend {
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		var rs *redis.RateLimitStore
		err := retry.Do(ctx, connectPolicy(a.Logger), func(ctx context.Context) error {
			var err error
			rs, err = redis.NewRateLimitStore(ctx, cfg.RateLimit.RedisURL, cfg.RateLimit.KeyPrefix)
			return err
		})
		if err != nil {
			return app.ChatDeps{}, fmt.Errorf("connect rate limit store: %w", err)
		}
		a.closers = append(a.closers, namedCloser{"rate limit store", rs})
		checks["rate_limit_store"] = rs
		store = rs
	default:
		ms := memory.NewShardedRateLimitStore(memory.ShardedRateLimitConfig{
			NumShards:       cfg.RateLimit.Shards,
			CleanupInterval: cfg.RateLimit.CleanupInterval,
		})
		a.closers = append(a.closers, namedCloser{"rate limit store", ms})
		store = ms
	}
	a.Logger.Info().Str("backend", cfg.RateLimit.Backend).Msg("rate limit store ready")

	a.limiter = app.NewRateLimiter(app.LimiterChat, store, clk, cfg.RateLimit.Chat.Limits())
	a.guestLimiter = app.NewRateLimiter(app.LimiterGuest, store, clk, cfg.RateLimit.Guest.Limits())

	general := memory.NewResponseCache(memory.ResponseCacheConfig{
		Name:            "general",
		TTL:             cfg.Cache.General.TTL,
		MaxSize:         cfg.Cache.General.MaxSize,
		CleanupInterval: cfg.Cache.CleanupInterval,
	})
	faq := memory.NewResponseCache(memory.ResponseCacheConfig{
		Name:            "faq",
		TTL:             cfg.Cache.FAQ.TTL,
		MaxSize:         cfg.Cache.FAQ.MaxSize,
		CleanupInterval: cfg.Cache.CleanupInterval,
	})
	a.closers = append(a.closers, namedCloser{"general cache", general}, namedCloser{"faq cache", faq})
	if a.Metrics != nil {
		a.Metrics.RegisterCacheSize("general", func() int { return general.Stats().Entries })
		a.Metrics.RegisterCacheSize("faq", func() int { return faq.Stats().Entries })
	}

	usageSvc := app.NewUsageService(app.UsageDeps{
		Store:  memory.NewUsageStore(cfg.Usage.MaxRecords),
		Clock:  clk,
		IDGen:  idgen.UUID{Prefix: "usg_"},
		Logger: a.Logger,
	})

	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)

	// A nil LLM makes every completion fail with MISSING_API_KEY.
	var llm ports.LLM
	if cfg.Upstream.APIKey != "" {
		client, err := anthropic.New(anthropic.Config{
			BaseURL:         cfg.Upstream.BaseURL,
			APIKey:          cfg.Upstream.APIKey,
			Version:         cfg.Upstream.Version,
			Timeout:         cfg.Upstream.Timeout,
			MaxIdleConns:    cfg.Upstream.MaxIdleConns,
			IdleConnTimeout: cfg.Upstream.IdleConnTimeout,
		})
		if err != nil {
			return app.ChatDeps{}, fmt.Errorf("upstream client: %w", err)
		}
		llm = client
		if a.Metrics != nil {
			llm = metrics.InstrumentLLM(client, a.Metrics)
		}
		a.Logger.Info().Str("base_url", cfg.Upstream.BaseURL).Msg("upstream client ready")
	} else {
		a.Logger.Warn().Msg("upstream.api_key is not set, chat requests will fail")
	}
	checks["upstream"] = checkFunc(func(context.Context) error {
		if llm == nil {
			return errors.New("upstream api key is not configured")
		}
		return nil
	})

	return app.ChatDeps{
		Tokens:       tokens,
		Limiter:      a.limiter,
		GuestLimiter: a.guestLimiter,
		Cache:        general,
		FAQCache:     faq,
		Usage:        usageSvc,
		LLM:          llm,
		Clock:        clk,
		Logger:       a.Logger,
	}, nil
}

// connectPolicy retries startup connections briefly; the caller's context
// bounds the total wait.
func connectPolicy(logger zerolog.Logger) retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxRetries = 2
	p.InitialDelay = 200 * time.Millisecond
	p.MaxDelay = time.Second
	p.OnRetry = func(err error, delay time.Duration) {
		logger.Warn().Err(err).Dur("delay", delay).Msg("retrying rate limit store connection")
	}
	return p
}

// applyConfig pushes reloadable settings into the running services.
func (a *App) applyConfig(cfg *config.Config) {
	a.Chat.UpdatePlans(cfg.PlanTable())
	a.limiter.UpdateConfig(cfg.RateLimit.Chat.Limits())
	a.guestLimiter.UpdateConfig(cfg.RateLimit.Guest.Limits())

	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	if a.Metrics != nil {
		a.Metrics.ConfigReloads.Inc()
		a.Metrics.ConfigLastReload.SetToCurrentTime()
	}
	a.Logger.Info().Msg("reloadable settings applied")
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run() error {
	if err := a.Config.WatchFile(); err != nil {
		a.Logger.Debug().Err(err).Msg("config file watch disabled")
	} else {
		a.Config.WatchSignals()
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt or error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		a.Shutdown()
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application. In-flight streams get the
// configured shutdown timeout to finish.
func (a *App) Shutdown() error {
	timeout := a.Config.Get().Server.ShutdownTimeout
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	a.Config.Stop()

	var shutdownErr error
	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
			shutdownErr = err
		}
	}

	a.close()

	a.Logger.Info().Msg("shutdown complete")
	return shutdownErr
}

func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.c.Close(); err != nil {
			a.Logger.Error().Err(err).Str("component", c.name).Msg("close error")
		}
	}
	a.closers = nil
}

// NewLogger builds the process logger and sets the global level.
func NewLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).With().Timestamp().Logger()
}
