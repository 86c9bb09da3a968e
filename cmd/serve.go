package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/etnz/finntra/assistant"
	"github.com/etnz/finntra/auth"
	"github.com/etnz/finntra/currency"
	"github.com/etnz/finntra/notify"
	"github.com/etnz/finntra/server"
	"github.com/etnz/finntra/state"
	"github.com/etnz/finntra/store"
	"github.com/google/subcommands"
	"go.uber.org/zap"
)

type serveCmd struct {
	host         string
	port         int
	migrate      bool
	largeExpense float64
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "run the HTTP API" }
func (*serveCmd) Usage() string {
	return `finntra serve [-host <host>] [-port <port>] [-migrate]

  Serves the REST and websocket API. Configuration comes from the environment
  (see .env), the flags override the listen address.

  Optional services are enabled by their variables:
    REDIS_ADDR       alert delivery on a redis channel, logged otherwise
    GEMINI_API_KEY   the /api/chat assistant
    SUPABASE_URL     sign-up/sign-in and profile photo storage
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.host, "host", "", "Listen host, overrides SERVER_HOST.")
	f.IntVar(&c.port, "port", 0, "Listen port, overrides SERVER_PORT.")
	f.BoolVar(&c.migrate, "migrate", false, "Apply the database schema before serving.")
	f.Float64Var(&c.largeExpense, "large-expense", 1000, "Expense amount that sends an alert, 0 disables it.")
}

func (c *serveCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, logger, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer logger.Sync()
	if c.host != "" {
		cfg.HTTP.Host = c.host
	}
	if c.port != 0 {
		cfg.HTTP.Port = c.port
	}
	if cfg.Supabase.JWTSecret == "" {
		logger.Error("SUPABASE_JWT_SECRET is required to verify access tokens")
		return subcommands.ExitFailure
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	db, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open database", zap.Error(err))
		return subcommands.ExitFailure
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn("closing database failed", zap.Error(err))
		}
	}()
	if c.migrate {
		if err := db.Migrate(ctx); err != nil {
			logger.Error("failed to migrate database", zap.Error(err))
			return subcommands.ExitFailure
		}
	}

	cache := newRates(ctx, cfg, logger, true)
	go cache.Run(ctx, cfg.Rates.Interval)
	conv := currency.NewConverter(cache)

	probes := server.Probes{server.StoreHealth{Store: db}}
	var sender notify.Sender = notify.LogSender{Logger: logger}
	if cfg.Redis.Addr != "" {
		client, err := notify.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Error("failed to connect to redis", zap.Error(err))
			return subcommands.ExitFailure
		}
		defer client.Close()
		sender = &notify.RedisSender{Client: client, Channel: cfg.Redis.Channel}
		probes = append(probes, server.RedisHealth{Client: client})
	}

	var storage store.ObjectStorage
	var authClient *auth.Client
	if cfg.Supabase.URL != "" {
		key := cfg.Supabase.ServiceKey
		if key == "" {
			key = cfg.Supabase.AnonKey
		}
		storage = store.NewHTTPStorage(cfg.Supabase.URL, key)
		authClient = auth.NewClient(cfg.Supabase.URL, cfg.Supabase.AnonKey)
	}

	var proxy *assistant.Proxy
	if cfg.Assistant.APIKey != "" {
		gen, err := assistant.NewGemini(ctx, cfg.Assistant.APIKey, cfg.Assistant.Model)
		if err != nil {
			logger.Error("failed to create assistant client", zap.Error(err))
			return subcommands.ExitFailure
		}
		proxy = &assistant.Proxy{Generator: gen, Logger: logger}
	}

	monitor := state.NewMonitor(db, cfg.Sync.ConnectivityInterval, logger)
	go monitor.Run(ctx)

	registry := server.NewRegistry(ctx, state.Options{
		Store:        db,
		Storage:      storage,
		Bucket:       cfg.Supabase.StorageBucket,
		Sender:       sender,
		Format:       conv,
		Logger:       logger,
		LoadTimeout:  cfg.Sync.LoadTimeout,
		LargeExpense: c.largeExpense,
	})
	defer registry.Close()

	router := server.NewRouter(logger, server.RouterDependencies{
		Health:         probes,
		Auth:           authClient,
		Verifier:       auth.NewVerifier(cfg.Supabase.URL, cfg.Supabase.JWTSecret),
		Registry:       registry,
		Rates:          cache,
		Converter:      conv,
		Monitor:        monitor,
		Assistant:      proxy,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	})
	srv := server.New(logger, cfg.HTTP, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	status := subcommands.ExitSuccess
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("server stopped unexpectedly", zap.Error(err))
			status = subcommands.ExitFailure
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	return status
}
