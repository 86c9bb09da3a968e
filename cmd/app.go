// Package cmd implements the finntra command line: the API server and the
// tools around it.
package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/etnz/finntra/auth"
	"github.com/etnz/finntra/config"
	"github.com/etnz/finntra/currency"
	"github.com/etnz/finntra/logging"
	"github.com/etnz/finntra/rates"
	"github.com/etnz/finntra/server"
	"github.com/etnz/finntra/state"
	"github.com/etnz/finntra/store"
	"github.com/google/subcommands"
	"go.uber.org/zap"
)

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var (
	envFile = flag.String("env", ".env", "dotenv file read before the environment")
	Verbose = flag.Bool("v", false, "log at debug level")
)

// Commands lists the subcommands with their help group.
var Commands = []struct {
	Command subcommands.Command
	Group   string
}{
	{&serveCmd{}, "server"},
	{&migrateCmd{}, "server"},
	{&currenciesCmd{}, "currency"},
	{&ratesCmd{}, "currency"},
	{&convertCmd{}, "currency"},
	{&formatCmd{}, "currency"},
	{&reportCmd{}, "data"},
	{&importCmd{}, "data"},
	{&assistCmd{}, "assistant"},
	{&topicCmd{}, ""},
}

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(c.HelpCommand(), "")
	c.Register(c.FlagsCommand(), "")
	for _, cmd := range Commands {
		c.Register(cmd.Command, cmd.Group)
	}
}

// loadConfig reads the configuration and builds the logger.
func loadConfig() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(*envFile)
	if err != nil {
		return cfg, nil, fmt.Errorf("cannot load configuration: %w", err)
	}
	if *Verbose {
		cfg.Logging.Level = "debug"
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return cfg, nil, fmt.Errorf("cannot build logger: %w", err)
	}
	return cfg, logger, nil
}

// openStore connects to the database of the configuration.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (*store.Postgres, error) {
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	return store.OpenPostgres(ctx, cfg.Database.URL, logger)
}

// newRates returns a rate cache, refreshed from the quote service unless
// offline. A failed refresh keeps the built-in rates.
func newRates(ctx context.Context, cfg config.Config, logger *zap.Logger, offline bool) *rates.Cache {
	cache := rates.New(rates.NewHTTPProvider(cfg.Rates.URL, cfg.Rates.Path), logger)
	if !offline {
		if err := cache.Refresh(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: using built-in exchange rates: %v\n", err)
		}
	}
	return cache
}

// openUser signs userID in on a registry backed by st and returns its
// loaded Synchronizer. stop releases it.
func openUser(ctx context.Context, cfg config.Config, logger *zap.Logger, st store.Store, conv *currency.Converter, userID string) (s *state.Synchronizer, stop func(), err error) {
	if _, err := st.Profile(ctx, userID); err != nil {
		return nil, nil, fmt.Errorf("unknown user %q: %w", userID, err)
	}
	reg := server.NewRegistry(ctx, state.Options{
		Store:       st,
		Format:      conv,
		Logger:      logger,
		LoadTimeout: cfg.Sync.LoadTimeout,
	})
	s, err = reg.Get(ctx, auth.Claims{Sub: userID})
	if err != nil {
		reg.Close()
		return nil, nil, err
	}
	if v := s.View(); v.Status != state.Ready {
		reg.Close()
		return nil, nil, fmt.Errorf("cannot load data of %s: %s", userID, v.Error)
	}
	return s, reg.Close, nil
}

// printMarkdown renders md for the terminal, or prints it raw when it cannot.
func printMarkdown(md string) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err == nil {
		var out string
		if out, err = r.Render(md); err == nil {
			fmt.Print(out)
			return
		}
	}
	fmt.Print(md)
}
