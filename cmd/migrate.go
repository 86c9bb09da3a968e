package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

type migrateCmd struct{}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply the database schema" }
func (*migrateCmd) Usage() string {
	return `finntra migrate

  Creates the tables and the change notification triggers in the database at
  DATABASE_URL. It is safe to run it again.
`
}

func (c *migrateCmd) SetFlags(f *flag.FlagSet) {}

func (c *migrateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, logger, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer logger.Sync()

	db, err := openStore(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		return subcommands.ExitFailure
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error applying schema: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Println("Schema is up to date.")
	return subcommands.ExitSuccess
}
