package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/etnz/finntra/currency"
	"github.com/etnz/finntra/report"
	"github.com/google/subcommands"
)

type reportCmd struct {
	user    string
	pdf     string
	html    string
	offline bool
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "print the financial statement of a user" }
func (*reportCmd) Usage() string {
	return `finntra report -user <id> [-pdf <file>] [-html <file>] [-offline]

  Loads the user's data from DATABASE_URL and prints the statement: the
  totals, the spending by category, the accounts, the goals and the latest
  transactions, all in the user's display currency.

  With -pdf or -html the statement is written to the file instead.
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "The user id.")
	f.StringVar(&c.pdf, "pdf", "", "Write the statement as PDF to this file.")
	f.StringVar(&c.html, "html", "", "Write the statement as HTML to this file.")
	f.BoolVar(&c.offline, "offline", false, "Do not fetch, use the built-in exchange rates.")
}

func (c *reportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.user == "" {
		fmt.Fprintln(os.Stderr, "Error: -user is required")
		return subcommands.ExitUsageError
	}
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

	conv := currency.NewConverter(newRates(ctx, cfg, logger, c.offline))
	s, stop, err := openUser(ctx, cfg, logger, db, conv, c.user)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer stop()

	snap := s.View().Snapshot
	st := report.Build(snap, conv, snap.Currency(), time.Now())

	switch {
	case c.pdf != "":
		out, err := os.Create(c.pdf)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating %q: %v\n", c.pdf, err)
			return subcommands.ExitFailure
		}
		if err := report.PDF(out, st); err != nil {
			out.Close()
			fmt.Fprintf(os.Stderr, "Error rendering pdf: %v\n", err)
			return subcommands.ExitFailure
		}
		if err := out.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %q: %v\n", c.pdf, err)
			return subcommands.ExitFailure
		}
	case c.html != "":
		html, err := report.HTML(st)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error rendering html: %v\n", err)
			return subcommands.ExitFailure
		}
		if err := os.WriteFile(c.html, html, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %q: %v\n", c.html, err)
			return subcommands.ExitFailure
		}
	default:
		printMarkdown(report.Markdown(st))
	}
	return subcommands.ExitSuccess
}
