package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/etnz/finntra"
	"github.com/etnz/finntra/currency"
	"github.com/etnz/finntra/importer"
	"github.com/google/subcommands"
)

type importCmd struct {
	user   string
	commit bool
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "read transactions from a bank export" }
func (*importCmd) Usage() string {
	return `finntra import [-commit -user <id>] <file>

  Parses a bank export and prints the transactions it contains along with
  the rejected rows. Only .csv exports are read, with a header naming the
  date, description, category, amount and optional type columns.

  With -commit the transactions are added to the user's data.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "The user id, required with -commit.")
	f.BoolVar(&c.commit, "commit", false, "Add the parsed transactions to the user's data.")
}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: expected exactly one file")
		return subcommands.ExitUsageError
	}
	if c.commit && c.user == "" {
		fmt.Fprintln(os.Stderr, "Error: -commit requires -user")
		return subcommands.ExitUsageError
	}
	name := f.Arg(0)
	file, err := os.Open(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening %q: %v\n", name, err)
		return subcommands.ExitFailure
	}
	defer file.Close()

	res, err := importer.Import(filepath.Base(name), file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error importing %q: %v\n", name, err)
		return subcommands.ExitFailure
	}
	printMarkdown(importMarkdown(res))
	if !c.commit {
		return subcommands.ExitSuccess
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

	s, stop, err := openUser(ctx, cfg, logger, db, currency.NewConverter(newRates(ctx, cfg, logger, true)), c.user)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer stop()

	imported := 0
	for i, t := range res.Transactions {
		if _, err := s.AddTransaction(ctx, t); err != nil {
			fmt.Fprintf(os.Stderr, "Error adding transaction %d: %v\n", i+1, err)
			continue
		}
		imported++
	}
	fmt.Printf("Imported %d of %d transactions.\n", imported, len(res.Transactions))
	if imported < len(res.Transactions) {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// importMarkdown lists the parsed transactions then the rejected rows.
func importMarkdown(res importer.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Transactions (%d)\n\n", len(res.Transactions))
	if len(res.Transactions) > 0 {
		b.WriteString("| Date | Description | Category | Type | Amount |\n|:---|:---|:---|:---|---:|\n")
		for _, t := range res.Transactions {
			amount := currency.FormatIn(t.Amount, currency.Pivot)
			if t.Type == finntra.Expense {
				amount = "-" + amount
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n", t.Date, cell(t.Description), cell(t.Category), t.Type, amount)
		}
	}
	if len(res.Rejected) > 0 {
		fmt.Fprintf(&b, "\n## Rejected rows (%d)\n\n| Line | Error |\n|---:|:---|\n", len(res.Rejected))
		for _, r := range res.Rejected {
			fmt.Fprintf(&b, "| %s | %s |\n", strconv.Itoa(r.Line), cell(r.Err.Error()))
		}
	}
	return b.String()
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}
