package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/etnz/finntra/currency"
	"github.com/etnz/finntra/rates"
	"github.com/google/subcommands"
)

type currenciesCmd struct{}

func (*currenciesCmd) Name() string     { return "currencies" }
func (*currenciesCmd) Synopsis() string { return "list the selectable display currencies" }
func (*currenciesCmd) Usage() string {
	return `finntra currencies

  Lists the currencies a user can choose from as display currency.
`
}

func (c *currenciesCmd) SetFlags(f *flag.FlagSet) {}

func (c *currenciesCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	printMarkdown(currenciesMarkdown(currency.Supported))
	return subcommands.ExitSuccess
}

func currenciesMarkdown(list []currency.Currency) string {
	var b strings.Builder
	b.WriteString("| Code | Symbol | Name |\n|:---|:---:|:---|\n")
	for _, c := range list {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", c.Code, c.Symbol, c.Name)
	}
	return b.String()
}

type ratesCmd struct {
	json    bool
	offline bool
}

func (*ratesCmd) Name() string     { return "rates" }
func (*ratesCmd) Synopsis() string { return "show the exchange rates against the US dollar" }
func (*ratesCmd) Usage() string {
	return `finntra rates [-json] [-offline]

  Fetches the latest exchange rates from RATES_URL and prints them as units
  of each currency per US dollar. When the quote service cannot be reached
  the built-in rates are shown.
`
}

func (c *ratesCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.json, "json", false, "Print the table as JSON.")
	f.BoolVar(&c.offline, "offline", false, "Do not fetch, show the built-in rates.")
}

func (c *ratesCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, logger, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer logger.Sync()

	table := newRates(ctx, cfg, logger, c.offline).Table()
	if c.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(table); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding rates: %v\n", err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}
	printMarkdown(ratesMarkdown(table))
	return subcommands.ExitSuccess
}

// ratesMarkdown lists the table sorted by code, the selectable currencies first.
func ratesMarkdown(table rates.Table) string {
	codes := make([]string, 0, len(table))
	for code := range table {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool {
		si, sj := currency.IsSupported(codes[i]), currency.IsSupported(codes[j])
		if si != sj {
			return si
		}
		return codes[i] < codes[j]
	})

	var b strings.Builder
	b.WriteString("| Currency | Per USD |\n|:---|---:|\n")
	for _, code := range codes {
		fmt.Fprintf(&b, "| %s | %s |\n", code, strconv.FormatFloat(table[code], 'f', -1, 64))
	}
	return b.String()
}

type convertCmd struct {
	offline bool
}

func (*convertCmd) Name() string     { return "convert" }
func (*convertCmd) Synopsis() string { return "convert an amount between two currencies" }
func (*convertCmd) Usage() string {
	return `finntra convert [-offline] <amount> <from> <to>

  Converts amount from one currency to another through the US dollar rates
  and prints it formatted in the target currency.

Usage Examples:
$ finntra convert 100 USD EUR
€85.00
`
}

func (c *convertCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.offline, "offline", false, "Do not fetch, use the built-in rates.")
}

func (c *convertCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 3 {
		fmt.Fprintln(os.Stderr, "Error: expected <amount> <from> <to>")
		return subcommands.ExitUsageError
	}
	amount, err := parseAmount(f.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	cfg, logger, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer logger.Sync()

	conv := currency.NewConverter(newRates(ctx, cfg, logger, c.offline))
	to := f.Arg(2)
	fmt.Println(currency.FormatIn(conv.Convert(amount, f.Arg(1), to), to))
	return subcommands.ExitSuccess
}

type formatCmd struct {
	offline bool
}

func (*formatCmd) Name() string     { return "format" }
func (*formatCmd) Synopsis() string { return "format a US dollar amount in a display currency" }
func (*formatCmd) Usage() string {
	return `finntra format [-offline] <amount> [<currency>]

  Converts a stored amount, always in US dollars, to the display currency
  and formats it the way the application shows it. The currency defaults
  to USD. Unknown currency codes are used as a prefix.
`
}

func (c *formatCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.offline, "offline", false, "Do not fetch, use the built-in rates.")
}

func (c *formatCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() < 1 || f.NArg() > 2 {
		fmt.Fprintln(os.Stderr, "Error: expected <amount> [<currency>]")
		return subcommands.ExitUsageError
	}
	amount, err := parseAmount(f.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	code := currency.Pivot
	if f.NArg() == 2 {
		code = f.Arg(1)
	}
	cfg, logger, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer logger.Sync()

	conv := currency.NewConverter(newRates(ctx, cfg, logger, c.offline))
	fmt.Println(conv.Format(amount, code))
	return subcommands.ExitSuccess
}

func parseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}
