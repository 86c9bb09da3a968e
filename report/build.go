// Package report builds a statement of a user's finances and renders it as
// markdown, HTML or PDF.
package report

import (
	"sort"
	"strings"
	"time"

	"github.com/etnz/finntra"
	"github.com/shopspring/decimal"
)

const (
	// MaxTransactions is the number of most recent transactions listed.
	MaxTransactions = 50
	// RowsPerPage is the number of transaction rows on a PDF page.
	RowsPerPage = 25
)

// Formatter renders an amount stored in USD in a display currency.
type Formatter interface {
	Format(amount float64, code string) string
}

// Statement is a report ready to render, every amount already formatted.
type Statement struct {
	Title       string
	Name        string
	Currency    string
	GeneratedAt time.Time

	Income  string
	Expense string
	Net     string

	Categories   []CategoryLine
	Accounts     []AccountLine
	Goals        []GoalLine
	Transactions []TransactionLine

	// Count is the number of transactions of the user, Transactions holds at
	// most MaxTransactions of them.
	Count int
}

// Truncated reports whether older transactions were left out.
func (s Statement) Truncated() bool { return s.Count > len(s.Transactions) }

type CategoryLine struct {
	Category string
	Amount   string
	Share    string
}

type AccountLine struct {
	Name    string
	Type    string
	Number  string
	Balance string
}

type GoalLine struct {
	Name     string
	Current  string
	Target   string
	Progress string
}

type TransactionLine struct {
	Date        string
	Description string
	Category    string
	Type        string
	Amount      string
}

// Build computes the statement of snap in the display currency code, or the
// user's currency when code is empty.
func Build(snap finntra.Snapshot, f Formatter, code string, now time.Time) Statement {
	if code == "" {
		code = snap.Currency()
	}
	code = strings.ToUpper(code)
	money := func(d decimal.Decimal) string { return f.Format(d.InexactFloat64(), code) }

	s := Statement{
		Title:       "Financial Statement",
		Name:        strings.TrimSpace(snap.Profile.Name),
		Currency:    code,
		GeneratedAt: now,
		Count:       len(snap.Transactions),
	}
	if snap.Profile.HasPlaceholderName() {
		s.Name = ""
	}

	var income, expense decimal.Decimal
	byCategory := map[string]decimal.Decimal{}
	for _, t := range snap.Transactions {
		amount := decimal.NewFromFloat(t.Amount)
		switch t.Type {
		case finntra.Income:
			income = income.Add(amount)
		case finntra.Expense:
			expense = expense.Add(amount)
			byCategory[t.Category] = byCategory[t.Category].Add(amount)
		}
	}
	s.Income = money(income)
	s.Expense = money(expense)
	s.Net = money(income.Sub(expense))

	categories := make([]string, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	// largest first, then by name.
	sort.Slice(categories, func(i, j int) bool {
		a, b := byCategory[categories[i]], byCategory[categories[j]]
		if !a.Equal(b) {
			return a.GreaterThan(b)
		}
		return categories[i] < categories[j]
	})
	hundred := decimal.NewFromInt(100)
	for _, c := range categories {
		share := decimal.Zero
		if expense.IsPositive() {
			share = byCategory[c].Div(expense).Mul(hundred).Round(0)
		}
		s.Categories = append(s.Categories, CategoryLine{
			Category: c,
			Amount:   money(byCategory[c]),
			Share:    share.String() + "%",
		})
	}

	for _, b := range snap.Banks {
		s.Accounts = append(s.Accounts, AccountLine{
			Name:    b.Name,
			Type:    b.Type,
			Number:  finntra.MaskNumber(b.AccountNumber),
			Balance: money(decimal.NewFromFloat(b.Balance)),
		})
	}

	for _, g := range snap.SavingsGoals {
		s.Goals = append(s.Goals, GoalLine{
			Name:     g.Name,
			Current:  money(decimal.NewFromFloat(g.CurrentAmount)),
			Target:   money(decimal.NewFromFloat(g.TargetAmount)),
			Progress: decimal.NewFromFloat(g.Progress()).Mul(hundred).Round(0).String() + "%",
		})
	}

	txs := snap.Transactions
	if len(txs) > MaxTransactions {
		txs = txs[:MaxTransactions]
	}
	for _, t := range txs {
		s.Transactions = append(s.Transactions, TransactionLine{
			Date:        t.Date.String(),
			Description: t.Description,
			Category:    t.Category,
			Type:        string(t.Type),
			Amount:      f.Format(t.Signed(), code),
		})
	}
	return s
}
