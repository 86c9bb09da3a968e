package currency

import (
	"fmt"
	"math"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Rates returns the number of units of a currency per USD.
type Rates interface {
	Get(code string) float64
}

// Pivot is the currency every rate is expressed against.
const Pivot = "USD"

// Converter converts and formats amounts using a rate source.
type Converter struct {
	Rates Rates
}

// NewConverter returns a Converter reading rates from r.
func NewConverter(r Rates) *Converter { return &Converter{Rates: r} }

// Convert converts amount from one currency to another through USD.
// The result is not rounded.
func (c *Converter) Convert(amount float64, from, to string) float64 {
	from, to = normCode(from), normCode(to)
	if from == to {
		return amount
	}
	return amount / c.rate(from) * c.rate(to)
}

// Format converts a USD amount into code and renders it with the currency
// symbol.
func (c *Converter) Format(amount float64, code string) string {
	return FormatIn(c.Convert(amount, Pivot, code), code)
}

func (c *Converter) rate(code string) float64 {
	if c.Rates == nil {
		return 1
	}
	r := c.Rates.Get(code)
	if r <= 0 || math.IsNaN(r) || math.IsInf(r, 0) {
		return 1
	}
	return r
}

// FormatIn renders an amount already expressed in code. Currencies without a
// minor unit get no decimals, all others two. Unknown codes are used as a
// prefix.
func FormatIn(amount float64, code string) string {
	code = normCode(code)
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return fmt.Sprintf("%s %v", code, amount)
	}

	// money.New never returns a nil currency, unknown codes have no template.
	cur := money.New(0, code).Currency()
	var f *money.Formatter
	if cur == nil || cur.Template == "" {
		f = money.NewFormatter(2, ".", ",", code, "$ 1")
	} else {
		fraction := 2
		if cur.Fraction == 0 {
			fraction = 0
		}
		symbol := cur.Grapheme
		if s, ok := Lookup(code); ok {
			symbol = s.Symbol
		}
		f = money.NewFormatter(fraction, cur.Decimal, cur.Thousand, symbol, cur.Template)
	}
	minor := decimal.NewFromFloat(amount).Round(int32(f.Fraction)).Shift(int32(f.Fraction))
	return f.Format(minor.IntPart())
}

func normCode(code string) string { return strings.ToUpper(strings.TrimSpace(code)) }
