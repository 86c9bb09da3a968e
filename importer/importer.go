// Package importer reads transactions from bank export files.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/etnz/finntra"
	"github.com/etnz/finntra/date"
	"github.com/shopspring/decimal"
)

var (
	ErrUnsupportedExtension = errors.New("unsupported file type, expected .csv, .ofx, .qif, .xls or .xlsx")
	ErrNotImplemented       = errors.New("file type accepted but not supported yet, export as .csv")
)

// Extensions lists the accepted file extensions.
var Extensions = []string{".csv", ".ofx", ".qif", ".xls", ".xlsx"}

// RowError reports a rejected row.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

func (e RowError) Unwrap() error { return e.Err }

// Result holds the transactions read from a file and the rows that were rejected.
type Result struct {
	Transactions []finntra.Transaction
	Rejected     []RowError
}

// CheckExtension returns an error unless name has an accepted extension.
func CheckExtension(name string) error {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if e == ext {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedExtension, ext)
}

// Import reads the file name from r according to its extension.
func Import(name string, r io.Reader) (Result, error) {
	if err := CheckExtension(name); err != nil {
		return Result{}, err
	}
	if strings.ToLower(filepath.Ext(name)) != ".csv" {
		return Result{}, ErrNotImplemented
	}
	return ParseCSV(r)
}

// required columns of a csv export, type is optional.
var columns = []string{"date", "description", "category", "amount"}

// ParseCSV reads a csv file with a header line naming the columns date,
// description, category, amount and optionally type, in any order and case.
// Rows are normalized: without a type, negative amounts are expenses.
func ParseCSV(r io.Reader) (Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return Result{}, errors.New("empty file")
	}
	if err != nil {
		return Result{}, fmt.Errorf("cannot read header: %w", err)
	}
	index := make(map[string]int)
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, c := range columns {
		if _, ok := index[c]; !ok {
			return Result{}, fmt.Errorf("missing column %q in header", c)
		}
	}
	typeCol, hasType := index["type"]

	var res Result
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				res.Rejected = append(res.Rejected, RowError{Line: perr.Line, Err: perr.Err})
				continue
			}
			return res, err
		}
		line, _ := cr.FieldPos(0)
		if blank(record) {
			continue
		}
		field := func(name string) string {
			i := index[name]
			if i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		t := finntra.Transaction{
			Description: field("description"),
			Category:    field("category"),
		}
		if hasType && typeCol < len(record) {
			t.Type = finntra.TransactionType(record[typeCol])
		}
		if t.Date, err = parseDate(field("date")); err != nil {
			res.Rejected = append(res.Rejected, RowError{Line: line, Err: err})
			continue
		}
		amount, err := parseAmount(field("amount"))
		if err != nil {
			res.Rejected = append(res.Rejected, RowError{Line: line, Err: err})
			continue
		}
		t.Amount = amount.InexactFloat64()

		t = finntra.NormalizeTransaction(t)
		if err := finntra.Validate(t); err != nil {
			res.Rejected = append(res.Rejected, RowError{Line: line, Err: err})
			continue
		}
		res.Transactions = append(res.Transactions, t)
	}
	return res, nil
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// parseDate accepts ISO dates and US style month/day/year dates.
func parseDate(s string) (date.Date, error) {
	if s == "" {
		return date.Date{}, errors.New("missing date")
	}
	if d, err := date.Parse(s); err == nil {
		return d, nil
	}
	t, err := time.Parse("1/2/2006", s)
	if err != nil {
		return date.Date{}, fmt.Errorf("invalid date %q", s)
	}
	return date.Of(t), nil
}

// parseAmount reads an amount with an optional currency sign, thousands
// separators or accounting parentheses for negatives.
func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, errors.New("missing amount")
	}
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-', r == '+':
			return r
		}
		return -1
	}, s)
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}
