package finntra

import (
	"math"
	"strings"
	"time"

	"github.com/etnz/finntra/date"
)

// TransactionType carries the direction of a transaction.
type TransactionType string

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// Transaction is a single income or expense entry.
//
// Amount is stored as a non-negative magnitude, the direction is carried by Type.
type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Amount      float64         `json:"amount" validate:"gte=0"`
	Description string          `json:"description"`
	Category    string          `json:"category" validate:"required"`
	Date        date.Date       `json:"date"`
	Type        TransactionType `json:"type" validate:"oneof=income expense"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Signed returns the amount with a negative sign for expenses.
func (t Transaction) Signed() float64 {
	if t.Type == Expense {
		return -t.Amount
	}
	return t.Amount
}

// NormalizeTransaction converts t to the stored convention: a magnitude plus a type.
//
// An explicit type wins over the sign of the amount. Without a type a negative
// amount is an expense and a non-negative one an income. A missing date
// defaults to today and a missing category to "Other".
func NormalizeTransaction(t Transaction) Transaction {
	t.Type = TransactionType(strings.ToLower(strings.TrimSpace(string(t.Type))))
	if t.Type == "" {
		t.Type = Income
		if t.Amount < 0 {
			t.Type = Expense
		}
	}
	t.Amount = math.Abs(t.Amount)
	t.Description = strings.TrimSpace(t.Description)
	t.Category = strings.TrimSpace(t.Category)
	if t.Category == "" {
		t.Category = "Other"
	}
	if t.Date.IsZero() {
		t.Date = date.Today()
	}
	return t
}
