package finntra

import (
	"strings"
	"time"
)

// BankAccount is the metadata of one of the user's bank accounts.
//
// Balance is edited independently, it is never derived from transactions.
type BankAccount struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Name          string    `json:"name" validate:"required"`
	Type          string    `json:"type" validate:"required"`
	Balance       float64   `json:"balance"`
	AccountNumber string    `json:"account_number"`
	RoutingNumber string    `json:"routing_number"`
	CreatedAt     time.Time `json:"created_at"`
}

// MaskNumber hides all but the last four digits of an account or routing number.
//
// Already masked numbers are returned unchanged.
func MaskNumber(number string) string {
	number = strings.TrimSpace(number)
	if number == "" || strings.HasPrefix(number, "****") {
		return number
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)
	if len(digits) <= 4 {
		return "****" + digits
	}
	return "****" + digits[len(digits)-4:]
}

// Masked returns a copy of b with its numbers masked.
func (b BankAccount) Masked() BankAccount {
	b.AccountNumber = MaskNumber(b.AccountNumber)
	b.RoutingNumber = MaskNumber(b.RoutingNumber)
	return b
}
