package finntra

// Snapshot is the complete in-memory copy of a user's financial data.
type Snapshot struct {
	Profile      Profile       `json:"profile"`
	Banks        []BankAccount `json:"banks"`
	SavingsGoals []SavingsGoal `json:"savings_goals"`
	Transactions []Transaction `json:"transactions"` // newest first
	Settings     Settings      `json:"settings"`
}

// IsNewUser reports whether the user has not started using the application:
// no real name, no bank account and no transaction.
//
// It is derived on every load rather than trusting the profile's stored flags.
func (s Snapshot) IsNewUser() bool {
	return s.Profile.HasPlaceholderName() && len(s.Banks) == 0 && len(s.Transactions) == 0
}

// Currency returns the user's display currency.
func (s Snapshot) Currency() string {
	if s.Settings.Currency == "" {
		return DefaultCurrency
	}
	return s.Settings.Currency
}

// Totals returns the sum of income and expense magnitudes.
func (s Snapshot) Totals() (income, expense float64) {
	for _, t := range s.Transactions {
		switch t.Type {
		case Income:
			income += t.Amount
		case Expense:
			expense += t.Amount
		}
	}
	return income, expense
}
