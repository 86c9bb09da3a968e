package finntra

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks the struct tags of any domain value (Transaction, BankAccount,
// SavingsGoal, Settings, Profile and ProfilePatch).
func Validate(v any) error {
	return validate.Struct(v)
}
