package finntra

import (
	"strings"
	"time"
)

// Profile is the one-per-user identity record. It is created at sign-up and
// only ever patched afterwards.
type Profile struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Email               string    `json:"email" validate:"omitempty,email"`
	Phone               string    `json:"phone"`
	Address             string    `json:"address"`
	Occupation          string    `json:"occupation"`
	MonthlyIncome       float64   `json:"monthly_income" validate:"gte=0"`
	PhotoURL            string    `json:"profile_photo"`
	OnboardingCompleted bool      `json:"onboarding_completed"`
	HasBankAccount      bool      `json:"has_bank_account"`
	CreatedAt           time.Time `json:"created_at"`
}

// ProfilePatch is a partial update of a Profile, nil fields are left untouched.
type ProfilePatch struct {
	Name                *string  `json:"name,omitempty"`
	Email               *string  `json:"email,omitempty" validate:"omitempty,email"`
	Phone               *string  `json:"phone,omitempty"`
	Address             *string  `json:"address,omitempty"`
	Occupation          *string  `json:"occupation,omitempty"`
	MonthlyIncome       *float64 `json:"monthly_income,omitempty" validate:"omitempty,gte=0"`
	PhotoURL            *string  `json:"profile_photo,omitempty"`
	OnboardingCompleted *bool    `json:"onboarding_completed,omitempty"`
	HasBankAccount      *bool    `json:"has_bank_account,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p ProfilePatch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil && p.Phone == nil && p.Address == nil &&
		p.Occupation == nil && p.MonthlyIncome == nil && p.PhotoURL == nil &&
		p.OnboardingCompleted == nil && p.HasBankAccount == nil
}

// Apply returns a copy of p with the patch applied.
func (p Profile) Apply(patch ProfilePatch) Profile {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&p.Name, patch.Name)
	set(&p.Email, patch.Email)
	set(&p.Phone, patch.Phone)
	set(&p.Address, patch.Address)
	set(&p.Occupation, patch.Occupation)
	set(&p.PhotoURL, patch.PhotoURL)
	if patch.MonthlyIncome != nil {
		p.MonthlyIncome = *patch.MonthlyIncome
	}
	if patch.OnboardingCompleted != nil {
		p.OnboardingCompleted = *patch.OnboardingCompleted
	}
	if patch.HasBankAccount != nil {
		p.HasBankAccount = *patch.HasBankAccount
	}
	return p
}

// placeholderNames are the values sign-up forms leave in the name field.
var placeholderNames = map[string]bool{
	"user":      true,
	"new user":  true,
	"your name": true,
	"name":      true,
}

// HasPlaceholderName reports whether the profile name is absent, blank or a
// known placeholder.
func (p Profile) HasPlaceholderName() bool {
	name := strings.ToLower(strings.TrimSpace(p.Name))
	return name == "" || placeholderNames[name]
}
