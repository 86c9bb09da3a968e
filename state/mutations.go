package state

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/etnz/finntra"
	"github.com/etnz/finntra/currency"
	"github.com/etnz/finntra/notify"
	"go.uber.org/zap"
)

// ErrMissingID is returned by updates and deletes without a row id.
var ErrMissingID = errors.New("missing id")

// ErrUnsupportedCurrency is returned when the display currency is not selectable.
var ErrUnsupportedCurrency = errors.New("unsupported currency")

// current returns the signed-in user and a copy of the snapshot.
func (s *Synchronizer) current() (user userState, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return user, ErrUnauthenticated
	}
	return userState{
		id:     s.user.ID,
		email:  s.user.Email,
		snap:   s.snap,
		loaded: s.loaded,
	}, nil
}

type userState struct {
	id, email string
	snap      finntra.Snapshot
	loaded    bool
}

// AddTransaction stores a new transaction for the signed-in user. The first
// transaction of a new user completes the onboarding.
func (s *Synchronizer) AddTransaction(ctx context.Context, t finntra.Transaction) (finntra.Transaction, error) {
	u, err := s.current()
	if err != nil {
		return t, err
	}
	t = finntra.NormalizeTransaction(t)
	t.UserID = u.id
	if err := finntra.Validate(t); err != nil {
		return t, err
	}
	t, err = s.store.InsertTransaction(ctx, t)
	if err != nil {
		return t, err
	}

	if u.loaded && u.snap.IsNewUser() && !u.snap.Profile.OnboardingCompleted && s.claimOnboarding(u.id) {
		done := true
		if err := s.store.UpdateProfile(ctx, u.id, finntra.ProfilePatch{OnboardingCompleted: &done}); err != nil {
			s.logger.Warn("cannot complete onboarding", zap.String("user_id", u.id), zap.Error(err))
			s.releaseOnboarding(u.id)
		} else {
			s.alert(ctx, notify.Alert{
				Template: notify.Welcome,
				UserID:   u.id,
				To:       u.email,
				Data:     map[string]string{"Name": displayName(u.snap.Profile)},
			})
		}
	}
	if t.Type == finntra.Expense && s.largeExpense > 0 && t.Amount >= s.largeExpense {
		s.alert(ctx, notify.Alert{
			Template: notify.LargeExpense,
			UserID:   u.id,
			To:       u.email,
			Data: map[string]string{
				"Amount":      s.money(t.Amount, u.snap.Currency()),
				"Category":    t.Category,
				"Description": t.Description,
			},
		})
	}
	return t, nil
}

// claimOnboarding reports whether the caller is the first to complete the
// onboarding of userID. The snapshot only catches up on the next reload.
func (s *Synchronizer) claimOnboarding(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil || s.user.ID != userID || s.onboarded {
		return false
	}
	s.onboarded = true
	return true
}

func (s *Synchronizer) releaseOnboarding(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user != nil && s.user.ID == userID {
		s.onboarded = false
	}
}

// UpdateTransaction replaces a transaction of the signed-in user.
func (s *Synchronizer) UpdateTransaction(ctx context.Context, t finntra.Transaction) error {
	u, err := s.current()
	if err != nil {
		return err
	}
	if t.ID == "" {
		return ErrMissingID
	}
	t = finntra.NormalizeTransaction(t)
	t.UserID = u.id
	if err := finntra.Validate(t); err != nil {
		return err
	}
	return s.store.UpdateTransaction(ctx, t)
}

// DeleteTransaction removes a transaction of the signed-in user.
func (s *Synchronizer) DeleteTransaction(ctx context.Context, id string) error {
	u, err := s.current()
	if err != nil {
		return err
	}
	if id == "" {
		return ErrMissingID
	}
	return s.store.DeleteTransaction(ctx, u.id, id)
}

// AddBank stores a new bank account. Numbers are masked before they leave
// the process. The first account sets the profile's bank account flag.
func (s *Synchronizer) AddBank(ctx context.Context, b finntra.BankAccount) (finntra.BankAccount, error) {
	u, err := s.current()
	if err != nil {
		return b, err
	}
	b = b.Masked()
	b.UserID = u.id
	b.Name = strings.TrimSpace(b.Name)
	if err := finntra.Validate(b); err != nil {
		return b, err
	}
	b, err = s.store.InsertBank(ctx, b)
	if err != nil {
		return b, err
	}
	if !u.snap.Profile.HasBankAccount {
		has := true
		if err := s.store.UpdateProfile(ctx, u.id, finntra.ProfilePatch{HasBankAccount: &has}); err != nil {
			s.logger.Warn("cannot flag bank account", zap.String("user_id", u.id), zap.Error(err))
		}
	}
	return b, nil
}

// UpdateBank replaces a bank account of the signed-in user.
func (s *Synchronizer) UpdateBank(ctx context.Context, b finntra.BankAccount) error {
	u, err := s.current()
	if err != nil {
		return err
	}
	if b.ID == "" {
		return ErrMissingID
	}
	b = b.Masked()
	b.UserID = u.id
	if err := finntra.Validate(b); err != nil {
		return err
	}
	return s.store.UpdateBank(ctx, b)
}

// DeleteBank removes a bank account of the signed-in user.
func (s *Synchronizer) DeleteBank(ctx context.Context, id string) error {
	u, err := s.current()
	if err != nil {
		return err
	}
	if id == "" {
		return ErrMissingID
	}
	return s.store.DeleteBank(ctx, u.id, id)
}

// AddSavingsGoal stores a new savings goal.
func (s *Synchronizer) AddSavingsGoal(ctx context.Context, g finntra.SavingsGoal) (finntra.SavingsGoal, error) {
	u, err := s.current()
	if err != nil {
		return g, err
	}
	g.UserID = u.id
	g.Name = strings.TrimSpace(g.Name)
	if err := finntra.Validate(g); err != nil {
		return g, err
	}
	return s.store.InsertSavingsGoal(ctx, g)
}

// UpdateSavingsGoal replaces a savings goal. Crossing the target sends a
// goal_reached alert.
func (s *Synchronizer) UpdateSavingsGoal(ctx context.Context, g finntra.SavingsGoal) error {
	u, err := s.current()
	if err != nil {
		return err
	}
	if g.ID == "" {
		return ErrMissingID
	}
	g.UserID = u.id
	g.Name = strings.TrimSpace(g.Name)
	if err := finntra.Validate(g); err != nil {
		return err
	}
	if err := s.store.UpdateSavingsGoal(ctx, g); err != nil {
		return err
	}
	var before finntra.SavingsGoal
	for _, prev := range u.snap.SavingsGoals {
		if prev.ID == g.ID {
			before = prev
			break
		}
	}
	if g.Reached() && !before.Reached() {
		s.alert(ctx, notify.Alert{
			Template: notify.GoalReached,
			UserID:   u.id,
			To:       u.email,
			Data: map[string]string{
				"Goal":   g.Name,
				"Target": s.money(g.TargetAmount, u.snap.Currency()),
			},
		})
	}
	return nil
}

// DeleteSavingsGoal removes a savings goal of the signed-in user.
func (s *Synchronizer) DeleteSavingsGoal(ctx context.Context, id string) error {
	u, err := s.current()
	if err != nil {
		return err
	}
	if id == "" {
		return ErrMissingID
	}
	return s.store.DeleteSavingsGoal(ctx, u.id, id)
}

// UpdateProfile patches the signed-in user's profile.
func (s *Synchronizer) UpdateProfile(ctx context.Context, patch finntra.ProfilePatch) error {
	u, err := s.current()
	if err != nil {
		return err
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		patch.Name = &name
	}
	if err := finntra.Validate(patch); err != nil {
		return err
	}
	if patch.IsEmpty() {
		return nil
	}
	return s.store.UpdateProfile(ctx, u.id, patch)
}

// UpdateCurrency changes the display currency of the signed-in user.
func (s *Synchronizer) UpdateCurrency(ctx context.Context, code string) error {
	u, err := s.current()
	if err != nil {
		return err
	}
	c, ok := currency.Lookup(code)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedCurrency, code)
	}
	settings := finntra.Settings{UserID: u.id, Currency: c.Code}
	if err := finntra.Validate(settings); err != nil {
		return err
	}
	return s.store.UpsertSettings(ctx, settings)
}

// alert sends a, failures are only logged.
func (s *Synchronizer) alert(ctx context.Context, a notify.Alert) {
	if err := s.sender.Send(ctx, a); err != nil {
		s.logger.Warn("cannot send alert", zap.String("template", a.Template), zap.String("user_id", a.UserID), zap.Error(err))
	}
}

func (s *Synchronizer) money(amount float64, code string) string {
	if s.format == nil {
		return fmt.Sprintf("%.2f %s", amount, code)
	}
	return s.format.Format(amount, code)
}

func displayName(p finntra.Profile) string {
	if p.HasPlaceholderName() {
		return ""
	}
	return strings.TrimSpace(p.Name)
}
