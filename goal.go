package finntra

import "time"

// SavingsGoal tracks progress towards a target amount.
type SavingsGoal struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Name          string    `json:"name" validate:"required"`
	CurrentAmount float64   `json:"current_amount" validate:"gte=0"`
	TargetAmount  float64   `json:"target_amount" validate:"gt=0"`
	CreatedAt     time.Time `json:"created_at"`
}

// Progress returns the completion ratio clamped to [0, 1].
func (g SavingsGoal) Progress() float64 {
	if g.TargetAmount <= 0 {
		return 0
	}
	p := g.CurrentAmount / g.TargetAmount
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Reached reports whether the goal's target has been met.
func (g SavingsGoal) Reached() bool { return g.TargetAmount > 0 && g.CurrentAmount >= g.TargetAmount }
