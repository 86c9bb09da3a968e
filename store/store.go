// Package store is the client of the hosted backend: per-user row access to
// the five application tables, a change feed, and object storage.
package store

import (
	"context"
	"errors"
	"io"

	"github.com/etnz/finntra"
)

// Table names a backend table.
type Table string

const (
	Profiles     Table = "profiles"
	BankAccounts Table = "bank_accounts"
	SavingsGoals Table = "savings_goals"
	Transactions Table = "transactions"
	UserSettings Table = "user_settings"
)

// Tables lists every application table.
var Tables = []Table{Profiles, BankAccounts, SavingsGoals, Transactions, UserSettings}

// ChangeKind is the kind of row change.
type ChangeKind string

const (
	Insert ChangeKind = "insert"
	Update ChangeKind = "update"
	Delete ChangeKind = "delete"
)

// ChangeEvent notifies that a row of Table owned by UserID changed.
// It carries no row payload.
type ChangeEvent struct {
	Table  Table      `json:"table"`
	Kind   ChangeKind `json:"kind"`
	UserID string     `json:"user_id"`
}

// Subscription is an open change feed.
type Subscription interface {
	Events() <-chan ChangeEvent
	Close() error
}

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store is the row level contract of the backend. Every call is scoped to a
// user id.
type Store interface {
	Profile(ctx context.Context, userID string) (finntra.Profile, error)
	CreateProfile(ctx context.Context, p finntra.Profile) error
	UpdateProfile(ctx context.Context, userID string, patch finntra.ProfilePatch) error

	Banks(ctx context.Context, userID string) ([]finntra.BankAccount, error)
	InsertBank(ctx context.Context, b finntra.BankAccount) (finntra.BankAccount, error)
	UpdateBank(ctx context.Context, b finntra.BankAccount) error
	DeleteBank(ctx context.Context, userID, id string) error

	SavingsGoals(ctx context.Context, userID string) ([]finntra.SavingsGoal, error)
	InsertSavingsGoal(ctx context.Context, g finntra.SavingsGoal) (finntra.SavingsGoal, error)
	UpdateSavingsGoal(ctx context.Context, g finntra.SavingsGoal) error
	DeleteSavingsGoal(ctx context.Context, userID, id string) error

	// Transactions returns the user's transactions, newest first.
	Transactions(ctx context.Context, userID string) ([]finntra.Transaction, error)
	InsertTransaction(ctx context.Context, t finntra.Transaction) (finntra.Transaction, error)
	UpdateTransaction(ctx context.Context, t finntra.Transaction) error
	DeleteTransaction(ctx context.Context, userID, id string) error

	// Settings returns ErrNotFound when the user has no settings row.
	Settings(ctx context.Context, userID string) (finntra.Settings, error)
	UpsertSettings(ctx context.Context, s finntra.Settings) error

	Ping(ctx context.Context) error

	// Subscribe opens a change feed for userID restricted to tables, all
	// tables when none are given.
	Subscribe(ctx context.Context, userID string, tables ...Table) (Subscription, error)
}

// ObjectStorage stores binary objects and returns their public URL.
type ObjectStorage interface {
	Upload(ctx context.Context, bucket, key, contentType string, body io.Reader, size int64) (string, error)
}

// tableSet returns the lookup set for tables, all tables when empty.
func tableSet(tables []Table) map[Table]bool {
	if len(tables) == 0 {
		tables = Tables
	}
	set := make(map[Table]bool, len(tables))
	for _, t := range tables {
		set[t] = true
	}
	return set
}
