package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/etnz/finntra"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

//go:embed schema.sql
var schema string

// ChannelPrefix prefixes the per-user notification channel.
const ChannelPrefix = "finntra_changes:"

// Channel returns the notification channel of userID.
func Channel(userID string) string { return ChannelPrefix + userID }

// Postgres is the Store backed by the hosted Postgres database.
type Postgres struct {
	db     *sql.DB
	dsn    string
	logger *zap.Logger
}

// OpenPostgres connects to dsn and checks the connection.
func OpenPostgres(ctx context.Context, dsn string, logger *zap.Logger) (*Postgres, error) {
	if dsn == "" {
		return nil, errors.New("database url is not set")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}
	logger.Info("connected to database")
	return &Postgres{db: db, dsn: dsn, logger: logger}, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() error { return p.db.Close() }

// Migrate creates the tables and change triggers when missing.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("error applying schema: %w", err)
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Profile(ctx context.Context, userID string) (finntra.Profile, error) {
	query := `
		SELECT id, name, email, phone, address, occupation, monthly_income,
		       profile_photo, onboarding_completed, has_bank_account, created_at
		FROM profiles
		WHERE id = $1
	`
	var pr finntra.Profile
	err := p.db.QueryRowContext(ctx, query, userID).Scan(&pr.ID, &pr.Name, &pr.Email, &pr.Phone,
		&pr.Address, &pr.Occupation, &pr.MonthlyIncome, &pr.PhotoURL, &pr.OnboardingCompleted,
		&pr.HasBankAccount, &pr.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return pr, fmt.Errorf("profile %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return pr, fmt.Errorf("error getting profile %s: %w", userID, err)
	}
	return pr, nil
}

func (p *Postgres) CreateProfile(ctx context.Context, pr finntra.Profile) error {
	query := `
		INSERT INTO profiles (id, name, email, phone, address, occupation, monthly_income,
		                      profile_photo, onboarding_completed, has_bank_account)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := p.db.ExecContext(ctx, query, pr.ID, pr.Name, pr.Email, pr.Phone, pr.Address,
		pr.Occupation, pr.MonthlyIncome, pr.PhotoURL, pr.OnboardingCompleted, pr.HasBankAccount)
	if err != nil {
		return fmt.Errorf("error writing %s: %w", Profiles, err)
	}
	return nil
}

func (p *Postgres) UpdateProfile(ctx context.Context, userID string, patch finntra.ProfilePatch) error {
	var sets []string
	var args []any
	add := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Email != nil {
		add("email", *patch.Email)
	}
	if patch.Phone != nil {
		add("phone", *patch.Phone)
	}
	if patch.Address != nil {
		add("address", *patch.Address)
	}
	if patch.Occupation != nil {
		add("occupation", *patch.Occupation)
	}
	if patch.MonthlyIncome != nil {
		add("monthly_income", *patch.MonthlyIncome)
	}
	if patch.PhotoURL != nil {
		add("profile_photo", *patch.PhotoURL)
	}
	if patch.OnboardingCompleted != nil {
		add("onboarding_completed", *patch.OnboardingCompleted)
	}
	if patch.HasBankAccount != nil {
		add("has_bank_account", *patch.HasBankAccount)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, userID)
	query := fmt.Sprintf("UPDATE profiles SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	return p.execOne(ctx, Profiles, userID, query, args...)
}

func (p *Postgres) Banks(ctx context.Context, userID string) ([]finntra.BankAccount, error) {
	query := `
		SELECT id, user_id, name, type, balance, account_number, routing_number, created_at
		FROM bank_accounts
		WHERE user_id = $1
		ORDER BY created_at
	`
	rows, err := p.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", BankAccounts, err)
	}
	defer rows.Close()
	var banks []finntra.BankAccount
	for rows.Next() {
		var b finntra.BankAccount
		if err := rows.Scan(&b.ID, &b.UserID, &b.Name, &b.Type, &b.Balance, &b.AccountNumber, &b.RoutingNumber, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("error reading %s: %w", BankAccounts, err)
		}
		banks = append(banks, b)
	}
	return banks, rows.Err()
}

func (p *Postgres) InsertBank(ctx context.Context, b finntra.BankAccount) (finntra.BankAccount, error) {
	b = b.Masked()
	b.ID = uuid.NewString()
	query := `
		INSERT INTO bank_accounts (id, user_id, name, type, balance, account_number, routing_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	err := p.db.QueryRowContext(ctx, query, b.ID, b.UserID, b.Name, b.Type, b.Balance, b.AccountNumber, b.RoutingNumber).Scan(&b.CreatedAt)
	if err != nil {
		return b, fmt.Errorf("error writing %s: %w", BankAccounts, err)
	}
	return b, nil
}

func (p *Postgres) UpdateBank(ctx context.Context, b finntra.BankAccount) error {
	b = b.Masked()
	query := `
		UPDATE bank_accounts
		SET name = $1, type = $2, balance = $3, account_number = $4, routing_number = $5
		WHERE id = $6 AND user_id = $7
	`
	return p.execOne(ctx, BankAccounts, b.ID, query, b.Name, b.Type, b.Balance, b.AccountNumber, b.RoutingNumber, b.ID, b.UserID)
}

func (p *Postgres) DeleteBank(ctx context.Context, userID, id string) error {
	return p.execOne(ctx, BankAccounts, id, `DELETE FROM bank_accounts WHERE id = $1 AND user_id = $2`, id, userID)
}

func (p *Postgres) SavingsGoals(ctx context.Context, userID string) ([]finntra.SavingsGoal, error) {
	query := `
		SELECT id, user_id, name, current_amount, target_amount, created_at
		FROM savings_goals
		WHERE user_id = $1
		ORDER BY created_at
	`
	rows, err := p.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", SavingsGoals, err)
	}
	defer rows.Close()
	var goals []finntra.SavingsGoal
	for rows.Next() {
		var g finntra.SavingsGoal
		if err := rows.Scan(&g.ID, &g.UserID, &g.Name, &g.CurrentAmount, &g.TargetAmount, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("error reading %s: %w", SavingsGoals, err)
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

func (p *Postgres) InsertSavingsGoal(ctx context.Context, g finntra.SavingsGoal) (finntra.SavingsGoal, error) {
	g.ID = uuid.NewString()
	query := `
		INSERT INTO savings_goals (id, user_id, name, current_amount, target_amount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	err := p.db.QueryRowContext(ctx, query, g.ID, g.UserID, g.Name, g.CurrentAmount, g.TargetAmount).Scan(&g.CreatedAt)
	if err != nil {
		return g, fmt.Errorf("error writing %s: %w", SavingsGoals, err)
	}
	return g, nil
}

func (p *Postgres) UpdateSavingsGoal(ctx context.Context, g finntra.SavingsGoal) error {
	query := `
		UPDATE savings_goals
		SET name = $1, current_amount = $2, target_amount = $3
		WHERE id = $4 AND user_id = $5
	`
	return p.execOne(ctx, SavingsGoals, g.ID, query, g.Name, g.CurrentAmount, g.TargetAmount, g.ID, g.UserID)
}

func (p *Postgres) DeleteSavingsGoal(ctx context.Context, userID, id string) error {
	return p.execOne(ctx, SavingsGoals, id, `DELETE FROM savings_goals WHERE id = $1 AND user_id = $2`, id, userID)
}

func (p *Postgres) Transactions(ctx context.Context, userID string) ([]finntra.Transaction, error) {
	query := `
		SELECT id, user_id, amount, description, category, date, type, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := p.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", Transactions, err)
	}
	defer rows.Close()
	var txs []finntra.Transaction
	for rows.Next() {
		var t finntra.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Description, &t.Category, &t.Date, &t.Type, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("error reading %s: %w", Transactions, err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (p *Postgres) InsertTransaction(ctx context.Context, t finntra.Transaction) (finntra.Transaction, error) {
	t.ID = uuid.NewString()
	query := `
		INSERT INTO transactions (id, user_id, amount, description, category, date, type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	err := p.db.QueryRowContext(ctx, query, t.ID, t.UserID, t.Amount, t.Description, t.Category, t.Date, t.Type).Scan(&t.CreatedAt)
	if err != nil {
		return t, fmt.Errorf("error writing %s: %w", Transactions, err)
	}
	return t, nil
}

func (p *Postgres) UpdateTransaction(ctx context.Context, t finntra.Transaction) error {
	query := `
		UPDATE transactions
		SET amount = $1, description = $2, category = $3, date = $4, type = $5
		WHERE id = $6 AND user_id = $7
	`
	return p.execOne(ctx, Transactions, t.ID, query, t.Amount, t.Description, t.Category, t.Date, t.Type, t.ID, t.UserID)
}

func (p *Postgres) DeleteTransaction(ctx context.Context, userID, id string) error {
	return p.execOne(ctx, Transactions, id, `DELETE FROM transactions WHERE id = $1 AND user_id = $2`, id, userID)
}

func (p *Postgres) Settings(ctx context.Context, userID string) (finntra.Settings, error) {
	s := finntra.Settings{UserID: userID}
	err := p.db.QueryRowContext(ctx, `SELECT currency FROM user_settings WHERE user_id = $1`, userID).Scan(&s.Currency)
	if errors.Is(err, sql.ErrNoRows) {
		return s, fmt.Errorf("settings %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return s, fmt.Errorf("error reading %s: %w", UserSettings, err)
	}
	return s, nil
}

func (p *Postgres) UpsertSettings(ctx context.Context, s finntra.Settings) error {
	query := `
		INSERT INTO user_settings (user_id, currency)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET currency = EXCLUDED.currency
	`
	if _, err := p.db.ExecContext(ctx, query, s.UserID, s.Currency); err != nil {
		return fmt.Errorf("error writing %s: %w", UserSettings, err)
	}
	return nil
}

// execOne runs a write expected to touch exactly one row.
func (p *Postgres) execOne(ctx context.Context, table Table, id, query string, args ...any) error {
	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("error writing %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error writing %s: %w", table, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", table, id, ErrNotFound)
	}
	return nil
}

// Subscribe listens on the user's notification channel. Events of other
// tables are filtered out.
func (p *Postgres) Subscribe(ctx context.Context, userID string, tables ...Table) (Subscription, error) {
	logger := p.logger.With(zap.String("user_id", userID))
	listener := pq.NewListener(p.dsn, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn("change feed connection event", zap.Int("event", int(ev)), zap.Error(err))
		}
	})
	if err := listener.Listen(Channel(userID)); err != nil {
		listener.Close()
		return nil, fmt.Errorf("error listening for changes: %w", err)
	}
	s := &pgSub{
		listener: listener,
		userID:   userID,
		tables:   tableSet(tables),
		events:   make(chan ChangeEvent, 16),
		done:     make(chan struct{}),
		logger:   logger,
	}
	go s.loop(ctx)
	return s, nil
}

type pgSub struct {
	listener *pq.Listener
	userID   string
	tables   map[Table]bool
	events   chan ChangeEvent
	done     chan struct{}
	once     sync.Once
	logger   *zap.Logger
}

func (s *pgSub) Events() <-chan ChangeEvent { return s.events }

func (s *pgSub) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.listener.Close()
	})
	return err
}

func (s *pgSub) loop(ctx context.Context) {
	defer close(s.events)
	for {
		select {
		case <-ctx.Done():
			s.Close()
			return
		case <-s.done:
			return
		case n, ok := <-s.listener.Notify:
			if !ok {
				return
			}
			// nil is sent after a reconnection: changes may have been missed.
			if n == nil {
				s.deliver(ChangeEvent{Table: Profiles, Kind: Update, UserID: s.userID})
				continue
			}
			ev, err := parseNotification(n.Extra)
			if err != nil {
				s.logger.Warn("ignoring malformed change notification", zap.String("payload", n.Extra), zap.Error(err))
				continue
			}
			if s.tables[ev.Table] {
				s.deliver(ev)
			}
		}
	}
}

func (s *pgSub) deliver(ev ChangeEvent) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func parseNotification(payload string) (ChangeEvent, error) {
	var ev ChangeEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return ev, err
	}
	if ev.Table == "" {
		return ev, errors.New("missing table")
	}
	return ev, nil
}

var _ Store = (*Postgres)(nil)
