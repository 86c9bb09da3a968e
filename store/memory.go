package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/etnz/finntra"
	"github.com/google/uuid"
)

// Memory is an in-memory Store. Read and write errors can be injected per
// table, and reads are counted.
type Memory struct {
	mu           sync.Mutex
	profiles     map[string]finntra.Profile
	banks        map[string][]finntra.BankAccount
	goals        map[string][]finntra.SavingsGoal
	transactions map[string][]finntra.Transaction
	settings     map[string]finntra.Settings

	readErr  map[Table]error
	writeErr map[Table]error
	pingErr  error
	reads    map[Table]int
	subs     map[*memorySub]bool

	// OnRead, when set, is called at the start of every read, outside the lock.
	OnRead func(ctx context.Context, table Table, userID string)

	now func() time.Time
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		profiles:     make(map[string]finntra.Profile),
		banks:        make(map[string][]finntra.BankAccount),
		goals:        make(map[string][]finntra.SavingsGoal),
		transactions: make(map[string][]finntra.Transaction),
		settings:     make(map[string]finntra.Settings),
		readErr:      make(map[Table]error),
		writeErr:     make(map[Table]error),
		reads:        make(map[Table]int),
		subs:         make(map[*memorySub]bool),
		now:          time.Now,
	}
}

// FailReads makes every read of table return err. A nil err clears it.
func (m *Memory) FailReads(table Table, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr[table] = err
}

// FailWrites makes every write to table return err. A nil err clears it.
func (m *Memory) FailWrites(table Table, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr[table] = err
}

// FailPing makes Ping return err. A nil err clears it.
func (m *Memory) FailPing(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingErr = err
}

// Reads returns the number of reads of table so far.
func (m *Memory) Reads(table Table) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads[table]
}

// Emit delivers ev to matching subscribers as if another client wrote it.
func (m *Memory) Emit(ev ChangeEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emit(ev)
}

func (m *Memory) read(ctx context.Context, table Table, userID string) error {
	if m.OnRead != nil {
		m.OnRead(ctx, table, userID)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("error reading %s: %w", table, err)
	}
	m.mu.Lock()
	m.reads[table]++
	err := m.readErr[table]
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("error reading %s: %w", table, err)
	}
	return nil
}

// write must be called with m.mu held.
func (m *Memory) write(table Table) error {
	if err := m.writeErr[table]; err != nil {
		return fmt.Errorf("error writing %s: %w", table, err)
	}
	return nil
}

// emit must be called with m.mu held. Subscribers with a full buffer miss
// the event.
func (m *Memory) emit(ev ChangeEvent) {
	for s := range m.subs {
		if s.userID != ev.UserID || !s.tables[ev.Table] {
			continue
		}
		select {
		case s.events <- ev:
		default:
		}
	}
}

func (m *Memory) Profile(ctx context.Context, userID string) (finntra.Profile, error) {
	if err := m.read(ctx, Profiles, userID); err != nil {
		return finntra.Profile{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return finntra.Profile{}, fmt.Errorf("profile %s: %w", userID, ErrNotFound)
	}
	return p, nil
}

func (m *Memory) CreateProfile(ctx context.Context, p finntra.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write(Profiles); err != nil {
		return err
	}
	if _, ok := m.profiles[p.ID]; ok {
		return fmt.Errorf("error writing %s: profile %s already exists", Profiles, p.ID)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = m.now()
	}
	m.profiles[p.ID] = p
	m.emit(ChangeEvent{Profiles, Insert, p.ID})
	return nil
}

func (m *Memory) UpdateProfile(ctx context.Context, userID string, patch finntra.ProfilePatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write(Profiles); err != nil {
		return err
	}
	p, ok := m.profiles[userID]
	if !ok {
		return fmt.Errorf("profile %s: %w", userID, ErrNotFound)
	}
	m.profiles[userID] = p.Apply(patch)
	m.emit(ChangeEvent{Profiles, Update, userID})
	return nil
}

func (m *Memory) Banks(ctx context.Context, userID string) ([]finntra.BankAccount, error) {
	if err := m.read(ctx, BankAccounts, userID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]finntra.BankAccount(nil), m.banks[userID]...), nil
}

func (m *Memory) InsertBank(ctx context.Context, b finntra.BankAccount) (finntra.BankAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write(BankAccounts); err != nil {
		return b, err
	}
	b.ID = uuid.NewString()
	b.CreatedAt = m.now()
	b = b.Masked()
	m.banks[b.UserID] = append(m.banks[b.UserID], b)
	m.emit(ChangeEvent{BankAccounts, Insert, b.UserID})
	return b, nil
}

func (m *Memory) UpdateBank(ctx context.Context, b finntra.BankAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write(BankAccounts); err != nil {
		return err
	}
	rows := m.banks[b.UserID]
	for i := range rows {
		if rows[i].ID == b.ID {
			b.CreatedAt = rows[i].CreatedAt
			rows[i] = b.Masked()
			m.emit(ChangeEvent{BankAccounts, Update, b.UserID})
			return nil
		}
	}
	return fmt.Errorf("bank account %s: %w", b.ID, ErrNotFound)
}

func (m *Memory) DeleteBank(ctx context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write(BankAccounts); err != nil {
		return err
	}
	rows, ok := remove(m.banks[userID], id, func(b finntra.BankAccount) string { return b.ID })
	if !ok {
		return fmt.Errorf("bank account %s: %w", id, ErrNotFound)
	}
	m.banks[userID] = rows
	m.emit(ChangeEvent{BankAccounts, Delete, userID})
	return nil
}

func (m *Memory) SavingsGoals(ctx context.Context, userID string) ([]finntra.SavingsGoal, error) {
	if err := m.read(ctx, SavingsGoals, userID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]finntra.SavingsGoal(nil), m.goals[userID]...), nil
}

func (m *Memory) InsertSavingsGoal(ctx context.Context, g finntra.SavingsGoal) (finntra.SavingsGoal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write(SavingsGoals); err != nil {
		return g, err
	}
	g.ID = uuid.NewString()
	g.CreatedAt = m.now()
	m.goals[g.UserID] = append(m.goals[g.UserID], g)
	m.emit(ChangeEvent{SavingsGoals, Insert, g.UserID})
	return g, nil
}

func (m *Memory) UpdateSavingsGoal(ctx context.Context, g finntra.SavingsGoal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write(SavingsGoals); err != nil {
		return err
	}
	rows := m.goals[g.UserID]
	for i := range rows {
		if rows[i].ID == g.ID {
			g.CreatedAt = rows[i].CreatedAt
			rows[i] = g
			m.emit(ChangeEvent{SavingsGoals, Update, g.UserID})
			return nil
		}
	}
	return fmt.Errorf("savings goal %s: %w", g.ID, ErrNotFound)
}

func (m *Memory) DeleteSavingsGoal(ctx context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write(SavingsGoals); err != nil {
		return err
	}
	rows, ok := remove(m.goals[userID], id, func(g finntra.SavingsGoal) string { return g.ID })
	if !ok {
		return fmt.Errorf("savings goal %s: %w", id, ErrNotFound)
	}
	m.goals[userID] = rows
	m.emit(ChangeEvent{SavingsGoals, Delete, userID})
	return nil
}

func (m *Memory) Transactions(ctx context.Context, userID string) ([]finntra.Transaction, error) {
	if err := m.read(ctx, Transactions, userID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := append([]finntra.Transaction(nil), m.transactions[userID]...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
	return rows, nil
}

func (m *Memory) InsertTransaction(ctx context.Context, t finntra.Transaction) (finntra.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write(Transactions); err != nil {
		return t, err
	}
	t.ID = uuid.NewString()
	t.CreatedAt = m.now()
	// keep creation times strictly increasing so newest first is stable.
	if rows := m.transactions[t.UserID]; len(rows) > 0 {
		if last := rows[len(rows)-1].CreatedAt; !t.CreatedAt.After(last) {
			t.CreatedAt = last.Add(time.Microsecond)
		}
	}
	m.transactions[t.UserID] = append(m.transactions[t.UserID], t)
	m.emit(ChangeEvent{Transactions, Insert, t.UserID})
	return t, nil
}

func (m *Memory) UpdateTransaction(ctx context.Context, t finntra.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write(Transactions); err != nil {
		return err
	}
	rows := m.transactions[t.UserID]
	for i := range rows {
		if rows[i].ID == t.ID {
			t.CreatedAt = rows[i].CreatedAt
			rows[i] = t
			m.emit(ChangeEvent{Transactions, Update, t.UserID})
			return nil
		}
	}
	return fmt.Errorf("transaction %s: %w", t.ID, ErrNotFound)
}

func (m *Memory) DeleteTransaction(ctx context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write(Transactions); err != nil {
		return err
	}
	rows, ok := remove(m.transactions[userID], id, func(t finntra.Transaction) string { return t.ID })
	if !ok {
		return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	m.transactions[userID] = rows
	m.emit(ChangeEvent{Transactions, Delete, userID})
	return nil
}

func (m *Memory) Settings(ctx context.Context, userID string) (finntra.Settings, error) {
	if err := m.read(ctx, UserSettings, userID); err != nil {
		return finntra.Settings{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settings[userID]
	if !ok {
		return finntra.Settings{}, fmt.Errorf("settings %s: %w", userID, ErrNotFound)
	}
	return s, nil
}

func (m *Memory) UpsertSettings(ctx context.Context, s finntra.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write(UserSettings); err != nil {
		return err
	}
	kind := Update
	if _, ok := m.settings[s.UserID]; !ok {
		kind = Insert
	}
	m.settings[s.UserID] = s
	m.emit(ChangeEvent{UserSettings, kind, s.UserID})
	return nil
}

func (m *Memory) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pingErr
}

func (m *Memory) Subscribe(ctx context.Context, userID string, tables ...Table) (Subscription, error) {
	s := &memorySub{
		m:      m,
		userID: userID,
		tables: tableSet(tables),
		events: make(chan ChangeEvent, 16),
	}
	m.mu.Lock()
	m.subs[s] = true
	m.mu.Unlock()
	return s, nil
}

type memorySub struct {
	m      *Memory
	userID string
	tables map[Table]bool
	events chan ChangeEvent
	once   sync.Once
}

func (s *memorySub) Events() <-chan ChangeEvent { return s.events }

func (s *memorySub) Close() error {
	s.once.Do(func() {
		s.m.mu.Lock()
		delete(s.m.subs, s)
		close(s.events)
		s.m.mu.Unlock()
	})
	return nil
}

func remove[T any](rows []T, id string, key func(T) string) ([]T, bool) {
	for i, r := range rows {
		if key(r) == id {
			return append(rows[:i:i], rows[i+1:]...), true
		}
	}
	return rows, false
}

var _ Store = (*Memory)(nil)
