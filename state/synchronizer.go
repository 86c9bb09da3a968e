// Package state keeps the in-memory snapshot of a signed-in user's data in
// sync with the remote store.
//
// A Synchronizer reloads the whole snapshot whenever the user signs in, a
// change event arrives on one of the five tables, or a refresh is requested.
// Mutations are written through to the store and become visible with the
// next reload.
package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/etnz/finntra"
	"github.com/etnz/finntra/auth"
	"github.com/etnz/finntra/notify"
	"github.com/etnz/finntra/store"
	"go.uber.org/zap"
)

// Status is the lifecycle state of a Synchronizer.
type Status int

const (
	Unauthenticated Status = iota
	Loading
	Ready
	Error
)

func (s Status) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Error:
		return "error"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	for _, st := range []Status{Unauthenticated, Loading, Ready, Error} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", text)
}

// ErrUnauthenticated is returned by operations that need a signed-in user.
var ErrUnauthenticated = errors.New("no signed-in user")

// DefaultLoadTimeout bounds a single load.
const DefaultLoadTimeout = 30 * time.Second

// View is what observers see of the synchronizer.
type View struct {
	Status    Status           `json:"status"`
	UserID    string           `json:"user_id,omitempty"`
	Snapshot  finntra.Snapshot `json:"snapshot"`
	Loaded    bool             `json:"loaded"` // Snapshot was loaded at least once, it may be stale
	IsNewUser bool             `json:"is_new_user"`
	Error     string           `json:"error,omitempty"`
}

// Formatter renders an amount stored in USD in a display currency.
type Formatter interface {
	Format(amount float64, code string) string
}

// Options configures a Synchronizer. Store is required.
type Options struct {
	Store   store.Store
	Storage store.ObjectStorage
	Bucket  string // photo bucket
	Session *auth.Session
	Sender  notify.Sender
	Format  Formatter
	Logger  *zap.Logger

	LoadTimeout time.Duration
	// LargeExpense is the expense amount from which an alert is sent, 0 disables it.
	LargeExpense float64
}

// Synchronizer owns the snapshot of the signed-in user.
type Synchronizer struct {
	store        store.Store
	storage      store.ObjectStorage
	bucket       string
	session      *auth.Session
	sender       notify.Sender
	format       Formatter
	logger       *zap.Logger
	loadTimeout  time.Duration
	largeExpense float64

	mu        sync.Mutex
	user      *auth.User
	status    Status
	snap      finntra.Snapshot
	loaded    bool // a snapshot was applied for user
	onboarded bool // the onboarding of user was completed by this synchronizer
	errMsg    string
	gen       uint64 // last started load
	applied   uint64 // last applied load
	observers map[chan View]bool
}

// New returns an unauthenticated Synchronizer.
func New(opts Options) *Synchronizer {
	s := &Synchronizer{
		store:        opts.Store,
		storage:      opts.Storage,
		bucket:       opts.Bucket,
		session:      opts.Session,
		sender:       opts.Sender,
		format:       opts.Format,
		logger:       opts.Logger,
		loadTimeout:  opts.LoadTimeout,
		largeExpense: opts.LargeExpense,
		observers:    make(map[chan View]bool),
	}
	if s.session == nil {
		s.session = auth.NewSession()
	}
	if s.sender == nil {
		s.sender = notify.Nop{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.loadTimeout <= 0 {
		s.loadTimeout = DefaultLoadTimeout
	}
	if s.bucket == "" {
		s.bucket = DefaultBucket
	}
	return s
}

// Session returns the session the synchronizer follows.
func (s *Synchronizer) Session() *auth.Session { return s.session }

// View returns the current view.
func (s *Synchronizer) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Synchronizer) viewLocked() View {
	v := View{Status: s.status, Snapshot: s.snap, Loaded: s.loaded, Error: s.errMsg}
	if s.user != nil {
		v.UserID = s.user.ID
	}
	if s.loaded {
		v.IsNewUser = s.snap.IsNewUser()
	}
	return v
}

// Subscribe returns a stream of views, one after every state change, and a
// function to stop it. A slow reader only misses intermediate views.
func (s *Synchronizer) Subscribe() (<-chan View, func()) {
	ch := make(chan View, 1)
	s.mu.Lock()
	s.observers[ch] = true
	ch <- s.viewLocked()
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, ch)
			close(ch)
			s.mu.Unlock()
		})
	}
}

// publishLocked must be called with s.mu held.
func (s *Synchronizer) publishLocked() {
	v := s.viewLocked()
	for ch := range s.observers {
		select {
		case ch <- v:
			continue
		default:
		}
		// replace the unread view with the latest one.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}

// signIn switches to u and marks the state as loading.
func (s *Synchronizer) signIn(u auth.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil || s.user.ID != u.ID {
		s.snap = finntra.Snapshot{}
		s.loaded = false
		s.onboarded = false
	}
	s.user = &u
	s.status = Loading
	s.errMsg = ""
	s.publishLocked()
}

// signOut drops the user and the snapshot.
func (s *Synchronizer) signOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.snap = finntra.Snapshot{}
	s.loaded = false
	s.onboarded = false
	s.status = Unauthenticated
	s.errMsg = ""
	s.publishLocked()
}

// Refresh reloads the snapshot, it is how an Error state is retried.
func (s *Synchronizer) Refresh(ctx context.Context) error { return s.Load(ctx) }

// Load fetches the five collections of the signed-in user concurrently and
// replaces the snapshot.
//
// A profile failure moves to Error and keeps the previous snapshot. Failures
// of the other reads are logged and degrade to empty collections, or to the
// default settings. A load that completes after a newer one was applied is
// dropped, and one that completes while a newer one runs leaves the status
// at Loading.
func (s *Synchronizer) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return ErrUnauthenticated
	}
	user := *s.user
	s.gen++
	gen := s.gen
	s.status = Loading
	s.publishLocked()
	s.mu.Unlock()

	logger := s.logger.With(zap.String("user_id", user.ID), zap.Uint64("generation", gen))
	ctx, cancel := context.WithTimeout(ctx, s.loadTimeout)
	defer cancel()

	var (
		wg   sync.WaitGroup
		snap finntra.Snapshot

		profileErr, banksErr, goalsErr, txErr, settingsErr error
	)
	wg.Add(5)
	go func() {
		defer wg.Done()
		snap.Profile, profileErr = s.store.Profile(ctx, user.ID)
	}()
	go func() {
		defer wg.Done()
		snap.Banks, banksErr = s.store.Banks(ctx, user.ID)
	}()
	go func() {
		defer wg.Done()
		snap.SavingsGoals, goalsErr = s.store.SavingsGoals(ctx, user.ID)
	}()
	go func() {
		defer wg.Done()
		snap.Transactions, txErr = s.store.Transactions(ctx, user.ID)
	}()
	go func() {
		defer wg.Done()
		snap.Settings, settingsErr = s.store.Settings(ctx, user.ID)
	}()
	wg.Wait()

	if banksErr != nil {
		logger.Warn("cannot load bank accounts", zap.Error(banksErr))
		snap.Banks = nil
	}
	if goalsErr != nil {
		logger.Warn("cannot load savings goals", zap.Error(goalsErr))
		snap.SavingsGoals = nil
	}
	if txErr != nil {
		logger.Warn("cannot load transactions", zap.Error(txErr))
		snap.Transactions = nil
	}
	if settingsErr != nil {
		if !errors.Is(settingsErr, store.ErrNotFound) {
			logger.Warn("cannot load settings", zap.Error(settingsErr))
		}
		snap.Settings = finntra.DefaultSettings(user.ID)
	}
	if snap.Settings.Currency == "" {
		snap.Settings.Currency = finntra.DefaultCurrency
	}
	if snap.Banks == nil {
		snap.Banks = []finntra.BankAccount{}
	}
	if snap.SavingsGoals == nil {
		snap.SavingsGoals = []finntra.SavingsGoal{}
	}
	if snap.Transactions == nil {
		snap.Transactions = []finntra.Transaction{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil || s.user.ID != user.ID || gen < s.applied {
		logger.Debug("dropping stale load")
		return nil
	}
	s.applied = gen
	newer := gen < s.gen
	if profileErr != nil {
		logger.Warn("cannot load profile", zap.Error(profileErr))
		if !newer {
			s.status = Error
			s.errMsg = profileErr.Error()
			s.publishLocked()
		}
		return fmt.Errorf("cannot load profile: %w", profileErr)
	}
	s.snap = snap
	s.loaded = true
	s.status = Ready
	if newer {
		s.status = Loading
	}
	s.errMsg = ""
	s.publishLocked()
	logger.Debug("snapshot loaded",
		zap.Int("banks", len(snap.Banks)),
		zap.Int("goals", len(snap.SavingsGoals)),
		zap.Int("transactions", len(snap.Transactions)))
	return nil
}

// Run follows the session until ctx is done. On sign-in it opens the change
// feed of the user and loads, every change event reloads, and sign-out closes
// the feed and clears the state.
func (s *Synchronizer) Run(ctx context.Context) error {
	transitions, stop := s.session.Watch()
	defer stop()

	var (
		sub    store.Subscription
		events <-chan store.ChangeEvent
		userID string
	)
	closeSub := func() {
		if sub != nil {
			if err := sub.Close(); err != nil {
				s.logger.Warn("cannot close change feed", zap.Error(err))
			}
		}
		sub, events = nil, nil
	}
	defer closeSub()

	load := func() {
		go func() {
			if err := s.Load(ctx); err != nil && !errors.Is(err, ErrUnauthenticated) {
				s.logger.Debug("load failed", zap.Error(err))
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case tr, ok := <-transitions:
			if !ok {
				return nil
			}
			switch tr.Kind {
			case auth.SignedIn:
				closeSub()
				userID = tr.User.ID
				s.signIn(tr.User)
				var err error
				sub, err = s.store.Subscribe(ctx, userID, store.Tables...)
				if err != nil {
					s.logger.Warn("cannot open change feed", zap.String("user_id", userID), zap.Error(err))
				} else {
					events = sub.Events()
				}
				load()
			case auth.SignedOut:
				closeSub()
				userID = ""
				s.signOut()
			}

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.UserID != "" && ev.UserID != userID {
				continue
			}
			s.logger.Debug("change event", zap.String("table", string(ev.Table)), zap.String("kind", string(ev.Kind)))
			load()
		}
	}
}
