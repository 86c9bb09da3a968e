package state

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/etnz/finntra"
	"github.com/etnz/finntra/auth"
	"github.com/etnz/finntra/store"
)

func TestLoad_Ready(t *testing.T) {
	f := newFixture(t, "Ada")
	ctx := context.Background()
	f.store.InsertBank(ctx, finntra.BankAccount{UserID: "u1", Name: "Checking", Type: "checking"})
	f.store.UpsertSettings(ctx, finntra.Settings{UserID: "u1", Currency: "EUR"})

	v := f.load(t)
	if v.Status != Ready {
		t.Fatalf("Status = %v, want ready", v.Status)
	}
	if v.Snapshot.Profile.Name != "Ada" || len(v.Snapshot.Banks) != 1 || v.Snapshot.Currency() != "EUR" {
		t.Errorf("Snapshot = %+v", v.Snapshot)
	}
	if v.IsNewUser {
		t.Error("IsNewUser = true for a named user with a bank")
	}
	for _, table := range store.Tables {
		if got := f.store.Reads(table); got != 1 {
			t.Errorf("Reads(%s) = %d, want 1", table, got)
		}
	}
}

func TestLoad_ProfileFailureKeepsSnapshot(t *testing.T) {
	f := newFixture(t, "Ada")
	ctx := context.Background()
	f.store.InsertTransaction(ctx, finntra.Transaction{UserID: "u1", Amount: 10, Category: "Other", Type: finntra.Income})
	f.load(t)

	f.store.FailReads(store.Profiles, errors.New("connection reset"))
	f.store.InsertTransaction(ctx, finntra.Transaction{UserID: "u1", Amount: 20, Category: "Other", Type: finntra.Income})
	if err := f.sync.Load(ctx); err == nil {
		t.Fatal("Load() expected an error when the profile read fails")
	}
	v := f.sync.View()
	if v.Status != Error {
		t.Errorf("Status = %v, want error", v.Status)
	}
	if v.Error == "" {
		t.Error("Error message is empty")
	}
	if len(v.Snapshot.Transactions) != 1 {
		t.Errorf("len(Transactions) = %d, want the stale 1", len(v.Snapshot.Transactions))
	}

	// clearing the failure and refreshing recovers.
	f.store.FailReads(store.Profiles, nil)
	if err := f.sync.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() unexpected error = %v", err)
	}
	if v := f.sync.View(); v.Status != Ready || len(v.Snapshot.Transactions) != 2 {
		t.Errorf("after retry Status = %v, transactions = %d", v.Status, len(v.Snapshot.Transactions))
	}
}

func TestLoad_SecondaryFailuresDegrade(t *testing.T) {
	testCases := []store.Table{store.Transactions, store.BankAccounts, store.SavingsGoals, store.UserSettings}
	for _, table := range testCases {
		t.Run(string(table), func(t *testing.T) {
			f := newFixture(t, "Ada")
			ctx := context.Background()
			f.store.InsertTransaction(ctx, finntra.Transaction{UserID: "u1", Amount: 10, Category: "Other", Type: finntra.Income})
			f.store.InsertBank(ctx, finntra.BankAccount{UserID: "u1", Name: "Checking", Type: "checking"})
			f.store.UpsertSettings(ctx, finntra.Settings{UserID: "u1", Currency: "EUR"})
			f.store.FailReads(table, errors.New("timeout"))

			v := f.load(t)
			if v.Status != Ready {
				t.Fatalf("Status = %v, want ready", v.Status)
			}
			switch table {
			case store.Transactions:
				if len(v.Snapshot.Transactions) != 0 {
					t.Errorf("Transactions = %v, want empty", v.Snapshot.Transactions)
				}
			case store.BankAccounts:
				if len(v.Snapshot.Banks) != 0 {
					t.Errorf("Banks = %v, want empty", v.Snapshot.Banks)
				}
			case store.UserSettings:
				if v.Snapshot.Currency() != finntra.DefaultCurrency {
					t.Errorf("Currency() = %q, want default", v.Snapshot.Currency())
				}
			}
		})
	}
}

func TestLoad_MissingSettingsUseDefault(t *testing.T) {
	f := newFixture(t, "Ada")
	v := f.load(t)
	if v.Snapshot.Settings.Currency != "USD" || v.Snapshot.Settings.UserID != "u1" {
		t.Errorf("Settings = %+v, want default USD", v.Snapshot.Settings)
	}
}

func TestLoad_Unauthenticated(t *testing.T) {
	s := New(Options{Store: store.NewMemory()})
	if err := s.Load(context.Background()); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Load() error = %v, want ErrUnauthenticated", err)
	}
	if v := s.View(); v.Status != Unauthenticated {
		t.Errorf("Status = %v, want unauthenticated", v.Status)
	}
}

func TestLoad_Timeout(t *testing.T) {
	mem := store.NewMemory()
	mem.CreateProfile(context.Background(), finntra.Profile{ID: "u1"})
	mem.OnRead = func(ctx context.Context, table store.Table, userID string) {
		if table == store.Profiles {
			<-ctx.Done()
		}
	}
	s := New(Options{Store: mem, LoadTimeout: 20 * time.Millisecond})
	s.signIn(auth.User{ID: "u1"})
	if err := s.Load(context.Background()); err == nil {
		t.Fatal("Load() expected an error")
	}
	if v := s.View(); v.Status != Error {
		t.Errorf("Status = %v, want error", v.Status)
	}
}

type loadKey struct{}

func TestLoad_StaleResultDropped(t *testing.T) {
	f := newFixture(t, "Ada")
	gate := make(chan struct{})
	var blocked atomic.Int32
	f.store.OnRead = func(ctx context.Context, table store.Table, userID string) {
		if ctx.Value(loadKey{}) != nil {
			blocked.Add(1)
			<-gate
		}
	}

	first := make(chan error, 1)
	go func() {
		first <- f.sync.Load(context.WithValue(context.Background(), loadKey{}, "first"))
	}()
	deadline := time.Now().Add(2 * time.Second)
	for blocked.Load() < 5 {
		if time.Now().After(deadline) {
			t.Fatal("first load never reached the store")
		}
		time.Sleep(time.Millisecond)
	}

	// the second load starts later and completes first.
	if err := f.sync.Load(context.Background()); err != nil {
		t.Fatalf("second Load() unexpected error = %v", err)
	}
	f.store.UpdateProfile(context.Background(), "u1", finntra.ProfilePatch{Name: ptr("Changed")})
	close(gate)
	if err := <-first; err != nil {
		t.Fatalf("first Load() unexpected error = %v", err)
	}

	v := f.sync.View()
	if v.Status != Ready {
		t.Errorf("Status = %v, want ready", v.Status)
	}
	if v.Snapshot.Profile.Name != "Ada" {
		t.Errorf("Profile.Name = %q, the earlier load overwrote the later one", v.Snapshot.Profile.Name)
	}
}

func TestLoad_OlderResultKeepsLoading(t *testing.T) {
	f := newFixture(t, "Ada")
	gates := map[string]chan struct{}{"older": make(chan struct{}), "newer": make(chan struct{})}
	var blocked atomic.Int32
	f.store.OnRead = func(ctx context.Context, table store.Table, userID string) {
		if name, ok := ctx.Value(loadKey{}).(string); ok {
			blocked.Add(1)
			<-gates[name]
		}
	}
	waitBlocked := func(n int32) {
		t.Helper()
		deadline := time.Now().Add(2 * time.Second)
		for blocked.Load() < n {
			if time.Now().After(deadline) {
				t.Fatal("load never reached the store")
			}
			time.Sleep(time.Millisecond)
		}
	}
	start := func(name string) chan error {
		done := make(chan error, 1)
		go func() { done <- f.sync.Load(context.WithValue(context.Background(), loadKey{}, name)) }()
		return done
	}

	older := start("older")
	waitBlocked(5)
	newer := start("newer")
	waitBlocked(10)

	close(gates["older"])
	if err := <-older; err != nil {
		t.Fatalf("older Load() unexpected error = %v", err)
	}
	if v := f.sync.View(); v.Status != Loading || !v.Loaded {
		t.Errorf("after the older load: Status = %v, Loaded = %v, want loading over a loaded snapshot", v.Status, v.Loaded)
	}

	close(gates["newer"])
	if err := <-newer; err != nil {
		t.Fatalf("newer Load() unexpected error = %v", err)
	}
	if v := f.sync.View(); v.Status != Ready {
		t.Errorf("after the newer load: Status = %v, want ready", v.Status)
	}
}

func TestIsNewUser(t *testing.T) {
	testCases := []struct {
		name  string
		bank  bool
		tx    bool
		isNew bool
	}{
		{"User", false, false, true},
		{"", false, false, true},
		{"your name", false, false, true},
		{"Ada", false, false, false},
		{"User", true, false, false},
		{"User", false, true, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, tc.name)
			ctx := context.Background()
			if tc.bank {
				f.store.InsertBank(ctx, finntra.BankAccount{UserID: "u1", Name: "Checking", Type: "checking"})
			}
			if tc.tx {
				f.store.InsertTransaction(ctx, finntra.Transaction{UserID: "u1", Amount: 1, Category: "Other", Type: finntra.Income})
			}
			if got := f.load(t).IsNewUser; got != tc.isNew {
				t.Errorf("IsNewUser = %v, want %v", got, tc.isNew)
			}
		})
	}
}

func TestSubscribe(t *testing.T) {
	f := newFixture(t, "Ada")
	views, stop := f.sync.Subscribe()
	defer stop()

	if v := <-views; v.Status != Loading {
		t.Errorf("initial view status = %v, want loading", v.Status)
	}
	f.load(t)
	// only the latest view is kept for a slow reader.
	if v := <-views; v.Status != Ready {
		t.Errorf("latest view status = %v, want ready", v.Status)
	}
	stop()
	if _, ok := <-views; ok {
		t.Error("views still open after stop")
	}
}

func TestRun(t *testing.T) {
	mem := store.NewMemory()
	mem.CreateProfile(context.Background(), finntra.Profile{ID: "u1", Name: "Ada"})
	s := New(Options{Store: mem})
	views, stop := s.Subscribe()
	defer stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	await := func(what string, ok func(View) bool) {
		t.Helper()
		timeout := time.After(2 * time.Second)
		for {
			select {
			case v := <-views:
				if ok(v) {
					return
				}
			case <-timeout:
				t.Fatalf("timed out waiting for %s, last view %+v", what, s.View())
			}
		}
	}

	s.Session().SignIn(auth.User{ID: "u1"})
	await("ready", func(v View) bool { return v.Status == Ready && v.Snapshot.Profile.Name == "Ada" })

	// a write from elsewhere reloads the snapshot.
	mem.InsertTransaction(context.Background(), finntra.Transaction{UserID: "u1", Amount: 5, Category: "Other", Type: finntra.Expense})
	await("reload", func(v View) bool { return v.Status == Ready && len(v.Snapshot.Transactions) == 1 })

	s.Session().SignOut()
	await("sign-out", func(v View) bool { return v.Status == Unauthenticated && v.UserID == "" })

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}

func TestStatusString(t *testing.T) {
	testCases := map[Status]string{
		Unauthenticated: "unauthenticated",
		Loading:         "loading",
		Ready:           "ready",
		Error:           "error",
		Status(9):       "Status(9)",
	}
	for s, want := range testCases {
		if got := s.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}

func TestStatusUnmarshalText(t *testing.T) {
	var s Status
	if err := s.UnmarshalText([]byte("ready")); err != nil || s != Ready {
		t.Errorf("UnmarshalText(ready) = %v, %v", s, err)
	}
	if err := s.UnmarshalText([]byte("done")); err == nil {
		t.Error("UnmarshalText(done) expected an error")
	}
}

func ptr[T any](v T) *T { return &v }
