package state

import (
	"context"
	"sync"
	"testing"

	"github.com/etnz/finntra"
	"github.com/etnz/finntra/auth"
	"github.com/etnz/finntra/notify"
	"github.com/etnz/finntra/store"
)

// recordingSender keeps every alert it is asked to send.
type recordingSender struct {
	mu     sync.Mutex
	alerts []notify.Alert
	err    error
}

func (r *recordingSender) Send(ctx context.Context, a notify.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return r.err
}

func (r *recordingSender) templates() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var names []string
	for _, a := range r.alerts {
		names = append(names, a.Template)
	}
	return names
}

type fixture struct {
	sync    *Synchronizer
	store   *store.Memory
	storage *store.MemoryStorage
	sender  *recordingSender
}

// newFixture returns a synchronizer with user u1 signed in and a profile
// named name.
func newFixture(t *testing.T, name string) *fixture {
	t.Helper()
	mem := store.NewMemory()
	if err := mem.CreateProfile(context.Background(), finntra.Profile{ID: "u1", Name: name, Email: "u1@example.com"}); err != nil {
		t.Fatalf("CreateProfile() unexpected error = %v", err)
	}
	f := &fixture{
		store:   mem,
		storage: store.NewMemoryStorage(),
		sender:  &recordingSender{},
	}
	f.sync = New(Options{Store: mem, Storage: f.storage, Sender: f.sender, LargeExpense: 1000})
	f.sync.signIn(auth.User{ID: "u1", Email: "u1@example.com"})
	return f
}

func (f *fixture) load(t *testing.T) View {
	t.Helper()
	if err := f.sync.Load(context.Background()); err != nil {
		t.Fatalf("Load() unexpected error = %v", err)
	}
	return f.sync.View()
}
