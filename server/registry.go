package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/etnz/finntra"
	"github.com/etnz/finntra/auth"
	"github.com/etnz/finntra/state"
	"github.com/etnz/finntra/store"
	"go.uber.org/zap"
)

// errNotReady is returned when the first load of a user did not complete in time.
var errNotReady = errors.New("snapshot is still loading")

// signOutTimeout bounds how long Remove waits for the signed out view.
const signOutTimeout = time.Second

// Registry keeps one Synchronizer per signed-in user.
type Registry struct {
	ctx    context.Context
	opts   state.Options
	logger *zap.Logger

	mu      sync.Mutex
	members map[string]*member
}

type member struct {
	sync   *state.Synchronizer
	cancel context.CancelFunc
	ready  chan struct{} // closed after the first load, successful or not
	done   chan struct{} // closed when Run returns
}

// NewRegistry returns an empty registry. Every Synchronizer is built from
// opts with its own session and runs until ctx is done or the user is
// removed.
func NewRegistry(ctx context.Context, opts state.Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		ctx:     ctx,
		opts:    opts,
		logger:  logger,
		members: make(map[string]*member),
	}
}

// Get returns the Synchronizer of the user, signing them in on first use.
//
// On first use the profile of the user is created if missing and Get waits
// for the first load, or for ctx.
func (r *Registry) Get(ctx context.Context, claims auth.Claims) (*state.Synchronizer, error) {
	r.mu.Lock()
	m, ok := r.members[claims.Sub]
	r.mu.Unlock()
	if !ok {
		if err := r.EnsureProfile(ctx, finntra.Profile{ID: claims.Sub, Email: claims.Email}); err != nil {
			return nil, err
		}
		r.mu.Lock()
		m, ok = r.members[claims.Sub]
		if !ok {
			m = r.start(auth.User{ID: claims.Sub, Email: claims.Email})
			r.members[claims.Sub] = m
		}
		r.mu.Unlock()
	}
	select {
	case <-m.ready:
	case <-m.done:
	case <-ctx.Done():
		return m.sync, fmt.Errorf("%w: %v", errNotReady, ctx.Err())
	}
	// Remove may have stopped it while we waited.
	r.mu.Lock()
	current := r.members[claims.Sub]
	r.mu.Unlock()
	if current != m {
		return nil, fmt.Errorf("%s: %w", claims.Sub, state.ErrUnauthenticated)
	}
	return m.sync, nil
}

// EnsureProfile creates the profile p unless the user already has one.
func (r *Registry) EnsureProfile(ctx context.Context, p finntra.Profile) error {
	_, err := r.opts.Store.Profile(ctx, p.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("cannot read profile of %s: %w", p.ID, err)
	}
	if err := r.opts.Store.CreateProfile(ctx, p); err != nil {
		// a concurrent request may have created it.
		if _, rerr := r.opts.Store.Profile(ctx, p.ID); rerr == nil {
			return nil
		}
		return fmt.Errorf("cannot create profile of %s: %w", p.ID, err)
	}
	r.logger.Info("profile created", zap.String("user_id", p.ID))
	return nil
}

func (r *Registry) start(u auth.User) *member {
	ctx, cancel := context.WithCancel(r.ctx)
	opts := r.opts
	opts.Session = auth.NewSession()
	opts.Logger = r.logger.With(zap.String("user_id", u.ID))
	m := &member{
		sync:   state.New(opts),
		cancel: cancel,
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}

	views, stop := m.sync.Subscribe()
	go func() {
		defer stop()
		for {
			select {
			case <-ctx.Done():
				return
			case v := <-views:
				if v.UserID == u.ID && (v.Status == state.Ready || v.Status == state.Error) {
					close(m.ready)
					return
				}
			}
		}
	}()
	go func() {
		defer close(m.done)
		if err := m.sync.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Warn("synchronizer stopped", zap.String("user_id", u.ID), zap.Error(err))
		}
	}()
	opts.Session.SignIn(u)
	r.logger.Debug("user signed in", zap.String("user_id", u.ID))
	return m
}

// Remove signs the user out and stops their Synchronizer. It reports whether
// the user was registered.
func (r *Registry) Remove(userID string) bool {
	r.mu.Lock()
	m, ok := r.members[userID]
	delete(r.members, userID)
	r.mu.Unlock()
	if !ok {
		return false
	}
	// let Run publish the signed out view to the open streams.
	views, stop := m.sync.Subscribe()
	m.sync.Session().SignOut()
	timeout := time.NewTimer(signOutTimeout)
wait:
	for {
		select {
		case v := <-views:
			if v.Status == state.Unauthenticated {
				break wait
			}
		case <-m.done:
			break wait
		case <-timeout.C:
			break wait
		}
	}
	timeout.Stop()
	stop()
	m.cancel()
	<-m.done
	r.logger.Debug("user signed out", zap.String("user_id", userID))
	return true
}

// Len returns the number of registered users.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Close removes every user.
func (r *Registry) Close() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		r.Remove(id)
	}
}
