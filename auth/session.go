package auth

import "sync"

// TransitionKind is the kind of session change.
type TransitionKind int

const (
	SignedIn TransitionKind = iota + 1
	SignedOut
)

func (k TransitionKind) String() string {
	switch k {
	case SignedIn:
		return "signed-in"
	case SignedOut:
		return "signed-out"
	}
	return "unknown"
}

// Transition is a change of the signed-in user. User is the new user for
// SignedIn and the departing one for SignedOut.
type Transition struct {
	Kind TransitionKind
	User User
}

// Session holds the current user and broadcasts its transitions.
type Session struct {
	mu       sync.Mutex
	user     *User
	watchers map[chan Transition]bool
}

// NewSession returns a signed-out session.
func NewSession() *Session {
	return &Session{watchers: make(map[chan Transition]bool)}
}

// User returns the signed-in user, if any.
func (s *Session) User() (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}

// SignIn makes u the current user. Signing in the current user again is a no-op.
func (s *Session) SignIn(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user != nil && s.user.ID == u.ID {
		return
	}
	s.user = &u
	s.broadcast(Transition{Kind: SignedIn, User: u})
}

// SignOut clears the current user.
func (s *Session) SignOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return
	}
	u := *s.user
	s.user = nil
	s.broadcast(Transition{Kind: SignedOut, User: u})
}

// Watch returns a stream of transitions starting with the current state
// when signed in, and a function to stop watching.
func (s *Session) Watch() (<-chan Transition, func()) {
	ch := make(chan Transition, 8)
	s.mu.Lock()
	s.watchers[ch] = true
	if s.user != nil {
		ch <- Transition{Kind: SignedIn, User: *s.user}
	}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, ch)
			close(ch)
			s.mu.Unlock()
		})
	}
}

// broadcast must be called with s.mu held. Slow watchers miss transitions.
func (s *Session) broadcast(t Transition) {
	for ch := range s.watchers {
		select {
		case ch <- t:
		default:
		}
	}
}
