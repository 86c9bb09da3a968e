package auth

import "testing"

func TestSession(t *testing.T) {
	s := NewSession()
	if _, ok := s.User(); ok {
		t.Fatal("new session has a user")
	}
	ch, stop := s.Watch()
	defer stop()

	ada := User{ID: "u1", Email: "ada@example.com"}
	s.SignIn(ada)
	s.SignIn(ada) // no-op
	s.SignOut()
	s.SignOut() // no-op

	want := []Transition{{SignedIn, ada}, {SignedOut, ada}}
	for i, w := range want {
		select {
		case got := <-ch:
			if got != w {
				t.Errorf("transition %d = %+v, want %+v", i, got, w)
			}
		default:
			t.Fatalf("missing transition %d", i)
		}
	}
	select {
	case got := <-ch:
		t.Errorf("unexpected transition %+v", got)
	default:
	}
}

func TestSession_WatchReplaysCurrentUser(t *testing.T) {
	s := NewSession()
	s.SignIn(User{ID: "u1"})
	ch, stop := s.Watch()
	got := <-ch
	if got.Kind != SignedIn || got.User.ID != "u1" {
		t.Errorf("first transition = %+v, want signed-in u1", got)
	}
	stop()
	stop()
	if _, ok := <-ch; ok {
		t.Error("channel still open after stop")
	}
}
