package state

import (
	"context"
	"errors"
	"testing"
)

type fakePinger struct{ err error }

func (f *fakePinger) Ping(context.Context) error { return f.err }

func TestMonitor(t *testing.T) {
	p := &fakePinger{}
	m := NewMonitor(p, 0, nil)
	if !m.Online() {
		t.Fatal("monitor starts offline")
	}
	p.err = errors.New("no route to host")
	if m.Check(context.Background()) || m.Online() {
		t.Error("Online() = true after a failed probe")
	}
	if m.Checked().IsZero() {
		t.Error("Checked() is zero after a probe")
	}
	p.err = nil
	if !m.Check(context.Background()) {
		t.Error("Check() = false after recovery")
	}
}
