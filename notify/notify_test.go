package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestRender(t *testing.T) {
	testCases := []struct {
		alert   Alert
		want    string
		wantErr bool
	}{
		{
			alert: Alert{Template: Welcome, Data: map[string]string{"Name": "Ada"}},
			want:  "Welcome to finntra, Ada! Your first transaction is recorded, your dashboard is ready.",
		},
		{
			alert: Alert{Template: GoalReached, Data: map[string]string{"Goal": "Trip", "Target": "$1,000.00"}},
			want:  `Congratulations! You reached your savings goal "Trip" of $1,000.00.`,
		},
		{
			alert: Alert{Template: LargeExpense, Data: map[string]string{"Amount": "€900.00", "Category": "Rent"}},
			want:  "A large expense of €900.00 was recorded in Rent.",
		},
		{alert: Alert{Template: "unknown"}, wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.alert.Template, func(t *testing.T) {
			m, err := Render(tc.alert)
			if (err != nil) != tc.wantErr {
				t.Fatalf("Render() error = %v, wantErr %v", err, tc.wantErr)
			}
			if m.Body != tc.want {
				t.Errorf("Render() = %q, want %q", m.Body, tc.want)
			}
		})
	}
}

type fakePublisher struct {
	channel string
	message []byte
	err     error
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel = channel
	f.message, _ = message.([]byte)
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal(1)
	}
	return cmd
}

func TestRedisSender(t *testing.T) {
	p := &fakePublisher{}
	s := &RedisSender{Client: p, Channel: "alerts"}
	err := s.Send(context.Background(), Alert{Template: Welcome, UserID: "u1"})
	if err != nil {
		t.Fatalf("Send() unexpected error = %v", err)
	}
	if p.channel != "alerts" {
		t.Errorf("channel = %q, want alerts", p.channel)
	}
	var m Message
	if err := json.Unmarshal(p.message, &m); err != nil {
		t.Fatalf("published payload is not json: %v", err)
	}
	if m.UserID != "u1" || m.Template != Welcome || m.Body == "" {
		t.Errorf("published %+v", m)
	}

	p.err = errors.New("connection refused")
	if err := s.Send(context.Background(), Alert{Template: Welcome}); err == nil {
		t.Error("Send() expected an error when publish fails")
	}
}

func TestLogSenderAndNop(t *testing.T) {
	if err := (LogSender{}).Send(context.Background(), Alert{Template: Welcome}); err != nil {
		t.Errorf("LogSender.Send() unexpected error = %v", err)
	}
	if err := (LogSender{}).Send(context.Background(), Alert{Template: "nope"}); err == nil {
		t.Error("LogSender.Send() expected an error for an unknown template")
	}
	if err := (Nop{}).Send(context.Background(), Alert{}); err != nil {
		t.Errorf("Nop.Send() = %v", err)
	}
}
