// Package notify delivers user alerts rendered from text templates.
package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"go.uber.org/zap"
)

// Template names.
const (
	Welcome      = "welcome"
	GoalReached  = "goal_reached"
	LargeExpense = "large_expense"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

var templates = template.Must(template.New("alerts").Option("missingkey=zero").ParseFS(templatesFS, "templates/*.tmpl"))

// Alert is a notification request. Data feeds the template.
type Alert struct {
	Template string            `json:"template"`
	UserID   string            `json:"user_id"`
	To       string            `json:"to,omitempty"`
	Data     map[string]string `json:"data,omitempty"`
}

// Message is a rendered alert.
type Message struct {
	Template string    `json:"template"`
	UserID   string    `json:"user_id"`
	To       string    `json:"to,omitempty"`
	Body     string    `json:"body"`
	SentAt   time.Time `json:"sent_at"`
}

// Sender delivers alerts.
type Sender interface {
	Send(ctx context.Context, a Alert) error
}

// Render renders a through its template.
func Render(a Alert) (Message, error) {
	t := templates.Lookup(a.Template + ".tmpl")
	if t == nil {
		return Message{}, fmt.Errorf("unknown alert template %q", a.Template)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, a.Data); err != nil {
		return Message{}, fmt.Errorf("error rendering alert %q: %w", a.Template, err)
	}
	return Message{
		Template: a.Template,
		UserID:   a.UserID,
		To:       a.To,
		Body:     strings.TrimSpace(buf.String()),
		SentAt:   time.Now().UTC(),
	}, nil
}

// LogSender writes rendered alerts to the log.
type LogSender struct {
	Logger *zap.Logger
}

func (s LogSender) Send(ctx context.Context, a Alert) error {
	m, err := Render(a)
	if err != nil {
		return err
	}
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("alert", zap.String("template", m.Template), zap.String("user_id", m.UserID), zap.String("body", m.Body))
	return nil
}

// Nop drops every alert.
type Nop struct{}

func (Nop) Send(context.Context, Alert) error { return nil }
