// Package assistant forwards chat prompts to a language model with a fixed
// personal finance persona.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

// Instruction is the system instruction of every conversation.
const Instruction = `You are a helpful personal finance assistant.
You help users with budgeting, saving, expense tracking, debt management, investing basics and financial planning.
Keep answers clear, practical and concise.
Only discuss financial topics; politely decline anything else and steer the conversation back to personal finance.
Never ask for passwords, account numbers or other credentials.`

// Message is one turn of a conversation. Role is "user", "assistant" or "model".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generator produces the answer to prompt given the previous turns.
type Generator interface {
	Generate(ctx context.Context, prompt string, history []Message) (string, error)
}

// Gemini is a Generator backed by the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

// NewGemini returns a Gemini generator authenticated with apiKey.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is not set")
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("error initializing Gemini's client: %w", err)
	}
	return &Gemini{
		client: client,
		model:  model,
		config: &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: Instruction}}},
		},
	}, nil
}

// Generate implements Generator.
func (g *Gemini) Generate(ctx context.Context, prompt string, history []Message) (string, error) {
	chat, err := g.client.Chats.Create(ctx, g.model, g.config, Contents(history))
	if err != nil {
		return "", err
	}
	resp, err := chat.Send(ctx, &genai.Part{Text: prompt})
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("no response from the model")
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String(), nil
}

// Contents converts conversation turns to model contents. Turns with an unknown
// role or no text are skipped.
func Contents(history []Message) []*genai.Content {
	var contents []*genai.Content
	for _, m := range history {
		role, ok := roleOf(m.Role)
		if !ok || strings.TrimSpace(m.Content) == "" {
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{{Text: m.Content}}})
	}
	return contents
}

func roleOf(role string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "user":
		return "user", true
	case "assistant", "model":
		return "model", true
	}
	return "", false
}
