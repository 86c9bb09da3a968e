package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// User is an identity known to the identity service.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Tokens is the result of a successful sign-in.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	User         User   `json:"user"`
}

// Error is a rejection by the identity service. Its message is meant to be
// shown to the user as is.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

// Client talks to the identity REST API.
type Client struct {
	HTTP    *http.Client
	BaseURL string
	APIKey  string
}

// NewClient returns a Client for the project at baseURL.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{HTTP: new(http.Client), BaseURL: strings.TrimRight(baseURL, "/"), APIKey: apiKey}
}

// SignUp registers a new password user. Tokens are empty when the service
// requires an email confirmation first.
func (c *Client) SignUp(ctx context.Context, email, password, name string) (Tokens, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
		"data":     map[string]string{"name": name},
	}
	// with confirmation on the answer is the user itself, otherwise a session.
	var resp struct {
		Tokens
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := c.post(ctx, "/auth/v1/signup", body, &resp); err != nil {
		return Tokens{}, err
	}
	t := resp.Tokens
	if t.User.ID == "" {
		t.User = User{ID: resp.ID, Email: resp.Email}
	}
	return t, nil
}

// SignIn exchanges an email and password for tokens.
func (c *Client) SignIn(ctx context.Context, email, password string) (Tokens, error) {
	var t Tokens
	body := map[string]string{"email": email, "password": password}
	if err := c.post(ctx, "/auth/v1/token?grant_type=password", body, &t); err != nil {
		return Tokens{}, err
	}
	return t, nil
}

func (c *Client) post(ctx context.Context, path string, body, data any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.APIKey)

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("cannot reach identity service: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return &Error{Status: resp.StatusCode, Message: errorMessage(raw, resp.Status)}
	}
	return json.Unmarshal(raw, data)
}

// errorMessage extracts the human message of a rejection payload.
func errorMessage(raw []byte, status string) string {
	var e struct {
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
		Error            string `json:"error"`
	}
	if json.Unmarshal(raw, &e) == nil {
		for _, m := range []string{e.Msg, e.Message, e.ErrorDescription, e.Error} {
			if m != "" {
				return m
			}
		}
	}
	return status
}
