package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_SignIn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/token" || r.URL.Query().Get("grant_type") != "password" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("apikey") != "anon" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "correct horse" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
			return
		}
		w.Write([]byte(`{"access_token":"tok","refresh_token":"ref","expires_in":3600,"user":{"id":"u1","email":"ada@example.com"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "anon")
	tok, err := c.SignIn(context.Background(), "ada@example.com", "correct horse")
	if err != nil {
		t.Fatalf("SignIn() unexpected error = %v", err)
	}
	if tok.AccessToken != "tok" || tok.User.ID != "u1" {
		t.Errorf("SignIn() = %+v", tok)
	}

	_, err = c.SignIn(context.Background(), "ada@example.com", "wrong")
	var authErr *Error
	if !errors.As(err, &authErr) {
		t.Fatalf("SignIn() error = %v, want *Error", err)
	}
	if authErr.Message != "Invalid login credentials" || authErr.Status != http.StatusBadRequest {
		t.Errorf("SignIn() error = %+v", authErr)
	}
}

func TestClient_SignUp(t *testing.T) {
	testCases := []struct {
		name    string
		status  int
		body    string
		wantID  string
		wantMsg string
	}{
		{"confirmation required", 200, `{"id":"u2","email":"bob@example.com"}`, "u2", ""},
		{"auto confirmed", 200, `{"access_token":"tok","user":{"id":"u3","email":"bob@example.com"}}`, "u3", ""},
		{"already registered", 422, `{"code":422,"msg":"User already registered"}`, "", "User already registered"},
		{"opaque failure", 500, `oops`, "", "500 Internal Server Error"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			tok, err := NewClient(srv.URL, "anon").SignUp(context.Background(), "bob@example.com", "pw", "Bob")
			if tc.wantMsg != "" {
				if err == nil || err.Error() != tc.wantMsg {
					t.Fatalf("SignUp() error = %v, want %q", err, tc.wantMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("SignUp() unexpected error = %v", err)
			}
			if tok.User.ID != tc.wantID {
				t.Errorf("SignUp() user = %+v, want id %s", tok.User, tc.wantID)
			}
		})
	}
}
