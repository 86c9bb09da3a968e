package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("cannot sign token: %v", err)
	}
	return s
}

func TestVerifier_Verify(t *testing.T) {
	const base = "https://project.supabase.co"
	secret := []byte("super-secret")
	v := NewVerifier(base+"/", string(secret))

	valid := func(mod func(*tokenClaims)) jwt.Claims {
		c := &tokenClaims{
			Email: "ada@example.com",
			Role:  "authenticated",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "user-1",
				Issuer:    base + "/auth/v1",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		if mod != nil {
			mod(c)
		}
		return c
	}

	testCases := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"valid", sign(t, jwt.SigningMethodHS256, secret, valid(nil)), false},
		{"wrong secret", sign(t, jwt.SigningMethodHS256, []byte("other"), valid(nil)), true},
		{"wrong issuer", sign(t, jwt.SigningMethodHS256, secret, valid(func(c *tokenClaims) { c.Issuer = "https://evil/auth/v1" })), true},
		{"expired", sign(t, jwt.SigningMethodHS256, secret, valid(func(c *tokenClaims) {
			c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
		})), true},
		{"no subject", sign(t, jwt.SigningMethodHS256, secret, valid(func(c *tokenClaims) { c.Subject = "" })), true},
		{"other hmac", sign(t, jwt.SigningMethodHS512, secret, valid(nil)), true},
		{"garbage", "not.a.token", true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := v.Verify(tc.token)
			if (err != nil) != tc.wantErr {
				t.Fatalf("Verify() error = %v, wantErr %v", err, tc.wantErr)
			}
			if !tc.wantErr && (c.Sub != "user-1" || c.Email != "ada@example.com" || c.Role != "authenticated") {
				t.Errorf("Verify() = %+v", c)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	testCases := map[string]string{
		"Bearer abc": "abc",
		"bearer abc": "",
		"Bearer":     "",
		"":           "",
		"Basic abc":  "",
	}
	for in, want := range testCases {
		if got := BearerToken(in); got != want {
			t.Errorf("BearerToken(%q) = %q, want %q", in, got, want)
		}
	}
}
