// Package auth verifies access tokens issued by the hosted identity service,
// signs users up and in through its REST API, and tracks the signed-in user.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the identity claims of a verified access token.
type Claims struct {
	Sub   string
	Email string
	Role  string
}

// tokenClaims is the claim set of an access token.
type tokenClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 access tokens.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier returns a Verifier for the project at baseURL signing with secret.
func NewVerifier(baseURL, secret string) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		issuer: strings.TrimRight(baseURL, "/") + "/auth/v1",
	}
}

// Issuer returns the expected token issuer.
func (v *Verifier) Issuer() string { return v.issuer }

// Verify parses and validates token.
func (v *Verifier) Verify(token string) (Claims, error) {
	if len(v.secret) == 0 {
		return Claims{}, errors.New("jwt secret is not set")
	}
	var c tokenClaims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithIssuer(v.issuer), jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return Claims{}, err
	}
	if c.Subject == "" {
		return Claims{}, errors.New("token has no subject")
	}
	return Claims{Sub: c.Subject, Email: c.Email, Role: c.Role}, nil
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header.
func BearerToken(header string) string {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
