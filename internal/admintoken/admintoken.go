// Package admintoken issues and validates bearer tokens for the optional
// HTTP diagnostics surface (internal/diagnostics), grounded on the
// teacher's internal/controlplane/api/auth JWTService but trimmed to a
// single operator role: there is no user/group model in this layer, so
// a token simply asserts "the holder may read diagnostics", nothing
// more. This is a control-plane concept, separate from and never a
// substitute for the wire-level two-slot handshake token (internal/handshake).
package admintoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidSecretLength mirrors the teacher's minimum-HMAC-key-length
// guard: a short secret makes the HS256 signature brute-forceable.
var ErrInvalidSecretLength = errors.New("admintoken: secret must be at least 32 characters")

// ErrInvalidToken is returned for a malformed, unsigned, or
// wrong-issuer token.
var ErrInvalidToken = errors.New("admintoken: invalid token")

// ErrExpiredToken is returned once a token's expiry has passed.
var ErrExpiredToken = errors.New("admintoken: token has expired")

const issuer = "tuplremoted-diagnostics"

// Claims is the JWT payload for a diagnostics bearer token.
type Claims struct {
	jwt.RegisteredClaims
}

// Issuer signs and verifies diagnostics bearer tokens with a single
// shared HMAC secret (internal/config's DiagnosticsConfig.AdminTokenSecret).
type Issuer struct {
	secret   []byte
	lifetime time.Duration
}

// NewIssuer creates an Issuer. secret must be at least 32 bytes; ttl
// bounds how long an issued token stays valid, defaulting to one hour.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if len(secret) < 32 {
		return nil, ErrInvalidSecretLength
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Issuer{secret: []byte(secret), lifetime: ttl}, nil
}

// Issue mints a fresh bearer token for subject (tuplremotectl login
// always passes "tuplremotectl").
func (i *Issuer) Issue(subject string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(i.lifetime)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("admintoken: sign: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate checks a bearer token's signature, issuer, and expiry,
// returning its claims on success.
func (i *Issuer) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("admintoken: unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Issuer != issuer {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
