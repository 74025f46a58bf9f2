// Package auth provides the credential primitives used by the API: bcrypt
// password hashing, signed access tokens carrying the username and role, and
// the single role check every protected endpoint goes through.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/platformhub/platformhub/internal/db/models"
)

// TokenIssuer is the "iss" claim of every access token.
const TokenIssuer = "platformhub"

// ErrInvalidToken is returned for any token that is malformed, expired,
// wrongly signed or signed with an unexpected algorithm.
var ErrInvalidToken = errors.New("invalid token")

// Claims represents the access token claims. Subject holds the username.
type Claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Username returns the subject claim.
func (c *Claims) Username() string {
	return c.Subject
}

// TokenManager issues and verifies access tokens. It is built once at startup
// from configuration and is safe for concurrent use.
type TokenManager struct {
	secret   []byte
	method   jwt.SigningMethod
	lifetime time.Duration
	now      func() time.Time
}

// NewTokenManager creates a TokenManager. algorithm must name an HMAC method
// (HS256, HS384, HS512).
func NewTokenManager(secret, algorithm string, lifetime time.Duration) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("token secret must not be empty")
	}
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}
	if lifetime <= 0 {
		return nil, errors.New("token lifetime must be positive")
	}
	return &TokenManager{
		secret:   []byte(secret),
		method:   method,
		lifetime: lifetime,
		now:      time.Now,
	}, nil
}

// Lifetime returns how long issued tokens stay valid.
func (m *TokenManager) Lifetime() time.Duration {
	return m.lifetime
}

// Issue creates a signed access token for username with role.
func (m *TokenManager) Issue(username string, role models.Role) (string, error) {
	now := m.now()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    TokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.lifetime)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(m.method, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token. All failures are reported as
// ErrInvalidToken wrapping the parser's reason.
func (m *TokenManager) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
