// Package auth implements the single-role admin login and its bearer tokens.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/karloscodes/cartridge/crypto"
)

const (
	// RoleAdmin is the only role a token can carry.
	RoleAdmin = "admin"
	// TokenTTL is how long an issued admin token stays valid.
	TokenTTL = 7 * 24 * time.Hour

	issuer = "storekriti"
)

var (
	ErrNotConfigured   = errors.New("admin credentials are not configured")
	ErrInvalidPassword = errors.New("invalid password")
	ErrUnauthorized    = errors.New("unauthorized")
)

// Claims is the admin token payload.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies admin tokens with a shared HMAC secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer returns an Issuer for secret. An empty secret yields an Issuer
// that refuses to sign or verify anything.
func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: TokenTTL}
}

// Issue signs an admin token valid from now for TokenTTL.
func (i *Issuer) Issue(now time.Time) (string, error) {
	if len(i.secret) == 0 {
		return "", ErrNotConfigured
	}

	claims := &Claims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, expiry and role. Every failure wraps ErrUnauthorized.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	if len(i.secret) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, ErrNotConfigured)
	}
	if tokenString == "" {
		return nil, fmt.Errorf("%w: missing token", ErrUnauthorized)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithExpirationRequired(), jwt.WithIssuer(issuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("%w: token is not valid", ErrUnauthorized)
	}
	if claims.Role != RoleAdmin {
		return nil, fmt.Errorf("%w: unexpected role %q", ErrUnauthorized, claims.Role)
	}
	return claims, nil
}

// CheckPassword compares submitted with the configured admin password.
// A configured value starting with "$2" is treated as a bcrypt hash.
func CheckPassword(configured, submitted string) error {
	if configured == "" {
		return ErrNotConfigured
	}

	if strings.HasPrefix(configured, "$2") {
		if crypto.VerifyPassword(configured, submitted) {
			return nil
		}
		return ErrInvalidPassword
	}

	if subtle.ConstantTimeCompare([]byte(configured), []byte(submitted)) == 1 {
		return nil
	}
	return ErrInvalidPassword
}

// HashPassword returns a bcrypt hash suitable for ADMIN_PASSWORD.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	hash, err := crypto.GeneratePasswordHash(password)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
