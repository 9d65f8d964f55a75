package notification

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

var (
	// ErrNoSigningSecret is returned when an unsubscribe link is needed but
	// no signing secret is configured.
	ErrNoSigningSecret = errors.New("notification: unsubscribe signing secret not configured")
	// ErrInvalidToken is returned when an unsubscribe token does not verify.
	ErrInvalidToken = errors.New("notification: invalid unsubscribe token")
)

const unsubscribeKeyInfo = "notification-unsubscribe-v1"

// TokenCodec signs and verifies unsubscribe tokens. A token is a compact
// HS256 JWT whose subject is the canonical unsubscribe string.
type TokenCodec struct {
	key []byte
}

// NewTokenCodec derives the signing key from secret. An empty secret yields a
// codec that signs nothing and verifies nothing.
func NewTokenCodec(secret string) (*TokenCodec, error) {
	if secret == "" {
		return &TokenCodec{}, nil
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(unsubscribeKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive unsubscribe key: %w", err)
	}
	return &TokenCodec{key: key}, nil
}

// Configured reports whether the codec has a key.
func (c *TokenCodec) Configured() bool {
	return c != nil && len(c.key) > 0
}

func unsubscribeSubject(contextID, userID int64, notificationID string) string {
	return fmt.Sprintf("unsubscribe-%d-%d-%s", contextID, userID, notificationID)
}

// Sign returns the token for the triple, or "" when no secret is configured.
// Tokens are deterministic.
func (c *TokenCodec) Sign(contextID, userID int64, notificationID string) string {
	if !c.Configured() {
		return ""
	}
	claims := jwt.RegisteredClaims{Subject: unsubscribeSubject(contextID, userID, notificationID)}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return ""
	}
	return token
}

// Verify reports whether token was signed for exactly this triple.
func (c *TokenCodec) Verify(token string, contextID, userID int64, notificationID string) bool {
	if !c.Configured() || token == "" {
		return false
	}
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return c.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return false
	}
	return claims.Subject == unsubscribeSubject(contextID, userID, notificationID)
}
