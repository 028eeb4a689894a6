package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "erpconsole"

// ErrInvalidToken is returned for cookies that fail signature or claim checks.
var ErrInvalidToken = errors.New("session: invalid token")

// TokenCodec signs the session cookie. The cookie carries only the session
// id and username; everything else stays server-side.
type TokenCodec struct {
	key []byte
	now func() time.Time
}

// NewTokenCodec returns a codec using HMAC-SHA256 with key.
func NewTokenCodec(key []byte) (*TokenCodec, error) {
	if len(key) < 32 {
		return nil, fmt.Errorf("session: signing key must be at least 32 bytes, got %d", len(key))
	}
	return &TokenCodec{key: key, now: time.Now}, nil
}

// Issue signs a token for the session.
func (c *TokenCodec) Issue(rec Record) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        rec.ID,
		Subject:   rec.Identity.Username,
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(c.now()),
		ExpiresAt: jwt.NewNumericDate(rec.ExpiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("session: signing token: %w", err)
	}
	return signed, nil
}

// Parse verifies token and returns the session id it names.
func (c *TokenCodec) Parse(token string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return c.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.ID == "" {
		return "", fmt.Errorf("%w: missing session id", ErrInvalidToken)
	}
	return claims.ID, nil
}
