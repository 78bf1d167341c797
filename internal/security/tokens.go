package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, tampered or expired.
	ErrInvalidToken = errors.New("invalid token")
	// ErrSigningKeyTooShort is returned when the HMAC key is under 32 bytes.
	ErrSigningKeyTooShort = errors.New("token signing key must be at least 32 bytes")
)

// DefaultTokenTTL is the validity window of a session token.
const DefaultTokenTTL = 2 * time.Hour

// SessionClaims is the claim set carried by a session token.
type SessionClaims struct {
	AccountID string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	jwt.RegisteredClaims
}

// IssuedToken is a signed token together with its validity window.
type IssuedToken struct {
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer returns an issuer signing with key. There is no default key:
// a short key is a configuration error.
func NewTokenIssuer(key []byte, issuer string, ttl time.Duration) (*TokenIssuer, error) {
	if len(key) < 32 {
		return nil, ErrSigningKeyTooShort
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &TokenIssuer{key: k, issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// TTL reports the validity window of issued tokens.
func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs a new token for the account identity.
func (i *TokenIssuer) Issue(accountID, username, email string) (IssuedToken, error) {
	now := i.now().UTC().Truncate(time.Second)
	expiresAt := now.Add(i.ttl)
	claims := SessionClaims{
		AccountID: accountID,
		Username:  username,
		Email:     email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("sign session token: %w", err)
	}
	return IssuedToken{Token: signed, IssuedAt: now, ExpiresAt: expiresAt}, nil
}

// Verify parses token and checks its signature, algorithm, expiry and issuer.
// Every failure is reported as ErrInvalidToken.
func (i *TokenIssuer) Verify(token string) (*SessionClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(i.now),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.key, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.AccountID == "" || claims.Subject != claims.AccountID {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
