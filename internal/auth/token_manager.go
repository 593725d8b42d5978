package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultTokenTTL = time.Hour

	tokenIssuer   = "deskbank-auth"
	tokenAudience = "deskbank-api"
)

var (
	errMissingSigningSecret = errors.New("signing secret must be provided")
	errMissingIssueSecret   = errors.New("issue secret must be provided")
	errMissingSubject       = errors.New("subject must be provided")

	// ErrIssueSecretMismatch indicates a token exchange with the wrong shared
	// secret.
	ErrIssueSecretMismatch = errors.New("issue secret mismatch")
)

// TokenManagerConfig configures the HS256 token manager.
type TokenManagerConfig struct {
	SigningSecret []byte
	IssueSecret   []byte
	TokenTTL      time.Duration
	Clock         func() time.Time
}

// TokenManager issues and validates the bearer tokens protecting the desk
// and library endpoints. There is no external identity provider: callers
// exchange the shared issue secret for a token naming their subject.
type TokenManager struct {
	signingSecret []byte
	issueSecret   []byte
	tokenTTL      time.Duration
	clock         func() time.Time
}

// NewTokenManager constructs a TokenManager with sane defaults.
func NewTokenManager(cfg TokenManagerConfig) *TokenManager {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TokenManager{
		signingSecret: cfg.SigningSecret,
		issueSecret:   cfg.IssueSecret,
		tokenTTL:      ttl,
		clock:         clock,
	}
}

// IssueToken produces a signed JWT and its expiry (seconds) for the subject,
// after checking the caller-supplied issue secret.
func (m *TokenManager) IssueToken(_ context.Context, subject, issueSecret string) (string, int64, error) {
	if len(m.signingSecret) == 0 {
		return "", 0, errMissingSigningSecret
	}
	if len(m.issueSecret) == 0 {
		return "", 0, errMissingIssueSecret
	}
	if subject == "" {
		return "", 0, errMissingSubject
	}
	if subtle.ConstantTimeCompare([]byte(issueSecret), m.issueSecret) != 1 {
		return "", 0, ErrIssueSecretMismatch
	}

	now := m.clock().UTC()
	expiresAt := now.Add(m.tokenTTL).UTC()

	registered := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    tokenIssuer,
		Audience:  []string{tokenAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, registered)
	signed, err := token.SignedString(m.signingSecret)
	if err != nil {
		return "", 0, err
	}

	return signed, int64(expiresAt.Sub(now).Seconds()), nil
}

// ValidateToken ensures the bearer token is well formed and returns the
// subject.
func (m *TokenManager) ValidateToken(tokenString string) (string, error) {
	if len(m.signingSecret) == 0 {
		return "", errMissingSigningSecret
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing algorithm: %s", token.Method.Alg())
			}
			return m.signingSecret, nil
		},
		jwt.WithAudience(tokenAudience),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(m.clock),
	)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errMissingSubject
	}
	return claims.Subject, nil
}
