// Package identity verifies bearer tokens issued by the identity provider and
// turns them into principals. Tokens are HS256 JWTs signed with a key derived
// from a shared secret.
package identity

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"

	"github.com/example/collab-sessions/internal/application"
)

// ErrUnauthorized is returned for any token that fails verification.
var ErrUnauthorized = errors.New("identity: unauthorized")

const (
	keyInfo       = "sessions-identity-v1"
	signingMethod = "HS256"
	defaultLeeway = 30 * time.Second
)

// Config controls token validation.
type Config struct {
	Secret   string
	Issuer   string
	Audience string
	Leeway   time.Duration
}

func (c Config) validate() error {
	var problems []string
	if len(c.Secret) < 16 {
		problems = append(problems, "secret must be at least 16 bytes")
	}
	if strings.TrimSpace(c.Issuer) == "" {
		problems = append(problems, "issuer is required")
	}
	if strings.TrimSpace(c.Audience) == "" {
		problems = append(problems, "audience is required")
	}
	if len(problems) > 0 {
		return errors.New("identity config: " + strings.Join(problems, "; "))
	}
	return nil
}

// deriveKey stretches the configured secret into the 32-byte HMAC key.
func deriveKey(secret string) ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive signing key: %w", err)
	}
	return key, nil
}

// Verifier validates bearer tokens.
type Verifier struct {
	cfg    Config
	key    []byte
	parser *jwt.Parser
}

// NewVerifier builds a verifier for cfg.
func NewVerifier(cfg Config) (*Verifier, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Leeway == 0 {
		cfg.Leeway = defaultLeeway
	}
	key, err := deriveKey(cfg.Secret)
	if err != nil {
		return nil, err
	}
	return &Verifier{
		cfg: cfg,
		key: key,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{signingMethod}),
			jwt.WithExpirationRequired(),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithAudience(cfg.Audience),
			jwt.WithLeeway(cfg.Leeway),
		),
	}, nil
}

// Verify checks signature, issuer, audience and expiry, and returns the
// principal named by the sub claim.
func (v *Verifier) Verify(ctx context.Context, token string) (application.Principal, error) {
	if err := ctx.Err(); err != nil {
		return application.Principal{}, err
	}
	if token == "" {
		return application.Principal{}, fmt.Errorf("%w: empty token", ErrUnauthorized)
	}

	claims := &jwt.RegisteredClaims{}
	if _, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	}); err != nil {
		return application.Principal{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return application.Principal{}, fmt.Errorf("%w: missing sub", ErrUnauthorized)
	}
	return application.Principal{UserID: sub}, nil
}

// Issuer mints tokens the Verifier accepts. Used for local development and tests.
type Issuer struct {
	cfg Config
	key []byte
	now func() time.Time
}

// NewIssuer builds an issuer for cfg. now defaults to time.Now.
func NewIssuer(cfg Config, now func() time.Time) (*Issuer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	key, err := deriveKey(cfg.Secret)
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &Issuer{cfg: cfg, key: key, now: now}, nil
}

// Issue returns a signed token for userID valid for ttl.
func (i *Issuer) Issue(userID string, ttl time.Duration) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", errors.New("identity: user id is required")
	}
	if ttl <= 0 {
		return "", errors.New("identity: ttl must be positive")
	}
	now := i.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    i.cfg.Issuer,
		Audience:  jwt.ClaimStrings{i.cfg.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
