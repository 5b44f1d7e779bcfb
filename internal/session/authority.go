// Package session issues and verifies the tamper-evident credential a client
// must present with a score. Tokens are stateless HS256 JWTs carrying the
// session start time in milliseconds; single use is enforced separately by a
// Ledger keyed on the token id.
package session

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"binrush.ai/internal/sim/clock"
)

const DefaultTTL = 2 * time.Hour

var (
	ErrInvalidToken = errors.New("session token is invalid")
	ErrExpired      = errors.New("session token is expired")
)

type claims struct {
	jwt.RegisteredClaims
	StartMs int64 `json:"start_ms"`
}

// Session is a verified token.
type Session struct {
	ID        string
	StartedAt time.Time
	ExpiresAt time.Time
}

// Token is a freshly issued credential.
type Token struct {
	Session
	Value string
}

type Authority struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
	newID  func() string
}

type Option func(*Authority)

func WithClock(c clock.Clock) Option { return func(a *Authority) { a.clock = c } }

func WithTTL(ttl time.Duration) Option { return func(a *Authority) { a.ttl = ttl } }

func WithIDSource(f func() string) Option { return func(a *Authority) { a.newID = f } }

func NewAuthority(secret []byte, opts ...Option) (*Authority, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("session secret must be at least 16 bytes, got %d", len(secret))
	}
	a := &Authority{
		secret: append([]byte(nil), secret...),
		ttl:    DefaultTTL,
		clock:  clock.Real{},
		newID:  uuid.NewString,
	}
	for _, o := range opts {
		o(a)
	}
	if a.ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be > 0")
	}
	return a, nil
}

func (a *Authority) TTL() time.Duration { return a.ttl }

func (a *Authority) Issue() (Token, error) {
	now := a.clock.Now()
	start := time.UnixMilli(now.UnixMilli())
	id := a.newID()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			IssuedAt:  jwt.NewNumericDate(start),
			ExpiresAt: jwt.NewNumericDate(start.Add(a.ttl)),
		},
		StartMs: start.UnixMilli(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(a.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign session: %w", err)
	}
	return Token{
		Session: Session{ID: id, StartedAt: start, ExpiresAt: start.Add(a.ttl)},
		Value:   signed,
	}, nil
}

// Verify checks the signature (HS256 only) and that the session is younger
// than the TTL. Expiry is judged from start_ms against the injected clock, not
// from the coarser exp claim.
func (a *Authority) Verify(token string) (Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Session{}, ErrInvalidToken
	}
	var parsed claims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if parsed.ID == "" || parsed.StartMs <= 0 {
		return Session{}, ErrInvalidToken
	}
	start := time.UnixMilli(parsed.StartMs)
	s := Session{ID: parsed.ID, StartedAt: start, ExpiresAt: start.Add(a.ttl)}
	if a.clock.Now().Sub(start) >= a.ttl {
		return s, ErrExpired
	}
	return s, nil
}

// GenerateSecret reads n random bytes from r (crypto/rand when nil).
func GenerateSecret(r io.Reader, n int) ([]byte, error) {
	if n <= 0 {
		return nil, errors.New("secret size must be greater than zero")
	}
	if r == nil {
		r = rand.Reader
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}
	return buf, nil
}
