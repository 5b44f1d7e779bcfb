package session

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"binrush.ai/internal/sim/clock"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestAuthority(t *testing.T, fc *clock.Fake) *Authority {
	t.Helper()
	a, err := NewAuthority(testSecret, WithClock(fc))
	if err != nil {
		t.Fatalf("NewAuthority: %v", err)
	}
	return a
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	fc := clock.NewFake(time.UnixMilli(1_700_000_000_123))
	a := newTestAuthority(t, fc)

	tok, err := a.Issue()
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if tok.StartedAt.UnixMilli() != 1_700_000_000_123 {
		t.Fatalf("startedAt=%d", tok.StartedAt.UnixMilli())
	}
	fc.Advance(90 * time.Second)
	s, err := a.Verify(tok.Value)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if s.ID != tok.ID || !s.StartedAt.Equal(tok.StartedAt) {
		t.Fatalf("verified session mismatch: %+v vs %+v", s, tok.Session)
	}
}

func TestIssue_DistinctIDs(t *testing.T) {
	a := newTestAuthority(t, clock.NewFake(time.UnixMilli(1_700_000_000_000)))
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		tok, err := a.Issue()
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		if seen[tok.ID] {
			t.Fatalf("duplicate id %q", tok.ID)
		}
		seen[tok.ID] = true
	}
}

func TestVerify_Expired(t *testing.T) {
	fc := clock.NewFake(time.UnixMilli(1_700_000_000_000))
	a := newTestAuthority(t, fc)
	tok, _ := a.Issue()

	fc.Advance(DefaultTTL - time.Millisecond)
	if _, err := a.Verify(tok.Value); err != nil {
		t.Fatalf("just before expiry: %v", err)
	}
	fc.Advance(time.Millisecond)
	if _, err := a.Verify(tok.Value); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestVerify_RejectsTampering(t *testing.T) {
	fc := clock.NewFake(time.UnixMilli(1_700_000_000_000))
	a := newTestAuthority(t, fc)
	tok, _ := a.Issue()

	// Flip a character in the signature segment.
	parts := strings.Split(tok.Value, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	other, err := NewAuthority([]byte("ffffffffffffffffffffffffffffffff"), WithClock(fc))
	if err != nil {
		t.Fatalf("NewAuthority: %v", err)
	}
	foreign, _ := other.Issue()

	// An earlier start claim signed with a different key must not verify.
	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{ID: "x"},
		StartMs:          1_600_000_000_000,
	})
	forgedValue, _ := forged.SignedString([]byte("not-the-secret-not-the-secret!!"))

	none := jwt.NewWithClaims(jwt.SigningMethodNone, claims{
		RegisteredClaims: jwt.RegisteredClaims{ID: "x"},
		StartMs:          1_700_000_000_000,
	})
	noneValue, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	for name, v := range map[string]string{
		"empty":    "",
		"garbage":  "not-a-token",
		"tampered": tampered,
		"foreign":  foreign.Value,
		"forged":   forgedValue,
		"alg none": noneValue,
	} {
		if _, err := a.Verify(v); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestNewAuthority_ShortSecret(t *testing.T) {
	if _, err := NewAuthority([]byte("short")); err == nil {
		t.Fatalf("expected error for short secret")
	}
}

func TestGenerateSecret(t *testing.T) {
	b, err := GenerateSecret(bytes.NewReader(bytes.Repeat([]byte{7}, 64)), 32)
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	if len(b) != 32 || b[0] != 7 {
		t.Fatalf("unexpected secret %v", b)
	}
	if _, err := GenerateSecret(bytes.NewReader([]byte{1}), 32); err == nil {
		t.Fatalf("expected short read error")
	}
	if _, err := GenerateSecret(nil, 0); err == nil {
		t.Fatalf("expected size error")
	}
	if b, err := GenerateSecret(nil, 32); err != nil || len(b) != 32 {
		t.Fatalf("crypto/rand secret: %v len=%d", err, len(b))
	}
}
