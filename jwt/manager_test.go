package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newHSManager(t *testing.T, now func() time.Time) *Manager {
	t.Helper()
	m, err := NewManager(Config{TTL: time.Hour, Secret: testSecret, Issuer: "otpauth", Now: now})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

// tamperSignature flips one character in the middle of the signature segment.
// The final character is avoided because its low bits are padding.
func tamperSignature(token string) string {
	b := []byte(token)
	i := strings.LastIndexByte(token, '.') + 5
	if b[i] == 'A' {
		b[i] = 'B'
	} else {
		b[i] = 'A'
	}
	return string(b)
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	m := newHSManager(t, nil)

	token, err := m.Issue("acct-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	uid, err := m.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if uid != "acct-1" {
		t.Fatalf("expected acct-1, got %q", uid)
	}
}

func TestIssueAtReportsExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m := newHSManager(t, func() time.Time { return now })

	token, exp, err := m.IssueAt("acct-1", now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !exp.Equal(now.Add(time.Hour)) {
		t.Fatalf("expected expiry %v, got %v", now.Add(time.Hour), exp)
	}
	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !claims.ExpiresAt.Time.Equal(exp) || claims.Subject != "acct-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerifyExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := now
	m := newHSManager(t, func() time.Time { return clock })

	token, err := m.Issue("acct-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	clock = now.Add(time.Hour + time.Second)
	if _, err := m.Verify(token); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestVerifyTamperedSignature(t *testing.T) {
	m := newHSManager(t, nil)

	token, err := m.Issue("acct-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(tamperSignature(token)); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}

	other, err := NewManager(Config{Secret: []byte("ffffffffffffffffffffffffffffffff"), Issuer: "otpauth"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := other.Verify(token); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for foreign secret, got %v", err)
	}
}

func TestVerifyMalformed(t *testing.T) {
	m := newHSManager(t, nil)

	cases := []string{
		"",
		"not-a-token",
		"a.b.c",
		"eyJhbGciOiJub25lIn0.eyJ1aWQiOiJ0ZXN0In0.",
	}
	for _, tc := range cases {
		if _, err := m.Verify(tc); !errors.Is(err, ErrMalformed) {
			t.Fatalf("expected ErrMalformed for %q, got %v", tc, err)
		}
	}
}

func TestVerifyRejectsWrongAlgorithm(t *testing.T) {
	m := newHSManager(t, nil)
	_, priv := newEdKeys(t)

	claims := Claims{UID: "acct-1", RegisteredClaims: gjwt.RegisteredClaims{
		Issuer:    "otpauth",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims).SignedString(priv)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.Verify(token); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for wrong alg, got %v", err)
	}
}

func TestVerifyRequiresAccountClaim(t *testing.T) {
	m := newHSManager(t, nil)

	claims := Claims{RegisteredClaims: gjwt.RegisteredClaims{
		Issuer:    "otpauth",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.Verify(token); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for missing uid, got %v", err)
	}
}

func TestEd25519IssueVerify(t *testing.T) {
	pub, priv := newEdKeys(t)
	m, err := NewManager(Config{SigningMethod: MethodEd25519, Secret: priv, PublicKey: pub, KeyID: "k1"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	token, err := m.Issue("acct-ed")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if uid, err := m.Verify(token); err != nil || uid != "acct-ed" {
		t.Fatalf("verify: uid=%q err=%v", uid, err)
	}

	verifier, err := NewManager(Config{SigningMethod: MethodEd25519, PublicKey: pub, KeyID: "k1"})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	if _, err := verifier.Issue("acct-ed"); err == nil {
		t.Fatal("expected verify-only manager to refuse issuing")
	}
	if _, err := verifier.Verify(token); err != nil {
		t.Fatalf("verify-only manager: %v", err)
	}
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(Config{Secret: []byte("short")}); err == nil {
		t.Fatal("expected short secret to fail")
	}
	if _, err := NewManager(Config{Secret: testSecret, TTL: -time.Second}); err == nil {
		t.Fatal("expected negative ttl to fail")
	}
	if _, err := NewManager(Config{Secret: testSecret, SigningMethod: "rs512"}); err == nil {
		t.Fatal("expected unsupported method to fail")
	}
	if _, err := NewManager(Config{SigningMethod: MethodEd25519}); err == nil {
		t.Fatal("expected missing ed25519 public key to fail")
	}
	m, err := NewManager(Config{Secret: testSecret})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if m.TTL() != DefaultTTL {
		t.Fatalf("expected default ttl %v, got %v", DefaultTTL, m.TTL())
	}
}

func FuzzVerify(f *testing.F) {
	m, err := NewManager(Config{Secret: testSecret})
	if err != nil {
		f.Fatal(err)
	}
	valid, err := m.Issue("fuzz")
	if err != nil {
		f.Fatal(err)
	}

	f.Add(valid)
	f.Add("")
	f.Add("not.a.jwt")
	f.Add("eyJhbGciOiJub25lIn0.eyJ1aWQiOiJ0ZXN0In0.")

	f.Fuzz(func(t *testing.T, input string) {
		uid, err := m.Verify(input)
		if err != nil {
			if !errors.Is(err, ErrMalformed) && !errors.Is(err, ErrInvalidSignature) && !errors.Is(err, ErrExpired) {
				t.Fatalf("unclassified error: %v", err)
			}
			return
		}
		if uid == "" {
			t.Fatal("Verify returned empty uid without error")
		}
	})
}
