package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func newTestTokens(t *testing.T) *Tokens {
	t.Helper()
	tokens, err := NewTokens([]byte("test-secret"), "todo-test")
	if err != nil {
		t.Fatalf("new tokens: %v", err)
	}
	return tokens
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	tokens := newTestTokens(t)
	signed, err := tokens.Issue("user-123", 2*time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	userID, err := tokens.Verify(signed)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if userID != "user-123" {
		t.Fatalf("unexpected user id: %s", userID)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	tokens := newTestTokens(t)
	signed, err := tokens.Issue("user-123", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	tokens.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := tokens.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token for expired, got %v", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	signed, err := newTestTokens(t).Issue("user-123", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	other, err := NewTokens([]byte("other-secret"), "todo-test")
	if err != nil {
		t.Fatalf("new tokens: %v", err)
	}
	if _, err := other.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token for wrong secret, got %v", err)
	}
}

func TestVerifyRejectsMalformedAndForeign(t *testing.T) {
	tokens := newTestTokens(t)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "user-123",
		"iss": "todo-test",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	wrongIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-123",
		"iss": "someone-else",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "todo-test",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	inputs := map[string]string{
		"empty":        "",
		"garbage":      "not-a-token",
		"dots":         strings.Repeat(".", 1000),
		"alg_none":     noneToken,
		"wrong_issuer": wrongIssuer,
		"missing_sub":  noSub,
	}
	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			if _, err := tokens.Verify(input); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected invalid token, got %v", err)
			}
		})
	}
}

func TestNewTokensRequiresSecret(t *testing.T) {
	if _, err := NewTokens(nil, ""); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}
