package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := &service{secret: []byte("test-secret")}
	accountID := uuid.New()

	token, err := svc.issueToken(accountID)
	if err != nil {
		t.Fatalf("issueToken: %v", err)
	}

	got, err := svc.ValidateToken(context.Background(), token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if got != accountID {
		t.Errorf("account id: got %s, want %s", got, accountID)
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	issuer := &service{secret: []byte("secret-a")}
	verifier := &service{secret: []byte("secret-b")}

	token, err := issuer.issueToken(uuid.New())
	if err != nil {
		t.Fatalf("issueToken: %v", err)
	}
	if _, err := verifier.ValidateToken(context.Background(), token); err == nil {
		t.Error("token signed with a different secret should be rejected")
	}
}

func TestValidateToken_Expired(t *testing.T) {
	secret := []byte("test-secret")
	svc := &service{secret: secret}

	claims := jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := svc.ValidateToken(context.Background(), token); err == nil {
		t.Error("expired token should be rejected")
	}
}

func TestValidateToken_Garbage(t *testing.T) {
	svc := &service{secret: []byte("test-secret")}

	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := svc.ValidateToken(context.Background(), tok); err == nil {
			t.Errorf("token %q should be rejected", tok)
		}
	}
}

func TestValidateToken_NonUUIDSubject(t *testing.T) {
	secret := []byte("test-secret")
	svc := &service{secret: secret}

	claims := jwt.RegisteredClaims{
		Subject:   "not-a-uuid",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := svc.ValidateToken(context.Background(), token); err == nil {
		t.Error("token with malformed subject should be rejected")
	}
}
