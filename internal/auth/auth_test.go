package auth

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndValidate(t *testing.T) {
	tokens, err := NewTokens("s3cret", "test-issuer")
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}

	token, err := tokens.GenerateToken("user-42", "ada@example.com", []string{"Admin", "viewer", "admin"}, 30*time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := tokens.ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if claims.Subject != "user-42" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if claims.Email != "ada@example.com" {
		t.Fatalf("unexpected email: %s", claims.Email)
	}
	if len(claims.Roles) != 2 || !slices.Contains(claims.Roles, "admin") || !slices.Contains(claims.Roles, "viewer") {
		t.Fatalf("roles were not normalised: %v", claims.Roles)
	}
	if claims.ID == "" {
		t.Fatal("expected token id")
	}
}

func TestParseRejectsForeignTokens(t *testing.T) {
	tokens, _ := NewTokens("s3cret", "test-issuer")
	other, _ := NewTokens("different", "test-issuer")
	otherIssuer, _ := NewTokens("s3cret", "someone-else")

	foreign, _ := other.GenerateToken("u1", "", nil, time.Minute)
	wrongIss, _ := otherIssuer.GenerateToken("u1", "", nil, time.Minute)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "u1", Issuer: "test-issuer"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	for name, tok := range map[string]string{
		"empty":        "",
		"garbage":      "not-a-jwt",
		"wrong secret": foreign,
		"wrong issuer": wrongIss,
		"alg none":     unsigned,
	} {
		if _, err := tokens.ParseAndValidate(tok); err != ErrInvalidToken {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestParseRejectsExpired(t *testing.T) {
	tokens, _ := NewTokens("s3cret", "")
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tokens.now = func() time.Time { return issued }
	token, err := tokens.GenerateToken("u1", "", nil, time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	tokens.now = func() time.Time { return issued.Add(2 * time.Minute) }
	if _, err := tokens.ParseAndValidate(token); err != ErrInvalidToken {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
}

func TestNewTokensRequiresSecret(t *testing.T) {
	if _, err := NewTokens("  ", "x"); err != ErrMissingSecret {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
	tokens, _ := NewTokens("s", "")
	if tokens.issuer != DefaultIssuer {
		t.Fatalf("unexpected default issuer: %s", tokens.issuer)
	}
	if _, err := tokens.GenerateToken(" ", "", nil, time.Minute); err == nil {
		t.Fatal("expected error for empty user")
	}
	if _, err := tokens.GenerateToken("u1", "", nil, 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}

func TestPrincipalContext(t *testing.T) {
	ctx := context.Background()
	if _, ok := UserIDFromContext(ctx); ok {
		t.Fatal("expected no user in empty context")
	}

	ctx = ContextWithPrincipal(ctx, Principal{UserID: " u1 ", Roles: []string{"Support", "support"}})
	id, ok := UserIDFromContext(ctx)
	if !ok || id != "u1" {
		t.Fatalf("unexpected user id: %q %v", id, ok)
	}
	if !HasRole(ctx, "SUPPORT") {
		t.Fatal("expected support role")
	}
	if HasRole(ctx, "admin") || HasRole(ctx, "") {
		t.Fatal("unexpected role match")
	}

	p, _ := PrincipalFromContext(ctx)
	p.Roles[0] = "mutated"
	if !HasRole(ctx, "support") {
		t.Fatal("principal roles leaked through copy")
	}
}
