package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndParseToken(t *testing.T) {
	secret := "test-secret"
	claims := Claims{UserID: "u1", EmployerID: "er-1", Role: RoleAdmin}

	token, err := GenerateToken(secret, claims, time.Hour)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	parsed, err := ParseToken(secret, token)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	if parsed.UserID != claims.UserID || parsed.EmployerID != claims.EmployerID || parsed.Role != claims.Role {
		t.Fatalf("claims mismatch: %+v", parsed)
	}
	if parsed.Subject != "u1" || parsed.Issuer != Issuer {
		t.Fatalf("unexpected registered claims: %+v", parsed.RegisteredClaims)
	}
	if parsed.User() != (UserContext{UserID: "u1", EmployerID: "er-1", Role: RoleAdmin}) {
		t.Fatalf("unexpected user %+v", parsed.User())
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken("secret-a", Claims{UserID: "u1", Role: RoleViewer}, time.Hour)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseToken("secret-b", token); err == nil {
		t.Fatal("expected signature error")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	token, err := GenerateToken("secret", Claims{UserID: "u1", Role: RoleViewer}, -time.Minute)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseToken("secret", token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expiry error, got %v", err)
	}
}

func TestParseTokenRejectsForeignIssuer(t *testing.T) {
	claims := Claims{UserID: "u1", Role: RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "hrm",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseToken("secret", token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected issuer error, got %v", err)
	}
}

func TestParseTokenRequiresRole(t *testing.T) {
	token, err := GenerateToken("secret", Claims{UserID: "u1"}, time.Hour)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseToken("secret", token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected missing role error, got %v", err)
	}
}

func TestCanAccessEmployer(t *testing.T) {
	scoped := UserContext{UserID: "u1", EmployerID: "er-1"}
	if !scoped.CanAccessEmployer("er-1") || scoped.CanAccessEmployer("er-2") {
		t.Fatalf("unexpected scope result for %+v", scoped)
	}
	global := UserContext{UserID: "u2"}
	if !global.CanAccessEmployer("er-2") {
		t.Fatal("expected unscoped user to access any employer")
	}
}
