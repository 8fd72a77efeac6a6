package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestAuthService_GenerateAndValidateToken(t *testing.T) {
	authService := NewAuthService("test-secret", time.Hour)

	token, expires, err := authService.GenerateToken(RoleAdmin)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	if token == "" {
		t.Fatal("GenerateToken() returned empty token")
	}

	if d := time.Until(expires); d < 59*time.Minute || d > time.Hour {
		t.Errorf("expiry %v out of range", d)
	}

	claims, err := authService.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}

	if claims.Role != RoleAdmin {
		t.Errorf("Role = %v, want %v", claims.Role, RoleAdmin)
	}

	if claims.ID == "" {
		t.Error("token ID should be set")
	}
}

func TestAuthService_UniqueTokenIDs(t *testing.T) {
	authService := NewAuthService("test-secret", time.Hour)

	t1, _, _ := authService.GenerateToken(RoleAdmin)
	t2, _, _ := authService.GenerateToken(RoleAdmin)

	c1, err := authService.ValidateToken(t1)
	if err != nil {
		t.Fatal(err)
	}
	c2, err := authService.ValidateToken(t2)
	if err != nil {
		t.Fatal(err)
	}

	if c1.ID == c2.ID {
		t.Error("tokens should carry distinct IDs")
	}
}

func TestAuthService_InvalidToken(t *testing.T) {
	authService := NewAuthService("test-secret", time.Hour)

	_, err := authService.ValidateToken("invalid-token")
	if err == nil {
		t.Error("ValidateToken() should return error for invalid token")
	}
}

func TestAuthService_WrongSecret(t *testing.T) {
	authService1 := NewAuthService("secret-1", time.Hour)
	authService2 := NewAuthService("secret-2", time.Hour)

	token, _, _ := authService1.GenerateToken(RoleAdmin)

	_, err := authService2.ValidateToken(token)
	if err == nil {
		t.Error("ValidateToken() should return error for token signed with different secret")
	}
}

func TestAuthService_WrongIssuer(t *testing.T) {
	claims := Claims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}

	authService := NewAuthService("test-secret", time.Hour)
	if _, err := authService.ValidateToken(token); err == nil {
		t.Error("ValidateToken() should reject a foreign issuer")
	}
}

func TestAuthService_ExpiredToken(t *testing.T) {
	// Create service with negative token duration
	authService := NewAuthService("test-secret", -time.Hour)

	token, _, _ := authService.GenerateToken(RoleAdmin)

	_, err := authService.ValidateToken(token)
	if err == nil {
		t.Error("ValidateToken() should return error for expired token")
	}
}
