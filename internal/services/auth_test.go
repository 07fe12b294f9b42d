package services

import (
	"testing"
	"time"
)

func TestJWTTokens(t *testing.T) {
	auth := NewAuthService("test-secret", time.Hour)

	a, err := auth.Generate(cpfA)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b, _ := auth.Generate(cpfA)
	if a == b {
		t.Fatal("tokens must differ per login")
	}
	if err := auth.Verify(a); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	claims, err := auth.parse(a)
	if err != nil || claims.CPF != cpfA {
		t.Fatalf("claims=%+v err=%v", claims, err)
	}

	other := NewAuthService("another-secret", time.Hour)
	if err := other.Verify(a); err == nil {
		t.Fatal("token signed with another key was accepted")
	}
	if err := auth.Verify("not-a-token"); err == nil {
		t.Fatal("garbage accepted")
	}
}

func TestJWTExpiry(t *testing.T) {
	auth := NewAuthService("test-secret", -time.Minute)
	token, err := auth.Generate(cpfA)
	if err != nil {
		t.Fatal(err)
	}
	if err := auth.Verify(token); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestGenerateWithoutSecret(t *testing.T) {
	if _, err := NewAuthService("", 0).Generate(cpfA); err == nil {
		t.Fatal("expected an error without a signing key")
	}
}
