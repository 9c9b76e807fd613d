package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/localdrop/pkg/config"
)

func TestMintAndParseVerificationToken(t *testing.T) {
	cfg := config.JWTConfig{
		Secret:            "secret",
		Issuer:            "localdrop",
		ExpirationMinutes: 30,
	}
	now := time.Now().UTC()

	token, err := MintVerificationToken(cfg, now, "  A@Gmail.com ")
	if err != nil {
		t.Fatalf("mint verification token: %v", err)
	}

	claims, err := ParseVerificationToken(cfg, token)
	if err != nil {
		t.Fatalf("parse verification token: %v", err)
	}
	if claims.Email != "a@gmail.com" {
		t.Fatalf("expected normalized email, got %q", claims.Email)
	}
	if claims.Purpose != PurposeEmailVerified {
		t.Fatalf("unexpected purpose %q", claims.Purpose)
	}
	if claims.ID == "" {
		t.Fatalf("expected jti to be populated")
	}
}

func TestParseVerificationTokenRejectsExpired(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "localdrop", ExpirationMinutes: 1}
	token, err := MintVerificationToken(cfg, time.Now().Add(-2*time.Hour), "a@gmail.com")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseVerificationToken(cfg, token); err == nil || !strings.Contains(err.Error(), "expired") {
		t.Fatalf("expected expiry error, got %v", err)
	}
}

func TestParseVerificationTokenRejectsWrongSecret(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "localdrop", ExpirationMinutes: 5}
	token, err := MintVerificationToken(cfg, time.Now(), "a@gmail.com")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	other := cfg
	other.Secret = "other"
	if _, err := ParseVerificationToken(other, token); err == nil {
		t.Fatal("expected signature failure")
	}
}

func TestMintVerificationTokenValidatesConfig(t *testing.T) {
	if _, err := MintVerificationToken(config.JWTConfig{}, time.Now(), "a@gmail.com"); err == nil {
		t.Fatal("expected missing secret error")
	}
	if _, err := MintVerificationToken(config.JWTConfig{Secret: "s", Issuer: "i", ExpirationMinutes: 1}, time.Now(), " "); err == nil {
		t.Fatal("expected missing email error")
	}
}
