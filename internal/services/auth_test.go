package services

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerifyArgon2id(t *testing.T) {
	tokens := testTokens()
	hash, err := tokens.HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$") {
		t.Fatalf("unexpected hash format %s", hash)
	}
	if !tokens.VerifyPassword("correct horse", hash) {
		t.Fatalf("expected password to verify")
	}
	if tokens.VerifyPassword("wrong", hash) {
		t.Fatalf("wrong password must not verify")
	}
}

func TestVerifyLegacyBcrypt(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("old-secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	if !testTokens().VerifyPassword("old-secret", string(legacy)) {
		t.Fatalf("bcrypt hashes should still verify")
	}
}

func TestAccessTokenCarriesRoles(t *testing.T) {
	tokens := testTokens()
	signed, exp, err := tokens.CreateAccessToken("j1", "jo@example.com", []string{RoleContractor})
	if err != nil || exp == 0 {
		t.Fatalf("create: %v", err)
	}
	token, claims, err := tokens.ParseToken(signed)
	if err != nil || !token.Valid {
		t.Fatalf("parse: %v", err)
	}
	roles := ClaimRoles(claims)
	if len(roles) != 1 || roles[0] != RoleContractor || claims["typ"] != "access" {
		t.Fatalf("unexpected claims %#v", claims)
	}
}

func TestTokenFromOtherIssuerRejected(t *testing.T) {
	other := testTokens()
	other.Issuer = "someone-else"
	signed, _, err := other.CreateAccessToken("a1", "a@example.com", []string{RoleAdmin})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := testTokens().ParseToken(signed); err == nil {
		t.Fatalf("expected issuer mismatch")
	}
}

func TestDownloadTokenRejectsAccessToken(t *testing.T) {
	tokens := testTokens()
	access, _, _ := tokens.CreateAccessToken("a1", "a@example.com", []string{RoleAdmin})
	if _, _, err := tokens.ParseDownloadToken(access); err == nil {
		t.Fatalf("access tokens must not open files")
	}
}
