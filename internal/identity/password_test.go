package identity

import "testing"

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-password")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "s3cret-password" {
		t.Fatal("hash equals plaintext")
	}
	if err := VerifyPassword(hash, "s3cret-password"); err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if err := VerifyPassword(hash, "wrong-password"); err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestRefreshTokenHashing(t *testing.T) {
	token := "header.payload.signature"
	hash := HashRefreshToken(token)
	if hash == token {
		t.Fatal("digest equals token")
	}
	if hash != HashRefreshToken(token) {
		t.Fatal("digest not deterministic")
	}
	if !MatchRefreshToken(hash, token) {
		t.Fatal("expected match")
	}
	if MatchRefreshToken(hash, token+"x") {
		t.Fatal("expected mismatch")
	}
}
