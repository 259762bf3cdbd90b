package crypto

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher_HashAndVerify(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("s3cret-pass")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	if hash == "s3cret-pass" {
		t.Fatalf("expected password to be hashed")
	}
	if !h.Verify(hash, "s3cret-pass") {
		t.Fatalf("expected matching password to verify")
	}
	if h.Verify(hash, "wrong-pass") {
		t.Fatalf("expected wrong password to fail")
	}
}

func TestBcryptHasher_FallsBackToDefaultCost(t *testing.T) {
	h := NewBcryptHasher(99)
	if h.cost != bcrypt.DefaultCost {
		t.Fatalf("expected default cost, got %d", h.cost)
	}
}
