package auth

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher_RoundTrip(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("testpassword123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hash == "testpassword123" {
		t.Fatal("expected hash to differ from the plaintext")
	}
	if err := h.Compare(hash, "testpassword123"); err != nil {
		t.Errorf("expected match, got %v", err)
	}
	if err := h.Compare(hash, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestNewBcryptHasher_ClampsCost(t *testing.T) {
	if h := NewBcryptHasher(0); h.Cost != bcrypt.DefaultCost {
		t.Errorf("expected default cost, got %d", h.Cost)
	}
	if h := NewBcryptHasher(bcrypt.MinCost); h.Cost != bcrypt.MinCost {
		t.Errorf("expected min cost, got %d", h.Cost)
	}
}
