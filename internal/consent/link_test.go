package consent

import (
	"errors"
	"testing"
	"time"
)

func TestLinkSigner_RoundTrip(t *testing.T) {
	s := NewLinkSigner("secret")
	token := s.Sign("5551234567", time.Hour)

	phone, err := s.Verify(token)
	if err != nil {
		t.Fatal(err)
	}
	if phone != "5551234567" {
		t.Fatalf("want phone back, got %q", phone)
	}
}

func TestLinkSigner_RejectsTampering(t *testing.T) {
	s := NewLinkSigner("secret")
	token := s.Sign("5551234567", time.Hour)

	if _, err := s.Verify(token + "x"); !errors.Is(err, ErrBadToken) {
		t.Fatalf("want ErrBadToken, got %v", err)
	}
	if _, err := s.Verify("garbage"); !errors.Is(err, ErrBadToken) {
		t.Fatalf("want ErrBadToken, got %v", err)
	}

	other := NewLinkSigner("different-secret")
	if _, err := other.Verify(token); !errors.Is(err, ErrBadToken) {
		t.Fatalf("foreign secret must not verify, got %v", err)
	}
}

func TestLinkSigner_Expiry(t *testing.T) {
	s := NewLinkSigner("secret")
	token := s.Sign("5551234567", -time.Minute)

	if _, err := s.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("want ErrTokenExpired, got %v", err)
	}
}
