package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/TheHartAttack/viberates-backend/internal/revision"
)

var testActor = revision.Actor{
	ID:       7,
	Username: "Alice",
	Slug:     "alice",
	Roles:    []string{"user", "mod"},
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	tokens := New("test-secret")

	signed, err := tokens.Issue(testActor)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	got, err := tokens.Verify(signed)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got.ID != 7 || got.Username != "Alice" || got.Slug != "alice" {
		t.Fatalf("unexpected actor %#v", got)
	}
	if !got.HasRole("mod") {
		t.Fatal("roles did not survive the round trip")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	signed, err := New("secret-a").Issue(testActor)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	_, err = New("secret-b").Verify(signed)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	tokens := New("test-secret")

	issued := time.Now().Add(-TokenTTL - time.Hour)
	tokens.now = func() time.Time { return issued }
	signed, err := tokens.Issue(testActor)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	tokens.now = time.Now
	_, err = tokens.Verify(signed)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	_, err := New("test-secret").Verify("not-a-token")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
