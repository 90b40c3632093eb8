package session

import (
	"errors"
	"testing"
	"time"

	"edurumble-service/internal/domain"
	jwt "github.com/golang-jwt/jwt/v5"
)

func TestIssueAndParse(t *testing.T) {
	m, err := NewManager("secret", time.Hour)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	token, expiresAt, err := m.Issue(domain.User{ID: "u1", Username: "ada", Credits: 30})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("expected expiry in the future")
	}

	id, err := m.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if id.ID != "u1" || id.Username != "ada" || id.Credits != 30 {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	m, _ := NewManager("secret", time.Minute)
	issuedAt := time.Now().Add(-time.Hour)
	m.now = func() time.Time { return issuedAt }
	token, _, err := m.Issue(domain.User{ID: "u1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	m.now = time.Now
	if _, err := m.Parse(token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestParseRejectsForeignSignature(t *testing.T) {
	issuer, _ := NewManager("one", time.Hour)
	verifier, _ := NewManager("two", time.Hour)
	token, _, _ := issuer.Issue(domain.User{ID: "u1"})
	if _, err := verifier.Parse(token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestParseRejectsOtherAlgorithms(t *testing.T) {
	m, _ := NewManager("secret", time.Hour)
	claims := Claims{ID: "u1", RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Parse(token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestParseRejectsEmpty(t *testing.T) {
	m, _ := NewManager("secret", time.Hour)
	if _, err := m.Parse(""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestNewManagerRequiresSecret(t *testing.T) {
	if _, err := NewManager("", time.Hour); err == nil {
		t.Fatalf("expected error without secret")
	}
}
