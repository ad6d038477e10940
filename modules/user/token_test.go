package user

import (
	"errors"
	"testing"
	"time"

	domain "github.com/example/product-catalog/domain/user"
)

func TestTokenManager_IssueAndValidate(t *testing.T) {
	m := NewTokenManager(TokenConfig{Secret: "s", TTL: time.Hour, Issuer: "test"})
	u := &domain.User{ID: "u1", Email: "a@example.com", IsAdmin: true}

	token, err := m.Issue(u)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	claims, err := m.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if claims.UserID != "u1" || claims.Email != "a@example.com" || !claims.IsAdmin {
		t.Errorf("unexpected claims %+v", claims)
	}
	if m.TTL() != 3600 {
		t.Errorf("TTL() = %d, want 3600", m.TTL())
	}
}

func TestTokenManager_Rejects(t *testing.T) {
	u := &domain.User{ID: "u1", Email: "a@example.com"}
	m := NewTokenManager(TokenConfig{Secret: "s", TTL: time.Hour, Issuer: "test"})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokenManager(TokenConfig{Secret: "other", TTL: time.Hour, Issuer: "test"})
		token, _ := other.Issue(u)
		if _, err := m.Validate(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewTokenManager(TokenConfig{Secret: "s", TTL: time.Hour, Issuer: "elsewhere"})
		token, _ := other.Issue(u)
		if _, err := m.Validate(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		past := NewTokenManager(TokenConfig{Secret: "s", TTL: time.Minute, Issuer: "test"})
		past.now = func() time.Time { return time.Now().Add(-time.Hour) }
		token, _ := past.Issue(u)
		if _, err := m.Validate(token); !errors.Is(err, ErrExpiredToken) {
			t.Errorf("expected ErrExpiredToken, got %v", err)
		}
	})

	for _, token := range []string{"", "not.a.token"} {
		if _, err := m.Validate(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Validate(%q) expected ErrInvalidToken, got %v", token, err)
		}
	}
}
