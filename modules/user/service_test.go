package user

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/example/product-catalog/domain/user"
	"github.com/example/product-catalog/modules/database"
	"github.com/example/product-catalog/modules/router"
	"golang.org/x/crypto/bcrypt"
)

func newTestService(t *testing.T) (*Service, *Repository) {
	t.Helper()
	db, err := database.OpenMemory()
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })

	repo := NewRepository(db)
	cfg := DefaultTokenConfig()
	cfg.Secret = "test-secret"
	return NewService(repo, NewPasswordHasher(bcrypt.MinCost), NewTokenManager(cfg)), repo
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		userName string
		email    string
		password string
		wantErr  error
	}{
		{"missing name", "", "a@example.com", "password123", ErrNameRequired},
		{"invalid email", "Ann", "not-an-email", "password123", ErrInvalidEmail},
		{"short password", "Ann", "a@example.com", "short", ErrWeakPassword},
		{"long password", "Ann", "a@example.com", string(make([]byte, 73)), ErrPasswordTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.userName, tt.email, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Register() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegister_DuplicateEmailAndHook(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var hooked []string
	svc.OnRegistered(func(_ context.Context, u *domain.User) error {
		hooked = append(hooked, u.Email)
		return nil
	})

	u, err := svc.Register(ctx, "Ann", "ann@example.com", "password123")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if u.IsAdmin {
		t.Error("registered users must not be admins")
	}
	if u.PasswordHash == "password123" {
		t.Error("password stored in plain text")
	}

	if _, err := svc.Register(ctx, "Ann", "ann@example.com", "password123"); !errors.Is(err, ErrUserExists) {
		t.Errorf("expected ErrUserExists, got %v", err)
	}
	if len(hooked) != 1 || hooked[0] != "ann@example.com" {
		t.Errorf("hook calls = %v", hooked)
	}
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.EnsureAdmin(ctx, "Root", "root@example.com", "password123"); err != nil {
		t.Fatalf("EnsureAdmin() error = %v", err)
	}

	session, err := svc.Login(ctx, "root@example.com", "password123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	claims, err := svc.Tokens().Validate(session.Token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !claims.IsAdmin || claims.UserID != session.User.ID {
		t.Errorf("unexpected claims %+v", claims)
	}

	if _, err := svc.Login(ctx, "root@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestEnsureAdmin_Idempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.EnsureAdmin(ctx, "Root", "root@example.com", "password123")
	if err != nil || !created {
		t.Fatalf("EnsureAdmin() = %v, %v", created, err)
	}
	created, err = svc.EnsureAdmin(ctx, "Root", "root@example.com", "password123")
	if err != nil || created {
		t.Errorf("second EnsureAdmin() = %v, %v", created, err)
	}
}

func TestDirectory(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	dir := NewDirectory(repo)

	if _, err := dir.FirstAdmin(ctx); !errors.Is(err, router.ErrNoAdmin) {
		t.Fatalf("expected ErrNoAdmin, got %v", err)
	}
	admins, err := dir.Admins(ctx)
	if err != nil || len(admins) != 0 {
		t.Fatalf("Admins() = %v, %v", admins, err)
	}

	if _, err := svc.Register(ctx, "Visitor", "visitor@example.com", "password123"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.EnsureAdmin(ctx, "First", "first@example.com", "password123"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, err := svc.EnsureAdmin(ctx, "Second", "second@example.com", "password123"); err != nil {
		t.Fatal(err)
	}

	first, err := dir.FirstAdmin(ctx)
	if err != nil {
		t.Fatalf("FirstAdmin() error = %v", err)
	}
	if first.Email != "first@example.com" {
		t.Errorf("FirstAdmin() = %s, want first@example.com", first.Email)
	}

	admins, err = dir.Admins(ctx)
	if err != nil {
		t.Fatalf("Admins() error = %v", err)
	}
	if len(admins) != 2 {
		t.Errorf("expected 2 admins, got %d", len(admins))
	}
}
