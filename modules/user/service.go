package user

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	domain "github.com/example/product-catalog/domain/user"
	"github.com/google/uuid"
)

var (
	// ErrInvalidCredentials is returned when login credentials are invalid.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidEmail is returned when email format is invalid.
	ErrInvalidEmail = errors.New("invalid email format")
	// ErrNameRequired is returned when registration omits the display name.
	ErrNameRequired = errors.New("name is required")
	// ErrWeakPassword is returned when password is too weak.
	ErrWeakPassword = errors.New("password must be at least 8 characters")
	// ErrPasswordTooLong is returned when password exceeds bcrypt's 72-byte limit.
	ErrPasswordTooLong = errors.New("password must be at most 72 characters")
)

// RegisteredHook runs after a user has been stored.
type RegisteredHook func(ctx context.Context, u *domain.User) error

// Session is the result of a successful login.
type Session struct {
	User      *domain.User
	Token     string
	ExpiresIn int64
}

// Service handles registration and login.
type Service struct {
	repo         *Repository
	hasher       *PasswordHasher
	tokens       *TokenManager
	onRegistered RegisteredHook
}

// NewService creates a new Service.
func NewService(repo *Repository, hasher *PasswordHasher, tokens *TokenManager) *Service {
	return &Service{
		repo:   repo,
		hasher: hasher,
		tokens: tokens,
	}
}

// OnRegistered sets the hook fired after each Register.
func (s *Service) OnRegistered(hook RegisteredHook) {
	s.onRegistered = hook
}

// Tokens returns the token manager used to sign sessions.
func (s *Service) Tokens() *TokenManager {
	return s.tokens
}

// Register creates a regular user account.
func (s *Service) Register(ctx context.Context, name, email, password string) (*domain.User, error) {
	u, err := s.create(ctx, name, email, password, false)
	if err != nil {
		return nil, err
	}

	if s.onRegistered != nil {
		if err := s.onRegistered(ctx, u); err != nil {
			log.Printf("[user] Failed to emit UserRegistered for %s: %v", u.ID, err)
		}
	}
	return u, nil
}

// EnsureAdmin creates the admin account when email is not taken yet.
// It reports whether a user was created.
func (s *Service) EnsureAdmin(ctx context.Context, name, email, password string) (bool, error) {
	exists, err := s.repo.EmailExists(ctx, strings.TrimSpace(email))
	if err != nil {
		return false, fmt.Errorf("failed to check email existence: %w", err)
	}
	if exists {
		return false, nil
	}
	if _, err := s.create(ctx, name, email, password, true); err != nil {
		return false, err
	}
	log.Printf("[user] Seeded admin %s", email)
	return true, nil
}

// Login verifies the credentials and issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.repo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if !s.hasher.Verify(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &Session{User: u, Token: token, ExpiresIn: s.tokens.TTL()}, nil
}

// GetUser retrieves a user by ID.
func (s *Service) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) create(ctx context.Context, name, email, password string, admin bool) (*domain.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name == "" {
		return nil, ErrNameRequired
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}
	if len(password) < 8 {
		return nil, ErrWeakPassword
	}
	if len(password) > 72 {
		return nil, ErrPasswordTooLong
	}

	exists, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email existence: %w", err)
	}
	if exists {
		return nil, ErrUserExists
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate user id: %w", err)
	}

	now := time.Now().UTC()
	u := &domain.User{
		ID:           id.String(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		IsAdmin:      admin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}
