package user

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/example/product-catalog/domain/user"
	"gorm.io/gorm"
)

var (
	// ErrUserNotFound is returned when a user is not found.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when a user already exists.
	ErrUserExists = errors.New("user with this email already exists")
)

// Repository handles user persistence using GORM.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new Repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new user.
func (r *Repository) Create(ctx context.Context, u *domain.User) error {
	result := r.db.WithContext(ctx).Create(u)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return ErrUserExists
		}
		return fmt.Errorf("failed to create user: %w", result.Error)
	}
	return nil
}

// FindByID finds a user by ID.
func (r *Repository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	result := r.db.WithContext(ctx).First(&u, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}
	return &u, nil
}

// FindByEmail finds a user by email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	result := r.db.WithContext(ctx).First(&u, "email = ?", email)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}
	return &u, nil
}

// EmailExists checks if a user with the given email exists.
func (r *Repository) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&domain.User{}).Where("email = ?", email).Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}

// Admins returns every admin in registration order.
func (r *Repository) Admins(ctx context.Context) ([]*domain.User, error) {
	var admins []*domain.User
	result := r.db.WithContext(ctx).
		Where("is_admin = ?", true).
		Order("created_at ASC, id ASC").
		Find(&admins)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list admins: %w", result.Error)
	}
	return admins, nil
}
