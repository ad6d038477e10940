package user

import (
	"context"

	domain "github.com/example/product-catalog/domain/user"
	"github.com/example/product-catalog/modules/router"
)

// Directory answers admin lookups for the notification router.
type Directory struct {
	repo *Repository
}

var _ router.AdminDirectory = (*Directory)(nil)

// NewDirectory creates a Directory over repo.
func NewDirectory(repo *Repository) *Directory {
	return &Directory{repo: repo}
}

// FirstAdmin returns the earliest registered admin.
func (d *Directory) FirstAdmin(ctx context.Context) (*domain.User, error) {
	admins, err := d.repo.Admins(ctx)
	if err != nil {
		return nil, err
	}
	if len(admins) == 0 {
		return nil, router.ErrNoAdmin
	}
	return admins[0], nil
}

// Admins returns every admin.
func (d *Directory) Admins(ctx context.Context) ([]*domain.User, error) {
	return d.repo.Admins(ctx)
}
