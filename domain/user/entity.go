package user

import (
	"time"

	"github.com/example/product-catalog/domain/notification"
)

// User represents an account. Admins receive catalog notifications.
type User struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	Email        string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	IsAdmin      bool      `gorm:"not null;default:false;index" json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the table name for the User entity.
func (User) TableName() string {
	return "users"
}

// Recipient projects the user onto a notification recipient.
func (u *User) Recipient() notification.Recipient {
	return notification.Recipient{
		UserID: u.ID,
		Email:  u.Email,
		Name:   u.Name,
	}
}
