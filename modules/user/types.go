package user

import (
	"time"

	domain "github.com/example/product-catalog/domain/user"
)

// RegisterRequest is the request for the register service.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the request for the login service.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

// LoginResponse carries the bearer token.
type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int64        `json:"expires_in"`
	User        UserResponse `json:"user"`
}

// ToUserResponse converts a domain user.
func ToUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		IsAdmin:   u.IsAdmin,
		CreatedAt: u.CreatedAt,
	}
}

// ToLoginResponse converts a session.
func ToLoginResponse(s *Session) LoginResponse {
	return LoginResponse{
		AccessToken: s.Token,
		TokenType:   "Bearer",
		ExpiresIn:   s.ExpiresIn,
		User:        ToUserResponse(s.User),
	}
}
