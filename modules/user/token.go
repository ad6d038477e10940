package user

import (
	"errors"
	"time"

	domain "github.com/example/product-catalog/domain/user"
	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when the token is invalid.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("token has expired")
)

// TokenConfig holds JWT configuration.
type TokenConfig struct {
	Secret string
	TTL    time.Duration
	Issuer string
}

// DefaultTokenConfig returns the development token configuration.
// JWT_SECRET overrides the secret in main.
func DefaultTokenConfig() TokenConfig {
	return TokenConfig{
		Secret: "product-catalog-dev-secret",
		TTL:    24 * time.Hour,
		Issuer: "product-catalog",
	}
}

// Claims identifies the caller and whether they may manage the catalog.
type Claims struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// TokenManager issues and validates HS256 access tokens.
type TokenManager struct {
	config TokenConfig
	now    func() time.Time
}

// NewTokenManager creates a TokenManager with the given configuration.
func NewTokenManager(config TokenConfig) *TokenManager {
	return &TokenManager{config: config, now: time.Now}
}

// Issue creates an access token for u.
func (m *TokenManager) Issue(u *domain.User) (string, error) {
	now := m.now()
	claims := Claims{
		UserID:  u.ID,
		Email:   u.Email,
		IsAdmin: u.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			Subject:   u.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.config.Secret))
}

// Validate parses tokenString and returns its claims.
func (m *TokenManager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(m.config.Secret), nil
	}, jwt.WithIssuer(m.config.Issuer), jwt.WithTimeFunc(m.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// TTL returns the token lifetime in seconds.
func (m *TokenManager) TTL() int64 {
	return int64(m.config.TTL.Seconds())
}
