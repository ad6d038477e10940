package api

import (
	"strings"

	"github.com/example/product-catalog/modules/user"
	"github.com/gofiber/fiber/v2"
)

// ClaimsContextKey is the Fiber locals key holding *user.Claims.
const ClaimsContextKey = "claims"

// TokenValidator validates access tokens.
type TokenValidator interface {
	Validate(token string) (*user.Claims, error)
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	header := c.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return token, token != ""
}

// AuthMiddleware rejects requests without a valid bearer token.
func AuthMiddleware(tokens TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get("Authorization") == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Authorization header is required",
			})
		}

		token, ok := bearerToken(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Invalid authorization header format. Use: Bearer <token>",
			})
		}

		claims, err := tokens.Validate(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Invalid or expired token",
			})
		}

		c.Locals(ClaimsContextKey, claims)
		return c.Next()
	}
}

// OptionalAuth attaches claims when a valid token is present and otherwise
// lets the request through as a visitor.
func OptionalAuth(tokens TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token, ok := bearerToken(c); ok {
			if claims, err := tokens.Validate(token); err == nil {
				c.Locals(ClaimsContextKey, claims)
			}
		}
		return c.Next()
	}
}

// RequireAdmin must run after AuthMiddleware.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := claimsFrom(c)
		if claims == nil || !claims.IsAdmin {
			return c.Status(fiber.StatusForbidden).JSON(ErrorResponse{
				Error:   "forbidden",
				Message: "Admin access required",
			})
		}
		return c.Next()
	}
}

func claimsFrom(c *fiber.Ctx) *user.Claims {
	claims, _ := c.Locals(ClaimsContextKey).(*user.Claims)
	return claims
}

func isAdmin(c *fiber.Ctx) bool {
	claims := claimsFrom(c)
	return claims != nil && claims.IsAdmin
}
