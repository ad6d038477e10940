package api

import (
	"errors"
	"log"

	"github.com/example/product-catalog/domain/job"
	"github.com/example/product-catalog/domain/money"
	"github.com/example/product-catalog/domain/product"
	"github.com/example/product-catalog/modules/channel"
	"github.com/example/product-catalog/modules/photo"
	"github.com/example/product-catalog/modules/user"
	"github.com/gofiber/fiber/v2"
)

// userFieldErrors maps registration failures onto the offending field.
var userFieldErrors = map[error]string{
	user.ErrNameRequired:    "name",
	user.ErrInvalidEmail:    "email",
	user.ErrWeakPassword:    "password",
	user.ErrPasswordTooLong: "password",
}

// writeError translates a domain error into an HTTP reply.
func writeError(c *fiber.Ctx, err error) error {
	var verr *product.ValidationError
	if errors.As(err, &verr) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{
			Error:   "validation_failed",
			Message: "The given data was invalid",
			Fields:  verr.Fields,
		})
	}

	for target, field := range userFieldErrors {
		if errors.Is(err, target) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{
				Error:   "validation_failed",
				Message: "The given data was invalid",
				Fields:  map[string]string{field: target.Error()},
			})
		}
	}

	switch {
	case errors.Is(err, money.ErrInvalidAmount):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{
			Error:   "validation_failed",
			Message: "The given data was invalid",
			Fields:  map[string]string{"price": err.Error()},
		})
	case errors.Is(err, photo.ErrInvalidFilename):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{
			Error:   "validation_failed",
			Message: "The given data was invalid",
			Fields:  map[string]string{"photo": err.Error()},
		})
	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, channel.ErrNotificationNotFound),
		errors.Is(err, job.ErrJobNotFound),
		errors.Is(err, photo.ErrPhotoNotFound):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, user.ErrUserExists):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Error:   "conflict",
			Message: err.Error(),
		})
	case errors.Is(err, user.ErrInvalidCredentials):
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error:   "unauthorized",
			Message: err.Error(),
		})
	case errors.Is(err, job.ErrQueueUnavailable), errors.Is(err, photo.ErrUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error:   "unavailable",
			Message: err.Error(),
		})
	}

	log.Printf("[api] Internal error on %s %s: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error:   "bad_request",
		Message: message,
	})
}

// customErrorHandler handles errors returned by fiber itself.
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   "server_error",
		Message: message,
	})
}
