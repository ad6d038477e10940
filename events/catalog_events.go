package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// ProductCreatedEvent is emitted after a product has been persisted.
type ProductCreatedEvent struct {
	ProductID      string     `json:"product_id"`
	Name           string     `json:"name"`
	PriceCents     int64      `json:"price_cents"`
	PriceFormatted string     `json:"price_formatted"`
	Photo          string     `json:"photo,omitempty"`
	PublishAt      *time.Time `json:"publish_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ProductCreatedV1 is the typed event definition for product creation.
// Subject: events.product.v1.product-created
var ProductCreatedV1 = helper.EventDefinition[ProductCreatedEvent](
	"product", "ProductCreated", "v1",
)

// UserRegisteredEvent is emitted after a user account has been registered.
type UserRegisteredEvent struct {
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	IsAdmin      bool      `json:"is_admin"`
	RegisteredAt time.Time `json:"registered_at"`
}

// UserRegisteredV1 is the typed event definition for user registration.
// Subject: events.user.v1.user-registered
var UserRegisteredV1 = helper.EventDefinition[UserRegisteredEvent](
	"user", "UserRegistered", "v1",
)
