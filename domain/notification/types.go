// Package notification defines notification jobs, channels and persisted notifications.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType identifies the domain event a notification was triggered by.
type EventType string

const (
	// EventProductCreated is raised after a product is created.
	EventProductCreated EventType = "product.created"
	// EventUserRegistered is raised after a user account is registered.
	EventUserRegistered EventType = "user.registered"
)

// ChannelKind names a delivery mechanism.
type ChannelKind string

const (
	// ChannelMail delivers a transactional email.
	ChannelMail ChannelKind = "mail"
	// ChannelDatabase persists an in-app notification.
	ChannelDatabase ChannelKind = "database"
)

// Recipient is a notification target, resolved when the job is enqueued.
type Recipient struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
}

// Job is a unit of deferred notification work.
type Job struct {
	ID         string          `json:"id"`
	Event      EventType       `json:"event"`
	Payload    json.RawMessage `json:"payload"`
	Recipients []Recipient     `json:"recipients"`
	Channels   []ChannelKind   `json:"channels"`
	CreatedAt  time.Time       `json:"created_at"`
}

// NewJob builds a job, serializing payload as the event snapshot.
func NewJob(event EventType, payload any, recipients []Recipient, channels ...ChannelKind) (*Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notification payload: %w", err)
	}
	if recipients == nil {
		recipients = []Recipient{}
	}
	return &Job{
		ID:         uuid.New().String(),
		Event:      event,
		Payload:    data,
		Recipients: recipients,
		Channels:   channels,
		CreatedAt:  time.Now(),
	}, nil
}

type jobIDKey struct{}

// WithJobID returns a context carrying the ID of the notification job being executed.
func WithJobID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, jobIDKey{}, id)
}

// JobIDFrom returns the notification job ID stored by WithJobID.
func JobIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(jobIDKey{}).(string)
	return id, ok && id != ""
}

// Channel delivers one event payload to one recipient. Deliver is called
// with a context carrying the job ID (see JobIDFrom).
type Channel interface {
	Kind() ChannelKind
	Deliver(ctx context.Context, recipient Recipient, event EventType, payload json.RawMessage) error
}

// ProductPayload is the snapshot carried by product notifications.
type ProductPayload struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Price          int64      `json:"price"`
	PriceFormatted string     `json:"price_formatted"`
	Photo          string     `json:"photo,omitempty"`
	PublishAt      *time.Time `json:"publish_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// UserPayload is the snapshot carried by registration notifications.
type UserPayload struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	RegisteredAt time.Time `json:"registered_at"`
}
