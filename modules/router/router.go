// Package router turns domain events into notification jobs.
package router

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/example/product-catalog/domain/job"
	"github.com/example/product-catalog/domain/notification"
	"github.com/example/product-catalog/domain/user"
	"github.com/example/product-catalog/events"
)

// ErrNoAdmin is returned when a product notification has nobody to go to.
var ErrNoAdmin = errors.New("no admin user to notify")

// AdminDirectory looks up the users that receive catalog notifications.
type AdminDirectory interface {
	// FirstAdmin returns the earliest registered admin or ErrNoAdmin.
	FirstAdmin(ctx context.Context) (*user.User, error)
	Admins(ctx context.Context) ([]*user.User, error)
}

// Enqueuer hands notification jobs to the background queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, n *notification.Job) (*job.Job, error)
}

// Router resolves recipients once and enqueues a single job per event.
type Router struct {
	admins   AdminDirectory
	enqueuer Enqueuer
}

// New creates a router.
func New(admins AdminDirectory, enqueuer Enqueuer) *Router {
	return &Router{admins: admins, enqueuer: enqueuer}
}

// OnProductCreated notifies the first admin by mail and in-app.
func (r *Router) OnProductCreated(ctx context.Context, evt events.ProductCreatedEvent) (*job.Job, error) {
	admin, err := r.admins.FirstAdmin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve product notification recipient: %w", err)
	}

	payload := notification.ProductPayload{
		ID:             evt.ProductID,
		Name:           evt.Name,
		Price:          evt.PriceCents,
		PriceFormatted: evt.PriceFormatted,
		Photo:          evt.Photo,
		PublishAt:      evt.PublishAt,
		CreatedAt:      evt.CreatedAt,
	}
	n, err := notification.NewJob(notification.EventProductCreated, payload,
		[]notification.Recipient{admin.Recipient()},
		notification.ChannelMail, notification.ChannelDatabase)
	if err != nil {
		return nil, err
	}

	j, err := r.enqueuer.Enqueue(ctx, n)
	if err != nil {
		return nil, err
	}
	log.Printf("[router] Product %s notification queued for %s (job %s)", evt.ProductID, admin.Email, j.ID)
	return j, nil
}

// OnUserRegistered notifies every admin in-app. Without admins it does nothing.
func (r *Router) OnUserRegistered(ctx context.Context, evt events.UserRegisteredEvent) (*job.Job, error) {
	admins, err := r.admins.Admins(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve registration notification recipients: %w", err)
	}
	if len(admins) == 0 {
		log.Printf("[router] No admins to notify about user %s", evt.UserID)
		return nil, nil
	}

	recipients := make([]notification.Recipient, 0, len(admins))
	for _, a := range admins {
		recipients = append(recipients, a.Recipient())
	}

	payload := notification.UserPayload{
		ID:           evt.UserID,
		Name:         evt.Name,
		Email:        evt.Email,
		RegisteredAt: evt.RegisteredAt,
	}
	n, err := notification.NewJob(notification.EventUserRegistered, payload, recipients, notification.ChannelDatabase)
	if err != nil {
		return nil, err
	}

	j, err := r.enqueuer.Enqueue(ctx, n)
	if err != nil {
		return nil, err
	}
	log.Printf("[router] User %s registration queued for %d admin(s) (job %s)", evt.UserID, len(recipients), j.ID)
	return j, nil
}
