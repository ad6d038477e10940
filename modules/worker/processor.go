// Package worker runs queued jobs on a fixed-size pool of goroutines.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/example/product-catalog/domain/job"
	"github.com/example/product-catalog/domain/notification"
	"github.com/example/product-catalog/domain/product"
)

// NotificationExecutor delivers a notification job to its channels.
type NotificationExecutor interface {
	Execute(ctx context.Context, n *notification.Job) error
}

// ProductPublisher publishes a product immediately.
type ProductPublisher interface {
	Publish(ctx context.Context, productID string) (*product.Product, bool, error)
}

// PermanentError marks a failure that retrying cannot fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return "permanent: " + e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps err so the worker dead-letters the job without retrying.
func Permanent(err error) error {
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}

// Processor runs a job according to its type.
type Processor struct {
	notifications NotificationExecutor
	publisher     ProductPublisher
}

// NewProcessor creates a new job processor.
func NewProcessor(notifications NotificationExecutor, publisher ProductPublisher) *Processor {
	return &Processor{
		notifications: notifications,
		publisher:     publisher,
	}
}

// Process runs j and returns nil on success.
func (p *Processor) Process(ctx context.Context, j *job.Job) error {
	switch j.Type {
	case job.JobTypeNotification:
		return p.processNotification(ctx, j)
	case job.JobTypePublish:
		return p.processPublish(ctx, j)
	default:
		return Permanent(fmt.Errorf("%w: %s", job.ErrInvalidJobType, j.Type))
	}
}

func (p *Processor) processNotification(ctx context.Context, j *job.Job) error {
	var n notification.Job
	if err := j.Decode(&n); err != nil {
		return Permanent(err)
	}
	if p.notifications == nil {
		return Permanent(errors.New("no notification executor configured"))
	}
	return p.notifications.Execute(ctx, &n)
}

func (p *Processor) processPublish(ctx context.Context, j *job.Job) error {
	var payload job.PublishPayload
	if err := j.Decode(&payload); err != nil {
		return Permanent(err)
	}
	if p.publisher == nil {
		return Permanent(errors.New("no product publisher configured"))
	}

	_, changed, err := p.publisher.Publish(ctx, payload.ProductID)
	switch {
	case errors.Is(err, product.ErrNotFound):
		// Deleted before its publish time; nothing left to do.
		log.Printf("[worker] Product %s no longer exists, skipping publish job %s", payload.ProductID, j.ID)
		return nil
	case err != nil:
		return err
	case !changed:
		log.Printf("[worker] Product %s was already published", payload.ProductID)
	}
	return nil
}
