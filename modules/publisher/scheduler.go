// Package publisher makes draft products visible, now or at a later time.
package publisher

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/example/product-catalog/domain/job"
	domain "github.com/example/product-catalog/domain/product"
	"github.com/example/product-catalog/modules/queue"
)

// Products is the part of the product service the scheduler needs.
type Products interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	MarkPublished(ctx context.Context, id string) (*domain.Product, bool, error)
}

// Scheduler publishes products directly or through a deferred job.
type Scheduler struct {
	products Products
	queue    queue.JobQueue
	store    job.Store
}

// NewScheduler creates a scheduler. q and store may be nil when only
// immediate publishing is needed, as in the CLI.
func NewScheduler(products Products, q queue.JobQueue, store job.Store) *Scheduler {
	return &Scheduler{products: products, queue: q, store: store}
}

// Publish sets publish_at to now unless the product is already visible.
// changed is false for an already published product. A missing product
// yields domain.ErrNotFound. No notifications are sent.
func (s *Scheduler) Publish(ctx context.Context, productID string) (*domain.Product, bool, error) {
	p, changed, err := s.products.MarkPublished(ctx, productID)
	if err != nil {
		return nil, false, err
	}
	if changed {
		log.Printf("[publisher] Product %s published", productID)
	}
	return p, changed, nil
}

// Schedule enqueues a publish job that runs at at, or as soon as possible
// when at is zero or in the past.
func (s *Scheduler) Schedule(ctx context.Context, productID string, at time.Time) (*job.Job, error) {
	if s.queue == nil {
		return nil, job.ErrQueueUnavailable
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, err
	}

	j, err := job.NewPublish(productID, at)
	if err != nil {
		return nil, err
	}
	if s.store != nil {
		if err := s.store.Create(j); err != nil {
			return nil, fmt.Errorf("failed to record publish job: %w", err)
		}
	}
	if err := s.queue.Enqueue(ctx, j); err != nil {
		return nil, fmt.Errorf("failed to enqueue publish job: %w", err)
	}

	log.Printf("[publisher] Publish of %s scheduled (job %s)", productID, j.ID)
	return j, nil
}
