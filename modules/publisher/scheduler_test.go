package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/product-catalog/domain/job"
	domain "github.com/example/product-catalog/domain/product"
	"github.com/example/product-catalog/modules/database"
	"github.com/example/product-catalog/modules/product"
	"github.com/example/product-catalog/modules/queue"
)

func newProducts(t *testing.T) *product.Service {
	t.Helper()
	db, err := database.OpenMemory()
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	return product.NewService(product.NewRepository(db), nil)
}

func TestPublish(t *testing.T) {
	ctx := context.Background()
	products := newProducts(t)
	s := NewScheduler(products, nil, nil)

	if _, _, err := s.Publish(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	draft, err := products.Create(ctx, product.CreateInput{Name: "Lamp", Price: "10"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	page, _ := products.ListPublished(ctx, 1, 10)
	if page.Total != 0 {
		t.Fatalf("draft should not be listed, total = %d", page.Total)
	}

	p, changed, err := s.Publish(ctx, draft.ID)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if !changed || p.PublishAt == nil {
		t.Fatalf("expected product to be published, changed=%v publish_at=%v", changed, p.PublishAt)
	}

	page, _ = products.ListPublished(ctx, 1, 10)
	if page.Total != 1 {
		t.Errorf("published product should be listed, total = %d", page.Total)
	}

	_, changed, err = s.Publish(ctx, draft.ID)
	if err != nil {
		t.Fatalf("second Publish() error = %v", err)
	}
	if changed {
		t.Error("second Publish() should be a no-op")
	}
}

func TestSchedule(t *testing.T) {
	ctx := context.Background()
	products := newProducts(t)
	q := queue.NewMemoryQueue()
	store := job.NewMemoryStore()
	s := NewScheduler(products, q, store)

	p, err := products.Create(ctx, product.CreateInput{Name: "Lamp", Price: "10"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	at := time.Now().Add(time.Hour)
	j, err := s.Schedule(ctx, p.ID, at)
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if j.Type != job.JobTypePublish || j.NotBefore == nil {
		t.Errorf("unexpected job %+v", j)
	}
	if q.Len() != 1 {
		t.Errorf("expected 1 queued job, got %d", q.Len())
	}
	if _, err := store.GetByID(j.ID); err != nil {
		t.Errorf("job not recorded: %v", err)
	}

	if _, err := s.Schedule(ctx, "missing", at); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := NewScheduler(products, nil, nil).Schedule(ctx, p.ID, at); !errors.Is(err, job.ErrQueueUnavailable) {
		t.Errorf("expected ErrQueueUnavailable, got %v", err)
	}
}
