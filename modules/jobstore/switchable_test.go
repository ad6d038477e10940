package jobstore

import (
	"errors"
	"testing"
	"time"

	"github.com/example/product-catalog/domain/job"
)

func TestSwitchableStore_Switch(t *testing.T) {
	first := job.NewMemoryStore()
	second := job.NewMemoryStore()
	s := NewSwitchableStore(first)

	a, _ := job.NewPublish("a", time.Time{})
	if err := s.Create(a); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := first.GetByID(a.ID); err != nil {
		t.Fatalf("expected job in the initial store: %v", err)
	}

	s.Switch(second)

	b, _ := job.NewPublish("b", time.Time{})
	_ = s.Create(b)
	if _, err := second.GetByID(b.ID); err != nil {
		t.Errorf("expected job in the new store: %v", err)
	}
	if _, err := s.GetByID(a.ID); !errors.Is(err, job.ErrJobNotFound) {
		t.Errorf("expected reads to go to the new store, got %v", err)
	}

	if err := s.SetStarted(b.ID, "w"); err != nil {
		t.Fatalf("SetStarted() error = %v", err)
	}
	n, err := s.IncrementRetry(b.ID)
	if err != nil || n != 1 {
		t.Errorf("IncrementRetry() = %d, %v", n, err)
	}
	if err := s.SetDeadLetter(b.ID, "gave up"); err != nil {
		t.Fatalf("SetDeadLetter() error = %v", err)
	}
	got, _ := s.GetByID(b.ID)
	if got.Status != job.JobStatusDeadLetter || got.Error != "gave up" {
		t.Errorf("unexpected job %+v", got)
	}
}

func TestBucketConfig(t *testing.T) {
	cfg := BucketConfig()
	if cfg.Name != BucketName {
		t.Errorf("bucket name = %q, want %q", cfg.Name, BucketName)
	}
	if cfg.TTL <= 0 {
		t.Error("expected job records to expire")
	}
}
