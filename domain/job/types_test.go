package job

import (
	"errors"
	"testing"
	"time"
)

func TestNew_RejectsUnknownType(t *testing.T) {
	if _, err := New(JobType("bogus"), nil); !errors.Is(err, ErrInvalidJobType) {
		t.Errorf("expected ErrInvalidJobType, got %v", err)
	}
}

func TestNewPublish_Due(t *testing.T) {
	now := time.Now()

	immediate, err := NewPublish("p-1", time.Time{})
	if err != nil {
		t.Fatalf("NewPublish() error = %v", err)
	}
	if immediate.NotBefore != nil || immediate.Due(now) != 0 {
		t.Errorf("expected immediate job to be due, got NotBefore=%v", immediate.NotBefore)
	}

	deferred, _ := NewPublish("p-1", now.Add(time.Hour))
	if d := deferred.Due(now); d <= 59*time.Minute || d > time.Hour {
		t.Errorf("expected about an hour until due, got %s", d)
	}
	if deferred.Due(now.Add(2*time.Hour)) != 0 {
		t.Error("expected job to be due once NotBefore has passed")
	}

	var payload PublishPayload
	if err := deferred.Decode(&payload); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if payload.ProductID != "p-1" {
		t.Errorf("expected product id p-1, got %q", payload.ProductID)
	}
	if deferred.MaxRetries != DefaultMaxRetries(JobTypePublish) {
		t.Errorf("unexpected max retries %d", deferred.MaxRetries)
	}
}

func TestDecode_InvalidPayload(t *testing.T) {
	j := &Job{Payload: []byte("not json")}
	var p PublishPayload
	if err := j.Decode(&p); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("expected ErrInvalidPayload, got %v", err)
	}
}
