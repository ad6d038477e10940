package queue

import (
	"context"
	"testing"
	"time"

	"github.com/example/product-catalog/domain/job"
)

func newJob(t *testing.T, id string) *job.Job {
	t.Helper()
	j, err := job.NewPublish(id, time.Time{})
	if err != nil {
		t.Fatalf("NewPublish() error = %v", err)
	}
	return j
}

func TestMemoryQueue_DrainInOrder(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := q.Enqueue(ctx, newJob(t, id)); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}
	if q.Len() != 3 {
		t.Fatalf("expected 3 pending jobs, got %d", q.Len())
	}

	var seen []string
	n := q.Drain(ctx, func(_ context.Context, m Message) {
		var p job.PublishPayload
		if err := m.Job().Decode(&p); err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		seen = append(seen, p.ProductID)
		_ = m.Ack()
	})

	if n != 3 {
		t.Errorf("expected 3 deliveries, got %d", n)
	}
	if len(seen) != 3 || seen[0] != "a" || seen[1] != "b" || seen[2] != "c" {
		t.Errorf("unexpected delivery order %v", seen)
	}
	if q.Len() != 0 {
		t.Errorf("expected empty queue, got %d", q.Len())
	}
}

func TestMemoryQueue_EnqueueCopiesJob(t *testing.T) {
	q := NewMemoryQueue()
	j := newJob(t, "a")
	_ = q.Enqueue(context.Background(), j)

	j.Status = job.JobStatusFailed
	if got := q.Jobs()[0].Status; got != job.JobStatusPending {
		t.Errorf("queued job changed with caller's copy: %s", got)
	}
}

func TestMemoryQueue_NakWithDelay(t *testing.T) {
	now := time.Now()
	q := NewMemoryQueue(WithClock(func() time.Time { return now }))
	ctx := context.Background()
	_ = q.Enqueue(ctx, newJob(t, "a"))

	var deliveries []int
	handler := func(_ context.Context, m Message) {
		deliveries = append(deliveries, m.DeliveryCount())
		_ = m.NakWithDelay(time.Minute)
	}

	if n := q.Drain(ctx, handler); n != 1 {
		t.Fatalf("expected 1 delivery, got %d", n)
	}
	if n := q.Drain(ctx, handler); n != 0 {
		t.Fatalf("expected delayed message to be held back, got %d deliveries", n)
	}

	now = now.Add(time.Minute)
	if n := q.Drain(ctx, handler); n != 1 {
		t.Fatalf("expected redelivery after the delay, got %d", n)
	}
	if len(deliveries) != 2 || deliveries[1] != 2 {
		t.Errorf("expected delivery counts [1 2], got %v", deliveries)
	}
}

func TestMemoryQueue_UnsettledIsRedelivered(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()
	_ = q.Enqueue(ctx, newJob(t, "a"))

	calls := 0
	q.Drain(ctx, func(_ context.Context, m Message) {
		calls++
		if calls == 2 {
			_ = m.Term()
		}
	})

	if calls != 2 {
		t.Errorf("expected the unsettled message to be delivered twice, got %d", calls)
	}
	if q.Len() != 0 {
		t.Errorf("expected terminated message to be gone, got %d pending", q.Len())
	}
}

func TestMemoryQueue_DeadLetter(t *testing.T) {
	q := NewMemoryQueue()
	j := newJob(t, "a")

	if err := q.DeadLetter(context.Background(), j, "boom"); err != nil {
		t.Fatalf("DeadLetter() error = %v", err)
	}
	dead := q.DeadLetters()
	if len(dead) != 1 || dead[0].Job.ID != j.ID || dead[0].Reason != "boom" {
		t.Errorf("unexpected dead letters %+v", dead)
	}
}

func TestMemoryQueue_Subscribe(t *testing.T) {
	q := NewMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := q.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	j := newJob(t, "a")
	_ = q.Enqueue(ctx, j)

	select {
	case m := <-msgs:
		if m.Job().ID != j.ID {
			t.Errorf("expected job %s, got %s", j.ID, m.Job().ID)
		}
		_ = m.Ack()
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}

	cancel()
	select {
	case _, ok := <-msgs:
		if ok {
			t.Error("expected channel to be closed after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestNewModule_UnknownBackend(t *testing.T) {
	if _, err := NewModule("kafka", DefaultConfig()); err == nil {
		t.Error("expected error for unknown backend")
	}
	m, err := NewModule(BackendMemory, DefaultConfig())
	if err != nil {
		t.Fatalf("NewModule() error = %v", err)
	}
	if !m.Health(context.Background()).Healthy {
		t.Error("expected memory queue to be healthy")
	}
}
