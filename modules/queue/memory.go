package queue

import (
	"context"
	"sync"
	"time"

	"github.com/example/product-catalog/domain/job"
)

// DeadLetter is a job the memory queue gave up on.
type DeadLetter struct {
	Job    *job.Job
	Reason string
}

// MemoryQueue is an in-process Queue. Jobs are kept in FIFO order; a Nak'ed
// message goes back to the tail and becomes ready after its delay.
type MemoryQueue struct {
	mu      sync.Mutex
	pending []*memoryMessage
	dead    []DeadLetter
	notify  chan struct{}
	now     func() time.Time
	buffer  int
}

var _ Queue = (*MemoryQueue)(nil)

// MemoryOption configures a MemoryQueue.
type MemoryOption func(*MemoryQueue)

// WithClock overrides the time source used to decide message readiness.
func WithClock(now func() time.Time) MemoryOption {
	return func(q *MemoryQueue) {
		q.now = now
	}
}

// NewMemoryQueue creates an empty in-process queue.
func NewMemoryQueue(opts ...MemoryOption) *MemoryQueue {
	q := &MemoryQueue{
		notify: make(chan struct{}, 1),
		now:    time.Now,
		buffer: DefaultConfig().Buffer,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends a copy of the job.
func (q *MemoryQueue) Enqueue(_ context.Context, j *job.Job) error {
	jobCopy := *j
	q.push(&memoryMessage{queue: q, job: &jobCopy, readyAt: q.now()})
	return nil
}

// DeadLetter records a job that will not be retried.
func (q *MemoryQueue) DeadLetter(_ context.Context, j *job.Job, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	jobCopy := *j
	q.dead = append(q.dead, DeadLetter{Job: &jobCopy, Reason: reason})
	return nil
}

// DeadLetters returns the jobs moved to the dead-letter list.
func (q *MemoryQueue) DeadLetters() []DeadLetter {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]DeadLetter, len(q.dead))
	copy(out, q.dead)
	return out
}

// Len returns the number of unsettled jobs, ready or delayed.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Jobs returns copies of every pending job in queue order.
func (q *MemoryQueue) Jobs() []*job.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*job.Job, 0, len(q.pending))
	for _, m := range q.pending {
		jobCopy := *m.job
		out = append(out, &jobCopy)
	}
	return out
}

// Drain synchronously hands every ready message to handle until none is
// ready, and returns how many deliveries were made. A message the handler
// leaves unsettled is put back, as if its ack deadline had passed.
func (q *MemoryQueue) Drain(ctx context.Context, handle func(context.Context, Message)) int {
	delivered := 0
	for ctx.Err() == nil {
		m, _, ok := q.take()
		if !ok {
			break
		}
		delivered++
		handle(ctx, m)
		m.settleIfPending()
	}
	return delivered
}

// Subscribe streams ready messages until ctx is cancelled.
func (q *MemoryQueue) Subscribe(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message, q.buffer)

	go func() {
		defer close(out)
		for {
			m, wait, ok := q.take()
			if ok {
				select {
				case out <- m:
					continue
				case <-ctx.Done():
					m.requeue(0)
					return
				}
			}

			var timer *time.Timer
			var fire <-chan time.Time
			if wait > 0 {
				timer = time.NewTimer(wait)
				fire = timer.C
			}
			select {
			case <-ctx.Done():
			case <-q.notify:
			case <-fire:
			}
			if timer != nil {
				timer.Stop()
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	return out, nil
}

func (q *MemoryQueue) push(m *memoryMessage) {
	q.mu.Lock()
	q.pending = append(q.pending, m)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// take removes the first ready message. When none is ready it returns the
// wait until the earliest delayed one, or zero if the queue is empty.
func (q *MemoryQueue) take() (*memoryMessage, time.Duration, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var wait time.Duration
	for i, m := range q.pending {
		if !m.readyAt.After(now) {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			m.redeliver()
			return m, 0, true
		}
		if d := m.readyAt.Sub(now); wait == 0 || d < wait {
			wait = d
		}
	}
	return nil, wait, false
}

type memoryMessage struct {
	queue      *MemoryQueue
	job        *job.Job
	deliveries int
	readyAt    time.Time

	mu      sync.Mutex
	settled bool
}

func (m *memoryMessage) redeliver() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries++
	m.settled = false
}

func (m *memoryMessage) Job() *job.Job {
	return m.job
}

func (m *memoryMessage) DeliveryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deliveries
}

func (m *memoryMessage) Ack() error {
	m.settle()
	return nil
}

func (m *memoryMessage) Term() error {
	m.settle()
	return nil
}

// InProgress is a no-op; memory deliveries have no ack deadline.
func (m *memoryMessage) InProgress() error {
	return nil
}

func (m *memoryMessage) Nak() error {
	return m.NakWithDelay(0)
}

func (m *memoryMessage) NakWithDelay(delay time.Duration) error {
	if m.settle() {
		m.requeue(delay)
	}
	return nil
}

// settle marks the message settled and reports whether it was pending.
func (m *memoryMessage) settle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settled {
		return false
	}
	m.settled = true
	return true
}

func (m *memoryMessage) settleIfPending() {
	if m.settle() {
		m.requeue(0)
	}
}

func (m *memoryMessage) requeue(delay time.Duration) {
	m.readyAt = m.queue.now().Add(delay)
	m.queue.push(m)
}
