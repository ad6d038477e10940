// Package queue provides the durable job queue that decouples triggers from delivery.
package queue

import (
	"context"
	"time"

	"github.com/example/product-catalog/domain/job"
)

// JobQueue accepts jobs for asynchronous execution. Enqueue returns as soon
// as the job is durably accepted; it never waits for the job to run.
type JobQueue interface {
	Enqueue(ctx context.Context, j *job.Job) error
}

// DeadLetterQueue receives jobs that exhausted their retries.
type DeadLetterQueue interface {
	DeadLetter(ctx context.Context, j *job.Job, reason string) error
}

// Consumer hands queued jobs to workers.
type Consumer interface {
	Subscribe(ctx context.Context) (<-chan Message, error)
}

// Queue is the full queue surface used by the worker pool.
type Queue interface {
	JobQueue
	DeadLetterQueue
	Consumer
}

// Message is one delivery of a job. Exactly one of Ack, Nak, NakWithDelay
// or Term settles it. InProgress restarts the AckWait timer of an unsettled
// delivery so a long-running job is not redelivered to another worker.
type Message interface {
	Job() *job.Job
	DeliveryCount() int
	Ack() error
	Nak() error
	NakWithDelay(delay time.Duration) error
	Term() error
	InProgress() error
}

// Config holds queue configuration.
type Config struct {
	URL     string
	AckWait time.Duration
	// MaxAge bounds how long an unprocessed job is retained.
	MaxAge time.Duration
	// Buffer is the size of the channel handed to workers.
	Buffer int
}

// DefaultConfig returns the default queue configuration.
func DefaultConfig() Config {
	return Config{
		URL:     "nats://localhost:4222",
		AckWait: 30 * time.Second,
		MaxAge:  7 * 24 * time.Hour,
		Buffer:  100,
	}
}
