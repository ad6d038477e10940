// Package job provides the queue envelope for deferred work.
package job

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/product-catalog/domain/notification"
	"github.com/google/uuid"
)

// JobType represents the type of deferred job.
type JobType string

const (
	// JobTypeNotification fans a notification out to its channels.
	JobTypeNotification JobType = "notification.dispatch"
	// JobTypePublish publishes a product.
	JobTypePublish JobType = "product.publish"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusDeadLetter JobStatus = "dead_letter"
)

// Job is a unit of deferred work carried by the queue.
type Job struct {
	ID          string          `json:"id"`
	Type        JobType         `json:"type"`
	Status      JobStatus       `json:"status"`
	Payload     json.RawMessage `json:"payload"`
	Error       string          `json:"error,omitempty"`
	RetryCount  int             `json:"retry_count"`
	MaxRetries  int             `json:"max_retries"`
	WorkerID    string          `json:"worker_id,omitempty"`
	NotBefore   *time.Time      `json:"not_before,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// PublishPayload is the payload of a JobTypePublish job.
type PublishPayload struct {
	ProductID string `json:"product_id"`
}

// Message is a job as carried on the wire.
type Message struct {
	Job       *Job   `json:"job"`
	MessageID string `json:"message_id"`
}

// DefaultMaxRetries returns the default max retries for a job type.
func DefaultMaxRetries(jobType JobType) int {
	switch jobType {
	case JobTypeNotification:
		return 5
	case JobTypePublish:
		return 3
	default:
		return 3
	}
}

// IsValid returns true if the job type is known.
func (jt JobType) IsValid() bool {
	switch jt {
	case JobTypeNotification, JobTypePublish:
		return true
	default:
		return false
	}
}

// New creates a pending job with a serialized payload.
func New(jobType JobType, payload any) (*Job, error) {
	if !jobType.IsValid() {
		return nil, ErrInvalidJobType
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	now := time.Now()
	return &Job{
		ID:         uuid.New().String(),
		Type:       jobType,
		Status:     JobStatusPending,
		Payload:    data,
		MaxRetries: DefaultMaxRetries(jobType),
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// NewNotification wraps a notification job for the queue.
func NewNotification(n *notification.Job) (*Job, error) {
	return New(JobTypeNotification, n)
}

// NewPublish creates a publish job that must not run before at.
// A zero at means as soon as possible.
func NewPublish(productID string, at time.Time) (*Job, error) {
	j, err := New(JobTypePublish, PublishPayload{ProductID: productID})
	if err != nil {
		return nil, err
	}
	if !at.IsZero() {
		at = at.UTC()
		j.NotBefore = &at
	}
	return j, nil
}

// Decode unmarshals the job payload into dest.
func (j *Job) Decode(dest any) error {
	if err := json.Unmarshal(j.Payload, dest); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// Due returns how long to wait before the job may run, or zero if it is due.
func (j *Job) Due(now time.Time) time.Duration {
	if j.NotBefore == nil || !j.NotBefore.After(now) {
		return 0
	}
	return j.NotBefore.Sub(now)
}
