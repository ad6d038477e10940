// Package jobstore keeps job status in a JetStream key-value bucket so it
// survives restarts and is shared by every process on the same NATS server.
package jobstore

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/product-catalog/domain/job"
	kvjetstream "github.com/go-monolith/mono/plugin/kv-jetstream"
)

// BucketName is the kv-jetstream bucket holding job records.
const BucketName = "jobs"

// maxUpdateAttempts bounds optimistic-locking retries on concurrent writes.
const maxUpdateAttempts = 5

// Store implements job.Store on a kv-jetstream bucket.
type Store struct {
	bucket kvjetstream.KVStoragePort
}

var _ job.Store = (*Store)(nil)

// NewStore creates a store over bucket.
func NewStore(bucket kvjetstream.KVStoragePort) *Store {
	return &Store{bucket: bucket}
}

// Create stores a new job record.
func (s *Store) Create(j *job.Job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if _, err := s.bucket.Create(j.ID, data, 0); err != nil {
		if errors.Is(err, kvjetstream.ErrKeyExists) {
			return nil
		}
		return fmt.Errorf("failed to store job: %w", err)
	}
	return nil
}

// GetByID retrieves a job by its ID.
func (s *Store) GetByID(id string) (*job.Job, error) {
	data, err := s.bucket.Get(id)
	if err != nil {
		if errors.Is(err, kvjetstream.ErrKeyNotFound) {
			return nil, job.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return decode(data)
}

// List scans the bucket; it is meant for small operational listings.
func (s *Store) List(status job.JobStatus, jobType job.JobType, limit, offset int) ([]*job.Job, error) {
	keys, err := s.bucket.Keys()
	if err != nil {
		if errors.Is(err, kvjetstream.ErrKeyNotFound) {
			return []*job.Job{}, nil
		}
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	all := make([]*job.Job, 0, len(keys))
	for _, key := range keys {
		j, err := s.GetByID(key)
		if err != nil {
			continue
		}
		if status != "" && j.Status != status {
			continue
		}
		if jobType != "" && j.Type != jobType {
			continue
		}
		all = append(all, j)
	}
	return job.Paginate(all, limit, offset), nil
}

// SetStarted marks a job as being processed by workerID.
func (s *Store) SetStarted(id, workerID string) error {
	_, err := s.update(id, job.Started(workerID))
	return err
}

// SetCompleted marks a job as completed.
func (s *Store) SetCompleted(id string) error {
	_, err := s.update(id, job.Completed)
	return err
}

// SetFailed marks a job as failed.
func (s *Store) SetFailed(id, errMsg string) error {
	_, err := s.update(id, job.Failed(errMsg))
	return err
}

// IncrementRetry records a retry and returns the new retry count.
func (s *Store) IncrementRetry(id string) (int, error) {
	j, err := s.update(id, job.Retried)
	if err != nil {
		return 0, err
	}
	return j.RetryCount, nil
}

// SetDeadLetter marks a job as moved to the dead letter queue.
func (s *Store) SetDeadLetter(id, reason string) error {
	_, err := s.update(id, job.DeadLettered(reason))
	return err
}

// update applies fn with revision-checked writes, retrying on conflicts.
func (s *Store) update(id string, fn func(*job.Job)) (*job.Job, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		entry, err := s.bucket.GetEntry(id)
		if err != nil {
			if errors.Is(err, kvjetstream.ErrKeyNotFound) {
				return nil, job.ErrJobNotFound
			}
			return nil, fmt.Errorf("failed to get job: %w", err)
		}

		j, err := decode(entry.Value)
		if err != nil {
			return nil, err
		}
		job.Mutate(j, fn)

		data, err := json.Marshal(j)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal job: %w", err)
		}

		_, err = s.bucket.Update(id, data, 0, entry.Revision)
		if err == nil {
			return j, nil
		}
		if !errors.Is(err, kvjetstream.ErrRevisionMismatch) {
			return nil, fmt.Errorf("failed to update job: %w", err)
		}
	}
	return nil, fmt.Errorf("failed to update job %s: too many concurrent writers", id)
}

func decode(data []byte) (*job.Job, error) {
	var j job.Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &j, nil
}
