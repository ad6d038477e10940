package job

import (
	"sort"
	"sync"
	"time"
)

// Store tracks the lifecycle of queued jobs.
type Store interface {
	Create(job *Job) error
	GetByID(id string) (*Job, error)
	List(status JobStatus, jobType JobType, limit, offset int) ([]*Job, error)
	SetStarted(id, workerID string) error
	SetCompleted(id string) error
	SetFailed(id, errMsg string) error
	IncrementRetry(id string) (int, error)
	SetDeadLetter(id, reason string) error
}

// Mutate applies the transition fn to j and refreshes UpdatedAt.
func Mutate(j *Job, fn func(*Job)) {
	fn(j)
	j.UpdatedAt = time.Now()
}

// Started returns the transition recording a worker picking the job up.
func Started(workerID string) func(*Job) {
	return func(j *Job) {
		now := time.Now()
		j.Status = JobStatusProcessing
		j.StartedAt = &now
		j.WorkerID = workerID
	}
}

// Completed marks the job done and clears any previous error.
func Completed(j *Job) {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.Error = ""
}

// Failed returns the transition recording a terminal failure.
func Failed(errMsg string) func(*Job) {
	return func(j *Job) {
		now := time.Now()
		j.Status = JobStatusFailed
		j.Error = errMsg
		j.CompletedAt = &now
	}
}

// Retried puts the job back to pending with one more attempt recorded.
func Retried(j *Job) {
	j.RetryCount++
	j.Status = JobStatusPending
}

// DeadLettered returns the transition recording a job given up on.
func DeadLettered(reason string) func(*Job) {
	return func(j *Job) {
		now := time.Now()
		j.Status = JobStatusDeadLetter
		j.Error = reason
		j.CompletedAt = &now
	}
}

// MemoryStore provides in-memory storage for jobs.
type MemoryStore struct {
	jobs map[string]*Job
	mu   sync.RWMutex
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory job store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[string]*Job),
	}
}

// Create stores a copy of the job.
func (s *MemoryStore) Create(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobCopy := *job
	s.jobs[job.ID] = &jobCopy
	return nil
}

// GetByID retrieves a job by its ID.
func (s *MemoryStore) GetByID(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[id]
	if !exists {
		return nil, ErrJobNotFound
	}
	jobCopy := *job
	return &jobCopy, nil
}

// List returns jobs oldest first, optionally filtered by status and type.
func (s *MemoryStore) List(status JobStatus, jobType JobType, limit, offset int) ([]*Job, error) {
	s.mu.RLock()
	all := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if status != "" && job.Status != status {
			continue
		}
		if jobType != "" && job.Type != jobType {
			continue
		}
		jobCopy := *job
		all = append(all, &jobCopy)
	}
	s.mu.RUnlock()

	return Paginate(all, limit, offset), nil
}

// Paginate sorts jobs by creation time and slices out one page.
func Paginate(jobs []*Job, limit, offset int) []*Job {
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
	if offset >= len(jobs) {
		return []*Job{}
	}
	end := len(jobs)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return jobs[offset:end]
}

func (s *MemoryStore) update(id string, fn func(*Job)) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return nil, ErrJobNotFound
	}
	Mutate(job, fn)
	return job, nil
}

// SetStarted marks a job as being processed by workerID.
func (s *MemoryStore) SetStarted(id, workerID string) error {
	_, err := s.update(id, Started(workerID))
	return err
}

// SetCompleted marks a job as completed.
func (s *MemoryStore) SetCompleted(id string) error {
	_, err := s.update(id, Completed)
	return err
}

// SetFailed marks a job as failed.
func (s *MemoryStore) SetFailed(id, errMsg string) error {
	_, err := s.update(id, Failed(errMsg))
	return err
}

// IncrementRetry records a retry and returns the new retry count.
func (s *MemoryStore) IncrementRetry(id string) (int, error) {
	job, err := s.update(id, Retried)
	if err != nil {
		return 0, err
	}
	return job.RetryCount, nil
}

// SetDeadLetter marks a job as moved to the dead letter queue.
func (s *MemoryStore) SetDeadLetter(id, reason string) error {
	_, err := s.update(id, DeadLettered(reason))
	return err
}
