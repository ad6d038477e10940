package jobstore

import (
	"sync"

	"github.com/example/product-catalog/domain/job"
)

// SwitchableStore forwards to a backing job.Store that can be replaced once
// the durable bucket becomes available. Consumers are wired before the
// framework hands plugins to modules, so they hold this indirection.
type SwitchableStore struct {
	mu      sync.RWMutex
	backing job.Store
}

var _ job.Store = (*SwitchableStore)(nil)

// NewSwitchableStore starts with initial as the backing store.
func NewSwitchableStore(initial job.Store) *SwitchableStore {
	return &SwitchableStore{backing: initial}
}

// Switch replaces the backing store.
func (s *SwitchableStore) Switch(next job.Store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backing = next
}

func (s *SwitchableStore) current() job.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backing
}

func (s *SwitchableStore) Create(j *job.Job) error {
	return s.current().Create(j)
}

func (s *SwitchableStore) GetByID(id string) (*job.Job, error) {
	return s.current().GetByID(id)
}

func (s *SwitchableStore) List(status job.JobStatus, jobType job.JobType, limit, offset int) ([]*job.Job, error) {
	return s.current().List(status, jobType, limit, offset)
}

func (s *SwitchableStore) SetStarted(id, workerID string) error {
	return s.current().SetStarted(id, workerID)
}

func (s *SwitchableStore) SetCompleted(id string) error {
	return s.current().SetCompleted(id)
}

func (s *SwitchableStore) SetFailed(id, errMsg string) error {
	return s.current().SetFailed(id, errMsg)
}

func (s *SwitchableStore) IncrementRetry(id string) (int, error) {
	return s.current().IncrementRetry(id)
}

func (s *SwitchableStore) SetDeadLetter(id, reason string) error {
	return s.current().SetDeadLetter(id, reason)
}
