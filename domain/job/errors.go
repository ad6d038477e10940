package job

import "errors"

var (
	// ErrJobNotFound indicates the job was not found.
	ErrJobNotFound = errors.New("job not found")
	// ErrInvalidJobType indicates an invalid job type was provided.
	ErrInvalidJobType = errors.New("invalid job type")
	// ErrInvalidPayload indicates an invalid payload was provided.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrQueueUnavailable indicates the queue is not available.
	ErrQueueUnavailable = errors.New("queue unavailable")
)
