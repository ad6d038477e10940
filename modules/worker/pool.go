package worker

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/example/product-catalog/domain/job"
	"github.com/example/product-catalog/modules/queue"
	"golang.org/x/sync/errgroup"
)

// PoolConfig holds worker pool configuration.
type PoolConfig struct {
	NumWorkers     int
	MaxRetries     int
	BaseRetryDelay time.Duration
	MaxRetryDelay  time.Duration
	ProcessTimeout time.Duration
	// HeartbeatInterval is how often a running job reports progress to the
	// queue. It must stay below the queue's AckWait.
	HeartbeatInterval time.Duration
	// MaxDeferDelay caps how long a not-yet-due job is parked before it is
	// looked at again.
	MaxDeferDelay time.Duration
}

// DefaultPoolConfig returns the default pool configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		NumWorkers:        3,
		MaxRetries:        5,
		BaseRetryDelay:    time.Second,
		MaxRetryDelay:     time.Minute,
		ProcessTimeout:    2 * time.Minute,
		HeartbeatInterval: 10 * time.Second,
		MaxDeferDelay:     time.Hour,
	}
}

// Pool runs a fixed number of workers over one subscription.
type Pool struct {
	config    PoolConfig
	queue     queue.Queue
	jobStore  job.Store
	processor *Processor
	workers   []*Worker
	group     *errgroup.Group
	cancel    context.CancelFunc
	mu        sync.Mutex
	running   bool
}

// NewPool creates a new worker pool.
func NewPool(cfg PoolConfig, q queue.Queue, jobStore job.Store, processor *Processor) *Pool {
	return &Pool{
		config:    cfg,
		queue:     q,
		jobStore:  jobStore,
		processor: processor,
	}
}

// Start subscribes to the queue and launches the workers.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("pool is already running")
	}

	workerCtx, cancel := context.WithCancel(ctx)
	msgs, err := p.queue.Subscribe(workerCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to jobs: %w", err)
	}

	group, gctx := errgroup.WithContext(workerCtx)
	p.workers = p.workers[:0]
	for i := 0; i < p.config.NumWorkers; i++ {
		w := NewWorker(fmt.Sprintf("worker-%d", i+1), p.config, p.processor, p.jobStore, p.queue)
		p.workers = append(p.workers, w)
		group.Go(func() error {
			w.Run(gctx, msgs)
			return nil
		})
		log.Printf("[pool] Started %s", w.id)
	}

	p.group = group
	p.cancel = cancel
	p.running = true
	log.Printf("[pool] Worker pool started with %d workers", p.config.NumWorkers)
	return nil
}

// Stop cancels the workers and waits for in-flight jobs, bounded by ctx.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	cancel, group := p.cancel, p.group
	p.mu.Unlock()

	cancel()

	done := make(chan error, 1)
	go func() {
		done <- group.Wait()
	}()

	select {
	case err := <-done:
		log.Println("[pool] All workers stopped gracefully")
		return err
	case <-ctx.Done():
		log.Println("[pool] Timeout waiting for workers to stop")
		return ctx.Err()
	}
}

// IsRunning returns true if the pool is running.
func (p *Pool) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Worker processes messages from the pool's subscription.
type Worker struct {
	id        string
	config    PoolConfig
	processor *Processor
	jobStore  job.Store
	dlq       queue.DeadLetterQueue
}

// NewWorker creates a new worker.
func NewWorker(id string, cfg PoolConfig, processor *Processor, jobStore job.Store, dlq queue.DeadLetterQueue) *Worker {
	return &Worker{
		id:        id,
		config:    cfg,
		processor: processor,
		jobStore:  jobStore,
		dlq:       dlq,
	}
}

// Run processes messages until ctx is cancelled or msgs is closed.
func (w *Worker) Run(ctx context.Context, msgs <-chan queue.Message) {
	log.Printf("[%s] Worker started", w.id)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[%s] Worker stopping due to context cancellation", w.id)
			return
		case msg, ok := <-msgs:
			if !ok {
				log.Printf("[%s] Message channel closed, worker stopping", w.id)
				return
			}
			w.ProcessOne(ctx, msg)
		}
	}
}

// ProcessOne runs a single delivery and settles it.
func (w *Worker) ProcessOne(ctx context.Context, msg queue.Message) {
	j := msg.Job()

	if wait := j.Due(time.Now()); wait > 0 {
		w.park(msg, j, wait)
		return
	}

	log.Printf("[%s] Processing job %s (type=%s, delivery=%d)", w.id, j.ID, j.Type, msg.DeliveryCount())
	w.track(j)
	if err := w.jobStore.SetStarted(j.ID, w.id); err != nil {
		log.Printf("[%s] Error updating job status: %v", w.id, err)
	}

	// Shutdown does not cancel a running job; only ProcessTimeout bounds it.
	processCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.config.ProcessTimeout)
	defer cancel()

	stopHeartbeat := w.heartbeat(msg, j)
	start := time.Now()
	err := w.processor.Process(processCtx, j)
	duration := time.Since(start)
	stopHeartbeat()

	if err != nil {
		w.handleFailure(ctx, msg, j, err, msg.DeliveryCount())
		return
	}
	w.handleSuccess(msg, j, duration)
}

// heartbeat calls msg.InProgress every HeartbeatInterval until the returned
// func is called. The returned func waits for the heartbeat goroutine to exit.
func (w *Worker) heartbeat(msg queue.Message, j *job.Job) func() {
	if w.config.HeartbeatInterval <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(w.config.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := msg.InProgress(); err != nil {
					log.Printf("[%s] Error extending ack deadline for job %s: %v", w.id, j.ID, err)
				}
			}
		}
	}()

	return func() {
		close(done)
		<-stopped
	}
}

func (w *Worker) park(msg queue.Message, j *job.Job, wait time.Duration) {
	if w.config.MaxDeferDelay > 0 && wait > w.config.MaxDeferDelay {
		wait = w.config.MaxDeferDelay
	}
	w.track(j)
	if err := msg.NakWithDelay(wait); err != nil {
		log.Printf("[%s] Error deferring job %s: %v", w.id, j.ID, err)
	}
}

// track makes sure the job is known to the store; jobs enqueued by another
// process may not have been recorded locally.
func (w *Worker) track(j *job.Job) {
	if _, err := w.jobStore.GetByID(j.ID); err == nil {
		return
	}
	if err := w.jobStore.Create(j); err != nil {
		log.Printf("[%s] Error recording job %s: %v", w.id, j.ID, err)
	}
}

func (w *Worker) handleSuccess(msg queue.Message, j *job.Job, duration time.Duration) {
	if err := w.jobStore.SetCompleted(j.ID); err != nil {
		log.Printf("[%s] Error setting job completed: %v", w.id, err)
	}
	if err := msg.Ack(); err != nil {
		log.Printf("[%s] Error acknowledging message: %v", w.id, err)
	}
	log.Printf("[%s] Job %s completed successfully in %v", w.id, j.ID, duration)
}

func (w *Worker) handleFailure(ctx context.Context, msg queue.Message, j *job.Job, cause error, deliveryCount int) {
	errMsg := cause.Error()

	if IsPermanent(cause) {
		w.moveToDeadLetter(ctx, msg, j, errMsg)
		return
	}

	retries, err := w.jobStore.IncrementRetry(j.ID)
	if err != nil {
		log.Printf("[%s] Error incrementing retry count: %v", w.id, err)
		retries = deliveryCount
	}

	if retries >= w.maxRetries(j) {
		w.moveToDeadLetter(ctx, msg, j, fmt.Sprintf("max retries (%d) exceeded: %s", w.maxRetries(j), errMsg))
		return
	}

	delay := w.calculateRetryDelay(retries)
	if err := w.jobStore.SetFailed(j.ID, errMsg); err != nil {
		log.Printf("[%s] Error setting job failed: %v", w.id, err)
	}
	if err := msg.NakWithDelay(delay); err != nil {
		log.Printf("[%s] Error NAK with delay: %v", w.id, err)
	}

	log.Printf("[%s] Job %s failed (retry %d/%d), will retry in %v: %s",
		w.id, j.ID, retries, w.maxRetries(j), delay, errMsg)
}

func (w *Worker) moveToDeadLetter(ctx context.Context, msg queue.Message, j *job.Job, reason string) {
	if err := w.jobStore.SetDeadLetter(j.ID, reason); err != nil {
		log.Printf("[%s] Error setting job dead letter: %v", w.id, err)
	}
	if err := w.dlq.DeadLetter(context.WithoutCancel(ctx), j, reason); err != nil {
		log.Printf("[%s] Error publishing to dead-letter queue: %v", w.id, err)
	}
	if err := msg.Term(); err != nil {
		log.Printf("[%s] Error terminating message: %v", w.id, err)
	}
	log.Printf("[%s] Job %s moved to dead-letter queue: %s", w.id, j.ID, reason)
}

// maxRetries is the smaller of the job's own limit and the pool's.
func (w *Worker) maxRetries(j *job.Job) int {
	limit := j.MaxRetries
	if limit <= 0 || (w.config.MaxRetries > 0 && w.config.MaxRetries < limit) {
		limit = w.config.MaxRetries
	}
	return limit
}

// calculateRetryDelay returns base * 2^(retry-1), capped at the max delay.
func (w *Worker) calculateRetryDelay(retryCount int) time.Duration {
	delay := float64(w.config.BaseRetryDelay) * math.Pow(2, float64(retryCount-1))
	if time.Duration(delay) > w.config.MaxRetryDelay {
		return w.config.MaxRetryDelay
	}
	return time.Duration(delay)
}
