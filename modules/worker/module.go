package worker

import (
	"context"
	"log"

	"github.com/example/product-catalog/domain/job"
	"github.com/example/product-catalog/modules/queue"
	"github.com/go-monolith/mono"
)

// Module provides the worker pool as a mono module.
type Module struct {
	pool *Pool
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates the worker module.
func NewModule(cfg PoolConfig, q queue.Queue, jobStore job.Store, processor *Processor) *Module {
	return &Module{
		pool: NewPool(cfg, q, jobStore, processor),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "worker"
}

// Start starts the worker pool. Workers outlive the start context and are
// stopped by Stop.
func (m *Module) Start(ctx context.Context) error {
	if err := m.pool.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	log.Println("[worker] Module started")
	return nil
}

// Stop stops the worker pool gracefully.
func (m *Module) Stop(ctx context.Context) error {
	if err := m.pool.Stop(ctx); err != nil {
		return err
	}
	log.Println("[worker] Module stopped")
	return nil
}

// Health reports whether the pool is running.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if !m.pool.IsRunning() {
		return mono.HealthStatus{Healthy: false, Message: "worker pool not running"}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"workers": m.pool.config.NumWorkers},
	}
}

// Pool returns the worker pool.
func (m *Module) Pool() *Pool {
	return m.pool
}
