package queue

import (
	"context"
	"fmt"
	"log"

	"github.com/go-monolith/mono"
)

// Backend names accepted by NewModule.
const (
	BackendJetStream = "jetstream"
	BackendMemory    = "memory"
)

// Module provides the job queue as a mono module.
type Module struct {
	backend string
	queue   Queue
	js      *JetStreamQueue
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates the queue for the given backend.
func NewModule(backend string, cfg Config) (*Module, error) {
	m := &Module{backend: backend}
	switch backend {
	case BackendJetStream:
		m.js = NewJetStreamQueue(cfg)
		m.queue = m.js
	case BackendMemory:
		m.queue = NewMemoryQueue()
	default:
		return nil, fmt.Errorf("unknown queue backend %q", backend)
	}
	return m, nil
}

// Name returns the module name.
func (m *Module) Name() string {
	return "queue"
}

// Queue returns the underlying queue.
func (m *Module) Queue() Queue {
	return m.queue
}

// Start connects the JetStream backend.
// Connecting here rather than in Init keeps the embedded NATS server's
// startup ahead of the client.
func (m *Module) Start(ctx context.Context) error {
	if m.js != nil {
		if err := m.js.Connect(ctx); err != nil {
			return err
		}
	}
	log.Printf("[queue] Module started (backend=%s)", m.backend)
	return nil
}

// Stop closes the NATS connection.
func (m *Module) Stop(_ context.Context) error {
	if m.js != nil {
		if err := m.js.Close(); err != nil {
			return err
		}
	}
	log.Println("[queue] Module stopped")
	return nil
}

// Health reports connectivity and backlog.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	details := map[string]any{"backend": m.backend}

	if m.js == nil {
		if mq, ok := m.queue.(*MemoryQueue); ok {
			details["pending"] = mq.Len()
		}
		return mono.HealthStatus{Healthy: true, Message: "operational", Details: details}
	}

	if !m.js.IsConnected() {
		return mono.HealthStatus{Healthy: false, Message: ErrNotConnected.Error(), Details: details}
	}
	if pending, err := m.js.Pending(ctx); err == nil {
		details["pending"] = pending
	}
	return mono.HealthStatus{Healthy: true, Message: "operational", Details: details}
}
