package jobstore

import (
	"context"
	"fmt"
	"time"

	"github.com/example/product-catalog/domain/job"
	"github.com/go-monolith/mono"
	kvjetstream "github.com/go-monolith/mono/plugin/kv-jetstream"
	"github.com/go-monolith/mono/pkg/types"
)

// BucketConfig returns the kv-jetstream bucket definition for job records.
func BucketConfig() kvjetstream.BucketConfig {
	return kvjetstream.BucketConfig{
		Name:        BucketName,
		Description: "Catalog job status",
		TTL:         7 * 24 * time.Hour,
		Storage:     kvjetstream.FileStorage,
	}
}

// Module resolves the jobs bucket from the kv plugin. Until Start has run,
// and when the plugin is missing, it serves an in-memory store.
type Module struct {
	kv     *kvjetstream.PluginModule
	store  *SwitchableStore
	logger types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module          = (*Module)(nil)
	_ mono.UsePluginModule = (*Module)(nil)
)

// NewModule creates the job store module.
func NewModule(logger types.Logger) *Module {
	return &Module{
		store:  NewSwitchableStore(job.NewMemoryStore()),
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "jobstore"
}

// SetPlugin receives the KV plugin from the framework.
func (m *Module) SetPlugin(alias string, plugin mono.PluginModule) {
	if alias != "kv" {
		return
	}
	kv, ok := plugin.(*kvjetstream.PluginModule)
	if !ok {
		m.logger.Error("Invalid plugin type for kv",
			"alias", alias,
			"expected", "*kvjetstream.PluginModule")
		return
	}
	m.kv = kv
	m.logger.Info("Received KV plugin", "alias", alias)
}

// Start switches the store to the kv bucket.
func (m *Module) Start(_ context.Context) error {
	if m.kv == nil {
		m.logger.Warn("kv plugin not registered, job status kept in memory")
		return nil
	}
	bucket := m.kv.Bucket(BucketName)
	if bucket == nil {
		return fmt.Errorf("bucket '%s' not found in KV plugin", BucketName)
	}
	m.store.Switch(NewStore(bucket))
	m.logger.Info("Job store started", "bucket", BucketName)
	return nil
}

// Stop stops the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Job store stopped")
	return nil
}

// Store returns the job store. It is valid before Start.
func (m *Module) Store() job.Store {
	return m.store
}
