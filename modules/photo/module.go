package photo

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/go-monolith/mono"
	fsjetstream "github.com/go-monolith/mono/plugin/fs-jetstream"
	"github.com/go-monolith/mono/pkg/types"
)

// BucketConfig returns the fs-jetstream bucket definition for photos.
func BucketConfig() fsjetstream.BucketConfig {
	return fsjetstream.BucketConfig{
		Name:        BucketName,
		Description: "Product photos",
		MaxBytes:    512 * 1024 * 1024,
		Storage:     fsjetstream.FileStorage,
		Compression: true,
	}
}

// Module owns the photo service once the storage plugin is available.
type Module struct {
	storage *fsjetstream.PluginModule
	service atomic.Pointer[Service]
	logger  types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module          = (*Module)(nil)
	_ mono.UsePluginModule = (*Module)(nil)
)

// NewModule creates the photo module.
func NewModule(logger types.Logger) *Module {
	return &Module{logger: logger}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "photo"
}

// SetPlugin receives the storage plugin from the framework.
func (m *Module) SetPlugin(alias string, plugin mono.PluginModule) {
	if alias != "storage" {
		return
	}
	storage, ok := plugin.(*fsjetstream.PluginModule)
	if !ok {
		m.logger.Error("Invalid plugin type for storage",
			"alias", alias,
			"expected", "*fsjetstream.PluginModule")
		return
	}
	m.storage = storage
	m.logger.Info("Received storage plugin", "alias", alias)
}

// Start resolves the photos bucket.
func (m *Module) Start(_ context.Context) error {
	if m.storage == nil {
		return fmt.Errorf("required plugin 'storage' not registered")
	}
	bucket := m.storage.Bucket(BucketName)
	if bucket == nil {
		return fmt.Errorf("bucket '%s' not found in storage plugin", BucketName)
	}
	m.service.Store(NewService(bucket))
	m.logger.Info("Photo module started", "bucket", BucketName)
	return nil
}

// Stop stops the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Photo module stopped")
	return nil
}

// Store saves a photo; see Service.Store.
func (m *Module) Store(ctx context.Context, filename string, data []byte, contentType string) (string, error) {
	s := m.service.Load()
	if s == nil {
		return "", ErrUnavailable
	}
	return s.Store(ctx, filename, data, contentType)
}

// Open loads a photo; see Service.Open.
func (m *Module) Open(ctx context.Context, filename string) (*Photo, error) {
	s := m.service.Load()
	if s == nil {
		return nil, ErrUnavailable
	}
	return s.Open(ctx, filename)
}
