// Package photo stores product photos in a JetStream object store bucket.
package photo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	fsjetstream "github.com/go-monolith/mono/plugin/fs-jetstream"
)

// BucketName is the fs-jetstream bucket holding photos.
const BucketName = "photos"

// keyPrefix is the directory photos are stored under, mirroring the public disk layout.
const keyPrefix = "products/"

const defaultContentType = "application/octet-stream"

var (
	// ErrPhotoNotFound is returned when no photo is stored under the filename.
	ErrPhotoNotFound = errors.New("photo not found")
	// ErrInvalidFilename is returned for empty or unusable filenames.
	ErrInvalidFilename = errors.New("invalid filename")
	// ErrUnavailable is returned before the storage bucket is ready.
	ErrUnavailable = errors.New("photo storage unavailable")
)

// Photo is a stored photo and its metadata.
type Photo struct {
	Filename    string
	ContentType string
	Size        int64
	Data        []byte
	StoredAt    time.Time
}

// Service saves and loads photos by their original filename.
type Service struct {
	bucket fsjetstream.FileStoragePort
}

// NewService creates a photo service over bucket.
func NewService(bucket fsjetstream.FileStoragePort) *Service {
	return &Service{bucket: bucket}
}

// Store saves data as products/<filename> and returns the filename to keep on
// the product. An existing photo with the same name is replaced.
func (s *Service) Store(ctx context.Context, filename string, data []byte, contentType string) (string, error) {
	name, err := cleanFilename(filename)
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = defaultContentType
	}

	if _, err := s.bucket.Put(ctx, storageKey(name), data,
		fsjetstream.WithDescription(fmt.Sprintf("Product photo: %s", name)),
		fsjetstream.WithHeaders(map[string]string{
			"Content-Type":  contentType,
			"Original-Name": filename,
			"Uploaded-At":   time.Now().UTC().Format(time.RFC3339),
		}),
	); err != nil {
		return "", fmt.Errorf("failed to store photo: %w", err)
	}
	return name, nil
}

// Open loads the photo stored under filename.
func (s *Service) Open(_ context.Context, filename string) (*Photo, error) {
	name, err := cleanFilename(filename)
	if err != nil {
		return nil, err
	}
	key := storageKey(name)

	objects, err := s.bucket.List(fsjetstream.WithPrefix(key))
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}

	for _, obj := range objects {
		if obj.Name != key {
			continue
		}
		data, err := s.bucket.Get(obj.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to get photo: %w", err)
		}
		return &Photo{
			Filename:    name,
			ContentType: contentTypeOf(obj.Headers),
			Size:        int64(obj.Size),
			Data:        data,
			StoredAt:    obj.ModTime,
		}, nil
	}
	return nil, ErrPhotoNotFound
}

// cleanFilename keeps only the base name so a client cannot escape products/.
func cleanFilename(filename string) (string, error) {
	clean := filepath.Base(filepath.Clean(strings.ReplaceAll(filename, "\\", "/")))
	if clean == "." || clean == ".." || clean == "/" || strings.TrimSpace(clean) == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	return clean, nil
}

func storageKey(name string) string {
	return keyPrefix + name
}

func contentTypeOf(headers map[string]string) string {
	if ct, ok := headers["Content-Type"]; ok && ct != "" {
		return ct
	}
	return defaultContentType
}
