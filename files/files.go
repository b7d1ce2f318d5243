// Package files defines the blob storage contract for uploaded and exported
// documents, plus an in-memory implementation used by tests and embedded
// deployments. Production installs plug an object store behind the same
// interface.
package files

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Upload purposes. They select the storage prefix and the downstream
// processing applied to the document.
const (
	PurposeImport = "import"
	PurposeExport = "export"
)

// Common errors returned by storage operations.
var (
	// ErrInvalidPurpose is returned for purposes other than import/export.
	ErrInvalidPurpose = errors.New("files: invalid upload purpose")

	// ErrEmptyFile is returned when the upload carries no name.
	ErrEmptyFile = errors.New("files: file name is required")
)

// File is one document handed to Upload.
type File struct {
	// Name is the file name, used as the storage key suffix.
	Name string

	// MimeType describes the content.
	MimeType string

	// Data is the raw content.
	Data []byte
}

// UploadOptions carries the optional entity scoping of an upload.
type UploadOptions struct {
	// EntityType scopes the document to an entity type.
	EntityType string

	// EntityID scopes the document to one entity.
	EntityID string

	// Context is the destination context (export directory).
	Context string

	// ListArgs is the serialized list query attached to bulk exports.
	ListArgs string
}

// Stored is the handle of one uploaded document.
type Stored struct {
	// ID is the storage key of the document.
	ID string `json:"id"`

	// Name is the original file name.
	Name string `json:"name"`

	// Purpose is "import" or "export".
	Purpose string `json:"purpose"`

	// Size is the content length in bytes.
	Size int `json:"size"`

	// UploadedAt is the upload timestamp.
	UploadedAt time.Time `json:"uploaded_at"`
}

// Storage is the blob store contract consumed by the domain layer.
type Storage interface {
	// Upload stores a document under the given purpose and returns its handle.
	Upload(ctx context.Context, actor, purpose string, file File, opts UploadOptions) (*Stored, error)
}

// MemoryStorage is a thread-safe in-memory Storage implementation.
type MemoryStorage struct {
	mu    sync.RWMutex
	blobs map[string]storedBlob
}

type storedBlob struct {
	handle Stored
	data   []byte
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{blobs: make(map[string]storedBlob)}
}

// Upload stores a document in memory.
func (s *MemoryStorage) Upload(ctx context.Context, actor, purpose string, file File, opts UploadOptions) (*Stored, error) {
	if purpose != PurposeImport && purpose != PurposeExport {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPurpose, purpose)
	}
	if file.Name == "" {
		return nil, ErrEmptyFile
	}

	key := storageKey(purpose, opts, file.Name)
	handle := Stored{
		ID:         key,
		Name:       file.Name,
		Purpose:    purpose,
		Size:       len(file.Data),
		UploadedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = storedBlob{handle: handle, data: append([]byte(nil), file.Data...)}

	out := handle
	return &out, nil
}

// Get returns the content of a stored document.
func (s *MemoryStorage) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	blob, ok := s.blobs[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), blob.data...), true
}

// List returns the handles stored under a purpose, sorted by key.
func (s *MemoryStorage) List(purpose string) []Stored {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Stored
	for _, blob := range s.blobs {
		if blob.handle.Purpose == purpose {
			out = append(out, blob.handle)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// storageKey assembles the hierarchical storage key of an upload.
func storageKey(purpose string, opts UploadOptions, name string) string {
	key := purpose
	if opts.EntityType != "" {
		key += "/" + opts.EntityType
	}
	if opts.EntityID != "" {
		key += "/" + opts.EntityID
	}
	if opts.Context != "" {
		key += "/" + opts.Context
	}
	return key + "/" + name
}
