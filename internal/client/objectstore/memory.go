package objectstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/secretvault/internal/common"
)

type memObject struct {
	contentType string
	data        []byte
}

// MemoryStore keeps objects in process memory.
type MemoryStore struct {
	bucket  string
	mu      sync.RWMutex
	objects map[string]memObject
}

func NewMemoryStore(bucket string) *MemoryStore {
	return &MemoryStore{bucket: bucket, objects: make(map[string]memObject)}
}

func (m *MemoryStore) Upload(_ context.Context, path, contentType string, data []byte) (Reference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = memObject{contentType: contentType, data: append([]byte(nil), data...)}
	return Reference{Bucket: m.bucket, Path: path}, nil
}

func (m *MemoryStore) URL(_ context.Context, ref Reference) (string, error) {
	if ref.Bucket == "" {
		ref.Bucket = m.bucket
	}
	return "memory://" + ref.Bucket + "/" + escapePath(ref.Path), nil
}

func (m *MemoryStore) Get(_ context.Context, path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[path]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", path, common.ErrNotFound)
	}
	return append([]byte(nil), obj.data...), nil
}

func (m *MemoryStore) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[path]; !ok {
		return fmt.Errorf("object %s: %w", path, common.ErrNotFound)
	}
	delete(m.objects, path)
	return nil
}

// Len reports how many objects are stored.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// ContentType returns the stored content type of path.
func (m *MemoryStore) ContentType(path string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[path]
	return obj.contentType, ok
}
