package docstore

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/secretvault/internal/common"
)

// MemoryStore keeps documents in process memory, in insertion order.
type MemoryStore struct {
	mu    sync.RWMutex
	colls map[string][]Document
	last  time.Time
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{colls: make(map[string][]Document), now: time.Now}
}

// stamp returns a strictly increasing creation time.
func (m *MemoryStore) stamp() time.Time {
	t := m.now().UTC()
	if !t.After(m.last) {
		t = m.last.Add(time.Microsecond)
	}
	m.last = t
	return t
}

func (m *MemoryStore) Insert(_ context.Context, collection string, fields Fields) (string, error) {
	if _, _, err := splitCollection(collection); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := Document{ID: uuid.NewString(), Fields: Fields{}.merge(fields), CreatedAt: m.stamp()}
	m.colls[collection] = append(m.colls[collection], doc)
	return doc.ID, nil
}

func (m *MemoryStore) Query(_ context.Context, collection string, order OrderBy) ([]Document, error) {
	if _, _, err := splitCollection(collection); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := make([]Document, len(m.colls[collection]))
	for i, d := range m.colls[collection] {
		out[i] = copyDoc(d)
	}
	m.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b Document) int {
		var c int
		if order.Field == "" || order.Field == FieldCreatedAt {
			c = a.CreatedAt.Compare(b.CreatedAt)
		} else {
			c = compareValues(a.Fields[order.Field], b.Fields[order.Field])
		}
		if order.Desc {
			return -c
		}
		return c
	})
	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	docs := m.colls[collection]
	i := slices.IndexFunc(docs, func(d Document) bool { return d.ID == id })
	if i < 0 {
		return fmt.Errorf("document %s/%s: %w", collection, id, common.ErrNotFound)
	}
	m.colls[collection] = slices.Delete(docs, i, i+1)
	return nil
}

func (m *MemoryStore) Update(_ context.Context, docPath string, fields Fields) error {
	collection, id, err := SplitDoc(docPath)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	docs := m.colls[collection]
	if i := slices.IndexFunc(docs, func(d Document) bool { return d.ID == id }); i >= 0 {
		docs[i].Fields = docs[i].Fields.merge(fields)
		return nil
	}
	m.colls[collection] = append(docs, Document{ID: id, Fields: Fields{}.merge(fields), CreatedAt: m.stamp()})
	return nil
}

func (m *MemoryStore) Get(_ context.Context, docPath string) (*Document, error) {
	collection, id, err := SplitDoc(docPath)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, d := range m.colls[collection] {
		if d.ID == id {
			c := copyDoc(d)
			return &c, nil
		}
	}
	return nil, fmt.Errorf("document %s: %w", docPath, common.ErrNotFound)
}

func copyDoc(d Document) Document {
	d.Fields = Fields{}.merge(d.Fields)
	return d
}
