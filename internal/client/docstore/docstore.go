// Package docstore is a hierarchical document store addressed by
// slash-separated paths such as "users/{uid}/gallery". Collection paths have
// an odd number of segments; document paths an even number.
package docstore

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// FieldCreatedAt orders by the store-assigned creation time.
const FieldCreatedAt = "createdAt"

const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

var ErrInvalidPath = errors.New("invalid document path")

// Fields is the body of a document. Values are strings, numbers, booleans
// or time.Time; a nil value passed to Update removes the field.
type Fields map[string]any

// Document is a stored document.
type Document struct {
	ID        string
	Fields    Fields
	CreatedAt time.Time
}

// OrderBy selects the field and direction of Query.
type OrderBy struct {
	Field string
	Desc  bool
}

type Store interface {
	// Insert adds a document with a store-assigned id.
	Insert(ctx context.Context, collection string, fields Fields) (string, error)
	Query(ctx context.Context, collection string, order OrderBy) ([]Document, error)
	// Delete reports common.ErrNotFound for a missing document.
	Delete(ctx context.Context, collection, id string) error
	// Update merges fields into the document at docPath, creating it if needed.
	Update(ctx context.Context, docPath string, fields Fields) error
	Get(ctx context.Context, docPath string) (*Document, error)
}

// Path joins segments into a store path.
func Path(segments ...string) string {
	return strings.Join(segments, "/")
}

// SplitDoc splits a document path into its collection path and id.
func SplitDoc(docPath string) (collection, id string, err error) {
	segs := strings.Split(docPath, "/")
	if len(segs) < 2 || len(segs)%2 != 0 || slicesHasEmpty(segs) {
		return "", "", ErrInvalidPath
	}
	i := strings.LastIndex(docPath, "/")
	return docPath[:i], docPath[i+1:], nil
}

// splitCollection splits a collection path into the parent document path
// ("" at top level) and the collection name.
func splitCollection(collection string) (parent, name string, err error) {
	segs := strings.Split(collection, "/")
	if len(segs)%2 != 1 || slicesHasEmpty(segs) {
		return "", "", ErrInvalidPath
	}
	i := strings.LastIndex(collection, "/")
	if i < 0 {
		return "", collection, nil
	}
	return collection[:i], collection[i+1:], nil
}

func slicesHasEmpty(segs []string) bool {
	for _, s := range segs {
		if s == "" {
			return true
		}
	}
	return false
}

func (f Fields) String(key string) string {
	s, _ := f[key].(string)
	return s
}

func (f Fields) Int64(key string) int64 {
	switch v := f[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float64:
		return int64(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		if f, err := v.Float64(); err == nil {
			return int64(f)
		}
	}
	return 0
}

func (f Fields) Time(key string) time.Time {
	switch v := f[key].(type) {
	case time.Time:
		return v
	case string:
		t, _ := time.Parse(time.RFC3339Nano, v)
		return t
	}
	return time.UnixMilli(f.Int64(key))
}

// merge applies patch onto f; nil values delete keys.
func (f Fields) merge(patch Fields) Fields {
	out := make(Fields, len(f)+len(patch))
	for k, v := range f {
		out[k] = v
	}
	for k, v := range patch {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

// compareValues orders numbers, strings and times. Missing values sort
// first; other mixed types compare equal.
func compareValues(a, b any) int {
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			return cmp.Compare(fa, fb)
		}
	}
	switch va := a.(type) {
	case string:
		if vb, ok := b.(string); ok {
			return strings.Compare(va, vb)
		}
	case time.Time:
		if vb, ok := b.(time.Time); ok {
			return va.Compare(vb)
		}
	}
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return 0
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
