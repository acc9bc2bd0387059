// Package objectstore uploads, resolves and deletes binary objects by path.
package objectstore

import (
	"context"
	"net/url"
	"strings"
)

// Reference is an opaque handle to an uploaded object.
type Reference struct {
	Bucket string
	Path   string
}

// Store is a path-addressed object store. Get and Delete report
// common.ErrNotFound for a missing object.
type Store interface {
	Upload(ctx context.Context, path, contentType string, data []byte) (Reference, error)
	URL(ctx context.Context, ref Reference) (string, error)
	Get(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
}

const (
	DriverS3     = "s3"
	DriverMemory = "memory"
)

// escapePath escapes every segment of p and keeps the slashes.
func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}
