// Package models defines the client-side data model of SecretVault: media
// files, gallery records and identities.
package models

import (
	"math"
	"time"
)

// Backend names a persistence backend.
type Backend string

const (
	BackendLocal  Backend = "local"
	BackendRemote Backend = "remote"
)

// ParseBackend accepts "local"/"device" and "remote"/"cloud".
func ParseBackend(s string) (Backend, bool) {
	switch s {
	case "local", "device":
		return BackendLocal, true
	case "remote", "cloud":
		return BackendRemote, true
	}
	return "", false
}

// MediaKind is the coarse class of a file.
type MediaKind string

const (
	KindImage MediaKind = "image"
	KindVideo MediaKind = "video"
)

// SourceFile is a user-selected file before validation.
type SourceFile struct {
	Name        string
	ContentType string
	Data        []byte
}

func (f SourceFile) Size() int64 { return int64(len(f.Data)) }

// LocalContent is the payload of a locally stored record.
type LocalContent struct {
	DataURI string
}

// RemoteContent locates a remotely stored record.
type RemoteContent struct {
	PreviewURL  string
	StoragePath string
}

// FileRecord is one gallery entry. Exactly one of Local and Remote is set,
// matching the backend the record came from.
type FileRecord struct {
	ID        string
	Name      string
	Size      int64
	Kind      MediaKind
	CreatedAt time.Time

	Local  *LocalContent
	Remote *RemoteContent
}

// Source reports which backend holds the record.
func (r FileRecord) Source() Backend {
	if r.Remote != nil {
		return BackendRemote
	}
	return BackendLocal
}

// PreviewURL is the URL a viewer can render: a data URI for local records,
// the resolved object URL for remote ones.
func (r FileRecord) PreviewURL() string {
	switch {
	case r.Remote != nil:
		return r.Remote.PreviewURL
	case r.Local != nil:
		return r.Local.DataURI
	}
	return ""
}

// SizeMB is the size in megabytes rounded to one decimal.
func (r FileRecord) SizeMB() float64 { return SizeMB(r.Size) }

func SizeMB(n int64) float64 {
	return math.Round(float64(n)/(1024*1024)*10) / 10
}
