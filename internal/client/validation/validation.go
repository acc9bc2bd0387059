// Package validation is the gate every file passes before it reaches a
// persistence adapter. It performs no I/O.
package validation

import (
	"mime"
	"strings"

	"github.com/dmitrijs2005/secretvault/internal/client/models"
	"github.com/dmitrijs2005/secretvault/internal/common"
)

const (
	DefaultMaxBytes        int64 = 10 << 20
	DefaultProfileMaxBytes int64 = 5 << 20
)

// Policy is a set of acceptance rules.
type Policy struct {
	MaxBytes   int64
	AllowVideo bool
}

// DefaultPolicy accepts images up to 10 MiB.
func DefaultPolicy() Policy {
	return Policy{MaxBytes: DefaultMaxBytes}
}

// ProfilePolicy accepts images up to 5 MiB.
func ProfilePolicy() Policy {
	return Policy{MaxBytes: DefaultProfileMaxBytes}
}

// Validate returns the media kind of an accepted file, or a
// *common.ValidationError. Size is checked before type.
func (p Policy) Validate(f models.SourceFile) (models.MediaKind, error) {
	if size := f.Size(); size > p.MaxBytes {
		return "", &common.ValidationError{Name: f.Name, Reason: common.ErrTooLarge, Size: size, Limit: p.MaxBytes}
	}
	kind, ok := p.Kind(f.ContentType)
	if !ok {
		return "", &common.ValidationError{Name: f.Name, Reason: common.ErrWrongType, ContentType: f.ContentType}
	}
	return kind, nil
}

// Kind maps a content type onto an accepted media kind.
func (p Policy) Kind(contentType string) (models.MediaKind, bool) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", false
	}
	major, _, _ := strings.Cut(mediaType, "/")
	switch major {
	case "image":
		return models.KindImage, true
	case "video":
		if p.AllowVideo {
			return models.KindVideo, true
		}
	}
	return "", false
}
