package cli

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/secretvault/internal/client/models"
	"github.com/dmitrijs2005/secretvault/internal/common"
)

var readFile = os.ReadFile

// readSourceFile loads a file from disk. Files over maxBytes are rejected
// with ErrTooLarge before they are read; maxBytes <= 0 disables the check.
// The content type comes from the extension, falling back to content
// sniffing.
func readSourceFile(path string, maxBytes int64) (models.SourceFile, error) {
	st, err := os.Stat(path)
	if err != nil {
		return models.SourceFile{}, fmt.Errorf("read %s: %w", path, err)
	}
	if st.IsDir() {
		return models.SourceFile{}, fmt.Errorf("read %s: is a directory", path)
	}
	if maxBytes > 0 && st.Size() > maxBytes {
		return models.SourceFile{}, &common.ValidationError{
			Name:   filepath.Base(path),
			Reason: common.ErrTooLarge,
			Size:   st.Size(),
			Limit:  maxBytes,
		}
	}

	data, err := readFile(path)
	if err != nil {
		return models.SourceFile{}, fmt.Errorf("read %s: %w", path, err)
	}
	return models.SourceFile{
		Name:        filepath.Base(path),
		ContentType: contentType(path, data),
		Data:        data,
	}, nil
}

func contentType(path string, data []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}
