package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/secretvault/internal/common"
)

func TestContentType(t *testing.T) {
	pngMagic := []byte("\x89PNG\r\n\x1a\n0000000000")

	assert.Equal(t, "image/jpeg", contentType("photo.JPG", nil))
	assert.Equal(t, "image/png", contentType("no-extension", pngMagic))
	assert.Equal(t, "application/octet-stream", contentType("blob", []byte{0x00, 0x01, 0x02}))
}

func TestReadSourceFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "dog.png")
	require.NoError(t, os.WriteFile(p, []byte("woof"), 0o600))

	f, err := readSourceFile(p, 0)
	require.NoError(t, err)
	assert.Equal(t, "dog.png", f.Name)
	assert.Equal(t, "image/png", f.ContentType)
	assert.Equal(t, int64(4), f.Size())

	_, err = readSourceFile(filepath.Join(dir, "missing.png"), 0)
	assert.Error(t, err)

	_, err = readSourceFile(dir, 0)
	assert.ErrorContains(t, err, "is a directory")
}

func TestReadSourceFile_TooLargeIsRejectedBeforeReading(t *testing.T) {
	p := filepath.Join(t.TempDir(), "big.png")
	require.NoError(t, os.WriteFile(p, make([]byte, 11), 0o600))

	orig := readFile
	readFile = func(string) ([]byte, error) {
		t.Fatal("oversized file was read")
		return nil, nil
	}
	t.Cleanup(func() { readFile = orig })

	_, err := readSourceFile(p, 10)
	require.ErrorIs(t, err, common.ErrTooLarge)

	var ve *common.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "big.png", ve.Name)
	assert.Equal(t, int64(11), ve.Size)
	assert.Equal(t, int64(10), ve.Limit)
}
