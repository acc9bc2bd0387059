package docstore

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitDoc(t *testing.T) {
	coll, id, err := SplitDoc("users/u1")
	require.NoError(t, err)
	assert.Equal(t, "users", coll)
	assert.Equal(t, "u1", id)

	coll, id, err = SplitDoc(Path("users", "u1", "gallery", "d9"))
	require.NoError(t, err)
	assert.Equal(t, "users/u1/gallery", coll)
	assert.Equal(t, "d9", id)

	for _, bad := range []string{"", "users", "users/u1/gallery", "users//x/y", "/u1"} {
		_, _, err := SplitDoc(bad)
		assert.ErrorIs(t, err, ErrInvalidPath, bad)
	}
}

func TestSplitCollection(t *testing.T) {
	parent, name, err := splitCollection("users/u1/gallery")
	require.NoError(t, err)
	assert.Equal(t, "users/u1", parent)
	assert.Equal(t, "gallery", name)

	parent, name, err = splitCollection("users")
	require.NoError(t, err)
	assert.Empty(t, parent)
	assert.Equal(t, "users", name)

	_, _, err = splitCollection("users/u1")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestFields_Accessors(t *testing.T) {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	f := Fields{
		"name":  "a.png",
		"size":  json.Number("2048"),
		"i64":   int64(7),
		"float": 3.9,
		"at":    at,
		"atStr": at.Format(time.RFC3339Nano),
		"ms":    at.UnixMilli(),
	}
	assert.Equal(t, "a.png", f.String("name"))
	assert.Empty(t, f.String("size"))
	assert.Equal(t, int64(2048), f.Int64("size"))
	assert.Equal(t, int64(7), f.Int64("i64"))
	assert.Equal(t, int64(3), f.Int64("float"))
	assert.Zero(t, f.Int64("missing"))
	assert.True(t, at.Equal(f.Time("at")))
	assert.True(t, at.Equal(f.Time("atStr")))
	assert.True(t, at.Equal(f.Time("ms")))
}

func TestFields_Merge(t *testing.T) {
	base := Fields{"username": "ann", "profilePicUrl": "https://x/old.jpg"}
	got := base.merge(Fields{"profilePicUrl": nil, "storageType": "remote"})

	assert.Equal(t, Fields{"username": "ann", "storageType": "remote"}, got)
	assert.Equal(t, "https://x/old.jpg", base["profilePicUrl"], "merge does not mutate the receiver")
}

func TestCompareValues(t *testing.T) {
	assert.Equal(t, -1, compareValues(int64(1), json.Number("2")))
	assert.Equal(t, 1, compareValues("b", "a"))
	assert.Equal(t, 0, compareValues(2.0, 2))
	assert.Equal(t, -1, compareValues(nil, "a"))
	assert.Equal(t, 1, compareValues("a", nil))
	now := time.Now()
	assert.Equal(t, -1, compareValues(now, now.Add(time.Second)))
}
