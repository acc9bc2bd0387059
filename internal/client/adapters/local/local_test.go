package local

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/secretvault/internal/client/kv"
	"github.com/dmitrijs2005/secretvault/internal/client/models"
	"github.com/dmitrijs2005/secretvault/internal/common"
	"github.com/dmitrijs2005/secretvault/internal/logging"
)

const ns = models.LocalUID

func newAdapter(t *testing.T) (*Adapter, *kv.MemoryStore) {
	t.Helper()
	store := kv.NewMemoryStore()
	a := New(store, logging.Discard())
	tick := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return a, store
}

func png(name string, n int) models.SourceFile {
	return models.SourceFile{Name: name, ContentType: "image/png", Data: make([]byte, n)}
}

func TestAdapter_PutAndList(t *testing.T) {
	a, _ := newAdapter(t)
	ctx := context.Background()

	r1, err := a.Put(ctx, ns, png("a.png", 10), models.KindImage)
	require.NoError(t, err)
	r2, err := a.Put(ctx, ns, png("b.png", 20), models.KindImage)
	require.NoError(t, err)

	assert.NotEqual(t, r1.ID, r2.ID)
	assert.Equal(t, models.BackendLocal, r1.Source())
	assert.Equal(t, int64(10), r1.Size)

	got, err := a.List(ctx, ns)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"a.png", "b.png"}, []string{got[0].Name, got[1].Name})
	assert.Equal(t, r1, got[0])
}

func TestAdapter_DataRoundTrip(t *testing.T) {
	a, _ := newAdapter(t)
	ctx := context.Background()

	src := models.SourceFile{Name: "x.jpg", ContentType: "image/jpeg", Data: []byte{0xff, 0xd8, 0x01}}
	rec, err := a.Put(ctx, ns, src, models.KindImage)
	require.NoError(t, err)

	data, err := a.Fetch(ctx, ns, rec)
	require.NoError(t, err)
	assert.Equal(t, src.Data, data)
}

func TestAdapter_DeleteAt(t *testing.T) {
	a, _ := newAdapter(t)
	ctx := context.Background()

	for _, n := range []string{"a.png", "b.png", "c.png"} {
		_, err := a.Put(ctx, ns, png(n, 1), models.KindImage)
		require.NoError(t, err)
	}

	require.NoError(t, a.DeleteAt(ctx, ns, 1))
	got, err := a.List(ctx, ns)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png", "c.png"}, []string{got[0].Name, got[1].Name})

	err = a.DeleteAt(ctx, ns, 5)
	assert.ErrorIs(t, err, common.ErrDeleteFailed)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestAdapter_DeleteByRecord(t *testing.T) {
	a, _ := newAdapter(t)
	ctx := context.Background()

	keep, _ := a.Put(ctx, ns, png("same.png", 1), models.KindImage)
	drop, _ := a.Put(ctx, ns, png("same.png", 2), models.KindImage)

	require.NoError(t, a.Delete(ctx, ns, drop))
	got, err := a.List(ctx, ns)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, keep.ID, got[0].ID, "records with equal names are told apart by id")

	err = a.Delete(ctx, ns, drop)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestAdapter_Clear(t *testing.T) {
	a, store := newAdapter(t)
	ctx := context.Background()

	_, _ = a.Put(ctx, ns, png("a.png", 1), models.KindImage)
	require.NoError(t, a.Clear(ctx, ns))

	_, ok, _ := store.GetItem(ctx, Key(ns))
	assert.False(t, ok)
	got, err := a.List(ctx, ns)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAdapter_CorruptedListIsEmpty(t *testing.T) {
	a, store := newAdapter(t)
	ctx := context.Background()
	require.NoError(t, store.SetItem(ctx, Key(ns), "{not json"))

	got, err := a.List(ctx, ns)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = a.Put(ctx, ns, png("fresh.png", 1), models.KindImage)
	require.NoError(t, err)
	got, _ = a.List(ctx, ns)
	assert.Len(t, got, 1)
}

func TestAdapter_LegacyEntries(t *testing.T) {
	a, store := newAdapter(t)
	ctx := context.Background()

	uri := models.DataURI("video/mp4", []byte("abcd"))
	require.NoError(t, store.SetItem(ctx, Key(ns), `[{"name":"old.mp4","dataUrl":"`+uri+`","timestamp":1700000000000}]`))

	first, err := a.List(ctx, ns)
	require.NoError(t, err)
	second, err := a.List(ctx, ns)
	require.NoError(t, err)

	require.Len(t, first, 1)
	assert.NotEmpty(t, first[0].ID)
	assert.Equal(t, first[0].ID, second[0].ID, "assigned ids are stable")
	assert.Equal(t, int64(4), first[0].Size)
	assert.Equal(t, models.KindVideo, first[0].Kind)
	assert.Equal(t, int64(1700000000000), first[0].CreatedAt.UnixMilli())

	require.NoError(t, a.Delete(ctx, ns, first[0]))
}

func TestAdapter_LegacyDuplicatesGetDistinctIDs(t *testing.T) {
	a, store := newAdapter(t)
	ctx := context.Background()

	uri := models.DataURI("image/png", []byte("x"))
	row := `{"name":"x.png","dataUrl":"` + uri + `","timestamp":1700000000000}`
	require.NoError(t, store.SetItem(ctx, Key(ns), "["+row+","+row+"]"))

	got, err := a.List(ctx, ns)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.NotEqual(t, got[0].ID, got[1].ID)

	raw, _, err := store.GetItem(ctx, Key(ns))
	require.NoError(t, err)
	assert.Contains(t, raw, got[0].ID)
	assert.Contains(t, raw, got[1].ID)

	require.NoError(t, a.Delete(ctx, ns, got[1]))
	left, err := a.List(ctx, ns)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, got[0].ID, left[0].ID)
}

func TestAdapter_NamespacesAreSeparate(t *testing.T) {
	a, _ := newAdapter(t)
	ctx := context.Background()

	_, _ = a.Put(ctx, "u1", png("a.png", 1), models.KindImage)
	got, err := a.List(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, got)
}

type failingStore struct {
	kv.Store
	setErr error
}

func (f failingStore) SetItem(context.Context, string, string) error { return f.setErr }

func TestAdapter_PutFailureLeavesListUnchanged(t *testing.T) {
	mem := kv.NewMemoryStore()
	ok := New(mem, logging.Discard())
	ctx := context.Background()
	_, err := ok.Put(ctx, ns, png("a.png", 1), models.KindImage)
	require.NoError(t, err)

	quota := errors.New("quota exceeded")
	bad := New(failingStore{Store: mem, setErr: quota}, logging.Discard())
	_, err = bad.Put(ctx, ns, png("b.png", 1), models.KindImage)
	require.ErrorIs(t, err, common.ErrUploadFailed)
	require.ErrorIs(t, err, quota)

	got, _ := ok.List(ctx, ns)
	assert.Len(t, got, 1)
}

func TestAdapter_IDGeneratorFailure(t *testing.T) {
	a, _ := newAdapter(t)
	a.newID = func() (uuid.UUID, error) { return uuid.Nil, errors.New("entropy") }

	_, err := a.Put(context.Background(), ns, png("a.png", 1), models.KindImage)
	assert.ErrorIs(t, err, common.ErrUploadFailed)
}
