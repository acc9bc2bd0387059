package gallery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/secretvault/internal/client/models"
)

var t0 = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func rec(id, name string, size int64, minutes int) models.FileRecord {
	return models.FileRecord{ID: id, Name: name, Size: size, CreatedAt: t0.Add(time.Duration(minutes) * time.Minute)}
}

func names(rs []models.FileRecord) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Name
	}
	return out
}

type staticLister struct {
	records []models.FileRecord
	err     error
}

func (s staticLister) List(context.Context, string) ([]models.FileRecord, error) {
	return s.records, s.err
}

func TestProjection_SortBy(t *testing.T) {
	p := New()
	p.Add(rec("1", "b.png", 5, 1))
	p.Add(rec("2", "C.png", 1, 3))
	p.Add(rec("3", "a.png", 3, 2))

	require.NoError(t, p.SortBy(SortName))
	assert.Equal(t, []string{"a.png", "b.png", "C.png"}, names(p.Records()))

	require.NoError(t, p.SortBy(SortDate))
	assert.Equal(t, []string{"C.png", "a.png", "b.png"}, names(p.Records()))

	require.NoError(t, p.SortBy(SortSize))
	assert.Equal(t, []string{"b.png", "a.png", "C.png"}, names(p.Records()))

	assert.Error(t, p.SortBy("colour"))
}

func TestProjection_SortIsStable(t *testing.T) {
	p := New()
	p.Add(rec("1", "x.png", 10, 0))
	p.Add(rec("2", "y.png", 10, 0))
	p.Add(rec("3", "z.png", 10, 0))

	require.NoError(t, p.SortBy(SortSize))
	assert.Equal(t, []string{"x.png", "y.png", "z.png"}, names(p.Records()))
	require.NoError(t, p.SortBy(SortDate))
	assert.Equal(t, []string{"x.png", "y.png", "z.png"}, names(p.Records()))
}

func TestProjection_AddOrder(t *testing.T) {
	appendP := New()
	appendP.Add(rec("1", "first", 0, 0))
	appendP.Add(rec("2", "second", 0, 0))
	assert.Equal(t, []string{"first", "second"}, names(appendP.Records()))

	prependP := New(WithPrepend(true))
	prependP.Add(rec("1", "first", 0, 0))
	prependP.Add(rec("2", "second", 0, 0))
	assert.Equal(t, []string{"second", "first"}, names(prependP.Records()))
}

func TestProjection_Refresh(t *testing.T) {
	p := New()
	p.Add(rec("stale", "stale.png", 0, 0))
	p.Select("stale")

	src := staticLister{records: []models.FileRecord{rec("1", "a.png", 1, 0), rec("2", "b.png", 2, 1)}}
	require.NoError(t, p.Refresh(context.Background(), src, "u1"))
	assert.Equal(t, []string{"a.png", "b.png"}, names(p.Records()))
	assert.Empty(t, p.Selected())

	boom := errors.New("offline")
	err := p.Refresh(context.Background(), staticLister{err: boom}, "u1")
	require.ErrorIs(t, err, boom)
	assert.Zero(t, p.Len())
}

func TestProjection_RefreshDoesNotAliasSource(t *testing.T) {
	src := staticLister{records: []models.FileRecord{rec("1", "a.png", 1, 0)}}
	p := New()
	require.NoError(t, p.Refresh(context.Background(), src, "u1"))
	p.Add(rec("2", "b.png", 1, 0))
	require.NoError(t, p.SortBy(SortName))

	assert.Len(t, src.records, 1)
	assert.Equal(t, "a.png", src.records[0].Name)
}

func TestProjection_RemoveAndGet(t *testing.T) {
	p := New()
	p.Add(rec("1", "a.png", 1, 0))
	p.Add(rec("2", "b.png", 1, 0))
	p.Select("1")

	got, ok := p.Get("1")
	require.True(t, ok)
	assert.Equal(t, "a.png", got.Name)

	assert.True(t, p.Remove("1"))
	assert.False(t, p.Remove("1"))
	assert.False(t, p.IsSelected("1"), "removal clears selection")
	_, ok = p.Get("1")
	assert.False(t, ok)
	assert.Equal(t, 1, p.Len())
}

func TestProjection_Selection(t *testing.T) {
	p := New()
	p.Add(rec("1", "a.png", 1, 0))
	p.Add(rec("2", "b.png", 1, 0))
	p.Add(rec("3", "c.png", 1, 0))

	assert.False(t, p.Select("missing"))
	assert.True(t, p.Select("3"))
	assert.True(t, p.Select("1"))
	assert.Equal(t, []string{"a.png", "c.png"}, names(p.Selected()), "display order, not selection order")

	assert.False(t, p.Toggle("1"))
	assert.True(t, p.Toggle("2"))
	assert.False(t, p.Toggle("missing"))
	assert.Equal(t, []string{"b.png", "c.png"}, names(p.Selected()))

	p.Deselect("2")
	assert.False(t, p.IsSelected("2"))

	p.SelectAll()
	assert.Len(t, p.Selected(), 3)
	p.ClearSelection()
	assert.Empty(t, p.Selected())
}

func TestProjection_CounterLabel(t *testing.T) {
	p := New()
	assert.Equal(t, "", p.CounterLabel())
	p.Add(rec("1", "a.png", 1, 0))
	assert.Equal(t, "1 photo stored", p.CounterLabel())
	p.Add(rec("2", "b.png", 1, 0))
	assert.Equal(t, "2 photos stored", p.CounterLabel())
}

func TestParseSortKey(t *testing.T) {
	k, err := ParseSortKey("size")
	require.NoError(t, err)
	assert.Equal(t, SortSize, k)
	_, err = ParseSortKey("random")
	assert.Error(t, err)
}
