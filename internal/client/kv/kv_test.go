package kv

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.GetItem(ctx, "sv_photos:u1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetItem(ctx, "sv_photos:u1", `[{"name":"a.png"}]`))
	v, ok, err := s.GetItem(ctx, "sv_photos:u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `[{"name":"a.png"}]`, v)

	require.NoError(t, s.SetItem(ctx, "sv_photos:u1", `[]`))
	v, _, err = s.GetItem(ctx, "sv_photos:u1")
	require.NoError(t, err)
	assert.Equal(t, `[]`, v, "set replaces")

	require.NoError(t, s.RemoveItem(ctx, "sv_photos:u1"))
	require.NoError(t, s.RemoveItem(ctx, "sv_photos:u1"), "remove of a missing key is not an error")
	_, ok, err = s.GetItem(ctx, "sv_photos:u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	db, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	exerciseStore(t, NewSQLiteStore(db))
}

func TestSQLiteStore_WrapsErrors(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	s := NewSQLiteStore(db)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM kv WHERE key = ?`)).
		WithArgs("k").WillReturnError(errors.New("disk I/O error"))
	_, _, err = s.GetItem(ctx, "k")
	assert.ErrorContains(t, err, "failed to get kv[k]")

	mock.ExpectExec(`INSERT INTO kv`).WithArgs("k", "v").WillReturnError(sql.ErrConnDone)
	err = s.SetItem(ctx, "k", "v")
	assert.ErrorIs(t, err, sql.ErrConnDone)

	mock.ExpectExec(`DELETE FROM kv`).WithArgs("k").WillReturnError(sql.ErrConnDone)
	assert.ErrorIs(t, s.RemoveItem(ctx, "k"), sql.ErrConnDone)

	require.NoError(t, mock.ExpectationsWereMet())
}

type fakeRedis struct {
	data map[string]string
	err  error
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.data[key] = value.(string)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestRedisStore(t *testing.T) {
	f := &fakeRedis{data: map[string]string{}}
	exerciseStore(t, NewRedisStore(f, "vault:"))

	require.NoError(t, NewRedisStore(f, "vault:").SetItem(context.Background(), "sv_identity", "{}"))
	assert.Contains(t, f.data, "vault:sv_identity")
}

func TestRedisStore_Errors(t *testing.T) {
	s := NewRedisStore(&fakeRedis{data: map[string]string{}, err: errors.New("connection refused")}, "")
	ctx := context.Background()

	_, _, err := s.GetItem(ctx, "k")
	assert.ErrorContains(t, err, "connection refused")
	assert.Error(t, s.SetItem(ctx, "k", "v"))
	assert.Error(t, s.RemoveItem(ctx, "k"))
}
