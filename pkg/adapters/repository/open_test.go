package repository_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/go-shortlink/pkg/adapters/repository"
	"github.com/wadjakorntonsri/go-shortlink/pkg/adapters/repository/memory"
	"github.com/wadjakorntonsri/go-shortlink/pkg/adapters/repository/redis"
	"github.com/wadjakorntonsri/go-shortlink/pkg/adapters/repository/sqlite"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	store, err := repository.Open(ctx, "memory://")
	require.NoError(t, err)
	assert.IsType(t, &memory.Repository{}, store)
	require.NoError(t, store.Close())

	s := miniredis.RunT(t)
	store, err = repository.Open(ctx, "redis://"+s.Addr())
	require.NoError(t, err)
	assert.IsType(t, &redis.Repository{}, store)
	require.NoError(t, store.Close())

	store, err = repository.Open(ctx, filepath.Join(t.TempDir(), "links.db"))
	require.NoError(t, err)
	assert.IsType(t, &sqlite.SQLiteRepository{}, store)
	require.NoError(t, store.Close())
}

func TestOpen_UnreachableRedis(t *testing.T) {
	s := miniredis.RunT(t)
	addr := s.Addr()
	s.Close()

	_, err := repository.Open(context.Background(), "redis://"+addr)
	assert.Error(t, err)
}
