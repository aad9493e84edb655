package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/clinic-queue-api/pkg/errors"
)

func newCacheRepo(t *testing.T, namespace string) (*miniredis.Miniredis, *CacheRepository) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewCacheRepository(client, namespace)
}

func TestCacheRepositorySetGet(t *testing.T) {
	mr, repo := newCacheRepo(t, "")
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "queue:snapshot", []string{"CARDI-001"}, time.Minute))
	var got []string
	require.NoError(t, repo.Get(ctx, "queue:snapshot", &got))
	assert.Equal(t, []string{"CARDI-001"}, got)

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, repo.Get(ctx, "queue:snapshot", &got), appErrors.ErrCacheMiss)
}

func TestCacheRepositoryNamespace(t *testing.T) {
	mr, repo := newCacheRepo(t, "north-wing")
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "queue:snapshot", 1, 0))
	assert.True(t, mr.Exists("north-wing:queue:snapshot"))
	assert.False(t, mr.Exists("queue:snapshot"))

	require.NoError(t, repo.Delete(ctx, "queue:snapshot"))
	assert.False(t, mr.Exists("north-wing:queue:snapshot"))
}

func TestCacheRepositoryCorruptValue(t *testing.T) {
	mr, repo := newCacheRepo(t, "")
	require.NoError(t, mr.Set("queue:snapshot", "{not json"))

	var got []string
	err := repo.Get(context.Background(), "queue:snapshot", &got)
	require.Error(t, err)
	assert.NotErrorIs(t, err, appErrors.ErrCacheMiss)
}

func TestCacheRepositorySetNX(t *testing.T) {
	_, repo := newCacheRepo(t, "")
	ctx := context.Background()

	ok, err := repo.SetNX(ctx, "idem:k1", "pending", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.SetNX(ctx, "idem:k1", "pending", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Delete(ctx, "idem:k1", "idem:absent"))
	ok, err = repo.SetNX(ctx, "idem:k1", "pending", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCacheRepositoryUnreachable(t *testing.T) {
	mr, repo := newCacheRepo(t, "")
	mr.Close()

	ctx := context.Background()
	var dest string
	err := repo.Get(ctx, "k", &dest)
	require.Error(t, err)
	assert.NotErrorIs(t, err, appErrors.ErrCacheMiss)
	assert.Error(t, repo.Ping(ctx))
}

func TestCacheRepositoryDisabled(t *testing.T) {
	repo := NewCacheRepository(nil, "ignored")
	ctx := context.Background()

	var dest string
	assert.ErrorIs(t, repo.Get(ctx, "k", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "k", "v", time.Second))
	ok, err := repo.SetNX(ctx, "k", "v", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, repo.Delete(ctx, "k"))
	assert.NoError(t, repo.Ping(ctx))
	assert.NoError(t, repo.Close())
}
