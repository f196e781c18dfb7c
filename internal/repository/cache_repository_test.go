package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/ocms-api/pkg/errors"
)

func TestCacheRepositoryNamespacesKeys(t *testing.T) {
	repo := NewCacheRepository(nil, nil)

	assert.Equal(t, "ocms:courses:published", repo.key("courses:published"))
	assert.Equal(t, "ocms:courses:published", repo.key("ocms:courses:published"))
	assert.Equal(t, []string{"ocms:a", "ocms:b"}, repo.keys([]string{"a", "b"}))
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	var dest map[string]string
	assert.ErrorIs(t, repo.Get(ctx, "k", &dest), appErrors.ErrCacheMiss)
	require.NoError(t, repo.Set(ctx, "k", map[string]string{"a": "b"}, time.Minute))
	require.NoError(t, repo.Delete(ctx, "k"))
	require.NoError(t, repo.DeleteByPattern(ctx, "k*"))
	assert.Error(t, repo.Ping(ctx))
	assert.NoError(t, repo.Close())
}
