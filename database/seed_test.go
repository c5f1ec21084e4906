package database

import (
	"context"
	"testing"

	"github.com/mmlink/ispbot-backend/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedPackagesIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	require.NoError(t, SeedPackages(ctx, store))
	require.NoError(t, SeedPackages(ctx, store))

	packages, err := store.ActivePackages(ctx)
	require.NoError(t, err)
	require.Len(t, packages, 3)
	assert.Equal(t, "Home", packages[0].Name)
	assert.Equal(t, 15000.0, packages[0].Price)
	assert.Equal(t, "Premium", packages[2].Name)
}
