package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"story-server/internal/model"
	"story-server/internal/storage"
)

func TestReconcileRemovesOrphans(t *testing.T) {
	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	catalog := newMemCatalog()
	users := newMemUsers("alice")
	alice, _ := users.GetByUsername(context.Background(), "alice")

	// Живая история: запись в каталоге есть
	livePath := store.StoryPath("alice", 1)
	require.NoError(t, store.EnsureDir(livePath))
	_, err = catalog.Add(context.Background(), model.Story{UserID: alice.ID, Title: "Kept", Path: livePath})
	require.NoError(t, err)

	// Сирота от упавшей структуризации: директория без записи
	orphanPath := store.StoryPath("alice", 2)
	require.NoError(t, store.EnsureDir(orphanPath))

	// Область удаленного пользователя
	require.NoError(t, store.EnsureDir(store.StoryPath("ghost", 1)))

	m := NewMaintenanceService(catalog, users, store, zerolog.Nop())
	report, err := m.Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{orphanPath}, report.OrphanStoryDirs)
	assert.Equal(t, []string{"ghost"}, report.OrphanUserAreas)

	assert.True(t, store.DirExists(livePath))
	assert.False(t, store.DirExists(orphanPath))
	assert.False(t, store.DirExists("ghost"))
}

func TestReconcileEmptyStore(t *testing.T) {
	store, err := storage.New(t.TempDir())
	require.NoError(t, err)

	m := NewMaintenanceService(newMemCatalog(), newMemUsers(), store, zerolog.Nop())
	report, err := m.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.OrphanStoryDirs)
	assert.Empty(t, report.OrphanUserAreas)
}
