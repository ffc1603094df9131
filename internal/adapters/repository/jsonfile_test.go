package repository_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/gradebook/internal/adapters/repository"
	"github.com/stretchr/testify/require"
)

func TestJSONFileRepository_LoadMissing(t *testing.T) {
	repo := repository.NewJSONFileRepository(filepath.Join(t.TempDir(), "scores.json"))

	doc, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Empty(t, doc.Students)
	require.Empty(t, doc.Subjects)
}

func TestJSONFileRepository_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "scores.json")
	repo := repository.NewJSONFileRepository(path, repository.WithFileMode(0o600))
	doc := sampleDocument(t)

	require.NoError(t, repo.Save(ctx, doc))

	got, err := repository.NewJSONFileRepository(path).Load(ctx)
	require.NoError(t, err)
	requireSameDocument(t, doc, got)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestJSONFileRepository_SaveOverwrites(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "scores.json")
	repo := repository.NewJSONFileRepository(path, repository.WithDirSync(false))

	require.NoError(t, repo.Save(ctx, sampleDocument(t)))
	require.NoError(t, repo.Save(ctx, repository.Document{Subjects: []string{"art"}}))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, got.Students)
	require.Equal(t, []string{"art"}, got.Subjects)
}

func TestJSONFileRepository_LoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"students": {`), 0o600))

	_, err := repository.NewJSONFileRepository(path).Load(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, repository.ErrCorruptData))
}

func TestJSONFileRepository_LoadUnreadable(t *testing.T) {
	// A directory in place of the file exists but cannot be read as a document.
	path := t.TempDir()

	_, err := repository.NewJSONFileRepository(path).Load(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, repository.ErrCorruptData))
}

func TestJSONFileRepository_SaveFailureKeepsPreviousDocument(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "scores.json")
	repo := repository.NewJSONFileRepository(path)
	doc := sampleDocument(t)
	require.NoError(t, repo.Save(ctx, doc))

	// Replacing a file with a directory of the same name makes rename fail.
	blocked := filepath.Join(dir, "blocked")
	require.NoError(t, os.MkdirAll(filepath.Join(blocked, "child"), 0o755))
	err := repository.NewJSONFileRepository(blocked).Save(ctx, doc)
	require.Error(t, err)
	require.True(t, errors.Is(err, repository.ErrIO))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	requireSameDocument(t, doc, got)
}

func TestJSONFileRepository_DirSyncFailureAfterRename(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "scores.json")
	var synced []string
	repo := repository.NewJSONFileRepository(path, repository.WithDirSyncer(func(dir string) error {
		synced = append(synced, dir)
		return errors.New("sync not supported")
	}))
	doc := sampleDocument(t)

	// The rename already published the document, so the save stands.
	require.NoError(t, repo.Save(ctx, doc))
	require.Equal(t, []string{filepath.Dir(path)}, synced)

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	requireSameDocument(t, doc, got)
}

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()

	doc, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, doc.Students)

	want := sampleDocument(t)
	require.NoError(t, repo.Save(ctx, want))
	got, err := repo.Load(ctx)
	require.NoError(t, err)
	requireSameDocument(t, want, got)

	corrupt := repository.NewMemoryRepositoryFrom([]byte("{"))
	_, err = corrupt.Load(ctx)
	require.True(t, errors.Is(err, repository.ErrCorruptData))
}
