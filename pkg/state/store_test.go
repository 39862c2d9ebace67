package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitup-dev/kitup/pkg/errors"
	"github.com/kitup-dev/kitup/pkg/filesystem"
	"github.com/kitup-dev/kitup/pkg/types"
)

func newTestStore(t *testing.T) (Store, string, string) {
	t.Helper()
	dir := t.TempDir()
	source := t.TempDir()
	path := filepath.Join(dir, "install.toml")
	return New(filesystem.NewOS(), path), path, source
}

func testRecord(source string) types.InstallationRecord {
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	return types.InstallationRecord{
		SourceRoot:  source,
		Version:     "abc1234",
		Mode:        types.PlacementReference,
		Resources:   []string{"CLAUDE.md", "skills"},
		InstalledAt: now,
		UpdatedAt:   now,
	}
}

func TestLoadNotInstalled(t *testing.T) {
	store, _, _ := newTestStore(t)

	record, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, record, "absent record must load as not-installed, not as an error")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store, _, source := newTestStore(t)
	want := testRecord(source)

	require.NoError(t, store.Save(want))

	got, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, want.Equal(*got))
}

func TestSaveRejectsMissingSource(t *testing.T) {
	store, _, _ := newTestStore(t)
	record := testRecord("/does/not/exist")

	err := store.Save(record)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
}

func TestSaveOverwrites(t *testing.T) {
	store, _, source := newTestStore(t)
	first := testRecord(source)
	require.NoError(t, store.Save(first))

	second := first
	second.Version = "def5678"
	second.UpdatedAt = first.UpdatedAt.Add(time.Hour)
	require.NoError(t, store.Save(second))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "def5678", got.Version)
}

func TestSaveIsAtomic(t *testing.T) {
	store, path, source := newTestStore(t)
	want := testRecord(source)
	require.NoError(t, store.Save(want))

	// Simulate a crash between temp-write and rename: a leftover,
	// half-written temp file must not disturb what Load returns.
	require.NoError(t, os.WriteFile(path+".tmp", []byte("source_root = \"/half/writ"), 0644))

	got, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, want.Equal(*got))
}

func TestLoadCorruptRecord(t *testing.T) {
	store, path, _ := newTestStore(t)
	require.NoError(t, os.WriteFile(path, []byte("not toml {{{"), 0644))

	_, err := store.Load()
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrPersistence))
}

func TestDeleteIdempotent(t *testing.T) {
	store, _, source := newTestStore(t)

	// Deleting an absent record is not an error.
	require.NoError(t, store.Delete())

	require.NoError(t, store.Save(testRecord(source)))
	require.NoError(t, store.Delete())
	require.NoError(t, store.Delete())

	record, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestRecordIsHumanEditable(t *testing.T) {
	store, path, source := newTestStore(t)
	require.NoError(t, store.Save(testRecord(source)))

	// The record is deliberately a plain TOML file so a user can
	// repair it by hand.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "source_root")
	assert.Contains(t, string(data), "mode = 'reference'")
}
