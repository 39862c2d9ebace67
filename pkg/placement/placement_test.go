package placement

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitup-dev/kitup/pkg/filesystem"
	"github.com/kitup-dev/kitup/pkg/types"
)

func fileDescriptor(t *testing.T, content string) (types.ResourceDescriptor, string) {
	t.Helper()
	source := t.TempDir()
	target := t.TempDir()
	sourcePath := filepath.Join(source, "CLAUDE.md")
	require.NoError(t, os.WriteFile(sourcePath, []byte(content), 0644))

	return types.ResourceDescriptor{
		Name:       "CLAUDE.md",
		SourcePath: sourcePath,
		TargetPath: filepath.Join(target, "CLAUDE.md"),
		Kind:       types.ResourceFile,
	}, source
}

func dirDescriptor(t *testing.T, files map[string]string) (types.ResourceDescriptor, string) {
	t.Helper()
	source := t.TempDir()
	target := t.TempDir()
	for rel, content := range files {
		full := filepath.Join(source, "skills", rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}

	return types.ResourceDescriptor{
		Name:       "skills",
		SourcePath: filepath.Join(source, "skills"),
		TargetPath: filepath.Join(target, "skills"),
		Kind:       types.ResourceDirectory,
	}, source
}

func TestApplyReferenceFile(t *testing.T) {
	descriptor, _ := fileDescriptor(t, "instructions")
	strategy := New(filesystem.NewOS(), nil)

	require.NoError(t, strategy.Apply(descriptor, types.PlacementReference))

	dest, err := os.Readlink(descriptor.TargetPath)
	require.NoError(t, err)
	assert.Equal(t, descriptor.SourcePath, dest)

	// A reference placement reflects later source edits immediately.
	require.NoError(t, os.WriteFile(descriptor.SourcePath, []byte("edited"), 0644))
	data, err := os.ReadFile(descriptor.TargetPath)
	require.NoError(t, err)
	assert.Equal(t, "edited", string(data))
}

func TestApplyMaterializeFile(t *testing.T) {
	descriptor, _ := fileDescriptor(t, "instructions")
	strategy := New(filesystem.NewOS(), nil)

	require.NoError(t, strategy.Apply(descriptor, types.PlacementMaterialize))

	info, err := os.Lstat(descriptor.TargetPath)
	require.NoError(t, err)
	assert.Zero(t, info.Mode()&os.ModeSymlink, "materialized target must not be a link")

	// Target edits never propagate back to the source.
	require.NoError(t, os.WriteFile(descriptor.TargetPath, []byte("local edit"), 0644))
	data, err := os.ReadFile(descriptor.SourcePath)
	require.NoError(t, err)
	assert.Equal(t, "instructions", string(data))
}

func TestApplyMaterializeDirectory(t *testing.T) {
	descriptor, _ := dirDescriptor(t, map[string]string{
		"review/SKILL.md":   "review",
		"planning/SKILL.md": "planning",
	})
	strategy := New(filesystem.NewOS(), nil)

	require.NoError(t, strategy.Apply(descriptor, types.PlacementMaterialize))

	data, err := os.ReadFile(filepath.Join(descriptor.TargetPath, "review", "SKILL.md"))
	require.NoError(t, err)
	assert.Equal(t, "review", string(data))

	data, err = os.ReadFile(filepath.Join(descriptor.TargetPath, "planning", "SKILL.md"))
	require.NoError(t, err)
	assert.Equal(t, "planning", string(data))
}

func TestApplyMaterializeHonorsIgnoreGlobs(t *testing.T) {
	descriptor, _ := dirDescriptor(t, map[string]string{
		"review/SKILL.md":  "review",
		"review/notes.bak": "scratch",
	})
	strategy := New(filesystem.NewOS(), []string{"**/*.bak"})

	require.NoError(t, strategy.Apply(descriptor, types.PlacementMaterialize))

	_, err := os.Stat(filepath.Join(descriptor.TargetPath, "review", "SKILL.md"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(descriptor.TargetPath, "review", "notes.bak"))
	assert.True(t, os.IsNotExist(err))
}

func TestApplyReplacesExistingTarget(t *testing.T) {
	descriptor, _ := fileDescriptor(t, "fresh")
	strategy := New(filesystem.NewOS(), nil)

	require.NoError(t, os.WriteFile(descriptor.TargetPath, []byte("stale"), 0644))
	require.NoError(t, strategy.Apply(descriptor, types.PlacementMaterialize))

	data, err := os.ReadFile(descriptor.TargetPath)
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(data))
}

func TestApplySwitchesModes(t *testing.T) {
	descriptor, _ := fileDescriptor(t, "content")
	strategy := New(filesystem.NewOS(), nil)

	require.NoError(t, strategy.Apply(descriptor, types.PlacementReference))
	require.NoError(t, strategy.Apply(descriptor, types.PlacementMaterialize))

	info, err := os.Lstat(descriptor.TargetPath)
	require.NoError(t, err)
	assert.Zero(t, info.Mode()&os.ModeSymlink)
}

func TestRemoveReferenceNeverTouchesSource(t *testing.T) {
	descriptor, _ := dirDescriptor(t, map[string]string{"review/SKILL.md": "review"})
	strategy := New(filesystem.NewOS(), nil)

	require.NoError(t, strategy.Apply(descriptor, types.PlacementReference))
	require.NoError(t, strategy.Remove(descriptor))

	_, err := os.Lstat(descriptor.TargetPath)
	assert.True(t, os.IsNotExist(err))

	// Removing through the link must never delete the source tree.
	data, err := os.ReadFile(filepath.Join(descriptor.SourcePath, "review", "SKILL.md"))
	require.NoError(t, err)
	assert.Equal(t, "review", string(data))
}

func TestRemoveMaterializedDirectory(t *testing.T) {
	descriptor, _ := dirDescriptor(t, map[string]string{"review/SKILL.md": "review"})
	strategy := New(filesystem.NewOS(), nil)

	require.NoError(t, strategy.Apply(descriptor, types.PlacementMaterialize))
	require.NoError(t, strategy.Remove(descriptor))

	_, err := os.Lstat(descriptor.TargetPath)
	assert.True(t, os.IsNotExist(err))
}

func TestRemoveMissingTargetIsNil(t *testing.T) {
	descriptor, _ := fileDescriptor(t, "x")
	strategy := New(filesystem.NewOS(), nil)
	require.NoError(t, os.Remove(descriptor.SourcePath))

	assert.NoError(t, strategy.Remove(descriptor))
}

func TestIsManagedTarget(t *testing.T) {
	descriptor, sourceRoot := fileDescriptor(t, "doc")
	fsys := filesystem.NewOS()
	strategy := New(fsys, nil)

	require.NoError(t, strategy.Apply(descriptor, types.PlacementReference))
	assert.True(t, IsManagedTarget(fsys, descriptor.TargetPath, sourceRoot))

	// A link pointing somewhere else entirely is foreign.
	other := t.TempDir()
	assert.False(t, IsManagedTarget(fsys, descriptor.TargetPath, other))

	// Plain files and missing targets are never managed.
	require.NoError(t, strategy.Apply(descriptor, types.PlacementMaterialize))
	assert.False(t, IsManagedTarget(fsys, descriptor.TargetPath, sourceRoot))
	require.NoError(t, strategy.Remove(descriptor))
	assert.False(t, IsManagedTarget(fsys, descriptor.TargetPath, sourceRoot))
}

func TestIsManagedTargetStaleLinkToOldSource(t *testing.T) {
	// After the bundle source moves, a symlink into the old source is
	// foreign with respect to the new one and must be backed up rather
	// than treated as ours.
	oldSource := t.TempDir()
	newSource := t.TempDir()
	target := filepath.Join(t.TempDir(), "CLAUDE.md")

	oldDoc := filepath.Join(oldSource, "CLAUDE.md")
	require.NoError(t, os.WriteFile(oldDoc, []byte("old"), 0644))
	require.NoError(t, os.Symlink(oldDoc, target))

	fsys := filesystem.NewOS()
	assert.True(t, IsManagedTarget(fsys, target, oldSource))
	assert.False(t, IsManagedTarget(fsys, target, newSource))
}
