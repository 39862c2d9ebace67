package source

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerrors "github.com/kitup-dev/kitup/pkg/errors"
	"github.com/kitup-dev/kitup/pkg/filesystem"
	"github.com/kitup-dev/kitup/pkg/types"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

func gitRun(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
	)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
}

// newRepoPair returns an upstream repo and a clone of it.
func newRepoPair(t *testing.T) (upstream, clone string) {
	t.Helper()
	requireGit(t)

	upstream = t.TempDir()
	gitRun(t, upstream, "init", "-b", "main")
	gitRun(t, upstream, "config", "user.email", "test@example.com")
	gitRun(t, upstream, "config", "user.name", "test")
	require.NoError(t, os.WriteFile(filepath.Join(upstream, "CLAUDE.md"), []byte("v1"), 0644))
	gitRun(t, upstream, "add", "-A")
	gitRun(t, upstream, "commit", "-m", "initial")

	parent := t.TempDir()
	clone = filepath.Join(parent, "clone")
	gitRun(t, parent, "clone", upstream, clone)
	gitRun(t, clone, "config", "user.email", "test@example.com")
	gitRun(t, clone, "config", "user.name", "test")
	return upstream, clone
}

func TestIsRepo(t *testing.T) {
	requireGit(t)
	_, clone := newRepoPair(t)
	assert.True(t, NewGit(clone).IsRepo())
	assert.False(t, NewGit(t.TempDir()).IsRepo())
}

func TestHasLocalChanges(t *testing.T) {
	_, clone := newRepoPair(t)
	g := NewGit(clone)

	dirty, err := g.HasLocalChanges()
	require.NoError(t, err)
	assert.False(t, dirty)

	require.NoError(t, os.WriteFile(filepath.Join(clone, "CLAUDE.md"), []byte("edited"), 0644))
	dirty, err = g.HasLocalChanges()
	require.NoError(t, err)
	assert.True(t, dirty)
}

func TestPullFastForward(t *testing.T) {
	upstream, clone := newRepoPair(t)
	g := NewGit(clone)

	require.NoError(t, os.WriteFile(filepath.Join(upstream, "CLAUDE.md"), []byte("v2"), 0644))
	gitRun(t, upstream, "add", "-A")
	gitRun(t, upstream, "commit", "-m", "v2")

	before, err := g.Head()
	require.NoError(t, err)

	require.NoError(t, g.Pull(types.AbortOnChanges))

	after, err := g.Head()
	require.NoError(t, err)
	assert.NotEqual(t, before, after)

	data, err := os.ReadFile(filepath.Join(clone, "CLAUDE.md"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestPullAbortsOnDirtyTree(t *testing.T) {
	_, clone := newRepoPair(t)
	g := NewGit(clone)
	require.NoError(t, os.WriteFile(filepath.Join(clone, "CLAUDE.md"), []byte("local edit"), 0644))

	err := g.Pull(types.AbortOnChanges)
	require.Error(t, err)
	assert.True(t, kerrors.IsErrorCode(err, kerrors.ErrUserAborted))

	// The edit is untouched.
	data, err := os.ReadFile(filepath.Join(clone, "CLAUDE.md"))
	require.NoError(t, err)
	assert.Equal(t, "local edit", string(data))
}

func TestPullCommitsLocalChanges(t *testing.T) {
	_, clone := newRepoPair(t)
	g := NewGit(clone)
	require.NoError(t, os.WriteFile(filepath.Join(clone, "CLAUDE.md"), []byte("local edit"), 0644))

	require.NoError(t, g.Pull(types.CommitAndContinue))

	dirty, err := g.HasLocalChanges()
	require.NoError(t, err)
	assert.False(t, dirty)

	// The edit survived, now as a commit.
	data, err := os.ReadFile(filepath.Join(clone, "CLAUDE.md"))
	require.NoError(t, err)
	assert.Equal(t, "local edit", string(data))
}

func TestPullStashesLocalChanges(t *testing.T) {
	_, clone := newRepoPair(t)
	g := NewGit(clone)
	require.NoError(t, os.WriteFile(filepath.Join(clone, "CLAUDE.md"), []byte("local edit"), 0644))

	require.NoError(t, g.Pull(types.StashAndContinue))

	// Tree is clean, the edit is set aside in the stash.
	dirty, err := g.HasLocalChanges()
	require.NoError(t, err)
	assert.False(t, dirty)

	data, err := os.ReadFile(filepath.Join(clone, "CLAUDE.md"))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))
}

func TestHashResourceFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "CLAUDE.md")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0644))

	d := types.ResourceDescriptor{Name: "CLAUDE.md", SourcePath: path, Kind: types.ResourceFile}
	fsys := filesystem.NewOS()

	first, err := HashResource(fsys, d)
	require.NoError(t, err)

	second, err := HashResource(fsys, d)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	require.NoError(t, os.WriteFile(path, []byte("different"), 0644))
	third, err := HashResource(fsys, d)
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}

func TestHashResourceDirectory(t *testing.T) {
	dir := t.TempDir()
	skills := filepath.Join(dir, "skills")
	require.NoError(t, os.MkdirAll(filepath.Join(skills, "review"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(skills, "review", "SKILL.md"), []byte("r"), 0644))

	d := types.ResourceDescriptor{Name: "skills", SourcePath: skills, Kind: types.ResourceDirectory}
	fsys := filesystem.NewOS()

	first, err := HashResource(fsys, d)
	require.NoError(t, err)

	// Renaming a file changes the hash even with identical bytes.
	require.NoError(t, os.Rename(
		filepath.Join(skills, "review", "SKILL.md"),
		filepath.Join(skills, "review", "OTHER.md")))
	second, err := HashResource(fsys, d)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestContentVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "CLAUDE.md")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0644))
	descriptors := []types.ResourceDescriptor{
		{Name: "CLAUDE.md", SourcePath: path, Kind: types.ResourceFile},
	}
	fsys := filesystem.NewOS()

	v1, err := ContentVersion(fsys, descriptors)
	require.NoError(t, err)
	assert.Len(t, v1, 12)

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0644))
	v2, err := ContentVersion(fsys, descriptors)
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2)
}
