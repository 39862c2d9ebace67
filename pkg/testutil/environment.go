// Package testutil orchestrates isolated test environments: a
// temporary home, target root, data directory, and bundle source, with
// the relevant environment variables pointed at them for the duration
// of the test.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kitup-dev/kitup/pkg/filesystem"
	"github.com/kitup-dev/kitup/pkg/paths"
	"github.com/kitup-dev/kitup/pkg/state"
	"github.com/kitup-dev/kitup/pkg/types"
)

// TestEnvironment provides a complete isolated environment for
// exercising the command pipelines against the real filesystem.
type TestEnvironment struct {
	HomeDir    string
	SourceRoot string
	TargetRoot string
	DataDir    string

	FS    types.FS
	Paths paths.Paths
	Store state.Store

	t *testing.T
}

// NewTestEnvironment creates an isolated environment rooted in temp
// directories and wires HOME and the kitup path overrides to it.
func NewTestEnvironment(t *testing.T) *TestEnvironment {
	t.Helper()

	env := &TestEnvironment{
		HomeDir:    t.TempDir(),
		SourceRoot: t.TempDir(),
		t:          t,
	}
	env.TargetRoot = filepath.Join(env.HomeDir, ".claude")
	env.DataDir = filepath.Join(env.HomeDir, ".local", "share", "kitup")

	t.Setenv("HOME", env.HomeDir)
	t.Setenv("XDG_DATA_HOME", filepath.Join(env.HomeDir, ".local", "share"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(env.HomeDir, ".local", "state"))
	t.Setenv(paths.EnvBundleRoot, env.SourceRoot)
	t.Setenv(paths.EnvTargetDir, env.TargetRoot)
	// adrg/xdg resolves its directories at process start, so the data
	// dir is pinned through kitup's own override rather than
	// XDG_DATA_HOME.
	t.Setenv(paths.EnvDataDir, env.DataDir)

	env.FS = filesystem.NewOS()

	p, err := paths.New(env.SourceRoot)
	if err != nil {
		t.Fatalf("Failed to create paths: %v", err)
	}
	env.Paths = p
	env.Store = state.New(env.FS, p.StateFilePath())

	return env
}

// WriteBundle populates the source with the given files, keyed by path
// relative to the source root.
func (e *TestEnvironment) WriteBundle(files map[string]string) {
	e.t.Helper()
	for rel, content := range files {
		e.WriteSourceFile(rel, content)
	}
}

// WriteSourceFile writes one file into the bundle source.
func (e *TestEnvironment) WriteSourceFile(rel, content string) {
	e.t.Helper()
	full := filepath.Join(e.SourceRoot, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		e.t.Fatalf("Failed to create %s: %v", filepath.Dir(full), err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		e.t.Fatalf("Failed to write %s: %v", full, err)
	}
}

// WriteTargetFile plants foreign content at a target path.
func (e *TestEnvironment) WriteTargetFile(rel, content string) {
	e.t.Helper()
	full := filepath.Join(e.TargetRoot, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		e.t.Fatalf("Failed to create %s: %v", filepath.Dir(full), err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		e.t.Fatalf("Failed to write %s: %v", full, err)
	}
}

// TargetPath resolves a path under the target root.
func (e *TestEnvironment) TargetPath(rel string) string {
	return filepath.Join(e.TargetRoot, rel)
}

// ReadTarget returns the content of a target file, following links.
func (e *TestEnvironment) ReadTarget(rel string) string {
	e.t.Helper()
	data, err := os.ReadFile(e.TargetPath(rel))
	if err != nil {
		e.t.Fatalf("Failed to read target %s: %v", rel, err)
	}
	return string(data)
}

// TargetIsSymlink reports whether the target path is a symlink.
func (e *TestEnvironment) TargetIsSymlink(rel string) bool {
	e.t.Helper()
	info, err := os.Lstat(e.TargetPath(rel))
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeSymlink != 0
}
