// Package source refreshes the bundle source for updates and derives
// version tags and per-resource content hashes for change reports.
// Talking to git happens by exec'ing the git binary; the repository
// carries no git library dependency.
package source

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	kerrors "github.com/kitup-dev/kitup/pkg/errors"
	"github.com/kitup-dev/kitup/pkg/logging"
	"github.com/kitup-dev/kitup/pkg/types"
)

// Refresher pulls the latest bundle content into the source root.
type Refresher interface {
	// IsRepo reports whether the source root is a git repository.
	IsRepo() bool

	// HasLocalChanges reports uncommitted modifications in the source.
	HasLocalChanges() (bool, error)

	// Pull fetches the latest content. When the source has local
	// changes, policy decides their fate first; AbortOnChanges stops
	// the operation with a user-aborted error.
	Pull(policy types.LocalChangesPolicy) error

	// Head returns the current version tag of the source.
	Head() (string, error)
}

// Git implements Refresher against a git working tree.
type Git struct {
	root string
}

// NewGit creates a Refresher for the repository at root.
func NewGit(root string) *Git {
	return &Git{root: root}
}

func (g *Git) IsRepo() bool {
	info, err := os.Stat(filepath.Join(g.root, ".git"))
	return err == nil && info.IsDir()
}

func (g *Git) HasLocalChanges() (bool, error) {
	out, err := g.run("status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

func (g *Git) Pull(policy types.LocalChangesPolicy) error {
	logger := logging.GetLogger("source")

	dirty, err := g.HasLocalChanges()
	if err != nil {
		return err
	}

	if dirty {
		switch policy {
		case types.CommitAndContinue:
			if _, err := g.run("add", "-A"); err != nil {
				return err
			}
			if _, err := g.run("commit", "-m", "kitup: preserve local changes before update"); err != nil {
				return err
			}
			logger.Info().Msg("Committed local changes before pulling")
		case types.StashAndContinue:
			if _, err := g.run("stash", "push", "--include-untracked", "-m", "kitup: set aside before update"); err != nil {
				return err
			}
			logger.Info().Msg("Stashed local changes before pulling")
		case types.AbortOnChanges:
			return kerrors.New(kerrors.ErrUserAborted,
				"bundle source has local changes; update aborted at caller's request")
		default:
			return kerrors.Newf(kerrors.ErrDirtySource,
				"bundle source has local changes and no resolution was chosen")
		}
	}

	if _, err := g.run("pull", "--ff-only"); err != nil {
		return err
	}
	logger.Info().Str("root", g.root).Msg("Pulled latest bundle content")
	return nil
}

func (g *Git) Head() (string, error) {
	out, err := g.run("rev-parse", "--short", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// run executes git with the source root as working tree.
func (g *Git) run(args ...string) (string, error) {
	cmd := exec.Command("git", append([]string{"-C", g.root}, args...)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", kerrors.Wrapf(err, kerrors.ErrGitCommand,
			"git %s failed: %s", strings.Join(args, " "), strings.TrimSpace(string(out)))
	}
	return string(out), nil
}
