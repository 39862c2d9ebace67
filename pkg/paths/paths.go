// Package paths provides centralized path handling for kitup.
// It implements XDG Base Directory specification compliance and
// provides a consistent API for all path operations in the codebase.
package paths

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"

	"github.com/kitup-dev/kitup/pkg/errors"
)

// Environment variable names
const (
	// EnvBundleRoot is the primary environment variable for the bundle source location
	EnvBundleRoot = "KITUP_BUNDLE_ROOT"

	// EnvTargetDir overrides the deployment target root
	EnvTargetDir = "KITUP_TARGET_DIR"

	// EnvDataDir overrides the XDG data directory for kitup
	EnvDataDir = "KITUP_DATA_DIR"

	// EnvHome is the standard home directory variable
	EnvHome = "HOME"
)

// Default directories and files.
// IMPORTANT: These constants define kitup's on-disk layout and are NOT
// user-configurable. They must remain consistent across installations
// so install/update/uninstall always compute the same target set.
const (
	// KitupDirName is the directory name for kitup-specific files
	KitupDirName = "kitup"

	// TargetDirName is the deployment root under the user's home
	TargetDirName = ".claude"

	// StateFileName is the name of the installation record file
	StateFileName = "install.toml"

	// BackupsDir is the subdirectory for backup snapshots
	BackupsDir = "backups"

	// BundleConfigFile is the optional per-bundle configuration file
	BundleConfigFile = ".kitup.toml"

	// DocumentName is the default instruction document filename
	DocumentName = "CLAUDE.md"
)

// Paths provides centralized path management for kitup
type Paths interface {
	SourceRoot() string
	UsedFallback() bool
	TargetRoot() string
	TargetPath(resourceName string) string
	DataDir() string
	StateFilePath() string
	BackupsDir() string
	BundleConfigPath() string
	NormalizePath(path string) (string, error)
	IsInSource(path string) bool
}

type paths struct {
	sourceRoot string
	targetRoot string
	dataDir    string

	// usedFallback indicates if we fell back to cwd (for warning display)
	usedFallback bool
}

// New creates a new Paths instance with the given bundle source root.
// If sourceRoot is empty, it will be determined from environment
// variables, git repository discovery, or the working directory.
func New(sourceRoot string) (Paths, error) {
	p := &paths{}

	if sourceRoot == "" {
		root, usedFallback, err := findBundleRoot()
		if err != nil {
			return nil, err
		}
		p.sourceRoot = root
		p.usedFallback = usedFallback
	} else {
		p.sourceRoot = expandHome(sourceRoot)
	}

	absRoot, err := filepath.Abs(p.sourceRoot)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to get absolute path for bundle root")
	}
	p.sourceRoot = absRoot

	if err := p.setupDirs(); err != nil {
		return nil, err
	}

	return p, nil
}

// setupDirs initializes the target and data directories, respecting
// environment overrides
func (p *paths) setupDirs() error {
	if targetDir := os.Getenv(EnvTargetDir); targetDir != "" {
		p.targetRoot = expandHome(targetDir)
	} else {
		homeDir, err := GetHomeDirectory()
		if err != nil {
			return err
		}
		p.targetRoot = filepath.Join(homeDir, TargetDirName)
	}

	if dataDir := os.Getenv(EnvDataDir); dataDir != "" {
		p.dataDir = expandHome(dataDir)
	} else {
		p.dataDir = filepath.Join(xdg.DataHome, KitupDirName)
	}

	return nil
}

// findBundleRoot determines the bundle source root using the following
// priority:
// 1. KITUP_BUNDLE_ROOT environment variable (if set)
// 2. Git repository root (found via 'git rev-parse --show-toplevel')
// 3. Current working directory (fallback)
//
// The bool result reports whether the working directory was used as
// fallback, so callers can warn.
func findBundleRoot() (string, bool, error) {
	if root := os.Getenv(EnvBundleRoot); root != "" {
		return expandHome(root), false, nil
	}

	gitRoot, err := findGitRoot()
	if err == nil && gitRoot != "" {
		return gitRoot, false, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", false, errors.Wrapf(err, errors.ErrFileAccess, "failed to get current directory")
	}

	return cwd, true, nil
}

// findGitRoot attempts to find the root of the current git repository
func findGitRoot() (string, error) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	output, err := cmd.Output()
	if err != nil {
		// Git command failed - not in a git repo or git not installed
		return "", err
	}

	gitRoot := strings.TrimSpace(string(output))
	if gitRoot == "" {
		return "", errors.New(errors.ErrNotFound, "git root is empty")
	}

	return gitRoot, nil
}

// expandHome expands ~ to the home directory
func expandHome(path string) string {
	if path == "" {
		return path
	}

	if path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			homeDir = os.Getenv(EnvHome)
			if homeDir == "" {
				return path
			}
		}

		if len(path) == 1 {
			return homeDir
		}

		if path[1] == '/' || path[1] == filepath.Separator {
			return filepath.Join(homeDir, path[2:])
		}

		// ~something (not the user's home)
		return path
	}

	return path
}

// ExpandHome is the exported form of expandHome
func ExpandHome(path string) string {
	return expandHome(path)
}

// GetHomeDirectory returns the user's home directory with proper error handling
func GetHomeDirectory() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		if home := os.Getenv(EnvHome); home != "" {
			return home, nil
		}
		return "", errors.Wrapf(err, errors.ErrFileAccess, "failed to get home directory")
	}
	return homeDir, nil
}

// SourceRoot returns the bundle source directory
func (p *paths) SourceRoot() string {
	return p.sourceRoot
}

// UsedFallback returns true if the current working directory was used as fallback
func (p *paths) UsedFallback() bool {
	return p.usedFallback
}

// TargetRoot returns the deployment root under the user's home
func (p *paths) TargetRoot() string {
	return p.targetRoot
}

// TargetPath returns the deployment path for a named resource.
// Targets are always derived from the resource name, never supplied
// at runtime, so every operation computes the same target set.
func (p *paths) TargetPath(resourceName string) string {
	return filepath.Join(p.targetRoot, resourceName)
}

// DataDir returns the XDG data directory for kitup
func (p *paths) DataDir() string {
	return p.dataDir
}

// StateFilePath returns the location of the installation record
func (p *paths) StateFilePath() string {
	return filepath.Join(p.dataDir, StateFileName)
}

// BackupsDir returns the parent directory for backup snapshots
func (p *paths) BackupsDir() string {
	return filepath.Join(p.dataDir, BackupsDir)
}

// BundleConfigPath returns the path to the bundle's optional config file
func (p *paths) BundleConfigPath() string {
	return filepath.Join(p.sourceRoot, BundleConfigFile)
}

// NormalizePath normalizes a path by expanding home, making it
// absolute, and cleaning it
func (p *paths) NormalizePath(path string) (string, error) {
	if path == "" {
		return "", errors.New(errors.ErrInvalidInput, "empty path")
	}

	expanded := expandHome(path)

	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrFileAccess, "failed to get absolute path")
	}

	return filepath.Clean(abs), nil
}

// IsInSource checks if a path is within the bundle source root
func (p *paths) IsInSource(path string) bool {
	normalized, err := p.NormalizePath(path)
	if err != nil {
		return false
	}

	rel, err := filepath.Rel(p.sourceRoot, normalized)
	if err != nil {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
