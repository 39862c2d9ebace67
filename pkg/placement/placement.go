// Package placement applies and removes resource placements. Two
// policies exist: materialize (independent copy at the target) and
// reference (symlink from target to source). Removal of a previous
// placement always happens before the new placement is applied, so
// stale and fresh content never coexist under one target path.
package placement

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	kerrors "github.com/kitup-dev/kitup/pkg/errors"
	"github.com/kitup-dev/kitup/pkg/logging"
	"github.com/kitup-dev/kitup/pkg/types"
)

// Strategy places and removes resources on a types.FS.
type Strategy struct {
	fs types.FS

	// ignore holds globs matched against paths relative to a resource
	// root during materialize-mode copies.
	ignore []string
}

// New creates a Strategy. The ignore globs filter files out of
// materialized copies; reference placements are whole-tree by nature.
func New(fsys types.FS, ignore []string) *Strategy {
	return &Strategy{fs: fsys, ignore: ignore}
}

// Apply places one resource at its target in the given mode. Any
// existing target is removed first.
func (s *Strategy) Apply(descriptor types.ResourceDescriptor, mode types.PlacementMode) error {
	logger := logging.GetLogger("placement")

	if err := s.Remove(descriptor); err != nil {
		return err
	}

	if err := s.fs.MkdirAll(filepath.Dir(descriptor.TargetPath), 0755); err != nil {
		return kerrors.Wrapf(err, kerrors.ErrPlacement, "failed to create parent of %s", descriptor.TargetPath)
	}

	switch mode {
	case types.PlacementReference:
		if err := s.fs.Symlink(descriptor.SourcePath, descriptor.TargetPath); err != nil {
			return kerrors.Wrapf(err, kerrors.ErrPlacement, "failed to link %s", descriptor.TargetPath)
		}
	case types.PlacementMaterialize:
		if err := s.copyResource(descriptor); err != nil {
			return err
		}
	default:
		return kerrors.Newf(kerrors.ErrInvalidInput, "unknown placement mode %q", mode)
	}

	logger.Debug().
		Str("resource", descriptor.Name).
		Str("mode", string(mode)).
		Str("target", descriptor.TargetPath).
		Msg("Resource placed")
	return nil
}

// Remove deletes the target of a resource regardless of which mode
// created it, without ever touching the source. A symlink target is
// unlinked rather than deleted through, so a reference placement can
// never destroy source content.
func (s *Strategy) Remove(descriptor types.ResourceDescriptor) error {
	info, err := s.fs.Lstat(descriptor.TargetPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return kerrors.Wrapf(err, kerrors.ErrPlacement, "failed to inspect %s", descriptor.TargetPath)
	}

	if info.Mode()&fs.ModeSymlink != 0 {
		if err := s.fs.Remove(descriptor.TargetPath); err != nil {
			return kerrors.Wrapf(err, kerrors.ErrPlacement, "failed to unlink %s", descriptor.TargetPath)
		}
		return nil
	}

	if err := s.fs.RemoveAll(descriptor.TargetPath); err != nil {
		return kerrors.Wrapf(err, kerrors.ErrPlacement, "failed to remove %s", descriptor.TargetPath)
	}
	return nil
}

// IsManagedTarget reports whether the target of a descriptor is a
// placement artifact of this system: a symlink resolving into the
// given source root. Anything else that exists at the target is
// foreign. A symlink into a *previous* source root does not count as
// managed, so stale links left by a moved source get backed up rather
// than silently destroyed.
func IsManagedTarget(fsys types.FS, targetPath, sourceRoot string) bool {
	info, err := fsys.Lstat(targetPath)
	if err != nil || info.Mode()&fs.ModeSymlink == 0 {
		return false
	}

	dest, err := fsys.Readlink(targetPath)
	if err != nil {
		return false
	}
	if !filepath.IsAbs(dest) {
		dest = filepath.Join(filepath.Dir(targetPath), dest)
	}
	dest = filepath.Clean(dest)

	rel, err := filepath.Rel(sourceRoot, dest)
	if err != nil {
		return false
	}
	return !strings.HasPrefix(rel, "..")
}

// copyResource materializes a file or directory resource at its target.
func (s *Strategy) copyResource(descriptor types.ResourceDescriptor) error {
	switch descriptor.Kind {
	case types.ResourceFile:
		return s.copyFile(descriptor.SourcePath, descriptor.TargetPath)
	case types.ResourceDirectory:
		return s.copyTree(descriptor.SourcePath, descriptor.TargetPath, "")
	}
	return kerrors.Newf(kerrors.ErrInvalidInput, "unknown resource kind %q", descriptor.Kind)
}

func (s *Strategy) copyFile(source, target string) error {
	data, err := s.fs.ReadFile(source)
	if err != nil {
		return kerrors.Wrapf(err, kerrors.ErrPlacement, "failed to read %s", source)
	}

	perm := fs.FileMode(0644)
	if info, err := s.fs.Stat(source); err == nil {
		perm = info.Mode().Perm()
	}

	if err := s.fs.WriteFile(target, data, perm); err != nil {
		return kerrors.Wrapf(err, kerrors.ErrPlacement, "failed to write %s", target)
	}
	return nil
}

// copyTree copies a directory recursively. rel tracks the path inside
// the resource for ignore-glob matching.
func (s *Strategy) copyTree(source, target, rel string) error {
	if err := s.fs.MkdirAll(target, 0755); err != nil {
		return kerrors.Wrapf(err, kerrors.ErrPlacement, "failed to create %s", target)
	}

	entries, err := s.fs.ReadDir(source)
	if err != nil {
		return kerrors.Wrapf(err, kerrors.ErrPlacement, "failed to read %s", source)
	}

	for _, entry := range entries {
		entryRel := filepath.Join(rel, entry.Name())
		if s.ignored(entryRel) {
			continue
		}

		src := filepath.Join(source, entry.Name())
		dst := filepath.Join(target, entry.Name())

		if entry.IsDir() {
			if err := s.copyTree(src, dst, entryRel); err != nil {
				return err
			}
			continue
		}
		if err := s.copyFile(src, dst); err != nil {
			return err
		}
	}
	return nil
}

func (s *Strategy) ignored(rel string) bool {
	for _, g := range s.ignore {
		if ok, err := doublestar.Match(g, filepath.ToSlash(rel)); err == nil && ok {
			return true
		}
	}
	return false
}
