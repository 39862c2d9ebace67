// Package backup captures foreign content found at target paths before
// a destructive placement, and restores the most recent snapshot on
// request. Snapshots are never created speculatively and never deleted
// by this package: they are the recovery mechanism for later runs.
package backup

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pelletier/go-toml/v2"

	kerrors "github.com/kitup-dev/kitup/pkg/errors"
	"github.com/kitup-dev/kitup/pkg/logging"
	"github.com/kitup-dev/kitup/pkg/placement"
	"github.com/kitup-dev/kitup/pkg/types"
)

// snapshotIDFormat names snapshot directories from their creation
// time. Fixed width, so lexicographic order is creation order and
// "most recent" needs no auxiliary metadata.
const snapshotIDFormat = "20060102-150405.000000000"

// manifestName is the per-snapshot manifest file
const manifestName = "manifest.toml"

// Entry records one captured resource inside a snapshot
type Entry struct {
	Name   string             `toml:"name"`
	Target string             `toml:"target"`
	Kind   types.ResourceKind `toml:"kind"`
}

// Snapshot describes one backup: where it lives and what it captured.
type Snapshot struct {
	ID        string    `toml:"-"`
	Dir       string    `toml:"-"`
	Version   int       `toml:"version"`
	CreatedAt time.Time `toml:"created_at"`
	Entries   []Entry   `toml:"entries"`
}

// Manager captures and restores foreign target content.
type Manager struct {
	fs         types.FS
	backupsDir string
	sourceRoot string
}

// New creates a Manager. sourceRoot is the currently configured bundle
// source; targets linking into it count as managed, everything else
// that exists is foreign.
func New(fsys types.FS, backupsDir, sourceRoot string) *Manager {
	return &Manager{fs: fsys, backupsDir: backupsDir, sourceRoot: sourceRoot}
}

// CaptureForeign snapshots every descriptor whose target exists and is
// not a placement artifact of this system. prior is the installation
// record of the last successful run, or nil on a fresh machine: a
// materialized target counts as ours only when that record names the
// resource as placed from this source root. Returns (nil, nil) when nothing is foreign;
// no filesystem write happens in that case. Any I/O failure aborts the
// whole capture so the caller never proceeds to destructive work on a
// partial backup.
func (m *Manager) CaptureForeign(descriptors []types.ResourceDescriptor, prior *types.InstallationRecord) (*Snapshot, error) {
	logger := logging.GetLogger("backup")

	var foreign []types.ResourceDescriptor
	for _, d := range descriptors {
		isForeign, err := m.isForeign(d, prior)
		if err != nil {
			return nil, err
		}
		if isForeign {
			foreign = append(foreign, d)
		}
	}
	if len(foreign) == 0 {
		logger.Debug().Msg("No foreign content at any target, skipping backup")
		return nil, nil
	}

	now := time.Now().UTC()
	snapshot := &Snapshot{
		ID:        now.Format(snapshotIDFormat),
		Version:   1,
		CreatedAt: now,
	}
	snapshot.Dir = filepath.Join(m.backupsDir, snapshot.ID)

	if err := m.fs.MkdirAll(snapshot.Dir, 0755); err != nil {
		return nil, kerrors.Wrapf(err, kerrors.ErrBackup, "failed to create backup directory")
	}

	for _, d := range foreign {
		if err := m.copyAny(d.TargetPath, filepath.Join(snapshot.Dir, d.Name)); err != nil {
			return nil, kerrors.Wrapf(err, kerrors.ErrBackup, "failed to capture %s", d.TargetPath)
		}
		snapshot.Entries = append(snapshot.Entries, Entry{
			Name:   d.Name,
			Target: d.TargetPath,
			Kind:   d.Kind,
		})
		logger.Info().Str("resource", d.Name).Str("target", d.TargetPath).Msg("Captured foreign content")
	}

	if err := m.writeManifest(snapshot); err != nil {
		return nil, err
	}

	return snapshot, nil
}

// RestoreLatest copies the most recent snapshot's captured resources
// back to their original target paths, overwriting whatever is there.
// The snapshot itself is kept, so restore is repeatable. Returns
// (nil, nil) when no snapshot exists.
func (m *Manager) RestoreLatest() (*Snapshot, error) {
	logger := logging.GetLogger("backup")

	snapshot, err := m.Latest()
	if err != nil || snapshot == nil {
		return nil, err
	}

	for _, entry := range snapshot.Entries {
		captured := filepath.Join(snapshot.Dir, entry.Name)

		if err := m.removeTarget(entry.Target); err != nil {
			return nil, err
		}
		if err := m.fs.MkdirAll(filepath.Dir(entry.Target), 0755); err != nil {
			return nil, kerrors.Wrapf(err, kerrors.ErrBackup, "failed to create parent of %s", entry.Target)
		}
		if err := m.copyAny(captured, entry.Target); err != nil {
			return nil, kerrors.Wrapf(err, kerrors.ErrBackup, "failed to restore %s", entry.Target)
		}
		logger.Info().Str("resource", entry.Name).Str("target", entry.Target).Msg("Restored foreign content")
	}

	return snapshot, nil
}

// Latest returns the most recent snapshot without restoring it, or
// (nil, nil) when none exists.
func (m *Manager) Latest() (*Snapshot, error) {
	entries, err := m.fs.ReadDir(m.backupsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, kerrors.Wrapf(err, kerrors.ErrBackup, "failed to read backups directory")
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			ids = append(ids, entry.Name())
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	sort.Strings(ids)
	id := ids[len(ids)-1]

	return m.readSnapshot(id)
}

func (m *Manager) readSnapshot(id string) (*Snapshot, error) {
	dir := filepath.Join(m.backupsDir, id)
	data, err := m.fs.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		return nil, kerrors.Wrapf(err, kerrors.ErrBackup, "snapshot %s has no readable manifest", id)
	}

	var snapshot Snapshot
	if err := toml.Unmarshal(data, &snapshot); err != nil {
		return nil, kerrors.Wrapf(err, kerrors.ErrBackup, "snapshot %s manifest is corrupt", id)
	}
	snapshot.ID = id
	snapshot.Dir = dir
	return &snapshot, nil
}

func (m *Manager) writeManifest(snapshot *Snapshot) error {
	data, err := toml.Marshal(snapshot)
	if err != nil {
		return kerrors.Wrapf(err, kerrors.ErrBackup, "failed to encode snapshot manifest")
	}
	if err := m.fs.WriteFile(filepath.Join(snapshot.Dir, manifestName), data, 0644); err != nil {
		return kerrors.Wrapf(err, kerrors.ErrBackup, "failed to write snapshot manifest")
	}
	return nil
}

// isForeign reports whether a descriptor's target holds content not
// placed by this system. Reference placements identify themselves on
// disk (a link into the current source); materialized placements are
// indistinguishable from foreign files, so for those the last known
// installation record is the authority, and only for resources that
// run actually placed. A target whose name the record does not cover
// is foreign even under a matching record: it predates the resource.
// An Lstat failure other than not-exist aborts the capture, since an
// uninspectable target cannot be declared safe to overwrite.
func (m *Manager) isForeign(d types.ResourceDescriptor, prior *types.InstallationRecord) (bool, error) {
	if _, err := m.fs.Lstat(d.TargetPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, kerrors.Wrapf(err, kerrors.ErrBackup, "failed to inspect %s", d.TargetPath)
	}
	if placement.IsManagedTarget(m.fs, d.TargetPath, m.sourceRoot) {
		return false, nil
	}
	if prior != nil && prior.SourceRoot == m.sourceRoot && prior.Covers(d.Name) &&
		d.EffectiveMode(prior.Mode) == types.PlacementMaterialize {
		return false, nil
	}
	return true, nil
}

// removeTarget clears a target before restore, unlinking symlinks
// rather than deleting through them.
func (m *Manager) removeTarget(targetPath string) error {
	info, err := m.fs.Lstat(targetPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return kerrors.Wrapf(err, kerrors.ErrBackup, "failed to inspect %s", targetPath)
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		return m.fs.Remove(targetPath)
	}
	return m.fs.RemoveAll(targetPath)
}

// copyAny copies a file, directory, or symlink verbatim.
func (m *Manager) copyAny(source, target string) error {
	info, err := m.fs.Lstat(source)
	if err != nil {
		return err
	}

	if info.Mode()&fs.ModeSymlink != 0 {
		dest, err := m.fs.Readlink(source)
		if err != nil {
			return err
		}
		return m.fs.Symlink(dest, target)
	}

	if info.IsDir() {
		return m.copyDir(source, target)
	}
	return m.copyFile(source, target, info.Mode().Perm())
}

func (m *Manager) copyDir(source, target string) error {
	if err := m.fs.MkdirAll(target, 0755); err != nil {
		return err
	}
	entries, err := m.fs.ReadDir(source)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		src := filepath.Join(source, entry.Name())
		dst := filepath.Join(target, entry.Name())
		if err := m.copyAny(src, dst); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) copyFile(source, target string, perm fs.FileMode) error {
	data, err := m.fs.ReadFile(source)
	if err != nil {
		return err
	}
	return m.fs.WriteFile(target, data, perm)
}
