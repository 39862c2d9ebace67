// Package uninstall orchestrates removal of an installation: every
// currently declared resource's target is removed, the most recent
// backup snapshot is optionally restored, the bundle source is
// optionally purged, and the installation record is deleted last.
package uninstall

import (
	"github.com/hashicorp/go-multierror"

	"github.com/kitup-dev/kitup/pkg/backup"
	"github.com/kitup-dev/kitup/pkg/commands/internal"
	kerrors "github.com/kitup-dev/kitup/pkg/errors"
	"github.com/kitup-dev/kitup/pkg/logging"
	"github.com/kitup-dev/kitup/pkg/types"
)

// Options defines the options for the Uninstall command.
type Options struct {
	// SourceRoot overrides the bundle source directory. Empty means
	// resolve from environment / git discovery.
	SourceRoot string

	// Restore replays the most recent backup snapshot after removal,
	// bringing back foreign content captured at install time.
	Restore bool

	// PurgeSource deletes the bundle source directory itself. This is
	// irreversible and gated separately from everything else.
	PurgeSource bool

	// FS overrides the filesystem, for tests. Nil means the OS.
	FS types.FS
}

// Result reports what an uninstall did.
type Result struct {
	Removed []string

	// Restored is non-nil when a snapshot was restored.
	Restored *backup.Snapshot

	SourcePurged bool
}

// Uninstall runs the removal pipeline. It refuses to run without an
// existing installation record.
func Uninstall(opts Options) (*Result, error) {
	logger := logging.GetLogger("commands.uninstall")
	done := logging.LogOperationStart(logger, "uninstall")
	defer done()

	env, err := internal.BuildEnv(opts.SourceRoot, opts.FS)
	if err != nil {
		return nil, kerrors.Wrap(err, kerrors.ErrPrecondition, "uninstall preconditions failed")
	}

	record, err := env.Store.Load()
	if err != nil {
		return nil, kerrors.Wrap(err, kerrors.ErrPrecondition, "installation record is unreadable")
	}
	if record == nil {
		return nil, kerrors.New(kerrors.ErrNotInstalled, "nothing to uninstall: kitup is not installed")
	}

	result := &Result{}

	var removal *multierror.Error
	for _, d := range env.Descriptors {
		if err := env.Strategy.Remove(d); err != nil {
			removal = multierror.Append(removal, err)
			continue
		}
		result.Removed = append(result.Removed, d.Name)
	}
	if err := removal.ErrorOrNil(); err != nil {
		// State stays on disk: the installation is still (partially)
		// present and a rerun can finish the job.
		return nil, kerrors.Wrap(err, kerrors.ErrPlacement, "uninstall failed while removing targets")
	}

	if opts.Restore {
		snapshot, err := env.Backups.RestoreLatest()
		if err != nil {
			return nil, err
		}
		if snapshot == nil {
			logger.Info().Msg("No backup snapshot available to restore")
		}
		result.Restored = snapshot
	}

	if opts.PurgeSource {
		if err := env.FS.RemoveAll(env.Paths.SourceRoot()); err != nil {
			return nil, kerrors.Wrapf(err, kerrors.ErrPlacement, "failed to purge bundle source %s", env.Paths.SourceRoot())
		}
		result.SourcePurged = true
		logger.Info().Str("source", env.Paths.SourceRoot()).Msg("Bundle source purged")
	}

	// Unconditionally last on success: after this, kitup considers
	// itself not installed.
	if err := env.Store.Delete(); err != nil {
		return nil, err
	}

	logger.Info().Int("removed", len(result.Removed)).Msg("Uninstall complete")
	return result, nil
}
