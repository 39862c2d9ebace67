// Package install orchestrates a fresh or repeated installation:
// validate preconditions, back up foreign content, apply placement for
// every declared resource, persist state, verify post-conditions. Any
// failure after the backup stage rolls back the just-written record
// and leaves the snapshot in place as the recovery mechanism for the
// next attempt.
package install

import (
	"time"

	"github.com/kitup-dev/kitup/pkg/backup"
	"github.com/kitup-dev/kitup/pkg/commands/internal"
	kerrors "github.com/kitup-dev/kitup/pkg/errors"
	"github.com/kitup-dev/kitup/pkg/logging"
	"github.com/kitup-dev/kitup/pkg/source"
	"github.com/kitup-dev/kitup/pkg/types"
	"github.com/kitup-dev/kitup/pkg/verify"
)

// Options defines the options for the Install command.
type Options struct {
	// SourceRoot is the bundle source directory. Empty means resolve
	// from environment / git discovery.
	SourceRoot string

	// Mode is the global placement mode. Defaults to reference.
	Mode types.PlacementMode

	// FS overrides the filesystem, for tests. Nil means the OS.
	FS types.FS
}

// Result reports what an installation did.
type Result struct {
	Record    types.InstallationRecord
	Reinstall bool

	// Snapshot is non-nil when foreign content was captured.
	Snapshot *backup.Snapshot

	// Violations holds post-condition warnings. The install itself
	// succeeded; these are surfaced, not fatal.
	Violations []types.Violation
}

// Install runs the installation pipeline. A pre-existing installation
// is treated as a reinstall and goes through the same sequence, so
// installs are idempotent and safely repeatable with a different mode.
func Install(opts Options) (*Result, error) {
	logger := logging.GetLogger("commands.install")
	done := logging.LogOperationStart(logger, "install")
	defer done()

	mode := opts.Mode
	if mode == "" {
		mode = types.PlacementReference
	}

	env, err := internal.BuildEnv(opts.SourceRoot, opts.FS)
	if err != nil {
		return nil, kerrors.Wrap(err, kerrors.ErrPrecondition, "install preconditions failed")
	}

	prior, err := env.Store.Load()
	if err != nil {
		return nil, kerrors.Wrap(err, kerrors.ErrPrecondition, "existing installation record is unreadable")
	}

	// Backup gates all destructive work: if capture fails, nothing has
	// been touched yet and the operation stops here.
	snapshot, err := env.Backups.CaptureForeign(env.Descriptors, prior)
	if err != nil {
		return nil, err
	}

	result := &Result{Reinstall: prior != nil, Snapshot: snapshot}

	if err := placeAll(env, mode); err != nil {
		rollback(env, prior)
		return nil, internal.FailWithBackup(err, kerrors.ErrPlacement, "install failed while placing resources", snapshot)
	}

	record, err := buildRecord(env, mode, prior)
	if err != nil {
		rollback(env, prior)
		return nil, err
	}
	if err := env.Store.Save(record); err != nil {
		rollback(env, prior)
		return nil, internal.FailWithBackup(err, kerrors.ErrPersistence, "install failed while persisting state", snapshot)
	}
	result.Record = record

	result.Violations = verify.Check(env.FS, env.Store, record, env.Descriptors)
	if verr := verify.AsError(result.Violations); verr != nil {
		logger.Warn().Err(verr).Msg("Install verification reported violations")
	}

	logger.Info().
		Str("source", record.SourceRoot).
		Str("version", record.Version).
		Str("mode", string(mode)).
		Bool("reinstall", result.Reinstall).
		Msg("Install complete")
	return result, nil
}

func placeAll(env *internal.Env, mode types.PlacementMode) error {
	for _, d := range env.Descriptors {
		if err := env.Strategy.Apply(d, d.EffectiveMode(mode)); err != nil {
			return err
		}
	}
	return nil
}

func buildRecord(env *internal.Env, mode types.PlacementMode, prior *types.InstallationRecord) (types.InstallationRecord, error) {
	version, err := deriveVersion(env)
	if err != nil {
		return types.InstallationRecord{}, err
	}

	now := time.Now().UTC()
	record := types.InstallationRecord{
		SourceRoot:  env.Paths.SourceRoot(),
		Version:     version,
		Mode:        mode,
		Resources:   types.ResourceNames(env.Descriptors),
		InstalledAt: now,
		UpdatedAt:   now,
	}
	if prior != nil {
		record.InstalledAt = prior.InstalledAt
	}
	return record, nil
}

// deriveVersion tags the installed content: the git head for a
// repository source, a content hash otherwise.
func deriveVersion(env *internal.Env) (string, error) {
	git := source.NewGit(env.Paths.SourceRoot())
	if git.IsRepo() {
		if head, err := git.Head(); err == nil {
			return head, nil
		}
	}
	return source.ContentVersion(env.FS, env.Descriptors)
}

// rollback undoes state persistence only: a record written by this
// attempt is removed so "record exists" keeps meaning "installed",
// while a record from a previous successful install stays. Snapshots
// are deliberately kept — they are the recovery mechanism for the next
// attempt, not this one.
func rollback(env *internal.Env, prior *types.InstallationRecord) {
	log := logging.GetLogger("commands.install")
	if prior != nil {
		if err := env.Store.Save(*prior); err != nil {
			log.Error().Err(err).Msg("Rollback could not restore previous installation record")
		}
		return
	}
	if err := env.Store.Delete(); err != nil {
		log.Error().Err(err).Msg("Rollback could not remove installation record")
	}
}
