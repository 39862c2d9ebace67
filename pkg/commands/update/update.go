// Package update orchestrates refreshing an existing installation:
// confirm the installation record exists, pull the latest bundle
// content, resolve local source modifications per the caller's chosen
// policy, re-apply placement for every current resource, and report
// what changed.
package update

import (
	"sort"
	"time"

	"github.com/kitup-dev/kitup/pkg/backup"
	"github.com/kitup-dev/kitup/pkg/commands/internal"
	kerrors "github.com/kitup-dev/kitup/pkg/errors"
	"github.com/kitup-dev/kitup/pkg/logging"
	"github.com/kitup-dev/kitup/pkg/source"
	"github.com/kitup-dev/kitup/pkg/types"
	"github.com/kitup-dev/kitup/pkg/verify"
)

// Options defines the options for the Update command.
type Options struct {
	// SourceRoot overrides the bundle source directory. Empty means
	// use the recorded one.
	SourceRoot string

	// Policy resolves uncommitted local source modifications. Required
	// when the source is dirty; there is no silent default.
	Policy types.LocalChangesPolicy

	// FS overrides the filesystem, for tests. Nil means the OS.
	FS types.FS

	// Refresher overrides the source refresher, for tests. Nil means
	// git against the source root.
	Refresher source.Refresher
}

// Result reports what an update did.
type Result struct {
	Record types.InstallationRecord
	Report types.ChangeReport

	// Snapshot is non-nil when foreign content appeared at a target
	// since the last run and was captured.
	Snapshot *backup.Snapshot

	Violations []types.Violation
}

// Update runs the update pipeline. It refuses to run without an
// existing installation record: update never silently falls back to a
// fresh install.
func Update(opts Options) (*Result, error) {
	logger := logging.GetLogger("commands.update")
	done := logging.LogOperationStart(logger, "update")
	defer done()

	env, err := internal.BuildEnv(opts.SourceRoot, opts.FS)
	if err != nil {
		return nil, kerrors.Wrap(err, kerrors.ErrPrecondition, "update preconditions failed")
	}

	record, err := env.Store.Load()
	if err != nil {
		return nil, kerrors.Wrap(err, kerrors.ErrPrecondition, "installation record is unreadable")
	}
	if record == nil {
		return nil, kerrors.New(kerrors.ErrNotInstalled, "nothing to update: kitup is not installed")
	}

	before, err := source.HashResources(env.FS, env.Descriptors)
	if err != nil {
		return nil, kerrors.Wrap(err, kerrors.ErrPrecondition, "failed to fingerprint current bundle content")
	}

	refresher := opts.Refresher
	if refresher == nil {
		refresher = source.NewGit(env.Paths.SourceRoot())
	}

	if refresher.IsRepo() {
		if err := refresher.Pull(opts.Policy); err != nil {
			return nil, err
		}
	} else {
		logger.Warn().Str("source", env.Paths.SourceRoot()).Msg("Bundle source is not a git repository, skipping pull")
	}

	// Resources may have appeared or vanished with the pull.
	if err := env.RediscoverDescriptors(); err != nil {
		return nil, kerrors.Wrap(err, kerrors.ErrPrecondition, "bundle is invalid after refresh")
	}

	after, err := source.HashResources(env.FS, env.Descriptors)
	if err != nil {
		return nil, kerrors.Wrap(err, kerrors.ErrPrecondition, "failed to fingerprint refreshed bundle content")
	}

	// Capture anything foreign that appeared at a target since the
	// last run, including targets of newly introduced resources.
	snapshot, err := env.Backups.CaptureForeign(env.Descriptors, record)
	if err != nil {
		return nil, err
	}

	result := &Result{Snapshot: snapshot}

	if err := removeVanished(env, before, after); err != nil {
		return nil, internal.FailWithBackup(err, kerrors.ErrPlacement, "update failed while removing retired resources", snapshot)
	}
	for _, d := range env.Descriptors {
		if err := env.Strategy.Apply(d, d.EffectiveMode(record.Mode)); err != nil {
			return nil, internal.FailWithBackup(err, kerrors.ErrPlacement, "update failed while placing resources", snapshot)
		}
	}

	updated := *record
	updated.UpdatedAt = time.Now().UTC()
	updated.SourceRoot = env.Paths.SourceRoot()
	updated.Resources = types.ResourceNames(env.Descriptors)
	updated.Version, err = deriveVersion(env, refresher)
	if err != nil {
		return nil, err
	}
	if err := env.Store.Save(updated); err != nil {
		return nil, internal.FailWithBackup(err, kerrors.ErrPersistence, "update failed while persisting state", snapshot)
	}
	result.Record = updated

	result.Report = buildReport(record.Version, updated.Version, before, after)
	result.Violations = verify.Check(env.FS, env.Store, updated, env.Descriptors)
	if verr := verify.AsError(result.Violations); verr != nil {
		logger.Warn().Err(verr).Msg("Update verification reported violations")
	}

	logger.Info().
		Str("from", record.Version).
		Str("to", updated.Version).
		Int("changed", len(result.Report.Changed)).
		Msg("Update complete")
	return result, nil
}

// removeVanished clears targets of resources that existed before the
// refresh but are gone from the source now.
func removeVanished(env *internal.Env, before, after map[string]string) error {
	for name := range before {
		if _, still := after[name]; still {
			continue
		}
		d := types.ResourceDescriptor{
			Name:       name,
			TargetPath: env.Paths.TargetPath(name),
		}
		if err := env.Strategy.Remove(d); err != nil {
			return err
		}
	}
	return nil
}

func deriveVersion(env *internal.Env, refresher source.Refresher) (string, error) {
	if refresher.IsRepo() {
		if head, err := refresher.Head(); err == nil {
			return head, nil
		}
	}
	return source.ContentVersion(env.FS, env.Descriptors)
}

func buildReport(previous, current string, before, after map[string]string) types.ChangeReport {
	report := types.ChangeReport{
		PreviousVersion: previous,
		NewVersion:      current,
	}

	for name, sum := range after {
		prior, existed := before[name]
		switch {
		case !existed:
			report.Added = append(report.Added, name)
		case prior != sum:
			report.Changed = append(report.Changed, name)
		}
	}
	for name := range before {
		if _, still := after[name]; !still {
			report.Removed = append(report.Removed, name)
		}
	}

	sort.Strings(report.Changed)
	sort.Strings(report.Added)
	sort.Strings(report.Removed)
	return report
}
