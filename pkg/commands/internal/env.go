// Package internal wires the shared dependencies of the command
// orchestrators: path resolution, bundle discovery, the state store,
// the backup manager, and the placement strategy.
package internal

import (
	"github.com/kitup-dev/kitup/pkg/backup"
	"github.com/kitup-dev/kitup/pkg/bundle"
	"github.com/kitup-dev/kitup/pkg/errors"
	"github.com/kitup-dev/kitup/pkg/filesystem"
	"github.com/kitup-dev/kitup/pkg/paths"
	"github.com/kitup-dev/kitup/pkg/placement"
	"github.com/kitup-dev/kitup/pkg/state"
	"github.com/kitup-dev/kitup/pkg/types"
)

// Env carries the dependencies every orchestrator needs.
type Env struct {
	FS          types.FS
	Paths       paths.Paths
	Config      bundle.Config
	Descriptors []types.ResourceDescriptor
	Store       state.Store
	Backups     *backup.Manager
	Strategy    *placement.Strategy
}

// BuildEnv resolves paths and discovers the bundle. Discovery failure
// (missing source or document) surfaces here, before any mutation.
// fsys may be nil, in which case the OS filesystem is used.
func BuildEnv(sourceRoot string, fsys types.FS) (*Env, error) {
	if fsys == nil {
		fsys = filesystem.NewOS()
	}

	p, err := paths.New(sourceRoot)
	if err != nil {
		return nil, err
	}

	cfg, err := bundle.LoadConfig(p.BundleConfigPath())
	if err != nil {
		return nil, err
	}

	descriptors, err := bundle.Discover(fsys, p, cfg)
	if err != nil {
		return nil, err
	}

	return &Env{
		FS:          fsys,
		Paths:       p,
		Config:      cfg,
		Descriptors: descriptors,
		Store:       state.New(fsys, p.StateFilePath()),
		Backups:     backup.New(fsys, p.BackupsDir(), p.SourceRoot()),
		Strategy:    placement.New(fsys, cfg.Ignore),
	}, nil
}

// RediscoverDescriptors refreshes the descriptor set after the source
// content changed, picking up resources added since the last read. The
// bundle config is re-read too, since the refresh may have changed it.
func (e *Env) RediscoverDescriptors() error {
	cfg, err := bundle.LoadConfig(e.Paths.BundleConfigPath())
	if err != nil {
		return err
	}
	descriptors, err := bundle.Discover(e.FS, e.Paths, cfg)
	if err != nil {
		return err
	}
	e.Config = cfg
	e.Descriptors = descriptors
	return nil
}

// FailWithBackup wraps a pipeline error with its stage code. When a
// snapshot was captured earlier in the run, the message and details
// name the backup directory, so a mid-operation failure always tells
// the user where their displaced content went.
func FailWithBackup(err error, code errors.ErrorCode, message string, snapshot *backup.Snapshot) error {
	if snapshot == nil {
		return errors.Wrap(err, code, message)
	}
	return errors.Wrapf(err, code, "%s (backup preserved at %s)", message, snapshot.Dir).
		WithDetail("backup", snapshot.Dir)
}
