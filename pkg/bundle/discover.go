// Package bundle discovers the declared resources of a configuration
// bundle: one instruction document at the source root plus one
// resource per non-hidden top-level directory. Discovery runs fresh on
// every operation, so resources added to the source are picked up by
// the next install or update without any state migration.
package bundle

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	kerrors "github.com/kitup-dev/kitup/pkg/errors"
	"github.com/kitup-dev/kitup/pkg/logging"
	"github.com/kitup-dev/kitup/pkg/paths"
	"github.com/kitup-dev/kitup/pkg/types"
)

// Discover reads the bundle source tree and returns its resource
// descriptors: the instruction document first, then the resource
// directories in name order. cfg is the bundle configuration already
// loaded for this run. Discover fails with a precondition error when
// the source root or the document is missing, since a bundle without
// its document is not installable.
func Discover(fs types.FS, p paths.Paths, cfg Config) ([]types.ResourceDescriptor, error) {
	logger := logging.GetLogger("bundle")

	sourceRoot := p.SourceRoot()
	if info, err := fs.Stat(sourceRoot); err != nil || !info.IsDir() {
		return nil, kerrors.Newf(kerrors.ErrSourceMissing, "bundle source %s does not exist", sourceRoot)
	}

	docPath := filepath.Join(sourceRoot, cfg.Document)
	docInfo, err := fs.Stat(docPath)
	if err != nil || docInfo.IsDir() {
		return nil, kerrors.Newf(kerrors.ErrBundleInvalid,
			"bundle at %s has no %s document", sourceRoot, cfg.Document)
	}

	descriptors := []types.ResourceDescriptor{{
		Name:              cfg.Document,
		SourceRelPath:     cfg.Document,
		SourcePath:        docPath,
		TargetPath:        p.TargetPath(cfg.Document),
		Kind:              types.ResourceFile,
		PlacementOverride: cfg.ModeOverrides[cfg.Document],
	}}

	entries, err := fs.ReadDir(sourceRoot)
	if err != nil {
		return nil, kerrors.Wrapf(err, kerrors.ErrFileAccess, "failed to read bundle source %s", sourceRoot)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if ignored(cfg.Ignore, name) {
			logger.Debug().Str("resource", name).Msg("Skipping ignored entry")
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		descriptors = append(descriptors, types.ResourceDescriptor{
			Name:              name,
			SourceRelPath:     name,
			SourcePath:        filepath.Join(sourceRoot, name),
			TargetPath:        p.TargetPath(name),
			Kind:              types.ResourceDirectory,
			PlacementOverride: cfg.ModeOverrides[name],
		})
	}

	logger.Debug().Int("resources", len(descriptors)).Str("source", sourceRoot).Msg("Bundle discovered")
	return descriptors, nil
}

// ignored reports whether name matches any of the ignore globs.
func ignored(globs []string, name string) bool {
	for _, g := range globs {
		if ok, err := doublestar.Match(g, name); err == nil && ok {
			return true
		}
	}
	return false
}
