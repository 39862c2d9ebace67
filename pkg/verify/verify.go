// Package verify checks post-conditions after install and update: every
// declared resource must exist at its target in the form its effective
// placement mode implies, and the persisted record must round-trip.
// Violations are warnings for the caller, never a rollback trigger:
// the destructive work already succeeded by the time verification runs.
package verify

import (
	"io/fs"

	"github.com/hashicorp/go-multierror"

	"github.com/kitup-dev/kitup/pkg/logging"
	"github.com/kitup-dev/kitup/pkg/state"
	"github.com/kitup-dev/kitup/pkg/types"
)

// Check verifies the installation post-conditions and returns the
// violations found. An empty slice means everything holds.
func Check(fsys types.FS, store state.Store, record types.InstallationRecord, descriptors []types.ResourceDescriptor) []types.Violation {
	logger := logging.GetLogger("verify")
	var violations []types.Violation

	for _, d := range descriptors {
		if v := checkResource(fsys, record, d); v != nil {
			violations = append(violations, *v)
		}
	}

	loaded, err := store.Load()
	switch {
	case err != nil:
		violations = append(violations, types.Violation{
			Message: "installation record failed to load: " + err.Error(),
		})
	case loaded == nil:
		violations = append(violations, types.Violation{
			Message: "installation record is missing after persist",
		})
	case !loaded.Equal(record):
		violations = append(violations, types.Violation{
			Message: "installation record on disk differs from what was persisted",
		})
	}

	if len(violations) > 0 {
		logger.Warn().Int("violations", len(violations)).Msg("Post-condition check failed")
	}
	return violations
}

// AsError folds violations into a single error for log and display
// surfaces, or nil when there are none.
func AsError(violations []types.Violation) error {
	if len(violations) == 0 {
		return nil
	}
	var result *multierror.Error
	for _, v := range violations {
		result = multierror.Append(result, errString(v.String()))
	}
	return result.ErrorOrNil()
}

type errString string

func (e errString) Error() string { return string(e) }

func checkResource(fsys types.FS, record types.InstallationRecord, d types.ResourceDescriptor) *types.Violation {
	info, err := fsys.Lstat(d.TargetPath)
	if err != nil {
		return &types.Violation{Resource: d.Name, Message: "target missing"}
	}

	isLink := info.Mode()&fs.ModeSymlink != 0
	switch d.EffectiveMode(record.Mode) {
	case types.PlacementReference:
		if !isLink {
			return &types.Violation{Resource: d.Name, Message: "expected a reference link, found independent content"}
		}
		dest, err := fsys.Readlink(d.TargetPath)
		if err != nil || dest != d.SourcePath {
			return &types.Violation{Resource: d.Name, Message: "reference link does not point at the source"}
		}
	case types.PlacementMaterialize:
		if isLink {
			return &types.Violation{Resource: d.Name, Message: "expected independent content, found a link"}
		}
		if d.Kind == types.ResourceDirectory && !info.IsDir() {
			return &types.Violation{Resource: d.Name, Message: "expected a directory at the target"}
		}
		if d.Kind == types.ResourceFile && info.IsDir() {
			return &types.Violation{Resource: d.Name, Message: "expected a file at the target"}
		}
	}
	return nil
}
