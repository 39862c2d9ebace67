// Package status reports the current installation without mutating
// anything: the record fields and the per-resource target state.
package status

import (
	"github.com/kitup-dev/kitup/pkg/commands/internal"
	kerrors "github.com/kitup-dev/kitup/pkg/errors"
	"github.com/kitup-dev/kitup/pkg/logging"
	"github.com/kitup-dev/kitup/pkg/types"
	"github.com/kitup-dev/kitup/pkg/verify"
)

// ResourceState describes one resource's target at status time
type ResourceState string

const (
	StateOK      ResourceState = "ok"
	StateMissing ResourceState = "missing"
	StateDrifted ResourceState = "drifted"
)

// ResourceStatus pairs a resource with its observed target state.
type ResourceStatus struct {
	Name   string
	Mode   types.PlacementMode
	State  ResourceState
	Detail string
}

// Result is the read-only status report.
type Result struct {
	// Installed reports whether an installation record exists; when
	// false, every other field is zero.
	Installed bool

	Record    types.InstallationRecord
	Resources []ResourceStatus
}

// Status inspects the installation. It never mutates the filesystem.
func Status(sourceRoot string, fsys types.FS) (*Result, error) {
	logger := logging.GetLogger("commands.status")

	env, err := internal.BuildEnv(sourceRoot, fsys)
	if err != nil {
		return nil, kerrors.Wrap(err, kerrors.ErrPrecondition, "status preconditions failed")
	}

	record, err := env.Store.Load()
	if err != nil {
		return nil, err
	}
	if record == nil {
		logger.Debug().Msg("No installation record found")
		return &Result{Installed: false}, nil
	}

	result := &Result{Installed: true, Record: *record}

	violations := verify.Check(env.FS, env.Store, *record, env.Descriptors)
	byResource := make(map[string]types.Violation, len(violations))
	for _, v := range violations {
		if v.Resource != "" {
			byResource[v.Resource] = v
		}
	}

	for _, d := range env.Descriptors {
		rs := ResourceStatus{
			Name:  d.Name,
			Mode:  d.EffectiveMode(record.Mode),
			State: StateOK,
		}
		if v, bad := byResource[d.Name]; bad {
			rs.Detail = v.Message
			if v.Message == "target missing" {
				rs.State = StateMissing
			} else {
				rs.State = StateDrifted
			}
		}
		result.Resources = append(result.Resources, rs)
	}

	return result, nil
}
