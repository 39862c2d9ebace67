package types

import (
	"fmt"
	"sort"
)

// PlacementMode selects how a resource is placed at its target.
type PlacementMode string

const (
	// PlacementMaterialize produces an independent copy at the target.
	// Edits at the target never propagate back to the source.
	PlacementMaterialize PlacementMode = "materialize"

	// PlacementReference establishes a symlink from target to source,
	// so source changes are immediately visible at the target.
	PlacementReference PlacementMode = "reference"
)

// ParsePlacementMode converts a user-supplied string to a PlacementMode
func ParsePlacementMode(s string) (PlacementMode, error) {
	switch PlacementMode(s) {
	case PlacementMaterialize, PlacementReference:
		return PlacementMode(s), nil
	}
	return "", fmt.Errorf("unknown placement mode %q (want %q or %q)",
		s, PlacementMaterialize, PlacementReference)
}

// ResourceKind distinguishes file resources from directory resources
type ResourceKind string

const (
	ResourceFile      ResourceKind = "file"
	ResourceDirectory ResourceKind = "directory"
)

// ResourceDescriptor describes one declared resource of the bundle:
// the instruction document or one skill directory. Descriptors are
// derived fresh from the source tree on every operation and never
// persisted, so resources added to the source are picked up on the
// next update.
type ResourceDescriptor struct {
	// Name is the logical identifier, e.g. "CLAUDE.md" or "skills"
	Name string

	// SourceRelPath is the path relative to the bundle source root
	SourceRelPath string

	// SourcePath is the absolute path inside the bundle source
	SourcePath string

	// TargetPath is the absolute deployment path under the target root.
	// Always derived from Name, never user-supplied at runtime.
	TargetPath string

	Kind ResourceKind

	// PlacementOverride, when non-empty, wins over the record's
	// global placement mode for this resource only.
	PlacementOverride PlacementMode
}

// EffectiveMode resolves the placement mode for this descriptor given
// the global default.
func (d ResourceDescriptor) EffectiveMode(global PlacementMode) PlacementMode {
	if d.PlacementOverride != "" {
		return d.PlacementOverride
	}
	return global
}

// ResourceNames returns the sorted names of a descriptor set, the form
// in which a run's placements are persisted on the record.
func ResourceNames(descriptors []ResourceDescriptor) []string {
	names := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		names = append(names, d.Name)
	}
	sort.Strings(names)
	return names
}
