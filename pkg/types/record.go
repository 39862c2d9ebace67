package types

import "time"

// InstallationRecord is the single persisted entity. Its presence is
// the authoritative signal that kitup considers itself installed,
// overriding any stray files found at the target.
type InstallationRecord struct {
	// SourceRoot is the absolute path of the installed bundle source
	SourceRoot string `toml:"source_root"`

	// Version is an opaque tag identifying the installed content,
	// derived from the source at install/update time
	Version string `toml:"version"`

	// Mode is the global default placement mode
	Mode PlacementMode `toml:"mode"`

	// Resources names the resources the recorded run actually placed,
	// sorted. Materialized targets are indistinguishable from foreign
	// content on disk, so this list is the authority on which existing
	// targets belong to the installation.
	Resources []string `toml:"resources"`

	InstalledAt time.Time `toml:"installed_at"`
	UpdatedAt   time.Time `toml:"updated_at"`
}

// Covers reports whether the recorded run placed a resource by name.
func (r InstallationRecord) Covers(name string) bool {
	for _, placed := range r.Resources {
		if placed == name {
			return true
		}
	}
	return false
}

// Equal reports whether two records carry the same installation facts.
// Timestamps compare with time.Equal so location differences from a
// TOML round trip do not matter.
func (r InstallationRecord) Equal(other InstallationRecord) bool {
	if len(r.Resources) != len(other.Resources) {
		return false
	}
	for i, name := range r.Resources {
		if other.Resources[i] != name {
			return false
		}
	}
	return r.SourceRoot == other.SourceRoot &&
		r.Version == other.Version &&
		r.Mode == other.Mode &&
		r.InstalledAt.Equal(other.InstalledAt) &&
		r.UpdatedAt.Equal(other.UpdatedAt)
}
