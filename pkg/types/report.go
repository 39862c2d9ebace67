package types

import "fmt"

// LocalChangesPolicy tells the updater how to resolve uncommitted
// modifications in the bundle source before pulling. There is no
// default: callers must pick one, so user edits are never discarded
// silently.
type LocalChangesPolicy string

const (
	// CommitAndContinue commits local changes before pulling
	CommitAndContinue LocalChangesPolicy = "commit"

	// StashAndContinue sets local changes aside before pulling
	StashAndContinue LocalChangesPolicy = "stash"

	// AbortOnChanges stops the update when local changes exist
	AbortOnChanges LocalChangesPolicy = "abort"
)

// ParseLocalChangesPolicy converts a user-supplied string into a
// LocalChangesPolicy. Empty stays empty: the updater demands a policy
// only when the source actually has local changes.
func ParseLocalChangesPolicy(s string) (LocalChangesPolicy, error) {
	switch LocalChangesPolicy(s) {
	case "", CommitAndContinue, StashAndContinue, AbortOnChanges:
		return LocalChangesPolicy(s), nil
	}
	return "", fmt.Errorf("unknown local-changes policy %q (want commit, stash, or abort)", s)
}

// ChangeReport describes what an update actually changed, for display
// to the caller.
type ChangeReport struct {
	// PreviousVersion and NewVersion are the record version tags
	// before and after the refresh
	PreviousVersion string
	NewVersion      string

	// Changed lists resources whose content differs across the refresh
	Changed []string

	// Added and Removed list resources that appeared in or vanished
	// from the source since the previous version
	Added   []string
	Removed []string
}

// HasChanges reports whether the update altered any resource
func (c ChangeReport) HasChanges() bool {
	return len(c.Changed) > 0 || len(c.Added) > 0 || len(c.Removed) > 0
}

// Violation is one post-condition mismatch found by the verifier
type Violation struct {
	Resource string
	Message  string
}

func (v Violation) String() string {
	if v.Resource == "" {
		return v.Message
	}
	return v.Resource + ": " + v.Message
}
