package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlacementMode(t *testing.T) {
	mode, err := ParsePlacementMode("reference")
	require.NoError(t, err)
	assert.Equal(t, PlacementReference, mode)

	mode, err = ParsePlacementMode("materialize")
	require.NoError(t, err)
	assert.Equal(t, PlacementMaterialize, mode)

	_, err = ParsePlacementMode("symlink")
	assert.Error(t, err)
}

func TestEffectiveMode(t *testing.T) {
	d := ResourceDescriptor{Name: "skills"}
	assert.Equal(t, PlacementReference, d.EffectiveMode(PlacementReference))

	d.PlacementOverride = PlacementMaterialize
	assert.Equal(t, PlacementMaterialize, d.EffectiveMode(PlacementReference))
}

func TestRecordEqual(t *testing.T) {
	now := time.Now()
	a := InstallationRecord{
		SourceRoot:  "/src/bundle",
		Version:     "abc1234",
		Mode:        PlacementReference,
		InstalledAt: now,
		UpdatedAt:   now,
	}
	b := a
	b.InstalledAt = now.UTC()
	b.UpdatedAt = now.UTC()
	assert.True(t, a.Equal(b), "timestamps should compare location-insensitively")

	b.Version = "def5678"
	assert.False(t, a.Equal(b))

	b = a
	b.Resources = []string{"CLAUDE.md"}
	assert.False(t, a.Equal(b), "placed-resource lists are part of the record")
}

func TestRecordCovers(t *testing.T) {
	r := InstallationRecord{Resources: []string{"CLAUDE.md", "skills"}}
	assert.True(t, r.Covers("skills"))
	assert.False(t, r.Covers("commands"))
	assert.False(t, InstallationRecord{}.Covers("skills"))
}

func TestResourceNames(t *testing.T) {
	names := ResourceNames([]ResourceDescriptor{
		{Name: "skills"},
		{Name: "CLAUDE.md"},
		{Name: "agents"},
	})
	assert.Equal(t, []string{"CLAUDE.md", "agents", "skills"}, names)
}

func TestChangeReportHasChanges(t *testing.T) {
	assert.False(t, ChangeReport{}.HasChanges())
	assert.True(t, ChangeReport{Changed: []string{"skills"}}.HasChanges())
	assert.True(t, ChangeReport{Added: []string{"agents"}}.HasChanges())
	assert.True(t, ChangeReport{Removed: []string{"commands"}}.HasChanges())
}

func TestViolationString(t *testing.T) {
	v := Violation{Resource: "skills", Message: "target missing"}
	assert.Equal(t, "skills: target missing", v.String())
	assert.Equal(t, "record mismatch", Violation{Message: "record mismatch"}.String())
}
