package status

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitup-dev/kitup/pkg/commands/install"
	"github.com/kitup-dev/kitup/pkg/testutil"
	"github.com/kitup-dev/kitup/pkg/types"
)

func installBundle(t *testing.T, env *testutil.TestEnvironment) {
	t.Helper()
	env.WriteBundle(map[string]string{
		"CLAUDE.md":              "# instructions",
		"skills/review/SKILL.md": "review skill",
	})
	_, err := install.Install(install.Options{Mode: types.PlacementReference})
	require.NoError(t, err)
}

func TestStatusNotInstalled(t *testing.T) {
	env := testutil.NewTestEnvironment(t)
	env.WriteBundle(map[string]string{"CLAUDE.md": "# doc"})

	result, err := Status("", nil)
	require.NoError(t, err)
	assert.False(t, result.Installed)
	assert.Empty(t, result.Resources)
}

func TestStatusHealthyInstallation(t *testing.T) {
	env := testutil.NewTestEnvironment(t)
	installBundle(t, env)

	result, err := Status("", nil)
	require.NoError(t, err)
	require.True(t, result.Installed)

	assert.Equal(t, env.SourceRoot, result.Record.SourceRoot)
	require.Len(t, result.Resources, 2)
	for _, rs := range result.Resources {
		assert.Equal(t, StateOK, rs.State, "resource %s", rs.Name)
		assert.Equal(t, types.PlacementReference, rs.Mode)
	}
}

func TestStatusReportsMissingTarget(t *testing.T) {
	env := testutil.NewTestEnvironment(t)
	installBundle(t, env)
	require.NoError(t, os.Remove(env.TargetPath("CLAUDE.md")))

	result, err := Status("", nil)
	require.NoError(t, err)

	states := map[string]ResourceState{}
	for _, rs := range result.Resources {
		states[rs.Name] = rs.State
	}
	assert.Equal(t, StateMissing, states["CLAUDE.md"])
	assert.Equal(t, StateOK, states["skills"])
}

func TestStatusReportsDrift(t *testing.T) {
	env := testutil.NewTestEnvironment(t)
	installBundle(t, env)

	// Replace the managed link with independent content.
	require.NoError(t, os.Remove(env.TargetPath("CLAUDE.md")))
	env.WriteTargetFile("CLAUDE.md", "detached copy")

	result, err := Status("", nil)
	require.NoError(t, err)

	for _, rs := range result.Resources {
		if rs.Name == "CLAUDE.md" {
			assert.Equal(t, StateDrifted, rs.State)
			assert.NotEmpty(t, rs.Detail)
		}
	}
}

func TestStatusDoesNotMutate(t *testing.T) {
	env := testutil.NewTestEnvironment(t)
	installBundle(t, env)
	require.NoError(t, os.Remove(env.TargetPath("CLAUDE.md")))

	_, err := Status("", nil)
	require.NoError(t, err)

	// The missing target stays missing; status never repairs.
	_, statErr := os.Lstat(env.TargetPath("CLAUDE.md"))
	assert.True(t, os.IsNotExist(statErr))
}
