package main

// TEST TYPE: Integration Test
// DEPENDENCIES: Real filesystem (temp dirs), SQLite catalog
// PURPOSE: Drive the command surface end to end against an isolated
// data tree and verify the catalog, profile, and state files it leaves
// behind

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nukeythenuke/torygg/pkg/config"
	"github.com/nukeythenuke/torygg/pkg/errors"
	"github.com/nukeythenuke/torygg/pkg/profile"
	"github.com/nukeythenuke/torygg/pkg/state"
	"github.com/nukeythenuke/torygg/pkg/store"
	"github.com/nukeythenuke/torygg/pkg/testutil"
)

// run executes one torygg invocation against a fresh command tree
func run(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd := NewRootCmd()
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

// inspect opens the store and profile manager the way the commands do,
// for asserting on what an invocation left behind.
func inspect(t *testing.T, env *testutil.TestEnvironment) (*store.Store, *profile.Manager) {
	t.Helper()
	s, err := store.Open(env.Paths, env.FS)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Failed to close store: %v", err)
		}
	})
	return s, profile.NewManager(env.Paths, env.FS, s)
}

func TestCLI_profile_lifecycle(t *testing.T) {
	env := testutil.NewTestEnvironment(t, testutil.EnvIsolated)

	require.NoError(t, run(t, "profile", "create", "Legacy"))
	require.NoError(t, run(t, "profile", "use", "Legacy"))

	st, err := state.NewStore(env.Paths, env.FS).Load()
	require.NoError(t, err)
	assert.Equal(t, "Legacy", st.CurrentProfile)

	// Deleting the current profile clears the persisted choice.
	require.NoError(t, run(t, "profile", "delete", "Legacy"))
	st, err = state.NewStore(env.Paths, env.FS).Load()
	require.NoError(t, err)
	assert.Empty(t, st.CurrentProfile)

	err = run(t, "profile", "use", "Ghost")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrUnknownProfile), "got %v", err)
}

func TestCLI_create_activate_order(t *testing.T) {
	env := testutil.NewTestEnvironment(t, testutil.EnvIsolated)
	ctx := context.Background()

	require.NoError(t, run(t, "create", "Alpha Patches"))
	require.NoError(t, run(t, "create", "Beta Patches"))

	// Activating without a profile creates Default on first use.
	require.NoError(t, run(t, "activate", "Alpha Patches"))
	require.NoError(t, run(t, "order", "set", "Beta Patches", "Alpha Patches"))

	s, profiles := inspect(t, env)
	prof, err := profiles.Load(profile.DefaultProfileName)
	require.NoError(t, err)
	require.Len(t, prof.Mods, 2)
	assert.Equal(t, "Beta Patches", prof.Mods[0].Name)
	assert.Equal(t, "Alpha Patches", prof.Mods[1].Name)
	assert.True(t, prof.Enabled("Alpha Patches"))
	assert.False(t, prof.Enabled("Beta Patches"))

	mods, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, mods, 2)

	require.NoError(t, run(t, "deactivate", "Alpha Patches"))
	prof, err = profiles.Load(profile.DefaultProfileName)
	require.NoError(t, err)
	assert.False(t, prof.Enabled("Alpha Patches"))
}

func TestCLI_uninstall_respects_references(t *testing.T) {
	env := testutil.NewTestEnvironment(t, testutil.EnvIsolated)

	require.NoError(t, run(t, "create", "Shared Assets"))
	require.NoError(t, run(t, "activate", "Shared Assets"))

	err := run(t, "uninstall", "Shared Assets")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInUse), "got %v", err)

	// Deactivating is not enough, the profile still lists the mod.
	require.NoError(t, run(t, "deactivate", "Shared Assets"))
	err = run(t, "uninstall", "Shared Assets")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInUse), "got %v", err)

	// Clearing the order drops the reference.
	require.NoError(t, run(t, "order", "set"))
	require.NoError(t, run(t, "uninstall", "Shared Assets"))

	s, _ := inspect(t, env)
	_, err = s.Get(context.Background(), "Shared Assets")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound), "got %v", err)
}

func TestCLI_profile_flag_overrides_state(t *testing.T) {
	env := testutil.NewTestEnvironment(t, testutil.EnvIsolated)

	require.NoError(t, run(t, "create", "ENB Preset"))
	require.NoError(t, run(t, "profile", "create", "Vanilla"))
	require.NoError(t, run(t, "profile", "create", "Modded"))
	require.NoError(t, run(t, "profile", "use", "Vanilla"))

	require.NoError(t, run(t, "activate", "ENB Preset", "--profile", "Modded"))

	_, profiles := inspect(t, env)
	modded, err := profiles.Load("Modded")
	require.NoError(t, err)
	assert.True(t, modded.Enabled("ENB Preset"))

	vanilla, err := profiles.Load("Vanilla")
	require.NoError(t, err)
	assert.False(t, vanilla.References("ENB Preset"))
}

func TestCLI_genconfig_write(t *testing.T) {
	env := testutil.NewTestEnvironment(t, testutil.EnvIsolated)

	require.NoError(t, run(t, "genconfig", "--write"))

	data, err := env.FS.ReadFile(env.Paths.ConfigFilePath())
	require.NoError(t, err)
	assert.Equal(t, string(config.DefaultFileContent()), string(data))

	// An existing file is never overwritten.
	err = run(t, "genconfig", "--write")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput), "got %v", err)
}

func TestCLI_unknown_command(t *testing.T) {
	testutil.NewTestEnvironment(t, testutil.EnvIsolated)
	require.Error(t, run(t, "frobnicate"))
}
