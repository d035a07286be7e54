package state_test

// TEST TYPE: Unit Test
// DEPENDENCIES: Memory filesystem
// PURPOSE: Verify state file round-trips, first-run defaults, and
// recovery from an unreadable file

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nukeythenuke/torygg/pkg/state"
	"github.com/nukeythenuke/torygg/pkg/testutil"
)

func newStore(t *testing.T) (*testutil.TestEnvironment, *state.Store) {
	t.Helper()
	env := testutil.NewTestEnvironment(t, testutil.EnvMemoryOnly)
	return env, state.NewStore(env.Paths, env.FS)
}

func TestStore_load_before_first_save(t *testing.T) {
	_, store := newStore(t)

	st, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, st.CurrentProfile)
}

func TestStore_use_round_trip(t *testing.T) {
	_, store := newStore(t)

	require.NoError(t, store.Use("Legacy of the Dragonborn"))

	st, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "Legacy of the Dragonborn", st.CurrentProfile)

	// Switching again overwrites.
	require.NoError(t, store.Use("Vanilla Plus"))
	st, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, "Vanilla Plus", st.CurrentProfile)
}

func TestStore_unreadable_file_is_zero_state(t *testing.T) {
	env, store := newStore(t)

	require.NoError(t, env.FS.WriteFile(env.Paths.StatePath(), []byte("{{not toml"), 0644))

	st, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, st.CurrentProfile)
}
