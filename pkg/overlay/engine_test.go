package overlay

// TEST TYPE: Unit Test
// DEPENDENCIES: In-memory filesystem, fake mounter
// PURPOSE: Verify the mount state machine, mount record authority,
// stale record recovery, and layer precedence of the mounted view

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nukeythenuke/torygg/pkg/errors"
	"github.com/nukeythenuke/torygg/pkg/testutil"
)

func newEngine(t *testing.T) (*testutil.TestEnvironment, *Engine, *FakeMounter) {
	t.Helper()
	env := testutil.NewTestEnvironment(t, testutil.EnvMemoryOnly)
	fake := NewFakeMounter()
	return env, NewEngine(env.Paths, env.FS, fake), fake
}

// testStack composes the profile's base layer, the given mod payload
// roots, and its overwrite directory over the fake game data dir.
func testStack(env *testutil.TestEnvironment, profileName string, modRoots ...string) Stack {
	return Stack{
		Lower:  append([]string{env.Paths.BaseLayerDir(profileName)}, modRoots...),
		Upper:  env.Paths.OverwriteDir(profileName),
		Work:   env.Paths.WorkDir(profileName),
		Target: env.GameDataDir,
	}
}

func TestEngine_mount_unmount_cycle(t *testing.T) {
	env, engine, fake := newEngine(t)
	ctx := context.Background()

	mod := env.WriteModPayload("SkyUI", map[string]string{"SkyUI.esp": "skyui"})
	env.WriteGameData(map[string]string{"Skyrim.esm": "base"})
	stack := testStack(env, "Default", mod)

	before := testutil.ReadTree(t, env.FS, env.GameDataDir)

	require.Equal(t, StateUnmounted, engine.State("Default"))
	require.NoError(t, engine.Mount(ctx, "Default", stack))
	assert.Equal(t, StateMounted, engine.State("Default"))
	assert.True(t, fake.Mounted(env.GameDataDir))

	record, err := engine.Record("Default")
	require.NoError(t, err)
	assert.Equal(t, "Default", record.Profile)
	assert.Equal(t, env.GameDataDir, record.Target)
	assert.Equal(t, "fake", record.Backend)

	require.NoError(t, engine.Unmount(ctx, "Default"))
	assert.Equal(t, StateUnmounted, engine.State("Default"))
	assert.False(t, fake.Mounted(env.GameDataDir))
	_, err = engine.Record("Default")
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound), "got %v", err)

	// The mount cycle leaves the underlying content untouched.
	assert.Equal(t, before, testutil.ReadTree(t, env.FS, env.GameDataDir))
}

func TestEngine_later_position_wins(t *testing.T) {
	env, engine, fake := newEngine(t)
	ctx := context.Background()

	modA := env.WriteModPayload("A", map[string]string{"textures/rock.dds": "from A"})
	modB := env.WriteModPayload("B", map[string]string{"textures/rock.dds": "from B"})

	require.NoError(t, engine.Mount(ctx, "Default", testStack(env, "Default", modA, modB)))

	path, ok := fake.Resolve(env.FS, env.GameDataDir, "textures/rock.dds")
	require.True(t, ok)
	data, err := env.FS.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "from B", string(data))

	// Reordering to [B, A] and remounting flips the winner.
	require.NoError(t, engine.Unmount(ctx, "Default"))
	require.NoError(t, engine.Mount(ctx, "Default", testStack(env, "Default", modB, modA)))

	path, ok = fake.Resolve(env.FS, env.GameDataDir, "textures/rock.dds")
	require.True(t, ok)
	data, err = env.FS.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "from A", string(data))
}

func TestEngine_overwrite_tops_the_stack(t *testing.T) {
	env, engine, fake := newEngine(t)
	ctx := context.Background()

	mod := env.WriteModPayload("A", map[string]string{"config.ini": "mod"})
	testutil.WriteTree(t, env.FS, env.Paths.OverwriteDir("Default"), map[string]string{"config.ini": "captured"})

	require.NoError(t, engine.Mount(ctx, "Default", testStack(env, "Default", mod)))

	path, ok := fake.Resolve(env.FS, env.GameDataDir, "config.ini")
	require.True(t, ok)
	data, err := env.FS.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "captured", string(data))
}

func TestEngine_second_mount_refused(t *testing.T) {
	env, engine, fake := newEngine(t)
	ctx := context.Background()

	mod := env.WriteModPayload("A", map[string]string{"a.esp": "a"})
	stack := testStack(env, "Default", mod)

	require.NoError(t, engine.Mount(ctx, "Default", stack))

	err := engine.Mount(ctx, "Default", stack)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrAlreadyMounted), "got %v", err)

	mounts, _ := fake.Calls()
	assert.Equal(t, 1, mounts, "refused mount must not reach the backend")
}

func TestEngine_self_referential_stack_never_attempted(t *testing.T) {
	env, engine, fake := newEngine(t)

	stack := testStack(env, "Default", env.GameDataDir)
	err := engine.Mount(context.Background(), "Default", stack)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrMountFailed), "got %v", err)

	mounts, _ := fake.Calls()
	assert.Equal(t, 0, mounts)
	assert.Equal(t, StateUnmounted, engine.State("Default"))
	_, rerr := engine.Record("Default")
	assert.True(t, errors.IsErrorCode(rerr, errors.ErrNotFound), "no record may be written")
}

func TestEngine_mount_failure_enters_error_state(t *testing.T) {
	env, engine, fake := newEngine(t)
	ctx := context.Background()

	mod := env.WriteModPayload("A", map[string]string{"a.esp": "a"})
	stack := testStack(env, "Default", mod)

	fake.MountErr = errors.New(errors.ErrMountFailed, "backend exploded")
	err := engine.Mount(ctx, "Default", stack)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrMountFailed), "got %v", err)
	assert.Equal(t, StateError, engine.State("Default"))

	// The record stays so recovery is forced through Unmount.
	_, rerr := engine.Record("Default")
	require.NoError(t, rerr)

	err = engine.Mount(ctx, "Default", stack)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrMountFailed), "got %v", err)

	// Unmount recovers best-effort even though nothing is mounted.
	fake.MountErr = nil
	require.NoError(t, engine.Unmount(ctx, "Default"))
	assert.Equal(t, StateUnmounted, engine.State("Default"))

	require.NoError(t, engine.Mount(ctx, "Default", stack))
	assert.Equal(t, StateMounted, engine.State("Default"))
}

func TestEngine_unmount_is_idempotent(t *testing.T) {
	_, engine, fake := newEngine(t)
	ctx := context.Background()

	require.NoError(t, engine.Unmount(ctx, "Default"))
	require.NoError(t, engine.Unmount(ctx, "Default"))

	_, unmounts := fake.Calls()
	assert.Equal(t, 0, unmounts)
}

func TestEngine_stale_record_reads_mounted_and_cleans_up(t *testing.T) {
	env, engine, fake := newEngine(t)
	ctx := context.Background()

	// A record from a previous process, with no live mount behind it.
	require.NoError(t, env.FS.WriteFile(
		env.Paths.MountRecordPath("Default"),
		[]byte("profile = \"Default\"\ntarget = \"/virtual/game/Data\"\nbackend = \"fake\"\n"),
		0644))

	assert.Equal(t, StateMounted, engine.State("Default"))

	// The fake refuses to unmount a target it never mounted; the
	// engine treats that as stale and clears the record anyway.
	require.NoError(t, engine.Unmount(ctx, "Default"))
	assert.Equal(t, StateUnmounted, engine.State("Default"))

	_, unmounts := fake.Calls()
	assert.Equal(t, 1, unmounts)
	_, err := engine.Record("Default")
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound), "got %v", err)
}

func TestEngine_unmount_failure_while_mounted(t *testing.T) {
	env, engine, fake := newEngine(t)
	ctx := context.Background()

	mod := env.WriteModPayload("A", map[string]string{"a.esp": "a"})
	require.NoError(t, engine.Mount(ctx, "Default", testStack(env, "Default", mod)))

	fake.UnmountErr = errors.New(errors.ErrMountFailed, "target busy")
	err := engine.Unmount(ctx, "Default")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrMountFailed), "got %v", err)
	assert.Equal(t, StateError, engine.State("Default"))
	_, rerr := engine.Record("Default")
	require.NoError(t, rerr, "record must survive a failed unmount")

	// Out of Error the next unmount is best-effort and succeeds.
	fake.UnmountErr = nil
	require.NoError(t, engine.Unmount(ctx, "Default"))
	assert.Equal(t, StateUnmounted, engine.State("Default"))
	assert.False(t, fake.Mounted(env.GameDataDir))
}

func TestEngine_unreadable_record_is_dropped(t *testing.T) {
	env, engine, _ := newEngine(t)

	require.NoError(t, env.FS.WriteFile(env.Paths.MountRecordPath("Default"), []byte("{{not toml"), 0644))

	require.NoError(t, engine.Unmount(context.Background(), "Default"))
	assert.Equal(t, StateUnmounted, engine.State("Default"))
	_, err := engine.Record("Default")
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound), "got %v", err)
}

func TestEngine_profiles_are_independent(t *testing.T) {
	env, engine, _ := newEngine(t)
	ctx := context.Background()

	mod := env.WriteModPayload("A", map[string]string{"a.esp": "a"})

	one := testStack(env, "One", mod)
	one.Target = "/virtual/game-one/Data"
	two := testStack(env, "Two", mod)
	two.Target = "/virtual/game-two/Data"

	require.NoError(t, engine.Mount(ctx, "One", one))
	assert.Equal(t, StateMounted, engine.State("One"))
	assert.Equal(t, StateUnmounted, engine.State("Two"))

	require.NoError(t, engine.Mount(ctx, "Two", two))
	require.NoError(t, engine.Unmount(ctx, "One"))
	assert.Equal(t, StateUnmounted, engine.State("One"))
	assert.Equal(t, StateMounted, engine.State("Two"))
}
