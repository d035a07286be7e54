package overlay

// TEST TYPE: Unit Test
// DEPENDENCIES: In-memory filesystem
// PURPOSE: Verify copy deployment applies layers lowest to highest
// with file-level overwrites and refuses invalid stacks

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nukeythenuke/torygg/pkg/errors"
	"github.com/nukeythenuke/torygg/pkg/testutil"
)

func TestCopyDeployer_later_layer_wins(t *testing.T) {
	env := testutil.NewTestEnvironment(t, testutil.EnvMemoryOnly)
	deployer := NewCopyDeployer(env.FS)

	modA := env.WriteModPayload("A", map[string]string{
		"textures/rock.dds": "from A",
		"a-only.esp":        "a",
	})
	modB := env.WriteModPayload("B", map[string]string{
		"textures/rock.dds": "from B",
		"meshes/tree.nif":   "b",
	})
	testutil.WriteTree(t, env.FS, env.Paths.OverwriteDir("Default"), map[string]string{
		"captured.ini": "overwrite",
	})
	env.WriteGameData(map[string]string{"Skyrim.esm": "base"})

	stack := Stack{
		Lower:  []string{modA, modB},
		Upper:  env.Paths.OverwriteDir("Default"),
		Work:   env.Paths.WorkDir("Default"),
		Target: env.GameDataDir,
	}
	require.NoError(t, deployer.Deploy(context.Background(), stack))

	assert.Equal(t, map[string]string{
		"Skyrim.esm":        "base",
		"textures/rock.dds": "from B",
		"a-only.esp":        "a",
		"meshes/tree.nif":   "b",
		"captured.ini":      "overwrite",
	}, testutil.ReadTree(t, env.FS, env.GameDataDir))
}

func TestCopyDeployer_reorder_flips_winner(t *testing.T) {
	env := testutil.NewTestEnvironment(t, testutil.EnvMemoryOnly)
	deployer := NewCopyDeployer(env.FS)

	modA := env.WriteModPayload("A", map[string]string{"textures/rock.dds": "from A"})
	modB := env.WriteModPayload("B", map[string]string{"textures/rock.dds": "from B"})
	require.NoError(t, env.FS.MkdirAll(env.Paths.OverwriteDir("Default"), 0755))

	stack := Stack{
		Lower:  []string{modB, modA},
		Upper:  env.Paths.OverwriteDir("Default"),
		Work:   env.Paths.WorkDir("Default"),
		Target: env.GameDataDir,
	}
	require.NoError(t, deployer.Deploy(context.Background(), stack))

	data, err := env.FS.ReadFile(filepath.Join(env.GameDataDir, "textures", "rock.dds"))
	require.NoError(t, err)
	assert.Equal(t, "from A", string(data))
}

func TestCopyDeployer_validates_stack(t *testing.T) {
	env := testutil.NewTestEnvironment(t, testutil.EnvMemoryOnly)
	deployer := NewCopyDeployer(env.FS)

	stack := Stack{
		Lower:  []string{env.GameDataDir},
		Upper:  env.Paths.OverwriteDir("Default"),
		Work:   env.Paths.WorkDir("Default"),
		Target: env.GameDataDir,
	}
	err := deployer.Deploy(context.Background(), stack)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrMountFailed), "got %v", err)
}

func TestCopyDeployer_missing_layer_fails(t *testing.T) {
	env := testutil.NewTestEnvironment(t, testutil.EnvMemoryOnly)
	deployer := NewCopyDeployer(env.FS)

	stack := Stack{
		Lower:  []string{"/virtual/data/torygg/mods/DoesNotExist"},
		Upper:  env.Paths.OverwriteDir("Default"),
		Work:   env.Paths.WorkDir("Default"),
		Target: env.GameDataDir,
	}
	err := deployer.Deploy(context.Background(), stack)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrIOFailure), "got %v", err)
}

func TestCopyDeployer_many_files_within_layer(t *testing.T) {
	env := testutil.NewTestEnvironment(t, testutil.EnvMemoryOnly)
	deployer := NewCopyDeployer(env.FS)

	files := make(map[string]string)
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		files["textures/"+name+".dds"] = "texture " + name
		files["meshes/"+name+".nif"] = "mesh " + name
	}
	mod := env.WriteModPayload("Big", files)
	require.NoError(t, env.FS.MkdirAll(env.Paths.OverwriteDir("Default"), 0755))

	stack := Stack{
		Lower:  []string{mod},
		Upper:  env.Paths.OverwriteDir("Default"),
		Work:   env.Paths.WorkDir("Default"),
		Target: env.GameDataDir,
	}
	require.NoError(t, deployer.Deploy(context.Background(), stack))

	got := testutil.ReadTree(t, env.FS, env.GameDataDir)
	assert.Len(t, got, len(files))
	assert.Equal(t, "texture a", got["textures/a.dds"])
	assert.Equal(t, "mesh h", got["meshes/h.nif"])
}
