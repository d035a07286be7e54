package store_test

// TEST TYPE: Integration Test
// DEPENDENCIES: Real filesystem (temp dirs), SQLite catalog
// PURPOSE: Verify payload staging, atomic publish, replace, uninstall
// reference checking, and plugin scanning

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nukeythenuke/torygg/pkg/errors"
	"github.com/nukeythenuke/torygg/pkg/store"
	"github.com/nukeythenuke/torygg/pkg/testutil"
)

type fakeRefs struct {
	profiles []string
}

func (f fakeRefs) References(string) ([]string, error) {
	return f.profiles, nil
}

func openStore(t *testing.T) (*testutil.TestEnvironment, *store.Store) {
	t.Helper()
	env := testutil.NewTestEnvironment(t, testutil.EnvIsolated)
	s, err := store.Open(env.Paths, env.FS)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Failed to close store: %v", err)
		}
	})
	return env, s
}

func TestStore_install_whole_tree(t *testing.T) {
	env, s := openStore(t)
	ctx := context.Background()

	source := filepath.Join(env.HomeDir, "extracted", "SkyUI")
	env.WriteTree(source, map[string]string{
		"SkyUI.esp":                  "esp data",
		"interface/skyui/config.txt": "cfg",
		"readme.txt":                 "docs",
	})

	mod, err := s.Install(ctx, "SkyUI", source, nil)
	require.NoError(t, err)
	assert.Equal(t, "SkyUI", mod.Name)
	assert.Equal(t, []string{"SkyUI.esp"}, mod.Plugins)
	assert.Equal(t, env.Paths.ModDir("SkyUI"), mod.PayloadRoot)

	got := testutil.ReadTree(t, env.FS, mod.PayloadRoot)
	assert.Equal(t, map[string]string{
		"SkyUI.esp":                  "esp data",
		"interface/skyui/config.txt": "cfg",
		"readme.txt":                 "docs",
	}, got)

	loaded, err := s.Get(ctx, "SkyUI")
	require.NoError(t, err)
	assert.Equal(t, mod.Plugins, loaded.Plugins)
	assert.False(t, loaded.InstalledAt.IsZero())

	mods, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, mods, 1)
	assert.Equal(t, "SkyUI", mods[0].Name)
}

func TestStore_install_name_conflict(t *testing.T) {
	env, s := openStore(t)
	ctx := context.Background()

	source := filepath.Join(env.HomeDir, "src")
	env.WriteTree(source, map[string]string{"a.esp": "a"})

	_, err := s.Install(ctx, "Dup", source, nil)
	require.NoError(t, err)

	_, err = s.Install(ctx, "Dup", source, nil)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrNameConflict), "got %v", err)
}

func TestStore_install_invalid_name(t *testing.T) {
	_, s := openStore(t)
	ctx := context.Background()

	for _, name := range []string{"", "a/b", `a\b`, "..", "."} {
		_, err := s.Install(ctx, name, "/nowhere", nil)
		require.Error(t, err, "name %q", name)
		assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput), "name %q got %v", name, err)
	}
}

func TestStore_create_empty_mod(t *testing.T) {
	env, s := openStore(t)
	ctx := context.Background()

	mod, err := s.Create(ctx, "My Patches")
	require.NoError(t, err)
	assert.Equal(t, "My Patches", mod.Name)
	assert.Empty(t, mod.Plugins)

	entries, err := env.FS.ReadDir(mod.PayloadRoot)
	require.NoError(t, err)
	assert.Empty(t, entries, "empty mod payload should have no files")

	_, err = s.Create(ctx, "My Patches")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrNameConflict), "got %v", err)
}

func TestStore_install_plan_mappings(t *testing.T) {
	env, s := openStore(t)
	ctx := context.Background()

	source := filepath.Join(env.HomeDir, "extracted", "WetAndCold")
	env.WriteTree(source, map[string]string{
		"00 Core/WetandCold.esp":     "core esp",
		"00 Core/textures/frost.dds": "core frost",
		"01 HD/textures/frost.dds":   "hd frost",
		"patches/survival.esp":       "patch",
		"skip/me.txt":                "not mapped",
	})

	mod, err := s.Install(ctx, "WetAndCold", source, []store.Mapping{
		{Source: "00 Core", Destination: "", IsFolder: true},
		{Source: "01 HD", Destination: "", IsFolder: true},
		{Source: "patches/survival.esp", Destination: "survival.esp"},
	})
	require.NoError(t, err)

	got := testutil.ReadTree(t, env.FS, mod.PayloadRoot)
	assert.Equal(t, map[string]string{
		"WetandCold.esp":     "core esp",
		"textures/frost.dds": "hd frost",
		"survival.esp":       "patch",
	}, got)
	assert.Equal(t, []string{"WetandCold.esp", "survival.esp"}, mod.Plugins)
}

func TestStore_install_missing_mapping_leaves_no_partial_payload(t *testing.T) {
	env, s := openStore(t)
	ctx := context.Background()

	source := filepath.Join(env.HomeDir, "src")
	env.WriteTree(source, map[string]string{"present.esp": "x"})

	_, err := s.Install(ctx, "Broken", source, []store.Mapping{
		{Source: "present.esp", Destination: "present.esp"},
		{Source: "absent.esp", Destination: "absent.esp"},
	})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound), "got %v", err)

	_, statErr := env.FS.Stat(env.Paths.ModDir("Broken"))
	assert.Error(t, statErr, "no payload directory may exist")

	staged, err := env.FS.ReadDir(env.Paths.StagingDir())
	require.NoError(t, err)
	assert.Empty(t, staged, "staging area must be cleaned up")

	_, err = s.Get(ctx, "Broken")
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound))
}

func TestStore_replace(t *testing.T) {
	env, s := openStore(t)
	ctx := context.Background()

	v1 := filepath.Join(env.HomeDir, "v1")
	env.WriteTree(v1, map[string]string{"old.esp": "v1", "gone.txt": "v1"})
	v2 := filepath.Join(env.HomeDir, "v2")
	env.WriteTree(v2, map[string]string{"new.esp": "v2"})

	_, err := s.Install(ctx, "Mod", v1, nil)
	require.NoError(t, err)

	mod, err := s.Replace(ctx, "Mod", v2, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"new.esp"}, mod.Plugins)

	got := testutil.ReadTree(t, env.FS, mod.PayloadRoot)
	assert.Equal(t, map[string]string{"new.esp": "v2"}, got)

	entries, err := env.FS.ReadDir(filepath.Dir(mod.PayloadRoot))
	require.NoError(t, err)
	require.Len(t, entries, 1, "old payload must be removed")
	assert.Equal(t, "Mod", entries[0].Name())
}

func TestStore_replace_missing_mod(t *testing.T) {
	env, s := openStore(t)

	source := filepath.Join(env.HomeDir, "src")
	env.WriteTree(source, map[string]string{"a.esp": "a"})

	_, err := s.Replace(context.Background(), "Ghost", source, nil)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound), "got %v", err)
}

func TestStore_uninstall_refused_while_referenced(t *testing.T) {
	env, s := openStore(t)
	ctx := context.Background()

	source := filepath.Join(env.HomeDir, "src")
	env.WriteTree(source, map[string]string{"a.esp": "a"})
	_, err := s.Install(ctx, "Wanted", source, nil)
	require.NoError(t, err)

	err = s.Uninstall(ctx, "Wanted", fakeRefs{profiles: []string{"Default", "Survival"}})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInUse), "got %v", err)
	assert.Contains(t, err.Error(), "Default")
	assert.Contains(t, err.Error(), "Survival")

	// Still installed.
	_, err = s.Get(ctx, "Wanted")
	require.NoError(t, err)

	// After the profiles drop the mod, uninstall succeeds.
	err = s.Uninstall(ctx, "Wanted", fakeRefs{})
	require.NoError(t, err)

	_, err = s.Get(ctx, "Wanted")
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound))
	_, statErr := env.FS.Stat(env.Paths.ModDir("Wanted"))
	assert.Error(t, statErr, "payload directory must be removed")
}

func TestStore_uninstall_missing_mod(t *testing.T) {
	_, s := openStore(t)

	err := s.Uninstall(context.Background(), "Ghost", fakeRefs{})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound), "got %v", err)
}

func TestStore_plugin_scan_top_level_only(t *testing.T) {
	env, s := openStore(t)
	ctx := context.Background()

	source := filepath.Join(env.HomeDir, "src")
	env.WriteTree(source, map[string]string{
		"Base.esm":         "esm",
		"SkyUI.esp":        "esp",
		"light.esl":        "esl",
		"readme.txt":       "docs",
		"extra/nested.esp": "ignored",
	})

	mod, err := s.Install(ctx, "Scan", source, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Base.esm", "SkyUI.esp", "light.esl"}, mod.Plugins)
}
