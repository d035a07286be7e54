// pkg/testutil/environment.go
// DEPENDENCIES: None (base test utilities)
// PURPOSE: Orchestrate test environments with proper dependencies

package testutil

import (
	"path/filepath"
	"testing"

	"github.com/nukeythenuke/torygg/pkg/filesystem"
	"github.com/nukeythenuke/torygg/pkg/paths"
	"github.com/nukeythenuke/torygg/pkg/types"
)

// EnvType defines the type of test environment
type EnvType int

const (
	EnvMemoryOnly EnvType = iota // Pure in-memory, no real filesystem
	EnvIsolated                  // Real filesystem in temp directory
)

// TestEnvironment provides a complete test environment with all dependencies
type TestEnvironment struct {
	// Core paths
	DataDir   string
	ConfigDir string
	HomeDir   string

	// GameDataDir points at a fake game Data directory
	GameDataDir string

	// Core dependencies
	FS    types.FS
	Paths paths.Paths

	// Environment type
	Type EnvType

	// Test context
	t *testing.T
}

// NewTestEnvironment creates a new test environment. Both variants
// redirect torygg's data and config trees away from the user's home.
func NewTestEnvironment(t *testing.T, envType EnvType) *TestEnvironment {
	t.Helper()

	env := &TestEnvironment{
		t:    t,
		Type: envType,
	}

	switch envType {
	case EnvMemoryOnly:
		env.HomeDir = "/virtual/home"
		env.DataDir = "/virtual/data/torygg"
		env.ConfigDir = "/virtual/config/torygg"
		env.GameDataDir = "/virtual/game/Data"
		env.FS = filesystem.NewMemory()
	case EnvIsolated:
		tempDir := t.TempDir()
		env.HomeDir = filepath.Join(tempDir, "home")
		env.DataDir = filepath.Join(tempDir, "data", "torygg")
		env.ConfigDir = filepath.Join(tempDir, "config", "torygg")
		env.GameDataDir = filepath.Join(tempDir, "game", "Data")
		env.FS = filesystem.NewOS()
	}

	// Point torygg at the isolated tree
	t.Setenv("HOME", env.HomeDir)
	t.Setenv(paths.EnvDataDir, env.DataDir)
	t.Setenv(paths.EnvConfigDir, env.ConfigDir)
	t.Setenv("XDG_STATE_HOME", filepath.Join(env.HomeDir, ".local", "state"))

	pathsInstance, err := paths.New()
	if err != nil {
		t.Fatalf("Failed to create paths: %v", err)
	}
	env.Paths = pathsInstance

	if err := pathsInstance.EnsureBaseLayout(env.FS); err != nil {
		t.Fatalf("Failed to create base layout: %v", err)
	}
	if err := env.FS.MkdirAll(env.GameDataDir, 0755); err != nil {
		t.Fatalf("Failed to create game data dir: %v", err)
	}

	return env
}

// WriteTree writes files under base. Keys are slash-separated relative
// paths, values are file contents. Parent directories are created.
func (env *TestEnvironment) WriteTree(base string, files map[string]string) {
	env.t.Helper()
	WriteTree(env.t, env.FS, base, files)
}

// WriteModPayload writes a mod payload tree under the store's mods
// directory and returns the payload root.
func (env *TestEnvironment) WriteModPayload(name string, files map[string]string) string {
	env.t.Helper()

	root := env.Paths.ModDir(name)
	WriteTree(env.t, env.FS, root, files)
	return root
}

// WriteGameData populates the fake game Data directory
func (env *TestEnvironment) WriteGameData(files map[string]string) {
	env.t.Helper()
	WriteTree(env.t, env.FS, env.GameDataDir, files)
}

// WriteTree writes a file map rooted at base using the given filesystem
func WriteTree(t *testing.T, fs types.FS, base string, files map[string]string) {
	t.Helper()

	if err := fs.MkdirAll(base, 0755); err != nil {
		t.Fatalf("Failed to create base directory %s: %v", base, err)
	}
	for rel, content := range files {
		fullPath := filepath.Join(base, filepath.FromSlash(rel))
		if dir := filepath.Dir(fullPath); dir != "." {
			if err := fs.MkdirAll(dir, 0755); err != nil {
				t.Fatalf("Failed to create directory %s: %v", dir, err)
			}
		}
		if err := fs.WriteFile(fullPath, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write file %s: %v", fullPath, err)
		}
	}
}

// ReadTree walks base and returns the relative path -> content map of
// every regular file underneath it. Useful for before/after comparisons.
func ReadTree(t *testing.T, fs types.FS, base string) map[string]string {
	t.Helper()

	out := make(map[string]string)
	var walk func(dir string)
	walk = func(dir string) {
		entries, err := fs.ReadDir(dir)
		if err != nil {
			t.Fatalf("Failed to read directory %s: %v", dir, err)
		}
		for _, entry := range entries {
			full := filepath.Join(dir, entry.Name())
			if entry.IsDir() {
				walk(full)
				continue
			}
			data, err := fs.ReadFile(full)
			if err != nil {
				t.Fatalf("Failed to read file %s: %v", full, err)
			}
			rel, err := filepath.Rel(base, full)
			if err != nil {
				t.Fatalf("Failed to relativize %s: %v", full, err)
			}
			out[filepath.ToSlash(rel)] = string(data)
		}
	}
	walk(base)
	return out
}
