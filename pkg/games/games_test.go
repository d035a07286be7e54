// pkg/games/games_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: In-memory filesystem
// PURPOSE: Verify game lookup and Steam library discovery

package games_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nukeythenuke/torygg/pkg/errors"
	"github.com/nukeythenuke/torygg/pkg/filesystem"
	"github.com/nukeythenuke/torygg/pkg/games"
)

const libraryFolders = `"libraryfolders"
{
    "0"
    {
        "path" "/home/tester/.local/share/Steam"
        "apps"
        {
            "220" "123"
        }
    }
    "1"
    {
        "path" "/mnt/storage/SteamLibrary"
        "apps"
        {
            "489830" "9255977546"
        }
    }
}
`

func TestByName(t *testing.T) {
	t.Run("skyrim", func(t *testing.T) {
		app, err := games.ByName("skyrim")
		require.NoError(t, err)
		assert.Equal(t, 72850, app.AppID)
		assert.Equal(t, "Skyrim", app.Name)
		assert.Empty(t, app.ModLoaderExecutable)
	})

	t.Run("skyrimse", func(t *testing.T) {
		app, err := games.ByName("skyrimse")
		require.NoError(t, err)
		assert.Equal(t, 489830, app.AppID)
		assert.Equal(t, "Skyrim Special Edition", app.Name)
		assert.Equal(t, "skse64_loader.exe", app.ModLoaderExecutable)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := games.ByName("oblivion")
		require.Error(t, err)
		assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
	})
}

func TestLibrary(t *testing.T) {
	fs := filesystem.NewMemory()
	steamRoot := "/home/tester/.steam/root"
	vdfPath := games.LibraryFoldersPath(steamRoot)
	require.NoError(t, fs.MkdirAll(filepath.Dir(vdfPath), 0755))
	require.NoError(t, fs.WriteFile(vdfPath, []byte(libraryFolders), 0644))

	t.Run("app_found_in_second_library", func(t *testing.T) {
		library, err := games.Library(fs, steamRoot, &games.SkyrimSE)
		require.NoError(t, err)
		assert.Equal(t, "/mnt/storage/SteamLibrary", library)
	})

	t.Run("app_not_in_any_library", func(t *testing.T) {
		_, err := games.Library(fs, steamRoot, &games.Skyrim)
		require.Error(t, err)
		assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound))
	})

	t.Run("missing_vdf", func(t *testing.T) {
		_, err := games.Library(fs, "/nonexistent", &games.SkyrimSE)
		require.Error(t, err)
		assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound))
	})
}

func TestInstallDir(t *testing.T) {
	fs := filesystem.NewMemory()
	steamRoot := "/steam"
	vdfPath := games.LibraryFoldersPath(steamRoot)
	require.NoError(t, fs.MkdirAll(filepath.Dir(vdfPath), 0755))
	require.NoError(t, fs.WriteFile(vdfPath, []byte(libraryFolders), 0644))

	installDir := "/mnt/storage/SteamLibrary/steamapps/common/Skyrim Special Edition"

	t.Run("missing_directory", func(t *testing.T) {
		_, err := games.InstallDir(fs, steamRoot, &games.SkyrimSE)
		require.Error(t, err)
		assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound))
	})

	t.Run("directory_present", func(t *testing.T) {
		require.NoError(t, fs.MkdirAll(installDir, 0755))

		got, err := games.InstallDir(fs, steamRoot, &games.SkyrimSE)
		require.NoError(t, err)
		assert.Equal(t, installDir, got)

		dataDir, err := games.DataDir(fs, steamRoot, &games.SkyrimSE)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(installDir, "Data"), dataDir)
	})
}

func TestExecutablePath(t *testing.T) {
	fs := filesystem.NewMemory()
	installDir := "/games/Skyrim Special Edition"
	require.NoError(t, fs.MkdirAll(installDir, 0755))

	t.Run("falls_back_to_stock_executable", func(t *testing.T) {
		got := games.SkyrimSE.ExecutablePath(fs, installDir)
		assert.Equal(t, filepath.Join(installDir, "SkyrimSE.exe"), got)
	})

	t.Run("prefers_mod_loader_when_present", func(t *testing.T) {
		loader := filepath.Join(installDir, "skse64_loader.exe")
		require.NoError(t, fs.WriteFile(loader, []byte("MZ"), 0755))

		got := games.SkyrimSE.ExecutablePath(fs, installDir)
		assert.Equal(t, loader, got)
	})
}
