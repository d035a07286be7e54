// Package games knows the Steam titles torygg can manage and how to
// locate their installations through Steam's library metadata.
package games

import (
	"bytes"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nukeythenuke/torygg/pkg/errors"
	"github.com/nukeythenuke/torygg/pkg/types"
	"github.com/nukeythenuke/torygg/pkg/vdf"
)

// SteamApp describes a managed game.
// Name is the directory inside "steamapps/common" that the app is
// installed into. ModLoaderExecutable is preferred over Executable at
// launch when present, e.g. skse64_loader.exe.
type SteamApp struct {
	AppID               int
	Name                string
	Executable          string
	ModLoaderExecutable string
}

var (
	// Skyrim is the 2011 release
	Skyrim = SteamApp{
		AppID:      72850,
		Name:       "Skyrim",
		Executable: "Skyrim.exe",
	}

	// SkyrimSE is the Special Edition re-release
	SkyrimSE = SteamApp{
		AppID:               489830,
		Name:                "Skyrim Special Edition",
		Executable:          "SkyrimSE.exe",
		ModLoaderExecutable: "skse64_loader.exe",
	}
)

// ByName resolves the configuration name of a game
func ByName(name string) (*SteamApp, error) {
	switch name {
	case "skyrim":
		return &Skyrim, nil
	case "skyrimse":
		return &SkyrimSE, nil
	default:
		return nil, errors.Newf(errors.ErrInvalidInput, "unknown game %q", name).
			WithDetail("game", name)
	}
}

// LibraryFoldersPath returns the path of Steam's library index file
func LibraryFoldersPath(steamRoot string) string {
	return filepath.Join(steamRoot, "config", "libraryfolders.vdf")
}

// Library returns the Steam library root containing the app, found by
// scanning libraryfolders.vdf for a libraryfolders/<id>/apps/<appid> key.
func Library(fs types.FS, steamRoot string, app *SteamApp) (string, error) {
	vdfPath := LibraryFoldersPath(steamRoot)
	data, err := fs.ReadFile(vdfPath)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrNotFound, "failed to read %s", vdfPath).
			WithDetail("path", vdfPath)
	}

	kvs, err := vdf.Parse(bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	appID := strconv.Itoa(app.AppID)
	for key := range kvs {
		// Key we want: libraryfolders/<lib_id>/apps/<appid>
		parts := strings.Split(key, "/")
		if len(parts) == 4 && parts[2] == "apps" && parts[3] == appID {
			pathKey := strings.Join([]string{parts[0], parts[1], "path"}, "/")
			if library, ok := kvs[pathKey]; ok {
				return library, nil
			}
		}
	}

	return "", errors.Newf(errors.ErrNotFound, "no steam library contains app %d", app.AppID).
		WithDetail("appid", app.AppID).
		WithDetail("game", app.Name)
}

// InstallDir returns the game's installation directory
func InstallDir(fs types.FS, steamRoot string, app *SteamApp) (string, error) {
	library, err := Library(fs, steamRoot, app)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(library, "steamapps", "common", app.Name)
	if _, err := fs.Stat(dir); err != nil {
		return "", errors.Wrapf(err, errors.ErrNotFound, "game directory %s does not exist", dir).
			WithDetail("path", dir).
			WithDetail("game", app.Name)
	}
	return dir, nil
}

// DataDir returns the game's Data directory, the mount target of every
// overlay stack.
func DataDir(fs types.FS, steamRoot string, app *SteamApp) (string, error) {
	installDir, err := InstallDir(fs, steamRoot, app)
	if err != nil {
		return "", err
	}
	return filepath.Join(installDir, "Data"), nil
}

// ExecutablePath picks the binary to launch: the mod loader when it is
// installed, the stock executable otherwise.
func (a *SteamApp) ExecutablePath(fs types.FS, installDir string) string {
	if a.ModLoaderExecutable != "" {
		loader := filepath.Join(installDir, a.ModLoaderExecutable)
		if _, err := fs.Stat(loader); err == nil {
			return loader
		}
	}
	return filepath.Join(installDir, a.Executable)
}
