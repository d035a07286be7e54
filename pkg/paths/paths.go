// Package paths provides centralized path handling for torygg.
// It implements XDG Base Directory specification compliance and
// provides a consistent API for all path operations in the codebase.
package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"

	"github.com/nukeythenuke/torygg/pkg/errors"
	"github.com/nukeythenuke/torygg/pkg/types"
)

// Environment variable names
const (
	// EnvDataDir overrides the XDG data directory for torygg
	EnvDataDir = "TORYGG_DATA_DIR"

	// EnvConfigDir overrides the XDG config directory for torygg
	EnvConfigDir = "TORYGG_CONFIG_DIR"

	// EnvHome is the standard home directory variable
	EnvHome = "HOME"
)

// Default directories and files
// IMPORTANT: These constants define torygg's internal on-disk layout and
// are NOT user-configurable. They must remain consistent across all torygg
// installations to ensure proper operation. User-configurable paths should
// be added to pkg/config instead.
const (
	// ToryggDirName is the directory name for torygg-specific files
	ToryggDirName = "torygg"

	// ModsDirName is the subdirectory holding installed mod payloads
	ModsDirName = "mods"

	// StagingDirName is the scratch subdirectory used during installs
	StagingDirName = "staging"

	// WorkDirName is the subdirectory holding overlayfs work directories
	WorkDirName = "work"

	// ProfilesDirName is the subdirectory holding profiles
	ProfilesDirName = "profiles"

	// CatalogFileName is the mod catalog database file
	CatalogFileName = "catalog.db"

	// ProfileConfigFileName is the per-profile configuration file
	ProfileConfigFileName = "profile.toml"

	// OverwriteDirName is a profile's writable overlay layer
	OverwriteDirName = "Overwrite"

	// AppDataDirName is a profile's game configuration directory
	AppDataDirName = "AppData"

	// MountRecordFileName marks a profile as mounted
	MountRecordFileName = "mount.toml"

	// LockFileName is the per-profile operation lock file
	LockFileName = ".lock"

	// StateFileName persists engine-level state such as the current profile
	StateFileName = "state.toml"

	// PluginsFileName is the load-order file the game reads
	PluginsFileName = "Plugins.txt"

	// ConfigFileName is the user configuration file
	ConfigFileName = "config.toml"

	// LogFileName is the name of the log file
	LogFileName = "torygg.log"
)

// Paths provides centralized path management for torygg
type Paths interface {
	types.Pather

	ProfileConfigPath(profile string) string
	MountRecordPath(profile string) string
	LockPath(profile string) string
	BaseLayerDir(profile string) string
	ModDir(mod string) string
	ConfigFilePath() string
	LogFilePath() string
	NormalizePath(path string) (string, error)
	EnsureBaseLayout(fs types.FS) error
}

// paths provides centralized path management for torygg
type paths struct {
	// xdgData is the XDG data directory
	xdgData string

	// xdgConfig is the XDG config directory
	xdgConfig string

	// xdgState is the XDG state directory
	xdgState string
}

// New creates a new Paths instance. Directories honor the
// TORYGG_DATA_DIR and TORYGG_CONFIG_DIR environment overrides.
func New() (Paths, error) {
	p := &paths{}
	if err := p.setupXDGDirs(); err != nil {
		return nil, err
	}
	return p, nil
}

// setupXDGDirs initializes XDG directories, respecting environment overrides
func (p *paths) setupXDGDirs() error {
	// Data directory
	if dataDir := os.Getenv(EnvDataDir); dataDir != "" {
		p.xdgData = expandHome(dataDir)
	} else {
		p.xdgData = filepath.Join(xdg.DataHome, ToryggDirName)
	}

	// Config directory
	if configDir := os.Getenv(EnvConfigDir); configDir != "" {
		p.xdgConfig = expandHome(configDir)
	} else {
		p.xdgConfig = filepath.Join(xdg.ConfigHome, ToryggDirName)
	}

	// State directory - XDG doesn't provide StateHome, so we check manually
	if stateDir := os.Getenv("XDG_STATE_HOME"); stateDir != "" {
		p.xdgState = filepath.Join(stateDir, ToryggDirName)
	} else {
		homeDir, _ := os.UserHomeDir()
		p.xdgState = filepath.Join(homeDir, ".local", "state", ToryggDirName)
	}

	return nil
}

// expandHome expands ~ to the home directory
func expandHome(path string) string {
	if path == "" {
		return path
	}

	if path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			// Fallback to HOME env var
			homeDir = os.Getenv(EnvHome)
			if homeDir == "" {
				// Can't expand, return as-is
				return path
			}
		}

		if len(path) == 1 {
			return homeDir
		}

		// Handle both ~/ and ~
		if path[1] == '/' || path[1] == filepath.Separator {
			return filepath.Join(homeDir, path[2:])
		}

		// ~something (not the user's home)
		return path
	}

	return path
}

// ExpandHome is a utility function that expands ~ in paths
func ExpandHome(path string) string {
	return expandHome(path)
}

// DataDir returns the XDG data directory for torygg
func (p *paths) DataDir() string {
	return p.xdgData
}

// ConfigDir returns the XDG config directory for torygg
func (p *paths) ConfigDir() string {
	return p.xdgConfig
}

// ModsDir returns the directory holding installed mod payloads
func (p *paths) ModsDir() string {
	return filepath.Join(p.xdgData, ModsDirName)
}

// ModDir returns the payload root of a single installed mod
func (p *paths) ModDir(mod string) string {
	return filepath.Join(p.ModsDir(), mod)
}

// StagingDir returns the scratch directory used while installing mods
func (p *paths) StagingDir() string {
	return filepath.Join(p.xdgData, StagingDirName)
}

// CatalogPath returns the path of the mod catalog database
func (p *paths) CatalogPath() string {
	return filepath.Join(p.xdgData, CatalogFileName)
}

// ProfilesDir returns the directory holding all profiles
func (p *paths) ProfilesDir() string {
	return filepath.Join(p.xdgConfig, ProfilesDirName)
}

// ProfileDir returns the directory of a single profile
func (p *paths) ProfileDir(name string) string {
	return filepath.Join(p.ProfilesDir(), name)
}

// ProfileConfigPath returns the path of a profile's configuration file
func (p *paths) ProfileConfigPath(profile string) string {
	return filepath.Join(p.ProfileDir(profile), ProfileConfigFileName)
}

// OverwriteDir returns a profile's writable overlay layer
func (p *paths) OverwriteDir(profile string) string {
	return filepath.Join(p.ProfileDir(profile), OverwriteDirName)
}

// AppDataDir returns a profile's game configuration directory
func (p *paths) AppDataDir(profile string) string {
	return filepath.Join(p.ProfileDir(profile), AppDataDirName)
}

// MountRecordPath returns the path of a profile's mount marker
func (p *paths) MountRecordPath(profile string) string {
	return filepath.Join(p.ProfileDir(profile), MountRecordFileName)
}

// LockPath returns the path of a profile's operation lock file
func (p *paths) LockPath(profile string) string {
	return filepath.Join(p.ProfileDir(profile), LockFileName)
}

// WorkDir returns a profile's overlayfs working directory.
// Work directories live on the data filesystem, next to the mods they join.
func (p *paths) WorkDir(profile string) string {
	return filepath.Join(p.xdgData, WorkDirName, profile)
}

// BaseLayerDir returns the always-empty directory mounted as a
// profile's bottom layer. The union primitives need at least one
// lower layer even when no mods are active.
func (p *paths) BaseLayerDir(profile string) string {
	return filepath.Join(p.xdgData, WorkDirName, profile+".base")
}

// StatePath returns the path of the persisted engine state file
func (p *paths) StatePath() string {
	return filepath.Join(p.xdgData, StateFileName)
}

// ConfigFilePath returns the path of the user configuration file
func (p *paths) ConfigFilePath() string {
	return filepath.Join(p.xdgConfig, ConfigFileName)
}

// LogFilePath returns the path to the torygg log file
// Respects XDG_STATE_HOME if set
func (p *paths) LogFilePath() string {
	return filepath.Join(p.xdgState, LogFileName)
}

// NormalizePath normalizes a path by expanding home, making it absolute,
// and cleaning it
func (p *paths) NormalizePath(path string) (string, error) {
	if path == "" {
		return "", errors.New(errors.ErrInvalidInput, "empty path")
	}

	// Expand home directory
	expanded := expandHome(path)

	// Make absolute
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrIOFailure, "failed to get absolute path")
	}

	// Clean the path
	return filepath.Clean(abs), nil
}

// EnsureBaseLayout creates the base directory tree torygg expects
func (p *paths) EnsureBaseLayout(fs types.FS) error {
	dirs := []string{
		p.DataDir(),
		p.ModsDir(),
		p.StagingDir(),
		filepath.Join(p.xdgData, WorkDirName),
		p.ConfigDir(),
		p.ProfilesDir(),
	}
	for _, dir := range dirs {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, errors.ErrIOFailure, "failed to create directory %s", dir).
				WithDetail("path", dir)
		}
	}
	return nil
}

// GetHomeDirectory returns the user's home directory with proper error handling
func GetHomeDirectory() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Try the HOME environment variable as a fallback
		if home := os.Getenv(EnvHome); home != "" {
			return home, nil
		}
		return "", errors.Wrapf(err, errors.ErrIOFailure, "failed to get home directory")
	}
	return homeDir, nil
}
