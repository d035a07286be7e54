package config

import (
	"github.com/nukeythenuke/torygg/pkg/errors"
)

// Deploy modes
const (
	DeployModeOverlay = "overlay"
	DeployModeCopy    = "copy"
)

// Overlay backends
const (
	OverlayBackendFuse   = "fuse"
	OverlayBackendKernel = "kernel"
)

// Config holds the resolved torygg configuration
type Config struct {
	// Game selects which Steam title torygg manages
	Game string `koanf:"game"`

	// GameDataDir overrides Steam library discovery when set
	GameDataDir string `koanf:"game_data_dir"`

	Deploy  DeployConfig  `koanf:"deploy"`
	Overlay OverlayConfig `koanf:"overlay"`
	Tools   ToolsConfig   `koanf:"tools"`
	Steam   SteamConfig   `koanf:"steam"`
}

// DeployConfig selects how a profile reaches the game directory
type DeployConfig struct {
	// Mode is either "overlay" or "copy"
	Mode string `koanf:"mode"`
}

// OverlayConfig tunes the union mount backend
type OverlayConfig struct {
	// Backend is either "fuse" or "kernel"
	Backend string `koanf:"backend"`
}

// ToolsConfig names the external executables torygg shells out to
type ToolsConfig struct {
	SevenZip      string `koanf:"seven_zip"`
	FuseOverlayfs string `koanf:"fuse_overlayfs"`
	Fusermount    string `koanf:"fusermount"`
	Protontricks  string `koanf:"protontricks"`
}

// SteamConfig locates the Steam installation
type SteamConfig struct {
	Root string `koanf:"root"`
}

// Validate checks enum-valued fields and returns a coded error for
// the first violation found.
func (c *Config) Validate() error {
	switch c.Deploy.Mode {
	case DeployModeOverlay, DeployModeCopy:
	default:
		return errors.Newf(errors.ErrConfigValid, "invalid deploy mode %q", c.Deploy.Mode).
			WithDetail("field", "deploy.mode")
	}

	switch c.Overlay.Backend {
	case OverlayBackendFuse, OverlayBackendKernel:
	default:
		return errors.Newf(errors.ErrConfigValid, "invalid overlay backend %q", c.Overlay.Backend).
			WithDetail("field", "overlay.backend")
	}

	if c.Game == "" {
		return errors.New(errors.ErrConfigValid, "game must be set").
			WithDetail("field", "game")
	}

	return nil
}
