package config

import (
	_ "embed"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	toryggerr "github.com/nukeythenuke/torygg/pkg/errors"
)

//go:embed embedded/defaults.toml
var defaultFileContent []byte

// EnvPrefix is the prefix for configuration environment variables.
// A double underscore separates nesting levels, so TORYGG_DEPLOY__MODE
// maps to deploy.mode while TORYGG_GAME_DATA_DIR maps to game_data_dir.
const EnvPrefix = "TORYGG_"

// systemDefaults is the built-in configuration. The embedded template
// mirrors these values for users to start from.
func systemDefaults() map[string]interface{} {
	return map[string]interface{}{
		"game":                 "skyrimse",
		"game_data_dir":        "",
		"deploy.mode":          DeployModeOverlay,
		"overlay.backend":      OverlayBackendFuse,
		"tools.seven_zip":      "7z",
		"tools.fuse_overlayfs": "fuse-overlayfs",
		"tools.fusermount":     "fusermount3",
		"tools.protontricks":   "protontricks",
		"steam.root":           "~/.steam/root",
	}
}

// DefaultFileContent returns the annotated config.toml template
func DefaultFileContent() []byte {
	return defaultFileContent
}

// Load builds the configuration from built-in defaults, the given
// config file (skipped when absent) and TORYGG_ environment variables,
// in ascending priority.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	// 1. Load built-in defaults
	if err := k.Load(confmap.Provider(systemDefaults(), "."), nil); err != nil {
		return nil, toryggerr.Wrap(err, toryggerr.ErrConfigLoad, "failed to load defaults")
	}

	// 2. Load the user config file if it exists
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
				return nil, toryggerr.Wrapf(err, toryggerr.ErrConfigLoad,
					"failed to load config from %s", configPath).
					WithDetail("path", configPath)
			}
		}
	}

	// 3. Load env vars
	if err := k.Load(env.Provider(EnvPrefix, ".", envKeyTransform), nil); err != nil {
		return nil, toryggerr.Wrap(err, toryggerr.ErrConfigLoad, "failed to load env vars")
	}

	// 4. Unmarshal
	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, toryggerr.Wrap(err, toryggerr.ErrConfigLoad, "failed to unmarshal configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// envKeyTransform maps TORYGG_DEPLOY__MODE to deploy.mode. Single
// underscores stay part of the key so game_data_dir remains reachable.
func envKeyTransform(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}
