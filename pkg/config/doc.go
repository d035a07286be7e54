// Package config handles configuration management for torygg.
// It layers embedded defaults, the user's config.toml and TORYGG_
// environment variables into a single resolved Config.
package config
