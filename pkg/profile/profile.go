// Package profile is the source of truth for what is active and in
// what order. A profile holds an ordered mod list with enabled flags
// and an independent plugin order, persisted as profile.toml in the
// profile's config directory alongside its Overwrite and AppData trees.
package profile

import (
	"strings"
)

// ModEntry is one position in a profile's mod order. Disabled entries
// keep their position so re-enabling restores it.
type ModEntry struct {
	Name    string `toml:"name"`
	Enabled bool   `toml:"enabled"`
}

// Profile describes one configuration of the game
type Profile struct {
	Name string     `toml:"name"`
	Mods []ModEntry `toml:"mods,omitempty"`
	// PluginOrder is the explicitly requested load order. Plugins of
	// active mods not listed here are appended by EffectiveLoadOrder.
	PluginOrder []string `toml:"plugin_order,omitempty"`
}

// DefaultProfileName is created on first use when no profile exists
const DefaultProfileName = "Default"

// ActiveMods returns the enabled mod names in order
func (p *Profile) ActiveMods() []string {
	var active []string
	for _, entry := range p.Mods {
		if entry.Enabled {
			active = append(active, entry.Name)
		}
	}
	return active
}

// References reports whether the profile lists the mod, enabled or not
func (p *Profile) References(modName string) bool {
	return p.entryIndex(modName) >= 0
}

// Enabled reports whether the mod participates in the overlay stack
func (p *Profile) Enabled(modName string) bool {
	i := p.entryIndex(modName)
	return i >= 0 && p.Mods[i].Enabled
}

func (p *Profile) entryIndex(modName string) int {
	for i, entry := range p.Mods {
		if entry.Name == modName {
			return i
		}
	}
	return -1
}

// pluginKey folds plugin file names for comparison; the game treats
// data file names case-insensitively.
func pluginKey(name string) string {
	return strings.ToLower(name)
}
