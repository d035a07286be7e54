package profile

import (
	"context"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"

	"github.com/nukeythenuke/torygg/pkg/errors"
	"github.com/nukeythenuke/torygg/pkg/logging"
	"github.com/nukeythenuke/torygg/pkg/paths"
	"github.com/nukeythenuke/torygg/pkg/store"
	"github.com/nukeythenuke/torygg/pkg/types"
)

// Catalog is the read-only store view the profile layer validates
// against. *store.Store satisfies it.
type Catalog interface {
	Get(ctx context.Context, name string) (*store.Mod, error)
	List(ctx context.Context) ([]store.Mod, error)
}

// Manager owns profile persistence and the ordering operations
type Manager struct {
	logger  zerolog.Logger
	paths   paths.Paths
	fs      types.FS
	catalog Catalog
}

// NewManager creates a profile manager backed by the given catalog
func NewManager(p paths.Paths, fsys types.FS, catalog Catalog) *Manager {
	return &Manager{
		logger:  logging.GetLogger("profile"),
		paths:   p,
		fs:      fsys,
		catalog: catalog,
	}
}

// Create makes a new profile directory with its Overwrite and AppData
// trees and writes an empty profile.toml.
func (m *Manager) Create(name string) (*Profile, error) {
	if err := validateProfileName(name); err != nil {
		return nil, err
	}
	if _, err := m.fs.Stat(m.paths.ProfileDir(name)); err == nil {
		return nil, errors.Newf(errors.ErrProfileExists, "profile %q already exists", name).
			WithDetail("profile", name)
	}

	for _, dir := range []string{
		m.paths.ProfileDir(name),
		m.paths.OverwriteDir(name),
		m.paths.AppDataDir(name),
	} {
		if err := m.fs.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, errors.ErrIOFailure, "failed to create %s", dir)
		}
	}

	profile := &Profile{Name: name}
	if err := m.Save(profile); err != nil {
		return nil, err
	}

	m.logger.Info().Str("profile", name).Msg("Profile created")
	return profile, nil
}

// Load reads a profile from disk
func (m *Manager) Load(name string) (*Profile, error) {
	data, err := m.fs.ReadFile(m.paths.ProfileConfigPath(name))
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrUnknownProfile, "profile %q does not exist", name).
			WithDetail("profile", name)
	}

	var profile Profile
	if err := toml.Unmarshal(data, &profile); err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigLoad, "failed to parse profile %s", name)
	}
	// The directory name is authoritative.
	profile.Name = name
	return &profile, nil
}

// Save writes the profile back to its profile.toml
func (m *Manager) Save(profile *Profile) error {
	data, err := toml.Marshal(profile)
	if err != nil {
		return errors.Wrapf(err, errors.ErrInternal, "failed to serialize profile %s", profile.Name)
	}
	path := m.paths.ProfileConfigPath(profile.Name)
	if err := m.fs.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrIOFailure, "failed to write %s", path)
	}
	return nil
}

// EnsureDefault loads the Default profile, creating it on first use
func (m *Manager) EnsureDefault() (*Profile, error) {
	profile, err := m.Load(DefaultProfileName)
	if err == nil {
		return profile, nil
	}
	if !errors.IsErrorCode(err, errors.ErrUnknownProfile) {
		return nil, err
	}
	return m.Create(DefaultProfileName)
}

// List returns the names of all profiles
func (m *Manager) List() ([]string, error) {
	entries, err := m.fs.ReadDir(m.paths.ProfilesDir())
	if err != nil {
		return nil, nil
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := m.fs.Stat(m.paths.ProfileConfigPath(entry.Name())); err == nil {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes a profile and everything it captured. A mounted
// profile refuses deletion.
func (m *Manager) Delete(name string) error {
	if _, err := m.fs.Stat(m.paths.ProfileConfigPath(name)); err != nil {
		return errors.Newf(errors.ErrUnknownProfile, "profile %q does not exist", name).
			WithDetail("profile", name)
	}
	if _, err := m.fs.Stat(m.paths.MountRecordPath(name)); err == nil {
		return errors.Newf(errors.ErrOperationInProgress,
			"profile %q is mounted, unmount it first", name).
			WithDetail("profile", name)
	}

	if err := m.fs.RemoveAll(m.paths.ProfileDir(name)); err != nil {
		return errors.Wrapf(err, errors.ErrIOFailure, "failed to remove profile %s", name)
	}

	m.logger.Info().Str("profile", name).Msg("Profile deleted")
	return nil
}

// SetModOrder replaces the profile's mod order. Every name must be
// installed and unique. Enabled flags carry over by name; new entries
// start disabled.
func (m *Manager) SetModOrder(ctx context.Context, profile *Profile, ordered []string) error {
	seen := make(map[string]bool, len(ordered))
	for _, name := range ordered {
		if seen[name] {
			return errors.Newf(errors.ErrDuplicateEntry, "mod %q listed twice", name).
				WithDetail("mod", name)
		}
		seen[name] = true

		if _, err := m.catalog.Get(ctx, name); err != nil {
			if errors.IsErrorCode(err, errors.ErrNotFound) {
				return errors.Newf(errors.ErrUnknownMod, "mod %q is not installed", name).
					WithDetail("mod", name)
			}
			return err
		}
	}

	entries := make([]ModEntry, 0, len(ordered))
	for _, name := range ordered {
		entries = append(entries, ModEntry{Name: name, Enabled: profile.Enabled(name)})
	}
	profile.Mods = entries

	m.logger.Debug().
		Str("profile", profile.Name).
		Int("mods", len(entries)).
		Msg("Mod order replaced")
	return m.Save(profile)
}

// SetActive toggles a mod's participation in the overlay stack without
// changing its position. Activating a mod the profile does not list
// yet appends it.
func (m *Manager) SetActive(ctx context.Context, profile *Profile, name string, active bool) error {
	if _, err := m.catalog.Get(ctx, name); err != nil {
		if errors.IsErrorCode(err, errors.ErrNotFound) {
			return errors.Newf(errors.ErrUnknownMod, "mod %q is not installed", name).
				WithDetail("mod", name)
		}
		return err
	}

	i := profile.entryIndex(name)
	switch {
	case i >= 0:
		if profile.Mods[i].Enabled == active {
			return nil
		}
		profile.Mods[i].Enabled = active
	case active:
		profile.Mods = append(profile.Mods, ModEntry{Name: name, Enabled: true})
	default:
		return nil
	}

	m.logger.Debug().
		Str("profile", profile.Name).
		Str("mod", name).
		Bool("active", active).
		Msg("Mod activation changed")
	return m.Save(profile)
}

// SetPluginOrder replaces the explicit plugin order. Entries not
// contributed by a currently active mod are dropped, not errored,
// since activation state changes independently.
func (m *Manager) SetPluginOrder(ctx context.Context, profile *Profile, ordered []string) error {
	available, err := m.activePlugins(ctx, profile)
	if err != nil {
		return err
	}
	canonical := make(map[string]string, len(available))
	for _, plugin := range available {
		canonical[pluginKey(plugin.name)] = plugin.name
	}

	var kept []string
	seen := make(map[string]bool)
	for _, name := range ordered {
		key := pluginKey(name)
		actual, ok := canonical[key]
		if !ok {
			m.logger.Debug().
				Str("profile", profile.Name).
				Str("plugin", name).
				Msg("Dropping plugin not contributed by an active mod")
			continue
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, actual)
	}

	profile.PluginOrder = kept
	return m.Save(profile)
}

// EffectiveLoadOrder computes the final plugin order: the explicit
// order first (filtered to active mods' plugins), then every remaining
// plugin ordered by mod position and the index recorded at install.
func (m *Manager) EffectiveLoadOrder(ctx context.Context, profile *Profile) ([]string, error) {
	available, err := m.activePlugins(ctx, profile)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]activePlugin, len(available))
	for _, plugin := range available {
		byKey[pluginKey(plugin.name)] = plugin
	}

	var order []string
	used := make(map[string]bool)
	for _, name := range profile.PluginOrder {
		key := pluginKey(name)
		plugin, ok := byKey[key]
		if !ok || used[key] {
			continue
		}
		used[key] = true
		order = append(order, plugin.name)
	}

	rest := make([]activePlugin, 0, len(available))
	for _, plugin := range available {
		if !used[pluginKey(plugin.name)] {
			rest = append(rest, plugin)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool {
		if rest[i].modPosition != rest[j].modPosition {
			return rest[i].modPosition < rest[j].modPosition
		}
		return rest[i].index < rest[j].index
	})
	for _, plugin := range rest {
		order = append(order, plugin.name)
	}

	return order, nil
}

// References lists the profiles whose mod list contains the mod,
// enabled or not. This is the store's uninstall reference check.
func (m *Manager) References(modName string) ([]string, error) {
	names, err := m.List()
	if err != nil {
		return nil, err
	}

	var referencing []string
	for _, name := range names {
		profile, err := m.Load(name)
		if err != nil {
			return nil, err
		}
		if profile.References(modName) {
			referencing = append(referencing, name)
		}
	}
	return referencing, nil
}

// activePlugin is one plugin contributed by an active mod
type activePlugin struct {
	name        string
	modPosition int
	index       int
}

// activePlugins lists the plugins of the profile's active mods. A
// plugin file two mods both ship appears once, owned by the later
// mod, matching the overlay's later-wins rule.
func (m *Manager) activePlugins(ctx context.Context, profile *Profile) ([]activePlugin, error) {
	byKey := make(map[string]int)
	var plugins []activePlugin

	position := 0
	for _, entry := range profile.Mods {
		if !entry.Enabled {
			continue
		}
		mod, err := m.catalog.Get(ctx, entry.Name)
		if err != nil {
			if errors.IsErrorCode(err, errors.ErrNotFound) {
				m.logger.Warn().
					Str("profile", profile.Name).
					Str("mod", entry.Name).
					Msg("Active mod missing from store, skipping")
				position++
				continue
			}
			return nil, err
		}
		for index, name := range mod.Plugins {
			plugin := activePlugin{name: name, modPosition: position, index: index}
			if i, ok := byKey[pluginKey(name)]; ok {
				plugins[i] = plugin
				continue
			}
			byKey[pluginKey(name)] = len(plugins)
			plugins = append(plugins, plugin)
		}
		position++
	}

	return plugins, nil
}

func validateProfileName(name string) error {
	if name == "" {
		return errors.New(errors.ErrInvalidInput, "profile name must not be empty")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return errors.Newf(errors.ErrInvalidInput, "invalid profile name %q", name)
	}
	return nil
}
