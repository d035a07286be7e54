// Package deploy orchestrates profile deployment: it resolves a
// profile's layer stack from the store and profile model, drives the
// overlay engine or the copy fallback per configured mode, reports
// path collisions between active mods, and writes the game's
// load-order file. It also enforces the single-operator rule with a
// per-profile lock.
package deploy

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nukeythenuke/torygg/pkg/config"
	"github.com/nukeythenuke/torygg/pkg/errors"
	"github.com/nukeythenuke/torygg/pkg/logging"
	"github.com/nukeythenuke/torygg/pkg/overlay"
	"github.com/nukeythenuke/torygg/pkg/paths"
	"github.com/nukeythenuke/torygg/pkg/profile"
	"github.com/nukeythenuke/torygg/pkg/types"
)

// Settings is the resolved deployment configuration.
type Settings struct {
	// Mode is config.DeployModeOverlay or config.DeployModeCopy.
	Mode string

	// GameDataDir is the directory the game loads data from, the
	// target of every mount or copy.
	GameDataDir string
}

// Collision describes one game-relative path provided by more than
// one active mod. Providers are ordered lowest precedence first, so
// the last provider is the one whose file is visible.
type Collision struct {
	Path      string
	Providers []string
	Winner    string
}

// Result reports what a mount or deploy did.
type Result struct {
	Profile       string
	Mode          string
	EmptyStack    bool
	Collisions    []Collision
	LoadOrderFile string
}

// Coordinator wires the store, profile model, and overlay engine into
// the deployment operations the CLI exposes.
type Coordinator struct {
	logger   zerolog.Logger
	paths    paths.Paths
	fs       types.FS
	catalog  profile.Catalog
	profiles *profile.Manager
	engine   *overlay.Engine
	copier   *overlay.CopyDeployer
	settings Settings

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Options carries the Coordinator's collaborators.
type Options struct {
	Paths    paths.Paths
	FS       types.FS
	Catalog  profile.Catalog
	Profiles *profile.Manager
	Engine   *overlay.Engine
	Copier   *overlay.CopyDeployer
	Settings Settings
}

// New returns a Coordinator. The catalog is the installed-mod lookup
// (the store satisfies it), and the engine's mounter decides the
// union backend.
func New(opts Options) *Coordinator {
	return &Coordinator{
		logger:   logging.GetLogger("deploy"),
		paths:    opts.Paths,
		fs:       opts.FS,
		catalog:  opts.Catalog,
		profiles: opts.Profiles,
		engine:   opts.Engine,
		copier:   opts.Copier,
		settings: opts.Settings,
		locks:    make(map[string]*sync.Mutex),
	}
}

// Mount computes the collision report, mounts the profile's stack at
// the game data dir, and writes the load-order file.
func (c *Coordinator) Mount(ctx context.Context, profileName string) (*Result, error) {
	release, err := c.lockProfile(profileName)
	if err != nil {
		return nil, err
	}
	defer release()

	prof, err := c.profiles.Load(profileName)
	if err != nil {
		return nil, err
	}

	stack, layers, err := c.stack(ctx, prof)
	if err != nil {
		return nil, err
	}
	collisions, err := c.collide(layers)
	if err != nil {
		return nil, err
	}

	if err := c.engine.Mount(ctx, profileName, stack); err != nil {
		return nil, err
	}

	loadOrderFile, err := c.writeLoadOrder(ctx, prof)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Profile:       profileName,
		Mode:          config.DeployModeOverlay,
		EmptyStack:    len(layers) == 0,
		Collisions:    collisions,
		LoadOrderFile: loadOrderFile,
	}
	c.logger.Info().
		Str("profile", profileName).
		Int("mods", len(layers)).
		Int("collisions", len(collisions)).
		Bool("empty_stack", result.EmptyStack).
		Msg("Profile deployed by mount")
	return result, nil
}

// Unmount detaches the profile's overlay. Unmounting an unmounted
// profile is a no-op.
func (c *Coordinator) Unmount(ctx context.Context, profileName string) error {
	release, err := c.lockProfile(profileName)
	if err != nil {
		return err
	}
	defer release()

	return c.engine.Unmount(ctx, profileName)
}

// Deploy materializes the profile's stack into the game data dir by
// copying, for systems without a union filesystem. The data dir is
// mutated in place; there is no reverse operation.
func (c *Coordinator) Deploy(ctx context.Context, profileName string) (*Result, error) {
	release, err := c.lockProfile(profileName)
	if err != nil {
		return nil, err
	}
	defer release()

	prof, err := c.profiles.Load(profileName)
	if err != nil {
		return nil, err
	}

	stack, layers, err := c.stack(ctx, prof)
	if err != nil {
		return nil, err
	}
	collisions, err := c.collide(layers)
	if err != nil {
		return nil, err
	}

	if err := c.copier.Deploy(ctx, stack); err != nil {
		return nil, err
	}

	loadOrderFile, err := c.writeLoadOrder(ctx, prof)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Profile:       profileName,
		Mode:          config.DeployModeCopy,
		EmptyStack:    len(layers) == 0,
		Collisions:    collisions,
		LoadOrderFile: loadOrderFile,
	}
	c.logger.Info().
		Str("profile", profileName).
		Int("mods", len(layers)).
		Int("collisions", len(collisions)).
		Msg("Profile deployed by copy")
	return result, nil
}

// Collisions reports the destination paths provided by more than one
// active mod, without deploying anything.
func (c *Coordinator) Collisions(ctx context.Context, profileName string) ([]Collision, error) {
	prof, err := c.profiles.Load(profileName)
	if err != nil {
		return nil, err
	}
	layers, err := c.activeLayers(ctx, prof)
	if err != nil {
		return nil, err
	}
	return c.collide(layers)
}

// LoadOrder returns the profile's effective plugin load order.
func (c *Coordinator) LoadOrder(ctx context.Context, profileName string) ([]string, error) {
	prof, err := c.profiles.Load(profileName)
	if err != nil {
		return nil, err
	}
	return c.profiles.EffectiveLoadOrder(ctx, prof)
}

// Mode reports the configured deployment mode.
func (c *Coordinator) Mode() string {
	return c.settings.Mode
}

// State reports the profile's mount lifecycle state.
func (c *Coordinator) State(profileName string) overlay.State {
	return c.engine.State(profileName)
}

// Record returns the profile's persisted mount record.
func (c *Coordinator) Record(profileName string) (*overlay.MountRecord, error) {
	return c.engine.Record(profileName)
}

// layer is one active mod's payload in stack position.
type layer struct {
	name string
	root string
}

// activeLayers resolves the profile's active mods to payload roots,
// lowest precedence first.
func (c *Coordinator) activeLayers(ctx context.Context, prof *profile.Profile) ([]layer, error) {
	var layers []layer
	for _, name := range prof.ActiveMods() {
		mod, err := c.catalog.Get(ctx, name)
		if err != nil {
			if errors.IsErrorCode(err, errors.ErrNotFound) {
				return nil, errors.Newf(errors.ErrUnknownMod, "active mod %q is not installed", name).
					WithDetail("profile", prof.Name).
					WithDetail("mod", name)
			}
			return nil, err
		}
		layers = append(layers, layer{name: mod.Name, root: mod.PayloadRoot})
	}
	return layers, nil
}

// stack builds the profile's mount stack: empty base, then active
// mods in order, overwrite on top, targeted at the game data dir. The
// base, work, and overwrite directories are created as needed.
func (c *Coordinator) stack(ctx context.Context, prof *profile.Profile) (overlay.Stack, []layer, error) {
	layers, err := c.activeLayers(ctx, prof)
	if err != nil {
		return overlay.Stack{}, nil, err
	}

	lower := make([]string, 0, len(layers)+1)
	lower = append(lower, c.paths.BaseLayerDir(prof.Name))
	for _, l := range layers {
		lower = append(lower, l.root)
	}

	stack := overlay.Stack{
		Lower:  lower,
		Upper:  c.paths.OverwriteDir(prof.Name),
		Work:   c.paths.WorkDir(prof.Name),
		Target: c.settings.GameDataDir,
	}

	for _, dir := range []string{c.paths.BaseLayerDir(prof.Name), stack.Work, stack.Upper} {
		if err := c.fs.MkdirAll(dir, 0755); err != nil {
			return overlay.Stack{}, nil, errors.Wrapf(err, errors.ErrIOFailure, "failed to create %s", dir)
		}
	}
	return stack, layers, nil
}

// collide builds the collision report: every path provided by more
// than one layer, providers in stack order.
func (c *Coordinator) collide(layers []layer) ([]Collision, error) {
	providers := make(map[string][]string)
	for _, l := range layers {
		files, err := c.walkFiles(l.root)
		if err != nil {
			return nil, err
		}
		for _, rel := range files {
			providers[rel] = append(providers[rel], l.name)
		}
	}

	var collisions []Collision
	for path, names := range providers {
		if len(names) < 2 {
			continue
		}
		collisions = append(collisions, Collision{
			Path:      path,
			Providers: names,
			Winner:    names[len(names)-1],
		})
	}
	sort.Slice(collisions, func(i, j int) bool { return collisions[i].Path < collisions[j].Path })
	return collisions, nil
}

// walkFiles returns the slash-separated relative paths of every file
// under root.
func (c *Coordinator) walkFiles(root string) ([]string, error) {
	var files []string
	var walk func(rel string) error
	walk = func(rel string) error {
		entries, err := c.fs.ReadDir(filepath.Join(root, rel))
		if err != nil {
			return errors.Wrapf(err, errors.ErrIOFailure, "failed to read %s", root)
		}
		for _, entry := range entries {
			childRel := filepath.Join(rel, entry.Name())
			if entry.IsDir() {
				if err := walk(childRel); err != nil {
					return err
				}
				continue
			}
			files = append(files, filepath.ToSlash(childRel))
		}
		return nil
	}
	if err := walk(""); err != nil {
		return nil, err
	}
	return files, nil
}

// writeLoadOrder renders Plugins.txt in the profile's AppData dir,
// one enabled plugin per line in effective load order.
func (c *Coordinator) writeLoadOrder(ctx context.Context, prof *profile.Profile) (string, error) {
	order, err := c.profiles.EffectiveLoadOrder(ctx, prof)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, plugin := range order {
		// The leading asterisk marks the plugin enabled.
		b.WriteString("*")
		b.WriteString(plugin)
		b.WriteString("\n")
	}

	path := filepath.Join(c.paths.AppDataDir(prof.Name), paths.PluginsFileName)
	if err := c.fs.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return "", errors.Wrapf(err, errors.ErrIOFailure, "failed to write load order %s", path)
	}

	c.logger.Debug().Str("path", path).Int("plugins", len(order)).Msg("Load order written")
	return path, nil
}
