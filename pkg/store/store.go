// Package store owns installed mod payloads and the catalog describing
// them. A payload is staged to a scratch directory first and published
// with a rename, so a mod is either fully installed or absent.
package store

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nukeythenuke/torygg/pkg/errors"
	"github.com/nukeythenuke/torygg/pkg/logging"
	"github.com/nukeythenuke/torygg/pkg/paths"
	"github.com/nukeythenuke/torygg/pkg/types"
)

// pluginExtensions are the data file types contributing to load order
var pluginExtensions = map[string]bool{
	".esp": true,
	".esm": true,
	".esl": true,
}

// Mod is one catalog entry
type Mod struct {
	Name        string
	InstalledAt time.Time
	// PayloadRoot is the absolute directory holding the mod's files
	PayloadRoot string
	// Plugins are the mod's top-level data files in scan order
	Plugins []string
}

// Mapping copies one file or directory tree from a source root into the
// payload. Paths are slash-separated and relative; an empty folder
// destination targets the payload root.
type Mapping struct {
	Source      string
	Destination string
	IsFolder    bool
}

// WholeTree maps the entire source root into the payload unchanged
func WholeTree() []Mapping {
	return []Mapping{{IsFolder: true}}
}

// ReferenceChecker reports which profiles still reference a mod.
// Uninstall refuses to remove a referenced payload.
type ReferenceChecker interface {
	References(modName string) ([]string, error)
}

// Store manages payload directories and their catalog
type Store struct {
	logger  zerolog.Logger
	paths   paths.Paths
	fs      types.FS
	catalog *catalog
}

// Open creates the base layout if needed and opens the catalog.
// The store works on a real filesystem: publishing relies on rename
// atomicity and the catalog is a SQLite file.
func Open(p paths.Paths, fsys types.FS) (*Store, error) {
	if err := p.EnsureBaseLayout(fsys); err != nil {
		return nil, err
	}
	cat, err := openCatalog(p.CatalogPath())
	if err != nil {
		return nil, err
	}
	return &Store{
		logger:  logging.GetLogger("store"),
		paths:   p,
		fs:      fsys,
		catalog: cat,
	}, nil
}

// Close releases the catalog
func (s *Store) Close() error {
	return s.catalog.Close()
}

// Install stages the mapped files from sourceRoot and publishes them as
// a new mod. Fails with NAME_CONFLICT when the name is taken.
func (s *Store) Install(ctx context.Context, name, sourceRoot string, mappings []Mapping) (*Mod, error) {
	defer logging.LogOperationStart(s.logger, "install")()

	if err := validateModName(name); err != nil {
		return nil, err
	}
	taken, err := s.catalog.exists(ctx, name)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, errors.Newf(errors.ErrNameConflict, "mod %q is already installed", name).
			WithDetail("mod", name)
	}

	mod, err := s.stage(ctx, name, sourceRoot, mappings)
	if err != nil {
		return nil, err
	}
	return s.publish(ctx, mod, false)
}

// Create publishes a new mod with an empty payload, a target for
// manually managed files. The source root is never read because the
// mapping set is empty.
func (s *Store) Create(ctx context.Context, name string) (*Mod, error) {
	return s.Install(ctx, name, s.paths.StagingDir(), []Mapping{})
}

// Replace atomically swaps an installed mod's payload for a freshly
// staged one. The old payload is moved aside first so a failed swap
// can restore it.
func (s *Store) Replace(ctx context.Context, name, sourceRoot string, mappings []Mapping) (*Mod, error) {
	if err := validateModName(name); err != nil {
		return nil, err
	}
	if _, err := s.catalog.get(ctx, name); err != nil {
		return nil, err
	}

	mod, err := s.stage(ctx, name, sourceRoot, mappings)
	if err != nil {
		return nil, err
	}

	payloadRoot := s.paths.ModDir(name)
	aside := payloadRoot + ".old." + nonce()
	if err := s.fs.Rename(payloadRoot, aside); err != nil {
		_ = s.fs.RemoveAll(mod.stageRoot)
		return nil, errors.Wrapf(err, errors.ErrIOFailure, "failed to move aside payload of %s", name)
	}

	published, err := s.publish(ctx, mod, true)
	if err != nil {
		if restoreErr := s.fs.Rename(aside, payloadRoot); restoreErr != nil {
			s.logger.Error().Err(restoreErr).Str("mod", name).
				Msg("Failed to restore payload after aborted replace")
		}
		return nil, err
	}

	if err := s.fs.RemoveAll(aside); err != nil {
		s.logger.Warn().Err(err).Str("path", aside).
			Msg("Failed to remove old payload")
	}
	return published, nil
}

// Uninstall removes a mod's payload and catalog entry. A mod any
// profile still references fails with IN_USE naming those profiles.
func (s *Store) Uninstall(ctx context.Context, name string, refs ReferenceChecker) error {
	if _, err := s.catalog.get(ctx, name); err != nil {
		return err
	}

	if refs != nil {
		profiles, err := refs.References(name)
		if err != nil {
			return err
		}
		if len(profiles) > 0 {
			return errors.Newf(errors.ErrInUse,
				"mod %q is referenced by profiles: %s", name, strings.Join(profiles, ", ")).
				WithDetail("mod", name).
				WithDetail("profiles", profiles)
		}
	}

	if err := s.catalog.remove(ctx, name); err != nil {
		return err
	}
	if err := s.fs.RemoveAll(s.paths.ModDir(name)); err != nil {
		s.logger.Warn().Err(err).Str("mod", name).
			Msg("Failed to remove payload directory, leaving orphan")
	}

	s.logger.Info().Str("mod", name).Msg("Mod uninstalled")
	return nil
}

// Get returns one catalog entry with its plugins
func (s *Store) Get(ctx context.Context, name string) (*Mod, error) {
	mod, err := s.catalog.get(ctx, name)
	if err != nil {
		return nil, err
	}
	mod.PayloadRoot = s.paths.ModDir(name)
	return mod, nil
}

// List returns all catalog entries ordered by name
func (s *Store) List(ctx context.Context) ([]Mod, error) {
	mods, err := s.catalog.list(ctx)
	if err != nil {
		return nil, err
	}
	for i := range mods {
		mods[i].PayloadRoot = s.paths.ModDir(mods[i].Name)
	}
	return mods, nil
}

// PayloadRoot returns the payload directory of an installed mod
func (s *Store) PayloadRoot(ctx context.Context, name string) (string, error) {
	if _, err := s.catalog.get(ctx, name); err != nil {
		return "", err
	}
	return s.paths.ModDir(name), nil
}

// stagedMod is a staged but not yet published payload
type stagedMod struct {
	*Mod
	stageRoot string
}

func (s *Store) stage(ctx context.Context, name, sourceRoot string, mappings []Mapping) (*stagedMod, error) {
	// A nil mapping set means the whole tree. An empty non-nil set is
	// a scripted install that selected nothing and stays empty.
	if mappings == nil {
		mappings = WholeTree()
	}

	stageRoot := filepath.Join(s.paths.StagingDir(), name+"."+nonce())
	if err := s.materialize(ctx, sourceRoot, stageRoot, mappings); err != nil {
		_ = s.fs.RemoveAll(stageRoot)
		return nil, err
	}

	plugins, err := s.scanPlugins(stageRoot)
	if err != nil {
		_ = s.fs.RemoveAll(stageRoot)
		return nil, err
	}

	s.logger.Debug().
		Str("mod", name).
		Int("plugins", len(plugins)).
		Str("stageRoot", stageRoot).
		Msg("Payload staged")

	return &stagedMod{
		Mod: &Mod{
			Name:        name,
			InstalledAt: time.Now().UTC(),
			Plugins:     plugins,
		},
		stageRoot: stageRoot,
	}, nil
}

func (s *Store) publish(ctx context.Context, mod *stagedMod, replace bool) (*Mod, error) {
	payloadRoot := s.paths.ModDir(mod.Name)
	if err := s.fs.Rename(mod.stageRoot, payloadRoot); err != nil {
		_ = s.fs.RemoveAll(mod.stageRoot)
		return nil, errors.Wrapf(err, errors.ErrIOFailure, "failed to publish payload of %s", mod.Name).
			WithDetail("mod", mod.Name)
	}

	relRoot := filepath.Join(paths.ModsDirName, mod.Name)
	var err error
	if replace {
		err = s.catalog.update(ctx, mod.Mod, relRoot)
	} else {
		err = s.catalog.insert(ctx, mod.Mod, relRoot)
	}
	if err != nil {
		_ = s.fs.RemoveAll(payloadRoot)
		return nil, err
	}

	mod.PayloadRoot = payloadRoot
	s.logger.Info().
		Str("mod", mod.Name).
		Strs("plugins", mod.Plugins).
		Msg("Mod installed")
	return mod.Mod, nil
}

// scanPlugins lists the top-level data files of a payload in the
// deterministic order the directory listing provides.
func (s *Store) scanPlugins(root string) ([]string, error) {
	entries, err := s.fs.ReadDir(root)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrIOFailure, "failed to read %s", root)
	}

	var plugins []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if pluginExtensions[ext] {
			plugins = append(plugins, entry.Name())
		}
	}
	return plugins, nil
}

func validateModName(name string) error {
	if name == "" {
		return errors.New(errors.ErrInvalidInput, "mod name must not be empty")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return errors.Newf(errors.ErrInvalidInput, "invalid mod name %q", name)
	}
	return nil
}

func nonce() string {
	return strconv.FormatInt(time.Now().UnixNano(), 36)
}
