// Package install implements the mod installation pipeline: extract
// the archive into staging, lower the payload root past wrapper
// directories, interpret a scripted installer when one ships, and
// publish the result into the mod store.
package install

import (
	"context"
	"path/filepath"
	"strconv"
	"time"

	"github.com/nukeythenuke/torygg/pkg/extract"
	"github.com/nukeythenuke/torygg/pkg/fomod"
	"github.com/nukeythenuke/torygg/pkg/logging"
	"github.com/nukeythenuke/torygg/pkg/paths"
	"github.com/nukeythenuke/torygg/pkg/store"
	"github.com/nukeythenuke/torygg/pkg/types"
)

// InstallModOptions defines the options for the InstallMod command.
type InstallModOptions struct {
	// Archive is the path of the mod archive to install.
	Archive string
	// Name overrides the mod name. Defaults to the archive file name
	// without its extension.
	Name string
	// Replace swaps the payload of an already installed mod instead of
	// failing with a name conflict.
	Replace bool
	// Selector resolves scripted installer choices. Defaults to
	// automatic selection when nil.
	Selector fomod.Selector

	Paths     paths.Paths
	FS        types.FS
	Store     *store.Store
	Extractor extract.Extractor
}

// InstallModResult reports what the pipeline produced.
type InstallModResult struct {
	Mod *store.Mod
	// Scripted is true when a ModuleConfig.xml drove the file layout.
	Scripted bool
	// Selections records the resolved installer choices for display.
	Selections []fomod.Selection
}

// InstallMod runs the installation pipeline for one archive.
func InstallMod(ctx context.Context, opts InstallModOptions) (*InstallModResult, error) {
	log := logging.GetLogger("commands")
	log.Debug().Str("command", "InstallMod").Str("archive", opts.Archive).Msg("Executing command")

	name := opts.Name
	if name == "" {
		name = extract.ArchiveStem(opts.Archive)
	}

	// Step 1: Extract into a scratch directory under staging.
	scratch := filepath.Join(opts.Paths.StagingDir(),
		"extract."+strconv.FormatInt(time.Now().UnixNano(), 36))
	defer func() {
		if err := opts.FS.RemoveAll(scratch); err != nil {
			log.Warn().Err(err).Str("path", scratch).Msg("Failed to remove extraction scratch")
		}
	}()

	if err := opts.Extractor.Extract(ctx, opts.Archive, scratch); err != nil {
		return nil, err
	}

	// Step 2: Descend past wrapper directories to the payload root.
	root, err := extract.LowerRoot(opts.FS, scratch, extract.ArchiveStem(opts.Archive))
	if err != nil {
		return nil, err
	}

	// Step 3: Interpret the installer script when the archive ships one.
	result := &InstallModResult{}
	mappings := store.WholeTree()

	configPath, found, err := extract.FindFomodDir(opts.FS, root)
	if err != nil {
		return nil, err
	}
	if found {
		plan, err := runScript(opts, configPath)
		if err != nil {
			return nil, err
		}
		mappings = planMappings(plan)
		result.Scripted = true
		result.Selections = plan.Selections
	}

	// Step 4: Publish.
	install := opts.Store.Install
	if opts.Replace {
		install = opts.Store.Replace
	}
	mod, err := install(ctx, name, root, mappings)
	if err != nil {
		return nil, err
	}
	result.Mod = mod

	log.Info().
		Str("command", "InstallMod").
		Str("mod", mod.Name).
		Bool("scripted", result.Scripted).
		Msg("Command finished")
	return result, nil
}

// runScript parses and evaluates the installer script
func runScript(opts InstallModOptions, configPath string) (*fomod.Plan, error) {
	cfg, err := fomod.ParseFile(opts.FS, configPath)
	if err != nil {
		return nil, err
	}

	selector := opts.Selector
	if selector == nil {
		selector = &fomod.AutoSelector{}
	}
	return fomod.Evaluate(cfg, selector)
}

// planMappings converts evaluated installer mappings into store
// mappings. The plan's order already encodes the later-wins rule.
func planMappings(plan *fomod.Plan) []store.Mapping {
	mappings := make([]store.Mapping, 0, len(plan.Mappings))
	for _, m := range plan.Mappings {
		mappings = append(mappings, store.Mapping{
			Source:      m.Source,
			Destination: m.Destination,
			IsFolder:    m.IsFolder,
		})
	}
	return mappings
}
