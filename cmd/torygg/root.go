package main

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/nukeythenuke/torygg/internal/version"
	"github.com/nukeythenuke/torygg/pkg/config"
	"github.com/nukeythenuke/torygg/pkg/deploy"
	"github.com/nukeythenuke/torygg/pkg/filesystem"
	"github.com/nukeythenuke/torygg/pkg/games"
	"github.com/nukeythenuke/torygg/pkg/logging"
	"github.com/nukeythenuke/torygg/pkg/overlay"
	"github.com/nukeythenuke/torygg/pkg/paths"
	"github.com/nukeythenuke/torygg/pkg/profile"
	"github.com/nukeythenuke/torygg/pkg/state"
	"github.com/nukeythenuke/torygg/pkg/store"
	"github.com/nukeythenuke/torygg/pkg/types"
)

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	var (
		verbosity   int
		profileFlag string
	)

	rootCmd := &cobra.Command{
		Use:     "torygg",
		Short:   MsgRootShort,
		Long:    MsgRootLong,
		Version: version.Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Setup logging based on verbosity
			logging.SetupLogger(verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// If we get here, no subcommand was provided
			_ = cmd.Help()
			return fmt.Errorf("no command specified")
		},
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}

	// Global flags
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", MsgFlagVerbose)
	rootCmd.PersistentFlags().StringVarP(&profileFlag, "profile", "p", "", MsgFlagProfile)

	// Define command groups
	rootCmd.AddGroup(&cobra.Group{
		ID:    "mods",
		Title: "MODS:",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "profiles",
		Title: "PROFILES:",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "deployment",
		Title: "DEPLOYMENT:",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "misc",
		Title: "MISC:",
	})

	// Add all commands
	rootCmd.AddCommand(newInstallCmd())
	rootCmd.AddCommand(newUninstallCmd())
	rootCmd.AddCommand(newCreateCmd())
	rootCmd.AddCommand(newModsCmd())
	rootCmd.AddCommand(newActivateCmd())
	rootCmd.AddCommand(newDeactivateCmd())
	rootCmd.AddCommand(newOrderCmd())
	rootCmd.AddCommand(newPluginsCmd())
	rootCmd.AddCommand(newProfileCmd())
	rootCmd.AddCommand(newMountCmd())
	rootCmd.AddCommand(newUmountCmd())
	rootCmd.AddCommand(newDeployCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newOverwriteCmd())
	rootCmd.AddCommand(newLaunchCmd())
	rootCmd.AddCommand(newGenConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

// app bundles the collaborators every command wires up: resolved
// configuration, the store, the profile manager, and persisted state.
// The deploy coordinator is resolved separately because it needs the
// game directory, and catalog-only commands should not pay for Steam
// discovery.
type app struct {
	cfg      *config.Config
	paths    paths.Paths
	fs       types.FS
	store    *store.Store
	profiles *profile.Manager
	state    *state.Store
}

func openApp() (*app, error) {
	p, err := paths.New()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(p.ConfigFilePath())
	if err != nil {
		return nil, err
	}

	fsys := filesystem.NewOS()
	st, err := store.Open(p, fsys)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		paths:    p,
		fs:       fsys,
		store:    st,
		profiles: profile.NewManager(p, fsys, st),
		state:    state.NewStore(p, fsys),
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close store")
	}
}

// profileName resolves the profile a command acts on: the --profile
// flag first, then the persisted current profile, then Default,
// created on first use.
func (a *app) profileName(cmd *cobra.Command) (string, error) {
	if flag, _ := cmd.Root().PersistentFlags().GetString("profile"); flag != "" {
		return flag, nil
	}

	st, err := a.state.Load()
	if err != nil {
		return "", err
	}
	if st.CurrentProfile != "" {
		return st.CurrentProfile, nil
	}

	prof, err := a.profiles.EnsureDefault()
	if err != nil {
		return "", err
	}
	return prof.Name, nil
}

// loadProfile resolves and loads the profile a command acts on
func (a *app) loadProfile(cmd *cobra.Command) (*profile.Profile, error) {
	name, err := a.profileName(cmd)
	if err != nil {
		return nil, err
	}
	return a.profiles.Load(name)
}

// game resolves the configured Steam title
func (a *app) game() (*games.SteamApp, error) {
	return games.ByName(a.cfg.Game)
}

func (a *app) steamRoot() (string, error) {
	return a.paths.NormalizePath(a.cfg.Steam.Root)
}

// gameDataDir resolves the deploy target: the config override when
// set, Steam library discovery otherwise.
func (a *app) gameDataDir() (string, error) {
	if a.cfg.GameDataDir != "" {
		return a.paths.NormalizePath(a.cfg.GameDataDir)
	}

	game, err := a.game()
	if err != nil {
		return "", err
	}
	root, err := a.steamRoot()
	if err != nil {
		return "", err
	}
	return games.DataDir(a.fs, root, game)
}

// installDir resolves the game's install directory for launching. With
// a data dir override in place the install dir is its parent.
func (a *app) installDir(game *games.SteamApp) (string, error) {
	if a.cfg.GameDataDir != "" {
		dataDir, err := a.paths.NormalizePath(a.cfg.GameDataDir)
		if err != nil {
			return "", err
		}
		return filepath.Dir(dataDir), nil
	}

	root, err := a.steamRoot()
	if err != nil {
		return "", err
	}
	return games.InstallDir(a.fs, root, game)
}

// coordinator wires the deploy coordinator for commands touching the
// game directory. The union backend follows the configured overlay
// backend.
func (a *app) coordinator() (*deploy.Coordinator, error) {
	dataDir, err := a.gameDataDir()
	if err != nil {
		return nil, err
	}

	var mounter overlay.Mounter
	switch a.cfg.Overlay.Backend {
	case config.OverlayBackendKernel:
		mounter = overlay.NewKernelMounter()
	default:
		mounter = overlay.NewFuseMounter(a.cfg.Tools.FuseOverlayfs, a.cfg.Tools.Fusermount)
	}

	return deploy.New(deploy.Options{
		Paths:    a.paths,
		FS:       a.fs,
		Catalog:  a.store,
		Profiles: a.profiles,
		Engine:   overlay.NewEngine(a.paths, a.fs, mounter),
		Copier:   overlay.NewCopyDeployer(a.fs),
		Settings: deploy.Settings{
			Mode:        a.cfg.Deploy.Mode,
			GameDataDir: dataDir,
		},
	}), nil
}
