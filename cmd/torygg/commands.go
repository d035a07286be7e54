package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nukeythenuke/torygg/internal/version"
	"github.com/nukeythenuke/torygg/pkg/commands/install"
	"github.com/nukeythenuke/torygg/pkg/config"
	"github.com/nukeythenuke/torygg/pkg/deploy"
	"github.com/nukeythenuke/torygg/pkg/errors"
	"github.com/nukeythenuke/torygg/pkg/extract"
	"github.com/nukeythenuke/torygg/pkg/filesystem"
	"github.com/nukeythenuke/torygg/pkg/fomod"
	"github.com/nukeythenuke/torygg/pkg/launcher"
	"github.com/nukeythenuke/torygg/pkg/overlay"
	"github.com/nukeythenuke/torygg/pkg/paths"
	"github.com/nukeythenuke/torygg/pkg/state"
	"github.com/nukeythenuke/torygg/pkg/ui"
)

func newInstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "install <archive> [name]",
		Short:   MsgInstallShort,
		Long:    MsgInstallLong,
		Args:    cobra.RangeArgs(1, 2),
		GroupID: "mods",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			archive, err := a.paths.NormalizePath(args[0])
			if err != nil {
				return err
			}
			var name string
			if len(args) > 1 {
				name = args[1]
			}
			replace, _ := cmd.Flags().GetBool("replace")
			auto, _ := cmd.Flags().GetBool("auto")

			// Scripted installers prompt only on a terminal.
			var selector fomod.Selector
			if !auto && ui.IsInteractive(os.Stdout) {
				selector = &ui.InteractiveSelector{}
			}

			result, err := install.InstallMod(cmd.Context(), install.InstallModOptions{
				Archive:   archive,
				Name:      name,
				Replace:   replace,
				Selector:  selector,
				Paths:     a.paths,
				FS:        a.fs,
				Store:     a.store,
				Extractor: extract.NewSevenZip(a.cfg.Tools.SevenZip),
			})
			if err != nil {
				return err
			}

			fmt.Printf(MsgModInstalled, result.Mod.Name)
			for _, selection := range result.Selections {
				fmt.Printf(MsgSelectionItem, selection.Group, strings.Join(selection.Options, ", "))
			}
			return nil
		},
	}

	cmd.Flags().Bool("replace", false, MsgFlagReplace)
	cmd.Flags().Bool("auto", false, MsgFlagAuto)

	return cmd
}

func newUninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "uninstall <mod>",
		Short:   MsgUninstallShort,
		Args:    cobra.ExactArgs(1),
		GroupID: "mods",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.store.Uninstall(cmd.Context(), args[0], a.profiles); err != nil {
				return err
			}
			fmt.Printf(MsgModUninstalled, args[0])
			return nil
		},
	}
}

func newCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "create <name>",
		Short:   MsgCreateShort,
		Long:    MsgCreateLong,
		Args:    cobra.ExactArgs(1),
		GroupID: "mods",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			mod, err := a.store.Create(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf(MsgModCreated, mod.Name, mod.PayloadRoot)
			return nil
		},
	}
}

func newModsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "mods",
		Short:   MsgModsShort,
		GroupID: "mods",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			prof, err := a.loadProfile(cmd)
			if err != nil {
				return err
			}
			mods, err := a.store.List(cmd.Context())
			if err != nil {
				return err
			}

			if len(mods) == 0 {
				fmt.Println(MsgNoMods)
				return nil
			}
			for _, mod := range mods {
				marker := " "
				if prof.Enabled(mod.Name) {
					marker = "*"
				}
				fmt.Printf(MsgModItem, marker, mod.Name)
			}
			return nil
		},
	}
}

func newActivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "activate <mod>",
		Short:   MsgActivateShort,
		Args:    cobra.ExactArgs(1),
		GroupID: "mods",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			prof, err := a.loadProfile(cmd)
			if err != nil {
				return err
			}
			if err := a.profiles.SetActive(cmd.Context(), prof, args[0], true); err != nil {
				return err
			}
			fmt.Printf(MsgModActivated, args[0], prof.Name)
			return nil
		},
	}
}

func newDeactivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "deactivate <mod>",
		Short:   MsgDeactivateShort,
		Args:    cobra.ExactArgs(1),
		GroupID: "mods",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			prof, err := a.loadProfile(cmd)
			if err != nil {
				return err
			}
			if err := a.profiles.SetActive(cmd.Context(), prof, args[0], false); err != nil {
				return err
			}
			fmt.Printf(MsgModDeactivated, args[0], prof.Name)
			return nil
		},
	}
}

func newOrderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "order",
		Short:   MsgOrderShort,
		Long:    MsgOrderLong,
		GroupID: "profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			prof, err := a.loadProfile(cmd)
			if err != nil {
				return err
			}

			if len(prof.Mods) == 0 {
				fmt.Println(MsgEmptyOrder)
				return nil
			}
			for i, entry := range prof.Mods {
				marker := " "
				if entry.Enabled {
					marker = "*"
				}
				fmt.Printf(MsgOrderItem, i+1, marker, entry.Name)
			}
			return nil
		},
	}

	cmd.AddCommand(newOrderSetCmd())

	return cmd
}

func newOrderSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set [mod]...",
		Short: MsgOrderSetShort,
		// No arguments clears the order.
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			prof, err := a.loadProfile(cmd)
			if err != nil {
				return err
			}
			if err := a.profiles.SetModOrder(cmd.Context(), prof, args); err != nil {
				return err
			}
			fmt.Printf(MsgOrderReplaced, prof.Name)
			return nil
		},
	}
}

func newPluginsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "plugins",
		Short:   MsgPluginsShort,
		Long:    MsgPluginsLong,
		GroupID: "profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			prof, err := a.loadProfile(cmd)
			if err != nil {
				return err
			}
			order, err := a.profiles.EffectiveLoadOrder(cmd.Context(), prof)
			if err != nil {
				return err
			}

			if len(order) == 0 {
				fmt.Println(MsgNoPlugins)
				return nil
			}
			for _, plugin := range order {
				fmt.Println(plugin)
			}
			return nil
		},
	}

	cmd.AddCommand(newPluginsSetCmd())

	return cmd
}

func newPluginsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set [plugin]...",
		Short: MsgPluginsSetShort,
		// No arguments clears the explicit order.
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			prof, err := a.loadProfile(cmd)
			if err != nil {
				return err
			}
			if err := a.profiles.SetPluginOrder(cmd.Context(), prof, args); err != nil {
				return err
			}
			fmt.Printf(MsgPluginOrderReplaced, prof.Name)
			return nil
		},
	}
}

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "profile",
		Short:   MsgProfileShort,
		GroupID: "profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return fmt.Errorf("no subcommand specified")
		},
	}

	cmd.AddCommand(newProfileListCmd())
	cmd.AddCommand(newProfileCreateCmd())
	cmd.AddCommand(newProfileDeleteCmd())
	cmd.AddCommand(newProfileUseCmd())

	return cmd
}

func newProfileListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: MsgProfileListShort,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			st, err := a.state.Load()
			if err != nil {
				return err
			}
			names, err := a.profiles.List()
			if err != nil {
				return err
			}

			if len(names) == 0 {
				fmt.Println(MsgNoProfiles)
				return nil
			}
			for _, name := range names {
				marker := " "
				if name == st.CurrentProfile {
					marker = "*"
				}
				fmt.Printf(MsgProfileItem, marker, name)
			}
			return nil
		},
	}
}

func newProfileCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: MsgProfileCreateShort,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			prof, err := a.profiles.Create(args[0])
			if err != nil {
				return err
			}
			fmt.Printf(MsgProfileCreated, prof.Name)
			return nil
		},
	}
}

func newProfileDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: MsgProfileDeleteShort,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.profiles.Delete(args[0]); err != nil {
				return err
			}

			// Deleting the current profile clears the persisted choice.
			st, err := a.state.Load()
			if err == nil && st.CurrentProfile == args[0] {
				if err := a.state.Save(&state.State{}); err != nil {
					return err
				}
			}

			fmt.Printf(MsgProfileDeleted, args[0])
			return nil
		},
	}
}

func newProfileUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <name>",
		Short: MsgProfileUseShort,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			if _, err := a.profiles.Load(args[0]); err != nil {
				return err
			}
			if err := a.state.Use(args[0]); err != nil {
				return err
			}
			fmt.Printf(MsgProfileSwitched, args[0])
			return nil
		},
	}
}

func newMountCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "mount",
		Short:   MsgMountShort,
		Long:    MsgMountLong,
		GroupID: "deployment",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			profileName, err := a.profileName(cmd)
			if err != nil {
				return err
			}
			coord, err := a.coordinator()
			if err != nil {
				return err
			}

			result, err := coord.Mount(cmd.Context(), profileName)
			if err != nil {
				return err
			}
			printDeployResult(result)
			return nil
		},
	}
}

func newUmountCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "umount",
		Short:   MsgUmountShort,
		GroupID: "deployment",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			profileName, err := a.profileName(cmd)
			if err != nil {
				return err
			}
			coord, err := a.coordinator()
			if err != nil {
				return err
			}

			if err := coord.Unmount(cmd.Context(), profileName); err != nil {
				return err
			}
			fmt.Printf(MsgUnmounted, profileName)
			return nil
		},
	}
}

func newDeployCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "deploy",
		Short:   MsgDeployShort,
		Long:    MsgDeployLong,
		GroupID: "deployment",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			profileName, err := a.profileName(cmd)
			if err != nil {
				return err
			}
			coord, err := a.coordinator()
			if err != nil {
				return err
			}

			var result *deploy.Result
			switch coord.Mode() {
			case config.DeployModeCopy:
				result, err = coord.Deploy(cmd.Context(), profileName)
			default:
				result, err = coord.Mount(cmd.Context(), profileName)
			}
			if err != nil {
				return err
			}
			printDeployResult(result)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   MsgStatusShort,
		GroupID: "deployment",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			profileName, err := a.profileName(cmd)
			if err != nil {
				return err
			}
			coord, err := a.coordinator()
			if err != nil {
				return err
			}

			mountState := coord.State(profileName)
			fmt.Printf(MsgStatusLine, profileName, mountState, coord.Mode())
			if record, err := coord.Record(profileName); err == nil && record != nil {
				fmt.Printf(MsgStatusTarget, record.Target, record.Backend)
			}

			collisions, err := coord.Collisions(cmd.Context(), profileName)
			if err != nil {
				return err
			}
			printCollisions(collisions)
			return nil
		},
	}
}

func newOverwriteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "overwrite",
		Short:   MsgOverwriteShort,
		Long:    MsgOverwriteLong,
		GroupID: "deployment",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			prof, err := a.loadProfile(cmd)
			if err != nil {
				return err
			}

			dir := a.paths.OverwriteDir(prof.Name)
			if _, err := a.fs.Stat(dir); err != nil {
				return nil
			}

			var walk func(dir string) error
			walk = func(dir string) error {
				entries, err := a.fs.ReadDir(dir)
				if err != nil {
					return errors.Wrapf(err, errors.ErrIOFailure, "failed to read %s", dir)
				}
				for _, entry := range entries {
					path := filepath.Join(dir, entry.Name())
					fmt.Println(path)
					if entry.IsDir() {
						if err := walk(path); err != nil {
							return err
						}
					}
				}
				return nil
			}
			return walk(dir)
		},
	}
}

func newLaunchCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "launch",
		Short:   MsgLaunchShort,
		Long:    MsgLaunchLong,
		GroupID: "deployment",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			profileName, err := a.profileName(cmd)
			if err != nil {
				return err
			}
			game, err := a.game()
			if err != nil {
				return err
			}
			coord, err := a.coordinator()
			if err != nil {
				return err
			}

			// Copy mode mutates the game directory in place, so there is
			// no mount to require.
			if coord.Mode() == config.DeployModeOverlay {
				if mountState := coord.State(profileName); mountState != overlay.StateMounted {
					return errors.Newf(errors.ErrNotMounted,
						"profile %q is not mounted, run 'torygg mount' first", profileName).
						WithDetail("profile", profileName).
						WithDetail("state", string(mountState))
				}
			}

			installDir, err := a.installDir(game)
			if err != nil {
				return err
			}
			return launcher.NewLauncher(a.cfg.Tools.Protontricks).
				Launch(cmd.Context(), a.fs, game, installDir)
		},
	}
}

func newGenConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "genconfig",
		Short:   MsgGenConfigShort,
		Long:    MsgGenConfigLong,
		GroupID: "misc",
		RunE: func(cmd *cobra.Command, args []string) error {
			write, _ := cmd.Flags().GetBool("write")
			if !write {
				fmt.Print(string(config.DefaultFileContent()))
				return nil
			}

			p, err := paths.New()
			if err != nil {
				return err
			}
			fsys := filesystem.NewOS()

			path := p.ConfigFilePath()
			if _, err := fsys.Stat(path); err == nil {
				return errors.Newf(errors.ErrInvalidInput, "config file %s already exists", path)
			}
			if err := fsys.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return errors.Wrapf(err, errors.ErrIOFailure, "failed to create %s", filepath.Dir(path))
			}
			if err := fsys.WriteFile(path, config.DefaultFileContent(), 0644); err != nil {
				return errors.Wrapf(err, errors.ErrIOFailure, "failed to write %s", path)
			}
			fmt.Printf(MsgConfigWritten, path)
			return nil
		},
	}

	cmd.Flags().Bool("write", false, MsgFlagWrite)

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   MsgVersionShort,
		GroupID: "misc",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("torygg version %s\n", version.Version)
			fmt.Printf("  commit: %s\n", version.Commit)
			fmt.Printf("  built:  %s\n", version.Date)
		},
	}
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:                   "completion [bash|zsh|fish|powershell]",
		Short:                 MsgCompletionShort,
		Long:                  MsgCompletionLong,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		GroupID:               "misc",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			}
			return nil
		},
	}
}

// printDeployResult reports what a mount or copy deploy produced
func printDeployResult(result *deploy.Result) {
	switch result.Mode {
	case config.DeployModeCopy:
		fmt.Printf(MsgDeployedCopy, result.Profile)
	default:
		fmt.Printf(MsgMounted, result.Profile)
	}
	if result.EmptyStack {
		fmt.Println(MsgEmptyStack)
	}
	printCollisions(result.Collisions)
	fmt.Printf(MsgLoadOrderWritten, result.LoadOrderFile)
}

func printCollisions(collisions []deploy.Collision) {
	if len(collisions) == 0 {
		fmt.Println(MsgNoCollisions)
		return
	}
	fmt.Println(MsgCollisionHeader)
	for _, collision := range collisions {
		fmt.Printf(MsgCollisionItem, collision.Path, strings.Join(collision.Providers, " < "))
	}
}
