package main

// Short messages (one-liners)
const (
	// Command descriptions
	MsgRootShort          = "A mod manager for Skyrim on linux"
	MsgInstallShort       = "Install a mod archive"
	MsgUninstallShort     = "Uninstall a mod"
	MsgCreateShort        = "Create a new empty mod"
	MsgModsShort          = "List installed mods"
	MsgActivateShort      = "Activate a mod in the current profile"
	MsgDeactivateShort    = "Deactivate a mod in the current profile"
	MsgOrderShort         = "Show the current profile's mod order"
	MsgOrderSetShort      = "Replace the mod order"
	MsgPluginsShort       = "Show the effective plugin load order"
	MsgPluginsSetShort    = "Replace the explicit plugin order"
	MsgProfileShort       = "Manage profiles"
	MsgProfileListShort   = "List profiles"
	MsgProfileCreateShort = "Create a new profile"
	MsgProfileDeleteShort = "Delete a profile"
	MsgProfileUseShort    = "Switch the current profile"
	MsgMountShort         = "Mount the current profile over the game directory"
	MsgUmountShort        = "Unmount the current profile"
	MsgDeployShort        = "Deploy the current profile using the configured mode"
	MsgStatusShort        = "Show mount state and collisions"
	MsgOverwriteShort     = "List files captured in the overwrite layer"
	MsgLaunchShort        = "Launch the game through protontricks"
	MsgGenConfigShort     = "Output the default configuration"
	MsgVersionShort       = "Print version information"
	MsgCompletionShort    = "Generate shell completion script"

	// Status messages
	MsgModInstalled        = "Installed mod '%s'\n"
	MsgSelectionItem       = "  %s: %s\n"
	MsgModUninstalled      = "Uninstalled mod '%s'\n"
	MsgModCreated          = "Created empty mod '%s' at %s\n"
	MsgNoMods              = "No mods installed."
	MsgModItem             = "%s %s\n"
	MsgModActivated        = "Activated '%s' in profile '%s'\n"
	MsgModDeactivated      = "Deactivated '%s' in profile '%s'\n"
	MsgEmptyOrder          = "The profile lists no mods."
	MsgOrderItem           = "%3d %s %s\n"
	MsgOrderReplaced       = "Mod order of profile '%s' replaced\n"
	MsgNoPlugins           = "No plugins contributed by active mods."
	MsgPluginOrderReplaced = "Plugin order of profile '%s' replaced\n"
	MsgNoProfiles          = "No profiles. Run 'torygg profile create <name>' to add one."
	MsgProfileItem         = "%s %s\n"
	MsgProfileCreated      = "Created profile '%s'\n"
	MsgProfileDeleted      = "Deleted profile '%s'\n"
	MsgProfileSwitched     = "Switched to profile '%s'\n"
	MsgMounted             = "Mounted profile '%s'\n"
	MsgDeployedCopy        = "Deployed profile '%s' by copy\n"
	MsgUnmounted           = "Unmounted profile '%s'\n"
	MsgEmptyStack          = "No active mods, the game directory is unchanged."
	MsgLoadOrderWritten    = "Load order written to %s\n"
	MsgStatusLine          = "Profile '%s' is %s (%s mode)\n"
	MsgStatusTarget        = "  mounted at %s (%s)\n"
	MsgNoCollisions        = "No collisions between active mods."
	MsgCollisionHeader     = "Collisions (last provider wins):"
	MsgCollisionItem       = "  %s: %s\n"
	MsgConfigWritten       = "Wrote %s\n"

	// Flag descriptions
	MsgFlagVerbose = "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)"
	MsgFlagProfile = "Profile to act on (default: the persisted current profile)"
	MsgFlagReplace = "Replace the payload of an already installed mod"
	MsgFlagAuto    = "Resolve scripted installer choices without prompting"
	MsgFlagWrite   = "Write the configuration to the config path instead of stdout"
)

// Long messages
const (
	MsgRootLong = `torygg manages Skyrim mods on linux without touching the game
directory: every mod keeps its own payload directory and the active
set is combined into the game's Data directory with an overlay mount
at play time. Profiles hold the mod list, its order, and the plugin
load order.`

	MsgInstallLong = `Install extracts the archive, interprets its scripted installer when
one ships, and publishes the result as a named mod. The name defaults
to the archive file name without its extension.

Scripted installers prompt for choices when run on a terminal; pass
--auto to take the recommended options instead.`

	MsgCreateLong = `Create publishes a mod with an empty payload directory. Useful as a
target for files you manage by hand, such as generated patches.`

	MsgOrderLong = `Order shows the profile's mod list in stack order, lowest precedence
first. Active mods are marked with an asterisk; a later mod's files
win over an earlier mod's on the same path.

Use 'torygg order set' to replace the order.`

	MsgPluginsLong = `Plugins shows the effective load order: the explicitly ordered
plugins first, then every remaining plugin of the active mods in mod
order. This is what gets written to Plugins.txt on deploy.

Use 'torygg plugins set' to pin an explicit order.`

	MsgMountLong = `Mount overlays the profile's active mods onto the game's Data
directory and writes the plugin load order. The game directory itself
is never modified; new and changed files land in the profile's
overwrite layer.`

	MsgDeployLong = `Deploy brings the game directory in line with the profile using the
configured deploy mode: an overlay mount by default, or a plain copy
into the Data directory when deploy.mode is "copy".`

	MsgOverwriteLong = `Overwrite lists everything the profile's writable layer captured
while mounted: files the game or its tools created or changed on top
of the mod stack.`

	MsgLaunchLong = `Launch starts the game through protontricks inside its Steam proton
prefix, preferring the script extender loader when the mod stack
ships one. In overlay mode the profile must be mounted first.`

	MsgGenConfigLong = `Genconfig prints a commented configuration file with the built-in
defaults. Pass --write to create it at the config path; an existing
file is never overwritten.`

	MsgCompletionLong = `To load completions:

Bash:
  $ source <(torygg completion bash)
  # To load completions for each session, execute once:
  $ torygg completion bash > /etc/bash_completion.d/torygg

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it.  You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc
  # To load completions for each session, execute once:
  $ torygg completion zsh > "${fpath[1]}/_torygg"
  # You will need to start a new shell for this setup to take effect.

Fish:
  $ torygg completion fish | source
  # To load completions for each session, execute once:
  $ torygg completion fish > ~/.config/fish/completions/torygg.fish

PowerShell:
  PS> torygg completion powershell | Out-String | Invoke-Expression`
)
