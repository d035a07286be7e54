// Package launcher starts a managed game inside its Proton prefix by
// shelling out to protontricks.
package launcher

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nukeythenuke/torygg/pkg/errors"
	"github.com/nukeythenuke/torygg/pkg/games"
	"github.com/nukeythenuke/torygg/pkg/logging"
	"github.com/nukeythenuke/torygg/pkg/types"
)

// DefaultBinary is the protontricks executable used when none is configured
const DefaultBinary = "protontricks"

// Launcher runs a game through "protontricks <appid> shell" so wine
// executes inside the compatdata prefix Steam created for the app.
type Launcher struct {
	// Binary is the protontricks executable
	Binary string

	logger zerolog.Logger
}

// NewLauncher creates a launcher using the given protontricks binary
func NewLauncher(binary string) *Launcher {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Launcher{
		Binary: binary,
		logger: logging.GetLogger("launcher"),
	}
}

// launchArgs builds the protontricks invocation for the app
func launchArgs(app *games.SteamApp) []string {
	return []string{strconv.Itoa(app.AppID), "shell"}
}

// script is the shell fragment piped to the protontricks shell. The
// executable must run with the install dir as working directory or the
// game cannot find its own assets.
func script(installDir, executable string) string {
	return fmt.Sprintf("cd %q && wine %q\n", installDir, executable)
}

// Launch starts the app from installDir and blocks until it exits.
// The mod loader executable is preferred over the stock one when it is
// installed. The child inherits stdout and stderr so the game's output
// reaches the user.
func (l *Launcher) Launch(ctx context.Context, fs types.FS, app *games.SteamApp, installDir string) error {
	executable := app.ExecutablePath(fs, installDir)

	args := launchArgs(app)
	logging.LogCommand(l.Binary, args)

	cmd := exec.CommandContext(ctx, l.Binary, args...)
	cmd.Stdin = strings.NewReader(script(installDir, executable))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	l.logger.Info().
		Str("game", app.Name).
		Str("executable", executable).
		Msg("Launching game")

	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, errors.ErrLaunchFailed, "%s failed", l.Binary).
			WithDetail("game", app.Name).
			WithDetail("executable", executable)
	}

	l.logger.Info().Str("game", app.Name).Msg("Game exited")
	return nil
}
