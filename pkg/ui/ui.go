// Package ui holds the terminal-facing pieces of torygg: interactive
// installer prompts and the checks deciding whether prompting is
// possible at all.
package ui

import (
	"os"

	"github.com/mattn/go-isatty"
)

// IsInteractive reports whether the output is a terminal a user can
// answer prompts on.
func IsInteractive(output *os.File) bool {
	return isatty.IsTerminal(output.Fd()) || isatty.IsCygwinTerminal(output.Fd())
}
