// Package overlay composes installed mod payloads, the base game
// directory, and a profile's overwrite directory into a single view of
// the game data directory. A union mount is the primary mechanism,
// with fuse-overlayfs and kernel overlayfs backends behind the Mounter
// interface; CopyDeployer is the fallback for systems without either.
package overlay

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/nukeythenuke/torygg/pkg/errors"
)

// State describes where a profile sits in the mount lifecycle.
type State string

const (
	StateUnmounted  State = "unmounted"
	StateMounting   State = "mounting"
	StateMounted    State = "mounted"
	StateUnmounting State = "unmounting"
	StateError      State = "error"
)

// Stack is an ordered set of directories composed into one view at
// Target. Lower holds read-only layers ordered lowest precedence
// first; Upper is the writable top layer that captures every change
// made through the mounted view.
type Stack struct {
	Lower  []string
	Upper  string
	Work   string
	Target string
}

// Layers returns every readable layer lowest precedence first, ending
// with the upper layer.
func (s Stack) Layers() []string {
	layers := make([]string, 0, len(s.Lower)+1)
	layers = append(layers, s.Lower...)
	return append(layers, s.Upper)
}

// Validate refuses self-referential layer sets before any mount
// attempt. A stack whose target or upper directory is also a lower
// layer hangs some union implementations indefinitely, so the
// configuration is rejected outright instead of attempted.
func (s Stack) Validate() error {
	if s.Target == "" || s.Upper == "" || s.Work == "" {
		return errors.New(errors.ErrInvalidInput, "stack needs a target, upper, and work directory")
	}

	target := filepath.Clean(s.Target)
	upper := filepath.Clean(s.Upper)
	if upper == target {
		return errors.Newf(errors.ErrMountFailed, "upper layer %q is also the mount target", s.Upper).
			WithDetail("target", s.Target)
	}

	for _, lower := range s.Lower {
		switch filepath.Clean(lower) {
		case target:
			return errors.Newf(errors.ErrMountFailed, "mount target %q is also a lower layer", s.Target).
				WithDetail("target", s.Target)
		case upper:
			return errors.Newf(errors.ErrMountFailed, "upper layer %q is also a lower layer", s.Upper).
				WithDetail("target", s.Target)
		}
	}
	return nil
}

// optionData renders the option string shared by the fuse and kernel
// backends. lowerdir lists the topmost lower layer first, the reverse
// of Stack ordering.
func (s Stack) optionData() string {
	lowers := make([]string, 0, len(s.Lower))
	for i := len(s.Lower) - 1; i >= 0; i-- {
		lowers = append(lowers, escapeLayer(s.Lower[i]))
	}
	return fmt.Sprintf("lowerdir=%s,upperdir=%s,workdir=%s",
		strings.Join(lowers, ":"), escapeLayer(s.Upper), escapeLayer(s.Work))
}

// escapeLayer escapes the characters the overlay option parser treats
// as separators. Mod names routinely contain commas.
func escapeLayer(path string) string {
	return layerEscaper.Replace(path)
}

var layerEscaper = strings.NewReplacer(`\`, `\\`, ":", `\:`, ",", `\,`)

// Mounter is the union-mount primitive. Implementations mount a
// validated stack at its target and detach it again by target path.
type Mounter interface {
	Name() string
	Mount(ctx context.Context, stack Stack) error
	Unmount(ctx context.Context, target string) error
}
