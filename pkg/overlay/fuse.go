package overlay

import (
	"context"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nukeythenuke/torygg/pkg/errors"
	"github.com/nukeythenuke/torygg/pkg/logging"
)

// Default tool names, overridable through the tools config section.
const (
	DefaultFuseBinary       = "fuse-overlayfs"
	DefaultFusermountBinary = "fusermount3"
)

// FuseMounter mounts through the fuse-overlayfs userspace tool. It is
// the backend that works without privileges.
type FuseMounter struct {
	// Binary is the fuse-overlayfs executable to run.
	Binary string

	// UnmountBinary is the fusermount executable used to detach.
	UnmountBinary string

	logger zerolog.Logger
}

// NewFuseMounter returns a FuseMounter running the given executables.
// Empty strings select the standard tool names.
func NewFuseMounter(binary, unmountBinary string) *FuseMounter {
	if binary == "" {
		binary = DefaultFuseBinary
	}
	if unmountBinary == "" {
		unmountBinary = DefaultFusermountBinary
	}
	return &FuseMounter{
		Binary:        binary,
		UnmountBinary: unmountBinary,
		logger:        logging.GetLogger("overlay.fuse"),
	}
}

func (m *FuseMounter) Name() string {
	return "fuse"
}

func (m *FuseMounter) Mount(ctx context.Context, stack Stack) error {
	args := []string{"-o", stack.optionData(), stack.Target}
	logging.LogCommand(m.Binary, args)

	out, err := exec.CommandContext(ctx, m.Binary, args...).CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, errors.ErrMountFailed, "%s failed", m.Binary).
			WithDetail("target", stack.Target).
			WithDetail("output", strings.TrimSpace(string(out)))
	}

	m.logger.Debug().Str("target", stack.Target).Msg("Mounted fuse overlay")
	return nil
}

func (m *FuseMounter) Unmount(ctx context.Context, target string) error {
	args := []string{"-u", target}
	logging.LogCommand(m.UnmountBinary, args)

	out, err := exec.CommandContext(ctx, m.UnmountBinary, args...).CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, errors.ErrMountFailed, "%s failed", m.UnmountBinary).
			WithDetail("target", target).
			WithDetail("output", strings.TrimSpace(string(out)))
	}

	m.logger.Debug().Str("target", target).Msg("Unmounted fuse overlay")
	return nil
}
