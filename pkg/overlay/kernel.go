package overlay

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/nukeythenuke/torygg/pkg/errors"
	"github.com/nukeythenuke/torygg/pkg/logging"
)

// KernelMounter mounts through mount(2) with the in-kernel overlay
// filesystem. Requires CAP_SYS_ADMIN in the current namespace.
type KernelMounter struct {
	logger zerolog.Logger
}

func NewKernelMounter() *KernelMounter {
	return &KernelMounter{logger: logging.GetLogger("overlay.kernel")}
}

func (m *KernelMounter) Name() string {
	return "kernel"
}

func (m *KernelMounter) Mount(_ context.Context, stack Stack) error {
	data := stack.optionData()
	m.logger.Debug().Str("target", stack.Target).Str("data", data).Msg("Mounting overlay")

	if err := unix.Mount("overlay", stack.Target, "overlay", 0, data); err != nil {
		return errors.Wrapf(err, errors.ErrMountFailed, "mount overlay at %s", stack.Target).
			WithDetail("target", stack.Target).
			WithDetail("data", data)
	}
	return nil
}

func (m *KernelMounter) Unmount(_ context.Context, target string) error {
	if err := unix.Unmount(target, 0); err != nil {
		return errors.Wrapf(err, errors.ErrMountFailed, "unmount %s", target).
			WithDetail("target", target)
	}

	m.logger.Debug().Str("target", target).Msg("Unmounted overlay")
	return nil
}
