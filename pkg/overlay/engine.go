package overlay

import (
	"context"
	"sync"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"

	"github.com/nukeythenuke/torygg/pkg/errors"
	"github.com/nukeythenuke/torygg/pkg/logging"
	"github.com/nukeythenuke/torygg/pkg/paths"
	"github.com/nukeythenuke/torygg/pkg/types"
)

// MountRecord is the persisted marker proving a profile's mount was
// established. Its presence is authoritative: OS mount tables go stale
// across reboots and across fuse daemon crashes, the marker does not.
type MountRecord struct {
	Profile   string    `toml:"profile"`
	Target    string    `toml:"target"`
	Backend   string    `toml:"backend"`
	MountedAt time.Time `toml:"mounted_at"`
}

// Engine owns the mount lifecycle of profiles. Transitions run
// Unmounted, Mounting, Mounted, Unmounting and back, with Error
// reachable from Mounting and Unmounting; the only way out of Error is
// an unmount. The record written during Mounting survives the process,
// so a crashed or foreign mount is still visible and recoverable.
type Engine struct {
	logger  zerolog.Logger
	paths   paths.Paths
	fs      types.FS
	mounter Mounter

	mu     sync.Mutex
	states map[string]State
}

// NewEngine returns an Engine mounting through the given backend.
func NewEngine(p paths.Paths, fsys types.FS, mounter Mounter) *Engine {
	return &Engine{
		logger:  logging.GetLogger("overlay"),
		paths:   p,
		fs:      fsys,
		mounter: mounter,
		states:  make(map[string]State),
	}
}

// State reports the lifecycle state of a profile. A mount record left
// by another process reads as Mounted.
func (e *Engine) State(profileName string) State {
	e.mu.Lock()
	state, tracked := e.states[profileName]
	e.mu.Unlock()

	if tracked {
		return state
	}
	if e.hasRecord(profileName) {
		return StateMounted
	}
	return StateUnmounted
}

// Record returns the persisted mount record of a profile.
func (e *Engine) Record(profileName string) (*MountRecord, error) {
	data, err := e.fs.ReadFile(e.paths.MountRecordPath(profileName))
	if err != nil {
		return nil, errors.Newf(errors.ErrNotFound, "profile %q is not mounted", profileName).
			WithDetail("profile", profileName)
	}

	var record MountRecord
	if err := toml.Unmarshal(data, &record); err != nil {
		return nil, errors.Wrapf(err, errors.ErrInternal, "corrupt mount record for profile %q", profileName).
			WithDetail("profile", profileName)
	}
	return &record, nil
}

// Mount establishes the union view of a validated stack and records
// it. A failed mount leaves the profile in Error with the record kept;
// recovery goes through Unmount.
func (e *Engine) Mount(ctx context.Context, profileName string, stack Stack) error {
	defer logging.LogOperationStart(e.logger, "mount")()

	if err := stack.Validate(); err != nil {
		return err
	}

	switch state := e.State(profileName); state {
	case StateMounting, StateUnmounting:
		return errors.Newf(errors.ErrOperationInProgress, "profile %q is %s", profileName, state).
			WithDetail("profile", profileName)
	case StateError:
		return errors.Newf(errors.ErrMountFailed, "previous mount of profile %q failed, unmount to reset", profileName).
			WithDetail("profile", profileName)
	}
	if e.hasRecord(profileName) {
		return errors.Newf(errors.ErrAlreadyMounted, "profile %q is already mounted", profileName).
			WithDetail("profile", profileName)
	}

	if err := e.transition(profileName, StateUnmounted, StateMounting); err != nil {
		return err
	}
	if err := e.writeRecord(profileName, stack); err != nil {
		e.setState(profileName, StateUnmounted)
		return err
	}

	if err := e.mounter.Mount(ctx, stack); err != nil {
		e.setState(profileName, StateError)
		e.logger.Error().Err(err).
			Str("profile", profileName).
			Str("target", stack.Target).
			Msg("Mount failed")
		return errors.Wrapf(err, errors.ErrMountFailed, "failed to mount profile %q", profileName).
			WithDetail("profile", profileName).
			WithDetail("target", stack.Target)
	}

	e.setState(profileName, StateMounted)
	e.logger.Info().
		Str("profile", profileName).
		Str("target", stack.Target).
		Str("backend", e.mounter.Name()).
		Int("layers", len(stack.Lower)).
		Msg("Profile mounted")
	return nil
}

// Unmount detaches a profile's overlay and removes its record.
// Calling it on an unmounted profile is a no-op. Records this process
// did not create, and profiles stuck in Error, are cleaned up
// best-effort: a detach failure is logged and the record removed
// anyway, since the mount it describes is not trustworthy.
func (e *Engine) Unmount(ctx context.Context, profileName string) error {
	recordPath := e.paths.MountRecordPath(profileName)

	record, err := e.Record(profileName)
	switch {
	case err == nil:
	case errors.IsErrorCode(err, errors.ErrNotFound):
		e.logger.Debug().Str("profile", profileName).Msg("Profile not mounted, nothing to do")
		e.setState(profileName, StateUnmounted)
		return nil
	default:
		// Unreadable record: nothing can be detached reliably, so
		// drop the marker and start over.
		e.logger.Warn().Err(err).Str("profile", profileName).Msg("Dropping unreadable mount record")
		if rerr := e.fs.Remove(recordPath); rerr != nil {
			return errors.Wrapf(rerr, errors.ErrIOFailure, "failed to remove mount record for profile %q", profileName)
		}
		e.setState(profileName, StateUnmounted)
		return nil
	}

	e.mu.Lock()
	previous, tracked := e.states[profileName]
	e.mu.Unlock()
	if previous == StateMounting || previous == StateUnmounting {
		return errors.Newf(errors.ErrOperationInProgress, "profile %q is %s", profileName, previous).
			WithDetail("profile", profileName)
	}
	bestEffort := !tracked || previous == StateError

	e.setState(profileName, StateUnmounting)
	if uerr := e.mounter.Unmount(ctx, record.Target); uerr != nil {
		if !bestEffort {
			e.setState(profileName, StateError)
			return errors.Wrapf(uerr, errors.ErrMountFailed, "failed to unmount profile %q", profileName).
				WithDetail("profile", profileName).
				WithDetail("target", record.Target)
		}
		e.logger.Warn().Err(uerr).
			Str("profile", profileName).
			Str("target", record.Target).
			Msg("Detach failed, removing stale mount record")
	}

	if rerr := e.fs.Remove(recordPath); rerr != nil {
		e.setState(profileName, StateError)
		return errors.Wrapf(rerr, errors.ErrIOFailure, "failed to remove mount record for profile %q", profileName)
	}

	e.setState(profileName, StateUnmounted)
	e.logger.Info().Str("profile", profileName).Str("target", record.Target).Msg("Profile unmounted")
	return nil
}

func (e *Engine) hasRecord(profileName string) bool {
	_, err := e.fs.Stat(e.paths.MountRecordPath(profileName))
	return err == nil
}

func (e *Engine) writeRecord(profileName string, stack Stack) error {
	record := MountRecord{
		Profile:   profileName,
		Target:    stack.Target,
		Backend:   e.mounter.Name(),
		MountedAt: time.Now().UTC(),
	}

	data, err := toml.Marshal(record)
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "failed to encode mount record")
	}

	path := e.paths.MountRecordPath(profileName)
	if err := e.fs.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrIOFailure, "failed to write mount record %s", path)
	}
	return nil
}

// transition is the compare-and-set guarding concurrent operations on
// one profile.
func (e *Engine) transition(profileName string, from, to State) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	current, tracked := e.states[profileName]
	if !tracked {
		current = StateUnmounted
	}
	if current != from {
		return errors.Newf(errors.ErrOperationInProgress, "profile %q is %s", profileName, current).
			WithDetail("profile", profileName)
	}
	e.states[profileName] = to
	return nil
}

func (e *Engine) setState(profileName string, state State) {
	e.mu.Lock()
	e.states[profileName] = state
	e.mu.Unlock()
}
