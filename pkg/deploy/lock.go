package deploy

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/nukeythenuke/torygg/pkg/errors"
)

// lockProfile takes the profile's exclusive operation lock: an
// in-process mutex against concurrent goroutines and an flock(2) on
// the profile's lock file against other torygg processes. Contention
// on either reports OPERATION_IN_PROGRESS instead of blocking.
func (c *Coordinator) lockProfile(profileName string) (release func(), err error) {
	mu := c.mutexFor(profileName)
	if !mu.TryLock() {
		return nil, errors.Newf(errors.ErrOperationInProgress, "another operation on profile %q is running", profileName).
			WithDetail("profile", profileName)
	}

	lockPath := c.paths.LockPath(profileName)
	fd, err := unix.Open(lockPath, unix.O_CREAT|unix.O_RDWR|unix.O_CLOEXEC, 0644)
	if err != nil {
		mu.Unlock()
		// The lock file lives in the profile directory, so a missing
		// parent means the profile itself does not exist.
		if err == unix.ENOENT {
			return nil, errors.Newf(errors.ErrUnknownProfile, "profile %q does not exist", profileName).
				WithDetail("profile", profileName)
		}
		return nil, errors.Wrapf(err, errors.ErrIOFailure, "failed to open lock file %s", lockPath)
	}
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = unix.Close(fd)
		mu.Unlock()
		return nil, errors.Newf(errors.ErrOperationInProgress, "profile %q is locked by another process", profileName).
			WithDetail("profile", profileName).
			WithDetail("lock", lockPath)
	}

	return func() {
		_ = unix.Flock(fd, unix.LOCK_UN)
		_ = unix.Close(fd)
		mu.Unlock()
	}, nil
}

func (c *Coordinator) mutexFor(profileName string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	mu, ok := c.locks[profileName]
	if !ok {
		mu = &sync.Mutex{}
		c.locks[profileName] = mu
	}
	return mu
}
