package overlay

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/nukeythenuke/torygg/pkg/errors"
	"github.com/nukeythenuke/torygg/pkg/types"
)

// FakeMounter composes stacks in memory for tests. It records every
// call, refuses to unmount targets it never mounted, and can be told
// to fail outright.
type FakeMounter struct {
	// MountErr and UnmountErr, when set, fail the corresponding call.
	MountErr   error
	UnmountErr error

	mu           sync.Mutex
	mounts       map[string]Stack
	mountCalls   int
	unmountCalls int
}

func NewFakeMounter() *FakeMounter {
	return &FakeMounter{mounts: make(map[string]Stack)}
}

func (f *FakeMounter) Name() string {
	return "fake"
}

func (f *FakeMounter) Mount(_ context.Context, stack Stack) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.mountCalls++
	if f.MountErr != nil {
		return f.MountErr
	}
	f.mounts[stack.Target] = stack
	return nil
}

func (f *FakeMounter) Unmount(_ context.Context, target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.unmountCalls++
	if f.UnmountErr != nil {
		return f.UnmountErr
	}
	if _, ok := f.mounts[target]; !ok {
		return errors.Newf(errors.ErrMountFailed, "%s is not mounted", target)
	}
	delete(f.mounts, target)
	return nil
}

// Mounted reports whether a stack is currently mounted at target.
func (f *FakeMounter) Mounted(target string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.mounts[target]
	return ok
}

// StackAt returns the stack mounted at target.
func (f *FakeMounter) StackAt(target string) (Stack, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stack, ok := f.mounts[target]
	return stack, ok
}

// Calls returns how many mount and unmount attempts were made.
func (f *FakeMounter) Calls() (mounts, unmounts int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mountCalls, f.unmountCalls
}

// Resolve returns the path a reader of the mounted view would see at
// rel: the file in the highest-precedence layer providing it.
func (f *FakeMounter) Resolve(fsys types.FS, target, rel string) (string, bool) {
	stack, ok := f.StackAt(target)
	if !ok {
		return "", false
	}

	layers := stack.Layers()
	for i := len(layers) - 1; i >= 0; i-- {
		candidate := filepath.Join(layers[i], rel)
		if info, err := fsys.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
	}
	return "", false
}
