package types

import (
	"io"
	"io/fs"
)

// FS is the filesystem interface required for torygg operations
type FS interface {
	// File operations
	Stat(name string) (fs.FileInfo, error)
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm fs.FileMode) error
	Open(name string) (fs.File, error)
	Create(name string) (io.WriteCloser, error)

	// Directory operations
	MkdirAll(path string, perm fs.FileMode) error
	ReadDir(name string) ([]fs.DirEntry, error)

	// Symlink operations
	Symlink(oldname, newname string) error
	Readlink(name string) (string, error)

	// Other operations
	Remove(name string) error
	RemoveAll(path string) error
	Rename(oldpath, newpath string) error

	// Optional operations - implementations should check for support
	// For testing, Lstat can fall back to Stat
	Lstat(name string) (fs.FileInfo, error)
}

// Pather provides paths for torygg operations
type Pather interface {
	// DataDir returns the XDG data directory for torygg
	DataDir() string

	// ConfigDir returns the XDG config directory for torygg
	ConfigDir() string

	// ModsDir returns the directory holding installed mod payloads
	ModsDir() string

	// StagingDir returns the scratch directory used while installing mods
	StagingDir() string

	// CatalogPath returns the path of the mod catalog database
	CatalogPath() string

	// ProfilesDir returns the directory holding all profiles
	ProfilesDir() string

	// ProfileDir returns the directory of a single profile
	ProfileDir(name string) string

	// OverwriteDir returns a profile's writable overlay layer
	OverwriteDir(profile string) string

	// AppDataDir returns a profile's game configuration directory
	AppDataDir(profile string) string

	// WorkDir returns a profile's overlayfs working directory
	WorkDir(profile string) string

	// StatePath returns the path of the persisted engine state file
	StatePath() string
}
