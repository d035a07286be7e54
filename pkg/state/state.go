// Package state persists the small amount of torygg state that
// survives between invocations: the profile commands operate on when
// no flag selects one.
package state

import (
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"

	"github.com/nukeythenuke/torygg/pkg/errors"
	"github.com/nukeythenuke/torygg/pkg/logging"
	"github.com/nukeythenuke/torygg/pkg/paths"
	"github.com/nukeythenuke/torygg/pkg/types"
)

// State is the content of the state file
type State struct {
	// CurrentProfile is the profile commands default to
	CurrentProfile string `toml:"current_profile"`
}

// Store reads and writes the state file in the data directory
type Store struct {
	logger zerolog.Logger
	paths  paths.Paths
	fs     types.FS
}

// NewStore creates a state store
func NewStore(p paths.Paths, fsys types.FS) *Store {
	return &Store{
		logger: logging.GetLogger("state"),
		paths:  p,
		fs:     fsys,
	}
}

// Load returns the persisted state. A missing file is a zero state,
// not an error, so first runs need no setup step.
func (s *Store) Load() (*State, error) {
	path := s.paths.StatePath()
	if _, err := s.fs.Stat(path); err != nil {
		return &State{}, nil
	}

	data, err := s.fs.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrIOFailure, "failed to read %s", path).
			WithDetail("path", path)
	}

	var st State
	if err := toml.Unmarshal(data, &st); err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("Dropping unreadable state file")
		return &State{}, nil
	}
	return &st, nil
}

// Save writes the state file
func (s *Store) Save(st *State) error {
	data, err := toml.Marshal(st)
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "failed to encode state")
	}

	path := s.paths.StatePath()
	if err := s.fs.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrIOFailure, "failed to write %s", path).
			WithDetail("path", path)
	}
	return nil
}

// Use records the profile commands default to from now on
func (s *Store) Use(profileName string) error {
	st, err := s.Load()
	if err != nil {
		return err
	}
	st.CurrentProfile = profileName

	if err := s.Save(st); err != nil {
		return err
	}
	s.logger.Info().Str("profile", profileName).Msg("Switched profile")
	return nil
}
