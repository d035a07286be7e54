package extract

import (
	"path/filepath"
	"strings"

	"github.com/nukeythenuke/torygg/pkg/errors"
	"github.com/nukeythenuke/torygg/pkg/logging"
	"github.com/nukeythenuke/torygg/pkg/types"
)

// LowerRoot descends through redundant wrapper directories left by
// extraction. As long as the current root holds exactly one entry, and
// that entry is a directory named "Data" or named after the archive
// itself, the root moves down one level. Comparison is case-insensitive
// because archives produced on Windows disagree about casing.
func LowerRoot(fs types.FS, root, archiveStem string) (string, error) {
	logger := logging.GetLogger("extract")

	for {
		entries, err := fs.ReadDir(root)
		if err != nil {
			return "", errors.Wrapf(err, errors.ErrIOFailure, "failed to read %s", root).
				WithDetail("path", root)
		}
		if len(entries) != 1 {
			break
		}

		entry := entries[0]
		name := strings.ToLower(entry.Name())
		if !entry.IsDir() || (name != "data" && name != strings.ToLower(archiveStem)) {
			break
		}

		root = filepath.Join(root, entry.Name())
		logger.Debug().Str("root", root).Msg("Lowered payload root")
	}

	return root, nil
}

// FindFomodDir looks for an installer script directory directly under
// root. It returns the path to the ModuleConfig.xml inside it, or
// found=false when the mod has no scripted installer. Both the
// directory and the config file are matched case-insensitively.
func FindFomodDir(fs types.FS, root string) (configPath string, found bool, err error) {
	entries, err := fs.ReadDir(root)
	if err != nil {
		return "", false, errors.Wrapf(err, errors.ErrIOFailure, "failed to read %s", root).
			WithDetail("path", root)
	}

	for _, entry := range entries {
		if !entry.IsDir() || !strings.EqualFold(entry.Name(), "fomod") {
			continue
		}

		dir := filepath.Join(root, entry.Name())
		inner, err := fs.ReadDir(dir)
		if err != nil {
			return "", false, errors.Wrapf(err, errors.ErrIOFailure, "failed to read %s", dir).
				WithDetail("path", dir)
		}
		for _, file := range inner {
			if !file.IsDir() && strings.EqualFold(file.Name(), "ModuleConfig.xml") {
				return filepath.Join(dir, file.Name()), true, nil
			}
		}
	}

	return "", false, nil
}

// ArchiveStem returns the archive file name without its extension,
// which doubles as the default mod name.
func ArchiveStem(archive string) string {
	base := filepath.Base(archive)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
