// Package extract unpacks mod archives by shelling out to 7z and
// normalizes the resulting tree into a payload root.
package extract

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nukeythenuke/torygg/pkg/errors"
	"github.com/nukeythenuke/torygg/pkg/logging"
)

// Entry describes one member of an archive listing
type Entry struct {
	Path string
	Dir  bool
	Size int64
}

// Extractor is the archive capability torygg depends on
type Extractor interface {
	List(ctx context.Context, archive string) ([]Entry, error)
	Extract(ctx context.Context, archive, dest string) error
}

// supportedExtensions are the archive formats handed to 7z
var supportedExtensions = map[string]bool{
	".7z":  true,
	".zip": true,
	".rar": true,
}

// SevenZip extracts archives with the 7z command line tool
type SevenZip struct {
	// Binary is the 7z executable, usually just "7z"
	Binary string
}

// NewSevenZip creates an extractor using the given 7z binary
func NewSevenZip(binary string) *SevenZip {
	if binary == "" {
		binary = "7z"
	}
	return &SevenZip{Binary: binary}
}

// checkArchive validates the archive path before invoking the tool
func checkArchive(archive string) error {
	ext := strings.ToLower(filepath.Ext(archive))
	if !supportedExtensions[ext] {
		return errors.Newf(errors.ErrUnsupportedFormat, "unsupported archive format %q", ext).
			WithDetail("archive", archive)
	}
	if _, err := os.Stat(archive); err != nil {
		return errors.Wrapf(err, errors.ErrNotFound, "archive %s does not exist", archive).
			WithDetail("archive", archive)
	}
	return nil
}

// List returns the members of the archive using "7z l -slt -ba"
func (s *SevenZip) List(ctx context.Context, archive string) ([]Entry, error) {
	if err := checkArchive(archive); err != nil {
		return nil, err
	}

	args := listArgs(archive)
	logging.LogCommand(s.Binary, args)

	out, err := exec.CommandContext(ctx, s.Binary, args...).CombinedOutput()
	if err != nil {
		return nil, toolError(err, out, archive, "failed to list archive")
	}

	return parseListing(string(out)), nil
}

// Extract unpacks the archive into dest using "7z x -aoa"
func (s *SevenZip) Extract(ctx context.Context, archive, dest string) error {
	if err := checkArchive(archive); err != nil {
		return err
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return errors.Wrapf(err, errors.ErrIOFailure, "failed to create %s", dest).
			WithDetail("path", dest)
	}

	logger := logging.GetLogger("extract")
	args := extractArgs(archive, dest)
	logging.LogCommand(s.Binary, args)

	out, err := exec.CommandContext(ctx, s.Binary, args...).CombinedOutput()
	if err != nil {
		return toolError(err, out, archive, "failed to extract archive")
	}

	logger.Debug().Str("archive", archive).Str("dest", dest).Msg("Archive extracted")
	return nil
}

func listArgs(archive string) []string {
	return []string{"l", "-slt", "-ba", archive}
}

func extractArgs(archive, dest string) []string {
	return []string{"x", "-aoa", "-o" + dest, archive}
}

// toolError classifies a 7z failure by scanning its output
func toolError(err error, out []byte, archive, msg string) error {
	output := string(out)
	code := errors.ErrExtractFailed
	if strings.Contains(output, "Can not open the file as archive") ||
		strings.Contains(output, "CRC Failed") ||
		strings.Contains(output, "Data Error") {
		code = errors.ErrCorruptArchive
	}
	return errors.Wrap(err, code, msg).
		WithDetail("archive", archive).
		WithDetail("output", strings.TrimSpace(output))
}

// parseListing reads the -slt block format: one "Key = Value" set per
// member, blocks separated by blank lines.
func parseListing(out string) []Entry {
	var entries []Entry
	current := Entry{}
	flush := func() {
		if current.Path != "" {
			entries = append(entries, current)
		}
		current = Entry{}
	}

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			flush()
			continue
		}
		key, value, found := strings.Cut(line, " = ")
		if !found {
			continue
		}
		switch key {
		case "Path":
			current.Path = filepath.ToSlash(value)
		case "Size":
			if n, err := strconv.ParseInt(value, 10, 64); err == nil {
				current.Size = n
			}
		case "Folder":
			current.Dir = value == "+"
		case "Attributes":
			if strings.HasPrefix(value, "D") {
				current.Dir = true
			}
		}
	}
	flush()

	return entries
}
