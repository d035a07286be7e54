package overlay

import (
	"context"
	"io"
	"path/filepath"
	"runtime"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/nukeythenuke/torygg/pkg/errors"
	"github.com/nukeythenuke/torygg/pkg/logging"
	"github.com/nukeythenuke/torygg/pkg/types"
)

// CopyDeployer materializes a stack by copying instead of mounting,
// for systems without a usable union filesystem. Layers are applied
// strictly lowest precedence first so later layers overwrite earlier
// ones file-for-file; files within one layer copy concurrently. The
// target is mutated in place and there is no reverse operation.
type CopyDeployer struct {
	logger zerolog.Logger
	fs     types.FS
}

// NewCopyDeployer returns a CopyDeployer writing through the given
// filesystem.
func NewCopyDeployer(fsys types.FS) *CopyDeployer {
	return &CopyDeployer{
		logger: logging.GetLogger("overlay.copy"),
		fs:     fsys,
	}
}

// Deploy copies every layer of the stack into its target. The base
// game content is not part of the stack in copy mode: it already
// lives at the target.
func (d *CopyDeployer) Deploy(ctx context.Context, stack Stack) error {
	if err := stack.Validate(); err != nil {
		return err
	}

	for _, layer := range stack.Layers() {
		if err := d.deployLayer(ctx, layer, stack.Target); err != nil {
			return err
		}
	}

	d.logger.Info().
		Str("target", stack.Target).
		Int("layers", len(stack.Lower)+1).
		Msg("Stack deployed by copy")
	return nil
}

func (d *CopyDeployer) deployLayer(ctx context.Context, layer, target string) error {
	files, dirs, err := d.collect(layer)
	if err != nil {
		return err
	}

	// Directories first, serially, so concurrent file copies never
	// race on parent creation.
	for _, rel := range dirs {
		if err := d.fs.MkdirAll(filepath.Join(target, rel), 0755); err != nil {
			return errors.Wrapf(err, errors.ErrIOFailure, "failed to create directory %s", rel).
				WithDetail("layer", layer)
		}
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for _, rel := range files {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return d.copyFile(filepath.Join(layer, rel), filepath.Join(target, rel))
		})
	}
	if err := eg.Wait(); err != nil {
		return errors.Wrapf(err, errors.ErrIOFailure, "failed to copy layer %s", layer).
			WithDetail("layer", layer)
	}

	d.logger.Debug().Str("layer", layer).Int("files", len(files)).Msg("Layer copied")
	return nil
}

// collect walks a layer and returns its file and directory paths
// relative to the layer root, parents before children.
func (d *CopyDeployer) collect(layer string) (files, dirs []string, err error) {
	var walk func(rel string) error
	walk = func(rel string) error {
		entries, err := d.fs.ReadDir(filepath.Join(layer, rel))
		if err != nil {
			return errors.Wrapf(err, errors.ErrIOFailure, "failed to read layer %s", layer)
		}
		for _, entry := range entries {
			childRel := filepath.Join(rel, entry.Name())
			if entry.IsDir() {
				dirs = append(dirs, childRel)
				if err := walk(childRel); err != nil {
					return err
				}
			} else {
				files = append(files, childRel)
			}
		}
		return nil
	}

	if err := walk(""); err != nil {
		return nil, nil, err
	}
	return files, dirs, nil
}

func (d *CopyDeployer) copyFile(source, target string) error {
	in, err := d.fs.Open(source)
	if err != nil {
		return errors.Wrapf(err, errors.ErrIOFailure, "failed to open %s", source)
	}
	defer func() { _ = in.Close() }()

	out, err := d.fs.Create(target)
	if err != nil {
		return errors.Wrapf(err, errors.ErrIOFailure, "failed to create %s", target)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return errors.Wrapf(err, errors.ErrIOFailure, "failed to copy %s", target)
	}
	if err := out.Close(); err != nil {
		return errors.Wrapf(err, errors.ErrIOFailure, "failed to close %s", target)
	}
	return nil
}
