package store

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/arthur-debert/synthfs/pkg/synthfs"
	"github.com/arthur-debert/synthfs/pkg/synthfs/core"
	"github.com/arthur-debert/synthfs/pkg/synthfs/filesystem"
	"github.com/arthur-debert/synthfs/pkg/synthfs/operations"

	"github.com/nukeythenuke/torygg/pkg/errors"
	"github.com/nukeythenuke/torygg/pkg/types"
)

// stagedOp is one pending filesystem mutation of a staging run
type stagedOp struct {
	dir    bool
	source string
	target string
}

// materialize stages the mapped portion of sourceRoot into stageRoot by
// building a synthfs pipeline and executing it. Later mappings replace
// earlier ones targeting the same file, so plan order decides conflicts.
func (s *Store) materialize(ctx context.Context, sourceRoot, stageRoot string, mappings []Mapping) error {
	ops, err := s.stageOperations(sourceRoot, stageRoot, mappings)
	if err != nil {
		return err
	}

	pipeline := synthfs.NewMemPipeline()
	for _, op := range ops {
		synthOp, err := toSynthfsOperation(op)
		if err != nil {
			return err
		}
		if err := pipeline.Add(synthOp); err != nil {
			return errors.Wrap(err, errors.ErrInternal, "failed to add operation to pipeline")
		}
	}

	s.logger.Debug().
		Int("operationCount", len(ops)).
		Str("stageRoot", stageRoot).
		Msg("Executing staging pipeline")

	executor := synthfs.NewExecutor()
	result := executor.Run(ctx, pipeline, filesystem.NewOSFileSystem("/"))
	if result.GetError() != nil {
		return errors.Wrap(result.GetError(), errors.ErrIOFailure, "failed to stage payload").
			WithDetail("stageRoot", stageRoot)
	}
	return nil
}

// stageOperations flattens the mappings into an ordered operation list.
// Directory creates are deduplicated; a later copy to an already-staged
// file replaces the earlier copy in place.
func (s *Store) stageOperations(sourceRoot, stageRoot string, mappings []Mapping) ([]stagedOp, error) {
	var ops []stagedOp
	createdDirs := make(map[string]bool)
	copyIndex := make(map[string]int)

	addDir := func(target string) {
		if createdDirs[target] {
			return
		}
		createdDirs[target] = true
		ops = append(ops, stagedOp{dir: true, target: target})
	}
	addCopy := func(source, target string) {
		key := strings.ToLower(target)
		if i, ok := copyIndex[key]; ok {
			ops[i].source = source
			return
		}
		copyIndex[key] = len(ops)
		ops = append(ops, stagedOp{source: source, target: target})
	}

	addDir(stageRoot)

	for _, m := range mappings {
		source := filepath.Join(sourceRoot, filepath.FromSlash(m.Source))
		target := filepath.Join(stageRoot, filepath.FromSlash(m.Destination))
		if target != stageRoot && !strings.HasPrefix(target, stageRoot+string(filepath.Separator)) {
			return nil, errors.Newf(errors.ErrInvalidInput,
				"mapping destination %q escapes the payload", m.Destination)
		}

		info, err := s.fs.Stat(source)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrNotFound,
				"mapped path %q is missing from the archive", m.Source).
				WithDetail("source", m.Source)
		}

		if m.IsFolder {
			if !info.IsDir() {
				return nil, errors.Newf(errors.ErrInvalidInput,
					"mapped folder %q is a file", m.Source)
			}
			for _, dir := range ancestors(stageRoot, target) {
				addDir(dir)
			}
			entries, err := walkTree(s.fs, source)
			if err != nil {
				return nil, err
			}
			for _, entry := range entries {
				entryTarget := filepath.Join(target, entry.rel)
				if entry.dir {
					addDir(entryTarget)
				} else {
					addCopy(filepath.Join(source, entry.rel), entryTarget)
				}
			}
		} else {
			if info.IsDir() {
				return nil, errors.Newf(errors.ErrInvalidInput,
					"mapped file %q is a directory", m.Source)
			}
			for _, dir := range ancestors(stageRoot, filepath.Dir(target)) {
				addDir(dir)
			}
			addCopy(source, target)
		}
	}

	return ops, nil
}

func toSynthfsOperation(op stagedOp) (synthfs.Operation, error) {
	if op.dir {
		relPath, err := filepath.Rel("/", op.target)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrInternal, "failed to convert path: %s", op.target)
		}
		opID := core.OperationID(fmt.Sprintf("create-dir-%s", op.target))
		createOp := operations.NewCreateDirectoryOperation(opID, relPath)
		createOp.SetItem(&directoryItem{path: relPath, mode: 0755})
		return synthfs.NewOperationsPackageAdapter(createOp), nil
	}

	relSource, err := filepath.Rel("/", op.source)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrInternal, "failed to convert path: %s", op.source)
	}
	relTarget, err := filepath.Rel("/", op.target)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrInternal, "failed to convert path: %s", op.target)
	}
	opID := core.OperationID(fmt.Sprintf("copy-%s", op.target))
	copyOp := operations.NewCopyOperation(opID, relTarget)
	copyOp.SetPaths(relSource, relTarget)
	return synthfs.NewOperationsPackageAdapter(copyOp), nil
}

// ancestors lists the directories between root (exclusive) and dir
// (inclusive), shallowest first.
func ancestors(root, dir string) []string {
	var chain []string
	for dir != root && strings.HasPrefix(dir, root) {
		chain = append([]string{dir}, chain...)
		dir = filepath.Dir(dir)
	}
	return chain
}

// treeEntry is one member of a recursive directory walk
type treeEntry struct {
	rel string
	dir bool
}

// walkTree lists a tree depth-first with parents before children, in
// the deterministic order ReadDir provides.
func walkTree(fsys types.FS, root string) ([]treeEntry, error) {
	var out []treeEntry
	var walk func(dir, rel string) error
	walk = func(dir, rel string) error {
		entries, err := fsys.ReadDir(dir)
		if err != nil {
			return errors.Wrapf(err, errors.ErrIOFailure, "failed to read %s", dir)
		}
		for _, entry := range entries {
			childRel := filepath.Join(rel, entry.Name())
			if entry.IsDir() {
				out = append(out, treeEntry{rel: childRel, dir: true})
				if err := walk(filepath.Join(dir, entry.Name()), childRel); err != nil {
					return err
				}
			} else {
				out = append(out, treeEntry{rel: childRel, dir: false})
			}
		}
		return nil
	}
	if err := walk(root, ""); err != nil {
		return nil, err
	}
	return out, nil
}

// directoryItem carries the metadata synthfs needs for directory creates
type directoryItem struct {
	path string
	mode fs.FileMode
}

func (d *directoryItem) Path() string       { return d.path }
func (d *directoryItem) Type() string       { return "directory" }
func (d *directoryItem) Mode() fs.FileMode  { return d.mode }
func (d *directoryItem) IsDir() bool        { return true }
func (d *directoryItem) ModTime() time.Time { return time.Now() }
func (d *directoryItem) Size() int64        { return 0 }
