// pkg/filesystem/filesystem_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: None (temp dirs and in-memory fs)
// PURPOSE: Verify both FS implementations behave identically for the operations torygg relies on

package filesystem_test

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nukeythenuke/torygg/pkg/filesystem"
	"github.com/nukeythenuke/torygg/pkg/types"
)

func TestFSImplementations(t *testing.T) {
	impls := []struct {
		name string
		fs   func(t *testing.T) (types.FS, string)
	}{
		{
			name: "os",
			fs: func(t *testing.T) (types.FS, string) {
				return filesystem.NewOS(), t.TempDir()
			},
		},
		{
			name: "memory",
			fs: func(t *testing.T) (types.FS, string) {
				return filesystem.NewMemory(), "/test"
			},
		},
	}

	for _, impl := range impls {
		t.Run(impl.name, func(t *testing.T) {
			fs, root := impl.fs(t)

			t.Run("write_and_read_file", func(t *testing.T) {
				path := filepath.Join(root, "sub", "file.txt")
				require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0755))
				require.NoError(t, fs.WriteFile(path, []byte("content"), 0644))

				data, err := fs.ReadFile(path)
				require.NoError(t, err)
				assert.Equal(t, "content", string(data))

				info, err := fs.Stat(path)
				require.NoError(t, err)
				assert.False(t, info.IsDir())
			})

			t.Run("open_and_create_stream", func(t *testing.T) {
				src := filepath.Join(root, "stream-src.dat")
				dst := filepath.Join(root, "stream-dst.dat")
				require.NoError(t, fs.WriteFile(src, []byte("streamed bytes"), 0644))

				in, err := fs.Open(src)
				require.NoError(t, err)
				out, err := fs.Create(dst)
				require.NoError(t, err)

				_, err = io.Copy(out, in)
				require.NoError(t, err)
				require.NoError(t, in.Close())
				require.NoError(t, out.Close())

				data, err := fs.ReadFile(dst)
				require.NoError(t, err)
				assert.Equal(t, "streamed bytes", string(data))
			})

			t.Run("read_dir", func(t *testing.T) {
				dir := filepath.Join(root, "listing")
				require.NoError(t, fs.MkdirAll(filepath.Join(dir, "child"), 0755))
				require.NoError(t, fs.WriteFile(filepath.Join(dir, "a.esp"), []byte("x"), 0644))

				entries, err := fs.ReadDir(dir)
				require.NoError(t, err)
				assert.Len(t, entries, 2)
			})

			t.Run("rename", func(t *testing.T) {
				oldPath := filepath.Join(root, "before")
				newPath := filepath.Join(root, "after")
				require.NoError(t, fs.WriteFile(oldPath, []byte("move me"), 0644))

				require.NoError(t, fs.Rename(oldPath, newPath))

				_, err := fs.Stat(oldPath)
				assert.Error(t, err, "old path should be gone")
				data, err := fs.ReadFile(newPath)
				require.NoError(t, err)
				assert.Equal(t, "move me", string(data))
			})

			t.Run("remove_all", func(t *testing.T) {
				dir := filepath.Join(root, "tree")
				require.NoError(t, fs.MkdirAll(filepath.Join(dir, "deep", "deeper"), 0755))
				require.NoError(t, fs.WriteFile(filepath.Join(dir, "deep", "f"), []byte("x"), 0644))

				require.NoError(t, fs.RemoveAll(dir))

				_, err := fs.Stat(dir)
				assert.Error(t, err)
			})

			t.Run("read_file_on_directory_fails", func(t *testing.T) {
				dir := filepath.Join(root, "adir")
				require.NoError(t, fs.MkdirAll(dir, 0755))

				_, err := fs.ReadFile(dir)
				assert.Error(t, err)
			})
		})
	}
}
