// Package runtime wires the toolchain's stages into a single call surface:
// loading a baml_src directory or in-memory file set, building the IR,
// calling and streaming functions, rendering prompts without dispatching
// them, and looking up declared test arguments. Every other package is a
// pure consumer of the IR; this is the one package that owns I/O.
package runtime

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/bamlgo/baml/internal/bamlerr"
)

// DiscoverFiles walks root collecting every .baml/.json file's text,
// keyed by its path relative to root. from_directory is a thin wrapper
// around this plus FromFileContent.
func DiscoverFiles(fsys fs.FS, root string) (map[string]string, error) {
	out := map[string]string{}
	err := fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".baml" && ext != ".json" {
			return nil
		}
		data, readErr := fs.ReadFile(fsys, path)
		if readErr != nil {
			return readErr
		}
		out[path] = string(data)
		return nil
	})
	if err != nil {
		return nil, bamlerr.Wrap(bamlerr.InternalFailure, err, "discovering baml_src files under %q", root)
	}
	return out, nil
}
