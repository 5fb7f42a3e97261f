package runtime

import (
	"os"
	"sort"

	"github.com/bamlgo/baml/internal/ast"
	"github.com/bamlgo/baml/internal/bamlerr"
	"github.com/bamlgo/baml/internal/ir"
	"github.com/bamlgo/baml/internal/llmclient"
	"github.com/bamlgo/baml/internal/parserdb"
)

// Runtime owns one immutable build of the IR plus the registry of
// memoized provider clients built from it. A fresh build produces a fresh
// Runtime rather than mutating an existing one in place.
type Runtime struct {
	IR       *ir.IntermediateRepr
	registry *llmclient.Registry
	env      llmclient.Env
}

// FromFileContent parses and validates every source in files (path ->
// text), builds the IR, and returns a ready-to-use Runtime. env is the
// per-build environment snapshot client options and @env-var expressions
// resolve against.
func FromFileContent(files map[string]string, env map[string]string) (*Runtime, *bamlerr.Diagnostics) {
	diags := &bamlerr.Diagnostics{}

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths) // deterministic parse order regardless of map iteration

	astFiles := make([]*ast.File, 0, len(paths))
	for _, p := range paths {
		file, fileDiags := ast.Parse(p, files[p])
		if fileDiags != nil {
			diags.Errors = append(diags.Errors, fileDiags.Errors...)
			diags.Warnings = append(diags.Warnings, fileDiags.Warnings...)
		}
		astFiles = append(astFiles, file)
	}
	if diags.HasErrors() {
		return nil, diags
	}

	db, dbDiags := parserdb.Build(astFiles)
	if dbDiags != nil {
		diags.Errors = append(diags.Errors, dbDiags.Errors...)
		diags.Warnings = append(diags.Warnings, dbDiags.Warnings...)
	}
	if diags.HasErrors() {
		return nil, diags
	}

	irepr := ir.Build(db)
	return &Runtime{
		IR:       irepr,
		registry: llmclient.NewRegistry(),
		env:      llmclient.Env(env),
	}, diags
}

// FromDirectory is a thin wrapper over DiscoverFiles + FromFileContent,
// reading baml_src/ from the local filesystem. Environment variables are
// snapshotted from os.Environ() once at load time, merged with overrideEnv.
func FromDirectory(root string, overrideEnv map[string]string) (*Runtime, *bamlerr.Diagnostics) {
	files, err := DiscoverFiles(os.DirFS(root), ".")
	if err != nil {
		diags := &bamlerr.Diagnostics{}
		diags.PushError(bamlerr.Wrap(bamlerr.InternalFailure, err, "loading baml_src directory %q", root))
		return nil, diags
	}
	return FromFileContent(files, mergeEnv(overrideEnv))
}

func mergeEnv(overrides map[string]string) map[string]string {
	out := map[string]string{}
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				out[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

