package parserdb

import (
	"strings"
	"testing"

	"github.com/bamlgo/baml/internal/ast"
	"github.com/stretchr/testify/require"
)

func parseAll(t *testing.T, sources map[string]string) []*ast.File {
	t.Helper()
	var files []*ast.File
	for path, src := range sources {
		f, diags := ast.Parse(path, src)
		require.False(t, diags != nil && diags.HasErrors(), "unexpected parse errors in %s: %v", path, diags)
		files = append(files, f)
	}
	return files
}

// TestRequiredDependencyCycleRejected is end-to-end scenario D: classes
// A{b: B} and B{a: A} must produce a ValidationError naming the cycle.
func TestRequiredDependencyCycleRejected(t *testing.T) {
	files := parseAll(t, map[string]string{
		"cycle.baml": `
class A {
  b B
}

class B {
  a A
}
`,
	})
	_, diags := Build(files)
	require.True(t, diags.HasErrors())
	found := false
	for _, e := range diags.Errors {
		if strings.Contains(e.Message, "dependency cycle") {
			found = true
			require.Contains(t, e.Message, "A")
			require.Contains(t, e.Message, "B")
		}
	}
	require.True(t, found, "expected a dependency cycle error, got: %v", diags.Errors)
}

// TestOptionalBreaksCycle checks that an optional field on one side of an
// otherwise-cyclic class pair does not trigger a cycle error, per
// spec.md §3's "unions and optionals can break a cycle" invariant.
func TestOptionalBreaksCycle(t *testing.T) {
	files := parseAll(t, map[string]string{
		"ok.baml": `
class A {
  b B?
}

class B {
  a A
}
`,
	})
	_, diags := Build(files)
	for _, e := range diags.Errors {
		require.NotContains(t, e.Message, "dependency cycle")
	}
}

func TestUnknownTypeReferenceRejected(t *testing.T) {
	files := parseAll(t, map[string]string{
		"bad.baml": `
class A {
  b Missing
}
`,
	})
	_, diags := Build(files)
	require.True(t, diags.HasErrors())
}

func TestDuplicateDeclarationRejected(t *testing.T) {
	files := parseAll(t, map[string]string{
		"dup.baml": `
class A {
  x string
}

class A {
  y string
}
`,
	})
	_, diags := Build(files)
	require.True(t, diags.HasErrors())
}
