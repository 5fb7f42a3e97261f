package template

import (
	"testing"

	"github.com/bamlgo/baml/internal/bamlerr"
	"github.com/bamlgo/baml/internal/ir"
	"github.com/bamlgo/baml/internal/types"
	"github.com/stretchr/testify/require"
)

// TestOutputFormatAlwaysWellTyped checks spec property #7's first half:
// {{ ctx.output_format }} never produces a TemplateError, since ctx is a
// synthetic baml:: reference the checker doesn't field-check.
func TestOutputFormatAlwaysWellTyped(t *testing.T) {
	diags := &bamlerr.Diagnostics{}
	irepr := &ir.IntermediateRepr{Classes: map[string]*ir.Class{}}
	nodes := Parse("t", "{{ ctx.output_format }}", diags)
	require.False(t, diags.HasErrors())

	checker := NewChecker(irepr, diags)
	scope := checker.BaseScope(nil)
	checker.Check(nodes, scope)
	require.False(t, diags.HasErrors())
}

// TestMissingFieldReferenceIsTemplateError checks spec property #7's
// second half: {{ input.missing }} emits a TemplateError naming the
// variable, when input is a declared class input missing that field.
func TestMissingFieldReferenceIsTemplateError(t *testing.T) {
	diags := &bamlerr.Diagnostics{}
	irepr := &ir.IntermediateRepr{
		Classes: map[string]*ir.Class{
			"Resume": {
				Name: "Resume",
				StaticFields: []ir.Field{
					{Name: "name", Type: types.Str()},
				},
			},
		},
	}
	nodes := Parse("t", "{{ input.missing }}", diags)
	require.False(t, diags.HasErrors())

	checker := NewChecker(irepr, diags)
	scope := checker.BaseScope([]ir.Param{{Name: "input", Type: types.Class("Resume")}})
	checker.Check(nodes, scope)
	require.True(t, diags.HasErrors())
	found := false
	for _, e := range diags.Errors {
		if e.Code == bamlerr.TemplateError {
			found = true
			require.Contains(t, e.Message, "input.missing")
		}
	}
	require.True(t, found)
}

func TestKnownFieldReferenceIsWellTyped(t *testing.T) {
	diags := &bamlerr.Diagnostics{}
	irepr := &ir.IntermediateRepr{
		Classes: map[string]*ir.Class{
			"Resume": {
				Name: "Resume",
				StaticFields: []ir.Field{
					{Name: "name", Type: types.Str()},
				},
			},
		},
	}
	nodes := Parse("t", "{{ input.name }}", diags)
	require.False(t, diags.HasErrors())

	checker := NewChecker(irepr, diags)
	scope := checker.BaseScope([]ir.Param{{Name: "input", Type: types.Class("Resume")}})
	checker.Check(nodes, scope)
	require.False(t, diags.HasErrors())
}

func TestUndeclaredVariableIsTemplateError(t *testing.T) {
	diags := &bamlerr.Diagnostics{}
	irepr := &ir.IntermediateRepr{}
	nodes := Parse("t", "{{ nope }}", diags)
	require.False(t, diags.HasErrors())

	checker := NewChecker(irepr, diags)
	checker.Check(nodes, checker.BaseScope(nil))
	require.True(t, diags.HasErrors())
	require.Equal(t, bamlerr.TemplateError, diags.Errors[0].Code)
}
