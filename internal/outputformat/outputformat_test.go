package outputformat

import (
	"strings"
	"testing"

	"github.com/bamlgo/baml/internal/ir"
	"github.com/bamlgo/baml/internal/types"
	"github.com/stretchr/testify/require"
)

func enumWithValues(name string, values ...string) *ir.Enum {
	e := &ir.Enum{Name: name}
	for _, v := range values {
		e.Values = append(e.Values, ir.EnumValue{Name: v})
	}
	return e
}

// TestThreeValueEnumInlinesNoHoist checks spec property #8's first half:
// a three-value, description-free enum renders inline with no hoisted
// block.
func TestThreeValueEnumInlinesNoHoist(t *testing.T) {
	e := enumWithValues("Letter", "A", "B", "C")
	irepr := &ir.IntermediateRepr{Enums: map[string]*ir.Enum{"Letter": e}}
	out, err := New(irepr, DefaultOptions()).Render(types.Enum("Letter"))
	require.NoError(t, err)
	require.Contains(t, out, "'A' or 'B' or 'C'")
	require.NotContains(t, out, "Letter\n")
}

// TestSevenValueEnumHoists checks spec property #8's second half: a
// seven-value enum is hoisted and referenced by name.
func TestSevenValueEnumHoists(t *testing.T) {
	e := enumWithValues("Day", "MON", "TUE", "WED", "THU", "FRI", "SAT", "SUN")
	irepr := &ir.IntermediateRepr{Enums: map[string]*ir.Enum{"Day": e}}
	out, err := New(irepr, DefaultOptions()).Render(types.Enum("Day"))
	require.NoError(t, err)
	require.Contains(t, out, "Day")
	require.Contains(t, out, "'MON'")
	require.False(t, strings.Contains(out, "'MON' or"))
}

func TestClassRendersFieldsOnePerLine(t *testing.T) {
	cls := &ir.Class{
		Name: "Resume",
		StaticFields: []ir.Field{
			{Name: "name", Type: types.Str()},
			{Name: "skills", Type: types.ListOf(types.Str())},
		},
	}
	irepr := &ir.IntermediateRepr{Classes: map[string]*ir.Class{"Resume": cls}}
	out, err := New(irepr, DefaultOptions()).Render(types.Class("Resume"))
	require.NoError(t, err)
	require.Contains(t, out, "Answer in JSON using this schema:")
	require.Contains(t, out, "name: string,")
	require.Contains(t, out, "skills: string[],")
}

func TestOptionalInListRendersSpecialCase(t *testing.T) {
	irepr := &ir.IntermediateRepr{}
	out, err := New(irepr, DefaultOptions()).Render(types.ListOf(types.OptionalOf(types.IntT())))
	require.NoError(t, err)
	require.Contains(t, out, "(int or null)[]")
}

func TestImageOutputTypeRejected(t *testing.T) {
	irepr := &ir.IntermediateRepr{}
	_, err := New(irepr, DefaultOptions()).Render(types.ImageT())
	require.Error(t, err)
}

func TestMapOutputTypeRejected(t *testing.T) {
	irepr := &ir.IntermediateRepr{}
	_, err := New(irepr, DefaultOptions()).Render(types.MapOf(types.Str(), types.IntT()))
	require.Error(t, err)
}

func TestTupleOutputTypeRejected(t *testing.T) {
	irepr := &ir.IntermediateRepr{}
	_, err := New(irepr, DefaultOptions()).Render(types.TupleOf(types.Str(), types.IntT()))
	require.Error(t, err)
}

func TestPlainStringOutputHasNoPrefix(t *testing.T) {
	irepr := &ir.IntermediateRepr{}
	out, err := New(irepr, DefaultOptions()).Render(types.Str())
	require.NoError(t, err)
	require.Equal(t, "string", out)
}
