package coerce

import (
	"testing"

	"github.com/bamlgo/baml/internal/ir"
	"github.com/bamlgo/baml/internal/types"
	"github.com/bamlgo/baml/internal/value"
	"github.com/stretchr/testify/require"
)

func emptyIR() *ir.IntermediateRepr {
	return &ir.IntermediateRepr{Classes: map[string]*ir.Class{}, Enums: map[string]*ir.Enum{}}
}

// TestBoolCoercionRanking checks spec property #4: given
// ["true", 1, 1.0, "yes", false, [true], {"a": true}] against target
// bool, the winner is the literal `false` at index 4 (rank 0 beats every
// other candidate's string/number/container conversion), tagged
// ArrayElement(4).
func TestBoolCoercionRanking(t *testing.T) {
	text := `["true", 1, 1.0, "yes", false, [true], {"a": true}]`
	v, err := CoerceText(text, types.BoolT(), emptyIR(), Options{})
	require.NoError(t, err)
	require.Equal(t, value.KindBool, v.Kind)
	require.False(t, v.Bool)
	require.Len(t, v.Meta, 1)
	require.Equal(t, FlagArrayElement, v.Meta[0].Flag)
	require.Equal(t, 4, v.Meta[0].Index)
}

// TestOptionalElisionFindsKeyAmongJunk checks spec property #3: a class
// with a single required field parses out of prose wrapping a JSON
// object that also carries unrelated keys.
func TestOptionalElisionFindsKeyAmongJunk(t *testing.T) {
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
	text := "Sure, here's what I found:\n" +
		"```json\n{\"name\": \"Bob\", \"junk\": 123, \"other\": [1,2,3]}\n```\n" +
		"Hope that's helpful!"
	v, err := CoerceText(text, types.Class("Resume"), irepr, Options{})
	require.NoError(t, err)
	require.Equal(t, value.KindClass, v.Kind)
	nameField, ok := v.Fields.Get("name")
	require.True(t, ok)
	require.Equal(t, "Bob", nameField.Str)
}

func TestEnumAliasMatchCaseInsensitive(t *testing.T) {
	irepr := &ir.IntermediateRepr{
		Enums: map[string]*ir.Enum{
			"OrderStatus": {
				Name: "OrderStatus",
				Values: []ir.EnumValue{
					{Name: "ORDERED"},
					{Name: "SHIPPED", Aliases: []string{"shipped."}},
					{Name: "DELIVERED"},
					{Name: "CANCELLED"},
				},
			},
		},
	}
	v, err := CoerceText(`"shipped."`, types.Enum("OrderStatus"), irepr, Options{})
	require.NoError(t, err)
	require.Equal(t, value.KindEnum, v.Kind)
	require.Equal(t, "SHIPPED", v.EnumValue)
}

// TestPartialStreamingList checks spec property #5's three concrete
// inputs against target List<Int> with AllowPartials set.
func TestPartialStreamingList(t *testing.T) {
	target := types.ListOf(types.IntT())
	cases := []struct {
		name string
		text string
		want []int64
	}{
		{"drops-growable-tail", "[123, 456", []int64{123}},
		{"keeps-definitively-ended-tail", "[123, 456 // Done", []int64{123, 456}},
		{"single-growable-number", "[123", []int64{}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			v, err := CoerceText(tc.text, target, emptyIR(), Options{AllowPartials: true})
			require.NoError(t, err)
			require.Equal(t, value.KindList, v.Kind)
			got := make([]int64, len(v.List))
			for i, item := range v.List {
				got[i] = item.Int
			}
			require.Equal(t, tc.want, got)
		})
	}
}

func TestExtractClassFromProseScenarioA(t *testing.T) {
	irepr := &ir.IntermediateRepr{
		Classes: map[string]*ir.Class{
			"Resume": {
				Name: "Resume",
				StaticFields: []ir.Field{
					{Name: "name", Type: types.Str()},
					{Name: "skills", Type: types.ListOf(types.Str())},
				},
			},
		},
	}
	text := "Here is the candidate's resume summary.\n\n" +
		"Name: Vaibhav Gupta\n\n" +
		"```json\n" +
		`{"name": "Vaibhav Gupta", "skills": ["Rust", "C++"]}` +
		"\n```\n" +
		"Let me know if you need anything else."
	v, err := CoerceText(text, types.Class("Resume"), irepr, Options{})
	require.NoError(t, err)
	name, _ := v.Fields.Get("name")
	require.Equal(t, "Vaibhav Gupta", name.Str)
	skills, _ := v.Fields.Get("skills")
	require.Equal(t, value.KindList, skills.Kind)
	require.Len(t, skills.List, 2)
	require.Equal(t, "Rust", skills.List[0].Str)
	require.Equal(t, "C++", skills.List[1].Str)
}
