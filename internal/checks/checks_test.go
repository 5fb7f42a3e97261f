package checks

import (
	"testing"

	"github.com/bamlgo/baml/internal/ir"
	"github.com/bamlgo/baml/internal/types"
	"github.com/bamlgo/baml/internal/value"
	"github.com/stretchr/testify/require"
)

// scenario builds a class with one field carrying two @check constraints
// labeled "a" and "b", and a second field carrying one @assert constraint
// labeled "non_empty".
func scenario() (*ir.IntermediateRepr, *types.Type) {
	checked := types.Constrained(types.IntT(),
		types.Constraint{Level: types.LevelCheck, Label: "a", Predicate: "this > 0"},
		types.Constraint{Level: types.LevelCheck, Label: "b", Predicate: "this < 100"},
	)
	asserted := types.Constrained(types.Str(),
		types.Constraint{Level: types.LevelAssert, Label: "non_empty", Predicate: "this != \"\""},
	)
	cls := &ir.Class{
		Name: "Report",
		StaticFields: []ir.Field{
			{Name: "score", Type: checked},
			{Name: "summary", Type: asserted},
		},
	}
	irepr := &ir.IntermediateRepr{
		Classes: map[string]*ir.Class{"Report": cls},
	}
	return irepr, types.Class("Report")
}

func classValue(score *value.Value, summary *value.Value) *value.Value {
	fields := value.NewOrderedMap()
	fields.Set("score", score)
	fields.Set("summary", summary)
	return value.Class("Report", fields)
}

func TestRunSuccess(t *testing.T) {
	irepr, out := scenario()
	v := classValue(value.Int(5), value.String("hello"))
	outcome, err := New(irepr).Run(v, out)
	require.NoError(t, err)
	require.True(t, outcome.IsSuccess())
}

func TestRunCheckFailuresAccumulate(t *testing.T) {
	irepr, out := scenario()
	// pick -5 so "a" (must be > 0) fails but "b" (< 100) still passes,
	// then push score above 100 in a second case below so "b" fails and
	// "a" passes.
	v := classValue(value.Int(-5), value.String("hello"))
	outcome, err := New(irepr).Run(v, out)
	require.NoError(t, err)
	require.Equal(t, OutcomeCheckFailures, outcome.Kind)
	require.Len(t, outcome.Checks, 1)
	require.Equal(t, "a", outcome.Checks[0].Label)

	v2 := classValue(value.Int(500), value.String("hello"))
	outcome2, err := New(irepr).Run(v2, out)
	require.NoError(t, err)
	require.Equal(t, OutcomeCheckFailures, outcome2.Kind)
	require.Len(t, outcome2.Checks, 1)
	require.Equal(t, "b", outcome2.Checks[0].Label)
}

func TestRunAssertShortCircuits(t *testing.T) {
	irepr, out := scenario()
	// score fails check "a" AND summary fails the assert: assert wins.
	v := classValue(value.Int(-5), value.String(""))
	outcome, err := New(irepr).Run(v, out)
	require.NoError(t, err)
	require.Equal(t, OutcomeAssertFailure, outcome.Kind)
	require.NotNil(t, outcome.Assert)
	require.Equal(t, "non_empty", outcome.Assert.Label)
	require.Equal(t, "summary", outcome.Assert.FieldName)
}

func TestUserFailurePath(t *testing.T) {
	irepr, out := scenario()
	v := classValue(value.Int(-5), value.String("hello"))
	outcome, err := New(irepr).Run(v, out)
	require.NoError(t, err)
	require.Equal(t, "$.score", outcome.Checks[0].Path)
}
