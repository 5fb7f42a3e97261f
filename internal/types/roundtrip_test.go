package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestTypeRoundTrip checks spec property #1: for every well-formed type
// expression T, parse(print(T)) reprints identically to T. Equality is
// judged by Print's canonical text form since Type itself carries no
// structural Equal.
func TestTypeRoundTrip(t *testing.T) {
	cases := []*Type{
		Str(),
		IntT(),
		FloatT(),
		BoolT(),
		NullT(),
		ImageT(),
		AudioT(),
		LitStr("shipped"),
		LitInt(42),
		LitBool(true),
		Class("Resume"),
		Enum("OrderStatus"),
		ListOf(Str()),
		ListOf(OptionalOf(IntT())),
		MapOf(Str(), IntT()),
		UnionOf(Str(), IntT(), BoolT()),
		OptionalOf(Class("Resume")),
		OptionalOf(UnionOf(Str(), IntT())),
		ListOf(UnionOf(Str(), IntT())),
		UnionOf(ListOf(Str()), NullT()),
	}

	for _, tc := range cases {
		tc := tc
		printed := Print(tc)
		t.Run(printed, func(t *testing.T) {
			parsed, err := ParseType(printed)
			require.NoError(t, err)
			require.Equal(t, printed, Print(parsed))
		})
	}
}

func TestTypeRoundTripRejectsTrailingGarbage(t *testing.T) {
	_, err := ParseType("int string")
	require.Error(t, err)
}

func TestIsOptionalTreatsUnionWithNullAsOptional(t *testing.T) {
	require.True(t, IsOptional(OptionalOf(Str())))
	require.True(t, IsOptional(UnionOf(Str(), NullT())))
	require.False(t, IsOptional(UnionOf(Str(), IntT())))
}
