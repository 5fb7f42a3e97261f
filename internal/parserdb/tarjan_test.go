package parserdb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestTarjanSCCDeterministic checks spec property #2 against the exact
// graph given in spec.md §8: components {0,1,2}, {3,4}, {5,6}, {7},
// sorted by smallest member and each rotated so its smallest member
// leads. The component is reversed to discovery order before rotation,
// so {0,1,2} comes out as [0,1,2], matching the real edges 0->1->2->0.
func TestTarjanSCCDeterministic(t *testing.T) {
	adj := [][]int{
		0: {1},
		1: {2},
		2: {0},
		3: {1, 2, 4},
		4: {5, 3},
		5: {2, 6},
		6: {5},
		7: {4, 6, 7},
	}
	comps := TarjanSCC(adj)
	require.Equal(t, [][]int{
		{0, 1, 2},
		{3, 4},
		{5, 6},
		{7},
	}, comps)

	for _, c := range comps {
		require.True(t, IsCycle(adj, c), "component %v must be reported as a cycle", c)
	}
}

func TestTarjanSCCRunIsStable(t *testing.T) {
	adj := [][]int{
		0: {1},
		1: {2},
		2: {0},
		3: {1, 2, 4},
		4: {5, 3},
		5: {2, 6},
		6: {5},
		7: {4, 6, 7},
	}
	first := TarjanSCC(adj)
	second := TarjanSCC(adj)
	require.Equal(t, first, second)
}

func TestIsCycleSingletonWithoutSelfLoopIsNotACycle(t *testing.T) {
	adj := [][]int{
		0: {1},
		1: {},
	}
	require.False(t, IsCycle(adj, []int{1}))
}
