package parserdb

import "sort"

// TarjanSCC computes the strongly connected components of a directed graph
// given as an adjacency list (adj[i] lists the node indices i has an edge
// to), using Tarjan's algorithm. Each returned component is rotated so its
// smallest-index member leads (preserving the cyclic order Tarjan
// discovered it in), and the overall list is sorted by each component's
// smallest member, so the result is stable across runs over the same
// input graph.
func TarjanSCC(adj [][]int) [][]int {
	n := len(adj)
	index := make([]int, n)
	lowlink := make([]int, n)
	onStack := make([]bool, n)
	visited := make([]bool, n)
	for i := range index {
		index[i] = -1
	}
	var stack []int
	counter := 0
	var comps [][]int

	var strongconnect func(v int)
	strongconnect = func(v int) {
		index[v] = counter
		lowlink[v] = counter
		counter++
		stack = append(stack, v)
		onStack[v] = true
		visited[v] = true

		for _, w := range adj[v] {
			if index[w] == -1 {
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if index[w] < lowlink[v] {
					lowlink[v] = index[w]
				}
			}
		}

		if lowlink[v] == index[v] {
			var comp []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			for i, j := 0, len(comp)-1; i < j; i, j = i+1, j-1 {
				comp[i], comp[j] = comp[j], comp[i]
			}
			comps = append(comps, rotateToMin(comp))
		}
	}

	for v := 0; v < n; v++ {
		if !visited[v] {
			strongconnect(v)
		}
	}

	sort.Slice(comps, func(i, j int) bool { return comps[i][0] < comps[j][0] })
	return comps
}

// rotateToMin rotates comp (as a cyclic sequence, preserving adjacency
// order) so its smallest element leads.
func rotateToMin(comp []int) []int {
	minIdx := 0
	for i, v := range comp {
		if v < comp[minIdx] {
			minIdx = i
		}
	}
	out := make([]int, 0, len(comp))
	out = append(out, comp[minIdx:]...)
	out = append(out, comp[:minIdx]...)
	return out
}

// IsCycle reports whether a component (as returned by TarjanSCC) signals a
// dependency cycle: more than one member, or a singleton with a self-loop.
func IsCycle(adj [][]int, comp []int) bool {
	if len(comp) > 1 {
		return true
	}
	v := comp[0]
	for _, w := range adj[v] {
		if w == v {
			return true
		}
	}
	return false
}
