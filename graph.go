package wecs

import (
	"sort"

	"github.com/bits-and-blooms/bitset"
)

// digraph is a dense directed graph over node indexes, used for both the
// set membership hierarchy and the ordering dependency graph.
type digraph struct {
	n     int
	out   [][]int
	edges map[[2]int]struct{}
}

func newDigraph(n int) *digraph {
	return &digraph{
		n:     n,
		out:   make([][]int, n),
		edges: make(map[[2]int]struct{}),
	}
}

// addEdge inserts u -> v, ignoring duplicates.
func (g *digraph) addEdge(u, v int) {
	key := [2]int{u, v}
	if _, ok := g.edges[key]; ok {
		return
	}
	g.edges[key] = struct{}{}
	g.out[u] = append(g.out[u], v)
}

func (g *digraph) hasEdge(u, v int) bool {
	_, ok := g.edges[[2]int{u, v}]
	return ok
}

// sccs returns the strongly connected components (Tarjan).
func (g *digraph) sccs() [][]int {
	index := make([]int, g.n)
	lowlink := make([]int, g.n)
	onStack := make([]bool, g.n)
	for i := range index {
		index[i] = -1
	}
	var stack []int
	var result [][]int
	counter := 0

	var strongconnect func(v int)
	strongconnect = func(v int) {
		index[v] = counter
		lowlink[v] = counter
		counter++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.out[v] {
			if index[w] < 0 {
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] && index[w] < lowlink[v] {
				lowlink[v] = index[w]
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
			result = append(result, comp)
		}
	}

	for v := 0; v < g.n; v++ {
		if index[v] < 0 {
			strongconnect(v)
		}
	}
	return result
}

// cycles returns every component containing a cycle: more than one node,
// or a single node with a self edge. Components and their members come
// back sorted for stable reporting.
func (g *digraph) cycles() [][]int {
	var out [][]int
	for _, comp := range g.sccs() {
		if len(comp) > 1 || g.hasEdge(comp[0], comp[0]) {
			sorted := append([]int(nil), comp...)
			sort.Ints(sorted)
			out = append(out, sorted)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// topoOrder returns a deterministic topological order: among ready nodes
// the lowest index goes first. Call only after cycles returned empty.
func (g *digraph) topoOrder() []int {
	indeg := make([]int, g.n)
	for u := range g.out {
		for _, v := range g.out[u] {
			indeg[v]++
		}
	}
	order := make([]int, 0, g.n)
	used := make([]bool, g.n)
	for len(order) < g.n {
		pick := -1
		for i := 0; i < g.n; i++ {
			if !used[i] && indeg[i] == 0 {
				pick = i
				break
			}
		}
		if pick < 0 {
			// Unreachable on acyclic graphs.
			return order
		}
		used[pick] = true
		order = append(order, pick)
		for _, v := range g.out[pick] {
			indeg[v]--
		}
	}
	return order
}

// reachability returns, per node, the set of nodes reachable through one
// or more edges. Rows are computed in reverse topological order so each
// node's row is the union of its successors' rows.
func (g *digraph) reachability(topo []int) []*bitset.BitSet {
	rows := make([]*bitset.BitSet, g.n)
	for i := range rows {
		rows[i] = bitset.New(uint(g.n))
	}
	for i := len(topo) - 1; i >= 0; i-- {
		u := topo[i]
		for _, v := range g.out[u] {
			rows[u].Set(uint(v))
			rows[u].InPlaceUnion(rows[v])
		}
	}
	return rows
}

// redundantEdges returns direct edges already implied by a longer path:
// u -> v where some other successor of u reaches v.
func (g *digraph) redundantEdges(reach []*bitset.BitSet) [][2]int {
	var out [][2]int
	for u := 0; u < g.n; u++ {
		for _, v := range g.out[u] {
			for _, w := range g.out[u] {
				if w != v && reach[w].Test(uint(v)) {
					out = append(out, [2]int{u, v})
					break
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}
