package depindex

import "sort"

// Cycles returns the groups of items whose autofill and initial rules read
// each other's answers in a loop. Each cycle lists linkIds in document
// order; cycles are ordered by their first member.
func (idx *Index) Cycles() [][]string {
	n := len(idx.linkIDs)
	adj := make([][]int, n)
	selfLoop := make([]bool, n)
	for i, id := range idx.linkIDs {
		for _, ref := range idx.refs[id][KindAutofill] {
			j, ok := idx.order[ref]
			if !ok {
				continue
			}
			if j == i {
				selfLoop[i] = true
			}
			adj[i] = append(adj[i], j)
		}
	}

	var cycles [][]string
	for _, scc := range tarjanSCC(adj) {
		if len(scc) == 1 && !selfLoop[scc[0]] {
			continue
		}
		sort.Ints(scc)
		names := make([]string, len(scc))
		for k, v := range scc {
			names[k] = idx.linkIDs[v]
		}
		cycles = append(cycles, names)
	}
	sort.Slice(cycles, func(a, b int) bool {
		return idx.order[cycles[a][0]] < idx.order[cycles[b][0]]
	})
	return cycles
}

// tarjanSCC returns strongly connected components using Tarjan's algorithm.
func tarjanSCC(adj [][]int) [][]int {
	n := len(adj)
	index := make([]int, n)
	lowlink := make([]int, n)
	onStack := make([]bool, n)
	defined := make([]bool, n)
	stack := make([]int, 0, n)
	var sccs [][]int
	counter := 0

	var strongConnect func(v int)
	strongConnect = func(v int) {
		index[v] = counter
		lowlink[v] = counter
		counter++
		defined[v] = true
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range adj[v] {
			if !defined[w] {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], index[w])
			}
		}

		if lowlink[v] == index[v] {
			var scc []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for v := range n {
		if !defined[v] {
			strongConnect(v)
		}
	}
	return sccs
}
