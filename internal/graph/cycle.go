package graph

import "slices"

// edges maps a variable to the variables reading it.
type edges map[*Variable][]*Variable

// circular returns every variable on a dependency cycle among nodes.
//
// The algorithm:
//  1. Find strongly connected components with Tarjan's algorithm
//  2. A component is a cycle if it has more than one member or a self-loop
func circular(nodes []*Variable, out edges) map[*Variable]bool {
	cyclic := make(map[*Variable]bool)
	for _, scc := range tarjanSCC(nodes, out) {
		if len(scc) > 1 || slices.Contains(out[scc[0]], scc[0]) {
			for _, v := range scc {
				cyclic[v] = true
			}
		}
	}
	return cyclic
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in the order given so the result is deterministic.
func tarjanSCC(nodes []*Variable, out edges) [][]*Variable {
	var (
		index   = 0
		stack   []*Variable
		indices = make(map[*Variable]int)
		lowlink = make(map[*Variable]int)
		onStack = make(map[*Variable]bool)
		sccs    [][]*Variable
	)

	var strongConnect func(*Variable)
	strongConnect = func(v *Variable) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range out[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root node: pop the stack and emit the component
		if lowlink[v] == indices[v] {
			var scc []*Variable
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

	for _, v := range nodes {
		if _, visited := indices[v]; !visited {
			strongConnect(v)
		}
	}

	return sccs
}

// topoOrder orders nodes so that every variable follows the variables it
// reads (Kahn's algorithm). Only edges between nodes count; ready nodes are
// taken in the order given.
func topoOrder(nodes []*Variable, out edges) []*Variable {
	member := make(map[*Variable]bool, len(nodes))
	for _, v := range nodes {
		member[v] = true
	}

	indegree := make(map[*Variable]int, len(nodes))
	for _, v := range nodes {
		for _, w := range out[v] {
			if member[w] {
				indegree[w]++
			}
		}
	}

	order := make([]*Variable, 0, len(nodes))
	done := make(map[*Variable]bool, len(nodes))
	for len(order) < len(nodes) {
		progressed := false
		for _, v := range nodes {
			if done[v] || indegree[v] > 0 {
				continue
			}
			done[v] = true
			order = append(order, v)
			progressed = true
			for _, w := range out[v] {
				if member[w] {
					indegree[w]--
				}
			}
		}
		if !progressed {
			// Only reachable if nodes still hold a cycle; keep the
			// remainder in the given order rather than spin.
			for _, v := range nodes {
				if !done[v] {
					done[v] = true
					order = append(order, v)
				}
			}
		}
	}
	return order
}
