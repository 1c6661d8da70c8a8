package compiler

import (
	"fmt"
	"slices"
	"strings"
)

// ChainCycle is a set of chains that run each other through chain
// references. Running any of them fails with a cycle error once the
// reference is reached, so cycles are reported as validation errors.
type ChainCycle struct {
	Path    []string `json:"path"` // e.g. ["A", "B", "A"]
	Message string   `json:"message"`
}

// AnalyzeCycles finds chains that reach themselves through {$chain: ...}
// parameters, using Tarjan's algorithm over the reference graph.
// References to chains outside defs are ignored. Results are ordered by
// the first chain of each cycle.
func AnalyzeCycles(defs []*ChainDef) []ChainCycle {
	graph := buildReferenceGraph(defs)

	var cycles []ChainCycle
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			cycles = append(cycles, sccToCycle(scc, graph))
		}
	}
	slices.SortFunc(cycles, func(a, b ChainCycle) int {
		return strings.Compare(a.Path[0], b.Path[0])
	})
	return cycles
}

// referenceGraph maps chain name → chains it runs.
type referenceGraph map[string][]string

func buildReferenceGraph(defs []*ChainDef) referenceGraph {
	graph := make(referenceGraph, len(defs))
	for _, d := range defs {
		graph[d.Name] = []string{}
	}
	for _, d := range defs {
		for _, ref := range d.ChainRefs() {
			if _, ok := graph[ref]; ok && !slices.Contains(graph[d.Name], ref) {
				graph[d.Name] = append(graph[d.Name], ref)
			}
		}
	}
	return graph
}

func (g referenceGraph) nodes() []string {
	nodes := make([]string, 0, len(g))
	for n := range g {
		nodes = append(nodes, n)
	}
	slices.Sort(nodes)
	return nodes
}

func hasSelfLoop(node string, graph referenceGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC returns the strongly connected components of graph. Nodes
// are visited in sorted order and each component is rotated so that its
// smallest name comes first.
func tarjanSCC(graph referenceGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	for _, node := range graph.nodes() {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func sccToCycle(scc []string, graph referenceGraph) ChainCycle {
	if len(scc) == 1 {
		name := scc[0]
		return ChainCycle{
			Path:    []string{name, name},
			Message: fmt.Sprintf("chain %s runs itself", name),
		}
	}
	path := reconstructCyclePath(scc, graph)
	return ChainCycle{
		Path:    path,
		Message: fmt.Sprintf("chain reference cycle: %s", strings.Join(path, " → ")),
	}
}

// reconstructCyclePath walks edges inside the SCC from its first member
// until it returns there.
func reconstructCyclePath(scc []string, graph referenceGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)
	for {
		visited[current] = true
		var next string
		for _, neighbor := range graph[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
