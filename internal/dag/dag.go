// Package dag orders computed parameters by their column dependencies.
// A parameter's inputs must be evaluated before the parameter itself, and
// removing a parameter invalidates everything downstream of it.
package dag

import (
	"fmt"
	"slices"
	"sort"
)

// Graph is a directed graph of parameter names. An edge input -> dependent
// means dependent reads input.
type Graph struct {
	nodes      map[string]struct{}
	dependents map[string][]string
	inputs     map[string][]string
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:      make(map[string]struct{}),
		dependents: make(map[string][]string),
		inputs:     make(map[string][]string),
	}
}

// AddNode adds name if it is not already present.
func (g *Graph) AddNode(name string) {
	if _, ok := g.nodes[name]; ok {
		return
	}
	g.nodes[name] = struct{}{}
	g.dependents[name] = nil
	g.inputs[name] = nil
}

// Has reports whether name is a node.
func (g *Graph) Has(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

// AddEdge records that dependent reads input. Both nodes must exist.
func (g *Graph) AddEdge(input, dependent string) error {
	if !g.Has(input) {
		return fmt.Errorf("input node %q does not exist", input)
	}
	if !g.Has(dependent) {
		return fmt.Errorf("dependent node %q does not exist", dependent)
	}
	if input == dependent {
		return fmt.Errorf("self-loop detected: %s", input)
	}
	if !slices.Contains(g.dependents[input], dependent) {
		g.dependents[input] = append(g.dependents[input], dependent)
	}
	if !slices.Contains(g.inputs[dependent], input) {
		g.inputs[dependent] = append(g.inputs[dependent], input)
	}
	return nil
}

// Inputs returns the direct inputs of name.
func (g *Graph) Inputs(name string) []string {
	return g.inputs[name]
}

// Dependents returns the nodes reading name directly.
func (g *Graph) Dependents(name string) []string {
	return g.dependents[name]
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

func (g *Graph) sortedNames() []string {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasCycle reports whether the graph contains a cycle, along with one cycle path.
func (g *Graph) HasCycle() (bool, []string) {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	from := make(map[string]string)

	var cycle []string

	var dfs func(name string) bool
	dfs = func(name string) bool {
		visited[name] = true
		onStack[name] = true

		for _, next := range g.dependents[name] {
			if !visited[next] {
				from[next] = name
				if dfs(next) {
					return true
				}
			} else if onStack[next] {
				cycle = []string{next}
				for cur := name; cur != next; cur = from[cur] {
					cycle = append([]string{cur}, cycle...)
				}
				cycle = append([]string{next}, cycle...)
				return true
			}
		}

		onStack[name] = false
		return false
	}

	for _, name := range g.sortedNames() {
		if !visited[name] && dfs(name) {
			return true, cycle
		}
	}
	return false, nil
}

// TopologicalSort returns every node with inputs before dependents. Ties are
// broken by name so the order is deterministic.
func (g *Graph) TopologicalSort() ([]string, error) {
	if hasCycle, path := g.HasCycle(); hasCycle {
		return nil, fmt.Errorf("cycle detected: %v", path)
	}

	visited := make(map[string]bool)
	order := make([]string, 0, len(g.nodes))

	var visit func(name string)
	visit = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		inputs := slices.Clone(g.inputs[name])
		sort.Strings(inputs)
		for _, in := range inputs {
			visit(in)
		}
		order = append(order, name)
	}

	for _, name := range g.sortedNames() {
		visit(name)
	}
	return order, nil
}

// Downstream returns names and every node that transitively reads them, sorted.
// Unknown names are ignored.
func (g *Graph) Downstream(names ...string) []string {
	affected := make(map[string]bool)

	var mark func(name string)
	mark = func(name string) {
		if affected[name] {
			return
		}
		affected[name] = true
		for _, d := range g.dependents[name] {
			mark(d)
		}
	}

	for _, name := range names {
		if g.Has(name) {
			mark(name)
		}
	}
	return sortedKeys(affected)
}

// Upstream returns every node name transitively reads, sorted, excluding name.
func (g *Graph) Upstream(name string) []string {
	seen := make(map[string]bool)

	var mark func(n string)
	mark = func(n string) {
		for _, in := range g.inputs[n] {
			if !seen[in] {
				seen[in] = true
				mark(in)
			}
		}
	}

	mark(name)
	delete(seen, name)
	return sortedKeys(seen)
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
