package tasks

import (
	"fmt"
	"sort"
	"strings"
)

type graph struct {
	tasks    map[string]TaskConfig
	prereqs  map[string][]string
	children map[string][]string
}

func newGraph(defs []TaskConfig) (*graph, error) {
	g := &graph{
		tasks:    make(map[string]TaskConfig, len(defs)),
		prereqs:  make(map[string][]string, len(defs)),
		children: make(map[string][]string, len(defs)),
	}
	for _, t := range defs {
		if t.Name == "" {
			return nil, fmt.Errorf("%w: task without a name", ErrInvalidGraph)
		}
		if _, dup := g.tasks[t.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate task %s", ErrInvalidGraph, t.Name)
		}
		g.tasks[t.Name] = t
	}

	for _, t := range defs {
		for _, dep := range t.After {
			if err := g.edge(dep, t.Name); err != nil {
				return nil, err
			}
		}
		for _, next := range t.Before {
			if err := g.edge(t.Name, next); err != nil {
				return nil, err
			}
		}
	}

	for name := range g.tasks {
		sort.Strings(g.prereqs[name])
		sort.Strings(g.children[name])
	}
	return g, nil
}

// edge records that from must finish before to starts
func (g *graph) edge(from, to string) error {
	for _, name := range []string{from, to} {
		if _, ok := g.tasks[name]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownTask, name)
		}
	}
	for _, existing := range g.prereqs[to] {
		if existing == from {
			return nil
		}
	}
	g.prereqs[to] = append(g.prereqs[to], from)
	g.children[from] = append(g.children[from], to)
	return nil
}

// resolveRoots matches each root against task names. A root also selects
// every task in its namespace, so "app" selects "app:build".
func (g *graph) resolveRoots(roots []string) ([]string, error) {
	var out []string
	for _, root := range roots {
		matched := false
		for name := range g.tasks {
			if name == root || strings.HasPrefix(name, root+":") {
				out = append(out, name)
				matched = true
			}
		}
		if !matched {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTask, root)
		}
	}
	return out, nil
}

func (g *graph) selectTasks(roots []string, mode RunMode) map[string]bool {
	selected := make(map[string]bool)
	for _, r := range roots {
		selected[r] = true
	}

	walk := func(edges map[string][]string) {
		stack := append([]string(nil), roots...)
		for len(stack) > 0 {
			name := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, next := range edges[name] {
				if !selected[next] {
					selected[next] = true
					stack = append(stack, next)
				}
			}
		}
	}

	switch mode {
	case RunModeBefore:
		walk(g.prereqs)
	case RunModeAfter:
		walk(g.children)
	case RunModeAll:
		walk(g.prereqs)
		walk(g.children)
	}
	return selected
}

// checkAcyclic runs Kahn's algorithm over the selected subgraph
func (g *graph) checkAcyclic(selected map[string]bool) error {
	indeg := make(map[string]int, len(selected))
	for name := range selected {
		for _, p := range g.prereqs[name] {
			if selected[p] {
				indeg[name]++
			}
		}
	}

	var ready []string
	for name := range selected {
		if indeg[name] == 0 {
			ready = append(ready, name)
		}
	}

	visited := 0
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		visited++
		for _, c := range g.children[name] {
			if !selected[c] {
				continue
			}
			indeg[c]--
			if indeg[c] == 0 {
				ready = append(ready, c)
			}
		}
	}

	if visited == len(selected) {
		return nil
	}
	var stuck []string
	for name := range selected {
		if indeg[name] > 0 {
			stuck = append(stuck, name)
		}
	}
	sort.Strings(stuck)
	return fmt.Errorf("%w: %s", ErrCycleFound, strings.Join(stuck, ", "))
}
