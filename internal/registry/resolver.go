// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fabriq Contributors

package registry

import "sort"

// resolveOrder computes a dependency-first activation order for the
// given plugins using Kahn's algorithm over the induced subgraph.
// satisfied reports dependency names fulfilled outside the set (already
// active plugins); those contribute no edges.
//
// Ties among ready plugins break lexicographically by name, so the
// order is deterministic for any input.
func resolveOrder(plugins []*LoadedPlugin, satisfied func(string) bool) ([]*LoadedPlugin, error) {
	byName := make(map[string]*LoadedPlugin, len(plugins))
	for _, p := range plugins {
		byName[p.Name()] = p
	}

	// Every unsatisfiable dependency is reported before ordering is
	// attempted, not just the first.
	var missing []DependencyRef
	dependents := make(map[string][]string) // dep name -> dependent names
	inDegree := make(map[string]int, len(plugins))
	for _, p := range plugins {
		inDegree[p.Name()] = 0
	}
	for _, p := range plugins {
		for _, dep := range p.Dependencies() {
			if _, inSet := byName[dep]; inSet {
				dependents[dep] = append(dependents[dep], p.Name())
				inDegree[p.Name()]++
				continue
			}
			if satisfied != nil && satisfied(dep) {
				continue
			}
			missing = append(missing, DependencyRef{
				Plugin:     p.Name(),
				Dependency: dep,
				Reason:     "not loaded",
			})
		}
	}
	if len(missing) > 0 {
		sort.Slice(missing, func(i, j int) bool {
			if missing[i].Plugin != missing[j].Plugin {
				return missing[i].Plugin < missing[j].Plugin
			}
			return missing[i].Dependency < missing[j].Dependency
		})
		return nil, &MissingDependencyError{Refs: missing}
	}

	var ready []string
	for name, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	ordered := make([]*LoadedPlugin, 0, len(plugins))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		ordered = append(ordered, byName[name])

		var unlocked []string
		for _, dependent := range dependents[name] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				unlocked = append(unlocked, dependent)
			}
		}
		sort.Strings(unlocked)
		ready = mergeSorted(ready, unlocked)
	}

	if len(ordered) < len(plugins) {
		return nil, &CycleError{Path: findCycle(byName, inDegree)}
	}
	return ordered, nil
}

// mergeSorted merges two sorted string slices into one sorted slice.
func mergeSorted(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	out := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] <= b[j] {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}

// findCycle extracts one concrete cycle from the nodes Kahn's algorithm
// could not order. Every remaining node has at least one unprocessed
// dependency, so walking dependency edges from any of them must revisit
// a node. The walk starts at the lexicographically smallest remaining
// name and always follows the smallest in-remainder dependency, keeping
// the reported path deterministic.
func findCycle(byName map[string]*LoadedPlugin, inDegree map[string]int) []string {
	remainder := make(map[string]bool)
	var names []string
	for name, deg := range inDegree {
		if deg > 0 {
			remainder[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil
	}

	visited := make(map[string]int)
	var path []string
	current := names[0]
	for {
		if at, seen := visited[current]; seen {
			return append(path[at:], current)
		}
		visited[current] = len(path)
		path = append(path, current)

		var deps []string
		for _, dep := range byName[current].Dependencies() {
			if remainder[dep] {
				deps = append(deps, dep)
			}
		}
		sort.Strings(deps)
		current = deps[0]
	}
}
