// Copyright 2020-2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package toposort provides generic topological sorting and cycle detection
// over small dependency graphs.
package toposort

import (
	"fmt"
	"strings"

	"github.com/tidwall/btree"
)

const (
	unsorted byte = iota
	walking
	sorted
)

// CycleError is returned when a graph that must be acyclic is not.
type CycleError[Node any] struct {
	// The offending cycle. The first and last entries are the same node.
	Cycle []Node
}

func (e *CycleError[Node]) Error() string {
	var buf strings.Builder
	buf.WriteString("cycle detected: ")
	for i, n := range e.Cycle {
		if i != 0 {
			buf.WriteString(" -> ")
		}
		fmt.Fprint(&buf, n)
	}
	return buf.String()
}

// Cycles finds the cycles of a graph with a depth-first traversal that keeps
// an explicit stack of the nodes on the current path.
//
// Roots are visited in order, and the children of each node in the order
// returned by dag. Every back edge found produces one cycle, which starts
// and ends with the node the back edge points to. Each back edge is reported
// once, so the result is deterministic for a deterministic dag.
func Cycles[Node any, Key comparable](
	roots []Node,
	key func(Node) Key,
	dag func(Node) []Node,
) [][]Node {
	type frame struct {
		node     Node
		children []Node
		next     int
	}

	state := make(map[Key]byte)
	var (
		cycles [][]Node
		path   []frame
	)
	for _, root := range roots {
		if state[key(root)] != unsorted {
			continue
		}
		state[key(root)] = walking
		path = append(path, frame{node: root, children: dag(root)})

		for len(path) > 0 {
			top := &path[len(path)-1]
			if top.next == len(top.children) {
				state[key(top.node)] = sorted
				path = path[:len(path)-1]
				continue
			}
			child := top.children[top.next]
			top.next++

			k := key(child)
			switch state[k] {
			case unsorted:
				state[k] = walking
				path = append(path, frame{node: child, children: dag(child)})
			case walking:
				start := len(path) - 1
				for key(path[start].node) != k {
					start--
				}
				cycle := make([]Node, 0, len(path)-start+1)
				for _, f := range path[start:] {
					cycle = append(cycle, f.node)
				}
				cycles = append(cycles, append(cycle, child))
			case sorted:
			}
		}
	}
	return cycles
}

// Sort orders nodes so that every node comes after the nodes it depends on,
// using Kahn's algorithm.
//
// Whenever more than one node is ready to be emitted, the one that comes
// first in nodes wins, so the result only depends on the input order and
// never on map iteration. Dependencies that are not in nodes are ignored, as
// are repeated edges. If the graph has a cycle, Sort returns a *CycleError
// holding one of them.
func Sort[Node any, Key comparable](
	nodes []Node,
	key func(Node) Key,
	deps func(Node) []Node,
) ([]Node, error) {
	index := make(map[Key]int, len(nodes))
	for i, n := range nodes {
		index[key(n)] = i
	}

	pending := make([]int, len(nodes))
	dependents := make([][]int, len(nodes))
	for i, n := range nodes {
		seen := make(map[int]bool)
		for _, dep := range deps(n) {
			j, ok := index[key(dep)]
			if !ok || seen[j] {
				continue
			}
			seen[j] = true
			pending[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	var ready btree.Map[int, Node]
	for i, n := range nodes {
		if pending[i] == 0 {
			ready.Set(i, n)
		}
	}

	order := make([]Node, 0, len(nodes))
	for ready.Len() > 0 {
		i, n, _ := ready.PopMin()
		order = append(order, n)
		for _, j := range dependents[i] {
			pending[j]--
			if pending[j] == 0 {
				ready.Set(j, nodes[j])
			}
		}
	}

	if len(order) < len(nodes) {
		var stuck []Node
		for i, n := range nodes {
			if pending[i] > 0 {
				stuck = append(stuck, n)
			}
		}
		cycles := Cycles(stuck, key, func(n Node) []Node {
			var out []Node
			for _, dep := range deps(n) {
				if j, ok := index[key(dep)]; ok && pending[j] > 0 {
					out = append(out, nodes[j])
				}
			}
			return out
		})
		if len(cycles) > 0 {
			return order, &CycleError[Node]{Cycle: cycles[0]}
		}
		return order, &CycleError[Node]{Cycle: stuck}
	}
	return order, nil
}
