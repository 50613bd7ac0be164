// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
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

package graphutil

import (
	"fmt"

	ybgraph "github.com/yourbasic/graph"
	"golang.org/x/tools/go/callgraph"
	"gonum.org/v1/gonum/graph/topo"
)

// IsRecursive returns true if the call graph contains a cycle, i.e. some function can (transitively) call itself.
func IsRecursive(g CGraph) bool {
	for _, id := range g.Keys {
		if g.HasSelfLoop(id) {
			return true
		}
	}
	for _, comp := range ybgraph.StrongComponents(g) {
		if len(comp) > 1 {
			return true
		}
	}
	return false
}

// MaxCallDepth returns the number of edges on the longest call chain of the callgraph. If the callgraph is
// recursive, the depth is unbounded and the function returns -1 and true.
func MaxCallDepth(cg *callgraph.Graph) (depth int, recursive bool) {
	if cg == nil {
		return 0, false
	}
	g := NewCallgraphIterator(cg)
	if IsRecursive(g) {
		return -1, true
	}
	order, err := topo.Sort(g)
	if err != nil {
		// topo.Sort only fails on cycles, which IsRecursive already reported
		panic(fmt.Sprintf("topological sort of an acyclic callgraph failed: %v", err))
	}
	longest := make(map[int64]int, len(order))
	for _, node := range order {
		d := longest[node.ID()]
		if d > depth {
			depth = d
		}
		succ := g.From(node.ID())
		for succ.Next() {
			callee := succ.Node().ID()
			if longest[callee] < d+1 {
				longest[callee] = d + 1
			}
		}
	}
	return depth, false
}
