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
	"testing"

	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/ssa"
	"gonum.org/v1/gonum/graph"
)

// newGraph builds a callgraph with n functions and the given edges between them, identified by their index.
func newGraph(n int, edges [][2]int) (*callgraph.Graph, []*callgraph.Node) {
	cg := callgraph.New(nil)
	nodes := make([]*callgraph.Node, n)
	for i := range nodes {
		nodes[i] = cg.CreateNode(&ssa.Function{})
	}
	for _, e := range edges {
		callgraph.AddEdge(nodes[e[0]], nil, nodes[e[1]])
	}
	return cg, nodes
}

func ids(nodes graph.Nodes) []int64 {
	var res []int64
	for nodes.Next() {
		res = append(res, nodes.Node().ID())
	}
	return res
}

func TestMaxCallDepth(t *testing.T) {
	tests := []struct {
		name      string
		n         int
		edges     [][2]int
		depth     int
		recursive bool
	}{
		{"no edges", 3, nil, 0, false},
		{"single call", 2, [][2]int{{0, 1}}, 1, false},
		{"chain with shortcut", 4, [][2]int{{0, 1}, {1, 2}, {2, 3}, {0, 3}}, 3, false},
		{"diamond", 4, [][2]int{{0, 1}, {0, 2}, {1, 3}, {2, 3}}, 2, false},
		{"mutual recursion", 3, [][2]int{{0, 1}, {1, 2}, {2, 1}}, -1, true},
		{"self loop", 2, [][2]int{{0, 1}, {1, 1}}, -1, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cg, _ := newGraph(test.n, test.edges)
			depth, recursive := MaxCallDepth(cg)
			if depth != test.depth || recursive != test.recursive {
				t.Errorf("MaxCallDepth = (%d, %v), expected (%d, %v)", depth, recursive, test.depth, test.recursive)
			}
		})
	}
}

func TestMaxCallDepthNil(t *testing.T) {
	if depth, recursive := MaxCallDepth(nil); depth != 0 || recursive {
		t.Errorf("MaxCallDepth(nil) = (%d, %v)", depth, recursive)
	}
}

func TestCGraphDirected(t *testing.T) {
	cg, nodes := newGraph(3, [][2]int{{0, 1}, {0, 2}, {1, 2}, {0, 1}})
	g := NewCallgraphIterator(cg)
	a, b, c := int64(nodes[0].ID), int64(nodes[1].ID), int64(nodes[2].ID)

	if g.Order() != len(cg.Nodes) {
		t.Errorf("order is %d, expected %d", g.Order(), len(cg.Nodes))
	}
	if got := ids(g.Nodes()); len(got) != len(cg.Nodes) {
		t.Errorf("expected %d nodes, got %v", len(cg.Nodes), got)
	}
	if got := ids(g.From(a)); len(got) != 2 || got[0] != b || got[1] != c {
		t.Errorf("From(a) = %v, expected [%d %d]", got, b, c)
	}
	if got := ids(g.To(c)); len(got) != 2 || got[0] != a || got[1] != b {
		t.Errorf("To(c) = %v, expected [%d %d]", got, a, b)
	}
	if got := ids(g.From(c)); len(got) != 0 {
		t.Errorf("From(c) = %v, expected no successor", got)
	}
	if !g.HasEdgeFromTo(a, b) || g.HasEdgeFromTo(b, a) {
		t.Errorf("HasEdgeFromTo is not directed")
	}
	if !g.HasEdgeBetween(b, a) {
		t.Errorf("HasEdgeBetween should ignore direction")
	}
	if g.Edge(c, a) != nil {
		t.Errorf("unexpected edge from c to a")
	}
	e := g.Edge(a, b)
	if e == nil || e.From().ID() != a || e.To().ID() != b {
		t.Fatalf("wrong edge from a to b: %v", e)
	}
	if r := e.ReversedEdge(); r.From().ID() != b || r.To().ID() != a {
		t.Errorf("wrong reversed edge")
	}
	if g.Node(int64(g.Order())+1) != nil {
		t.Errorf("expected nil for unknown node id")
	}
}

func TestVisit(t *testing.T) {
	cg, nodes := newGraph(3, [][2]int{{0, 1}, {0, 2}})
	g := NewCallgraphIterator(cg)
	visited := 0
	aborted := g.Visit(nodes[0].ID, func(w int, c int64) bool {
		visited++
		return false
	})
	if aborted || visited != 2 {
		t.Errorf("visited %d successors (aborted: %v), expected 2", visited, aborted)
	}
	if !g.Visit(nodes[0].ID, func(int, int64) bool { return true }) {
		t.Errorf("Visit should report an abort")
	}
}
