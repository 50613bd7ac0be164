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

// Package graphutil adapts call graphs to the interfaces of graph libraries and implements the graph algorithms
// used to bound interprocedural traversals.
package graphutil

import (
	"sort"

	"github.com/awslabs/argot-paths/internal/funcutil"
	"golang.org/x/tools/go/callgraph"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/iterator"
)

// CGraph is an abstraction over a callgraph to work with existing graph libraries. It implements yourbasic's
// graph.Iterator and Gonum's graph.Directed. Node ids are the ids of the callgraph nodes.
type CGraph struct {
	// The order of the graph: all node ids are in [0, order)
	order int

	// The original callgraph the CGraph was constructed from
	Graph *callgraph.Graph

	// IDMap maps from node IDs to CNodes
	IDMap map[int64]CNode

	// Keys are all the node IDs, sorted
	Keys []int64

	// Edges is an adjacency matrix: Edges[x][y] means there is a directed edge between IDMap[x] and IDMap[y]
	Edges map[int64]map[int64]bool

	// reverse is the transposed adjacency matrix
	reverse map[int64]map[int64]bool
}

// NewCallgraphIterator returns a new call graph iterator where node ids correspond the Node.ID of each callgraph
// node. Parallel edges (several call sites calling the same callee) are merged.
func NewCallgraphIterator(cg *callgraph.Graph) CGraph {
	n := len(cg.Nodes)
	c := CGraph{
		Graph:   cg,
		IDMap:   make(map[int64]CNode, n),
		Edges:   make(map[int64]map[int64]bool, n),
		reverse: make(map[int64]map[int64]bool, n),
		Keys:    make([]int64, 0, n),
	}
	for _, node := range cg.Nodes {
		id := int64(node.ID)
		c.Keys = append(c.Keys, id)
		c.IDMap[id] = CNode{node}
		if int(id) >= c.order {
			c.order = int(id) + 1
		}
		if c.Edges[id] == nil {
			c.Edges[id] = map[int64]bool{}
		}
		for _, e := range node.Out {
			if e.Callee == nil {
				continue
			}
			callee := int64(e.Callee.ID)
			c.Edges[id][callee] = true
			if c.reverse[callee] == nil {
				c.reverse[callee] = map[int64]bool{}
			}
			c.reverse[callee][id] = true
		}
	}
	sort.Slice(c.Keys, func(i, j int) bool { return c.Keys[i] < c.Keys[j] })
	return c
}

// Order implements the order of the graph.Iterator interface for the CGraph
func (c CGraph) Order() int {
	return c.order
}

// Visit implements the graph.Iterator interface for the CGraph
func (c CGraph) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	for w := range c.Edges[int64(v)] {
		if do(int(w), 1) {
			return true
		}
	}
	return false
}

// HasSelfLoop returns true if the node with the given id calls itself directly.
func (c CGraph) HasSelfLoop(id int64) bool {
	return c.Edges[id][id]
}

// *************** Graph interface implementation **********************

// Node implements the Graph interface. Returns nil if the graph has no node with that id.
func (c CGraph) Node(id int64) graph.Node {
	if n, ok := c.IDMap[id]; ok {
		return n
	}
	return nil
}

// Nodes returns the set of nodes in the graph, ordered by id
func (c CGraph) Nodes() graph.Nodes {
	return c.nodesOf(c.Keys)
}

// From returns the set of nodes reachable from the id through one edge
func (c CGraph) From(id int64) graph.Nodes {
	return c.nodesOf(funcutil.SetToOrderedSlice(c.Edges[id]))
}

// To returns the set of nodes that reach the id through one edge
func (c CGraph) To(id int64) graph.Nodes {
	return c.nodesOf(funcutil.SetToOrderedSlice(c.reverse[id]))
}

// HasEdgeBetween returns a boolean indicating whether an edge exists between the two node identifiers
func (c CGraph) HasEdgeBetween(xid, yid int64) bool {
	return c.Edges[xid][yid] || c.Edges[yid][xid]
}

// HasEdgeFromTo returns a boolean indicating whether there is a directed edge from uid to vid
func (c CGraph) HasEdgeFromTo(uid, vid int64) bool {
	return c.Edges[uid][vid]
}

// Edge returns the edge between the two identifiers (nil if none exists)
func (c CGraph) Edge(uid, vid int64) graph.Edge {
	if c.Edges[uid][vid] {
		return CEdge{from: c.IDMap[uid], to: c.IDMap[vid]}
	}
	return nil
}

func (c CGraph) nodesOf(ids []int64) graph.Nodes {
	if len(ids) == 0 {
		return graph.Empty
	}
	nodes := make([]graph.Node, len(ids))
	for i, id := range ids {
		nodes[i] = c.IDMap[id]
	}
	return iterator.NewOrderedNodes(nodes)
}

// *************** Nodes implementation **********************

// CNode is a wrapper around a *callgraph.Node that implements the graph.Node interface
type CNode struct {
	Node *callgraph.Node
}

// ID returns the id of the node
func (n CNode) ID() int64 {
	return int64(n.Node.ID)
}

// *************** Edge implementation **********************

// CEdge implements the graph.Edge interface
type CEdge struct {
	from CNode
	to   CNode
}

// From returns the origin of the edge
func (e CEdge) From() graph.Node {
	return e.from
}

// To returns the destination of the edge
func (e CEdge) To() graph.Node {
	return e.to
}

// ReversedEdge returns a new value representing the reversed edge
func (e CEdge) ReversedEdge() graph.Edge {
	return CEdge{from: e.to, to: e.from}
}
