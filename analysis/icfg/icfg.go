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

// Package icfg implements the interprocedural control-flow lookups used by the path builders. Lookups are backed by
// a callgraph from golang.org/x/tools/go/callgraph; without a callgraph, only the structural lookups that can be
// answered from the SSA representation alone are available.
package icfg

import (
	"sync"

	"github.com/awslabs/argot-paths/internal/graphutil"
	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/ssa"
)

// ICFG is the interprocedural control-flow graph lookup service.
type ICFG interface {
	// IsCallStmt returns true if the statement is a call (including go and defer statements)
	IsCallStmt(stmt ssa.Instruction) bool

	// MethodOf returns the function containing the statement
	MethodOf(stmt ssa.Instruction) *ssa.Function

	// CalleesOf returns the functions that may be called by the call statement
	CalleesOf(stmt ssa.Instruction) []*ssa.Function

	// CallersOf returns the call statements that may call the function
	CallersOf(fn *ssa.Function) []ssa.CallInstruction

	// MaxCallDepth returns the length of the longest call chain, or -1 if the program is recursive
	MaxCallDepth() int
}

// Graph is the ICFG implementation over a callgraph.
type Graph struct {
	cg *callgraph.Graph

	depthOnce sync.Once
	depth     int
}

// New returns an ICFG backed by the callgraph. cg may be nil, in which case callees are resolved statically and
// callers are unknown.
func New(cg *callgraph.Graph) *Graph {
	return &Graph{cg: cg}
}

// IsCallStmt returns true if the statement is a call (including go and defer statements)
func (g *Graph) IsCallStmt(stmt ssa.Instruction) bool {
	_, ok := asCall(stmt)
	return ok
}

// asCall returns stmt as a call instruction, and false if stmt is not a call or is a nil pointer to a call.
func asCall(stmt ssa.Instruction) (ssa.CallInstruction, bool) {
	switch c := stmt.(type) {
	case nil:
		return nil, false
	case *ssa.Call:
		return c, c != nil
	case *ssa.Go:
		return c, c != nil
	case *ssa.Defer:
		return c, c != nil
	}
	return nil, false
}

// MethodOf returns the function containing the statement, or nil if the statement is nil
func (g *Graph) MethodOf(stmt ssa.Instruction) *ssa.Function {
	if stmt == nil {
		return nil
	}
	return stmt.Parent()
}

// CalleesOf returns the functions that may be called by the call statement. Returns nil if stmt is not a call.
func (g *Graph) CalleesOf(stmt ssa.Instruction) []*ssa.Function {
	call, ok := asCall(stmt)
	if !ok {
		return nil
	}
	if g.cg == nil {
		if callee := call.Common().StaticCallee(); callee != nil {
			return []*ssa.Function{callee}
		}
		return nil
	}
	node := g.cg.Nodes[call.Parent()]
	if node == nil {
		return nil
	}
	var callees []*ssa.Function
	seen := map[*ssa.Function]bool{}
	for _, e := range node.Out {
		if e.Site == call && e.Callee != nil && !seen[e.Callee.Func] {
			seen[e.Callee.Func] = true
			callees = append(callees, e.Callee.Func)
		}
	}
	return callees
}

// CallersOf returns the call statements that may call the function. Always empty without a callgraph.
func (g *Graph) CallersOf(fn *ssa.Function) []ssa.CallInstruction {
	if g.cg == nil || fn == nil {
		return nil
	}
	node := g.cg.Nodes[fn]
	if node == nil {
		return nil
	}
	var callers []ssa.CallInstruction
	seen := map[ssa.CallInstruction]bool{}
	for _, e := range node.In {
		if e.Site != nil && !seen[e.Site] {
			seen[e.Site] = true
			callers = append(callers, e.Site)
		}
	}
	return callers
}

// MaxCallDepth returns the length of the longest call chain of the callgraph, or -1 if the callgraph is
// recursive. The depth is computed once.
func (g *Graph) MaxCallDepth() int {
	g.depthOnce.Do(func() {
		g.depth, _ = graphutil.MaxCallDepth(g.cg)
	})
	return g.depth
}
