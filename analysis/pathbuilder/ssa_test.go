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

package pathbuilder

import (
	"testing"

	"github.com/awslabs/argot-paths/analysis/abstraction"
	"github.com/awslabs/argot-paths/analysis/icfg"
	"github.com/awslabs/argot-paths/analysis/results"
	"github.com/awslabs/argot-paths/internal/analysistest"
	"golang.org/x/tools/go/ssa"
)

const interprocedural = `package id

func id(x int) int {
	return x // @Sink(a)
}

func f(a int) int {
	return id(a) // @Source(a)
}

func g(b int) int {
	c := id(b)
	return c + f(b)
}
`

// ssaCallGraph is the abstraction graph of a value of f flowing through id: the source is the argument a of
// the call at line 8, and the taint reaches the return of id at line 4, which returns to returnSite.
type ssaCallGraph struct {
	call   ssa.Instruction
	ret    ssa.Instruction
	sink   abstraction.SinkOccurrence
	source *ssa.Parameter
}

func newSSACallGraph(t *testing.T, p *analysistest.Program, matching bool) ssaCallGraph {
	t.Helper()
	g := ssaCallGraph{call: p.CallAt(t, 8), source: p.Func(t, "f").Params[0]}
	for _, instr := range p.InstructionsAt(4) {
		if _, ok := instr.(*ssa.Return); ok {
			g.ret = instr
		}
	}
	if g.ret == nil {
		t.Fatalf("no return at line 4")
	}
	var returnSite ssa.Instruction = g.call
	if !matching {
		returnSite = p.CallAt(t, 12)
	}
	s := abstraction.NewSource(abstraction.SourceContext{Value: g.source, Stmt: g.call}, g.call)
	x := abstraction.Derive(s, g.call)
	r := abstraction.DeriveAtCallSite(x, g.ret, returnSite)
	g.sink = abstraction.SinkOccurrence{Abstraction: r, SinkValue: g.source, SinkStmt: g.ret}
	return g
}

func newSSABuilder(t *testing.T, kind Kind, graph icfg.ICFG) (PathBuilder, *results.Results) {
	t.Helper()
	rs := results.New()
	b, err := NewFactory(kind, Options{Logger: quietLogger(), Sink: rs}).NewBuilder(2, graph)
	if err != nil {
		t.Fatalf("failed to create %s builder: %v", kind, err)
	}
	t.Cleanup(func() { b.Shutdown() })
	return b, rs
}

func TestSSACallingContext(t *testing.T) {
	p := analysistest.BuildSSA(t, interprocedural)
	graph := icfg.New(p.CallGraph)
	expectedFlows := p.ExpectedSourceToSink()
	maxCallDepth := graph.MaxCallDepth()
	if maxCallDepth != 2 {
		t.Fatalf("expected a call depth of 2, got %d", maxCallDepth)
	}

	for _, matching := range []bool{false, true} {
		expected := map[Kind]int{
			Recursive:                      1,
			ContextSensitive:               0,
			ContextInsensitive:             1,
			ContextInsensitiveSourceFinder: 1,
		}
		if matching {
			expected[ContextSensitive] = 1
		}
		for _, kind := range allKinds {
			g := newSSACallGraph(t, p, matching)
			b, rs := newSSABuilder(t, kind, graph)
			run(t, b, true, g.sink)
			if rs.Len() != expected[kind] {
				t.Errorf("%s (matching call sites: %v): expected %d results, got %d",
					kind, matching, expected[kind], rs.Len())
				continue
			}
			if rb, ok := b.(*RecursiveBuilder); ok && rb.MaxStackDepth() > maxCallDepth {
				t.Errorf("%s: call stack depth %d exceeds the call depth of the program", kind, rb.MaxStackDepth())
			}
			if rs.Len() == 0 || kind == ContextInsensitiveSourceFinder {
				continue
			}
			r := rs.All()[0]
			if r.SourceValue != g.source || r.SourceStmt != g.call {
				t.Errorf("%s: result should start at the argument of the call at line 8", kind)
			}
			sinkPos := analysistest.RemoveColumn(p.Fset.Position(r.ReportedSinkStmt().Pos()))
			sourcePos := analysistest.RemoveColumn(p.Fset.Position(r.SourceStmt.Pos()))
			if !expectedFlows[sinkPos][sourcePos] {
				t.Errorf("%s: unexpected flow from %s to %s", kind, sourcePos, sinkPos)
			}
			if !samePath(r.Path, []ssa.Instruction{g.call, g.ret}) {
				t.Errorf("%s: expected the path through the call and the return, got %v", kind, r.Path)
			}
		}
	}
}

func TestSSAStructuralICFG(t *testing.T) {
	// without a call graph, calls are still recognized and the call sites are matched
	p := analysistest.BuildSSA(t, interprocedural)
	g := newSSACallGraph(t, p, false)
	b, rs := newSSABuilder(t, ContextSensitive, nil)
	run(t, b, false, g.sink)
	if rs.Len() != 0 {
		t.Errorf("expected the mismatched call site to be pruned, got %d results", rs.Len())
	}
}
