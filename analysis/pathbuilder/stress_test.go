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
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/awslabs/argot-paths/analysis/abstraction"
	"github.com/awslabs/argot-paths/analysis/results"
	"github.com/awslabs/argot-paths/internal/taskpool"
	"golang.org/x/exp/maps"
	"golang.org/x/tools/go/ssa"
)

// newFanInGraph returns a sink whose predecessor P has numNeighbors neighbors, each derived from its own source.
func newFanInGraph(t *testing.T, numNeighbors int) abstraction.SinkOccurrence {
	sS := newStmt()
	p := abstraction.Derive(abstraction.NewSource(abstraction.SourceContext{Value: newValue(), Stmt: sS}, sS),
		newStmt())
	for i := 0; i < numNeighbors; i++ {
		s := newStmt()
		src := abstraction.NewSource(abstraction.SourceContext{Value: newValue(), Stmt: s, UserData: i}, s)
		if !p.AddNeighbor(abstraction.Derive(src, newStmt())) {
			t.Fatalf("failed to add neighbor %d", i)
		}
	}
	sink := abstraction.Derive(p, newStmt())
	return abstraction.SinkOccurrence{Abstraction: sink, SinkValue: newValue(), SinkStmt: sink.CurrentStmt()}
}

func newPoolBuilder(workers int, sink results.Sink) *ContextInsensitiveBuilder {
	return &ContextInsensitiveBuilder{builder: &builder{
		kind:    ContextInsensitive,
		logger:  quietLogger(),
		pool:    taskpool.New(workers),
		sink:    sink,
		taskIDs: new(atomic.Int64),
	}}
}

func TestFanInStress(t *testing.T) {
	const numNeighbors = 10000
	for _, workers := range []int{1, 4, 64} {
		for _, reconstruct := range []bool{false, true} {
			t.Run(fmt.Sprintf("workers=%d,paths=%v", workers, reconstruct), func(t *testing.T) {
				rs := results.New()
				b := newPoolBuilder(workers, rs)
				defer b.Shutdown()
				run(t, b, reconstruct, newFanInGraph(t, numNeighbors))

				if rs.Len() != numNeighbors+1 {
					t.Errorf("expected %d results, got %d", numNeighbors+1, rs.Len())
				}
				flows := rs.Flows()
				if len(flows) != numNeighbors+1 {
					t.Errorf("expected %d distinct flows, got %d", numNeighbors+1, len(flows))
				}
				for _, n := range flows {
					if n != 1 {
						t.Fatalf("duplicate result")
					}
				}
				// the sink, the predecessor and its neighbors, and the sources
				if p := b.Propagations(); p != 2*numNeighbors+3 {
					t.Errorf("expected %d propagations, got %d", 2*numNeighbors+3, p)
				}
			})
		}
	}
}

// layeredGraph is a random graph of sources and layers of abstractions. Each abstraction of a layer is derived
// from an abstraction of the previous layer; the first abstractions of each layer have neighbors, which have no
// neighbors themselves.
type layeredGraph struct {
	sinks     []abstraction.SinkOccurrence
	sourceIdx map[ssa.Instruction]int
	sinkIdx   map[ssa.Instruction]int
}

func newLayeredGraph(seed int64) *layeredGraph {
	r := rand.New(rand.NewSource(seed))
	g := &layeredGraph{sourceIdx: map[ssa.Instruction]int{}, sinkIdx: map[ssa.Instruction]int{}}
	var prev []*abstraction.Abstraction
	for i := 0; i < 6; i++ {
		s := newStmt()
		prev = append(prev, abstraction.NewSource(abstraction.SourceContext{Value: newValue(), Stmt: s, UserData: i}, s))
		g.sourceIdx[s] = i
	}
	var canonical []*abstraction.Abstraction
	for layer := 0; layer < 8; layer++ {
		var cur []*abstraction.Abstraction
		for j := 0; j < 5; j++ {
			n := abstraction.Derive(prev[r.Intn(len(prev))], newStmt())
			cur = append(cur, n)
			canonical = append(canonical, n)
			for k := r.Intn(3); k > 0; k-- {
				nb := abstraction.Derive(prev[r.Intn(len(prev))], newStmt())
				if n.AddNeighbor(nb) {
					cur = append(cur, nb)
				}
			}
		}
		prev = cur
	}
	for k := 0; k < 4; k++ {
		n := canonical[len(canonical)-1-r.Intn(10)]
		s := newStmt()
		g.sinks = append(g.sinks, abstraction.SinkOccurrence{Abstraction: n, SinkValue: newValue(), SinkStmt: s})
		g.sinkIdx[s] = k
	}
	return g
}

// expectedFlows computes the (sink, source) pairs by a plain traversal of the graph
func (g *layeredGraph) expectedFlows() map[[2]int]bool {
	flows := map[[2]int]bool{}
	for _, sink := range g.sinks {
		visited := map[*abstraction.Abstraction]bool{}
		stack := []*abstraction.Abstraction{sink.Abstraction}
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if visited[n] {
				continue
			}
			visited[n] = true
			if sc := n.SourceContext(); sc != nil {
				flows[[2]int{g.sinkIdx[sink.SinkStmt], g.sourceIdx[sc.Stmt]}] = true
				continue
			}
			stack = append(stack, n.Predecessor())
			stack = append(stack, n.Neighbors()...)
		}
	}
	return flows
}

func (g *layeredGraph) flows(rs *results.Results) map[[2]int]bool {
	flows := map[[2]int]bool{}
	for flow := range rs.Flows() {
		flows[[2]int{g.sinkIdx[flow.SinkStmt], g.sourceIdx[flow.SourceStmt]}] = true
	}
	return flows
}

func TestReachabilityAgreement(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		expected := newLayeredGraph(seed).expectedFlows()
		if len(expected) == 0 {
			t.Fatalf("seed %d: graph without flows", seed)
		}
		for _, kind := range allKinds {
			for _, reconstruct := range []bool{false, true} {
				g := newLayeredGraph(seed)
				b, rs := newTestBuilder(t, kind, Options{})
				run(t, b, reconstruct, g.sinks...)
				if got := g.flows(rs); !maps.Equal(got, expected) {
					t.Errorf("seed %d, %s (paths: %v): got %d flows, expected %d",
						seed, kind, reconstruct, len(got), len(expected))
				}
			}
		}
	}
}

// blockingSink blocks the builders until it is released
type blockingSink struct {
	results.Results
	release chan struct{}
}

func (s *blockingSink) Add(r results.Result) {
	<-s.release
	s.Results.Add(r)
}

func TestInterruptedWaitKeepsResults(t *testing.T) {
	for _, kind := range allKinds {
		t.Run(kind.String(), func(t *testing.T) {
			sink := &blockingSink{release: make(chan struct{})}
			f := NewFactory(kind, Options{Logger: quietLogger(), Sink: sink})
			b, err := f.NewBuilder(2, nil)
			if err != nil {
				t.Fatalf("failed to create builder: %v", err)
			}
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			err = b.ComputeTaintSources(ctx, []abstraction.SinkOccurrence{newLinearGraph().sink})
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected the wait to be interrupted, got %v", err)
			}
			close(sink.release)
			// shutting down lets the in-flight tasks run to completion
			if err := b.Shutdown(); err != nil {
				t.Fatalf("failed to shut down: %v", err)
			}
			if sink.Len() != 1 {
				t.Errorf("the result of the interrupted computation should be kept, got %d results", sink.Len())
			}
		})
	}
}

func TestShutdownRejectsWork(t *testing.T) {
	b, _ := newTestBuilder(t, ContextInsensitive, Options{})
	if err := b.Shutdown(); err != nil {
		t.Fatalf("failed to shut down: %v", err)
	}
	err := b.ComputeTaintPaths(context.Background(), []abstraction.SinkOccurrence{newLinearGraph().sink})
	if !errors.Is(err, taskpool.ErrShutdown) {
		t.Errorf("expected %v, got %v", taskpool.ErrShutdown, err)
	}
}

// newChainGraph returns a sink at the end of a chain of length derivations from one source, with the statements
// of the chain from the source to the sink.
func newChainGraph(length int) (abstraction.SinkOccurrence, []ssa.Instruction) {
	stmts := []ssa.Instruction{newStmt()}
	n := abstraction.NewSource(abstraction.SourceContext{Value: newValue(), Stmt: stmts[0]}, stmts[0])
	for i := 0; i < length; i++ {
		s := newStmt()
		stmts = append(stmts, s)
		n = abstraction.Derive(n, s)
	}
	return abstraction.SinkOccurrence{Abstraction: n, SinkValue: newValue(), SinkStmt: n.CurrentStmt()}, stmts
}

func TestLongChainPaths(t *testing.T) {
	const length = 20000
	for _, kind := range []Kind{ContextInsensitive, ContextSensitive, Recursive} {
		t.Run(kind.String(), func(t *testing.T) {
			sink, stmts := newChainGraph(length)
			b, rs := newTestBuilder(t, kind, Options{})
			run(t, b, true, sink)
			all := rs.All()
			if len(all) != 1 {
				t.Fatalf("expected 1 result, got %d", len(all))
			}
			if !samePath(all[0].Path, stmts) {
				t.Errorf("expected a path of %d statements, got %d", len(stmts), len(all[0].Path))
			}
			if got := b.(interface{ Propagations() int64 }).Propagations(); got != length+1 {
				t.Errorf("expected %d propagations, got %d", length+1, got)
			}
		})
	}
}

func TestShutdownRejectsWorkInFlight(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	b := newPoolBuilder(2, sink)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.ComputeTaintSources(ctx, []abstraction.SinkOccurrence{newLinearGraph().sink}); !errors.Is(err,
		context.Canceled) {
		t.Fatalf("expected the wait to be interrupted, got %v", err)
	}

	shutdownDone := make(chan error)
	go func() { shutdownDone <- b.Shutdown() }()
	// the first computation is still blocked on the sink: new computations are rejected once the shutdown
	// has started
	var err error
	accepted := 0
	for i := 0; i < 1000 && !errors.Is(err, taskpool.ErrShutdown); i++ {
		err = b.ComputeTaintPaths(ctx, []abstraction.SinkOccurrence{newLinearGraph().sink})
		if errors.Is(err, context.Canceled) {
			accepted++
		}
		time.Sleep(time.Millisecond)
	}
	if !errors.Is(err, taskpool.ErrShutdown) {
		t.Errorf("expected %v, got %v", taskpool.ErrShutdown, err)
	}
	close(sink.release)
	if err := <-shutdownDone; err != nil {
		t.Fatalf("failed to shut down: %v", err)
	}
	if sink.Len() != 1+accepted {
		t.Errorf("expected %d results, got %d", 1+accepted, sink.Len())
	}
}
