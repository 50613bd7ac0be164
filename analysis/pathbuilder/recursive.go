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
	"fmt"
	"sync/atomic"
	"time"

	"github.com/awslabs/argot-paths/analysis/abstraction"
	"github.com/awslabs/argot-paths/analysis/icfg"
	"github.com/awslabs/argot-paths/analysis/results"
	"golang.org/x/tools/go/ssa"
)

// RecursiveBuilder reconstructs the paths of each sink with a recursive backward traversal. Unless it ignores
// contexts, it maintains a shadow call stack and prunes the paths that leave a callee through a different call
// site than the one it was entered from.
//
// There is no memoization across sinks: each sink task explores the abstractions reachable from the sink again.
type RecursiveBuilder struct {
	*builder
	icfg          icfg.ICFG
	ignoreContext bool
	maxDepth      int

	// maxStackDepth is the largest number of call site frames observed on a shadow call stack
	maxStackDepth atomic.Int64
}

func newRecursiveBuilder(b *builder, graph icfg.ICFG, ignoreContext bool, maxDepth int) *RecursiveBuilder {
	return &RecursiveBuilder{builder: b, icfg: graph, ignoreContext: ignoreContext, maxDepth: maxDepth}
}

// MaxStackDepth returns the largest number of call site frames observed on a call stack since the builder was
// created. It is bounded by the maximal call depth of the program when the program is not recursive.
func (b *RecursiveBuilder) MaxStackDepth() int {
	return int(b.maxStackDepth.Load())
}

// ComputeTaintSources computes which sources reach the sinks.
func (b *RecursiveBuilder) ComputeTaintSources(ctx context.Context, sinks []abstraction.SinkOccurrence) error {
	return b.compute(ctx, sinks, false)
}

// ComputeTaintPaths computes which sources reach the sinks, and the paths between them.
func (b *RecursiveBuilder) ComputeTaintPaths(ctx context.Context, sinks []abstraction.SinkOccurrence) error {
	return b.compute(ctx, sinks, true)
}

func (b *RecursiveBuilder) compute(ctx context.Context, sinks []abstraction.SinkOccurrence, reconstruct bool) error {
	b.logger.Debugf("Running path reconstruction")
	start := time.Now()
	sinks = b.start(sinks)
	batch := b.pool.NewBatch()
	paths := abstraction.NewPathTable()
	for i, sink := range sinks {
		sink := sink
		b.logger.Debugf("Building path %d", i+1)
		err := batch.Execute(func() error {
			return b.buildPaths(paths, sink, reconstruct)
		})
		if err != nil {
			return fmt.Errorf("could not schedule path reconstruction: %w", err)
		}
	}
	if err := b.await(ctx, batch, start); err != nil {
		return err
	}
	b.logger.Debugf("Path reconstruction done.")
	return nil
}

// buildPaths is the task reconstructing the paths of one sink
func (b *RecursiveBuilder) buildPaths(table *abstraction.PathTable, sink abstraction.SinkOccurrence,
	reconstruct bool) error {
	initial := callStack{{visited: map[*abstraction.Abstraction]bool{}}}
	paths, err := b.getPaths(table, sink.Abstraction, reconstruct, initial)
	if err != nil {
		return err
	}
	for _, d := range paths {
		b.emit(results.Result{
			SinkValue:        sink.SinkValue,
			SinkStmt:         sink.SinkStmt,
			SourceValue:      d.Value(),
			SourceStmt:       d.Stmt(),
			UserData:         d.UserData(),
			Path:             d.Path(),
			SinkStmtOverride: sink.SinkStmt,
		})
	}
	return nil
}

// frame is a frame of the shadow call stack. The visited set scopes the cycle detection to one calling context.
type frame struct {
	callSite ssa.Instruction
	visited  map[*abstraction.Abstraction]bool
}

// callStack is the shadow call stack. The bottom frame has no call site and is never popped.
// Stacks are never modified in place: push and pop return new stacks sharing the frames.
type callStack []frame

func (s callStack) top() frame {
	return s[len(s)-1]
}

func (s callStack) push(callSite ssa.Instruction) callStack {
	next := make(callStack, len(s), len(s)+1)
	copy(next, s)
	return append(next, frame{callSite: callSite, visited: map[*abstraction.Abstraction]bool{}})
}

func (s callStack) pop() callStack {
	return s[: len(s)-1 : len(s)-1]
}

// depth returns the number of call site frames of the stack
func (s callStack) depth() int {
	return len(s) - 1
}

// pathSet is a set of descriptors, identified by their structural keys
type pathSet map[abstraction.DescriptorKey]abstraction.Descriptor

func (ps pathSet) add(d abstraction.Descriptor) {
	ps[d.Key()] = d
}

// getPaths returns the paths from the sources to the abstraction n.
func (b *RecursiveBuilder) getPaths(table *abstraction.PathTable, n *abstraction.Abstraction, reconstruct bool,
	stack callStack) (pathSet, error) {
	visited := stack.top().visited
	if visited[n] {
		return nil, nil
	}
	visited[n] = true
	b.visit()

	if err := n.CheckInvariants(); err != nil {
		return nil, b.violation(err)
	}

	paths := pathSet{}
	if sc := n.SourceContext(); sc != nil {
		d := table.NewSourceDescriptor(sc)
		if reconstruct {
			d = d.Extend(sc.Stmt)
		}
		paths.add(d)
		return paths, nil
	}

	if next, ok := b.enter(n, stack); ok {
		predPaths, err := b.getPaths(table, n.Predecessor(), reconstruct, next)
		if err != nil {
			return nil, err
		}
		for _, d := range predPaths {
			if reconstruct {
				d = d.Extend(n.CurrentStmt())
			}
			paths.add(d)
		}
	}

	// Neighbors are other derivations at the same program point: they are explored in the same calling context
	for _, nb := range n.Neighbors() {
		nbPaths, err := b.getPaths(table, nb, reconstruct, stack)
		if err != nil {
			return nil, err
		}
		for _, d := range nbPaths {
			paths.add(d)
		}
	}
	return paths, nil
}

// enter returns the call stack to use for the predecessor of n, and false if the predecessor must not be explored.
func (b *RecursiveBuilder) enter(n *abstraction.Abstraction, stack callStack) (callStack, bool) {
	if b.ignoreContext {
		return stack, true
	}
	next := stack
	if cs := n.CorrespondingCallSite(); cs != nil {
		next = next.push(cs)
	}
	// The predecessor of a callee entry is in the caller: the call site must be the one the callee returns to
	if stmt := n.CurrentStmt(); b.icfg.IsCallStmt(stmt) {
		if top := next.top(); top.callSite != nil {
			if top.callSite != stmt {
				b.logger.Tracef("Call site mismatch, pruning path")
				return nil, false
			}
			next = next.pop()
		}
	}
	depth := next.depth()
	if b.maxDepth > 0 && depth > b.maxDepth {
		b.logger.Tracef("Call stack deeper than %d, pruning path", b.maxDepth)
		return nil, false
	}
	for {
		cur := b.maxStackDepth.Load()
		if int64(depth) <= cur || b.maxStackDepth.CompareAndSwap(cur, int64(depth)) {
			break
		}
	}
	return next, true
}
