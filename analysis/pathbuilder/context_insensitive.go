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
	"time"

	"github.com/awslabs/argot-paths/analysis/abstraction"
	"github.com/awslabs/argot-paths/analysis/results"
	"github.com/awslabs/argot-paths/internal/funcutil"
	"github.com/awslabs/argot-paths/internal/taskpool"
)

// ContextInsensitiveBuilder reconstructs paths by propagating descriptors backward, from the sinks to the sources.
// Each abstraction memoizes the descriptors that reached it, and a descriptor is only propagated further the first
// time it reaches an abstraction. The calling contexts are not checked.
type ContextInsensitiveBuilder struct {
	*builder
}

// ComputeTaintSources computes which sources reach the sinks.
func (b *ContextInsensitiveBuilder) ComputeTaintSources(ctx context.Context,
	sinks []abstraction.SinkOccurrence) error {
	return b.compute(ctx, sinks, false)
}

// ComputeTaintPaths computes which sources reach the sinks, and the paths between them.
func (b *ContextInsensitiveBuilder) ComputeTaintPaths(ctx context.Context, sinks []abstraction.SinkOccurrence) error {
	return b.compute(ctx, sinks, true)
}

func (b *ContextInsensitiveBuilder) compute(ctx context.Context, sinks []abstraction.SinkOccurrence,
	reconstruct bool) error {
	if len(sinks) == 0 {
		return nil
	}
	start := time.Now()
	sinks = b.start(sinks)
	batch := b.pool.NewBatch()
	paths := abstraction.NewPathTable()
	for i, sink := range sinks {
		b.logger.Debugf("Building path %d", i+1)
		d := paths.NewDescriptor(sink.SinkValue, sink.SinkStmt, nil)
		if reconstruct {
			d = d.Extend(sink.SinkStmt)
		}
		// The neighbors of the sink abstraction reach the same sink
		targets := append([]*abstraction.Abstraction{sink.Abstraction}, sink.Abstraction.Neighbors()...)
		for _, target := range targets {
			if target.AddPathElement(d) {
				if err := b.schedule(batch.Execute, batch, target, d, reconstruct); err != nil {
					return fmt.Errorf("could not schedule path reconstruction: %w", err)
				}
			}
		}
	}
	return b.await(ctx, batch, start)
}

// schedule submits the propagation of d from n with submit, which is either batch.Execute or batch.Spawn
func (b *ContextInsensitiveBuilder) schedule(submit func(taskpool.Task) error, batch *taskpool.Batch,
	n *abstraction.Abstraction, d abstraction.Descriptor, reconstruct bool) error {
	return submit(func() error {
		return b.propagate(batch, n, d, reconstruct)
	})
}

// propagate is the task processing a descriptor d newly added to the abstraction n
func (b *ContextInsensitiveBuilder) propagate(batch *taskpool.Batch, n *abstraction.Abstraction,
	d abstraction.Descriptor, reconstruct bool) error {
	b.visit()
	if err := n.CheckInvariants(); err != nil {
		return b.violation(err)
	}

	if sc := n.SourceContext(); sc != nil {
		if reconstruct {
			d = d.Extend(sc.Stmt)
		}
		// Descriptors accumulate the statements from the sink to the source
		path := d.Path()
		funcutil.Reverse(path)
		b.emit(results.Result{
			SinkValue:   d.Value(),
			SinkStmt:    d.Stmt(),
			SourceValue: sc.Value,
			SourceStmt:  sc.Stmt,
			UserData:    sc.UserData,
			Path:        path,
		})
		return nil
	}

	if reconstruct {
		var ok bool
		if d, ok = d.ExtendFrom(n); !ok {
			// the path loops back to n: any source beyond n is reached by the path without the loop
			return nil
		}
	}
	pred := n.Predecessor()
	// The neighbors of the predecessor are equivalent derivations: they all receive the descriptor
	targets := append([]*abstraction.Abstraction{pred}, pred.Neighbors()...)
	for _, target := range targets {
		if target.AddPathElement(d) {
			if err := b.schedule(batch.Spawn, batch, target, d, reconstruct); err != nil {
				return err
			}
		}
	}
	return nil
}
