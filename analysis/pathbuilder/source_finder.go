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
	"github.com/awslabs/argot-paths/internal/queue"
)

// SourceFinder computes which sources reach the sinks, without reconstructing any path. Each sink is processed
// by one task with its own identifier, and each abstraction is visited at most once per task.
type SourceFinder struct {
	*builder
}

// ComputeTaintSources computes which sources reach the sinks.
func (b *SourceFinder) ComputeTaintSources(ctx context.Context, sinks []abstraction.SinkOccurrence) error {
	if len(sinks) == 0 {
		return nil
	}
	start := time.Now()
	sinks = b.start(sinks)
	batch := b.pool.NewBatch()
	for i, sink := range sinks {
		sink := sink
		id := b.nextTaskID()
		b.logger.Debugf("Building path %d (task %d)", i+1, id)
		if err := batch.Execute(func() error { return b.findSources(id, sink) }); err != nil {
			return fmt.Errorf("could not schedule source finding: %w", err)
		}
	}
	return b.await(ctx, batch, start)
}

// ComputeTaintPaths logs a warning and computes which sources reach the sinks: the source finder cannot
// reconstruct paths.
func (b *SourceFinder) ComputeTaintPaths(ctx context.Context, sinks []abstraction.SinkOccurrence) error {
	b.warn("path reconstruction is not supported by the %s builder, computing sources only", b.kind)
	return b.ComputeTaintSources(ctx, sinks)
}

// findSources is the task finding the sources of one sink, with task identifier id
func (b *SourceFinder) findSources(id int, sink abstraction.SinkOccurrence) error {
	var worklist queue.Queue[*abstraction.Abstraction]
	sink.Abstraction.RegisterPathFlag(id)
	worklist.Push(sink.Abstraction)

	for !worklist.Empty() {
		n := worklist.Pop()
		b.visit()
		if err := n.CheckInvariants(); err != nil {
			if err := b.violation(err); err != nil {
				return err
			}
			continue
		}

		if sc := n.SourceContext(); sc != nil {
			b.emit(results.Result{
				SinkValue:   sink.SinkValue,
				SinkStmt:    sink.SinkStmt,
				SourceValue: sc.Value,
				SourceStmt:  sc.Stmt,
				UserData:    sc.UserData,
			})
		} else if pred := n.Predecessor(); pred.RegisterPathFlag(id) {
			worklist.Push(pred)
		}

		for _, nb := range n.Neighbors() {
			if nb.RegisterPathFlag(id) {
				worklist.Push(nb)
			}
		}
	}
	return nil
}
