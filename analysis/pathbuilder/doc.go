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

// Package pathbuilder reconstructs the paths between sources and sinks from the abstraction graph built by a
// dataflow solver.
//
// Three algorithms are available, trading precision for scalability:
//
//   - the recursive builder walks back from each sink with an explicit shadow call stack, and prunes the paths
//     that return to a different call site than the one the callee was entered from (ContextSensitive). With
//     Recursive, the call stack is not checked.
//   - the context-insensitive builder propagates path descriptors from node to node, memoizing them in the
//     path cache of each abstraction so that each distinct descriptor is propagated once.
//   - the source finder only computes which sources reach which sinks, marking visited nodes with a one-shot
//     flag per sink.
//
// All the builders run their tasks on a shared task pool and block until no task is running or queued.
// Builders are created by a [Factory], which owns the task identifiers shared by the builders it creates:
//
//	factory := pathbuilder.NewFactory(pathbuilder.ContextInsensitive, pathbuilder.Options{Logger: logger})
//	builder, err := factory.NewBuilder(taskpool.AllThreads, icfg.New(callGraph))
//	if err != nil {
//		return err
//	}
//	defer builder.Shutdown()
//	if err := builder.ComputeTaintPaths(ctx, sinks); err != nil {
//		return err
//	}
//	for _, r := range builder.Results().(*results.Results).All() {
//		...
//	}
package pathbuilder
