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

/*
Package abstraction contains the data model on which taint paths are reconstructed: the abstraction graph produced
by a forward dataflow solver, the source contexts at its roots, the sink occurrences reported by the solver, and the
path descriptors that accumulate statements during a backward traversal.

An [Abstraction] is one propagated fact at one program point. The forward solver creates and links abstractions
with [NewSource], [Derive] and [DeriveAtCallSite], and records alternative derivations of equal facts with
[Abstraction.AddNeighbor]. Once the solver has reached a fixpoint, the graph is treated as frozen except for the
traversal bookkeeping (path cache, path flags and late neighbor insertions), which is safe for concurrent use:

	src := abstraction.NewSource(abstraction.SourceContext{Value: v, Stmt: call}, call)
	a := abstraction.Derive(src, store)
	b := abstraction.Derive(a, sinkCall)
	sinks := []abstraction.SinkOccurrence{{Abstraction: b, SinkValue: arg, SinkStmt: sinkCall}}

Building with the pathassert tag turns contract violations of the solver (e.g. registering an abstraction as its own
neighbor) into panics at the point where they happen.
*/
package abstraction
