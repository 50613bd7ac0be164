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

// Package results contains the results sink the path builders write into.
package results

import (
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/tools/go/ssa"
)

// A Result is one connection between a sink and a source.
type Result struct {
	SinkValue   ssa.Value
	SinkStmt    ssa.Instruction
	SourceValue ssa.Value
	SourceStmt  ssa.Instruction
	UserData    any

	// Path is the sequence of statements from the source to the sink. It is empty when paths are not
	// reconstructed.
	Path []ssa.Instruction

	// SinkStmtOverride, when non-nil, is the statement that should be reported instead of SinkStmt
	SinkStmtOverride ssa.Instruction
}

// ReportedSinkStmt returns the sink statement to report for the result.
func (r Result) ReportedSinkStmt() ssa.Instruction {
	if r.SinkStmtOverride != nil {
		return r.SinkStmtOverride
	}
	return r.SinkStmt
}

// Flow returns the key of the sink-source connection of the result, ignoring the path.
func (r Result) Flow() FlowKey {
	return FlowKey{
		SinkValue:   r.SinkValue,
		SinkStmt:    r.SinkStmt,
		SourceValue: r.SourceValue,
		SourceStmt:  r.SourceStmt,
	}
}

// FlowKey identifies a connection between a sink and a source.
type FlowKey struct {
	SinkValue   ssa.Value
	SinkStmt    ssa.Instruction
	SourceValue ssa.Value
	SourceStmt  ssa.Instruction
}

// Sink receives the results of the path builders. Implementations must be safe for concurrent use.
type Sink interface {
	Add(r Result)
}

// Results is an append-only Sink that keeps all the results in memory.
type Results struct {
	mu      sync.Mutex
	results []Result
}

// New returns an empty set of results.
func New() *Results {
	return &Results{}
}

// Add appends a result. Safe for concurrent use.
func (rs *Results) Add(r Result) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.results = append(rs.results, r)
}

// All returns a snapshot of all the results, in insertion order.
func (rs *Results) All() []Result {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	res := make([]Result, len(rs.results))
	copy(res, rs.results)
	return res
}

// Len returns the number of results.
func (rs *Results) Len() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.results)
}

// Flows returns the distinct sink-source connections of the results, with the number of results for each.
func (rs *Results) Flows() map[FlowKey]int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	flows := map[FlowKey]int{}
	for _, r := range rs.results {
		flows[r.Flow()]++
	}
	return flows
}

// SinkSources returns, for each sink statement, the source statements that reach it.
func (rs *Results) SinkSources() map[ssa.Instruction][]ssa.Instruction {
	sources := map[ssa.Instruction]map[ssa.Instruction]bool{}
	for flow := range rs.Flows() {
		if sources[flow.SinkStmt] == nil {
			sources[flow.SinkStmt] = map[ssa.Instruction]bool{}
		}
		sources[flow.SinkStmt][flow.SourceStmt] = true
	}
	res := make(map[ssa.Instruction][]ssa.Instruction, len(sources))
	for sink, srcs := range sources {
		res[sink] = maps.Keys(srcs)
	}
	return res
}
