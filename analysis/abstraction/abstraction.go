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

package abstraction

import (
	"sync"
	"sync/atomic"

	"golang.org/x/tools/container/intsets"
	"golang.org/x/tools/go/ssa"
)

// Abstraction is a dataflow fact at a program point, linked to the fact it was derived from (its predecessor) and
// to the equal facts that were reached through a different derivation (its neighbors).
//
// The structural fields are set by the solver before the backward traversal starts. The neighbor set, the path
// cache and the path flags are lazily allocated, since only the abstractions visited during path reconstruction
// need them.
type Abstraction struct {
	currentStmt           ssa.Instruction
	correspondingCallSite ssa.Instruction
	sourceContext         *SourceContext
	predecessor           *Abstraction

	// mu guards neighbors, pathFlags and chains, and the allocation of pathCache
	mu        sync.Mutex
	neighbors map[*Abstraction]struct{}
	pathFlags *intsets.Sparse

	// chains are the ends of the descriptor node chains whose last abstraction is this one
	chains []*link[*Abstraction]

	// pathCache holds the descriptors that have reached this abstraction, keyed by DescriptorKey
	pathCache atomic.Pointer[sync.Map]
}

// NewSource returns a root abstraction for the source context sc, at statement stmt.
func NewSource(sc SourceContext, stmt ssa.Instruction) *Abstraction {
	return &Abstraction{sourceContext: &sc, currentStmt: stmt}
}

// Derive returns a new abstraction derived from pred at statement stmt.
func Derive(pred *Abstraction, stmt ssa.Instruction) *Abstraction {
	return &Abstraction{predecessor: pred, currentStmt: stmt}
}

// DeriveAtCallSite returns a new abstraction derived from pred at statement stmt, entering the callee of
// callSite. During the backward traversal, callSite is used to match the call statement through which the
// traversal leaves the callee.
func DeriveAtCallSite(pred *Abstraction, stmt ssa.Instruction, callSite ssa.Instruction) *Abstraction {
	return &Abstraction{predecessor: pred, currentStmt: stmt, correspondingCallSite: callSite}
}

// SetPredecessor sets the predecessor of a. It must be called before the abstraction is shared with other
// goroutines.
func (a *Abstraction) SetPredecessor(pred *Abstraction) {
	a.predecessor = pred
}

// CurrentStmt returns the statement at which the fact was derived
func (a *Abstraction) CurrentStmt() ssa.Instruction { return a.currentStmt }

// CorrespondingCallSite returns the call statement whose callee entry produced this fact, or nil
func (a *Abstraction) CorrespondingCallSite() ssa.Instruction { return a.correspondingCallSite }

// SourceContext returns the source context of a root abstraction, or nil
func (a *Abstraction) SourceContext() *SourceContext { return a.sourceContext }

// Predecessor returns the abstraction a was derived from, or nil for sources
func (a *Abstraction) Predecessor() *Abstraction { return a.predecessor }

// IsSource returns true when a is a root of the abstraction graph
func (a *Abstraction) IsSource() bool { return a.sourceContext != nil }

// AddNeighbor registers n as an alternative derivation of the fact represented by a. Returns true if n has been
// added. Adding a itself, or an abstraction with the same predecessor and statement as a, is a no-op.
func (a *Abstraction) AddNeighbor(n *Abstraction) bool {
	if n == a {
		if assertionsEnabled {
			panic(&InvariantError{Abstraction: a, Reason: "abstraction registered as its own neighbor"})
		}
		return false
	}
	// the derivation is already represented by a
	if a.predecessor == n.predecessor && a.currentStmt == n.currentStmt {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.neighbors == nil {
		a.neighbors = make(map[*Abstraction]struct{})
	}
	if _, ok := a.neighbors[n]; ok {
		return false
	}
	a.neighbors[n] = struct{}{}
	return true
}

// Neighbors returns a snapshot of the neighbors of a. The order is unspecified.
func (a *Abstraction) Neighbors() []*Abstraction {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.neighbors) == 0 {
		return nil
	}
	ns := make([]*Abstraction, 0, len(a.neighbors))
	for n := range a.neighbors {
		ns = append(ns, n)
	}
	return ns
}

// NumNeighbors returns the number of neighbors of a.
func (a *Abstraction) NumNeighbors() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.neighbors)
}

// AddPathElement adds the descriptor to the path cache of a. Returns true if no structurally equal descriptor has
// been added before, in which case the caller is responsible for continuing the traversal with d.
func (a *Abstraction) AddPathElement(d Descriptor) bool {
	cache := a.pathCache.Load()
	if cache == nil {
		a.mu.Lock()
		cache = a.pathCache.Load()
		if cache == nil {
			cache = &sync.Map{}
			a.pathCache.Store(cache)
		}
		a.mu.Unlock()
	}
	_, loaded := cache.LoadOrStore(d.Key(), d)
	return !loaded
}

// Paths returns a snapshot of the descriptors in the path cache of a. The order is unspecified.
func (a *Abstraction) Paths() []Descriptor {
	cache := a.pathCache.Load()
	if cache == nil {
		return nil
	}
	var ds []Descriptor
	cache.Range(func(_, v any) bool {
		ds = append(ds, v.(Descriptor))
		return true
	})
	return ds
}

// RegisterPathFlag records that the traversal task with identifier id has visited a. Returns true the first time
// id is registered, false afterwards.
func (a *Abstraction) RegisterPathFlag(id int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pathFlags == nil {
		a.pathFlags = &intsets.Sparse{}
	}
	return a.pathFlags.Insert(id)
}

func (a *Abstraction) addChain(l *link[*Abstraction]) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.chains = append(a.chains, l)
}

// onChain returns true if a is on the node chain ending at c
func (a *Abstraction) onChain(c *link[*Abstraction]) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, l := range a.chains {
		if l.within(c) {
			return true
		}
	}
	return false
}
