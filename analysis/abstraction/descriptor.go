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
	"fmt"
	"strings"
	"sync"

	"golang.org/x/tools/go/ssa"
)

// SourceContext identifies where tainted data originates: the source value, the statement at which it is produced
// and some user-supplied metadata. UserData must be comparable, since it is part of the identity of descriptors.
type SourceContext struct {
	Value    ssa.Value
	Stmt     ssa.Instruction
	UserData any
}

// SinkOccurrence pairs an abstraction with the value and statement at which it was observed leaving the program.
type SinkOccurrence struct {
	Abstraction *Abstraction
	SinkValue   ssa.Value
	SinkStmt    ssa.Instruction
}

// PathTable hash-conses the statement sequences of the descriptors it creates: extending equal sequences by the
// same statement returns the same path element, so descriptors share their prefixes and a path is identified by
// its last element. A PathTable is safe for concurrent use.
//
// Descriptors created by different tables are never structurally equal, unless their paths are empty.
type PathTable struct {
	stmts links[ssa.Instruction]
	nodes links[*Abstraction]
}

// NewPathTable returns an empty table.
func NewPathTable() *PathTable {
	return &PathTable{}
}

// NewDescriptor returns a descriptor with an empty path.
func (t *PathTable) NewDescriptor(value ssa.Value, stmt ssa.Instruction, userData any) Descriptor {
	return Descriptor{table: t, value: value, stmt: stmt, userData: userData}
}

// NewSourceDescriptor returns a descriptor with an empty path, rooted at the source context.
func (t *PathTable) NewSourceDescriptor(sc *SourceContext) Descriptor {
	return t.NewDescriptor(sc.Value, sc.Stmt, sc.UserData)
}

// Descriptor is an immutable record of a path being reconstructed: the value, statement and user data at its
// origin (a source or a sink, depending on the direction of the traversal) and the sequence of statements
// accumulated so far.
type Descriptor struct {
	table    *PathTable
	value    ssa.Value
	stmt     ssa.Instruction
	userData any
	path     *link[ssa.Instruction]

	// nodes are the abstractions the path went through with ExtendFrom. It is not part of the identity.
	nodes *link[*Abstraction]
}

// DescriptorKey is a comparable value identifying a descriptor structurally: two descriptors of the same table
// with equal keys have the same origin and the same statement sequence.
type DescriptorKey struct {
	Value    ssa.Value
	Stmt     ssa.Instruction
	UserData any
	path     *link[ssa.Instruction]
}

// Value returns the value at the origin of the descriptor
func (d Descriptor) Value() ssa.Value { return d.value }

// Stmt returns the statement at the origin of the descriptor
func (d Descriptor) Stmt() ssa.Instruction { return d.stmt }

// UserData returns the metadata at the origin of the descriptor
func (d Descriptor) UserData() any { return d.userData }

// Len returns the number of statements in the path of the descriptor
func (d Descriptor) Len() int {
	if d.path == nil {
		return 0
	}
	return d.path.height
}

// Last returns the last statement added to the descriptor, or nil if its path is empty.
func (d Descriptor) Last() ssa.Instruction {
	if d.path == nil {
		return nil
	}
	return d.path.value
}

// Extend returns a new descriptor whose path is the path of d followed by stmt. If stmt is nil, or is the last
// statement of the path already, d is returned unchanged.
func (d Descriptor) Extend(stmt ssa.Instruction) Descriptor {
	if stmt == nil || (d.path != nil && d.path.value == stmt) {
		return d
	}
	d.path = d.table.stmts.child(d.path, stmt, nil)
	return d
}

// ExtendFrom returns a new descriptor extended by the current statement of n, as Extend does, and records that the
// path goes through n. It returns false if the path already goes through n, since the extension would close a
// loop.
func (d Descriptor) ExtendFrom(n *Abstraction) (Descriptor, bool) {
	if d.nodes != nil && n.onChain(d.nodes) {
		return d, false
	}
	d = d.Extend(n.CurrentStmt())
	d.nodes = d.table.nodes.child(d.nodes, n, n.addChain)
	return d, true
}

// Path returns the statements of the descriptor, in the order in which they were added.
func (d Descriptor) Path() []ssa.Instruction {
	if d.path == nil {
		return nil
	}
	s := make([]ssa.Instruction, d.path.height)
	for cur := d.path; cur != nil; cur = cur.parent {
		s[cur.height-1] = cur.value
	}
	return s
}

// Key returns the structural key of the descriptor.
func (d Descriptor) Key() DescriptorKey {
	return DescriptorKey{Value: d.value, Stmt: d.stmt, UserData: d.userData, path: d.path}
}

// Equal returns true when d and other are structurally equal.
func (d Descriptor) Equal(other Descriptor) bool {
	return d.Key() == other.Key()
}

func (d Descriptor) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "origin %s [", stmtKey(d.stmt))
	for i, s := range d.Path() {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(stmtKey(s))
	}
	b.WriteString("]")
	return b.String()
}

// stmtKey identifies a statement by its address. ssa instructions are all pointers, and statements are compared by
// identity throughout the abstraction graph.
func stmtKey(stmt ssa.Instruction) string {
	if stmt == nil {
		return "nil"
	}
	return fmt.Sprintf("%p", stmt)
}

// link is an element of a hash-consed chain: there is a single link for each parent and value. Links are
// immutable once created, except for their set of children.
type link[K comparable] struct {
	value  K
	parent *link[K]
	height int

	// jump is an ancestor of the link, chosen so that any ancestor is reached in a logarithmic number of steps
	jump *link[K]

	mu       sync.Mutex
	children map[K]*link[K]
}

// links holds the roots of a set of chains
type links[K comparable] struct {
	mu    sync.Mutex
	roots map[K]*link[K]
}

// child returns the link extending parent with v, or the root link for v if parent is nil. onCreate is called
// when the link is created, before any other caller can obtain it.
func (l *links[K]) child(parent *link[K], v K, onCreate func(*link[K])) *link[K] {
	mu, children := &l.mu, &l.roots
	if parent != nil {
		mu, children = &parent.mu, &parent.children
	}
	mu.Lock()
	defer mu.Unlock()
	if c, ok := (*children)[v]; ok {
		return c
	}
	if *children == nil {
		*children = make(map[K]*link[K])
	}
	c := newLink(parent, v)
	(*children)[v] = c
	if onCreate != nil {
		onCreate(c)
	}
	return c
}

// newLink sets the jump pointers as in skew-binary random access lists: the jump of a link skips a number of
// links that is a skew-binary number.
func newLink[K comparable](parent *link[K], v K) *link[K] {
	c := &link[K]{value: v, parent: parent, height: 1}
	if parent == nil {
		c.jump = c
		return c
	}
	c.height = parent.height + 1
	if j := parent.jump; parent.height-j.height == j.height-j.jump.height {
		c.jump = j.jump
	} else {
		c.jump = parent
	}
	return c
}

// ancestor returns the ancestor of l at height h, with 1 <= h <= l.height
func (l *link[K]) ancestor(h int) *link[K] {
	for l.height > h {
		if l.jump.height >= h {
			l = l.jump
		} else {
			l = l.parent
		}
	}
	return l
}

// within returns true if l is c or one of its ancestors
func (l *link[K]) within(c *link[K]) bool {
	return l.height <= c.height && c.ancestor(l.height) == l
}
