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

// Package queue implements a simple FIFO queue used as a worklist.
package queue

import "errors"

// ErrEmpty is the value Pop panics with when the queue is empty.
var ErrEmpty = errors.New("queue is empty")

// Queue is a first-in first-out queue. The zero value is an empty queue ready to use.
// A Queue is not safe for concurrent use.
type Queue[E any] struct {
	elements []E
	head     int
}

// Push adds e at the end of the queue.
func (q *Queue[E]) Push(e E) {
	q.elements = append(q.elements, e)
}

// Empty returns true when the queue has no element.
func (q *Queue[E]) Empty() bool {
	return q.head >= len(q.elements)
}

// Len returns the number of elements in the queue.
func (q *Queue[E]) Len() int {
	return len(q.elements) - q.head
}

// Pop removes and returns the first element of the queue. Pop panics with ErrEmpty if the queue is empty.
func (q *Queue[E]) Pop() E {
	if q.Empty() {
		panic(ErrEmpty)
	}

	var zero E
	e := q.elements[q.head]
	q.elements[q.head] = zero // release the reference for the GC
	q.head++
	// reclaim the consumed prefix once it dominates the backing array
	if q.head > 32 && q.head*2 >= len(q.elements) {
		n := copy(q.elements, q.elements[q.head:])
		q.elements = q.elements[:n]
		q.head = 0
	}
	return e
}
