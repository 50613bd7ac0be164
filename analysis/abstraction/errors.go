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
	"errors"
	"fmt"
)

// ErrInvariantViolation is wrapped by all the errors reporting a malformed abstraction graph.
var ErrInvariantViolation = errors.New("abstraction graph invariant violation")

// InvariantError reports an abstraction that does not satisfy the structural invariants of the graph. Such errors
// are contract failures of the solver that built the graph.
type InvariantError struct {
	Abstraction *Abstraction
	Reason      string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvariantViolation, e.Reason)
}

func (e *InvariantError) Unwrap() error {
	return ErrInvariantViolation
}

// CheckInvariants returns an *InvariantError if a is a source with a predecessor or neighbors, or if a is not a
// source and has no predecessor.
func (a *Abstraction) CheckInvariants() error {
	if a.sourceContext != nil {
		if a.predecessor != nil {
			return &InvariantError{Abstraction: a, Reason: "source abstraction has a predecessor"}
		}
		if a.NumNeighbors() > 0 {
			return &InvariantError{Abstraction: a, Reason: "source abstraction has neighbors"}
		}
		return nil
	}
	if a.predecessor == nil {
		return &InvariantError{Abstraction: a, Reason: "abstraction has neither a source context nor a predecessor"}
	}
	return nil
}
