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

package funcutil

import (
	"testing"

	"golang.org/x/exp/slices"
)

func TestUnique(t *testing.T) {
	a := []int{3, 1, 3, 2, 1}
	if got := Unique(a); !slices.Equal(got, []int{3, 1, 2}) {
		t.Errorf("expected [3 1 2], got %v", got)
	}
	if !slices.Equal(a, []int{3, 1, 3, 2, 1}) {
		t.Errorf("Unique should not modify its argument")
	}
}

func TestSetToOrderedSlice(t *testing.T) {
	got := SetToOrderedSlice(map[int64]bool{5: true, 1: true, 3: false, 2: true})
	if !slices.Equal(got, []int64{1, 2, 5}) {
		t.Errorf("expected [1 2 5], got %v", got)
	}
}

func TestReverse(t *testing.T) {
	for _, test := range []struct{ in, out []int }{
		{nil, nil},
		{[]int{1}, []int{1}},
		{[]int{1, 2}, []int{2, 1}},
		{[]int{1, 2, 3}, []int{3, 2, 1}},
	} {
		Reverse(test.in)
		if !slices.Equal(test.in, test.out) {
			t.Errorf("expected %v, got %v", test.out, test.in)
		}
	}
}
