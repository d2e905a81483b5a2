// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package deadlock

import "testing"

func TestCycle(t *testing.T) {
	// 1 waits for 2, 2 waits for 3, 4 waits for 5 and 5 waits for 4.
	edges := map[int]int{1: 2, 2: 3, 4: 5, 5: 4}
	waitsFor := func(x int) (int, bool) {
		y, ok := edges[x]
		return y, ok
	}
	for _, tc := range []struct {
		from, to int
		want     bool
	}{
		{1, 1, true},
		{1, 3, true},
		{3, 1, false},
		{2, 1, false},
		{4, 1, false},
		{5, 4, true},
	} {
		if got := Cycle(tc.from, tc.to, waitsFor); got != tc.want {
			t.Errorf("Cycle(%d, %d) = %t, want %t", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestBankerCrossedRequests(t *testing.T) {
	b := NewBanker[string, int]()
	b.AddResource(0, 1)
	b.AddResource(1, 1)

	// a holds 0 and b holds 1.
	b.Request("a", 0)
	b.Grant("a", 0)
	b.Request("b", 1)
	b.Grant("b", 1)
	if !b.Safe() {
		t.Fatalf("Safe() = false with no outstanding requests")
	}

	// a waits for 1: b can still finish and release it.
	b.Request("a", 1)
	if !b.Safe() {
		t.Fatalf("Safe() = false after one crossed request")
	}

	// b waits for 0: neither can finish.
	b.Request("b", 0)
	if b.Safe() {
		t.Fatalf("Safe() = true with both tasks waiting for each other")
	}
	b.Cancel("b", 0)
	if !b.Safe() {
		t.Errorf("Safe() = false after the request was cancelled")
	}
}

func TestBankerAccounting(t *testing.T) {
	b := NewBanker[int, int]()
	b.AddResource(7, 2)

	b.Request(1, 7)
	b.Grant(1, 7)
	if got := b.Available(7); got != 1 {
		t.Errorf("Available after a grant = %d, want 1", got)
	}
	if got := b.Allocated(1, 7); got != 1 {
		t.Errorf("Allocated after a grant = %d, want 1", got)
	}
	if got := b.Need(1, 7); got != 0 {
		t.Errorf("Need after a grant = %d, want 0", got)
	}

	// A task that holds nothing can still release a unit.
	b.Release(2, 7)
	if got := b.Available(7); got != 2 {
		t.Errorf("Available after a release by another task = %d, want 2", got)
	}
	b.Release(1, 7)
	if got, want := b.Allocated(1, 7), 0; got != want {
		t.Errorf("Allocated after release = %d, want %d", got, want)
	}

	b.Request(3, 7)
	b.Grant(3, 7)
	b.Forget(3)
	if b.Allocated(3, 7) != 0 || b.Need(3, 7) != 0 {
		t.Errorf("Forget kept rows of task 3")
	}
	if got := b.Available(7); got != 2 {
		t.Errorf("Available after Forget = %d, want 2 (units of a forgotten task stay taken)", got)
	}
}
