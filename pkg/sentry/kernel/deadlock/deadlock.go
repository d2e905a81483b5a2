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

// Package deadlock detects deadlocks between tasks that wait for kernel
// synchronization objects.
//
// Exclusive locks are checked with Cycle, which follows the wait-for graph
// from a lock's holder. Counted resources are tracked by a Banker, whose
// safety test decides whether every task can still run to completion.
package deadlock

// Cycle returns true if following waitsFor from from reaches to. waitsFor
// returns the task that its argument waits for, and false if the argument
// is not waiting.
func Cycle[T comparable](from, to T, waitsFor func(T) (T, bool)) bool {
	seen := make(map[T]struct{})
	for cur := from; ; {
		if cur == to {
			return true
		}
		if _, ok := seen[cur]; ok {
			return false
		}
		seen[cur] = struct{}{}
		next, ok := waitsFor(cur)
		if !ok {
			return false
		}
		cur = next
	}
}

// Banker tracks the units of counted resources R held and requested by tasks
// T.
//
// A task that needs nothing it cannot get right away is assumed to finish
// and give back everything it holds. The state is safe if every task can
// finish that way, in some order.
type Banker[T, R comparable] struct {
	available map[R]int
	allocated map[T]map[R]int
	need      map[T]map[R]int
}

// NewBanker returns a Banker with no resources.
func NewBanker[T, R comparable]() *Banker[T, R] {
	return &Banker[T, R]{
		available: make(map[R]int),
		allocated: make(map[T]map[R]int),
		need:      make(map[T]map[R]int),
	}
}

// AddResource registers r with n free units.
func (b *Banker[T, R]) AddResource(r R, n int) {
	b.available[r] = n
}

// Request records that t waits for one unit of r.
func (b *Banker[T, R]) Request(t T, r R) {
	add(b.need, t, r, 1)
}

// Cancel withdraws a Request of t for r.
func (b *Banker[T, R]) Cancel(t T, r R) {
	if b.need[t][r] > 0 {
		add(b.need, t, r, -1)
	}
}

// Grant satisfies a Request of t: one unit of r moves from the free pool
// to t.
func (b *Banker[T, R]) Grant(t T, r R) {
	b.Cancel(t, r)
	add(b.allocated, t, r, 1)
	if b.available[r] > 0 {
		b.available[r]--
	}
}

// Release returns one unit of r to the free pool. If t holds a unit of r,
// that unit is the one released.
func (b *Banker[T, R]) Release(t T, r R) {
	if b.allocated[t][r] > 0 {
		add(b.allocated, t, r, -1)
	}
	b.available[r]++
}

// Forget drops every request and allocation of t. Units t held are not
// returned to the free pool.
func (b *Banker[T, R]) Forget(t T) {
	delete(b.allocated, t)
	delete(b.need, t)
}

// Available returns the free units of r.
func (b *Banker[T, R]) Available(r R) int {
	return b.available[r]
}

// Allocated returns the units of r held by t.
func (b *Banker[T, R]) Allocated(t T, r R) int {
	return b.allocated[t][r]
}

// Need returns the units of r t waits for.
func (b *Banker[T, R]) Need(t T, r R) int {
	return b.need[t][r]
}

// Safe returns true if every task can finish.
func (b *Banker[T, R]) Safe() bool {
	work := make(map[R]int, len(b.available))
	for r, n := range b.available {
		work[r] = n
	}
	pending := make(map[T]struct{})
	for t := range b.allocated {
		pending[t] = struct{}{}
	}
	for t := range b.need {
		pending[t] = struct{}{}
	}
	for len(pending) > 0 {
		progress := false
		for t := range pending {
			if !b.satisfiable(t, work) {
				continue
			}
			for r, n := range b.allocated[t] {
				work[r] += n
			}
			delete(pending, t)
			progress = true
		}
		if !progress {
			return false
		}
	}
	return true
}

func (b *Banker[T, R]) satisfiable(t T, work map[R]int) bool {
	for r, n := range b.need[t] {
		if n > work[r] {
			return false
		}
	}
	return true
}

func add[T, R comparable](m map[T]map[R]int, t T, r R, n int) {
	row, ok := m[t]
	if !ok {
		row = make(map[R]int)
		m[t] = row
	}
	row[r] += n
}
