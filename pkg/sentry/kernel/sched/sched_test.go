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

package sched

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

type task struct {
	id   int32
	slot Slot
}

func (t *task) SchedID() int32   { return t.id }
func (t *task) SchedSlot() *Slot { return &t.slot }

func newTasks(n int) []*task {
	ts := make([]*task, n)
	for i := range ts {
		ts[i] = &task{id: int32(i + 1)}
	}
	return ts
}

// runSequence simulates a processor where every selected task runs for one
// quantum and is then made Ready again.
func runSequence(s Scheduler, ts []*task, steps int) []int32 {
	byID := make(map[int32]*task)
	for _, t := range ts {
		byID[t.id] = t
	}
	var seq []int32
	for i := 0; i < steps; i++ {
		id, ok := s.Next()
		if !ok {
			break
		}
		seq = append(seq, id)
		s.Ran(byID[id], 100)
		s.Ready(byID[id])
	}
	return seq
}

func TestRoundRobinCycles(t *testing.T) {
	s := NewRoundRobin()
	ts := newTasks(3)
	for _, tk := range ts {
		s.Ready(tk)
	}
	got := runSequence(s, ts, 7)
	if diff := cmp.Diff([]int32{1, 2, 3, 1, 2, 3, 1}, got); diff != "" {
		t.Errorf("sequence mismatch (-want +got):\n%s", diff)
	}
}

func TestNeverSelectsBlocked(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			s, err := New(name)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			ts := newTasks(3)
			for _, tk := range ts {
				s.Ready(tk)
			}
			s.Block(ts[1])
			// Blocking twice is harmless.
			s.Block(ts[1])
			for _, id := range runSequence(s, []*task{ts[0], ts[2]}, 10) {
				if id == 2 {
					t.Fatalf("blocked task selected")
				}
			}
		})
	}
}

func TestIdle(t *testing.T) {
	for _, name := range Names() {
		s, _ := New(name)
		if id, ok := s.Next(); ok {
			t.Errorf("%s: Next on empty scheduler = %d, want idle", name, id)
		}
		tk := &task{id: 1}
		s.Ready(tk)
		s.Ready(tk)
		if id, ok := s.Next(); !ok || id != 1 {
			t.Errorf("%s: Next = %d, %t, want 1, true", name, id, ok)
		}
		if _, ok := s.Next(); ok {
			t.Errorf("%s: task queued twice", name)
		}
	}
}

func TestStrideProportional(t *testing.T) {
	s := NewStride()
	ts := newTasks(2)
	s.SetPriority(ts[0], 4)
	s.SetPriority(ts[1], 2)
	for _, tk := range ts {
		s.Ready(tk)
	}
	counts := map[int32]int{}
	for _, id := range runSequence(s, ts, 60) {
		counts[id]++
	}
	if diff := cmp.Diff(map[int32]int{1: 40, 2: 20}, counts); diff != "" {
		t.Errorf("share mismatch (-want +got):\n%s", diff)
	}
}

func TestStrideEqualPrioritiesIsRoundRobin(t *testing.T) {
	s := NewStride()
	ts := newTasks(3)
	for _, tk := range ts {
		s.Ready(tk)
	}
	got := runSequence(s, ts, 6)
	if diff := cmp.Diff([]int32{1, 2, 3, 1, 2, 3}, got); diff != "" {
		t.Errorf("sequence mismatch (-want +got):\n%s", diff)
	}
}

func TestStrideNewTaskStartsAtCurrentPass(t *testing.T) {
	s := NewStride()
	ts := newTasks(2)
	s.Ready(ts[0])
	runSequence(s, ts[:1], 5)
	s.Ready(ts[1])
	if s.Pass(ts[1]) == 0 {
		t.Errorf("new task starts at pass 0, behind the running task")
	}
}

func TestNewUnknown(t *testing.T) {
	if _, err := New("fifo"); err == nil {
		t.Errorf("New(fifo) succeeded")
	}
}
