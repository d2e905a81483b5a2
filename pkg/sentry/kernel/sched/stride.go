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
	"github.com/google/btree"
)

const (
	// BigStride is divided by a task's priority to get its stride.
	BigStride = 1 << 20

	// DefaultPriority is the priority of a task that never called
	// setpriority.
	DefaultPriority = 16

	// MinPriority is the lowest valid priority.
	MinPriority = 2
)

// strideData is the Stride slot data.
type strideData struct {
	pass   uint64
	stride uint64
	queued bool
}

type strideItem struct {
	pass uint64
	id   int32
	e    Entity
}

func strideLess(a, b strideItem) bool {
	if a.pass != b.pass {
		return a.pass < b.pass
	}
	return a.id < b.id
}

// Stride selects the Ready task with the lowest pass value. A task's pass
// advances by BigStride/priority every time it runs, so CPU share is
// proportional to priority. Ties go to the lower id.
type Stride struct {
	ready *btree.BTreeG[strideItem]

	// minPass is the pass of the last selected task. New tasks start here
	// so they cannot monopolize the processor.
	minPass uint64
}

var _ Scheduler = (*Stride)(nil)

// NewStride returns an empty Stride scheduler.
func NewStride() *Stride {
	return &Stride{
		ready: btree.NewG(8, strideLess),
	}
}

func (s *Stride) slot(e Entity) *strideData {
	sl := e.SchedSlot()
	d, ok := sl.data.(*strideData)
	if !ok {
		d = &strideData{
			pass:   s.minPass,
			stride: BigStride / DefaultPriority,
		}
		sl.data = d
	}
	return d
}

// Name implements Scheduler.Name.
func (*Stride) Name() string {
	return "stride"
}

// Ready implements Scheduler.Ready.
func (s *Stride) Ready(e Entity) {
	d := s.slot(e)
	if d.queued {
		return
	}
	d.queued = true
	s.ready.ReplaceOrInsert(strideItem{pass: d.pass, id: e.SchedID(), e: e})
}

// Block implements Scheduler.Block.
func (s *Stride) Block(e Entity) {
	d := s.slot(e)
	if !d.queued {
		return
	}
	d.queued = false
	s.ready.Delete(strideItem{pass: d.pass, id: e.SchedID()})
}

// Next implements Scheduler.Next.
func (s *Stride) Next() (int32, bool) {
	it, ok := s.ready.DeleteMin()
	if !ok {
		return 0, false
	}
	s.slot(it.e).queued = false
	s.minPass = it.pass
	return it.id, true
}

// Ran implements Scheduler.Ran.
func (s *Stride) Ran(e Entity, _ uint64) {
	d := s.slot(e)
	if d.queued {
		// Pass is part of the tree key.
		s.ready.Delete(strideItem{pass: d.pass, id: e.SchedID()})
		d.pass += d.stride
		s.ready.ReplaceOrInsert(strideItem{pass: d.pass, id: e.SchedID(), e: e})
		return
	}
	d.pass += d.stride
}

// SetPriority implements Scheduler.SetPriority. Priorities below
// MinPriority are clamped.
func (s *Stride) SetPriority(e Entity, prio int64) {
	if prio < MinPriority {
		prio = MinPriority
	}
	s.slot(e).stride = BigStride / uint64(prio)
}

// Pass returns e's current pass value.
func (s *Stride) Pass(e Entity) uint64 {
	return s.slot(e).pass
}
