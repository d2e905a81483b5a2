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

// rrData is the RoundRobin slot data.
type rrData struct {
	queued bool
}

// RoundRobin runs Ready tasks in the order they became Ready.
type RoundRobin struct {
	queue []Entity
}

var _ Scheduler = (*RoundRobin)(nil)

// NewRoundRobin returns an empty RoundRobin.
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{}
}

func rrSlot(e Entity) *rrData {
	s := e.SchedSlot()
	d, ok := s.data.(*rrData)
	if !ok {
		d = &rrData{}
		s.data = d
	}
	return d
}

// Name implements Scheduler.Name.
func (*RoundRobin) Name() string {
	return "rr"
}

// Ready implements Scheduler.Ready.
func (r *RoundRobin) Ready(e Entity) {
	d := rrSlot(e)
	if d.queued {
		return
	}
	d.queued = true
	r.queue = append(r.queue, e)
}

// Block implements Scheduler.Block.
func (r *RoundRobin) Block(e Entity) {
	d := rrSlot(e)
	if !d.queued {
		return
	}
	d.queued = false
	for i, q := range r.queue {
		if q.SchedID() == e.SchedID() {
			r.queue = append(r.queue[:i], r.queue[i+1:]...)
			return
		}
	}
}

// Next implements Scheduler.Next.
func (r *RoundRobin) Next() (int32, bool) {
	if len(r.queue) == 0 {
		return 0, false
	}
	e := r.queue[0]
	r.queue[0] = nil
	r.queue = r.queue[1:]
	rrSlot(e).queued = false
	return e.SchedID(), true
}

// Ran implements Scheduler.Ran.
func (*RoundRobin) Ran(Entity, uint64) {}

// SetPriority implements Scheduler.SetPriority.
func (*RoundRobin) SetPriority(Entity, int64) {}

// Len returns the number of Ready tasks.
func (r *RoundRobin) Len() int {
	return len(r.queue)
}
