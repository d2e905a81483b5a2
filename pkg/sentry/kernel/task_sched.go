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

package kernel

import (
	"fmt"
	"math"
	"time"

	"gvisor.dev/rvkernel/pkg/abi/linux"
	"gvisor.dev/rvkernel/pkg/errors/linuxerr"
)

// makeReady moves a Blocked task to Ready.
func (k *Kernel) makeReady(t *Task) {
	if t.state != TaskBlocked {
		panic(fmt.Sprintf("waking task %d in state %v", t.tid, t.state))
	}
	t.state = TaskReady
	k.sched.Ready(t)
}

// block moves the running task to Blocked. The dispatch loop switches away
// from it once the current trap is handled.
func (k *Kernel) block(t *Task) {
	if t.state != TaskRunning {
		panic(fmt.Sprintf("blocking task %d in state %v", t.tid, t.state))
	}
	t.state = TaskBlocked
	k.sched.Block(t)
}

// Sleep blocks t until d has elapsed on the kernel clock.
func (k *Kernel) Sleep(t *Task, d time.Duration) {
	now := k.ctx.Cycles()
	deadline := now + k.clock.Cycles(d)
	if deadline < now {
		deadline = math.MaxUint64
	}
	t.wakeAt = deadline
	k.sleepers.ReplaceOrInsert(sleeper{deadline: deadline, tid: t.tid})
	k.block(t)
	t.Debugf("Sleeping for %v until cycle %d", d, deadline)
}

func (k *Kernel) cancelSleep(t *Task) {
	if t.wakeAt != 0 {
		k.sleepers.Delete(sleeper{deadline: t.wakeAt, tid: t.tid})
		t.wakeAt = 0
	}
}

// wakeSleepers makes every sleeper whose deadline has passed Ready.
func (k *Kernel) wakeSleepers() {
	now := k.ctx.Cycles()
	for {
		s, ok := k.sleepers.Min()
		if !ok || s.deadline > now {
			return
		}
		k.sleepers.DeleteMin()
		t := k.tasks.TaskWithID(s.tid)
		t.wakeAt = 0
		t.Debugf("Woken at cycle %d", now)
		k.makeReady(t)
	}
}

// Yield gives up the rest of t's time slice.
func (k *Kernel) Yield(t *Task) {
	t.yielded = true
}

// pickNext asks the scheduler for the next task. If nothing is Ready but
// tasks are sleeping, the clock skips ahead to the earliest deadline.
func (k *Kernel) pickNext() (*Task, error) {
	for {
		k.wakeSleepers()
		if tid, ok := k.sched.Next(); ok {
			t := k.tasks.TaskWithID(ThreadID(tid))
			if t == nil || t.state != TaskReady {
				panic(fmt.Sprintf("scheduler selected task %d which is not ready", tid))
			}
			return t, nil
		}
		s, ok := k.sleepers.Min()
		if !ok {
			return nil, ErrDeadlock
		}
		idle := s.deadline - k.ctx.Cycles()
		k.ctx.Advance(idle)
		k.metrics.idleCycles.IncrementBy(idle)
	}
}

// SetPriority sets t's scheduling priority. Priorities below
// linux.MinSchedPriority are rejected with EINVAL.
func (k *Kernel) SetPriority(t *Task, prio int64) error {
	if prio < linux.MinSchedPriority {
		return linuxerr.EINVAL
	}
	t.priority = prio
	k.sched.SetPriority(t, prio)
	return nil
}
