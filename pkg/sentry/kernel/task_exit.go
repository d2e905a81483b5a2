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

	"gvisor.dev/rvkernel/pkg/abi/linux"
	"gvisor.dev/rvkernel/pkg/errors/linuxerr"
)

// Exit finalizes t's exit: its memory and kernel stack are freed, its
// children are reparented to the root task and it becomes a zombie holding
// es. The parent is woken if it is waiting for t.
func (k *Kernel) Exit(t *Task, es ExitStatus) {
	if t.state == TaskZombie {
		panic(fmt.Sprintf("task %d exits twice", t.tid))
	}
	t.Debugf("Exiting: %v", es)

	switch t.state {
	case TaskReady:
		k.sched.Block(t)
	case TaskBlocked:
		k.cancelSleep(t)
	}
	k.releaseSyncObjects(t)
	if t.as != nil {
		t.as.Release()
		t.as = nil
	}
	k.platform.ReleaseKernelStack(t.tf)

	k.tasks.mu.Lock()
	orphans := k.tasks.reparentChildrenLocked(t)
	t.exitStatus = es
	t.state = TaskZombie
	t.waitPID = 0
	k.tasks.mu.Unlock()

	if t.tid == InitTID {
		t.Infof("Root task %v", es)
		return
	}
	if root := k.tasks.Root(); root != nil {
		for _, z := range orphans {
			k.notifyExit(root, z)
		}
	}
	if p := k.tasks.Parent(t); p != nil {
		k.notifyExit(p, t)
	}
}

// waitMatches returns true if a wait for pid is satisfied by child.
func waitMatches(pid, child ThreadID) bool {
	return pid == linux.WaitAny || pid == child
}

// notifyExit wakes parent if it is blocked waiting for child.
func (k *Kernel) notifyExit(parent, child *Task) {
	if parent.state == TaskBlocked && parent.waitPID != 0 && waitMatches(parent.waitPID, child.tid) {
		parent.Debugf("Woken by the exit of task %d", child.tid)
		parent.waitPID = 0
		k.makeReady(parent)
	}
}

// WaitResult is the result of a successful Wait.
type WaitResult struct {
	TID    ThreadID
	Status ExitStatus
}

// Wait reaps a zombie child of t. pid selects the child, or any child if it
// is linux.WaitAny.
//
// Errors: ECHILD if no child matches. If a matching child exists but none is
// a zombie, Wait returns EAGAIN when noHang is set; otherwise it blocks t
// and returns ERESTARTSYS so that the call is made again once a child
// exits.
func (k *Kernel) Wait(t *Task, pid ThreadID, noHang bool) (WaitResult, error) {
	res, err := k.WaitNoReap(t, pid, noHang)
	if err != nil {
		return WaitResult{}, err
	}
	if err := k.Reap(t, res.TID); err != nil {
		return WaitResult{}, err
	}
	return res, nil
}

// WaitNoReap is Wait without the reaping: the zombie it reports stays in the
// task set until Reap is called, so a caller that fails to deliver the
// status can leave it for a later wait.
func (k *Kernel) WaitNoReap(t *Task, pid ThreadID, noHang bool) (WaitResult, error) {
	if pid != linux.WaitAny && pid <= 0 {
		return WaitResult{}, linuxerr.EINVAL
	}
	var found bool
	for _, c := range k.tasks.Children(t) {
		if !waitMatches(pid, c.tid) {
			continue
		}
		found = true
		if c.state == TaskZombie {
			return WaitResult{TID: c.tid, Status: c.exitStatus}, nil
		}
	}
	if !found {
		return WaitResult{}, linuxerr.ECHILD
	}
	if noHang {
		return WaitResult{}, linuxerr.EAGAIN
	}
	t.waitPID = pid
	k.block(t)
	return WaitResult{}, linuxerr.ERESTARTSYS
}

// Reap removes the zombie child tid of t from the task set. It returns
// ECHILD if tid is not a zombie child of t.
func (k *Kernel) Reap(t *Task, tid ThreadID) error {
	c := k.tasks.TaskWithID(tid)
	if c == nil || c.parent != t.tid || c.state != TaskZombie {
		return linuxerr.ECHILD
	}
	k.tasks.reap(c)
	t.Debugf("Reaped task %d: %v", c.tid, c.exitStatus)
	return nil
}
