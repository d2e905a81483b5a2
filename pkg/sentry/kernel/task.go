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
	"sort"

	"gvisor.dev/rvkernel/pkg/abi/linux"
	"gvisor.dev/rvkernel/pkg/hostarch"
	"gvisor.dev/rvkernel/pkg/log"
	"gvisor.dev/rvkernel/pkg/sentry/arch"
	"gvisor.dev/rvkernel/pkg/sentry/kernel/sched"
	"gvisor.dev/rvkernel/pkg/sentry/mm"
	"gvisor.dev/rvkernel/pkg/sentry/platform"
)

// TaskState is the scheduling state of a task.
type TaskState int

// Task states.
const (
	// TaskReady tasks are known to the scheduler and may be selected.
	TaskReady TaskState = iota

	// TaskRunning is the state of the task that owns the hart.
	TaskRunning

	// TaskBlocked tasks wait for a child to exit, a deadline to pass or a
	// synchronization object.
	TaskBlocked

	// TaskZombie tasks have exited and wait to be reaped.
	TaskZombie
)

// String implements fmt.Stringer.String.
func (s TaskState) String() string {
	return s.Status().String()
}

// Status returns the task_info representation of s.
func (s TaskState) Status() linux.TaskStatus {
	switch s {
	case TaskReady:
		return linux.TaskReady
	case TaskRunning:
		return linux.TaskRunning
	case TaskBlocked:
		return linux.TaskBlocked
	case TaskZombie:
		return linux.TaskZombie
	default:
		return linux.TaskUnknown
	}
}

// Fault exit codes. They are negative so they cannot be confused with the
// code of a normal exit, which also has no signal.
const (
	ExitCodePageFault   = -2
	ExitCodeIllegal     = -3
	ExitCodeUnknownTrap = -4
)

// ExitStatus is the outcome of a task.
type ExitStatus struct {
	// Code is the exit code passed to exit, or a fault exit code.
	Code int64

	// Signo is the signal describing a fault, or 0 for a normal exit.
	Signo linux.Signal
}

// Signaled returns true if the task was terminated by a fault.
func (es ExitStatus) Signaled() bool {
	return es.Signo != 0
}

// String implements fmt.Stringer.String.
func (es ExitStatus) String() string {
	if es.Signaled() {
		return fmt.Sprintf("killed by %v (code %d)", es.Signo, es.Code)
	}
	return fmt.Sprintf("exited with code %d", es.Code)
}

// TaskStats are the accounting counters of a task.
type TaskStats struct {
	// Syscalls counts syscalls by number.
	Syscalls [linux.MaxSyscallNum]uint32

	// UserCycles is the number of cycles spent in user mode.
	UserCycles uint64

	// KernelCycles is the number of cycles spent handling the task's traps.
	KernelCycles uint64

	// Dispatched is true once the task has run.
	Dispatched bool

	// FirstRun is the cycle count at the first dispatch.
	FirstRun uint64
}

// Task represents a user program.
type Task struct {
	k *Kernel

	tid  ThreadID
	name string

	// tf is the task's register state. It is overwritten on every trap.
	tf *arch.TrapFrame

	// as is nil once the task has exited.
	as platform.AddressSpace

	// parent is the parent's id, or 0 for the root. It is a weak reference
	// that is resolved through the TaskSet.
	parent ThreadID

	// children is the set of child ids. Children are added only by spawn
	// and removed when reaped or reparented.
	children map[ThreadID]struct{}

	state      TaskState
	exitStatus ExitStatus

	// schedSlot holds scheduler-private data.
	schedSlot sched.Slot
	priority  int64

	// waitPID is the pid argument of a blocked wait, or 0.
	waitPID ThreadID

	// restarting is set while the task's last syscall is waiting to be
	// re-executed after ERESTARTSYS.
	restarting bool

	// wakeAt is the cycle deadline of a blocked sleep, or 0.
	wakeAt uint64

	// lockWait is the mutex the task waits for, or nil. semWait and
	// condWait are the semaphore and condition variable it is blocked on.
	lockWait *syncMutex
	semWait  *syncSemaphore
	condWait *syncCondvar

	// heapBottom is where the heap starts and brk where it currently ends.
	heapBottom hostarch.Addr
	brk        hostarch.Addr

	// yielded is set by sched_yield and cleared when the task is switched
	// out.
	yielded bool

	// preempted is set by a timer tick and cleared when the task is
	// switched out.
	preempted bool

	// sliceStart is the cycle count when the task was last switched in.
	sliceStart uint64

	stats TaskStats

	logPrefix string
}

var _ sched.Entity = (*Task)(nil)

// SchedID implements sched.Entity.SchedID.
func (t *Task) SchedID() int32 {
	return int32(t.tid)
}

// SchedSlot implements sched.Entity.SchedSlot.
func (t *Task) SchedSlot() *sched.Slot {
	return &t.schedSlot
}

// Kernel returns the task's kernel.
func (t *Task) Kernel() *Kernel {
	return t.k
}

// ThreadID returns the task's id.
func (t *Task) ThreadID() ThreadID {
	return t.tid
}

// Name returns the name of the program the task runs.
func (t *Task) Name() string {
	return t.name
}

// Arch returns the task's trap frame.
func (t *Task) Arch() *arch.TrapFrame {
	return t.tf
}

// AddressSpace returns the task's address space, or nil after exit.
func (t *Task) AddressSpace() platform.AddressSpace {
	return t.as
}

// ParentID returns the parent's id, or 0 for the root.
func (t *Task) ParentID() ThreadID {
	return t.parent
}

// State returns the task's state.
func (t *Task) State() TaskState {
	return t.state
}

// ExitStatus returns the exit status of a zombie.
func (t *Task) ExitStatus() ExitStatus {
	return t.exitStatus
}

// Priority returns the task's scheduling priority.
func (t *Task) Priority() int64 {
	return t.priority
}

// Brk returns the current end of the task's heap.
func (t *Task) Brk() hostarch.Addr {
	return t.brk
}

// Stats returns a copy of the task's counters.
func (t *Task) Stats() TaskStats {
	return t.stats
}

func (t *Task) childIDs() []ThreadID {
	ids := make([]ThreadID, 0, len(t.children))
	for tid := range t.children {
		ids = append(ids, tid)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// CopyIn copies len(dst) bytes from the task's memory at addr.
func (t *Task) CopyIn(addr hostarch.Addr, dst []byte) (int, error) {
	return t.as.CopyIn(addr, dst)
}

// CopyOut copies src into the task's memory at addr.
func (t *Task) CopyOut(addr hostarch.Addr, src []byte) (int, error) {
	return t.as.CopyOut(addr, src)
}

// CopyInString copies a NUL-terminated string from the task's memory.
func (t *Task) CopyInString(addr hostarch.Addr, maxlen int) (string, error) {
	return mm.CopyInString(t.as, addr, maxlen)
}

func (t *Task) updateLogPrefix() {
	t.logPrefix = fmt.Sprintf("[%5d:%s] ", t.tid, t.name)
}

// Debugf creates a debug log message with the task's prefix.
func (t *Task) Debugf(format string, v ...any) {
	if log.IsLogging(log.Debug) {
		log.Log().DebugfAtDepth(1, t.logPrefix+format, v...)
	}
}

// Infof logs at the INFO level with the task's prefix.
func (t *Task) Infof(format string, v ...any) {
	if log.IsLogging(log.Info) {
		log.Log().InfofAtDepth(1, t.logPrefix+format, v...)
	}
}

// Warningf logs at the WARNING level with the task's prefix.
func (t *Task) Warningf(format string, v ...any) {
	if log.IsLogging(log.Warning) {
		log.Log().WarningfAtDepth(1, t.logPrefix+format, v...)
	}
}

// IsLogging returns true if the task's messages at level are emitted.
func (t *Task) IsLogging(level log.Level) bool {
	return log.IsLogging(level)
}
