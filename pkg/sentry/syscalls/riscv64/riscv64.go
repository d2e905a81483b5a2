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

// Package riscv64 provides the syscall table exposed to RV64 tasks.
//
// Syscall numbers follow Linux on RISC-V where Linux has an equivalent
// call. The number is passed in a7, arguments in a0-a5, and the result (or
// -errno) is returned in a0.
package riscv64

import (
	"gvisor.dev/rvkernel/pkg/abi/linux"
	"gvisor.dev/rvkernel/pkg/errors/linuxerr"
	"gvisor.dev/rvkernel/pkg/sentry/kernel"
	"gvisor.dev/rvkernel/pkg/sentry/syscalls"
)

// NewTable returns a new table of the RV64 syscall API. Each kernel needs
// its own table, since a Stracer is installed per table.
func NewTable() *kernel.SyscallTable {
	return &kernel.SyscallTable{
		Table: map[uintptr]kernel.Syscall{
			linux.SYS_EXIT:         syscalls.Supported("exit", Exit, "code"),
			linux.SYS_NANOSLEEP:    syscalls.PartiallySupported("nanosleep", Nanosleep, "Takes a duration in milliseconds instead of a timespec.", "ms"),
			linux.SYS_SCHED_YIELD:  syscalls.Supported("sched_yield", SchedYield),
			linux.SYS_SETPRIORITY:  syscalls.PartiallySupported("setpriority", Setpriority, "Sets the caller's stride priority (at least 2) and returns it.", "prio"),
			linux.SYS_GETTIMEOFDAY: syscalls.Supported("gettimeofday", Gettimeofday, "tv"),
			linux.SYS_GETPID:       syscalls.Supported("getpid", Getpid),
			linux.SYS_GETPPID:      syscalls.Supported("getppid", Getppid),
			linux.SYS_WAIT4:        syscalls.PartiallySupported("wait4", Wait4, "Only pid > 0 and -1 are supported. Returns the exit code in a1 and the signal in a2.", "pid", "status", "options"),
			linux.SYS_SPAWN:        syscalls.Extension("spawn", Spawn, "Starts a named program as a new child task.", "name"),
			linux.SYS_TASK_INFO:    syscalls.Extension("task_info", TaskInfo, "Reads the status, syscall counts and run time of a task.", "tid", "info"),
			linux.SYS_SBRK:         syscalls.PartiallySupported("sbrk", Sbrk, "Replaces brk: moves the heap end by a delta and returns the old end.", "delta"),
			linux.SYS_MUNMAP:       syscalls.Supported("munmap", Munmap, "addr", "length"),
			linux.SYS_MMAP:         syscalls.PartiallySupported("mmap", Mmap, "Anonymous fixed mappings only; takes no flags, fd or offset and returns 0.", "addr", "length", "prot"),

			linux.SYS_MUTEX_CREATE:           syscalls.Extension("mutex_create", MutexCreate, "Creates a spinning or blocking mutex.", "blocking"),
			linux.SYS_MUTEX_LOCK:             syscalls.Extension("mutex_lock", MutexLock, "Locks a mutex.", "id"),
			linux.SYS_MUTEX_UNLOCK:           syscalls.Extension("mutex_unlock", MutexUnlock, "Unlocks a mutex held by the caller.", "id"),
			linux.SYS_SEMAPHORE_CREATE:       syscalls.Extension("semaphore_create", SemaphoreCreate, "Creates a counting semaphore.", "count"),
			linux.SYS_SEMAPHORE_UP:           syscalls.Extension("semaphore_up", SemaphoreUp, "Returns a unit to a semaphore.", "id"),
			linux.SYS_ENABLE_DEADLOCK_DETECT: syscalls.Extension("enable_deadlock_detect", EnableDeadlockDetect, "Turns EDEADLK checks in mutex_lock and semaphore_down on or off.", "enabled"),
			linux.SYS_SEMAPHORE_DOWN:         syscalls.Extension("semaphore_down", SemaphoreDown, "Takes a unit of a semaphore.", "id"),
			linux.SYS_CONDVAR_CREATE:         syscalls.Extension("condvar_create", CondvarCreate, "Creates a condition variable."),
			linux.SYS_CONDVAR_SIGNAL:         syscalls.Extension("condvar_signal", CondvarSignal, "Wakes one waiter of a condition variable.", "id"),
			linux.SYS_CONDVAR_WAIT:           syscalls.Extension("condvar_wait", CondvarWait, "Releases a mutex and waits on a condition variable.", "id", "mutex"),
		},
		Missing: syscalls.ErrorWithEvent(linuxerr.ENOSYS),
	}
}
