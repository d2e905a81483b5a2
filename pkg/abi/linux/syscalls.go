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

package linux

// Syscall numbers. Where Linux RISC-V defines the call, the number matches;
// sbrk replaces brk at 214, and spawn, task_info and the synchronization
// calls are local extensions.
const (
	SYS_EXIT                   = 93
	SYS_NANOSLEEP              = 101
	SYS_SCHED_YIELD            = 124
	SYS_SETPRIORITY            = 140
	SYS_GETTIMEOFDAY           = 169
	SYS_GETPID                 = 172
	SYS_GETPPID                = 173
	SYS_SBRK                   = 214
	SYS_MUNMAP                 = 215
	SYS_MMAP                   = 222
	SYS_WAIT4                  = 260
	SYS_SPAWN                  = 400
	SYS_TASK_INFO              = 410
	SYS_MUTEX_CREATE           = 463
	SYS_MUTEX_LOCK             = 464
	SYS_MUTEX_UNLOCK           = 466
	SYS_SEMAPHORE_CREATE       = 467
	SYS_SEMAPHORE_UP           = 468
	SYS_ENABLE_DEADLOCK_DETECT = 469
	SYS_SEMAPHORE_DOWN         = 470
	SYS_CONDVAR_CREATE         = 471
	SYS_CONDVAR_SIGNAL         = 472
	SYS_CONDVAR_WAIT           = 473
	MaxSyscallNum              = 500
	MinSchedPriority           = 2
	DefaultSchedPrio           = 16
	MaxSpawnNameBytes          = 256
)

// Options for wait4(2).
const (
	WNOHANG = 1
)

// WaitAny is the pid argument to wait4 that matches any child.
const WaitAny = -1
