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

package strace

import (
	"gvisor.dev/rvkernel/pkg/abi/linux"
	"gvisor.dev/rvkernel/pkg/sentry/kernel"
)

// FormatSpecifier values describe how an individual syscall argument should be
// formatted.
type FormatSpecifier int

// Valid FormatSpecifiers.
//
// Unless otherwise specified, values are formatted before syscall execution
// and not updated after syscall execution (the same value is output).
const (
	// Hex is just a hexadecimal number.
	Hex FormatSpecifier = iota

	// Int is a signed decimal number.
	Int

	// Name is a pointer to a NUL-terminated program name.
	Name

	// WaitOptions are wait4 options.
	WaitOptions

	// PostWaitStatus is a pointer to a 32-bit exit code, formatted after
	// syscall execution.
	PostWaitStatus

	// PostTimeval is a pointer to a struct timeval, formatted after syscall
	// execution.
	PostTimeval

	// PostTaskInfo is a pointer to a TaskInfo record, formatted after
	// syscall execution.
	PostTaskInfo

	// ProtectionFlags are mmap protection flags.
	ProtectionFlags
)

// defaultFormat is the syscall argument format to use if the actual format is
// not known. It formats all six arguments as hex.
var defaultFormat = []FormatSpecifier{Hex, Hex, Hex, Hex, Hex, Hex}

// SyscallInfo captures the name and printing format of a syscall.
type SyscallInfo struct {
	// name is the name of the syscall.
	name string

	// format contains the format specifiers for each argument.
	//
	// Syscall calls can have up to six arguments. Arguments without a
	// corresponding entry in format will not be printed.
	format []FormatSpecifier
}

// makeSyscallInfo returns a SyscallInfo for a syscall.
func makeSyscallInfo(name string, f ...FormatSpecifier) SyscallInfo {
	return SyscallInfo{name: name, format: f}
}

// SyscallMap maps syscalls into names and printing formats.
type SyscallMap map[uintptr]SyscallInfo

var _ kernel.Stracer = (SyscallMap)(nil)

// linuxRISCV64 is the format of every syscall in the RV64 table.
var linuxRISCV64 = SyscallMap{
	linux.SYS_EXIT:         makeSyscallInfo("exit", Int),
	linux.SYS_NANOSLEEP:    makeSyscallInfo("nanosleep", Int),
	linux.SYS_SCHED_YIELD:  makeSyscallInfo("sched_yield"),
	linux.SYS_SETPRIORITY:  makeSyscallInfo("setpriority", Int),
	linux.SYS_GETTIMEOFDAY: makeSyscallInfo("gettimeofday", PostTimeval),
	linux.SYS_GETPID:       makeSyscallInfo("getpid"),
	linux.SYS_GETPPID:      makeSyscallInfo("getppid"),
	linux.SYS_WAIT4:        makeSyscallInfo("wait4", Int, PostWaitStatus, WaitOptions),
	linux.SYS_SPAWN:        makeSyscallInfo("spawn", Name),
	linux.SYS_TASK_INFO:    makeSyscallInfo("task_info", Int, PostTaskInfo),
	linux.SYS_SBRK:         makeSyscallInfo("sbrk", Int),
	linux.SYS_MUNMAP:       makeSyscallInfo("munmap", Hex, Hex),
	linux.SYS_MMAP:         makeSyscallInfo("mmap", Hex, Hex, ProtectionFlags),

	linux.SYS_MUTEX_CREATE:           makeSyscallInfo("mutex_create", Int),
	linux.SYS_MUTEX_LOCK:             makeSyscallInfo("mutex_lock", Int),
	linux.SYS_MUTEX_UNLOCK:           makeSyscallInfo("mutex_unlock", Int),
	linux.SYS_SEMAPHORE_CREATE:       makeSyscallInfo("semaphore_create", Int),
	linux.SYS_SEMAPHORE_UP:           makeSyscallInfo("semaphore_up", Int),
	linux.SYS_ENABLE_DEADLOCK_DETECT: makeSyscallInfo("enable_deadlock_detect", Int),
	linux.SYS_SEMAPHORE_DOWN:         makeSyscallInfo("semaphore_down", Int),
	linux.SYS_CONDVAR_CREATE:         makeSyscallInfo("condvar_create"),
	linux.SYS_CONDVAR_SIGNAL:         makeSyscallInfo("condvar_signal", Int),
	linux.SYS_CONDVAR_WAIT:           makeSyscallInfo("condvar_wait", Int, Int),
}

// Lookup returns the SyscallMap for the RV64 syscall table. The returned map
// must not be changed.
func Lookup() SyscallMap {
	return linuxRISCV64
}
