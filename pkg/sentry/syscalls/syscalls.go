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

// Package syscalls is the interface from the application to the kernel.
// Traditionally, syscalls is the interface that is used by applications to
// request services from the kernel of an operating system. The tables built
// from the helpers in this package are installed into a kernel.SyscallTable.
package syscalls

import (
	"gvisor.dev/rvkernel/pkg/sentry/arch"
	"gvisor.dev/rvkernel/pkg/sentry/kernel"
)

// Supported returns a syscall that is fully supported.
func Supported(name string, fn kernel.SyscallFn, argNames ...string) kernel.Syscall {
	return kernel.Syscall{
		Name:     name,
		Fn:       fn,
		ArgNames: argNames,
	}
}

// ErrorWithEvent gives a syscall function that logs the unimplemented
// syscall and returns the passed error.
func ErrorWithEvent(err error) kernel.SyscallFn {
	return func(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
		UnimplementedEvent(t, sysno)
		return 0, nil, err
	}
}

// UnimplementedEvent records that t made an unimplemented syscall.
func UnimplementedEvent(t *kernel.Task, sysno uintptr) {
	t.Debugf("Unimplemented syscall %d at pc %v", sysno, t.Arch().IP())
}

// PartiallySupported returns a syscall whose behavior differs from Linux, as
// described by note.
func PartiallySupported(name string, fn kernel.SyscallFn, note string, argNames ...string) kernel.Syscall {
	return kernel.Syscall{
		Name:     name,
		Fn:       fn,
		ArgNames: argNames,
		Note:     note,
	}
}

// Extension returns a syscall that has no Linux equivalent.
func Extension(name string, fn kernel.SyscallFn, note string, argNames ...string) kernel.Syscall {
	return kernel.Syscall{
		Name:     name,
		Fn:       fn,
		ArgNames: argNames,
		Note:     "Not in Linux. " + note,
	}
}
