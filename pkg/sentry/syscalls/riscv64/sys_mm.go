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

package riscv64

import (
	"gvisor.dev/rvkernel/pkg/sentry/arch"
	"gvisor.dev/rvkernel/pkg/sentry/kernel"
)

// Mmap implements mmap(addr, length, prot). There is no file, flags or
// offset argument: the mapping is always anonymous and private, at exactly
// addr. It returns 0.
func Mmap(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	return 0, nil, t.Kernel().Mmap(t, args[0].Pointer(), args[1].Uint64(), args[2].Uint64())
}

// Munmap implements munmap(addr, length).
func Munmap(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	return 0, nil, t.Kernel().Munmap(t, args[0].Pointer(), args[1].Uint64())
}

// Sbrk implements sbrk(delta). It returns the previous end of the heap.
func Sbrk(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	old, err := t.Kernel().Sbrk(t, args[0].Int64())
	if err != nil {
		return 0, nil, err
	}
	return uintptr(old), nil, nil
}
