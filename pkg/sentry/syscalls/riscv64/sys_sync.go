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
	"gvisor.dev/rvkernel/pkg/errors/linuxerr"
	"gvisor.dev/rvkernel/pkg/sentry/arch"
	"gvisor.dev/rvkernel/pkg/sentry/kernel"
)

// MutexCreate implements the mutex_create syscall. A non-zero argument
// creates a blocking mutex, zero a spinning one. It returns the mutex id.
func MutexCreate(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	id, err := t.Kernel().MutexCreate(t, args[0].Uint64() != 0)
	if err != nil {
		return 0, nil, err
	}
	return uintptr(id), nil, nil
}

// MutexLock implements the mutex_lock syscall.
func MutexLock(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	return 0, nil, t.Kernel().MutexLock(t, args[0].Int64())
}

// MutexUnlock implements the mutex_unlock syscall.
func MutexUnlock(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	return 0, nil, t.Kernel().MutexUnlock(t, args[0].Int64())
}

// SemaphoreCreate implements the semaphore_create syscall. It returns the
// semaphore id.
func SemaphoreCreate(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	id, err := t.Kernel().SemaphoreCreate(t, args[0].Int64())
	if err != nil {
		return 0, nil, err
	}
	return uintptr(id), nil, nil
}

// SemaphoreUp implements the semaphore_up syscall.
func SemaphoreUp(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	return 0, nil, t.Kernel().SemaphoreUp(t, args[0].Int64())
}

// SemaphoreDown implements the semaphore_down syscall.
func SemaphoreDown(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	return 0, nil, t.Kernel().SemaphoreDown(t, args[0].Int64())
}

// CondvarCreate implements the condvar_create syscall. It returns the
// condition variable id.
func CondvarCreate(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	id, err := t.Kernel().CondvarCreate(t)
	if err != nil {
		return 0, nil, err
	}
	return uintptr(id), nil, nil
}

// CondvarSignal implements the condvar_signal syscall.
func CondvarSignal(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	return 0, nil, t.Kernel().CondvarSignal(t, args[0].Int64())
}

// CondvarWait implements the condvar_wait syscall: condvar_wait(cv, mutex).
func CondvarWait(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	return 0, nil, t.Kernel().CondvarWait(t, args[0].Int64(), args[1].Int64())
}

// EnableDeadlockDetect implements the enable_deadlock_detect syscall. The
// argument must be 0 or 1.
func EnableDeadlockDetect(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	switch args[0].Uint64() {
	case 0:
		t.Kernel().SetDeadlockDetect(false)
	case 1:
		t.Kernel().SetDeadlockDetect(true)
	default:
		return 0, nil, linuxerr.EINVAL
	}
	return 0, nil, nil
}
