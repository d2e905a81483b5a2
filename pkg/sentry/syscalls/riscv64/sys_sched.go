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

// SchedYield implements the sched_yield syscall.
func SchedYield(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	t.Kernel().Yield(t)
	return 0, nil, nil
}

// Setpriority implements the setpriority syscall. Unlike Linux it takes only
// the new priority, applies to the caller, and returns the priority set.
func Setpriority(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	prio := args[0].Int64()
	if err := t.Kernel().SetPriority(t, prio); err != nil {
		return 0, nil, err
	}
	return uintptr(prio), nil, nil
}
