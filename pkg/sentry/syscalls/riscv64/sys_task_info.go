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

// TaskInfo implements the task_info syscall. tid 0 names the caller.
func TaskInfo(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	tid := kernel.ThreadID(args[0].Int())
	addr := args[1].Pointer()

	target := t
	if tid != 0 {
		target = t.Kernel().TaskSet().TaskWithID(tid)
		if target == nil {
			return 0, nil, linuxerr.ESRCH
		}
	}
	info := t.Kernel().TaskInfo(target)
	buf := make([]byte, info.SizeBytes())
	info.MarshalBytes(buf)
	if _, err := t.CopyOut(addr, buf); err != nil {
		return 0, nil, err
	}
	return 0, nil, nil
}
